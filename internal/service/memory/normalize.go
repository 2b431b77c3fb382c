package memory

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	ShortTermMarker = "short-term-memory"
	RelevantMarker  = "relevant-memories"
)

var (
	injectedBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<` + ShortTermMarker + `>.*?</` + ShortTermMarker + `>`),
		regexp.MustCompile(`(?s)<` + RelevantMarker + `>.*?</` + RelevantMarker + `>`),
	}
	strayMarkers = regexp.MustCompile(`</?(?:` + ShortTermMarker + `|` + RelevantMarker + `)>`)
)

// Normalize canonicalizes text for hashing. Injected context blocks are
// removed, whitespace runs collapse to one space, and the result is lower-cased.
func Normalize(text string) string {
	for _, re := range injectedBlocks {
		text = re.ReplaceAllString(text, " ")
	}
	text = strayMarkers.ReplaceAllString(text, " ")
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Hash returns the hex sha1 of already normalized text.
func Hash(canonical string) string {
	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// ContentHash is Hash(Normalize(text)).
func ContentHash(text string) string {
	return Hash(Normalize(text))
}

// clip shortens s to at most limit runes, the last one being an ellipsis.
// A limit of zero or less disables clipping.
func clip(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

// flatten puts text on a single line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

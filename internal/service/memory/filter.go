package memory

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sandevgo/tuskmem/internal/core"
)

// ackTokens are whole-message acknowledgements. Matched exactly, never as substrings.
var ackTokens = map[string]struct{}{
	"ok": {}, "okay": {}, "k": {}, "kk": {},
	"thanks": {}, "thank you": {}, "thx": {}, "ty": {},
	"yep": {}, "yup": {}, "yeah": {}, "got it": {},
	"👍": {}, "👌": {}, "🙏": {}, "✅": {}, "🙂": {}, "😊": {},
}

// ShouldSkip reports whether text is noise not worth storing.
func ShouldSkip(text string, minChars int) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if utf8.RuneCountInString(t) < minChars {
		return true
	}
	if !strings.ContainsFunc(t, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return true
	}

	token := strings.TrimFunc(strings.ToLower(t), func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '!'
	})
	_, ack := ackTokens[token]
	return ack
}

// HasInjectedContext reports whether text carries a block produced by recall.
func HasInjectedContext(text string) bool {
	return strings.Contains(text, "<"+RelevantMarker+">") ||
		strings.Contains(text, "<"+ShortTermMarker+">")
}

// Sanitize drops empty messages and messages carrying injected context.
// Order is preserved and the function is idempotent.
func Sanitize(messages []core.Message) []core.Message {
	out := make([]core.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if HasInjectedContext(m.Text) {
			continue
		}
		out = append(out, m)
	}
	return out
}

package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sandevgo/tuskmem/internal/config"
	"github.com/sandevgo/tuskmem/internal/core"
	"github.com/sandevgo/tuskmem/pkg/log"
)

var conversationTags = []string{string(core.RoleUser), string(core.RoleAssistant)}

type sessionSource interface {
	SessionItems(ctx context.Context, sessionID string, tags []string, limit int) ([]core.StoredItem, error)
}

type searcher interface {
	Search(ctx context.Context, query string, limit int) ([]core.SearchResult, error)
}

// Recaller builds the context injected before a turn.
type Recaller struct {
	sessions sessionSource
	search   searcher
	cfg      config.RecallConfig
}

func NewRecaller(sessions sessionSource, search searcher, cfg config.RecallConfig) *Recaller {
	return &Recaller{sessions: sessions, search: search, cfg: cfg}
}

// Recall returns the short-term and relevant-memory blocks for prompt, or ""
// when there is nothing to add. Failures are logged and yield no context.
func (r *Recaller) Recall(ctx context.Context, prompt, sessionID string) string {
	logger := log.FromCtx(ctx)

	var blocks []string

	short, err := r.shortTerm(ctx, sessionID)
	if err != nil {
		logger.Warn().Err(err).Str("session", sessionID).Msg("short-term recall failed")
	} else if short != "" {
		blocks = append(blocks, wrap(ShortTermMarker, short))
	}

	long, err := r.longTerm(ctx, prompt)
	if err != nil {
		logger.Warn().Err(err).Msg("long-term recall failed")
	} else if long != "" {
		blocks = append(blocks, wrap(RelevantMarker, long))
	}

	return strings.Join(blocks, "\n\n")
}

// shortTerm renders the session's recent messages oldest first. Lines are
// added whole until the message cap or the character budget would be exceeded.
func (r *Recaller) shortTerm(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" || r.cfg.ShortTermMaxMessages <= 0 {
		return "", nil
	}

	items, err := r.sessions.SessionItems(ctx, sessionID, conversationTags, r.cfg.ShortTermScan)
	if err != nil {
		return "", err
	}
	slices.Reverse(items)

	var (
		lines []string
		used  int
	)
	for _, it := range items {
		if len(lines) >= r.cfg.ShortTermMaxMessages {
			break
		}

		line := fmt.Sprintf("[role: %s] %s", roleOf(it), clip(flatten(it.Text), r.cfg.ShortTermSnippetChars))
		cost := utf8.RuneCountInString(line)
		if len(lines) > 0 {
			cost++ // newline
		}
		if used+cost > r.cfg.ShortTermMaxChars {
			break
		}

		lines = append(lines, line)
		used += cost
	}

	return strings.Join(lines, "\n"), nil
}

func (r *Recaller) longTerm(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if utf8.RuneCountInString(prompt) < r.cfg.LongTermMinPrompt || r.cfg.LongTermLimit <= 0 {
		return "", nil
	}

	results, err := r.search.Search(ctx, prompt, r.cfg.LongTermLimit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("The following memories may be relevant:")
	for _, res := range results {
		sb.WriteString("\n- ")
		sb.WriteString(clip(flatten(res.Item.Text), r.cfg.LongTermSnippetChars))
		if meta := describe(res.Item); meta != "" {
			sb.WriteString(" (" + meta + ")")
		}
	}
	return sb.String(), nil
}

func roleOf(it core.StoredItem) string {
	if it.Meta.Role != "" {
		return string(it.Meta.Role)
	}
	return it.Tags
}

func describe(it core.StoredItem) string {
	var parts []string
	if it.Tags != "" {
		parts = append(parts, "tag: "+it.Tags)
	}
	if it.Source != "" {
		parts = append(parts, "source: "+it.Source)
	}
	if !it.CreatedAt.IsZero() {
		parts = append(parts, "date: "+it.CreatedAt.UTC().Format("2006-01-02"))
	}
	return strings.Join(parts, ", ")
}

func wrap(marker, body string) string {
	return "<" + marker + ">\n" + body + "\n</" + marker + ">"
}

package core

import (
	"slices"
	"time"
)

const (
	AppName    = "tuskmem"
	AppVersion = "0.1.0"
)

// ItemMeta is the attribution payload stored with every captured item.
type ItemMeta struct {
	Role        Role   `json:"role,omitempty"`
	SessionKey  string `json:"sessionKey,omitempty"`
	Channel     string `json:"channel,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	ContentHash string `json:"contentHash,omitempty"`
}

type StoredItem struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Tags        string    `json:"tags,omitempty"` // role or category
	Source      string    `json:"source,omitempty"`
	Meta        ItemMeta  `json:"meta"`
	ContentHash string    `json:"content_hash,omitempty"`
	EntityID    string    `json:"entity_id,omitempty"`
	ProcessID   string    `json:"process_id,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type SearchResult struct {
	Item  StoredItem `json:"item"`
	Score float64    `json:"score"`
}

type LexicalResult struct {
	Results      []SearchResult
	EscapedQuery string
}

type HybridOptions struct {
	TopK           int
	Candidates     int
	SemanticWeight float64
}

// Filter narrows hybrid search by attribution. Empty fields match everything.
type Filter struct {
	EntityID  string
	ProcessID string
	SessionID string
}

func (f Filter) IsZero() bool {
	return f.EntityID == "" && f.ProcessID == "" && f.SessionID == ""
}

type RetentionPolicy struct {
	RetentionDays int
	ProtectedTags []string
}

// Cutoff is the creation time before which items are past the horizon.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(p.RetentionDays) * 24 * time.Hour)
}

// Eligible reports whether item may be removed by GC.
// Protected tags match exactly; an item without a tag is never protected.
func (p RetentionPolicy) Eligible(item StoredItem, now time.Time) bool {
	if p.RetentionDays <= 0 {
		return false
	}
	if !item.CreatedAt.Before(p.Cutoff(now)) {
		return false
	}
	if item.Tags == "" {
		return true
	}
	return !slices.Contains(p.ProtectedTags, item.Tags)
}

type GCRequest struct {
	RetentionDays int // 0 falls back to the configured default
	ProtectedTags []string
	ScanLimit     int
	DryRun        bool
}

type GCResult struct {
	Skipped    bool         `json:"skipped"`
	DryRun     bool         `json:"dry_run"`
	Cutoff     time.Time    `json:"cutoff,omitzero"`
	Candidates int          `json:"candidates"`
	Deleted    int          `json:"deleted"`
	Sample     []StoredItem `json:"sample,omitempty"`
}

type StoreStats struct {
	Items      int       `json:"items"`
	Embeddings int       `json:"embeddings"`
	Oldest     time.Time `json:"oldest,omitzero"`
	Newest     time.Time `json:"newest,omitzero"`
}

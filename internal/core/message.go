package core

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole accepts only the roles that take part in capture and recall.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), true
	}
	return "", false
}

// Message is a flattened turn message.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type ContentKind int

const (
	ContentUnknown ContentKind = iota
	ContentText
	ContentBlocks
)

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageContent holds either a plain string body or a list of typed blocks.
// Any other JSON shape decodes to ContentUnknown instead of failing the whole event.
type MessageContent struct {
	Kind   ContentKind
	Text   string
	Blocks []ContentBlock
}

func TextContent(s string) MessageContent {
	return MessageContent{Kind: ContentText, Text: s}
}

func BlocksContent(blocks ...ContentBlock) MessageContent {
	return MessageContent{Kind: ContentBlocks, Blocks: blocks}
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	*c = MessageContent{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		c.Kind = ContentText
		c.Text = s
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil
		}
		c.Kind = ContentBlocks
		for _, r := range raw {
			var b ContentBlock
			if err := json.Unmarshal(r, &b); err != nil {
				continue
			}
			c.Blocks = append(c.Blocks, b)
		}
	}
	return nil
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ContentText:
		return json.Marshal(c.Text)
	case ContentBlocks:
		if c.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.Blocks)
	}
	return []byte("null"), nil
}

// PlainText joins the text-typed blocks; non-text blocks are ignored.
func (c MessageContent) PlainText() string {
	switch c.Kind {
	case ContentText:
		return c.Text
	case ContentBlocks:
		parts := make([]string, 0, len(c.Blocks))
		for _, b := range c.Blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// RawMessage is a message as delivered by the host runtime.
type RawMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// TurnEvent is delivered after a turn completes.
type TurnEvent struct {
	Messages   []RawMessage `json:"messages"`
	Success    bool         `json:"success"`
	SessionKey string       `json:"sessionKey,omitempty"`
	Channel    string       `json:"channel,omitempty"`
	AgentID    string       `json:"agentId,omitempty"`
}

// BeforeTurnEvent is delivered before the agent acts on a prompt.
type BeforeTurnEvent struct {
	Prompt     string `json:"prompt"`
	SessionKey string `json:"sessionKey,omitempty"`
}

// ExtractMessages flattens raw host messages into role/text pairs.
// Unknown roles and content shapes are dropped.
func ExtractMessages(raw []RawMessage) []Message {
	out := make([]Message, 0, len(raw))
	for _, m := range raw {
		role, ok := ParseRole(m.Role)
		if !ok {
			continue
		}
		if m.Content.Kind == ContentUnknown {
			continue
		}
		out = append(out, Message{Role: role, Text: m.Content.PlainText()})
	}
	return out
}

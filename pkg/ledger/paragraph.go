// Package ledger tracks paragraph-level edits produced by editor stages and
// the human decisions taken on them.
//
// A Ledger is a value snapshot: every operation returns a new Ledger and
// never mutates the receiver, so a snapshot handed to another goroutine stays
// stable.
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Decision is a tri-state approval. On the wire it is true, false or null.
type Decision uint8

const (
	Undecided Decision = iota
	Approved
	Rejected
)

// DecisionOf converts a boolean choice.
func DecisionOf(approved bool) Decision {
	if approved {
		return Approved
	}
	return Rejected
}

// decisionFrom converts an optional wire boolean.
func decisionFrom(b *bool) Decision {
	if b == nil {
		return Undecided
	}
	return DecisionOf(*b)
}

func (d Decision) Decided() bool {
	return d != Undecided
}

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "undecided"
	}
}

func (d Decision) MarshalJSON() ([]byte, error) {
	switch d {
	case Approved:
		return []byte("true"), nil
	case Rejected:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*d = Approved
	case "false":
		*d = Rejected
	case "null":
		*d = Undecided
	default:
		return fmt.Errorf("ledger: invalid decision %s", data)
	}
	return nil
}

// BlockType is the structural role of a paragraph in the final document.
type BlockType string

const (
	BlockTitle      BlockType = "title"
	BlockHeading    BlockType = "heading"
	BlockParagraph  BlockType = "paragraph"
	BlockBulletItem BlockType = "bullet_item"
)

// ParseBlockType maps the spellings used by the revision service onto a
// BlockType. Anything unrecognised is a plain paragraph.
func ParseBlockType(s string) BlockType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title", "h1":
		return BlockTitle
	case "heading", "subheading", "h2", "h3", "h4":
		return BlockHeading
	case "bullet_item", "bullet-item", "bullet", "list_item", "list-item", "bullet_point":
		return BlockBulletItem
	default:
		return BlockParagraph
	}
}

// FeedbackItem is one flagged issue within a paragraph.
type FeedbackItem struct {
	Issue    string   `json:"issue"`
	Fix      string   `json:"fix,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	Impact   string   `json:"impact,omitempty"`
	Priority string   `json:"priority,omitempty"`
	Approved Decision `json:"approved"`
}

// ParagraphEdit pairs one paragraph of the original with its edited form.
type ParagraphEdit struct {
	Index        int                       `json:"index"`
	Original     string                    `json:"original"`
	Edited       string                    `json:"edited"`
	Tags         []string                  `json:"tags"`
	Approved     Decision                  `json:"approved"`
	AutoApproved bool                      `json:"auto_approved"`
	BlockType    BlockType                 `json:"block_type"`
	Level        int                       `json:"level"`
	Feedback     map[string][]FeedbackItem `json:"editorial_feedback"`
}

func (p ParagraphEdit) clone() ParagraphEdit {
	out := p
	out.Tags = append([]string(nil), p.Tags...)
	out.Feedback = make(map[string][]FeedbackItem, len(p.Feedback))
	for category, items := range p.Feedback {
		out.Feedback[category] = append([]FeedbackItem{}, items...)
	}
	return out
}

// FeedbackCount returns how many feedback items the paragraph carries.
func (p ParagraphEdit) FeedbackCount() int {
	n := 0
	for _, items := range p.Feedback {
		n += len(items)
	}
	return n
}

// EffectiveApproval reports whether the paragraph's edit is merged when the
// pipeline continues: explicitly approved, or not rejected and carrying at
// least one approved feedback item.
func EffectiveApproval(p ParagraphEdit) bool {
	if p.Approved == Approved {
		return true
	}
	if p.Approved == Rejected {
		return false
	}
	for _, items := range p.Feedback {
		for _, item := range items {
			if item.Approved == Approved {
				return true
			}
		}
	}
	return false
}

// RawFeedback is a feedback item as sent by the revision service.
type RawFeedback struct {
	Issue    string `json:"issue"`
	Fix      string `json:"fix,omitempty"`
	Rule     string `json:"rule,omitempty"`
	RuleUsed string `json:"rule_used,omitempty"`
	Impact   string `json:"impact,omitempty"`
	Priority string `json:"priority,omitempty"`
	Approved *bool  `json:"approved,omitempty"`
}

// RawEdit is a paragraph edit as sent by the revision service. Index and
// Original are optional; Ingest fills them from position and source text.
type RawEdit struct {
	Index     *int                     `json:"index,omitempty"`
	Original  *string                  `json:"original,omitempty"`
	Edited    string                   `json:"edited"`
	Tags      []string                 `json:"tags,omitempty"`
	Approved  *bool                    `json:"approved,omitempty"`
	BlockType string                   `json:"block_type,omitempty"`
	Level     int                      `json:"level,omitempty"`
	Feedback  map[string][]RawFeedback `json:"editorial_feedback,omitempty"`
}

// UnmarshalJSON accepts "edited_text"/"original_text" aliases used by older
// service builds.
func (r *RawEdit) UnmarshalJSON(data []byte) error {
	type plain RawEdit
	var aux struct {
		plain
		EditedText   *string `json:"edited_text"`
		OriginalText *string `json:"original_text"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = RawEdit(aux.plain)
	if r.Edited == "" && aux.EditedText != nil {
		r.Edited = *aux.EditedText
	}
	if r.Original == nil && aux.OriginalText != nil {
		r.Original = aux.OriginalText
	}
	return nil
}

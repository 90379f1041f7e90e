package ledger

import (
	"encoding/json"
	"sort"
	"strings"

	"ai-editorial-be/pkg/editor"
)

// Ledger is an immutable snapshot of a document's paragraph edits.
type Ledger struct {
	paragraphs []ParagraphEdit
}

// New builds a ledger from already-resolved paragraph edits.
func New(paragraphs []ParagraphEdit) Ledger {
	out := make([]ParagraphEdit, len(paragraphs))
	for i, p := range paragraphs {
		out[i] = p.clone()
	}
	return Ledger{paragraphs: out}
}

// Paragraphs returns a copy of the edits in ledger order.
func (l Ledger) Paragraphs() []ParagraphEdit {
	out := make([]ParagraphEdit, len(l.paragraphs))
	for i, p := range l.paragraphs {
		out[i] = p.clone()
	}
	return out
}

func (l Ledger) Len() int {
	return len(l.paragraphs)
}

func (l Ledger) IsEmpty() bool {
	return len(l.paragraphs) == 0
}

// Get returns the paragraph with the given logical index.
func (l Ledger) Get(index int) (ParagraphEdit, bool) {
	for _, p := range l.paragraphs {
		if p.Index == index {
			return p.clone(), true
		}
	}
	return ParagraphEdit{}, false
}

// Ingest resolves one stage's raw edits into a new ledger. Tags already held
// for a paragraph index are carried forward so a paragraph reviewed by an
// earlier stage keeps that attribution.
func (l Ledger) Ingest(raw []RawEdit, originalContent string, stages []editor.Stage) Ledger {
	sourceParagraphs := SplitParagraphs(originalContent)

	priorTags := make(map[int][]string, len(l.paragraphs))
	for _, p := range l.paragraphs {
		priorTags[p.Index] = p.Tags
	}

	out := make([]ParagraphEdit, 0, len(raw))
	for pos, r := range raw {
		index := pos
		if r.Index != nil {
			index = *r.Index
		}

		original := ""
		if r.Original != nil {
			original = *r.Original
		} else if index >= 0 && index < len(sourceParagraphs) {
			original = sourceParagraphs[index]
		}

		auto := normalize(original) == normalize(r.Edited)
		approved := decisionFrom(r.Approved)
		if auto {
			approved = Approved
		}

		tags := mergeTags(priorTags[index], r.Tags, stages)

		feedback := make(map[string][]FeedbackItem, len(stages)+len(r.Feedback))
		for _, s := range stages {
			feedback[s.ID] = []FeedbackItem{}
		}
		for category, items := range r.Feedback {
			converted := make([]FeedbackItem, 0, len(items))
			for _, item := range items {
				rule := item.Rule
				if rule == "" {
					rule = item.RuleUsed
				}
				converted = append(converted, FeedbackItem{
					Issue:    item.Issue,
					Fix:      item.Fix,
					Rule:     rule,
					Impact:   item.Impact,
					Priority: item.Priority,
					Approved: decisionFrom(item.Approved),
				})
			}
			feedback[category] = converted
		}

		level := r.Level
		if level < 0 {
			level = 0
		}

		out = append(out, ParagraphEdit{
			Index:        index,
			Original:     original,
			Edited:       r.Edited,
			Tags:         tags,
			Approved:     approved,
			AutoApproved: auto,
			BlockType:    ParseBlockType(r.BlockType),
			Level:        level,
			Feedback:     feedback,
		})
	}

	return Ledger{paragraphs: out}
}

// mergeTags appends the incoming tags and one "<Stage> (Reviewed)" tag per
// stage, skipping any stage whose name already appears in an existing tag.
func mergeTags(prior, incoming []string, stages []editor.Stage) []string {
	tags := make([]string, 0, len(prior)+len(incoming)+len(stages))
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		for _, existing := range tags {
			if strings.EqualFold(existing, tag) {
				return
			}
		}
		tags = append(tags, tag)
	}

	for _, t := range prior {
		add(t)
	}
	for _, t := range incoming {
		add(t)
	}
	for _, s := range stages {
		if !attributed(tags, s.Name) {
			add(s.ReviewedTag())
		}
	}
	return tags
}

func attributed(tags []string, stageName string) bool {
	name := strings.ToLower(stageName)
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), name) {
			return true
		}
	}
	return false
}

// Approve marks the paragraph with the given logical index approved.
func (l Ledger) Approve(index int) Ledger {
	return l.decide(index, Approved)
}

// Decline marks the paragraph with the given logical index rejected.
func (l Ledger) Decline(index int) Ledger {
	return l.decide(index, Rejected)
}

func (l Ledger) decide(index int, d Decision) Ledger {
	return l.update(func(p *ParagraphEdit) {
		if p.Index == index {
			p.Approved = d
		}
	})
}

// DecideFeedback sets the decision of one feedback item, addressed by
// paragraph index, category and position within the category. Missing
// targets leave the ledger unchanged.
func (l Ledger) DecideFeedback(index int, category string, position int, approved bool) Ledger {
	return l.update(func(p *ParagraphEdit) {
		if p.Index != index {
			return
		}
		items := p.Feedback[category]
		if position < 0 || position >= len(items) {
			return
		}
		items[position].Approved = DecisionOf(approved)
	})
}

// ApproveAllFeedback approves every feedback item. Paragraph-level
// approvals are left as they are.
func (l Ledger) ApproveAllFeedback() Ledger {
	return l.decideAllFeedback(Approved)
}

// RejectAllFeedback rejects every feedback item.
func (l Ledger) RejectAllFeedback() Ledger {
	return l.decideAllFeedback(Rejected)
}

func (l Ledger) decideAllFeedback(d Decision) Ledger {
	return l.update(func(p *ParagraphEdit) {
		for _, items := range p.Feedback {
			for i := range items {
				items[i].Approved = d
			}
		}
	})
}

// update applies fn to a deep copy of every paragraph.
func (l Ledger) update(fn func(p *ParagraphEdit)) Ledger {
	out := l.Paragraphs()
	for i := range out {
		fn(&out[i])
	}
	return Ledger{paragraphs: out}
}

// AllDecided reports whether the workflow may advance. It is true when every
// feedback item is decided, or when every paragraph and every feedback item
// is decided; the first condition alone is enough, so a ledger with no
// feedback at all counts as decided.
func (l Ledger) AllDecided() bool {
	feedbackDecided := true
	paragraphsDecided := true
	for _, p := range l.paragraphs {
		if !p.Approved.Decided() {
			paragraphsDecided = false
		}
		for _, items := range p.Feedback {
			for _, item := range items {
				if !item.Approved.Decided() {
					feedbackDecided = false
				}
			}
		}
	}
	return feedbackDecided || (paragraphsDecided && feedbackDecided)
}

// Pending returns the indices of paragraphs still needing a human decision.
func (l Ledger) Pending() []int {
	var out []int
	for _, p := range l.paragraphs {
		if !p.AutoApproved && !p.Approved.Decided() {
			out = append(out, p.Index)
		}
	}
	return out
}

// ReconstructOriginal joins the non-empty originals in ascending index order.
func (l Ledger) ReconstructOriginal() string {
	sorted := l.Paragraphs()
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		if strings.TrimSpace(p.Original) == "" {
			continue
		}
		parts = append(parts, p.Original)
	}
	return strings.Join(parts, "\n\n")
}

// FeedbackSummary counts feedback items by decision.
type FeedbackSummary struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Pending  int `json:"pending"`
}

func (l Ledger) FeedbackSummary() FeedbackSummary {
	var s FeedbackSummary
	for _, p := range l.paragraphs {
		for _, items := range p.Feedback {
			for _, item := range items {
				s.Total++
				switch item.Approved {
				case Approved:
					s.Approved++
				case Rejected:
					s.Rejected++
				default:
					s.Pending++
				}
			}
		}
	}
	return s
}

// ParagraphDecision is the per-paragraph decision sent to the revision
// service.
type ParagraphDecision struct {
	Index    int                          `json:"index"`
	Approved bool                         `json:"approved"`
	Feedback map[string][]FeedbackVerdict `json:"feedback_decisions,omitempty"`
}

// FeedbackVerdict is a single feedback item decision.
type FeedbackVerdict struct {
	Issue    string   `json:"issue"`
	Approved Decision `json:"approved"`
}

// Decisions builds the decision list using EffectiveApproval. When
// withFeedback is set each decision also carries its per-category feedback
// verdicts.
func (l Ledger) Decisions(withFeedback bool) []ParagraphDecision {
	out := make([]ParagraphDecision, 0, len(l.paragraphs))
	for _, p := range l.paragraphs {
		d := ParagraphDecision{Index: p.Index, Approved: EffectiveApproval(p)}
		if withFeedback && p.FeedbackCount() > 0 {
			d.Feedback = make(map[string][]FeedbackVerdict)
			for category, items := range p.Feedback {
				if len(items) == 0 {
					continue
				}
				verdicts := make([]FeedbackVerdict, 0, len(items))
				for _, item := range items {
					verdicts = append(verdicts, FeedbackVerdict{Issue: item.Issue, Approved: item.Approved})
				}
				d.Feedback[category] = verdicts
			}
		}
		out = append(out, d)
	}
	return out
}

// MarshalJSON renders the ledger as its paragraph list.
func (l Ledger) MarshalJSON() ([]byte, error) {
	paragraphs := l.paragraphs
	if paragraphs == nil {
		paragraphs = []ParagraphEdit{}
	}
	return json.Marshal(paragraphs)
}

func (l *Ledger) UnmarshalJSON(data []byte) error {
	var paragraphs []ParagraphEdit
	if err := json.Unmarshal(data, &paragraphs); err != nil {
		return err
	}
	l.paragraphs = paragraphs
	return nil
}

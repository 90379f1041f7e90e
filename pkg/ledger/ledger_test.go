package ledger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-editorial-be/pkg/editor"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

var lineStage = []editor.Stage{{ID: "line", Name: "Line Editor"}}

func TestIngestAutoApproval(t *testing.T) {
	original := "First paragraph stays.\n\nSecond paragraph  has a typo."
	raw := []RawEdit{
		{Edited: "First  paragraph\nstays."},
		{Edited: "Second paragraph has no typo."},
	}

	l := Ledger{}.Ingest(raw, original, lineStage)
	require.Equal(t, 2, l.Len())

	first, _ := l.Get(0)
	assert.True(t, first.AutoApproved)
	assert.Equal(t, Approved, first.Approved)
	assert.Equal(t, "First paragraph stays.", first.Original)

	second, _ := l.Get(1)
	assert.False(t, second.AutoApproved)
	assert.Equal(t, Undecided, second.Approved)
	assert.Equal(t, "Second paragraph  has a typo.", second.Original)

	assert.Equal(t, []int{1}, l.Pending())

	approved := l.Approve(1)
	p, _ := approved.Get(1)
	assert.Equal(t, Approved, p.Approved)

	// old snapshot is untouched
	p, _ = l.Get(1)
	assert.Equal(t, Undecided, p.Approved)
}

func TestIngestExplicitFields(t *testing.T) {
	raw := []RawEdit{
		{
			Index:     intPtr(7),
			Original:  strPtr("Old heading"),
			Edited:    "New heading",
			Approved:  boolPtr(false),
			BlockType: "heading",
			Level:     1,
			Feedback: map[string][]RawFeedback{
				"style": {{Issue: "passive voice", RuleUsed: "active-voice"}},
			},
		},
	}

	l := Ledger{}.Ingest(raw, "ignored", lineStage)
	p, ok := l.Get(7)
	require.True(t, ok)

	assert.Equal(t, "Old heading", p.Original)
	assert.Equal(t, Rejected, p.Approved)
	assert.Equal(t, BlockHeading, p.BlockType)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "active-voice", p.Feedback["style"][0].Rule)
	assert.Equal(t, Undecided, p.Feedback["style"][0].Approved)
	assert.NotNil(t, p.Feedback["line"])
	assert.Empty(t, p.Feedback["line"])
}

func TestIngestIdempotentOnAutoApproved(t *testing.T) {
	original := "Same text."
	raw := []RawEdit{{Edited: "Same text.", Approved: boolPtr(false)}}

	l := Ledger{}.Ingest(raw, original, lineStage)
	for i := 0; i < 3; i++ {
		l = l.Ingest(raw, original, lineStage)
		p, _ := l.Get(0)
		assert.Equal(t, Approved, p.Approved)
		assert.True(t, p.AutoApproved)
	}
}

func TestIngestTagsDeduplicated(t *testing.T) {
	stages := []editor.Stage{{ID: "line", Name: "Line Editor"}, {ID: "copy", Name: "Copy Editor"}}
	raw := []RawEdit{{Edited: "x", Tags: []string{"line editor (reviewed)"}}}

	l := Ledger{}.Ingest(raw, "y", stages)
	p, _ := l.Get(0)
	assert.Equal(t, []string{"line editor (reviewed)", "Copy Editor (Reviewed)"}, p.Tags)

	l = l.Ingest(raw, "y", stages)
	p, _ = l.Get(0)
	assert.Equal(t, []string{"line editor (reviewed)", "Copy Editor (Reviewed)"}, p.Tags)
}

func TestApproveMissingIndexIsNoop(t *testing.T) {
	l := Ledger{}.Ingest([]RawEdit{{Edited: "b"}}, "a", lineStage)
	before, _ := json.Marshal(l)
	after, _ := json.Marshal(l.Approve(42).Decline(-1))
	assert.JSONEq(t, string(before), string(after))
}

func TestAllDecided(t *testing.T) {
	withFeedback := []RawEdit{
		{Edited: "b", Feedback: map[string][]RawFeedback{"line": {{Issue: "one"}, {Issue: "two"}}}},
		{Edited: "d"},
	}
	original := "a\n\nc"

	tests := []struct {
		name   string
		ledger func() Ledger
		want   bool
	}{
		{
			name:   "no feedback counts as decided even with undecided paragraphs",
			ledger: func() Ledger { return Ledger{}.Ingest([]RawEdit{{Edited: "b"}}, "a", lineStage) },
			want:   true,
		},
		{
			name:   "undecided feedback blocks",
			ledger: func() Ledger { return Ledger{}.Ingest(withFeedback, original, lineStage) },
			want:   false,
		},
		{
			name: "decided paragraphs do not unblock undecided feedback",
			ledger: func() Ledger {
				return Ledger{}.Ingest(withFeedback, original, lineStage).Approve(0).Approve(1)
			},
			want: false,
		},
		{
			name: "bulk feedback approval unblocks without paragraph decisions",
			ledger: func() Ledger {
				return Ledger{}.Ingest(withFeedback, original, lineStage).ApproveAllFeedback()
			},
			want: true,
		},
		{
			name: "single feedback decisions",
			ledger: func() Ledger {
				return Ledger{}.Ingest(withFeedback, original, lineStage).
					DecideFeedback(0, "line", 0, true).
					DecideFeedback(0, "line", 1, false)
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ledger().AllDecided())
		})
	}
}

func TestEffectiveApproval(t *testing.T) {
	tests := []struct {
		name string
		p    ParagraphEdit
		want bool
	}{
		{"approved", ParagraphEdit{Approved: Approved}, true},
		{"rejected wins over approved feedback", ParagraphEdit{
			Approved: Rejected,
			Feedback: map[string][]FeedbackItem{"line": {{Approved: Approved}}},
		}, false},
		{"undecided with approved feedback", ParagraphEdit{
			Feedback: map[string][]FeedbackItem{"line": {{Approved: Rejected}, {Approved: Approved}}},
		}, true},
		{"undecided without approved feedback", ParagraphEdit{
			Feedback: map[string][]FeedbackItem{"line": {{Approved: Rejected}}},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveApproval(tt.p))
		})
	}
}

func TestReconstructOriginalRoundTrip(t *testing.T) {
	original := "Title\n\nFirst body line\ncontinues here.\n\n  Last one.  "
	raw := []RawEdit{{Edited: "T"}, {Edited: "B"}, {Edited: "L"}}

	l := Ledger{}.Ingest(raw, original, lineStage)
	rebuilt := l.ReconstructOriginal()
	assert.Equal(t, "Title\n\nFirst body line\ncontinues here.\n\nLast one.", rebuilt)

	again := Ledger{}.Ingest(raw, rebuilt, lineStage)
	for _, p := range l.Paragraphs() {
		q, ok := again.Get(p.Index)
		require.True(t, ok)
		assert.Equal(t, p.Original, q.Original)
	}
}

func TestReconstructOriginalSortsAndSkipsEmpty(t *testing.T) {
	l := New([]ParagraphEdit{
		{Index: 2, Original: "c"},
		{Index: 0, Original: "a"},
		{Index: 1, Original: "  "},
	})
	assert.Equal(t, "a\n\nc", l.ReconstructOriginal())
}

func TestDecisionsAndSummary(t *testing.T) {
	l := New([]ParagraphEdit{
		{Index: 0, Approved: Approved},
		{Index: 1, Feedback: map[string][]FeedbackItem{
			"copy": {{Issue: "comma", Approved: Approved}, {Issue: "tone"}},
			"line": {},
		}},
		{Index: 2, Approved: Rejected},
	})

	plain := l.Decisions(false)
	require.Len(t, plain, 3)
	assert.True(t, plain[0].Approved)
	assert.True(t, plain[1].Approved)
	assert.False(t, plain[2].Approved)
	assert.Nil(t, plain[1].Feedback)

	detailed := l.Decisions(true)
	assert.Len(t, detailed[1].Feedback["copy"], 2)
	assert.NotContains(t, detailed[1].Feedback, "line")

	assert.Equal(t, FeedbackSummary{Total: 2, Approved: 1, Pending: 1}, l.FeedbackSummary())
}

func TestDecisionJSON(t *testing.T) {
	p := ParagraphEdit{Index: 3, Approved: Rejected}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"approved":false`)

	var back ParagraphEdit
	require.NoError(t, json.Unmarshal([]byte(`{"index":1,"approved":null}`), &back))
	assert.Equal(t, Undecided, back.Approved)
}

func TestRawEditAliases(t *testing.T) {
	var r RawEdit
	require.NoError(t, json.Unmarshal([]byte(`{"original_text":"a","edited_text":"b","index":4}`), &r))
	assert.Equal(t, "b", r.Edited)
	require.NotNil(t, r.Original)
	assert.Equal(t, "a", *r.Original)
	assert.Equal(t, 4, *r.Index)
}

func TestLedgerJSON(t *testing.T) {
	l := Ledger{}.Ingest([]RawEdit{{Edited: "b"}}, "a", lineStage)
	data, err := json.Marshal(l)
	require.NoError(t, err)

	var back Ledger
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, l.Paragraphs(), back.Paragraphs())

	empty, _ := json.Marshal(Ledger{})
	assert.Equal(t, "[]", string(empty))
}

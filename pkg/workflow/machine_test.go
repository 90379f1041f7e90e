package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/ledger"
	"ai-editorial-be/pkg/revision"
)

func TestMachineSelectionFlow(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())

	tr, err := m.Begin(NewState(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingStageSelection, tr.State.Step)
	require.Len(t, tr.Messages, 1)
	assert.Equal(t, MessagePrompt, tr.Messages[0].Kind)

	tr, err = m.SubmitSelection(tr.State, "1,3")
	require.NoError(t, err)
	assert.Equal(t, EffectScheduleAdvance, tr.Effect)
	assert.Equal(t, []string{"development", "line", "brand-alignment"}, tr.State.SelectedStageIDs)
	assert.Equal(t, StepAwaitingStageSelection, tr.State.Step, "advance is deferred")

	adv, ok := m.AdvanceSelection(tr.State, tr.State.Revision)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingContent, adv.State.Step)

	tr2, err := m.SubmitSelection(adv.State, "please just start")
	assert.ErrorIs(t, err, ErrUploadRequired)
	assert.Equal(t, adv.State.Revision, tr2.State.Revision)
	assert.Contains(t, tr2.Messages[0].Text, "Upload required")

	tr3, err := m.SubmitContent(adv.State, "Para one.\n\nPara two.")
	require.NoError(t, err)
	assert.Equal(t, StepProcessing, tr3.State.Step)
	assert.Equal(t, EffectStartRevision, tr3.Effect)
	assert.Equal(t, 3, tr3.State.Continuation.TotalStageCount)

	req := StartRequest(tr3.State)
	assert.Equal(t, "Para one.\n\nPara two.", req.Content)
	assert.True(t, req.Sequential)
}

func TestMachineInvalidSelectionLeavesStateUnchanged(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	tr, _ := m.Begin(NewState(), nil, "")

	bad, err := m.SubmitSelection(tr.State, "1-2, 9")
	var invalid *editor.InvalidSelectionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, []string{"9"}, invalid.Invalid)
	assert.Equal(t, []int{1, 2}, invalid.Valid)
	assert.Equal(t, tr.State.Revision, bad.State.Revision)
	assert.Empty(t, bad.State.SelectedStageIDs)
	assert.Contains(t, bad.Messages[0].Text, "9")
}

func TestMachineAdvanceSelectionStale(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	tr, _ := m.Begin(NewState(), nil, "")
	tr, _ = m.SubmitSelection(tr.State, "2")
	scheduled := tr.State.Revision

	cancelled, err := m.Cancel(tr.State)
	require.NoError(t, err)

	_, ok := m.AdvanceSelection(cancelled.State, scheduled)
	assert.False(t, ok)
}

func TestMachineBeginShortcuts(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())

	tr, err := m.Begin(NewState(), []string{"copy"}, "Some text")
	require.NoError(t, err)
	assert.Equal(t, StepProcessing, tr.State.Step)
	assert.Equal(t, []string{"copy", "brand-alignment"}, tr.State.SelectedStageIDs)

	tr, err = m.Begin(NewState(), []string{"line"}, "")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingContent, tr.State.Step)

	tr, err = m.Begin(NewState(), nil, "Remember me")
	require.NoError(t, err)
	assert.Equal(t, StepAwaitingStageSelection, tr.State.Step)
	tr, _ = m.SubmitSelection(tr.State, "line")
	adv, ok := m.AdvanceSelection(tr.State, tr.State.Revision)
	require.True(t, ok)
	assert.Equal(t, StepProcessing, adv.State.Step)
	assert.Equal(t, "Remember me", adv.State.OriginalContent)

	_, err = m.Begin(adv.State, nil, "")
	assert.ErrorIs(t, err, ErrWrongStep)
}

func reviewState(t *testing.T, m *Machine) State {
	t.Helper()
	tr, err := m.Begin(NewState(), []string{"line"}, "Same.\n\nOld.")
	require.NoError(t, err)
	s, _ := m.Interpreter().Apply(tr.State, revision.StageComplete{
		StageID: "line", StageIndex: 0, ThreadRef: "thread-9", Sequential: true, IsLastStage: boolPtr(false),
		Edits: []ledger.RawEdit{
			{Edited: "Same."},
			{Edited: "New.", Feedback: map[string][]ledger.RawFeedback{"line": {{Issue: "tense"}}}},
		},
	})
	require.Equal(t, StepAwaitingApproval, s.Step)
	return s
}

func TestMachineApprovalAndAdvance(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	s := reviewState(t, m)

	_, blocked, err := m.PrepareAdvance(s, "")
	assert.ErrorIs(t, err, ErrNotAllDecided)
	assert.Equal(t, s.Revision, blocked.State.Revision)
	require.Len(t, blocked.Messages, 1)
	assert.IsType(t, Review{}, blocked.Messages[0].Data)

	_, err = m.Approve(s, 99)
	assert.ErrorIs(t, err, ErrParagraphNotFound)

	tr, err := m.Approve(s, 1)
	require.NoError(t, err)
	tr, err = m.DecideFeedback(tr.State, 1, "line", 0, false)
	require.NoError(t, err)

	req, next, err := m.PrepareAdvance(tr.State, "")
	require.NoError(t, err)
	assert.Equal(t, "thread-9", req.ThreadRef)
	assert.True(t, req.AcceptAll)
	assert.Equal(t, StepProcessing, next.State.Step)
	assert.Equal(t, 1, next.State.Continuation.CurrentStageIndex)
	assert.Equal(t, "brand-alignment", next.State.CurrentStageID)
	assert.Equal(t, StageCompleted, next.State.Progress[0].Status)
	assert.Equal(t, StageProcessing, next.State.Progress[1].Status)
}

func TestMachineBulkFeedbackUnblocks(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	s := reviewState(t, m)

	tr, err := m.DecideAllFeedback(s, true)
	require.NoError(t, err)
	review := tr.Messages[0].Data.(Review)
	assert.True(t, review.AllDecided)
	assert.Equal(t, []int{1}, review.Pending)

	_, _, err = m.PrepareAdvance(tr.State, "")
	assert.NoError(t, err)
}

func TestMachineFinalize(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	s := reviewState(t, m)
	tr, err := m.DecideAllFeedback(s, false)
	require.NoError(t, err)
	s = tr.State

	req, _, err := m.PrepareFinalize(s, true)
	require.NoError(t, err)
	assert.True(t, req.IncludeQualityChecks)
	assert.False(t, req.IncludeCopyCheck)
	assert.Equal(t, "Same.\n\nOld.", req.OriginalContent)

	done := m.CompleteFinalize(s, &revision.FinalizeResponse{
		FinalArticle: "Same.\n\nNew.",
		BlockTypes:   []revision.BlockTypeInfo{{Index: 0, Type: "title"}},
	})
	assert.Equal(t, EffectScheduleReset, done.Effect)
	assert.Equal(t, "# Same.\n\nNew.", done.State.FinalDocument)

	_, _, err = m.PrepareFinalize(done.State, true)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	reset, ok := m.Complete(done.State, done.State.Revision)
	require.True(t, ok)
	assert.Equal(t, StepIdle, reset.State.Step)
}

func TestMachineFinalizedLedgerIsClosed(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	tr, err := m.DecideAllFeedback(reviewState(t, m), true)
	require.NoError(t, err)

	done := m.CompleteFinalize(tr.State, &revision.FinalizeResponse{FinalArticle: "Same.\n\nNew."})
	scheduledAt := done.State.Revision

	tests := []struct {
		name string
		run  func(s State) (Transition, error)
	}{
		{"approve", func(s State) (Transition, error) { return m.Approve(s, 1) }},
		{"decline", func(s State) (Transition, error) { return m.Decline(s, 1) }},
		{"feedback", func(s State) (Transition, error) { return m.DecideFeedback(s, 1, "line", 0, false) }},
		{"bulk feedback", func(s State) (Transition, error) { return m.DecideAllFeedback(s, false) }},
		{"advance", func(s State) (Transition, error) {
			_, t, err := m.PrepareAdvance(s, "")
			return t, err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run(done.State)
			assert.ErrorIs(t, err, ErrAlreadyFinalized)
			assert.Equal(t, done.State.Revision, got.State.Revision)
		})
	}

	// Stream events arriving during the reset delay do not postpone it.
	late, _ := m.Interpreter().Apply(done.State, revision.StageProgress{StageID: "line", StageIndex: 0})
	reset, ok := m.Complete(late, scheduledAt)
	require.True(t, ok)
	assert.Equal(t, StepIdle, reset.State.Step)
	assert.Empty(t, reset.State.FinalDocument)
}

func TestMachineCompleteSkipsRestartedWorkflow(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())
	tr, err := m.DecideAllFeedback(reviewState(t, m), true)
	require.NoError(t, err)
	done := m.CompleteFinalize(tr.State, &revision.FinalizeResponse{FinalArticle: "Same."})

	cancelled, err := m.Cancel(done.State)
	require.NoError(t, err)
	_, ok := m.Complete(cancelled.State, done.State.Revision)
	assert.False(t, ok)

	restarted, err := m.Begin(cancelled.State, []string{"line"}, "Other.")
	require.NoError(t, err)
	_, ok = m.Complete(restarted.State, done.State.Revision)
	assert.False(t, ok)
}

func TestMachineCancel(t *testing.T) {
	m := NewMachine(editor.DefaultCatalog())

	tr, _ := m.Begin(NewState(), []string{"line"}, "text")
	_, err := m.Cancel(tr.State)
	assert.ErrorIs(t, err, ErrProcessingNotCancellable)

	tr, _ = m.Begin(NewState(), []string{"line"}, "")
	tr2, err := m.SubmitSelection(tr.State, "cancel")
	require.NoError(t, err)
	assert.Equal(t, StepIdle, tr2.State.Step)
}

func TestNoNextStageOnLastStage(t *testing.T) {
	s := State{Step: StepAwaitingApproval, Continuation: Continuation{ThreadRef: "t", IsLastStage: true}}
	_, err := BuildContinueRequest(s, "")
	assert.ErrorIs(t, err, ErrNoNextStage)

	s.Continuation.IsLastStage = false
	s.Continuation.ThreadRef = ""
	_, err = BuildContinueRequest(s, "")
	assert.ErrorIs(t, err, ErrNoThreadRef)

	req, err := BuildContinueRequest(s, "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", req.ThreadRef)
	assert.False(t, req.AcceptAll)
	assert.False(t, req.RejectAll)
}

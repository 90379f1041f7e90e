package workflow

import (
	"fmt"
	"strings"

	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/ledger"
	"ai-editorial-be/pkg/revision"
)

// Interpreter folds revision stream events into workflow state.
type Interpreter struct {
	catalog *editor.Catalog
}

func NewInterpreter(catalog *editor.Catalog) *Interpreter {
	return &Interpreter{catalog: catalog}
}

// Apply returns the state after ev and the messages it produces. Unknown
// events leave the state untouched, as does any event reaching an idle or
// finalized workflow.
func (in *Interpreter) Apply(s State, ev revision.Event) (State, []Message) {
	if s.Step == StepIdle || s.FinalDocument != "" {
		return s, nil
	}
	switch e := ev.(type) {
	case revision.StageProgress:
		return in.stageProgress(s, e)
	case revision.ContentChunk:
		if e.Text == "" {
			return s, nil
		}
		return s.with(func(n *State) { n.RawBuffer += e.Text }), nil
	case revision.StageComplete:
		return in.stageComplete(s, e)
	case revision.StageError:
		return in.stageError(s, e)
	case revision.FinalComplete:
		return in.finalComplete(s, e)
	default:
		return s, nil
	}
}

func (in *Interpreter) stageProgress(s State, e revision.StageProgress) (State, []Message) {
	idx := e.StageIndex
	if idx < 0 && e.StageID != "" {
		idx = s.stageIndex(e.StageID)
	}

	next := s.with(func(n *State) {
		if idx >= 0 {
			n.Continuation.CurrentStageIndex = idx
		}
		if n.Continuation.TotalStageCount == 0 && e.TotalStages > 0 {
			n.Continuation.TotalStageCount = e.TotalStages
		}
		if e.StageID != "" {
			n.CurrentStageID = e.StageID
		}
		rederiveProgress(n.Progress, n.Continuation.CurrentStageIndex)
	})

	name := in.catalog.DisplayName(next.CurrentStageID)
	text := fmt.Sprintf("Running %s (%d of %d)", name, next.Continuation.CurrentStageIndex+1, next.Continuation.TotalStageCount)
	if e.Message != "" {
		text += ": " + e.Message
	}
	return next, []Message{{Kind: MessageUpdate, Text: text, Data: next.Progress}}
}

// rederiveProgress sets every stage before current to completed, current to
// processing and the rest to pending. Errored stages keep their status.
func rederiveProgress(progress []StageProgress, current int) {
	for i := range progress {
		if progress[i].Status == StageErrored {
			continue
		}
		switch {
		case i < current:
			progress[i].Status = StageCompleted
		case i == current:
			progress[i].Status = StageProcessing
		default:
			progress[i].Status = StagePending
		}
	}
}

func (in *Interpreter) stageComplete(s State, e revision.StageComplete) (State, []Message) {
	stageID := e.StageID
	if stageID == "" {
		stageID = s.CurrentStageID
	}

	next := s.with(func(n *State) {
		if e.Sequential {
			n.Continuation.Sequential = true
		}
		captureThreadRef(n, e.ThreadRef)
		if e.StageIndex >= 0 {
			n.Continuation.CurrentStageIndex = e.StageIndex
		}
		if n.Continuation.TotalStageCount == 0 && e.TotalStages > 0 {
			n.Continuation.TotalStageCount = e.TotalStages
		}
		if e.IsLastStage != nil && !n.Continuation.FinalReceived {
			n.Continuation.IsLastStage = *e.IsLastStage
		}
		if stageID != "" {
			n.CurrentStageID = stageID
		}
		if i := n.progressIndex(stageID); i >= 0 {
			n.Progress[i].Status = StageCompleted
		}
	})

	name := in.catalog.DisplayName(stageID)
	if len(e.Edits) == 0 {
		return next, []Message{{Kind: MessageUpdate, Text: name + " completed", Data: next.Progress}}
	}

	next = next.with(func(n *State) {
		n.Ledger = s.Ledger.Ingest(e.Edits, n.OriginalContent, in.reviewedStages(n, stageID))
		n.Step = StepAwaitingApproval
	})
	return next, []Message{in.reviewMessage(next, stageID, name+" finished")}
}

// captureThreadRef keeps the first thread reference seen once the service
// has signalled sequential mode.
func captureThreadRef(n *State, ref string) {
	if ref != "" && n.Continuation.ThreadRef == "" && n.Continuation.Sequential {
		n.Continuation.ThreadRef = ref
	}
}

func (in *Interpreter) stageError(s State, e revision.StageError) (State, []Message) {
	stageID := e.StageID
	if stageID == "" {
		stageID = s.CurrentStageID
	}
	name := in.catalog.DisplayName(stageID)
	msg := e.Message
	if msg == "" {
		msg = "unknown error"
	}

	next := s.with(func(n *State) {
		if i := n.progressIndex(stageID); i >= 0 {
			n.Progress[i].Status = StageErrored
			n.Progress[i].Error = msg
		}
		n.Failures = append(n.Failures, StageFailure{StageID: stageID, Name: name, Message: msg})
	})

	text := fmt.Sprintf("%s failed: %s. Continuing with the most recent output.", name, msg)
	return next, []Message{{Kind: MessageUpdate, Text: text, Data: next.Progress}}
}

func (in *Interpreter) finalComplete(s State, e revision.FinalComplete) (State, []Message) {
	next := s.with(func(n *State) {
		n.Continuation.IsLastStage = true
		n.Continuation.FinalReceived = true
		captureThreadRef(n, e.ThreadRef)
		for i := range n.Progress {
			if n.Progress[i].Status != StageErrored {
				n.Progress[i].Status = StageCompleted
			}
		}
	})
	messages := []Message{{Kind: MessageUpdate, Text: "All editors finished", Data: next.Progress}}

	edits := e.Edits
	original := next.OriginalContent
	if len(edits) == 0 && e.OriginalContent != "" && e.FinalContent != "" {
		edits = ledger.SynthesizeEdits(e.OriginalContent, e.FinalContent)
		original = e.OriginalContent
	}

	if len(edits) == 0 {
		if e.FinalContent != "" && next.RawBuffer == "" {
			next = next.with(func(n *State) { n.RawBuffer = e.FinalContent })
		}
		return next, messages
	}

	next = next.with(func(n *State) {
		if n.OriginalContent == "" {
			n.OriginalContent = original
		}
		n.Ledger = s.Ledger.Ingest(edits, original, in.reviewedStages(n, n.CurrentStageID))
		n.Step = StepAwaitingApproval
	})
	return next, append(messages, in.reviewMessage(next, next.CurrentStageID, "Revision complete"))
}

// reviewedStages is the stage a ledger was produced by, or every selected
// stage when a single stream ran them all.
func (in *Interpreter) reviewedStages(s *State, stageID string) []editor.Stage {
	if stage, ok := in.catalog.ByID(stageID); ok && s.Continuation.Sequential {
		return []editor.Stage{stage}
	}
	return in.catalog.Resolve(s.SelectedStageIDs)
}

func (in *Interpreter) reviewMessage(s State, stageID, headline string) Message {
	review := ReviewOf(s, in.catalog)
	review.StageID = stageID
	review.StageName = in.catalog.DisplayName(stageID)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d paragraphs, %d need review", headline, s.Ledger.Len(), len(review.Pending))
	if review.Feedback.Total > 0 {
		fmt.Fprintf(&b, ", %d feedback items", review.Feedback.Total)
	}
	return Message{Kind: MessageResult, Text: b.String(), Data: review}
}

// ReviewOf builds the review payload for the current ledger.
func ReviewOf(s State, catalog *editor.Catalog) Review {
	return Review{
		StageID:     s.CurrentStageID,
		StageName:   catalog.DisplayName(s.CurrentStageID),
		Paragraphs:  s.Ledger.Paragraphs(),
		Pending:     s.Ledger.Pending(),
		Feedback:    s.Ledger.FeedbackSummary(),
		AllDecided:  s.Ledger.AllDecided(),
		IsLastStage: s.Continuation.IsLastStage,
	}
}

// Finish applies the end-of-stream rule. A non-nil err is a transport
// failure and resets the workflow unless it is already idle or finalized.
func (in *Interpreter) Finish(s State, err error) (State, []Message) {
	if s.Step == StepIdle || s.FinalDocument != "" {
		return s, nil
	}
	if err != nil {
		return s.Reset(), []Message{update("Something went wrong while revising your document. Please try again.")}
	}

	var messages []Message
	if len(s.Failures) > 0 {
		parts := make([]string, 0, len(s.Failures))
		for _, f := range s.Failures {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Name, f.Message))
		}
		messages = append(messages, update("Some editors reported errors: "+strings.Join(parts, "; ")))
	}

	switch s.Step {
	case StepProcessing:
		if strings.TrimSpace(s.RawBuffer) != "" {
			messages = append(messages, Message{Kind: MessageResult, Text: s.RawBuffer})
		} else {
			messages = append(messages, update("The revision ended before any results were produced."))
		}
		return s.Reset(), messages
	case StepAwaitingApproval:
		next := "continue to the next editor"
		if s.Continuation.IsLastStage || !s.Continuation.Sequential {
			next = "generate the final output"
		}
		messages = append(messages, prompt("Approve or reject each edit, then "+next+"."))
		return s, messages
	default:
		return s, messages
	}
}

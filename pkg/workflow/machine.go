package workflow

import (
	"errors"
	"fmt"
	"strings"

	"ai-editorial-be/pkg/editor"
	"ai-editorial-be/pkg/revision"
)

var (
	ErrWrongStep                = errors.New("command is not allowed in the current step")
	ErrUploadRequired           = errors.New("please upload a document to continue")
	ErrEmptyContent             = errors.New("document content is empty")
	ErrProcessingNotCancellable = errors.New("revision is in progress and cannot be cancelled")
	ErrAlreadyFinalized         = errors.New("final document has already been generated")
	ErrParagraphNotFound        = errors.New("paragraph not found")
	ErrFeedbackNotFound         = errors.New("feedback item not found")
)

// Effect tells the caller which follow-up work a transition needs.
type Effect int

const (
	EffectNone Effect = iota
	// EffectScheduleAdvance asks for AdvanceSelection after the selection
	// debounce delay.
	EffectScheduleAdvance
	// EffectStartRevision asks for a start request built by StartRequest.
	EffectStartRevision
	// EffectScheduleReset asks for a reset after the completion delay.
	EffectScheduleReset
)

// Transition is the outcome of a command. When a command fails, State is the
// unchanged input and Messages carries what the user should see.
type Transition struct {
	State    State
	Messages []Message
	Effect   Effect
}

// Machine applies user commands to workflow state.
type Machine struct {
	catalog *editor.Catalog
	interp  *Interpreter
}

func NewMachine(catalog *editor.Catalog) *Machine {
	return &Machine{catalog: catalog, interp: NewInterpreter(catalog)}
}

func (m *Machine) Catalog() *editor.Catalog {
	return m.catalog
}

func (m *Machine) Interpreter() *Interpreter {
	return m.interp
}

func (m *Machine) stuck(s State, err error, messages ...Message) (Transition, error) {
	return Transition{State: s, Messages: messages}, err
}

func wrongStep(s State) error {
	return fmt.Errorf("%w: %s", ErrWrongStep, s.Step)
}

// reviewable reports whether the ledger still accepts decisions. A finalized
// workflow only waits for its reset.
func reviewable(s State) error {
	if s.FinalDocument != "" {
		return ErrAlreadyFinalized
	}
	if s.Step != StepAwaitingApproval {
		return wrongStep(s)
	}
	return nil
}

// Begin starts a workflow. Pre-selected stages and content let it skip the
// matching prompts.
func (m *Machine) Begin(s State, stageIDs []string, content string) (Transition, error) {
	if s.Step != StepIdle {
		return m.stuck(s, wrongStep(s))
	}
	content = strings.TrimSpace(content)

	if len(stageIDs) == 0 {
		next := s.with(func(n *State) {
			*n = State{Step: StepAwaitingStageSelection, UploadedContent: content}
		})
		return Transition{State: next, Messages: []Message{prompt(m.catalog.Menu())}}, nil
	}

	selected, err := m.catalog.Normalize(stageIDs)
	if err != nil {
		return m.stuck(s, err, prompt(err.Error()+"\n\n"+m.catalog.Menu()))
	}

	base := s.with(func(n *State) {
		*n = State{SelectedStageIDs: selected, UploadedContent: content}
	})
	if content != "" {
		return m.startProcessing(base, content), nil
	}
	return m.awaitContent(base), nil
}

// SubmitSelection handles free-form text. While a document is awaited only
// cancel keywords are accepted.
func (m *Machine) SubmitSelection(s State, text string) (Transition, error) {
	switch s.Step {
	case StepAwaitingStageSelection:
	case StepAwaitingContent:
		sel, err := m.catalog.ParseSelection(text)
		if err == nil && sel.Intent == editor.IntentCancel {
			return m.Cancel(s)
		}
		return m.stuck(s, ErrUploadRequired, prompt("Upload required: please upload the document you want revised."))
	default:
		return m.stuck(s, wrongStep(s))
	}

	sel, err := m.catalog.ParseSelection(text)
	if err != nil {
		return m.stuck(s, err, prompt(err.Error()+"\n\n"+m.catalog.Menu()))
	}

	switch sel.Intent {
	case editor.IntentCancel:
		return m.Cancel(s)
	case editor.IntentProceed:
		if len(s.SelectedStageIDs) == 0 {
			return m.stuck(s, editor.ErrEmptySelection, prompt(editor.ErrEmptySelection.Error()+"\n\n"+m.catalog.Menu()))
		}
		return Transition{State: s.with(func(*State) {}), Effect: EffectScheduleAdvance,
			Messages: []Message{update("Selected: " + m.stageNames(s.SelectedStageIDs))}}, nil
	}

	next := s.with(func(n *State) { n.SelectedStageIDs = sel.StageIDs })
	return Transition{
		State:    next,
		Messages: []Message{update("Selected: " + m.stageNames(sel.StageIDs))},
		Effect:   EffectScheduleAdvance,
	}, nil
}

// AdvanceSelection is the delayed step after a selection. It only fires when
// s is still the snapshot the delay was scheduled from.
func (m *Machine) AdvanceSelection(s State, scheduledAt int64) (Transition, bool) {
	if s.Revision != scheduledAt || s.Step != StepAwaitingStageSelection || len(s.SelectedStageIDs) == 0 {
		return Transition{State: s}, false
	}
	if s.UploadedContent != "" {
		return m.startProcessing(s, s.UploadedContent), true
	}
	return m.awaitContent(s), true
}

// SubmitContent supplies the document text. During stage selection the text
// is remembered and used once the selection advances.
func (m *Machine) SubmitContent(s State, content string) (Transition, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return m.stuck(s, ErrEmptyContent, prompt("The document is empty. Please upload a document with text."))
	}

	switch s.Step {
	case StepAwaitingContent:
		return m.startProcessing(s, content), nil
	case StepAwaitingStageSelection:
		next := s.with(func(n *State) { n.UploadedContent = content })
		return Transition{State: next, Messages: []Message{update("Document received. Select the editors to run.")}}, nil
	default:
		return m.stuck(s, wrongStep(s))
	}
}

func (m *Machine) awaitContent(s State) Transition {
	next := s.with(func(n *State) { n.Step = StepAwaitingContent })
	return Transition{State: next, Messages: []Message{prompt("Please upload the document you want revised (.pdf, .docx, .doc, .txt or .md).")}}
}

func (m *Machine) startProcessing(s State, content string) Transition {
	next := s.with(func(n *State) {
		n.Step = StepProcessing
		n.UploadedContent = content
		n.OriginalContent = content
		n.Continuation = Continuation{TotalStageCount: len(n.SelectedStageIDs)}
		n.Progress = make([]StageProgress, len(n.SelectedStageIDs))
		for i, id := range n.SelectedStageIDs {
			n.Progress[i] = StageProgress{StageID: id, Name: m.catalog.DisplayName(id), Status: StagePending}
		}
		if len(n.Progress) > 0 {
			n.Progress[0].Status = StageProcessing
			n.CurrentStageID = n.Progress[0].StageID
		}
		n.Failures = nil
		n.RawBuffer = ""
		n.FinalDocument = ""
		n.FinalizedAt = 0
	})
	text := fmt.Sprintf("Starting revision with %d editors: %s", len(next.SelectedStageIDs), m.stageNames(next.SelectedStageIDs))
	return Transition{State: next, Messages: []Message{{Kind: MessageUpdate, Text: text, Data: next.Progress}}, Effect: EffectStartRevision}
}

// StartRequest is the revision request for a state produced with
// EffectStartRevision.
func StartRequest(s State) revision.StartRequest {
	return revision.StartRequest{
		Content:          s.OriginalContent,
		SelectedStageIDs: append([]string(nil), s.SelectedStageIDs...),
		Sequential:       true,
	}
}

func (m *Machine) Approve(s State, index int) (Transition, error) {
	return m.decide(s, index, true)
}

func (m *Machine) Decline(s State, index int) (Transition, error) {
	return m.decide(s, index, false)
}

func (m *Machine) decide(s State, index int, approved bool) (Transition, error) {
	if err := reviewable(s); err != nil {
		return m.stuck(s, err)
	}
	if _, ok := s.Ledger.Get(index); !ok {
		return m.stuck(s, fmt.Errorf("%w: %d", ErrParagraphNotFound, index))
	}

	next := s.with(func(n *State) {
		if approved {
			n.Ledger = s.Ledger.Approve(index)
		} else {
			n.Ledger = s.Ledger.Decline(index)
		}
	})
	verb := "declined"
	if approved {
		verb = "approved"
	}
	return m.reviewUpdate(next, fmt.Sprintf("Paragraph %d %s", index, verb)), nil
}

// DecideFeedback approves or rejects one feedback item.
func (m *Machine) DecideFeedback(s State, index int, category string, position int, approved bool) (Transition, error) {
	if err := reviewable(s); err != nil {
		return m.stuck(s, err)
	}
	p, ok := s.Ledger.Get(index)
	if !ok {
		return m.stuck(s, fmt.Errorf("%w: %d", ErrParagraphNotFound, index))
	}
	if position < 0 || position >= len(p.Feedback[category]) {
		return m.stuck(s, fmt.Errorf("%w: %s[%d]", ErrFeedbackNotFound, category, position))
	}

	next := s.with(func(n *State) { n.Ledger = s.Ledger.DecideFeedback(index, category, position, approved) })
	return m.reviewUpdate(next, "Feedback updated"), nil
}

// DecideAllFeedback approves or rejects every feedback item at once.
func (m *Machine) DecideAllFeedback(s State, approved bool) (Transition, error) {
	if err := reviewable(s); err != nil {
		return m.stuck(s, err)
	}
	next := s.with(func(n *State) {
		if approved {
			n.Ledger = s.Ledger.ApproveAllFeedback()
		} else {
			n.Ledger = s.Ledger.RejectAllFeedback()
		}
	})
	text := "All feedback rejected"
	if approved {
		text = "All feedback approved"
	}
	return m.reviewUpdate(next, text), nil
}

func (m *Machine) reviewUpdate(s State, text string) Transition {
	return Transition{State: s, Messages: []Message{{Kind: MessageUpdate, Text: text, Data: ReviewOf(s, m.catalog)}}}
}

// PrepareAdvance validates that the pipeline may move to its next stage. On
// success it returns the continuation request and the processing state to
// enter once the service accepted it. On failure the ledger is re-sent with
// a warning.
func (m *Machine) PrepareAdvance(s State, threadRef string) (revision.ContinueRequest, Transition, error) {
	if err := reviewable(s); err != nil {
		t, err := m.stuck(s, err)
		return revision.ContinueRequest{}, t, err
	}

	req, err := BuildContinueRequest(s, threadRef)
	if err != nil {
		t, err := m.stuck(s, err, Message{Kind: MessagePrompt, Text: err.Error(), Data: ReviewOf(s, m.catalog)})
		return revision.ContinueRequest{}, t, err
	}

	next := s.with(func(n *State) {
		n.Step = StepProcessing
		if n.Continuation.ThreadRef == "" {
			n.Continuation.ThreadRef = req.ThreadRef
		}
		n.Continuation.CurrentStageIndex++
		rederiveProgress(n.Progress, n.Continuation.CurrentStageIndex)
		if i := n.Continuation.CurrentStageIndex; i < len(n.SelectedStageIDs) {
			n.CurrentStageID = n.SelectedStageIDs[i]
		}
		n.Failures = nil
		n.RawBuffer = ""
	})
	text := "Moving on to " + m.catalog.DisplayName(next.CurrentStageID)
	return req, Transition{State: next, Messages: []Message{{Kind: MessageUpdate, Text: text, Data: next.Progress}}}, nil
}

// PrepareFinalize validates that the final document may be generated and
// returns the finalize request.
func (m *Machine) PrepareFinalize(s State, includeQualityChecks bool) (revision.FinalizeRequest, Transition, error) {
	if err := reviewable(s); err != nil {
		t, err := m.stuck(s, err)
		return revision.FinalizeRequest{}, t, err
	}

	req, err := BuildFinalizeRequest(s, includeQualityChecks)
	if err != nil {
		t, err := m.stuck(s, err, Message{Kind: MessagePrompt, Text: err.Error(), Data: ReviewOf(s, m.catalog)})
		return revision.FinalizeRequest{}, t, err
	}
	return req, Transition{State: s}, nil
}

// CompleteFinalize records the final document. From here on the ledger is
// closed and the workflow resets after the completion delay.
func (m *Machine) CompleteFinalize(s State, resp *revision.FinalizeResponse) Transition {
	document := FormatDocument(resp.FinalArticle, resp.BlockTypes, s.Ledger)
	next := s.with(func(n *State) { n.FinalDocument = document })
	next.FinalizedAt = next.Revision
	return Transition{
		State:    next,
		Messages: []Message{{Kind: MessageResult, Text: document, Data: map[string]any{"final_document": document}}},
		Effect:   EffectScheduleReset,
	}
}

// FinalizeFailed reports a finalize error. The state stays reviewable so the
// user can retry.
func (m *Machine) FinalizeFailed(s State, err error) Transition {
	return Transition{State: s, Messages: []Message{update("Could not generate the final document: " + err.Error())}}
}

// ContinueFailed reports a rejected continuation request.
func (m *Machine) ContinueFailed(s State, err error) Transition {
	return Transition{State: s, Messages: []Message{update("Could not continue to the next editor: " + err.Error())}}
}

// Cancel abandons the workflow. It is refused while a revision is running.
func (m *Machine) Cancel(s State) (Transition, error) {
	switch s.Step {
	case StepProcessing:
		return m.stuck(s, ErrProcessingNotCancellable, update(ErrProcessingNotCancellable.Error()))
	case StepIdle:
		return Transition{State: s}, nil
	}
	return Transition{State: s.Reset(), Messages: []Message{update("Workflow cancelled.")}}, nil
}

// Complete resets the workflow finalized at scheduledAt. Later snapshots of
// the same finalized workflow still reset; a workflow that was cancelled or
// restarted in the meantime does not.
func (m *Machine) Complete(s State, scheduledAt int64) (Transition, bool) {
	if s.FinalDocument == "" || s.FinalizedAt != scheduledAt {
		return Transition{State: s}, false
	}
	return Transition{State: s.Reset()}, true
}

func (m *Machine) stageNames(ids []string) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, m.catalog.DisplayName(id))
	}
	return strings.Join(names, ", ")
}

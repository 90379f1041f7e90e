// Package workflow is the orchestration core: the workflow state snapshot,
// the command state machine, the stream event interpreter and the
// continuation request builders. It performs no I/O.
package workflow

import (
	"ai-editorial-be/pkg/ledger"
)

type Step string

const (
	StepIdle                   Step = "idle"
	StepAwaitingStageSelection Step = "awaiting_stage_selection"
	StepAwaitingContent        Step = "awaiting_content"
	StepProcessing             Step = "processing"
	StepAwaitingApproval       Step = "awaiting_approval"
)

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageErrored    StageStatus = "error"
)

// StageProgress is the visual progress entry of one selected stage.
type StageProgress struct {
	StageID string      `json:"stage_id"`
	Name    string      `json:"name"`
	Status  StageStatus `json:"status"`
	Error   string      `json:"error,omitempty"`
}

type StageFailure struct {
	StageID string `json:"stage_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Continuation is the sequential-mode metadata. TotalStageCount is fixed
// when processing starts. IsLastStage only ever comes from the service, and
// once a final_complete event has been seen it stays true.
type Continuation struct {
	ThreadRef         string `json:"thread_ref,omitempty"`
	Sequential        bool   `json:"sequential"`
	CurrentStageIndex int    `json:"current_stage_index"`
	TotalStageCount   int    `json:"total_stage_count"`
	IsLastStage       bool   `json:"is_last_stage"`
	FinalReceived     bool   `json:"final_received"`
}

// State is one workflow snapshot. It is never modified after it has been
// handed out; every transition produces a new State with a higher Revision.
type State struct {
	Step             Step            `json:"step"`
	UploadedContent  string          `json:"uploaded_content,omitempty"`
	SelectedStageIDs []string        `json:"selected_stage_ids"`
	OriginalContent  string          `json:"original_content,omitempty"`
	Ledger           ledger.Ledger   `json:"ledger"`
	Continuation     Continuation    `json:"continuation"`
	Progress         []StageProgress `json:"progress"`
	CurrentStageID   string          `json:"current_stage_id,omitempty"`
	Failures         []StageFailure  `json:"failures,omitempty"`
	RawBuffer        string          `json:"raw_buffer,omitempty"`
	FinalDocument    string          `json:"final_document,omitempty"`
	FinalizedAt      int64           `json:"finalized_at,omitempty"`
	Revision         int64           `json:"revision"`
}

// NewState returns the idle state.
func NewState() State {
	return State{Step: StepIdle}
}

// Reset returns an idle state that keeps the revision counter moving, so
// timers scheduled against an older snapshot see the change.
func (s State) Reset() State {
	return State{Step: StepIdle, Revision: s.Revision + 1}
}

// with copies s, applies fn to the copy and bumps the revision.
func (s State) with(fn func(n *State)) State {
	n := s
	n.SelectedStageIDs = append([]string(nil), s.SelectedStageIDs...)
	n.Progress = append([]StageProgress(nil), s.Progress...)
	n.Failures = append([]StageFailure(nil), s.Failures...)
	fn(&n)
	n.Revision = s.Revision + 1
	return n
}

func (s State) stageIndex(id string) int {
	for i, sid := range s.SelectedStageIDs {
		if sid == id {
			return i
		}
	}
	return -1
}

func (s State) progressIndex(id string) int {
	for i, p := range s.Progress {
		if p.StageID == id {
			return i
		}
	}
	return -1
}

// HasCopyStage reports whether the copy editing stage was selected.
func (s State) HasCopyStage() bool {
	return s.stageIndex(CopyStageID) >= 0
}

type MessageKind string

const (
	MessagePrompt MessageKind = "prompt"
	MessageResult MessageKind = "result"
	MessageUpdate MessageKind = "update"
)

// Message is a user-visible notification produced by a transition.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"message"`
	Data any         `json:"data,omitempty"`
}

func prompt(text string) Message { return Message{Kind: MessagePrompt, Text: text} }
func update(text string) Message { return Message{Kind: MessageUpdate, Text: text} }

// Review is the payload attached to messages that show the ledger.
type Review struct {
	StageID     string                 `json:"stage_id,omitempty"`
	StageName   string                 `json:"stage_name,omitempty"`
	Paragraphs  []ledger.ParagraphEdit `json:"paragraphs"`
	Pending     []int                  `json:"pending"`
	Feedback    ledger.FeedbackSummary `json:"feedback"`
	AllDecided  bool                   `json:"all_decided"`
	IsLastStage bool                   `json:"is_last_stage"`
}

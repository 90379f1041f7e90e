package revision

import (
	"encoding/json"
	"fmt"

	"ai-editorial-be/pkg/ledger"
)

type Kind string

const (
	KindStageProgress Kind = "stage_progress"
	KindContentChunk  Kind = "content_chunk"
	KindStageComplete Kind = "stage_complete"
	KindStageError    Kind = "stage_error"
	KindFinalComplete Kind = "final_complete"
	KindIgnored       Kind = "ignored"
)

// Event is one decoded item of a revision stream. The set of variants is
// closed: StageProgress, ContentChunk, StageComplete, StageError,
// FinalComplete and Ignored.
type Event interface {
	Kind() Kind
	isEvent()
}

// StageProgress reports which stage the service is working on. StageIndex
// is zero-based and -1 when the service did not send one.
type StageProgress struct {
	StageID     string
	StageIndex  int
	TotalStages int
	Message     string
}

type ContentChunk struct {
	StageID string
	Text    string
}

// StageComplete carries one stage's output. In sequential mode it also
// carries the thread reference used to continue the pipeline.
type StageComplete struct {
	StageID     string
	StageIndex  int
	TotalStages int
	ThreadRef   string
	Sequential  bool
	IsLastStage *bool
	Edits       []ledger.RawEdit
}

type StageError struct {
	StageID string
	Message string
}

// FinalComplete ends the pipeline. When Edits is empty the interpreter
// falls back to OriginalContent and FinalContent.
type FinalComplete struct {
	ThreadRef       string
	Edits           []ledger.RawEdit
	OriginalContent string
	FinalContent    string
}

// Ignored stands in for event types this client does not know.
type Ignored struct {
	Type string
	Raw  json.RawMessage
}

func (StageProgress) Kind() Kind { return KindStageProgress }
func (ContentChunk) Kind() Kind  { return KindContentChunk }
func (StageComplete) Kind() Kind { return KindStageComplete }
func (StageError) Kind() Kind    { return KindStageError }
func (FinalComplete) Kind() Kind { return KindFinalComplete }
func (Ignored) Kind() Kind       { return KindIgnored }

func (StageProgress) isEvent() {}
func (ContentChunk) isEvent()  {}
func (StageComplete) isEvent() {}
func (StageError) isEvent()    {}
func (FinalComplete) isEvent() {}
func (Ignored) isEvent()       {}

// envelope is the wire shape shared by every event type.
type envelope struct {
	Type            string           `json:"type"`
	Stage           string           `json:"stage"`
	StageIndex      *int             `json:"stage_index"`
	TotalStages     int              `json:"total_stages"`
	Content         string           `json:"content"`
	Message         string           `json:"message"`
	ThreadRef       string           `json:"thread_ref"`
	Sequential      bool             `json:"sequential"`
	IsLastStage     *bool            `json:"is_last_stage"`
	ParagraphEdits  []ledger.RawEdit `json:"paragraph_edits"`
	Error           string           `json:"error"`
	OriginalContent string           `json:"original_content"`
	FinalContent    string           `json:"final_content"`
}

// ParseEvent decodes one JSON event.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	index := -1
	if env.StageIndex != nil {
		index = *env.StageIndex
	}

	switch Kind(env.Type) {
	case KindStageProgress:
		return StageProgress{StageID: env.Stage, StageIndex: index, TotalStages: env.TotalStages, Message: env.Message}, nil
	case KindContentChunk:
		return ContentChunk{StageID: env.Stage, Text: env.Content}, nil
	case KindStageComplete:
		return StageComplete{
			StageID:     env.Stage,
			StageIndex:  index,
			TotalStages: env.TotalStages,
			ThreadRef:   env.ThreadRef,
			Sequential:  env.Sequential,
			IsLastStage: env.IsLastStage,
			Edits:       env.ParagraphEdits,
		}, nil
	case KindStageError:
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return StageError{StageID: env.Stage, Message: msg}, nil
	case KindFinalComplete:
		return FinalComplete{
			ThreadRef:       env.ThreadRef,
			Edits:           env.ParagraphEdits,
			OriginalContent: env.OriginalContent,
			FinalContent:    env.FinalContent,
		}, nil
	default:
		return Ignored{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

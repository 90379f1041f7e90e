package dto

import (
	"time"

	"ai-editorial-be/pkg/workflow"

	"github.com/google/uuid"
)

type BeginWorkflowRequest struct {
	StageIds []string `json:"stage_ids" validate:"omitempty,dive,required"`
	Content  string   `json:"content"`
}

type SubmitSelectionRequest struct {
	Text string `json:"text" validate:"required"`
}

type SubmitContentRequest struct {
	Content string `json:"content" validate:"required"`
}

type FeedbackDecisionRequest struct {
	Category string `json:"category" validate:"required"`
	Position *int   `json:"position" validate:"required,min=0"`
	Approved *bool  `json:"approved" validate:"required"`
}

type BulkFeedbackDecisionRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

type AdvanceWorkflowRequest struct {
	// ThreadRef overrides the stored thread reference when set.
	ThreadRef string `json:"thread_ref"`
}

type StageResponse struct {
	Number    int    `json:"number"`
	Id        string `json:"id"`
	Name      string `json:"name"`
	Mandatory bool   `json:"mandatory"`
}

type CatalogResponse struct {
	Stages []StageResponse `json:"stages"`
	Menu   string          `json:"menu"`
}

type WorkflowSessionResponse struct {
	Id               uuid.UUID                `json:"id"`
	Step             workflow.Step            `json:"step"`
	SelectedStageIds []string                 `json:"selected_stage_ids"`
	CurrentStageId   string                   `json:"current_stage_id,omitempty"`
	HasContent       bool                     `json:"has_content"`
	Progress         []workflow.StageProgress `json:"progress"`
	Continuation     workflow.Continuation    `json:"continuation"`
	Review           *workflow.Review         `json:"review,omitempty"`
	Failures         []workflow.StageFailure  `json:"failures,omitempty"`
	FinalDocument    string                   `json:"final_document,omitempty"`
	Revision         int64                    `json:"revision"`
	Messages         []workflow.Message       `json:"messages,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

type RevisedDocumentResponse struct {
	Id              uuid.UUID `json:"id"`
	SessionId       uuid.UUID `json:"session_id"`
	StageIds        []string  `json:"stage_ids"`
	OriginalContent string    `json:"original_content"`
	FinalDocument   string    `json:"final_document"`
	ParagraphCount  int       `json:"paragraph_count"`
	CreatedAt       time.Time `json:"created_at"`
}

type RevisedDocumentListResponse struct {
	Documents []RevisedDocumentResponse `json:"documents"`
	Total     int64                     `json:"total"`
	Page      int                       `json:"page"`
	Limit     int                       `json:"limit"`
}

type ActivityResponse struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

package entity

import (
	"time"

	"ai-editorial-be/pkg/ledger"

	"github.com/google/uuid"
)

// RevisedDocument is the archived outcome of a finalized workflow.
type RevisedDocument struct {
	Id              uuid.UUID
	SessionId       uuid.UUID
	OwnerId         string
	StageIds        []string
	OriginalContent string
	FinalDocument   string
	Paragraphs      []ledger.ParagraphEdit
	CreatedAt       time.Time
}

// ActivityEntry is one lifecycle event recorded for a session.
type ActivityEntry struct {
	SessionId  string
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

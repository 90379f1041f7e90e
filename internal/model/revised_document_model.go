package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RevisedDocument stores finalized documents together with the ledger they
// were produced from.
type RevisedDocument struct {
	Id              uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SessionId       uuid.UUID                   `gorm:"type:uuid;not null;index:idx_revised_documents_session" json:"session_id"`
	OwnerId         string                      `gorm:"type:varchar(64);not null;index:idx_revised_documents_owner_created,priority:1" json:"owner_id"`
	StageIds        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"stage_ids"`
	OriginalContent string                      `gorm:"type:text;not null" json:"original_content"`
	FinalDocument   string                      `gorm:"type:text;not null" json:"final_document"`
	Paragraphs      datatypes.JSON              `gorm:"type:jsonb" json:"paragraphs"`
	CreatedAt       time.Time                   `gorm:"default:CURRENT_TIMESTAMP;index:idx_revised_documents_owner_created,priority:2" json:"created_at"`
}

func (RevisedDocument) TableName() string {
	return "revised_documents"
}

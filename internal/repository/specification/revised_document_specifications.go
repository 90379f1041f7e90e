package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ByOwner filters documents by the owning user id.
type ByOwner struct {
	OwnerId string
}

func (s ByOwner) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("owner_id = ?", s.OwnerId)
}

// BySession filters documents by the workflow session that produced them.
type BySession struct {
	SessionId uuid.UUID
}

func (s BySession) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionId)
}

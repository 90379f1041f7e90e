package contract

import (
	"context"
	"errors"

	"ai-editorial-be/internal/entity"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("workflow session not found")

// WorkflowSessionRepository stores live workflow sessions. FindOne returns
// ErrSessionNotFound for unknown or expired sessions.
type WorkflowSessionRepository interface {
	Save(ctx context.Context, session *entity.WorkflowSession) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.WorkflowSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

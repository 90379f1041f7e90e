package entity

import (
	"time"

	"ai-editorial-be/pkg/workflow"

	"github.com/google/uuid"
)

// WorkflowSession is one user's revision workflow. State is replaced as a
// whole on every transition.
type WorkflowSession struct {
	Id        uuid.UUID
	OwnerId   string
	State     workflow.State
	CreatedAt time.Time
	UpdatedAt time.Time
}

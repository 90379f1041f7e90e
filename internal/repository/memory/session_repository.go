package memory

import (
	"context"
	"time"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps workflow sessions in process memory. Entries
// expire ttl after their last save.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) contract.WorkflowSessionRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, 10*time.Minute),
	}
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.WorkflowSession) error {
	// Store a copy so callers cannot modify the cached session.
	stored := *session
	r.cache.Set(session.Id.String(), stored, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) FindOne(ctx context.Context, id uuid.UUID) (*entity.WorkflowSession, error) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, contract.ErrSessionNotFound
	}
	session := x.(entity.WorkflowSession)
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.cache.Delete(id.String())
	return nil
}

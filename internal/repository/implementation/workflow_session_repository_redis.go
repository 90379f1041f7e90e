package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/repository/contract"
	"ai-editorial-be/pkg/workflow"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "workflow:session:"

type WorkflowSessionRepositoryRedis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewWorkflowSessionRepositoryRedis stores sessions as JSON so several
// instances can serve the same session.
func NewWorkflowSessionRepositoryRedis(rdb *redis.Client, ttl time.Duration) contract.WorkflowSessionRepository {
	return &WorkflowSessionRepositoryRedis{rdb: rdb, ttl: ttl}
}

type sessionRecord struct {
	Id        uuid.UUID      `json:"id"`
	OwnerId   string         `json:"owner_id"`
	State     workflow.State `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

func (r *WorkflowSessionRepositoryRedis) Save(ctx context.Context, session *entity.WorkflowSession) error {
	data, err := json.Marshal(sessionRecord{
		Id:        session.Id,
		OwnerId:   session.OwnerId,
		State:     session.State,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.Id, err)
	}
	return r.rdb.Set(ctx, sessionKey(session.Id), data, r.ttl).Err()
}

func (r *WorkflowSessionRepositoryRedis) FindOne(ctx context.Context, id uuid.UUID) (*entity.WorkflowSession, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, contract.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &entity.WorkflowSession{
		Id:        rec.Id,
		OwnerId:   rec.OwnerId,
		State:     rec.State,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (r *WorkflowSessionRepositoryRedis) Delete(ctx context.Context, id uuid.UUID) error {
	return r.rdb.Del(ctx, sessionKey(id)).Err()
}

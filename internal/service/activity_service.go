package service

import (
	"context"
	"sync"
	"time"

	"ai-editorial-be/internal/entity"
	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/pkg/events"
	pktNats "ai-editorial-be/pkg/nats"

	"github.com/patrickmn/go-cache"
)

const maxActivityEntries = 200

type IActivityService interface {
	// Start subscribes to workflow events on the event bus.
	Start() error
	// Publish records an event directly; used when no event bus is running.
	Publish(ctx context.Context, event events.Event) error
	Feed(sessionId string) []entity.ActivityEntry
}

// ActivityService keeps a bounded per-session history of lifecycle events.
type ActivityService struct {
	subscriber  *pktNats.Subscriber
	durableName string
	feed        *cache.Cache
	mu          sync.Mutex
	logger      logger.ILogger
}

// NewActivityService returns the feed. sub may be nil, in which case events
// only arrive through Publish.
func NewActivityService(sub *pktNats.Subscriber, durableName string, ttl time.Duration, log logger.ILogger) *ActivityService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ActivityService{
		subscriber:  sub,
		durableName: durableName,
		feed:        cache.New(ttl, 30*time.Minute),
		logger:      log,
	}
}

func (s *ActivityService) Start() error {
	if s.subscriber == nil {
		s.logger.Info("ActivityService", "No event bus, recording activity in process", nil)
		return nil
	}

	subject := pktNats.SubjectPrefix + "workflow.>"
	if err := s.subscriber.Subscribe(subject, s.durableName, s.handleEvent); err != nil {
		s.logger.Error("ActivityService", "Failed to start activity subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.logger.Info("ActivityService", "Activity service started, listening to "+subject, nil)
	return nil
}

func (s *ActivityService) Publish(ctx context.Context, event events.Event) error {
	return s.handleEvent(ctx, event)
}

func (s *ActivityService) handleEvent(ctx context.Context, event events.Event) error {
	sessionId := events.SessionID(event)
	if sessionId == "" {
		s.logger.Warn("ActivityService", "Event without session id", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	data := make(map[string]interface{}, len(event.Payload()))
	for k, v := range event.Payload() {
		switch k {
		case "session_id", "owner_id", "occurred_at":
			continue
		}
		data[k] = v
	}

	entry := entity.ActivityEntry{
		SessionId:  sessionId,
		Type:       event.EventType(),
		Data:       data,
		OccurredAt: event.Timestamp(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []entity.ActivityEntry
	if x, found := s.feed.Get(sessionId); found {
		entries = x.([]entity.ActivityEntry)
	}
	entries = append(append([]entity.ActivityEntry(nil), entries...), entry)
	if len(entries) > maxActivityEntries {
		entries = entries[len(entries)-maxActivityEntries:]
	}
	s.feed.Set(sessionId, entries, cache.DefaultExpiration)
	return nil
}

// Feed returns the recorded events of a session, oldest first.
func (s *ActivityService) Feed(sessionId string) []entity.ActivityEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.feed.Get(sessionId)
	if !found {
		return []entity.ActivityEntry{}
	}
	return append([]entity.ActivityEntry(nil), x.([]entity.ActivityEntry)...)
}

package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityServiceRecordsPerSession(t *testing.T) {
	svc := NewActivityService(nil, "", time.Hour, logger.NewNopLogger())
	require.NoError(t, svc.Start())

	ctx := context.Background()
	require.NoError(t, svc.Publish(ctx, events.NewWorkflowEvent(events.TypeWorkflowStarted, "s-1", "user-1", map[string]interface{}{"stage_ids": []string{"line"}})))
	require.NoError(t, svc.Publish(ctx, events.NewWorkflowEvent(events.TypeWorkflowStageCompleted, "s-1", "user-1", map[string]interface{}{"stage_id": "line"})))
	require.NoError(t, svc.Publish(ctx, events.NewWorkflowEvent(events.TypeWorkflowCancelled, "s-2", "user-2", nil)))

	feed := svc.Feed("s-1")
	require.Len(t, feed, 2)
	assert.Equal(t, events.TypeWorkflowStarted, feed[0].Type)
	assert.Equal(t, events.TypeWorkflowStageCompleted, feed[1].Type)
	assert.Equal(t, "line", feed[1].Data["stage_id"])
	assert.NotContains(t, feed[1].Data, "session_id")
	assert.NotContains(t, feed[1].Data, "owner_id")

	assert.Len(t, svc.Feed("s-2"), 1)
	assert.Empty(t, svc.Feed("unknown"))
}

func TestActivityServiceKeepsRecentEntries(t *testing.T) {
	svc := NewActivityService(nil, "", time.Hour, logger.NewNopLogger())
	ctx := context.Background()

	for i := 0; i < maxActivityEntries+5; i++ {
		ev := events.NewWorkflowEvent(events.TypeWorkflowStageCompleted, "s-1", "user-1", map[string]interface{}{"n": fmt.Sprint(i)})
		require.NoError(t, svc.Publish(ctx, ev))
	}

	feed := svc.Feed("s-1")
	require.Len(t, feed, maxActivityEntries)
	assert.Equal(t, "5", feed[0].Data["n"])
}

func TestActivityServiceIgnoresEventsWithoutSession(t *testing.T) {
	svc := NewActivityService(nil, "", time.Hour, logger.NewNopLogger())

	err := svc.Publish(context.Background(), events.BaseEvent{Type: "other", Data: map[string]interface{}{}, OccurredAt: time.Now()})
	assert.NoError(t, err)
	assert.Empty(t, svc.Feed(""))
}

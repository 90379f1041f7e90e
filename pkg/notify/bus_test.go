package notify

import (
	"context"
	"testing"
	"time"

	"ai-editorial-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func receive(t *testing.T, ch <-chan Notification) Notification {
	t.Helper()
	select {
	case n, ok := <-ch:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func TestNotifyKeepsOrder(t *testing.T) {
	bus := NewBus(NewPubSub(watermill.NopLogger{}))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicMessages)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- bus.Notify("s1",
			workflow.Message{Kind: workflow.MessageUpdate, Text: "first"},
			workflow.Message{Kind: workflow.MessagePrompt, Text: "second"},
		)
	}()

	first := receive(t, ch)
	second := receive(t, ch)
	require.NoError(t, <-done)

	assert.Equal(t, "s1", first.SessionID)
	assert.Equal(t, KindMessage, first.Kind)
	assert.Equal(t, "first", first.Message.Text)
	assert.Equal(t, "second", second.Message.Text)
	assert.Equal(t, workflow.MessagePrompt, second.Message.Kind)
}

func TestSetBusy(t *testing.T) {
	bus := NewBus(NewPubSub(watermill.NopLogger{}))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, TopicBusy)
	require.NoError(t, err)

	go func() { _ = bus.SetBusy("s2", IndicatorGeneratingFinal, true) }()

	n := receive(t, ch)
	assert.Equal(t, KindBusy, n.Kind)
	assert.Equal(t, IndicatorGeneratingFinal, n.Indicator)
	assert.True(t, n.Busy)
}

func TestNotifyWithoutSubscribers(t *testing.T) {
	bus := NewBus(NewPubSub(watermill.NopLogger{}))
	defer bus.Close()

	assert.NoError(t, bus.Notify("s3", workflow.Message{Kind: workflow.MessageUpdate, Text: "nobody listens"}))
	assert.NoError(t, bus.Notify("s3"))
}

func TestSubscribeClosesOnCancel(t *testing.T) {
	bus := NewBus(NewPubSub(watermill.NopLogger{}))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx, TopicMessages)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel was not closed")
	}
}

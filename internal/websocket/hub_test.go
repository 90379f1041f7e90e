package websocket

import (
	"context"
	"testing"
	"time"

	"ai-editorial-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	hub := NewHub(nil, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	return hub, func() {
		cancel()
		<-stopped
	}
}

func TestHubDeliversPerSession(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	a1 := NewClient(hub, nil, "session-a", "u1")
	a2 := NewClient(hub, nil, "session-a", "u1")
	b := NewClient(hub, nil, "session-b", "u2")
	for _, c := range []*Client{a1, a2, b} {
		require.True(t, hub.Register(c))
	}
	assert.Eventually(t, func() bool { return hub.ClientCount("session-a") == 2 }, time.Second, 5*time.Millisecond)

	hub.Send("session-a", []byte(`{"type":"message"}`))

	assert.Equal(t, `{"type":"message"}`, string(<-a1.Send))
	assert.Equal(t, `{"type":"message"}`, string(<-a2.Send))
	assert.Len(t, b.Send, 0)
}

func TestHubUnregisterClosesOnce(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	c := NewClient(hub, nil, "session-a", "u1")
	require.True(t, hub.Register(c))

	hub.Unregister(c)
	hub.Unregister(c)

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount("session-a"))
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	c := NewClient(hub, nil, "session-a", "u1")
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.ClientCount("session-a") == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < sendBuffer+1; i++ {
		hub.Send("session-a", []byte("x"))
	}

	assert.Equal(t, 0, hub.ClientCount("session-a"))
	for range c.Send {
		// drain until closed
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub, stop := startHub(t)

	c := NewClient(hub, nil, "session-a", "u1")
	require.True(t, hub.Register(c))
	assert.Eventually(t, func() bool { return hub.ClientCount("session-a") == 1 }, time.Second, 5*time.Millisecond)
	stop()

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, hub.Register(NewClient(hub, nil, "session-a", "u1")))
}

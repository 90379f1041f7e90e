// Package notify carries user-facing workflow notifications from the
// workflow service to whatever delivers them (the websocket hub).
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-editorial-be/pkg/workflow"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	TopicMessages = "workflow.messages"
	TopicBusy     = "workflow.busy"
)

type Kind string

const (
	KindMessage Kind = "message"
	KindBusy    Kind = "busy"
)

// Indicator names one of the independent busy flags shown to the user.
type Indicator string

const (
	IndicatorGeneratingFinal     Indicator = "generating_final"
	IndicatorGeneratingNextStage Indicator = "generating_next_stage"
)

// Notification is one frame delivered to the session's listeners.
type Notification struct {
	SessionID string            `json:"session_id"`
	Kind      Kind              `json:"type"`
	Message   *workflow.Message `json:"message,omitempty"`
	Indicator Indicator         `json:"indicator,omitempty"`
	Busy      bool              `json:"busy,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
}

// Bus publishes notifications on an in-process watermill channel.
type Bus struct {
	pubSub *gochannel.GoChannel
}

// NewPubSub returns the gochannel configuration the bus relies on: Publish
// waits for the subscriber's ack, which keeps a session's messages in order.
func NewPubSub(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		BlockPublishUntilSubscriberAck: true,
	}, logger)
}

func NewBus(pubSub *gochannel.GoChannel) *Bus {
	return &Bus{pubSub: pubSub}
}

// Notify publishes the messages of one transition, in order.
func (b *Bus) Notify(sessionID string, msgs ...workflow.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	out := make([]*message.Message, 0, len(msgs))
	for i := range msgs {
		m, err := encode(Notification{
			SessionID: sessionID,
			Kind:      KindMessage,
			Message:   &msgs[i],
			SentAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		out = append(out, m)
	}
	return b.pubSub.Publish(TopicMessages, out...)
}

// SetBusy raises or clears a busy indicator.
func (b *Bus) SetBusy(sessionID string, indicator Indicator, busy bool) error {
	m, err := encode(Notification{
		SessionID: sessionID,
		Kind:      KindBusy,
		Indicator: indicator,
		Busy:      busy,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return b.pubSub.Publish(TopicBusy, m)
}

func encode(n Notification) (*message.Message, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode notification: %w", err)
	}
	m := message.NewMessage(watermill.NewUUID(), payload)
	m.Metadata.Set("session_id", n.SessionID)
	return m, nil
}

// Subscribe decodes the notifications published on topic. The returned
// channel is closed once ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan Notification, error) {
	messages, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	out := make(chan Notification)
	go func() {
		defer close(out)
		for msg := range messages {
			var n Notification
			if err := json.Unmarshal(msg.Payload, &n); err != nil {
				msg.Ack()
				continue
			}
			select {
			case out <- n:
				msg.Ack()
			case <-ctx.Done():
				msg.Nack()
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}

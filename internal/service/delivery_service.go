package service

import (
	"context"
	"encoding/json"
	"sync"

	"ai-editorial-be/internal/pkg/logger"
	"ai-editorial-be/pkg/notify"
)

// NotificationDelivery pushes frames to a session's live listeners.
// Typically implemented by the WebSocket Hub.
type NotificationDelivery interface {
	Send(sessionID string, message []byte)
}

// INotificationSource is the subscribing side of the notification bus.
type INotificationSource interface {
	Subscribe(ctx context.Context, topic string) (<-chan notify.Notification, error)
}

type IDeliveryService interface {
	// Consume forwards notifications until ctx is done.
	Consume(ctx context.Context) error
}

type deliveryService struct {
	source   INotificationSource
	delivery NotificationDelivery
	logger   logger.ILogger
}

func NewDeliveryService(source INotificationSource, delivery NotificationDelivery, log logger.ILogger) IDeliveryService {
	return &deliveryService{
		source:   source,
		delivery: delivery,
		logger:   log,
	}
}

func (ds *deliveryService) Consume(ctx context.Context) error {
	topics := []string{notify.TopicMessages, notify.TopicBusy}

	channels := make([]<-chan notify.Notification, 0, len(topics))
	for _, topic := range topics {
		ch, err := ds.source.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		channels = append(channels, ch)
	}

	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(ch <-chan notify.Notification) {
			defer wg.Done()
			for n := range ch {
				ds.deliver(n)
			}
		}(ch)
	}
	wg.Wait()
	return nil
}

func (ds *deliveryService) deliver(n notify.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		ds.logger.Error("DeliveryService", "Failed to encode notification", map[string]interface{}{"session_id": n.SessionID, "error": err.Error()})
		return
	}
	ds.delivery.Send(n.SessionID, data)
	ds.logger.Debug("DeliveryService", "Notification delivered", map[string]interface{}{"session_id": n.SessionID, "type": n.Kind})
}

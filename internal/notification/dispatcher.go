package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

// Dispatcher consumes both notification queues with prefetch=1 and
// routes each notification to exactly one channel handler. Store errors
// bounce the queue message for redelivery; handler failures only mark
// the notification Failed.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	service       *Service
	handlers      map[models.NotificationChannel]ChannelHandler

	// providerTimeout caps one outbound provider call so a stuck
	// provider cannot wedge the single-prefetch consumer.
	providerTimeout time.Duration
}

// NewDispatcher constructs the dispatch consumer. Handlers may be nil
// for channels the deployment does not configure; their notifications
// fail with an explicit reason instead of crashing.
func NewDispatcher(notifications repositories.NotificationRepository, service *Service, handlers map[models.NotificationChannel]ChannelHandler, providerTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		notifications:   notifications,
		service:         service,
		handlers:        handlers,
		providerTimeout: providerTimeout,
	}
}

// Start attaches both queue consumers.
func (d *Dispatcher) Start(transport rabbitmq.Transport) error {
	if err := transport.Consume(rabbitmq.QueueNotifications, 1, d.HandleSingle); err != nil {
		return err
	}
	return transport.Consume(rabbitmq.QueueNotificationBatch, 1, d.HandleBatch)
}

// HandleSingle processes one message from the individual priority queue.
func (d *Dispatcher) HandleSingle(ctx context.Context, body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		log.Printf("dispatch: dropping malformed notification message: %v", err)
		return nil
	}
	return d.process(ctx, n.ID)
}

// HandleBatch processes one user-group from the batch queue.
func (d *Dispatcher) HandleBatch(ctx context.Context, body []byte) error {
	var batch models.BatchMessage
	if err := json.Unmarshal(body, &batch); err != nil {
		log.Printf("dispatch: dropping malformed batch message: %v", err)
		return nil
	}
	for _, id := range batch.NotificationIDs {
		if err := d.process(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) process(ctx context.Context, id int) error {
	n, err := d.notifications.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return nil
		}
		return err
	}
	// redeliveries of already-settled notifications are no-ops
	if n.Status != models.StatusPending && n.Status != models.StatusProcessing {
		return nil
	}
	if n.Status == models.StatusPending {
		if err := d.notifications.MarkProcessing(ctx, n.ID); err != nil {
			return err
		}
	}

	prefs, err := d.service.GetPreferences(ctx, n.UserID)
	if err != nil {
		return err
	}

	if !prefs.Enabled {
		observability.IncNotificationDispatch(string(n.Type), "skipped")
		return d.notifications.MarkSkipped(ctx, n.ID, "notifications disabled")
	}
	if !prefs.CategoryAllowed(n.Category) {
		observability.IncNotificationDispatch(string(n.Type), "skipped")
		return d.notifications.MarkSkipped(ctx, n.ID, "category disabled: "+n.Category)
	}

	now := time.Now().UTC()
	if inQuietHours(prefs, now) {
		resumeAt := quietHoursEnd(prefs, now)
		observability.IncNotificationDispatch(string(n.Type), "rescheduled")
		return d.notifications.Reschedule(ctx, n.ID, resumeAt)
	}

	handler, ok := d.handlers[n.Type]
	if !ok || handler == nil {
		observability.IncNotificationDispatch(string(n.Type), "failed")
		return d.notifications.MarkFailed(ctx, n.ID, "channel not configured: "+string(n.Type))
	}

	deliverCtx, cancel := context.WithTimeout(ctx, d.providerTimeout)
	deliverErr := handler.Deliver(deliverCtx, n, prefs)
	cancel()

	if deliverErr != nil {
		observability.IncNotificationDispatch(string(n.Type), "failed")
		return d.notifications.MarkFailed(ctx, n.ID, deliverErr.Error())
	}
	observability.IncNotificationDispatch(string(n.Type), "delivered")
	return d.notifications.MarkDelivered(ctx, n.ID, time.Now().UTC())
}

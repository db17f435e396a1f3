package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// FanoutConsumer drains the durable delivery queue. It records delivery
// receipts for participants who are online when the job is processed and
// reports them back to the sender. Jobs are redelivered on failure, so
// every step must tolerate duplicates.
type FanoutConsumer struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	registry ws.Registry
}

// NewFanoutConsumer constructs a FanoutConsumer.
func NewFanoutConsumer(chats repositories.ChatRepository, messages repositories.MessageRepository, registry ws.Registry) *FanoutConsumer {
	return &FanoutConsumer{chats: chats, messages: messages, registry: registry}
}

// Start attaches the consumer to the fanout queue with prefetch=1.
func (c *FanoutConsumer) Start(transport rabbitmq.Transport) error {
	return transport.Consume(rabbitmq.QueueFanout, 1, c.Handle)
}

// Handle processes one fanout job.
func (c *FanoutConsumer) Handle(ctx context.Context, body []byte) error {
	var job models.FanoutJob
	if err := json.Unmarshal(body, &job); err != nil {
		// malformed jobs never become processable, drop them
		log.Printf("fanout: dropping malformed job: %v", err)
		observability.IncFanoutJob("malformed")
		return nil
	}

	if _, err := c.messages.GetMessage(ctx, job.MessageID); err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			observability.IncFanoutJob("stale")
			return nil
		}
		return err
	}

	participants, err := c.chats.GetParticipants(ctx, job.ChatID)
	if err != nil {
		return err
	}

	for _, p := range participants {
		if p.UserID == job.SenderID || !c.registry.IsOnline(p.UserID) {
			continue
		}
		newly, err := c.messages.MarkDelivered(ctx, job.MessageID, p.UserID)
		if err != nil {
			return err
		}
		if !newly {
			continue
		}
		c.registry.Send(job.SenderID, models.EventMessageDelivered,
			models.DeliveredPayload{MessageID: job.MessageID, ChatID: job.ChatID, UserID: p.UserID})
	}

	observability.IncFanoutJob("processed")
	return nil
}

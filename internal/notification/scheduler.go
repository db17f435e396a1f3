package notification

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

// Scheduler periodically claims due Pending notifications and publishes
// them to the batch queue, grouped per user. Claiming flips rows to
// Processing inside the database so two scheduler instances never pick
// up the same notification.
type Scheduler struct {
	notifications repositories.NotificationRepository
	transport     rabbitmq.Transport
	interval      time.Duration
	batchSize     int
}

// NewScheduler constructs the batch scheduler.
func NewScheduler(notifications repositories.NotificationRepository, transport rabbitmq.Transport, interval time.Duration, batchSize int) *Scheduler {
	return &Scheduler{
		notifications: notifications,
		transport:     transport,
		interval:      interval,
		batchSize:     batchSize,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				log.Printf("batch scheduler cycle failed: %v", err)
			}
		}
	}
}

// RunOnce claims one window of due notifications and publishes one
// batch message per distinct user among them.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	claimed, err := s.notifications.ClaimPending(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	byUser := make(map[int][]int)
	for _, n := range claimed {
		byUser[n.UserID] = append(byUser[n.UserID], n.ID)
	}

	for userID, ids := range byUser {
		batchID := uuid.NewString()
		if err := s.notifications.SetBatchID(ctx, ids, batchID); err != nil {
			return err
		}
		msg := models.BatchMessage{BatchID: batchID, UserID: userID, NotificationIDs: ids}
		if err := s.transport.Publish(ctx, rabbitmq.QueueNotificationBatch, msg, 0); err != nil {
			return err
		}
		observability.AddNotificationsBatched(len(ids))
	}
	return nil
}

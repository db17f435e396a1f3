package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
)

const preferenceKeyPrefix = "notification:prefs:"

// Service is the ingestion side of the pipeline: it persists
// notifications, hands them to the queue and owns preference access
// with its fail-open cache.
type Service struct {
	notifications repositories.NotificationRepository
	preferences   repositories.PreferenceRepository
	transport     rabbitmq.Transport
	store         cache.Store
	cacheTTL      time.Duration
}

// NewService constructs the notification service.
func NewService(notifications repositories.NotificationRepository, preferences repositories.PreferenceRepository, transport rabbitmq.Transport, store cache.Store, cacheTTL time.Duration) *Service {
	return &Service{
		notifications: notifications,
		preferences:   preferences,
		transport:     transport,
		store:         store,
		cacheTTL:      cacheTTL,
	}
}

// CreateInput carries one notification request.
type CreateInput struct {
	UserID       int
	Type         models.NotificationChannel
	Title        string
	Body         string
	Data         models.NotificationData
	Priority     models.NotificationPriority
	Category     string
	ScheduledFor *time.Time
}

func (in CreateInput) toModel() (models.Notification, error) {
	if in.UserID == 0 {
		return models.Notification{}, fmt.Errorf("%w: user id is required", ErrBadRequest)
	}
	if in.Title == "" && in.Body == "" {
		return models.Notification{}, fmt.Errorf("%w: title or body is required", ErrBadRequest)
	}

	channel := in.Type
	if channel == "" {
		channel = models.ChannelInApp
	}
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityLow
	}
	scheduledFor := time.Now().UTC()
	if in.ScheduledFor != nil {
		scheduledFor = in.ScheduledFor.UTC()
	}

	return models.Notification{
		UserID:       in.UserID,
		Type:         channel,
		Title:        in.Title,
		Body:         in.Body,
		Data:         in.Data,
		Status:       models.StatusPending,
		Priority:     priority,
		Category:     in.Category,
		ScheduledFor: scheduledFor,
	}, nil
}

// Create persists one notification and publishes it onto the priority
// queue. The publish is the critical path: a broker failure surfaces to
// the caller rather than leaving the record stranded.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Notification, error) {
	record, err := in.toModel()
	if err != nil {
		return models.Notification{}, err
	}

	stored, err := s.notifications.Create(ctx, record)
	if err != nil {
		return models.Notification{}, err
	}

	if err := s.transport.Publish(ctx, rabbitmq.QueueNotifications, stored, stored.Priority.QueuePriority()); err != nil {
		return models.Notification{}, fmt.Errorf("publish notification %d: %w", stored.ID, err)
	}
	return stored, nil
}

// CreateBulk persists all records and publishes the whole set as one
// batch-queue message, bypassing the individual priority queue.
func (s *Service) CreateBulk(ctx context.Context, inputs []CreateInput) ([]models.Notification, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty bulk request", ErrBadRequest)
	}

	records := make([]models.Notification, 0, len(inputs))
	for _, in := range inputs {
		record, err := in.toModel()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	stored, err := s.notifications.CreateBulk(ctx, records)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	ids := make([]int, 0, len(stored))
	for _, n := range stored {
		ids = append(ids, n.ID)
	}
	if err := s.notifications.SetBatchID(ctx, ids, batchID); err != nil {
		return nil, err
	}

	// one message per user keeps batches single-user even on the bulk path
	byUser := make(map[int][]int)
	for _, n := range stored {
		byUser[n.UserID] = append(byUser[n.UserID], n.ID)
	}
	for userID, userIDs := range byUser {
		msg := models.BatchMessage{BatchID: batchID, UserID: userID, NotificationIDs: userIDs}
		if err := s.transport.Publish(ctx, rabbitmq.QueueNotificationBatch, msg, 0); err != nil {
			return nil, fmt.Errorf("publish batch %s: %w", batchID, err)
		}
	}
	return stored, nil
}

// List returns a page of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.notifications.List(ctx, userID, limit, offset)
}

// MarkSeen stamps seen_at on the user's own notification.
func (s *Service) MarkSeen(ctx context.Context, id, userID int) error {
	return s.notifications.MarkSeen(ctx, id, userID)
}

// GetPreferences returns the user's preferences, served from cache when
// possible. Cache failures fall through to the store and never block.
func (s *Service) GetPreferences(ctx context.Context, userID int) (models.Preferences, error) {
	key := fmt.Sprintf("%s%d", preferenceKeyPrefix, userID)

	if cached, err := s.store.Get(ctx, key); err == nil {
		var prefs models.Preferences
		if err := json.Unmarshal([]byte(cached), &prefs); err == nil {
			return prefs, nil
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Printf("preference cache read failed for user %d: %v", userID, err)
	}

	prefs, err := s.preferences.GetOrCreate(ctx, userID)
	if err != nil {
		return models.Preferences{}, err
	}

	if data, err := json.Marshal(prefs); err == nil {
		if err := s.store.SetEx(ctx, key, string(data), s.cacheTTL); err != nil {
			log.Printf("preference cache write failed for user %d: %v", userID, err)
		}
	}
	return prefs, nil
}

// UpdatePreferences applies a partial update and invalidates the cache.
func (s *Service) UpdatePreferences(ctx context.Context, userID int, update models.PreferencesUpdate) (models.Preferences, error) {
	prefs, err := s.preferences.Update(ctx, userID, update)
	if err != nil {
		return models.Preferences{}, err
	}

	key := fmt.Sprintf("%s%d", preferenceKeyPrefix, userID)
	if err := s.store.Del(ctx, key); err != nil {
		log.Printf("preference cache invalidation failed for user %d: %v", userID, err)
	}
	return prefs, nil
}

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var stored models.Notification
	if val := args.Get(0); val != nil {
		stored = val.(models.Notification)
	}
	return stored, args.Error(1)
}

func (m *NotificationRepositoryMock) CreateBulk(ctx context.Context, list []models.Notification) ([]models.Notification, error) {
	args := m.Called(ctx, list)
	var stored []models.Notification
	if val := args.Get(0); val != nil {
		stored = val.([]models.Notification)
	}
	return stored, args.Error(1)
}

func (m *NotificationRepositoryMock) GetByID(ctx context.Context, id int) (models.Notification, error) {
	args := m.Called(ctx, id)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

func (m *NotificationRepositoryMock) List(ctx context.Context, userID int, limit, offset int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit, offset)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkSeen(ctx context.Context, id int, userID int) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) ClaimPending(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, now, limit)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkProcessing(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) SetBatchID(ctx context.Context, ids []int, batchID string) error {
	args := m.Called(ctx, ids, batchID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkDelivered(ctx context.Context, id int, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkFailed(ctx context.Context, id int, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) MarkSkipped(ctx context.Context, id int, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) Reschedule(ctx context.Context, id int, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type PreferenceRepositoryMock struct {
	mock.Mock
}

func (m *PreferenceRepositoryMock) GetOrCreate(ctx context.Context, userID int) (models.Preferences, error) {
	args := m.Called(ctx, userID)
	var prefs models.Preferences
	if val := args.Get(0); val != nil {
		prefs = val.(models.Preferences)
	}
	return prefs, args.Error(1)
}

func (m *PreferenceRepositoryMock) Update(ctx context.Context, userID int, update models.PreferencesUpdate) (models.Preferences, error) {
	args := m.Called(ctx, userID, update)
	var prefs models.Preferences
	if val := args.Get(0); val != nil {
		prefs = val.(models.Preferences)
	}
	return prefs, args.Error(1)
}

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) Publish(ctx context.Context, queue string, message any, priority uint8) error {
	args := m.Called(ctx, queue, message, priority)
	return args.Error(0)
}

func (m *TransportMock) Consume(queue string, prefetch int, handler rabbitmq.Handler) error {
	args := m.Called(queue, prefetch, handler)
	return args.Error(0)
}

func (m *TransportMock) Healthy() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *TransportMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

type RegistryMock struct {
	mock.Mock
}

func (m *RegistryMock) Register(ctx context.Context, client *ws.Client, rooms []int) {
	m.Called(ctx, client, rooms)
}

func (m *RegistryMock) Unregister(ctx context.Context, client *ws.Client) {
	m.Called(ctx, client)
}

func (m *RegistryMock) Send(userID int, event string, payload interface{}) bool {
	args := m.Called(userID, event, payload)
	return args.Bool(0)
}

func (m *RegistryMock) BroadcastToRoom(chatID int, exceptUserID int, event string, payload interface{}) {
	m.Called(chatID, exceptUserID, event, payload)
}

func (m *RegistryMock) JoinRoom(userID, chatID int) {
	m.Called(userID, chatID)
}

func (m *RegistryMock) IsOnline(userID int) bool {
	args := m.Called(userID)
	return args.Bool(0)
}

type CacheStoreMock struct {
	mock.Mock
}

func (m *CacheStoreMock) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *CacheStoreMock) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *CacheStoreMock) Del(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *CacheStoreMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *CacheStoreMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ repositories.PreferenceRepository = (*PreferenceRepositoryMock)(nil)
var _ rabbitmq.Transport = (*TransportMock)(nil)
var _ ws.Registry = (*RegistryMock)(nil)
var _ cache.Store = (*CacheStoreMock)(nil)

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/cache"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/notification"
	"messaging-service/internal/rabbitmq"
)

type notificationFixture struct {
	repo      *mocks.NotificationRepositoryMock
	prefs     *mocks.PreferenceRepositoryMock
	transport *mocks.TransportMock
	router    *gin.Engine
}

func newNotificationFixture() notificationFixture {
	gin.SetMode(gin.TestMode)

	repo := new(mocks.NotificationRepositoryMock)
	prefRepo := new(mocks.PreferenceRepositoryMock)
	transport := new(mocks.TransportMock)
	service := notification.NewService(repo, prefRepo, transport, cache.NewMemory(), time.Minute)
	handler := NewNotificationHandler(service)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 10)
		c.Next()
	})
	r.POST("/notifications", handler.Create)
	r.POST("/notifications/bulk", handler.CreateBulk)
	r.GET("/notifications", handler.List)
	r.POST("/notifications/:notification_id/seen", handler.MarkSeen)
	r.GET("/notifications/preferences", handler.GetPreferences)
	r.PATCH("/notifications/preferences", handler.UpdatePreferences)

	return notificationFixture{repo: repo, prefs: prefRepo, transport: transport, router: r}
}

func TestCreateNotification(t *testing.T) {
	f := newNotificationFixture()

	stored := models.Notification{ID: 1, UserID: 10, Type: models.ChannelPush, Status: models.StatusPending, Priority: models.PriorityHigh}
	f.repo.On("Create", mock.Anything, mock.Anything).Return(stored, nil).Once()
	f.transport.On("Publish", mock.Anything, rabbitmq.QueueNotifications, stored, uint8(3)).Return(nil).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/notifications", gin.H{
		"user_id": 10, "type": "push", "title": "hello", "priority": "high",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	f.transport.AssertExpectations(t)
}

func TestCreateNotificationValidation(t *testing.T) {
	f := newNotificationFixture()

	rec := doJSON(t, f.router, http.MethodPost, "/notifications", gin.H{"title": "no user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNotificationMissingContentIsBadRequest(t *testing.T) {
	f := newNotificationFixture()

	// binding passes (user_id present) so the service validation answers
	rec := doJSON(t, f.router, http.MethodPost, "/notifications", gin.H{"user_id": 10})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateBulkInvalidElementIsBadRequest(t *testing.T) {
	f := newNotificationFixture()

	rec := doJSON(t, f.router, http.MethodPost, "/notifications/bulk", gin.H{
		"notifications": []gin.H{
			{"user_id": 10, "title": "a"},
			{"user_id": 20},
		},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.repo.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything)
}

func TestCreateBulkNotifications(t *testing.T) {
	f := newNotificationFixture()

	stored := []models.Notification{{ID: 1, UserID: 10}, {ID: 2, UserID: 10}}
	f.repo.On("CreateBulk", mock.Anything, mock.Anything).Return(stored, nil).Once()
	f.repo.On("SetBatchID", mock.Anything, []int{1, 2}, mock.Anything).Return(nil).Once()
	f.transport.On("Publish", mock.Anything, rabbitmq.QueueNotificationBatch, mock.Anything, uint8(0)).Return(nil).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/notifications/bulk", gin.H{
		"notifications": []gin.H{
			{"user_id": 10, "title": "a"},
			{"user_id": 10, "title": "b"},
		},
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
}

func TestListNotifications(t *testing.T) {
	f := newNotificationFixture()

	f.repo.On("List", mock.Anything, 10, 20, 0).
		Return([]models.Notification{{ID: 1, UserID: 10}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMarkNotificationSeen(t *testing.T) {
	f := newNotificationFixture()

	f.repo.On("MarkSeen", mock.Anything, 1, 10).Return(nil).Once()

	rec := doJSON(t, f.router, http.MethodPost, "/notifications/1/seen", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdatePreferences(t *testing.T) {
	f := newNotificationFixture()

	updated := models.DefaultPreferences(10)
	updated.PushEnabled = false
	f.prefs.On("Update", mock.Anything, 10, mock.MatchedBy(func(u models.PreferencesUpdate) bool {
		return u.PushEnabled != nil && !*u.PushEnabled
	})).Return(updated, nil).Once()

	rec := doJSON(t, f.router, http.MethodPatch, "/notifications/preferences", gin.H{"push_enabled": false})

	require.Equal(t, http.StatusOK, rec.Code)
	f.prefs.AssertExpectations(t)
}

package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
)

func newUserRouter(users *mocks.UserRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewUserHandler(users)
	r := gin.New()
	r.GET("/users/:user_id/presence", handler.GetPresence)
	return r
}

func TestGetPresence(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	lastSeen := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	users.On("GetUser", mock.Anything, 7).
		Return(models.User{ID: 7, IsOnline: false, LastSeen: &lastSeen}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/7/presence", nil)
	rec := httptest.NewRecorder()
	newUserRouter(users).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.User.ID)
	assert.False(t, resp.User.IsOnline)
	require.NotNil(t, resp.User.LastSeen)
	assert.True(t, lastSeen.Equal(*resp.User.LastSeen))
}

func TestGetPresenceUnknownUser(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	users.On("GetUser", mock.Anything, 99).Return(models.User{}, sql.ErrNoRows).Once()

	req := httptest.NewRequest(http.MethodGet, "/users/99/presence", nil)
	rec := httptest.NewRecorder()
	newUserRouter(users).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

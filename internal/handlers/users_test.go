package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/services"
	"messenger-service/internal/telemetry"
)

type userRouter struct {
	router    *gin.Engine
	users     *mocks.UserRepositoryMock
	friends   *mocks.FriendRepositoryMock
	notifier  *mocks.NotifierMock
	publisher *mocks.PublisherMock
}

func setupUserRouter() userRouter {
	f := userRouter{
		users:     new(mocks.UserRepositoryMock),
		friends:   new(mocks.FriendRepositoryMock),
		notifier:  new(mocks.NotifierMock),
		publisher: new(mocks.PublisherMock),
	}
	svc := services.NewUserService(f.users, f.friends, f.notifier, mocks.OnlineSet{1: true, 2: true}, zap.NewNop())
	audit := telemetry.NewAuditEmitter(f.publisher, "audit.messenger", "messenger-service", "test", zap.NewNop())
	handler := NewUserHandler(svc, audit, zap.NewNop())
	f.router = setupRouter(func(r *gin.Engine) {
		r.GET("/users/search", handler.Search)
		r.GET("/users/profile", handler.Profile)
		r.PUT("/users/profile", handler.UpdateProfile)
		r.GET("/users/status/:userId", handler.Status)
		r.POST("/users/:userId/block", handler.Block)
		r.DELETE("/users/:userId/block", handler.Unblock)
	})
	return f
}

func TestSearchTooShort(t *testing.T) {
	f := setupUserRouter()

	rec, resp := serve(t, f.router, http.MethodGet, "/users/search?q=a", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "search must have at least 2 characters", resp["error"])
}

func TestSearchReturnsUsers(t *testing.T) {
	f := setupUserRouter()
	f.users.On("Search", mock.Anything, int64(1), "bo", services.SearchLimit).
		Return([]models.UserSummary{{ID: 2, DisplayName: "bob", Status: models.StatusOnline}}, nil).Once()

	rec, resp := serve(t, f.router, http.MethodGet, "/users/search?q=%20bo%20", "")

	require.Equal(t, http.StatusOK, rec.Code)
	list := resp["users"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, true, list[0].(map[string]any)["isOnline"])
}

func TestProfileUnknownUser(t *testing.T) {
	f := setupUserRouter()
	f.users.On("GetUser", mock.Anything, int64(1)).Return(nil, repositories.ErrUserNotFound).Once()

	rec, _ := serve(t, f.router, http.MethodGet, "/users/profile", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProfileRejectsShortName(t *testing.T) {
	f := setupUserRouter()

	rec, resp := serve(t, f.router, http.MethodPut, "/users/profile", `{"displayName":" x "}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "display name must be between 2 and 50 characters", resp["error"])
	f.users.AssertNotCalled(t, "UpdateProfile", mock.Anything, mock.Anything, mock.Anything)
}

func TestStatusReportsDerivedOnline(t *testing.T) {
	f := setupUserRouter()
	f.users.On("GetUser", mock.Anything, int64(3)).Return(models.User{ID: 3, Status: models.StatusOnline}, nil).Once()

	rec, resp := serve(t, f.router, http.MethodGet, "/users/status/3", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", resp["status"])
	assert.Equal(t, false, resp["isOnline"])
}

func TestBlockEmitsAudit(t *testing.T) {
	f := setupUserRouter()
	f.users.On("GetUser", mock.Anything, int64(2)).Return(models.User{ID: 2}, nil).Once()
	f.users.On("Block", mock.Anything, int64(1), int64(2)).Return(nil).Once()
	f.publisher.On("Publish", mock.Anything, "audit.messenger", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.Payload.Level == telemetry.LevelSecurity && e.Payload.Text == "user blocked"
	}), mock.Anything).Return(nil).Once()

	rec, _ := serve(t, f.router, http.MethodPost, "/users/2/block", "")

	require.Equal(t, http.StatusOK, rec.Code)
	f.users.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestBlockSelfRejected(t *testing.T) {
	f := setupUserRouter()

	rec, _ := serve(t, f.router, http.MethodPost, "/users/1/block", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUnblock(t *testing.T) {
	f := setupUserRouter()
	f.users.On("Unblock", mock.Anything, int64(1), int64(2)).Return(nil).Once()

	rec, resp := serve(t, f.router, http.MethodDelete, "/users/2/block", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user unblocked", resp["message"])
}

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
)

func setupFriendRouter() (*gin.Engine, *mocks.FriendRepositoryMock, *mocks.UserRepositoryMock, *mocks.NotifierMock) {
	friends := new(mocks.FriendRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	notifier := new(mocks.NotifierMock)
	svc := services.NewFriendService(friends, users, notifier, mocks.OnlineSet{2: true}, zap.NewNop())
	handler := NewFriendHandler(svc, zap.NewNop())
	router := setupRouter(func(r *gin.Engine) {
		r.GET("/friends", handler.List)
		r.GET("/friends/requests", handler.Requests)
		r.POST("/friends/requests", handler.SendRequest)
		r.PUT("/friends/requests/:requestId", handler.Respond)
		r.DELETE("/friends/:friendId", handler.Remove)
	})
	return router, friends, users, notifier
}

func TestListFriendsDerivesOnline(t *testing.T) {
	router, friends, _, _ := setupFriendRouter()
	friends.On("ListFriends", mock.Anything, int64(1)).Return([]models.UserSummary{
		{ID: 2, Status: models.StatusOnline},
		{ID: 3, Status: models.StatusOnline},
	}, nil).Once()

	rec, resp := serve(t, router, http.MethodGet, "/friends", "")

	require.Equal(t, http.StatusOK, rec.Code)
	list := resp["friends"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, true, list[0].(map[string]any)["isOnline"])
	assert.Equal(t, false, list[1].(map[string]any)["isOnline"])
}

func TestListRequestsEmpty(t *testing.T) {
	router, friends, _, _ := setupFriendRouter()
	friends.On("ListPendingRequests", mock.Anything, int64(1)).Return(nil, nil).Once()

	rec, resp := serve(t, router, http.MethodGet, "/friends/requests", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, resp["requests"])
}

func TestSendRequestToSelfRejected(t *testing.T) {
	router, _, users, _ := setupFriendRouter()

	rec, resp := serve(t, router, http.MethodPost, "/friends/requests", `{"userId":1}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot send a friend request to yourself", resp["error"])
	users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestSendRequestCreated(t *testing.T) {
	router, friends, users, notifier := setupFriendRouter()
	users.On("GetUser", mock.Anything, int64(1)).Return(models.User{ID: 1, DisplayName: "alice"}, nil).Once()
	users.On("GetUser", mock.Anything, int64(2)).Return(models.User{ID: 2, DisplayName: "bob"}, nil).Once()
	users.On("IsBlockedEither", mock.Anything, int64(1), int64(2)).Return(false, nil).Once()
	friends.On("AreFriends", mock.Anything, int64(1), int64(2)).Return(false, nil).Once()
	friends.On("FindRequestBetween", mock.Anything, int64(1), int64(2)).
		Return(nil, repositories.ErrFriendRequestNotFound).Once()
	friends.On("CreateRequest", mock.Anything, int64(1), int64(2), (*string)(nil)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()
	notifier.On("SendToUser", int64(2), mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventFriendRequest
	})).Return(true).Once()

	rec, resp := serve(t, router, http.MethodPost, "/friends/requests", `{"userId":2}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	req := resp["request"].(map[string]any)
	assert.EqualValues(t, 5, req["id"])
	notifier.AssertExpectations(t)
}

func TestRespondToSettledRequestConflict(t *testing.T) {
	router, friends, _, _ := setupFriendRouter()
	friends.On("GetRequest", mock.Anything, int64(5)).
		Return(models.FriendRequest{ID: 5, SenderID: 2, RecipientID: 1, Status: models.FriendRequestAccepted}, nil).Once()

	rec, _ := serve(t, router, http.MethodPut, "/friends/requests/5", `{"status":"accepted"}`)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRespondInvalidDecision(t *testing.T) {
	router, friends, _, _ := setupFriendRouter()

	rec, resp := serve(t, router, http.MethodPut, "/friends/requests/5", `{"status":"maybe"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "status must be accepted or rejected", resp["error"])
	friends.AssertNotCalled(t, "GetRequest", mock.Anything, mock.Anything)
}

func TestRemoveFriendNotifiesOtherSide(t *testing.T) {
	router, friends, _, notifier := setupFriendRouter()
	friends.On("RemoveFriendship", mock.Anything, int64(1), int64(2)).Return(true, nil).Once()
	notifier.On("SendToUser", int64(2), mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventFriendRemoved
	})).Return(false).Once()

	rec, _ := serve(t, router, http.MethodDelete, "/friends/2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	notifier.AssertExpectations(t)
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type friendFixture struct {
	svc      *FriendService
	friends  *mocks.FriendRepositoryMock
	users    *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock
}

func newFriendFixture() friendFixture {
	f := friendFixture{
		friends:  new(mocks.FriendRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
	}
	f.svc = NewFriendService(f.friends, f.users, f.notifier, mocks.OnlineSet{}, zap.NewNop())
	return f
}

func (f friendFixture) expectEligible(ctx context.Context, from, to int64) {
	f.users.On("GetUser", ctx, from).Return(models.User{ID: from, DisplayName: "alice"}, nil).Once()
	f.users.On("GetUser", ctx, to).Return(models.User{ID: to, DisplayName: "bob"}, nil).Once()
	f.users.On("IsBlockedEither", ctx, from, to).Return(false, nil).Once()
	f.friends.On("AreFriends", ctx, from, to).Return(false, nil).Once()
}

func TestSendRequestToSelfIsRejected(t *testing.T) {
	f := newFriendFixture()
	_, err := f.svc.SendRequest(context.Background(), 1, 1, nil)
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	f.users.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
}

func TestSendRequestCreatesAndNotifiesRecipient(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.expectEligible(ctx, 1, 2)
	f.friends.On("FindRequestBetween", ctx, int64(1), int64(2)).Return(nil, repositories.ErrFriendRequestNotFound).Once()
	f.friends.On("CreateRequest", ctx, int64(1), int64(2), (*string)(nil)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()
	f.notifier.On("SendToUser", int64(2), mock.MatchedBy(func(e models.Event) bool {
		req, ok := e.Data.(models.FriendRequest)
		return e.Type == models.EventFriendRequest && ok && req.Sender != nil && req.Sender.ID == 1
	})).Return(true).Once()

	req, err := f.svc.SendRequest(ctx, 1, 2, strPtr("   "))
	require.NoError(t, err)
	assert.Equal(t, int64(5), req.ID)
	f.friends.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestSendRequestAutoAcceptsReversePending(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.expectEligible(ctx, 1, 2)
	pending := models.FriendRequest{ID: 5, SenderID: 2, RecipientID: 1, Status: models.FriendRequestPending}
	f.friends.On("FindRequestBetween", ctx, int64(1), int64(2)).Return(pending, nil).Once()
	accepted := pending
	accepted.Status = models.FriendRequestAccepted
	f.friends.On("AcceptRequest", ctx, int64(5)).Return(accepted, nil).Once()
	f.users.On("GetSummaries", ctx, []int64{2, 1}).Return([]models.UserSummary{{ID: 1}, {ID: 2}}, nil).Once()
	f.notifier.On("SendToUser", int64(2), models.NewEvent(models.EventFriendRequestAccepted, models.FriendAcceptedPayload{
		RequestID: 5,
		Friend:    models.UserSummary{ID: 1},
	})).Return(true).Once()
	f.notifier.On("SendToUser", int64(1), models.NewEvent(models.EventFriendRequestAccepted, models.FriendAcceptedPayload{
		RequestID: 5,
		Friend:    models.UserSummary{ID: 2},
	})).Return(true).Once()

	req, err := f.svc.SendRequest(ctx, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestAccepted, req.Status)
	f.friends.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestSendRequestWhilePendingConflicts(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.expectEligible(ctx, 1, 2)
	f.friends.On("FindRequestBetween", ctx, int64(1), int64(2)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()

	_, err := f.svc.SendRequest(ctx, 1, 2, nil)
	kind, _ := KindOf(err)
	assert.Equal(t, KindConflict, kind)
}

func TestSendRequestReopensRejected(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.expectEligible(ctx, 1, 2)
	f.friends.On("FindRequestBetween", ctx, int64(1), int64(2)).
		Return(models.FriendRequest{ID: 5, SenderID: 2, RecipientID: 1, Status: models.FriendRequestRejected}, nil).Once()
	f.friends.On("ReopenRequest", ctx, int64(5), int64(1), int64(2), (*string)(nil)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()
	f.notifier.On("SendToUser", int64(2), mock.Anything).Return(false).Once()

	req, err := f.svc.SendRequest(ctx, 1, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.SenderID)
	assert.Equal(t, models.FriendRequestPending, req.Status)
	f.friends.AssertExpectations(t)
}

func TestSendRequestToBlockedUserIsRejected(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.users.On("GetUser", ctx, int64(1)).Return(models.User{ID: 1}, nil).Once()
	f.users.On("GetUser", ctx, int64(2)).Return(models.User{ID: 2}, nil).Once()
	f.users.On("IsBlockedEither", ctx, int64(1), int64(2)).Return(true, nil).Once()

	_, err := f.svc.SendRequest(ctx, 1, 2, nil)
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	f.friends.AssertNotCalled(t, "FindRequestBetween", mock.Anything, mock.Anything, mock.Anything)
}

func TestRespondTwiceConflicts(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.friends.On("GetRequest", ctx, int64(5)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestRejected}, nil).Once()

	_, err := f.svc.Respond(ctx, 2, 5, models.FriendRequestAccepted)
	kind, _ := KindOf(err)
	assert.Equal(t, KindConflict, kind)
	f.friends.AssertNotCalled(t, "AcceptRequest", mock.Anything, mock.Anything)
}

func TestRespondBySenderIsForbidden(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.friends.On("GetRequest", ctx, int64(5)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()

	_, err := f.svc.Respond(ctx, 1, 5, models.FriendRequestRejected)
	kind, _ := KindOf(err)
	assert.Equal(t, KindForbidden, kind)
}

func TestRespondRejectNotifiesSender(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.friends.On("GetRequest", ctx, int64(5)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestPending}, nil).Once()
	f.friends.On("RejectRequest", ctx, int64(5)).
		Return(models.FriendRequest{ID: 5, SenderID: 1, RecipientID: 2, Status: models.FriendRequestRejected}, nil).Once()
	f.notifier.On("SendToUser", int64(1), models.NewEvent(models.EventFriendRequestRejected, models.FriendRejectedPayload{
		RequestID: 5,
		UserID:    2,
	})).Return(true).Once()

	req, err := f.svc.Respond(ctx, 2, 5, models.FriendRequestRejected)
	require.NoError(t, err)
	assert.Equal(t, models.FriendRequestRejected, req.Status)
	f.notifier.AssertExpectations(t)
}

func TestRespondInvalidDecision(t *testing.T) {
	f := newFriendFixture()
	_, err := f.svc.Respond(context.Background(), 2, 5, models.FriendRequestPending)
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
}

func TestRemoveFriendNotFound(t *testing.T) {
	f := newFriendFixture()
	ctx := context.Background()
	f.friends.On("RemoveFriendship", ctx, int64(1), int64(2)).Return(false, nil).Once()

	err := f.svc.RemoveFriend(ctx, 1, 2)
	kind, _ := KindOf(err)
	assert.Equal(t, KindNotFound, kind)
	f.notifier.AssertNotCalled(t, "SendToUser", mock.Anything, mock.Anything)
}

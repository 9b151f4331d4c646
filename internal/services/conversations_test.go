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

type conversationFixture struct {
	svc      *ConversationService
	convs    *mocks.ConversationRepositoryMock
	users    *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock
}

func newConversationFixture() conversationFixture {
	f := conversationFixture{
		convs:    new(mocks.ConversationRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
	}
	f.svc = NewConversationService(f.convs, f.users, f.notifier, mocks.OnlineSet{2: true}, zap.NewNop())
	return f
}

func summaries(ids ...int64) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.UserSummary{ID: id, Status: models.StatusOnline})
	}
	return out
}

func TestCreateDirectNotifiesBothParticipants(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	f.users.On("GetSummaries", ctx, []int64{1, 2}).Return(summaries(1, 2), nil).Once()
	f.convs.On("CreateOrGetDirect", ctx, int64(1), int64(2)).
		Return(models.Conversation{ID: 10, Participants: summaries(1, 2)}, true, nil).Once()
	for _, id := range []int64{1, 2} {
		f.notifier.On("JoinConversation", id, int64(10)).Return(true).Once()
		f.notifier.On("SendToUser", id, mock.MatchedBy(func(e models.Event) bool {
			return e.Type == models.EventNewConversation
		})).Return(true).Once()
	}

	conv, created, err := f.svc.Create(ctx, 1, CreateConversationInput{UserIDs: []int64{2, 1, 2}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, conv.Participants[0].IsOnline)
	assert.True(t, conv.Participants[1].IsOnline)
	f.notifier.AssertExpectations(t)
}

func TestCreateExistingDirectNotifiesCreatorOnly(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	f.users.On("GetSummaries", ctx, []int64{1, 2}).Return(summaries(1, 2), nil).Once()
	f.convs.On("CreateOrGetDirect", ctx, int64(1), int64(2)).
		Return(models.Conversation{ID: 10, Participants: summaries(1, 2)}, false, nil).Once()
	f.notifier.On("JoinConversation", int64(1), int64(10)).Return(true).Once()
	f.notifier.On("SendToUser", int64(1), mock.Anything).Return(true).Once()

	conv, created, err := f.svc.Create(ctx, 1, CreateConversationInput{UserIDs: []int64{2}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(10), conv.ID)
	f.notifier.AssertNotCalled(t, "SendToUser", int64(2), mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestCreateGroupRequiresName(t *testing.T) {
	f := newConversationFixture()
	_, _, err := f.svc.Create(context.Background(), 1, CreateConversationInput{UserIDs: []int64{2, 3}, IsGroup: true, Name: strPtr("  ")})
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	f.convs.AssertNotCalled(t, "CreateGroup", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateDirectWithThreeUsersIsRejected(t *testing.T) {
	f := newConversationFixture()
	_, _, err := f.svc.Create(context.Background(), 1, CreateConversationInput{UserIDs: []int64{2, 3}})
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
}

func TestCreateWithUnknownUserIsRejected(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	f.users.On("GetSummaries", ctx, []int64{1, 9}).Return(summaries(1), nil).Once()

	_, _, err := f.svc.Create(ctx, 1, CreateConversationInput{UserIDs: []int64{9}})
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	f.convs.AssertNotCalled(t, "CreateOrGetDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateGroupMakesCreatorAdmin(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	f.users.On("GetSummaries", ctx, []int64{1, 2, 3}).Return(summaries(1, 2, 3), nil).Once()
	group := models.Conversation{ID: 11, IsGroup: true, Name: strPtr("team"), Participants: summaries(1, 2, 3), Admins: []int64{1}}
	f.convs.On("CreateGroup", ctx, int64(1), "team", (*string)(nil), []int64{2, 3}).Return(group, nil).Once()
	f.notifier.On("JoinConversation", mock.Anything, int64(11)).Return(false).Times(3)
	f.notifier.On("SendToUser", mock.Anything, mock.Anything).Return(false).Times(3)

	conv, created, err := f.svc.Create(ctx, 1, CreateConversationInput{UserIDs: []int64{2, 3}, IsGroup: true, Name: strPtr(" team ")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, conv.IsAdmin(1))
	f.convs.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestRemoveSoleAdminIsRejected(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	group := models.Conversation{ID: 11, IsGroup: true, Participants: summaries(1, 2), Admins: []int64{1}}
	f.convs.On("GetConversation", ctx, int64(11)).Return(group, nil).Once()
	f.convs.On("RemoveParticipant", ctx, int64(11), int64(1)).Return(repositories.ErrSoleAdmin).Once()

	_, err := f.svc.RemoveParticipant(ctx, 1, 11, 1)
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	f.notifier.AssertNotCalled(t, "LeaveConversation", mock.Anything, mock.Anything)
}

func TestAddParticipantsByNonAdminIsForbidden(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	group := models.Conversation{ID: 11, IsGroup: true, Participants: summaries(1, 2), Admins: []int64{1}}
	f.convs.On("GetConversation", ctx, int64(11)).Return(group, nil).Once()

	_, err := f.svc.AddParticipants(ctx, 2, 11, []int64{3})
	kind, _ := KindOf(err)
	assert.Equal(t, KindForbidden, kind)
}

func TestAddParticipantsSubscribesNewMembers(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()
	before := models.Conversation{ID: 11, IsGroup: true, Participants: summaries(1, 2), Admins: []int64{1}}
	after := models.Conversation{ID: 11, IsGroup: true, Participants: summaries(1, 2, 3), Admins: []int64{1}}
	f.convs.On("GetConversation", ctx, int64(11)).Return(before, nil).Once()
	f.users.On("GetSummaries", ctx, []int64{3, 2}).Return(summaries(2, 3), nil).Once()
	f.convs.On("AddParticipants", ctx, int64(11), []int64{3, 2}).Return([]int64{3}, nil).Once()
	f.convs.On("GetConversation", ctx, int64(11)).Return(after, nil).Once()
	f.notifier.On("JoinConversation", int64(3), int64(11)).Return(true).Once()
	f.notifier.On("SendToUser", int64(3), mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventNewConversation
	})).Return(true).Once()
	for _, id := range []int64{1, 2} {
		f.notifier.On("SendToUser", id, mock.MatchedBy(func(e models.Event) bool {
			return e.Type == models.EventConversationUpdated
		})).Return(true).Once()
	}

	conv, err := f.svc.AddParticipants(ctx, 1, 11, []int64{3, 2})
	require.NoError(t, err)
	assert.Len(t, conv.Participants, 3)
	f.notifier.AssertExpectations(t)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, uniqueIDs([]int64{1, 2, 0, 2, -4, 3, 1}))
	assert.Empty(t, uniqueIDs(nil))
}

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

func strPtr(s string) *string { return &s }

func directConversation(id int64, users ...int64) models.Conversation {
	conv := models.Conversation{ID: id}
	for _, u := range users {
		conv.Participants = append(conv.Participants, models.UserSummary{ID: u, Email: "user@example.com"})
	}
	return conv
}

func newMessageService() (*MessageService, *mocks.ConversationRepositoryMock, *mocks.MessageRepositoryMock, *mocks.NotifierMock) {
	convs := new(mocks.ConversationRepositoryMock)
	msgs := new(mocks.MessageRepositoryMock)
	notifier := new(mocks.NotifierMock)
	return NewMessageService(convs, msgs, notifier, zap.NewNop()), convs, msgs, notifier
}

func TestSendPersistsThenBroadcasts(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()
	ctx := context.Background()

	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 1, 2), nil).Once()
	msgs.On("CreateMessage", ctx, mock.MatchedBy(func(m models.Message) bool {
		return m.ConversationID == 10 && m.SenderID == 1 && m.Content != nil && *m.Content == "hello"
	})).Return(models.Message{ID: 99, ConversationID: 10, SenderID: 1, Content: strPtr("hello")}, nil).Once()
	convs.On("SetLastMessage", ctx, int64(10), int64(99)).Return(nil).Once()
	notifier.On("BroadcastToConversation", int64(10), mock.MatchedBy(func(e models.Event) bool {
		msg, ok := e.Data.(models.Message)
		return e.Type == models.EventNewMessage && ok && msg.ID == 99 && msg.Sender != nil && msg.Sender.Email == ""
	}), nil).Once()
	convs.On("IncrementUnread", ctx, int64(10), int64(1)).Return(nil).Once()

	msg, err := svc.Send(ctx, 1, SendInput{ConversationID: 10, Content: strPtr("  hello  "), Source: "ws"})
	require.NoError(t, err)
	assert.Equal(t, int64(99), msg.ID)

	convs.AssertExpectations(t)
	msgs.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSendCountsUnreadBeforeBroadcast(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()
	ctx := context.Background()
	var order []string

	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 1, 2), nil).Once()
	msgs.On("CreateMessage", ctx, mock.Anything).Return(models.Message{ID: 99, ConversationID: 10, SenderID: 1}, nil).Once()
	convs.On("SetLastMessage", ctx, int64(10), int64(99)).Return(nil).Once()
	convs.On("IncrementUnread", ctx, int64(10), int64(1)).Return(nil).Once().
		Run(func(mock.Arguments) { order = append(order, "unread") })
	notifier.On("BroadcastToConversation", int64(10), mock.Anything, nil).Once().
		Run(func(mock.Arguments) { order = append(order, "broadcast") })

	_, err := svc.Send(ctx, 1, SendInput{ConversationID: 10, Content: strPtr("hi")})
	require.NoError(t, err)
	assert.Equal(t, []string{"unread", "broadcast"}, order)
}

func TestSendRejectsEmptyMessage(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()

	_, err := svc.Send(context.Background(), 1, SendInput{ConversationID: 10, Content: strPtr("   ")})
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)

	convs.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
	msgs.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "BroadcastToConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	svc, convs, msgs, _ := newMessageService()
	ctx := context.Background()
	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 2, 3), nil).Once()

	_, err := svc.Send(ctx, 1, SendInput{ConversationID: 10, Content: strPtr("hi")})
	kind, _ := KindOf(err)
	assert.Equal(t, KindForbidden, kind)
	msgs.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendRejectsReplyFromOtherConversation(t *testing.T) {
	svc, convs, msgs, _ := newMessageService()
	ctx := context.Background()
	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 1, 2), nil).Once()
	msgs.On("GetMessage", ctx, int64(5)).Return(models.Message{ID: 5, ConversationID: 11}, nil).Once()

	replyTo := int64(5)
	_, err := svc.Send(ctx, 1, SendInput{ConversationID: 10, Content: strPtr("hi"), ReplyToID: &replyTo})
	kind, _ := KindOf(err)
	assert.Equal(t, KindValidation, kind)
	msgs.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendDoesNotBroadcastWhenLastMessageFails(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()
	ctx := context.Background()
	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 1, 2), nil).Once()
	msgs.On("CreateMessage", ctx, mock.Anything).Return(models.Message{ID: 99, ConversationID: 10}, nil).Once()
	convs.On("SetLastMessage", ctx, int64(10), int64(99)).Return(assert.AnError).Once()

	_, err := svc.Send(ctx, 1, SendInput{ConversationID: 10, Content: strPtr("hi")})
	require.Error(t, err)
	_, classified := KindOf(err)
	assert.False(t, classified)
	notifier.AssertNotCalled(t, "BroadcastToConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteReassignsLastMessage(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()
	ctx := context.Background()
	msgs.On("GetMessage", ctx, int64(7)).Return(models.Message{ID: 7, ConversationID: 10, SenderID: 1}, nil).Once()
	msgs.On("SoftDelete", ctx, int64(7)).Return(true, nil).Once()
	convs.On("ReassignLastMessage", ctx, int64(10), int64(7)).Return(true, nil).Once()
	convs.On("GetConversation", ctx, int64(10)).Return(directConversation(10, 1, 2), nil).Once()
	notifier.On("BroadcastToConversation", int64(10), mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventMessageDeleted
	}), nil).Once()
	notifier.On("BroadcastToConversation", int64(10), mock.MatchedBy(func(e models.Event) bool {
		return e.Type == models.EventConversationUpdated
	}), nil).Once()

	require.NoError(t, svc.Delete(ctx, 1, 7))
	convs.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeleteBySomeoneElseIsForbidden(t *testing.T) {
	svc, _, msgs, _ := newMessageService()
	ctx := context.Background()
	msgs.On("GetMessage", ctx, int64(7)).Return(models.Message{ID: 7, ConversationID: 10, SenderID: 2}, nil).Once()

	err := svc.Delete(ctx, 1, 7)
	kind, _ := KindOf(err)
	assert.Equal(t, KindForbidden, kind)
	msgs.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeleteAlreadyDeletedIsNoop(t *testing.T) {
	svc, convs, msgs, notifier := newMessageService()
	ctx := context.Background()
	msgs.On("GetMessage", ctx, int64(7)).Return(models.Message{ID: 7, ConversationID: 10, SenderID: 1, IsDeleted: true}, nil).Once()
	msgs.On("SoftDelete", ctx, int64(7)).Return(false, nil).Once()

	require.NoError(t, svc.Delete(ctx, 1, 7))
	convs.AssertNotCalled(t, "ReassignLastMessage", mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "BroadcastToConversation", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnreactWithoutReactionIsNotFound(t *testing.T) {
	svc, convs, msgs, _ := newMessageService()
	ctx := context.Background()
	msgs.On("GetMessage", ctx, int64(7)).Return(models.Message{ID: 7, ConversationID: 10}, nil).Once()
	convs.On("IsParticipant", ctx, int64(10), int64(1)).Return(true, nil).Once()
	msgs.On("RemoveReaction", ctx, int64(7), int64(1)).Return(false, nil).Once()

	_, err := svc.Unreact(ctx, 1, 7)
	kind, _ := KindOf(err)
	assert.Equal(t, KindNotFound, kind)
}

func TestListClampsPageSize(t *testing.T) {
	svc, convs, msgs, _ := newMessageService()
	ctx := context.Background()
	convs.On("IsParticipant", ctx, int64(10), int64(1)).Return(true, nil).Once()
	msgs.On("ListMessages", ctx, int64(10), (*models.HistoryCursor)(nil), MaxPageSize).Return([]models.Message{}, nil).Once()

	_, err := svc.List(ctx, 1, 10, nil, 5000)
	require.NoError(t, err)
	msgs.AssertExpectations(t)
}

func TestClassifyMapsRepositorySentinels(t *testing.T) {
	kind, _ := KindOf(classify(repositories.ErrConversationNotFound, "op"))
	assert.Equal(t, KindNotFound, kind)
	kind, _ = KindOf(classify(repositories.ErrSoleAdmin, "op"))
	assert.Equal(t, KindValidation, kind)
	kind, _ = KindOf(classify(repositories.ErrFriendRequestNotActive, "op"))
	assert.Equal(t, KindConflict, kind)
	assert.ErrorIs(t, classify(assert.AnError, "op"), assert.AnError)
	assert.NoError(t, classify(nil, "op"))
}

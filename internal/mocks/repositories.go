package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

var (
	_ repositories.UserRepository         = (*UserRepositoryMock)(nil)
	_ repositories.FriendRepository       = (*FriendRepositoryMock)(nil)
	_ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetSummaries(ctx context.Context, userIDs []int64) ([]models.UserSummary, error) {
	args := m.Called(ctx, userIDs)
	var users []models.UserSummary
	if val := args.Get(0); val != nil {
		users = val.([]models.UserSummary)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) UpsertGoogleUser(ctx context.Context, profile models.GoogleProfile, displayName string) (models.User, error) {
	args := m.Called(ctx, profile, displayName)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) SetStatus(ctx context.Context, userID int64, status models.Status, at time.Time) error {
	args := m.Called(ctx, userID, status, at)
	return args.Error(0)
}

func (m *UserRepositoryMock) UpdateProfile(ctx context.Context, userID int64, update models.ProfileUpdate) (models.User, error) {
	args := m.Called(ctx, userID, update)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) Search(ctx context.Context, userID int64, query string, limit int) ([]models.UserSummary, error) {
	args := m.Called(ctx, userID, query, limit)
	var users []models.UserSummary
	if val := args.Get(0); val != nil {
		users = val.([]models.UserSummary)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) IsBlockedEither(ctx context.Context, a, b int64) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) Block(ctx context.Context, userID, blockedID int64) error {
	args := m.Called(ctx, userID, blockedID)
	return args.Error(0)
}

func (m *UserRepositoryMock) Unblock(ctx context.Context, userID, blockedID int64) error {
	args := m.Called(ctx, userID, blockedID)
	return args.Error(0)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) AreFriends(ctx context.Context, a, b int64) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *FriendRepositoryMock) ListFriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *FriendRepositoryMock) ListFriends(ctx context.Context, userID int64) ([]models.UserSummary, error) {
	args := m.Called(ctx, userID)
	var users []models.UserSummary
	if val := args.Get(0); val != nil {
		users = val.([]models.UserSummary)
	}
	return users, args.Error(1)
}

func (m *FriendRepositoryMock) RemoveFriendship(ctx context.Context, a, b int64) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}

func (m *FriendRepositoryMock) FindRequestBetween(ctx context.Context, a, b int64) (models.FriendRequest, error) {
	args := m.Called(ctx, a, b)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *FriendRepositoryMock) GetRequest(ctx context.Context, requestID int64) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *FriendRepositoryMock) ListPendingRequests(ctx context.Context, recipientID int64) ([]models.FriendRequest, error) {
	args := m.Called(ctx, recipientID)
	var reqs []models.FriendRequest
	if val := args.Get(0); val != nil {
		reqs = val.([]models.FriendRequest)
	}
	return reqs, args.Error(1)
}

func (m *FriendRepositoryMock) CreateRequest(ctx context.Context, senderID, recipientID int64, message *string) (models.FriendRequest, error) {
	args := m.Called(ctx, senderID, recipientID, message)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *FriendRepositoryMock) ReopenRequest(ctx context.Context, requestID, senderID, recipientID int64, message *string) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID, senderID, recipientID, message)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *FriendRepositoryMock) AcceptRequest(ctx context.Context, requestID int64) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func (m *FriendRepositoryMock) RejectRequest(ctx context.Context, requestID int64) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	return friendRequest(args.Get(0)), args.Error(1)
}

func friendRequest(val any) models.FriendRequest {
	if val == nil {
		return models.FriendRequest{}
	}
	return val.(models.FriendRequest)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) CreateOrGetDirect(ctx context.Context, creatorID, otherID int64) (models.Conversation, bool, error) {
	args := m.Called(ctx, creatorID, otherID)
	return conversation(args.Get(0)), args.Bool(1), args.Error(2)
}

func (m *ConversationRepositoryMock) CreateGroup(ctx context.Context, creatorID int64, name string, avatar *string, memberIDs []int64) (models.Conversation, error) {
	args := m.Called(ctx, creatorID, name, avatar, memberIDs)
	return conversation(args.Get(0)), args.Error(1)
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, conversationID int64) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	return conversation(args.Get(0)), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int64) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

func (m *ConversationRepositoryMock) ListIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) SetLastMessage(ctx context.Context, conversationID, messageID int64) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ReassignLastMessage(ctx context.Context, conversationID, deletedMessageID int64) (bool, error) {
	args := m.Called(ctx, conversationID, deletedMessageID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) IncrementUnread(ctx context.Context, conversationID, exceptUserID int64) error {
	args := m.Called(ctx, conversationID, exceptUserID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ResetUnread(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) AddParticipants(ctx context.Context, conversationID int64, userIDs []int64) ([]int64, error) {
	args := m.Called(ctx, conversationID, userIDs)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) RemoveParticipant(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) UpdateGroup(ctx context.Context, conversationID int64, name, avatar *string) error {
	args := m.Called(ctx, conversationID, name, avatar)
	return args.Error(0)
}

func conversation(val any) models.Conversation {
	if val == nil {
		return models.Conversation{}
	}
	return val.(models.Conversation)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	return message(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return message(args.Get(0)), args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, conversationID int64, cursor *models.HistoryCursor, limit int) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, cursor, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) AddReader(ctx context.Context, messageID, userID int64) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) MarkConversationRead(ctx context.Context, conversationID, userID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID, userID)
	var ids []int64
	if val := args.Get(0); val != nil {
		ids = val.([]int64)
	}
	return ids, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int64) (bool, error) {
	args := m.Called(ctx, messageID)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) EditContent(ctx context.Context, messageID int64, content string) error {
	args := m.Called(ctx, messageID, content)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID, userID int64, reaction string) error {
	args := m.Called(ctx, messageID, userID, reaction)
	return args.Error(0)
}

func (m *MessageRepositoryMock) RemoveReaction(ctx context.Context, messageID, userID int64) (bool, error) {
	args := m.Called(ctx, messageID, userID)
	return args.Bool(0), args.Error(1)
}

func message(val any) models.Message {
	if val == nil {
		return models.Message{}
	}
	return val.(models.Message)
}

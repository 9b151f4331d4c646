package mocks

import (
	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) BroadcastToConversation(conversationID int64, event models.Event, except presence.Handle) {
	m.Called(conversationID, event, except)
}

func (m *NotifierMock) SendToUser(userID int64, event models.Event) bool {
	args := m.Called(userID, event)
	return args.Bool(0)
}

func (m *NotifierMock) JoinConversation(userID, conversationID int64) bool {
	args := m.Called(userID, conversationID)
	return args.Bool(0)
}

func (m *NotifierMock) LeaveConversation(userID, conversationID int64) {
	m.Called(userID, conversationID)
}

func (m *NotifierMock) IsSubscribed(h presence.Handle, conversationID int64) bool {
	args := m.Called(h, conversationID)
	return args.Bool(0)
}

// OnlineSet reports the listed users as holding a live connection.
type OnlineSet map[int64]bool

func (s OnlineSet) IsOnline(userID int64) bool { return s[userID] }

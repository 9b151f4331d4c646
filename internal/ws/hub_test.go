package ws

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

type fakeConn struct {
	id   string
	user int64

	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) ConnID() string { return f.id }
func (f *fakeConn) UserID() int64  { return f.user }

func (f *fakeConn) Send(payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, payload)
	return true
}

func (f *fakeConn) types(t *testing.T) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, raw := range f.frames {
		var e struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(raw, &e))
		out = append(out, e.Type)
	}
	return out
}

type fakeLookup map[int64]presence.Handle

func (l fakeLookup) Lookup(userID int64) (presence.Handle, bool) {
	h, ok := l[userID]
	return h, ok
}

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub(fakeLookup{}, zap.NewNop())
	a := &fakeConn{id: "a", user: 1}

	hub.JoinAll(a, []int64{10, 11})
	assert.True(t, hub.IsSubscribed(a, 10))
	assert.True(t, hub.IsSubscribed(a, 11))

	hub.Leave(a, 10)
	assert.False(t, hub.IsSubscribed(a, 10))
	assert.Equal(t, 0, hub.RoomSize(10))

	hub.LeaveAll(a)
	assert.False(t, hub.IsSubscribed(a, 11))
	assert.Empty(t, hub.rooms)
	assert.Empty(t, hub.subs)
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub(fakeLookup{}, zap.NewNop())
	a := &fakeConn{id: "a", user: 1}
	b := &fakeConn{id: "b", user: 2}
	outsider := &fakeConn{id: "c", user: 3}
	hub.Join(a, 10)
	hub.Join(b, 10)
	hub.Join(outsider, 11)

	hub.BroadcastToConversation(10, models.NewEvent(models.EventTyping, nil), a)
	assert.Empty(t, a.types(t))
	assert.Equal(t, []string{models.EventTyping}, b.types(t))

	hub.BroadcastToConversation(10, models.NewEvent(models.EventNewMessage, nil), nil)
	assert.Equal(t, []string{models.EventNewMessage}, a.types(t))
	assert.Equal(t, []string{models.EventTyping, models.EventNewMessage}, b.types(t))
	assert.Empty(t, outsider.types(t))
}

func TestHubSendAndJoinByUser(t *testing.T) {
	a := &fakeConn{id: "a", user: 1}
	hub := NewHub(fakeLookup{1: a}, zap.NewNop())

	assert.True(t, hub.SendToUser(1, models.NewEvent(models.EventFriendRequest, nil)))
	assert.False(t, hub.SendToUser(2, models.NewEvent(models.EventFriendRequest, nil)))
	assert.Equal(t, []string{models.EventFriendRequest}, a.types(t))

	assert.True(t, hub.JoinConversation(1, 10))
	assert.False(t, hub.JoinConversation(2, 10))
	assert.True(t, hub.IsSubscribed(a, 10))
}

func TestHubLeaveConversationRemovesEveryConnectionOfUser(t *testing.T) {
	current := &fakeConn{id: "new", user: 1}
	displaced := &fakeConn{id: "old", user: 1}
	other := &fakeConn{id: "b", user: 2}
	hub := NewHub(fakeLookup{1: current}, zap.NewNop())
	hub.Join(current, 10)
	hub.Join(displaced, 10)
	hub.Join(other, 10)

	hub.LeaveConversation(1, 10)
	assert.False(t, hub.IsSubscribed(current, 10))
	assert.False(t, hub.IsSubscribed(displaced, 10))
	assert.True(t, hub.IsSubscribed(other, 10))
}

func TestRecentIDsWindow(t *testing.T) {
	r := newRecentIDs(2)
	r.Add("a")
	r.Add("b")
	assert.True(t, r.Contains("a"))
	r.Add("c")
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("b"))
	assert.True(t, r.Contains("c"))
}

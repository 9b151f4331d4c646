package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror stores presence in Redis so other processes can read it.
// Keys used:
//   - <prefix>:presence:<userID> -> json {status, connId, lastSeen}
//   - <prefix>:online            -> set of online user ids
type RedisMirror struct {
	client *redis.Client
	prefix string
}

type presenceRecord struct {
	Status   string `json:"status"`
	ConnID   string `json:"connId,omitempty"`
	LastSeen int64  `json:"lastSeen"`
}

func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix}
}

func (m *RedisMirror) presenceKey(userID int64) string {
	return fmt.Sprintf("%s:presence:%d", m.prefix, userID)
}

func (m *RedisMirror) onlineKey() string { return m.prefix + ":online" }

// Online records the user as online; the record expires after ttl unless refreshed.
func (m *RedisMirror) Online(ctx context.Context, userID int64, connID string, ttl time.Duration) error {
	body, err := json.Marshal(presenceRecord{Status: "online", ConnID: connID, LastSeen: time.Now().Unix()})
	if err != nil {
		return err
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.presenceKey(userID), body, ttl)
		pipe.SAdd(ctx, m.onlineKey(), strconv.FormatInt(userID, 10))
		return nil
	})
	return err
}

// Offline records the user as offline with its last-seen time.
func (m *RedisMirror) Offline(ctx context.Context, userID int64, at time.Time) error {
	body, err := json.Marshal(presenceRecord{Status: "offline", LastSeen: at.Unix()})
	if err != nil {
		return err
	}
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.presenceKey(userID), body, 0)
		pipe.SRem(ctx, m.onlineKey(), strconv.FormatInt(userID, 10))
		return nil
	})
	return err
}

// OnlineCount returns the size of the shared online set.
func (m *RedisMirror) OnlineCount(ctx context.Context) (int64, error) {
	return m.client.SCard(ctx, m.onlineKey()).Result()
}

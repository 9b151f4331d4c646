package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 256
	recentWindow   = 128
)

// Client is one authenticated websocket connection. It satisfies
// presence.Handle; Send never blocks, and a client whose outbound buffer is
// full is closed.
type Client struct {
	conn    *websocket.Conn
	info    ConnInfo
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	recent  *recentIDs
	log     *zap.Logger

	closeOnce  sync.Once
	finishOnce sync.Once
}

func newClient(conn *websocket.Conn, info ConnInfo, limiter *rate.Limiter, log *zap.Logger) *Client {
	return &Client{
		conn:    conn,
		info:    info,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: limiter,
		recent:  newRecentIDs(recentWindow),
		log:     log.With(zap.String("conn_id", info.ConnID), zap.Int64("user_id", info.UserID)),
	}
}

func (c *Client) ConnID() string { return c.info.ConnID }

func (c *Client) UserID() int64 { return c.info.UserID }

// Send queues a frame for the write loop. It reports false once the client is closed.
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn("outbound buffer full, closing connection")
		c.Close()
		return false
	}
}

// Close stops both pumps. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// readPump dispatches inbound frames one at a time until the connection
// fails, and returns the reason.
func (c *Client) readPump(ctx context.Context, dispatch func(context.Context, *Client, []byte)) string {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read failed", zap.Error(err))
			}
			return err.Error()
		}
		dispatch(ctx, c, frame)
	}
}

// writePump drains the outbound queue and keeps the peer alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// recentIDs remembers the last n client message ids. It is only touched from
// the read loop.
type recentIDs struct {
	ids  []string
	seen map[string]struct{}
	next int
}

func newRecentIDs(n int) *recentIDs {
	return &recentIDs{ids: make([]string, n), seen: make(map[string]struct{}, n)}
}

func (r *recentIDs) Contains(id string) bool {
	_, ok := r.seen[id]
	return ok
}

func (r *recentIDs) Add(id string) {
	if r.Contains(id) {
		return
	}
	if old := r.ids[r.next]; old != "" {
		delete(r.seen, old)
	}
	r.ids[r.next] = id
	r.seen[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ids)
}

package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
	"messenger-service/internal/services"
)

// TokenVerifier validates the handshake credential.
type TokenVerifier interface {
	Verify(raw string) (auth.Claims, error)
}

// Registry is the presence registry as used by the lifecycle controller.
type Registry interface {
	Register(ctx context.Context, h presence.Handle) (presence.Handle, error)
	Unregister(ctx context.Context, h presence.Handle, at time.Time) (bool, error)
}

// Options tunes the websocket endpoint.
type Options struct {
	AllowedOrigins  []string
	EventsPerSecond float64
	EventBurst      int
}

// Handler is the connection lifecycle controller: it authenticates the
// handshake, activates the connection and tears it down exactly once.
type Handler struct {
	tokens        TokenVerifier
	users         repositories.UserRepository
	conversations repositories.ConversationRepository
	friends       repositories.FriendRepository
	registry      Registry
	hub           *Hub
	dispatcher    *Dispatcher
	opts          Options
	upgrader      websocket.Upgrader
	log           *zap.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

// NewHandler constructs the websocket endpoint.
func NewHandler(tokens TokenVerifier, users repositories.UserRepository, conversations repositories.ConversationRepository,
	friends repositories.FriendRepository, registry Registry, hub *Hub, dispatcher *Dispatcher, opts Options, log *zap.Logger) *Handler {
	h := &Handler{
		tokens:        tokens,
		users:         users,
		conversations: conversations,
		friends:       friends,
		registry:      registry,
		hub:           hub,
		dispatcher:    dispatcher,
		opts:          opts,
		log:           log,
		clients:       make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{"bearer"},
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) || strings.EqualFold(allowed, u.Host) {
			return true
		}
	}
	return false
}

// Handle authenticates and upgrades a connection. Authentication failures
// are answered with 401 before the upgrade.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	raw, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	claims, err := h.tokens.Verify(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err != nil {
		h.log.Error("load user for handshake failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	info := newConnInfo(c.Request, user.ID, span.SpanContext().TraceID().String())
	var limiter *rate.Limiter
	if h.opts.EventsPerSecond > 0 && h.opts.EventBurst > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.opts.EventsPerSecond), h.opts.EventBurst)
	}
	client := newClient(conn, info, limiter, h.log)
	go client.writePump()

	// The request context ends when this handler returns.
	connCtx := context.WithoutCancel(ctx)
	// Tracked before activate publishes the client to Shutdown.
	h.wg.Add(1)
	if err := h.activate(connCtx, client); err != nil {
		client.log.Error("activate connection failed", zap.Error(err))
		client.Close()
		h.wg.Done()
		return
	}

	go func() {
		defer h.wg.Done()
		reason := client.readPump(connCtx, h.dispatcher.Dispatch)
		h.deactivate(connCtx, client, reason)
	}()
}

// activate registers presence, subscribes the connection to every
// conversation of the user and tells reachable friends the user is online.
func (h *Handler) activate(ctx context.Context, c *Client) error {
	displaced, err := h.registry.Register(ctx, c)
	if err != nil {
		return err
	}
	if displaced != nil {
		c.log.Info("connection displaced an older one", zap.String("displaced_conn_id", displaced.ConnID()))
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	ids, err := h.conversations.ListIDsForUser(ctx, c.UserID())
	if err != nil {
		c.log.Error("load conversations for join failed", zap.Error(err))
	}
	h.hub.JoinAll(c, ids)

	services.NotifyFriends(ctx, h.friends, h.hub, h.log, c.UserID(), models.StatusChangePayload{
		UserID: c.UserID(),
		Status: models.StatusOnline,
	})

	observability.IncWSActive()
	publishConnEvent(ctx, c.info, "ws_connect", "")
	c.log.Info("websocket connected", zap.Int("conversations", len(ids)))
	return nil
}

// deactivate tears the connection down. Only the first call has an effect.
func (h *Handler) deactivate(ctx context.Context, c *Client, reason string) {
	c.finishOnce.Do(func() {
		c.Close()
		h.hub.LeaveAll(c)

		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()

		at := time.Now()
		owner, err := h.registry.Unregister(ctx, c, at)
		if err != nil {
			c.log.Error("persist offline status failed", zap.Error(err))
		}
		if owner {
			services.NotifyFriends(ctx, h.friends, h.hub, h.log, c.UserID(), models.StatusChangePayload{
				UserID:   c.UserID(),
				Status:   models.StatusOffline,
				LastSeen: &at,
			})
		}

		observability.DecWSActive()
		publishConnEvent(ctx, c.info, "ws_disconnect", reason)
		c.log.Info("websocket disconnected", zap.String("reason", reason), zap.Bool("owner", owner))
	})
}

// Shutdown closes every live connection and waits until each one has been
// torn down or ctx expires.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	for c := range h.clients {
		c.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

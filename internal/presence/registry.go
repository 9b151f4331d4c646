// Package presence tracks which users currently own a live connection and
// keeps the persisted user status in step with that fact.
package presence

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Handle is a live connection as seen by the registry.
type Handle interface {
	ConnID() string
	UserID() int64
	Send(payload []byte) bool
}

// StatusStore persists the availability status of a user.
type StatusStore interface {
	SetStatus(ctx context.Context, userID int64, status models.Status, at time.Time) error
}

// Mirror publishes presence to a store shared with other processes.
type Mirror interface {
	Online(ctx context.Context, userID int64, connID string, ttl time.Duration) error
	Offline(ctx context.Context, userID int64, at time.Time) error
}

const stripeCount = 64

// Registry maps user ids to the connection currently owning them. At most one
// connection per user is registered; a newer connection displaces the older.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]Handle

	// stripes serialize register and unregister of the same user so the map
	// and the persisted status move together.
	stripes [stripeCount]sync.Mutex

	store  StatusStore
	mirror Mirror
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewRegistry constructs a Registry. A nil mirror disables mirroring.
func NewRegistry(store StatusStore, mirror Mirror, ttl time.Duration, log *zap.Logger) *Registry {
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Registry{
		conns:  make(map[int64]Handle),
		store:  store,
		mirror: mirror,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

func (r *Registry) stripe(userID int64) *sync.Mutex {
	return &r.stripes[uint64(userID)%stripeCount]
}

// Register persists the user as online and makes h the owner of the user's
// presence. The previous owner, if any, is returned; it is not closed.
func (r *Registry) Register(ctx context.Context, h Handle) (Handle, error) {
	lock := r.stripe(h.UserID())
	lock.Lock()
	defer lock.Unlock()

	if err := r.store.SetStatus(ctx, h.UserID(), models.StatusOnline, r.now()); err != nil {
		return nil, err
	}

	r.mu.Lock()
	displaced := r.conns[h.UserID()]
	r.conns[h.UserID()] = h
	count := len(r.conns)
	r.mu.Unlock()
	observability.SetOnlineUsers(count)

	if err := r.mirror.Online(ctx, h.UserID(), h.ConnID(), r.ttl); err != nil {
		r.log.Warn("presence mirror online failed", zap.Int64("user_id", h.UserID()), zap.Error(err))
	}
	if displaced == h {
		displaced = nil
	}
	return displaced, nil
}

// Unregister removes the user's entry only when h still owns it, then
// persists the user as offline with at as lastSeen. It reports whether h
// was the owner; a superseded connection leaves the newer one untouched.
func (r *Registry) Unregister(ctx context.Context, h Handle, at time.Time) (bool, error) {
	lock := r.stripe(h.UserID())
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if r.conns[h.UserID()] != h {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.conns, h.UserID())
	count := len(r.conns)
	r.mu.Unlock()
	observability.SetOnlineUsers(count)

	if err := r.mirror.Offline(ctx, h.UserID(), at); err != nil {
		r.log.Warn("presence mirror offline failed", zap.Int64("user_id", h.UserID()), zap.Error(err))
	}
	return true, r.store.SetStatus(ctx, h.UserID(), models.StatusOffline, at)
}

// Lookup returns the connection currently owning userID.
func (r *Registry) Lookup(userID int64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.conns[userID]
	return h, ok
}

// IsOnline reports whether userID holds a registered connection.
func (r *Registry) IsOnline(userID int64) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// RunMirrorRefresh re-publishes every registered user to the mirror until ctx
// is done, so mirror entries outlive their TTL only while the user is connected.
func (r *Registry) RunMirrorRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.RLock()
			handles := make([]Handle, 0, len(r.conns))
			for _, h := range r.conns {
				handles = append(handles, h)
			}
			r.mu.RUnlock()

			for _, h := range handles {
				if err := r.mirror.Online(ctx, h.UserID(), h.ConnID(), r.ttl); err != nil {
					r.log.Debug("presence mirror refresh failed", zap.Int64("user_id", h.UserID()), zap.Error(err))
				}
			}
		}
	}
}

// NopMirror discards presence updates.
type NopMirror struct{}

func (NopMirror) Online(context.Context, int64, string, time.Duration) error { return nil }

func (NopMirror) Offline(context.Context, int64, time.Time) error { return nil }

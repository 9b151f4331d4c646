package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"messenger-service/internal/observability"
)

type ConnInfo struct {
	ConnID      string
	UserID      int64
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, userID int64, traceID string) ConnInfo {
	meta := observability.ClientMetaFromRequest(r)
	return ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// publishConnEvent reports a connection lifecycle event to the broker.
func publishConnEvent(ctx context.Context, info ConnInfo, event, reason string) {
	observability.IncWSEvent(event, observability.OutcomeHandled)
	_ = observability.PublishEvent(ctx, observability.RoutingWSConnections, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}

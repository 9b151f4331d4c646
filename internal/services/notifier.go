package services

import (
	"context"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
)

// Notifier fans events out to live connections.
type Notifier interface {
	// BroadcastToConversation delivers to every connection subscribed to the
	// conversation channel except the given one, which may be nil.
	BroadcastToConversation(conversationID int64, event models.Event, except presence.Handle)
	// SendToUser delivers to the user's current connection and reports whether it had one.
	SendToUser(userID int64, event models.Event) bool
	// JoinConversation subscribes the user's current connection, if any.
	JoinConversation(userID, conversationID int64) bool
	LeaveConversation(userID, conversationID int64)
	IsSubscribed(h presence.Handle, conversationID int64) bool
}

// OnlineChecker answers whether a user holds a live connection.
type OnlineChecker interface {
	IsOnline(userID int64) bool
}

func decorateSummaries(online OnlineChecker, users []models.UserSummary) {
	for i := range users {
		users[i].IsOnline = users[i].Status == models.StatusOnline && online.IsOnline(users[i].ID)
	}
}

func decorateConversation(online OnlineChecker, conv *models.Conversation) {
	decorateSummaries(online, conv.Participants)
}

// publishDomainEvent forwards an event to the broker. Failures are logged only.
func publishDomainEvent(ctx context.Context, log *zap.Logger, routingKey, name string, payload any) {
	err := observability.PublishEvent(ctx, routingKey, observability.EventEnvelope{
		EventType: routingKey,
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders(RequestIDFromContext(ctx), ""))
	if err != nil {
		log.Debug("domain event not published", zap.String("event", name), zap.Error(err))
	}
}

type requestIDKey struct{}

// WithRequestID attaches a request id used to correlate published events.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id attached with WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

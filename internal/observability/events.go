package observability

// Routing keys of the domain events published to the exchange.
const (
	RoutingWSConnections = "ws_events.connections"
	RoutingMessages      = "messenger.messages"
	RoutingFriendships   = "messenger.friendships"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

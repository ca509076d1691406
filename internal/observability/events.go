package observability

import "time"

// Routing keys on the ops exchange. Lifecycle carries connect/disconnect,
// errors carries failed deliveries that evicted a connection.
const (
	RoutingWSLifecycle = "ws.presence.lifecycle"
	RoutingWSError     = "ws.presence.error"
)

// EventEnvelope frames a mirrored websocket event for the ops exchange.
type EventEnvelope struct {
	EventType  string `json:"event_type"`
	EventName  string `json:"event_name"`
	Service    string `json:"service"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// NewWSEnvelope stamps a websocket event with the service identity.
func NewWSEnvelope(name string, payload any) EventEnvelope {
	return EventEnvelope{
		EventType:  "ws_events",
		EventName:  name,
		Service:    ServiceName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
}

// BuildHeaders carries request correlation onto mirrored events.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["x-trace-id"] = traceID
	}
	return headers
}

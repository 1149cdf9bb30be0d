package observability

import (
	"context"
	"time"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// ConnFields describes one websocket connection in lifecycle events.
type ConnFields struct {
	ConnID      string    `json:"conn_id"`
	UserID      int       `json:"user_id"`
	DeviceID    string    `json:"device_id,omitempty"`
	IP          string    `json:"ip,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	TraceID     string    `json:"trace_id,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

type connEventPayload struct {
	ConnFields
	Reason string `json:"reason,omitempty"`
}

// PublishConnEvent emits a websocket lifecycle event (connect, disconnect,
// error) on the bus. Best effort: a publish failure is counted, not returned.
func PublishConnEvent(ctx context.Context, eventName string, fields ConnFields, reason string) {
	envelope := EventEnvelope{
		EventType: "ws_lifecycle",
		EventName: eventName,
		Payload:   connEventPayload{ConnFields: fields, Reason: reason},
	}
	_ = PublishEvent(ctx, "ws."+eventName, envelope, BuildHeaders(fields.RequestID, fields.TraceID))
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

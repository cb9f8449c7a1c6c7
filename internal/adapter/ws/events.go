package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Event types pushed to subscribed clients.
const (
	EventCommandStatus = "command.status"
	EventCommandLog    = "command.log"
	EventCommandAudit  = "command.audit"
)

// CommandStatusEvent reports a status or stage transition of a command.
type CommandStatusEvent struct {
	CommandID string    `json:"command_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

// CommandLogEvent carries a single appended log line.
type CommandLogEvent struct {
	CommandID string    `json:"command_id"`
	Stream    string    `json:"stream"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastEvent marshals a typed payload and broadcasts it under the given
// event type. Marshal failures are logged and dropped; the hub never blocks
// the caller on a slow client.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("websocket event marshal failed", "type", eventType, "error", err)
		return
	}
	h.Broadcast(ctx, Message{Type: eventType, Payload: data})
}

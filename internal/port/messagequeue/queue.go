// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the command event bus. REST remains the source of
// truth; the bus exists so push consumers (ws hub, future workers) see
// updates without polling Postgres.
const (
	SubjectCommandStatus = "commands.status" // status/stage transitions
	SubjectCommandAudit  = "commands.audit"  // audit log entries
	SubjectCommandOutput = "commands.output" // streamed tool output lines
)

// StatusMessage is published on SubjectCommandStatus.
type StatusMessage struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage"`
}

// LogMessage is published on SubjectCommandAudit and SubjectCommandOutput.
type LogMessage struct {
	CommandID string `json:"command_id"`
	Stream    string `json:"stream"`
	Message   string `json:"message"`
}

// Package cmdlog defines the append-only log entry entity for commands.
package cmdlog

import "time"

// Stream identifies which of a command's two log partitions an entry
// belongs to. The streams are independently ordered and retrieved.
type Stream string

const (
	// StreamExecution carries raw tool/subprocess output, one entry per
	// line, ANSI bytes preserved verbatim. Rendering is the consumer's job.
	StreamExecution Stream = "execution"

	// StreamAudit carries one short entry per lifecycle transition.
	StreamAudit Stream = "audit"
)

// Valid reports whether s names a known stream.
func (s Stream) Valid() bool {
	return s == StreamExecution || s == StreamAudit
}

// Entry is a single immutable log record. Entries are never mutated or
// deleted except by a restart's full reset.
type Entry struct {
	ID        int64     `json:"id"`
	CommandID string    `json:"command_id"`
	Stream    Stream    `json:"stream"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

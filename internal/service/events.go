package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/CommandForge/internal/port/messagequeue"
)

// publishJSON publishes a JSON payload on the queue, logging and dropping
// on failure. The bus exists for push consumers; durable state is in the
// store and pollers never depend on the bus.
func publishJSON(ctx context.Context, queue messagequeue.Queue, subject string, payload any) {
	if queue == nil || !queue.IsConnected() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := queue.Publish(ctx, subject, data); err != nil {
		slog.Warn("publish queue message", "subject", subject, "error", err)
	}
}

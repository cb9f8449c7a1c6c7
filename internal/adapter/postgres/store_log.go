package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/cmdlog"
)

// AppendLog inserts one log entry. Failures are surfaced as ErrStorage:
// the runner cannot safely continue without a durable record.
func (s *Store) AppendLog(ctx context.Context, e *cmdlog.Entry) error {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO command_logs (command_id, stream, message)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		e.CommandID, e.Stream, e.Message)

	if err := row.Scan(&e.ID, &e.Timestamp); err != nil {
		return fmt.Errorf("append %s log for command %s: %w (%w)",
			e.Stream, e.CommandID, err, domain.ErrStorage)
	}
	return nil
}

// ReadLog returns the ordered entries of one stream. afterID > 0 tails
// entries with id strictly greater, supporting cheap re-polling.
func (s *Store) ReadLog(ctx context.Context, commandID string, stream cmdlog.Stream, afterID int64) ([]cmdlog.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, command_id, stream, message, created_at
		 FROM command_logs
		 WHERE command_id = $1 AND stream = $2 AND id > $3
		 ORDER BY id ASC`,
		commandID, stream, afterID)
	if err != nil {
		return nil, fmt.Errorf("read %s log for command %s: %w", stream, commandID, err)
	}
	defer rows.Close()

	var entries []cmdlog.Entry
	for rows.Next() {
		var e cmdlog.Entry
		if err := rows.Scan(&e.ID, &e.CommandID, &e.Stream, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteLogs removes both streams for a command. Only restart and remove
// call this; logs are otherwise append-only.
func (s *Store) DeleteLogs(ctx context.Context, commandID string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM command_logs WHERE command_id = $1`, commandID); err != nil {
		return fmt.Errorf("delete logs for command %s: %w", commandID, err)
	}
	return nil
}

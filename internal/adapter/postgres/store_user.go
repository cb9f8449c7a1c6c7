package postgres

import (
	"context"

	"github.com/Strob0t/CommandForge/internal/domain/user"
)

// GetUserByAPIKeyID looks up the actor behind a presented API key id.
// The key secret itself is verified by the auth middleware against the
// stored hash.
func (s *Store) GetUserByAPIKeyID(ctx context.Context, keyID string) (*user.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, role, api_key_hash, enabled, created_at, updated_at
		 FROM users WHERE api_key_id = $1`, keyID)

	var u user.User
	if err := row.Scan(&u.ID, &u.Name, &u.Role, &u.APIKeyHash, &u.Enabled,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, notFoundWrap(err, "get user by api key %s", keyID)
	}
	return &u, nil
}

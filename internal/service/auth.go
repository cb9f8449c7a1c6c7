package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/CommandForge/internal/domain"
	"github.com/Strob0t/CommandForge/internal/domain/user"
	"github.com/Strob0t/CommandForge/internal/port/database"
)

// AuthService resolves API keys to users and answers role checks. Keys
// have the form "<key id>.<secret>"; only a bcrypt hash of the secret is
// stored.
type AuthService struct {
	store database.Store
}

// NewAuthService creates an AuthService.
func NewAuthService(store database.Store) *AuthService {
	return &AuthService{store: store}
}

// Authenticate resolves a raw API key to its user. Lookup failures and
// hash mismatches are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, apiKey string) (*user.User, error) {
	keyID, secret, ok := strings.Cut(apiKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, errors.New("malformed api key")
	}

	u, err := s.store.GetUserByAPIKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errors.New("invalid api key")
		}
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if !u.Enabled {
		return nil, errors.New("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.APIKeyHash), []byte(secret)); err != nil {
		return nil, errors.New("invalid api key")
	}
	return u, nil
}

// CheckRole reports whether actor may perform an operation requiring the
// given role. Reads require no role, so a nil actor passes RoleNone.
func (s *AuthService) CheckRole(_ context.Context, actor *user.User, required user.Role) error {
	if required == user.RoleNone {
		return nil
	}
	if actor == nil {
		return errors.New("authentication required")
	}
	if !actor.Role.Satisfies(required) {
		return fmt.Errorf("role %q does not satisfy %q", actor.Role, required)
	}
	return nil
}

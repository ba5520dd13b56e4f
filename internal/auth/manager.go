package auth

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/models"
	"golang.org/x/sync/singleflight"
)

// TokenStore is the persistence surface the manager needs. Satisfied by
// [repositories.TokenRepository].
type TokenStore interface {
	Save(principalID string, cred models.Credential) error
	Get(principalID string) (models.Credential, error)
	Delete(principalID string) error
}

// Manager owns credential state for all principals. It refreshes tokens
// inside the expiry margin and collapses concurrent refreshes for the
// same principal into one provider call.
type Manager struct {
	config *Config
	store  TokenStore
	group  singleflight.Group
	logger *log.Logger
}

// NewManager creates a Manager backed by the given store.
func NewManager(config *Config, store TokenStore, logger *log.Logger) *Manager {
	return &Manager{config: config, store: store, logger: logger}
}

// Save persists a credential for a principal, typically right after a
// completed [Flow.Exchange].
func (m *Manager) Save(principalID string, cred models.Credential) error {
	return m.store.Save(principalID, cred)
}

// Logout removes the stored credential for a principal. Idempotent.
func (m *Manager) Logout(principalID string) error {
	return m.store.Delete(principalID)
}

// Authenticated reports whether a usable credential exists for the
// principal. Expired credentials still count when a refresh token is
// present.
func (m *Manager) Authenticated(principalID string) bool {
	cred, err := m.store.Get(principalID)
	return err == nil && cred.Valid()
}

// Credential returns a non-expired credential for the principal,
// refreshing and persisting it first when needed. Concurrent callers
// for the same principal share one refresh.
func (m *Manager) Credential(ctx context.Context, principalID string) (models.Credential, error) {
	cred, err := m.store.Get(principalID)
	if err != nil {
		return models.Credential{}, err
	}

	if !cred.IsExpired() {
		return cred, nil
	}

	result, err, _ := m.group.Do(principalID, func() (any, error) {
		// Re-read inside the flight: a concurrent winner may have
		// refreshed and saved already.
		current, err := m.store.Get(principalID)
		if err != nil {
			return models.Credential{}, err
		}
		if !current.IsExpired() {
			return current, nil
		}

		m.logger.Debug("refreshing access token", "principal", principalID)
		refreshed, err := m.config.Refresh(ctx, current)
		if err != nil {
			return models.Credential{}, err
		}

		if err := m.store.Save(principalID, refreshed); err != nil {
			return models.Credential{}, fmt.Errorf("failed to persist refreshed credential: %w", err)
		}

		return refreshed, nil
	})
	if err != nil {
		return models.Credential{}, err
	}

	return result.(models.Credential), nil
}

// AccessToken returns a fresh bearer token for the principal.
func (m *Manager) AccessToken(ctx context.Context, principalID string) (string, error) {
	cred, err := m.Credential(ctx, principalID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Source returns a token provider bound to one principal, suitable for
// handing to a catalog client.
func (m *Manager) Source(principalID string) *PrincipalSource {
	return &PrincipalSource{manager: m, principalID: principalID}
}

// PrincipalSource yields fresh access tokens for a single principal.
type PrincipalSource struct {
	manager     *Manager
	principalID string
}

// AccessToken returns a non-expired bearer token, refreshing through
// the manager when required.
func (s *PrincipalSource) AccessToken(ctx context.Context) (string, error) {
	return s.manager.AccessToken(ctx, s.principalID)
}

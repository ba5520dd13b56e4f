package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

const tokenSchema = `
	CREATE TABLE IF NOT EXISTS tokens (
		principal_id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

// TokenRepository persists [models.Credential] records keyed by principal.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection.
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Migrate creates the token table if it does not exist.
func (r *TokenRepository) Migrate() error {
	if _, err := r.db.Exec(tokenSchema); err != nil {
		return fmt.Errorf("failed to create tokens table: %w", err)
	}
	return nil
}

// Save inserts or replaces the credential for a principal.
func (r *TokenRepository) Save(principalID string, cred models.Credential) error {
	if principalID == "" {
		return fmt.Errorf("%w: empty principal id", shared.ErrInvalidArgument)
	}
	if !cred.Valid() {
		return fmt.Errorf("%w: incomplete credential", shared.ErrInvalidCredentials)
	}

	query := `
		INSERT INTO tokens (principal_id, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query, principalID, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Get retrieves the credential for a principal.
//
// Returns [shared.ErrNotAuthenticated] when no credential is stored.
func (r *TokenRepository) Get(principalID string) (models.Credential, error) {
	query := `
		SELECT access_token, refresh_token, expires_at
		FROM tokens
		WHERE principal_id = ?
	`

	var cred models.Credential
	err := r.db.QueryRow(query, principalID).Scan(&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt)
	if err == sql.ErrNoRows {
		return models.Credential{}, fmt.Errorf("%w: no credential for %s", shared.ErrNotAuthenticated, principalID)
	}
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to query credential: %w", err)
	}

	if !cred.Valid() {
		return models.Credential{}, fmt.Errorf("%w: stored credential is incomplete", shared.ErrInvalidCredentials)
	}

	return cred, nil
}

// Delete removes the credential for a principal. Deleting a missing
// credential is not an error, so logout stays idempotent.
func (r *TokenRepository) Delete(principalID string) error {
	if _, err := r.db.Exec(`DELETE FROM tokens WHERE principal_id = ?`, principalID); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

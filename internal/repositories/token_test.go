package repositories

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

func newTestRepository(t *testing.T) *TokenRepository {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewTokenRepository(db)
	if err := repo.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return repo
}

func testCredential() models.Credential {
	return models.Credential{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour).UTC(),
	}
}

func TestTokenRepository(t *testing.T) {
	t.Run("Save and Get", func(t *testing.T) {
		repo := newTestRepository(t)
		cred := testCredential()

		if err := repo.Save("user-1", cred); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Get("user-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AccessToken != cred.AccessToken {
			t.Errorf("unexpected access token: %q", got.AccessToken)
		}
		if got.RefreshToken != cred.RefreshToken {
			t.Errorf("unexpected refresh token: %q", got.RefreshToken)
		}
		if !got.ExpiresAt.Equal(cred.ExpiresAt) {
			t.Errorf("expires_at = %v, want %v", got.ExpiresAt, cred.ExpiresAt)
		}
	})

	t.Run("Save upserts", func(t *testing.T) {
		repo := newTestRepository(t)

		if err := repo.Save("user-1", testCredential()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		updated := testCredential()
		updated.AccessToken = "rotated-token"
		if err := repo.Save("user-1", updated); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}

		got, err := repo.Get("user-1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AccessToken != "rotated-token" {
			t.Errorf("expected rotated token, got %q", got.AccessToken)
		}
	})

	t.Run("Save rejects empty principal", func(t *testing.T) {
		repo := newTestRepository(t)

		err := repo.Save("", testCredential())
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Save rejects incomplete credential", func(t *testing.T) {
		repo := newTestRepository(t)

		err := repo.Save("user-1", models.Credential{AccessToken: "only-access"})
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("Get unknown principal", func(t *testing.T) {
		repo := newTestRepository(t)

		_, err := repo.Get("nobody")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("principals are isolated", func(t *testing.T) {
		repo := newTestRepository(t)

		first := testCredential()
		second := testCredential()
		second.AccessToken = "other-access-token"

		if err := repo.Save("user-1", first); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Save("user-2", second); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		got, err := repo.Get("user-2")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AccessToken != "other-access-token" {
			t.Errorf("unexpected access token: %q", got.AccessToken)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newTestRepository(t)

		if err := repo.Save("user-1", testCredential()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := repo.Delete("user-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get("user-1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated after delete, got %v", err)
		}
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		repo := newTestRepository(t)

		if err := repo.Delete("nobody"); err != nil {
			t.Errorf("expected nil for missing credential, got %v", err)
		}
	})
}

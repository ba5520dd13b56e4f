package pipeline

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/moodlist/internal/shared"
)

func TestSessionStore(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("create and get", func(t *testing.T) {
		store := NewSessionStore(time.Hour, logger)
		session := store.Create("principal-1")

		if session.ID == "" {
			t.Fatal("expected a session id")
		}
		got, err := store.Get(session.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.PrincipalID != "principal-1" {
			t.Errorf("unexpected principal %q", got.PrincipalID)
		}
	})

	t.Run("missing session", func(t *testing.T) {
		store := NewSessionStore(time.Hour, logger)
		if _, err := store.Get("nope"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := NewSessionStore(time.Hour, logger)
		session := store.Create("principal-1")

		store.Delete(session.ID)
		store.Delete(session.ID)
		if store.Len() != 0 {
			t.Errorf("expected empty store, got %d", store.Len())
		}
	})

	t.Run("sweep reclaims idle sessions", func(t *testing.T) {
		store := NewSessionStore(10*time.Millisecond, logger)
		idle := store.Create("principal-1")
		active := store.Create("principal-2")

		time.Sleep(20 * time.Millisecond)
		active.touch()

		if got := store.Sweep(); got != 1 {
			t.Errorf("expected 1 reclaimed, got %d", got)
		}
		if _, err := store.Get(idle.ID); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected idle session gone, got %v", err)
		}
		if _, err := store.Get(active.ID); err != nil {
			t.Errorf("expected active session kept, got %v", err)
		}
	})
}

package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
)

// UserSession holds the state of one playlist workflow. All mutation
// goes through methods; the mutex also guards the stage machine.
type UserSession struct {
	ID          string
	PrincipalID string

	mu         sync.Mutex
	stage      models.Stage
	lastActive time.Time

	mood         string
	playlistName string
	usedFallback bool
	hebrew       bool
	generated    []models.Song
	matched      []models.MatchedSong
	selected     []models.MatchedSong
	playlist     *models.Playlist
}

func newSession(id, principalID string) *UserSession {
	return &UserSession{
		ID:          id,
		PrincipalID: principalID,
		stage:       models.StageGenerate,
		lastActive:  time.Now(),
	}
}

// Stage returns the session's current stage.
func (s *UserSession) Stage() models.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// advance moves the session from one stage to the next. Returns
// [shared.ErrInvalidStage] when the session is not at the expected
// stage, which makes every operation single-shot and ordered.
func (s *UserSession) advance(from, to models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != from {
		return fmt.Errorf("%w: session is at %s, operation requires %s", shared.ErrInvalidStage, s.stage, from)
	}
	s.stage = to
	s.lastActive = time.Now()
	return nil
}

// require verifies the session is at the given stage without moving it.
func (s *UserSession) require(stage models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage != stage {
		return fmt.Errorf("%w: session is at %s, operation requires %s", shared.ErrInvalidStage, s.stage, stage)
	}
	s.lastActive = time.Now()
	return nil
}

func (s *UserSession) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// idleSince reports whether the session has seen no activity since the
// cutoff.
func (s *UserSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive.Before(cutoff)
}

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	ID           string               `json:"id"`
	Stage        string               `json:"stage"`
	Mood         string               `json:"mood,omitempty"`
	PlaylistName string               `json:"playlist_name,omitempty"`
	UsedFallback bool                 `json:"used_fallback,omitempty"`
	Generated    []models.Song        `json:"generated,omitempty"`
	Matched      []models.MatchedSong `json:"matched,omitempty"`
	Selected     []models.MatchedSong `json:"selected,omitempty"`
	Playlist     *models.Playlist     `json:"playlist,omitempty"`
}

// Snapshot copies the current session state. Slices are cloned so the
// caller can render without racing the pipeline.
func (s *UserSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.ID,
		Stage:        s.stage.String(),
		Mood:         s.mood,
		PlaylistName: s.playlistName,
		UsedFallback: s.usedFallback,
		Generated:    append([]models.Song(nil), s.generated...),
		Matched:      append([]models.MatchedSong(nil), s.matched...),
		Selected:     append([]models.MatchedSong(nil), s.selected...),
	}
	if s.playlist != nil {
		playlist := *s.playlist
		snap.Playlist = &playlist
	}
	return snap
}

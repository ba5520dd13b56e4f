package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/services"
	"github.com/desertthunder/moodlist/internal/shared"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// matchConcurrency caps concurrent catalog searches per Match call.
	matchConcurrency = 5

	// matchRate throttles catalog searches across the whole process.
	matchRate  = rate.Limit(10)
	matchBurst = 5
)

// CatalogFactory returns a catalog client bound to one principal's
// credentials.
type CatalogFactory func(principalID string) services.Catalog

// Pipeline drives sessions through the playlist workflow.
type Pipeline struct {
	store     *SessionStore
	generator services.Generator
	catalogs  CatalogFactory
	limiter   *rate.Limiter
	logger    *log.Logger
}

// NewPipeline creates a pipeline over the given generator and catalog
// factory.
func NewPipeline(store *SessionStore, generator services.Generator, catalogs CatalogFactory, logger *log.Logger) *Pipeline {
	return &Pipeline{
		store:     store,
		generator: generator,
		catalogs:  catalogs,
		limiter:   rate.NewLimiter(matchRate, matchBurst),
		logger:    logger,
	}
}

// StartSession opens a new session for a principal.
func (p *Pipeline) StartSession(principalID string) *UserSession {
	return p.store.Create(principalID)
}

// Session looks up an existing session.
func (p *Pipeline) Session(sessionID string) (*UserSession, error) {
	return p.store.Get(sessionID)
}

// EndSession discards a session. Idempotent.
func (p *Pipeline) EndSession(sessionID string) {
	p.store.Delete(sessionID)
}

// StartSweeper reclaims idle sessions in the background until the
// context is done.
func (p *Pipeline) StartSweeper(ctx context.Context, interval time.Duration) {
	p.store.StartSweeper(ctx, interval)
}

// Generate asks the model for song candidates and stores them on the
// session. Languages constrain what language the songs should be in.
// With personalize set, the user's listening history is read first and
// folded into the prompt. On success the session advances to the match
// stage.
func (p *Pipeline) Generate(ctx context.Context, sessionID, mood string, languages []string, count int, personalize bool, progress chan<- ProgressUpdate) ([]models.Song, error) {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.require(models.StageGenerate); err != nil {
		return nil, err
	}

	if strings.TrimSpace(mood) == "" {
		return nil, fmt.Errorf("%w: mood description is required", shared.ErrInvalidInput)
	}

	var prefs services.MusicPreferences
	if personalize {
		sendProgress(progress, readingPreferencesUpdate())
		prefs, err = p.catalogs(session.PrincipalID).Preferences(ctx)
		if err != nil {
			return nil, err
		}
	}

	sendProgress(progress, generatingUpdate(count))
	result, err := p.generator.GenerateSongs(ctx, services.GenerationRequest{
		Mood:        mood,
		Languages:   languages,
		Count:       count,
		Preferences: prefs,
	})
	if err != nil {
		return nil, err
	}

	if err := session.advance(models.StageGenerate, models.StageMatch); err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.mood = mood
	session.playlistName = result.PlaylistName
	session.usedFallback = result.UsedFallback
	session.hebrew = result.Hebrew
	session.generated = result.Songs
	session.mu.Unlock()

	if result.UsedFallback {
		p.logger.Warn("generation fell back to the built-in list", "session", sessionID, "mood", mood)
	}
	p.logger.Info("songs generated", "session", sessionID, "count", len(result.Songs))

	return result.Songs, nil
}

// ImportSongs seeds a session with externally supplied songs (a CSV
// upload) instead of generated ones, then advances to the match stage.
func (p *Pipeline) ImportSongs(sessionID string, songs []models.Song, playlistName string) error {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return err
	}
	if len(songs) == 0 {
		return fmt.Errorf("%w: no songs to import", shared.ErrInvalidInput)
	}
	if playlistName == "" {
		playlistName = "Imported Playlist"
	}

	if err := session.advance(models.StageGenerate, models.StageMatch); err != nil {
		return err
	}

	session.mu.Lock()
	session.playlistName = playlistName
	session.generated = songs
	session.mu.Unlock()

	p.logger.Info("songs imported", "session", sessionID, "count", len(songs))
	return nil
}

// Match resolves the session's songs against the catalog. Searches fan
// out with bounded concurrency under a rate limit; results keep the
// input order and songs without a match are dropped. When nothing
// matches, [shared.ErrNoMatches] is returned and the session stays at
// the match stage so the caller can regenerate or re-import.
func (p *Pipeline) Match(ctx context.Context, sessionID string, progress chan<- ProgressUpdate) ([]models.MatchedSong, error) {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.require(models.StageMatch); err != nil {
		return nil, err
	}

	session.mu.Lock()
	songs := append([]models.Song(nil), session.generated...)
	session.mu.Unlock()

	catalog := p.catalogs(session.PrincipalID)
	results := make([]*models.CatalogTrack, len(songs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(matchConcurrency)

	for i, song := range songs {
		group.Go(func() error {
			if err := p.limiter.Wait(groupCtx); err != nil {
				return err
			}

			sendProgress(progress, matchingUpdate(i+1, len(songs), song.Title))
			track, err := catalog.SearchTrack(groupCtx, song.Title, song.Artist)
			if err != nil {
				return err
			}
			results[i] = track
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	matched := make([]models.MatchedSong, 0, len(songs))
	for i, track := range results {
		if track == nil {
			p.logger.Debug("no catalog match", "title", songs[i].Title, "artist", songs[i].Artist)
			continue
		}
		matched = append(matched, models.MatchedSong{Original: songs[i], Track: *track})
	}

	p.logger.Info("matching complete", "session", sessionID, "matched", len(matched), "total", len(songs))

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: none of %d songs resolved", shared.ErrNoMatches, len(songs))
	}

	if err := session.advance(models.StageMatch, models.StageCurate); err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.matched = matched
	session.mu.Unlock()

	return matched, nil
}

// Curate records which matched songs the user kept. Indices refer to
// the matched list; an empty selection is rejected. The session stays
// at the curate stage so the selection can be revised until
// [Pipeline.CreatePlaylist] consumes it.
func (p *Pipeline) Curate(sessionID string, indices []int) ([]models.MatchedSong, error) {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.require(models.StageCurate); err != nil {
		return nil, err
	}

	if len(indices) == 0 {
		return nil, shared.ErrNoSongsSelected
	}

	session.mu.Lock()
	matched := session.matched
	session.mu.Unlock()

	seen := make(map[int]bool, len(indices))
	selected := make([]models.MatchedSong, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(matched) {
			return nil, fmt.Errorf("%w: index %d out of range", shared.ErrInvalidArgument, idx)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, matched[idx])
	}

	session.mu.Lock()
	session.selected = selected
	session.mu.Unlock()

	p.logger.Info("selection curated", "session", sessionID, "selected", len(selected))
	return selected, nil
}

// KeepAll curates every matched song.
func (p *Pipeline) KeepAll(sessionID string) ([]models.MatchedSong, error) {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	count := len(session.matched)
	session.mu.Unlock()

	indices := make([]int, count)
	for i := range indices {
		indices[i] = i
	}
	return p.Curate(sessionID, indices)
}

// CreatePlaylist creates the playlist in the user's catalog account and
// adds the curated tracks. A selection must have been stored by
// [Pipeline.Curate] or [Pipeline.KeepAll] first. An empty name uses the
// session's derived playlist name. On success the session is done.
func (p *Pipeline) CreatePlaylist(ctx context.Context, sessionID, name string, progress chan<- ProgressUpdate) (*models.Playlist, error) {
	session, err := p.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if err := session.require(models.StageCurate); err != nil {
		return nil, err
	}

	session.mu.Lock()
	selected := append([]models.MatchedSong(nil), session.selected...)
	if name == "" {
		name = session.playlistName
	}
	session.mu.Unlock()

	if len(selected) == 0 {
		return nil, shared.ErrNoSongsSelected
	}
	if name == "" {
		name = "Mood Playlist"
	}

	catalog := p.catalogs(session.PrincipalID)

	sendProgress(progress, creatingPlaylistUpdate(name))
	playlist, err := catalog.CreatePlaylist(ctx, name, "")
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(selected))
	for _, match := range selected {
		uris = append(uris, match.Track.URI)
	}

	sendProgress(progress, addingTracksUpdate(len(uris)))
	if err := catalog.AddTracks(ctx, playlist.ID, uris); err != nil {
		return nil, fmt.Errorf("playlist %s created but adding tracks failed: %w", playlist.ID, err)
	}
	playlist.TrackCount = len(uris)

	if err := session.advance(models.StageCurate, models.StageDone); err != nil {
		return nil, err
	}

	session.mu.Lock()
	session.playlist = playlist
	session.mu.Unlock()

	p.logger.Info("playlist created", "session", sessionID, "playlist", playlist.ID, "tracks", playlist.TrackCount)
	return playlist, nil
}

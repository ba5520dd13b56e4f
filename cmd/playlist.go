package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/desertthunder/moodlist/internal/formatter"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/pipeline"
	"github.com/desertthunder/moodlist/internal/shared"
	"github.com/desertthunder/moodlist/internal/ui"
	"github.com/urfave/cli/v3"
)

// Generate runs the full workflow in one command: generate (or import)
// songs, match them against the catalog, curate, and create the
// playlist.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if r.pipeline == nil {
		return fmt.Errorf("%w: Spotify credentials must be set in config.toml", shared.ErrMissingCredentials)
	}
	if r.manager == nil || !r.manager.Authenticated(cliPrincipal) {
		return fmt.Errorf("%w: run: moodlist auth login", shared.ErrNotAuthenticated)
	}

	mood := cmd.String("mood")
	csvPath := cmd.String("csv")
	if mood == "" && csvPath == "" {
		return fmt.Errorf("%w: either --mood or --csv is required", shared.ErrMissingArgument)
	}

	count := int(cmd.Int("count"))
	if count <= 0 {
		count = r.config.Generation.DefaultCount
	}

	session := r.pipeline.StartSession(cliPrincipal)
	defer r.pipeline.EndSession(session.ID)

	// Seed the session: model generation or CSV import.
	var songs []models.Song
	if csvPath != "" {
		file, err := os.Open(csvPath)
		if err != nil {
			return fmt.Errorf("failed to open CSV: %w", err)
		}
		songs, err = formatter.ParseSongsCSV(file)
		file.Close()
		if err != nil {
			return err
		}
		if err := r.pipeline.ImportSongs(session.ID, songs, cmd.String("name")); err != nil {
			return err
		}
		r.writePlain("✓ Imported %d songs from %s\n", len(songs), csvPath)
	} else {
		if r.generator == nil {
			return fmt.Errorf("%w: OpenAI api_key must be set in config.toml", shared.ErrMissingCredentials)
		}

		languages := cmd.StringSlice("language")
		if len(languages) == 0 && r.config.Generation.Language != "" {
			languages = []string{r.config.Generation.Language}
		}

		var err error
		songs, err = withProgress(r, func(progress chan<- pipeline.ProgressUpdate) ([]models.Song, error) {
			return r.pipeline.Generate(ctx, session.ID, mood, languages, count, cmd.Bool("personalize"), progress)
		})
		if err != nil {
			return err
		}

		snap, _ := r.pipeline.Session(session.ID)
		if snap != nil && snap.Snapshot().UsedFallback {
			r.writePlain("⚠ The model returned nothing usable; using a popular-hits list instead\n")
		}
		r.writePlain("✓ Generated %d songs\n", len(songs))
	}

	if exportPath := cmd.String("export"); exportPath != "" {
		data, err := formatter.SongsToCSV(songs)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportPath, data, 0644); err != nil {
			return fmt.Errorf("failed to export songs: %w", err)
		}
		r.writePlain("✓ Exported %d songs to %s\n", len(songs), exportPath)
	}

	// Match against the catalog.
	matched, err := withProgress(r, func(progress chan<- pipeline.ProgressUpdate) ([]models.MatchedSong, error) {
		return r.pipeline.Match(ctx, session.ID, progress)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNoMatches) {
			r.writePlain("✗ No songs could be matched on Spotify. Try a different mood or CSV.\n")
		}
		return err
	}
	r.writePlain("%s", formatter.MatchesToText(songs, matched))

	// Curate: interactive multi-select unless --yes keeps everything.
	var selected []models.MatchedSong
	if cmd.Bool("yes") {
		selected, err = r.pipeline.KeepAll(session.ID)
	} else {
		result, uiErr := ui.RunCuration(matched)
		if uiErr != nil {
			return uiErr
		}
		if result.Cancelled {
			return r.writePlain("✗ Curation cancelled, no playlist created\n")
		}
		selected, err = r.pipeline.Curate(session.ID, result.Indices)
	}
	if err != nil {
		return err
	}

	// Create the playlist.
	playlist, err := withProgress(r, func(progress chan<- pipeline.ProgressUpdate) (*models.Playlist, error) {
		return r.pipeline.CreatePlaylist(ctx, session.ID, cmd.String("name"), progress)
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlainln("✓ Playlist created with %d tracks", len(selected))
	return r.writePlain("%s", formatter.PlaylistToText(playlist))
}

// Preferences prints the user's listening history summary.
func (r *Runner) Preferences(ctx context.Context, cmd *cli.Command) error {
	if r.manager == nil || !r.manager.Authenticated(cliPrincipal) {
		return fmt.Errorf("%w: run: moodlist auth login", shared.ErrNotAuthenticated)
	}

	prefs, err := r.catalogs(cliPrincipal).Preferences(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(prefs, cmd.Bool("pretty"))
	}

	if prefs.Empty() {
		return r.writePlain("No listening history available yet.\n")
	}

	if len(prefs.TopArtists) > 0 {
		r.writePlain("Top artists:\n")
		for _, artist := range prefs.TopArtists {
			r.writePlain("  • %s\n", artist)
		}
	}
	if len(prefs.TopTracks) > 0 {
		r.writePlain("Top tracks:\n")
		for _, song := range prefs.TopTracks {
			r.writePlain("  • %s - %s\n", song.Artist, song.Title)
		}
	}
	return nil
}

// withProgress runs op with a progress channel, printing updates to the
// output until the operation finishes.
func withProgress[T any](r *Runner, op func(chan<- pipeline.ProgressUpdate) (T, error)) (T, error) {
	progress := make(chan pipeline.ProgressUpdate, 64)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("  %s\n", update.Message)
		}
	}()

	result, err := op(progress)
	close(progress)
	wg.Wait()
	return result, err
}

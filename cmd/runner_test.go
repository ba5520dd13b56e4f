package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/moodlist/internal/auth"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/pipeline"
	"github.com/desertthunder/moodlist/internal/services"
	"github.com/desertthunder/moodlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// cliTokens is an in-memory TokenStore for command tests.
type cliTokens struct {
	creds map[string]models.Credential
}

func newCLITokens() *cliTokens {
	return &cliTokens{creds: map[string]models.Credential{}}
}

func (s *cliTokens) Save(principalID string, cred models.Credential) error {
	s.creds[principalID] = cred
	return nil
}

func (s *cliTokens) Get(principalID string) (models.Credential, error) {
	cred, ok := s.creds[principalID]
	if !ok {
		return models.Credential{}, shared.ErrNotAuthenticated
	}
	return cred, nil
}

func (s *cliTokens) Delete(principalID string) error {
	delete(s.creds, principalID)
	return nil
}

type cliGenerator struct {
	songs  []models.Song
	gotReq services.GenerationRequest
}

func (g *cliGenerator) GenerateSongs(ctx context.Context, req services.GenerationRequest) (*services.GenerationResult, error) {
	g.gotReq = req
	return &services.GenerationResult{
		Songs:        g.songs,
		PlaylistName: req.Mood + " Playlist",
	}, nil
}

type cliCatalog struct {
	added []string
}

func (c *cliCatalog) CurrentUser(ctx context.Context) (*services.SpotifyUser, error) {
	return &services.SpotifyUser{ID: "user-1", DisplayName: "Test User"}, nil
}

func (c *cliCatalog) SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error) {
	return &models.CatalogTrack{
		ID:      "id-" + title,
		Name:    title,
		Artists: []string{artist},
		URI:     "spotify:track:" + title,
	}, nil
}

func (c *cliCatalog) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	return &models.Playlist{ID: "pl-1", Name: name, URL: "https://open.spotify.com/playlist/pl-1"}, nil
}

func (c *cliCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	c.added = append(c.added, uris...)
	return nil
}

func (c *cliCatalog) Preferences(ctx context.Context) (services.MusicPreferences, error) {
	return services.MusicPreferences{
		TopTracks:  []models.Song{{Title: "Track One", Artist: "Artist One"}},
		TopArtists: []string{"Artist One"},
		Genres:     []string{"pop"},
	}, nil
}

// newAuthedRunner builds a runner with an already-authorized principal
// and fake external services.
func newAuthedRunner(t *testing.T) (*Runner, *cliCatalog, *bytes.Buffer) {
	t.Helper()

	logger := shared.NewLogger(nil)
	output := &bytes.Buffer{}

	oauthConfig, err := auth.NewConfig("client-id", "client-secret", "")
	if err != nil {
		t.Fatalf("failed to create oauth config: %v", err)
	}

	tokens := newCLITokens()
	tokens.Save(cliPrincipal, models.Credential{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	})

	manager := auth.NewManager(oauthConfig, tokens, logger)
	catalog := &cliCatalog{}
	catalogs := func(principalID string) services.Catalog { return catalog }
	generator := &cliGenerator{songs: []models.Song{
		{Title: "Blinding Lights", Artist: "The Weeknd"},
		{Title: "Levitating", Artist: "Dua Lipa"},
	}}
	store := pipeline.NewSessionStore(pipeline.DefaultSessionTTL, logger)

	runner := NewRunner(RunnerOpts{
		Config:    shared.DefaultConfig(),
		OAuth:     oauthConfig,
		Manager:   manager,
		Generator: generator,
		Catalogs:  catalogs,
		Pipeline:  pipeline.NewPipeline(store, generator, catalogs, logger),
		Logger:    logger,
		Output:    output,
	})
	return runner, catalog, output
}

func runCommand(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	app := &cli.Command{Name: "moodlist", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"moodlist"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("register wires all commands", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})
			commands := runner.register()
			if len(commands) != 5 {
				t.Fatalf("expected 5 commands, got %d", len(commands))
			}

			names := map[string]bool{}
			for _, cmd := range commands {
				names[cmd.Name] = true
			}
			for _, want := range []string{"setup", "auth", "generate", "preferences", "serve"} {
				if !names[want] {
					t.Errorf("expected command %q to be registered", want)
				}
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("compact output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if got := output.String(); got != "{\"key\":\"value\"}\n" {
				t.Errorf("unexpected output: %q", got)
			}
		})

		t.Run("pretty output", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("writeJSON failed: %v", err)
			}
			if !strings.Contains(output.String(), "  \"key\": \"value\"") {
				t.Errorf("expected indented output, got %q", output.String())
			}
		})

		t.Run("unmarshalable value fails", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
			if err := runner.writeJSON(make(chan int), false); err == nil {
				t.Error("expected error for unmarshalable value")
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlain("hello %s\n", "world"); err != nil {
			t.Fatalf("writePlain failed: %v", err)
		}
		if output.String() != "hello world\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})

	t.Run("writePlainln pads with newlines", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writePlainln("done %d", 3); err != nil {
			t.Fatalf("writePlainln failed: %v", err)
		}
		if output.String() != "\ndone 3\n" {
			t.Errorf("unexpected output: %q", output.String())
		}
	})
}

func TestGenerateCommand(t *testing.T) {
	t.Run("fails without spotify configuration", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

		err := runCommand(t, runner, "generate", "--mood", "chill")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("fails when not authenticated", func(t *testing.T) {
		runner, _, _ := newAuthedRunner(t)
		if err := runner.manager.Logout(cliPrincipal); err != nil {
			t.Fatalf("logout failed: %v", err)
		}

		err := runCommand(t, runner, "generate", "--mood", "chill")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("fails without mood or csv", func(t *testing.T) {
		runner, _, _ := newAuthedRunner(t)

		err := runCommand(t, runner, "generate")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("fails without generator when mood given", func(t *testing.T) {
		runner, _, _ := newAuthedRunner(t)
		runner.generator = nil

		err := runCommand(t, runner, "generate", "--mood", "chill", "--yes")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("runs full workflow with --yes", func(t *testing.T) {
		runner, catalog, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "generate", "--mood", "Upbeat workout songs", "--yes"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		if len(catalog.added) != 2 {
			t.Errorf("expected 2 tracks added, got %d", len(catalog.added))
		}
		got := output.String()
		if !strings.Contains(got, "Matched 2 of 2 songs") {
			t.Errorf("expected match summary, got %q", got)
		}
		if !strings.Contains(got, "Playlist created with 2 tracks") {
			t.Errorf("expected creation message, got %q", got)
		}
	})

	t.Run("forwards language flags to the generator", func(t *testing.T) {
		runner, _, _ := newAuthedRunner(t)
		generator := runner.generator.(*cliGenerator)

		args := []string{"generate", "--mood", "chill", "--yes", "--language", "Hebrew", "--language", "English"}
		if err := runCommand(t, runner, args...); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(generator.gotReq.Languages) != 2 || generator.gotReq.Languages[0] != "Hebrew" {
			t.Errorf("expected language flags forwarded, got %v", generator.gotReq.Languages)
		}
	})

	t.Run("falls back to the configured language", func(t *testing.T) {
		runner, _, _ := newAuthedRunner(t)
		runner.config.Generation.Language = "Hebrew"
		generator := runner.generator.(*cliGenerator)

		if err := runCommand(t, runner, "generate", "--mood", "chill", "--yes"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if len(generator.gotReq.Languages) != 1 || generator.gotReq.Languages[0] != "Hebrew" {
			t.Errorf("expected configured language, got %v", generator.gotReq.Languages)
		}
	})

	t.Run("exports the song list to csv", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		exportPath := filepath.Join(t.TempDir(), "songs.csv")
		if err := runCommand(t, runner, "generate", "--mood", "chill", "--yes", "--export", exportPath); err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		content, err := os.ReadFile(exportPath)
		if err != nil {
			t.Fatalf("expected export file: %v", err)
		}
		if !strings.Contains(string(content), "Blinding Lights,The Weeknd") {
			t.Errorf("unexpected export content %q", content)
		}
		if !strings.Contains(output.String(), "Exported 2 songs") {
			t.Errorf("expected export message, got %q", output.String())
		}
	})

	t.Run("imports songs from csv", func(t *testing.T) {
		runner, catalog, output := newAuthedRunner(t)

		csvPath := filepath.Join(t.TempDir(), "songs.csv")
		csv := "Title,Artist\nBohemian Rhapsody,Queen\nHotel California,Eagles\nImagine,John Lennon\n"
		if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
			t.Fatalf("failed to write csv: %v", err)
		}

		if err := runCommand(t, runner, "generate", "--csv", csvPath, "--name", "Road Trip", "--yes"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}

		if len(catalog.added) != 3 {
			t.Errorf("expected 3 tracks added, got %d", len(catalog.added))
		}
		if !strings.Contains(output.String(), "Imported 3 songs") {
			t.Errorf("expected import message, got %q", output.String())
		}
	})

	t.Run("json output", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "generate", "--mood", "chill", "--yes", "--json"); err != nil {
			t.Fatalf("generate failed: %v", err)
		}
		if !strings.Contains(output.String(), "\"id\":\"pl-1\"") {
			t.Errorf("expected playlist JSON, got %q", output.String())
		}
	})
}

func TestPreferencesCommand(t *testing.T) {
	t.Run("fails when not authenticated", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

		err := runCommand(t, runner, "preferences")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("prints artists and tracks", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "preferences"); err != nil {
			t.Fatalf("preferences failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Artist One") {
			t.Errorf("expected artist in output, got %q", got)
		}
		if !strings.Contains(got, "Track One") {
			t.Errorf("expected track in output, got %q", got)
		}
	})

	t.Run("json output", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "preferences", "--json"); err != nil {
			t.Fatalf("preferences failed: %v", err)
		}
		if !strings.Contains(output.String(), "\"top_artists\"") {
			t.Errorf("expected JSON output, got %q", output.String())
		}
	})
}

func TestAuthCommands(t *testing.T) {
	t.Run("status reports unauthenticated", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)
		runner.manager.Logout(cliPrincipal)

		if err := runCommand(t, runner, "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(output.String(), "Not authenticated") {
			t.Errorf("expected unauthenticated message, got %q", output.String())
		}
	})

	t.Run("status reports account name", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "auth", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}

		got := output.String()
		if !strings.Contains(got, "Authenticated") {
			t.Errorf("expected authenticated message, got %q", got)
		}
		if !strings.Contains(got, "Test User") {
			t.Errorf("expected account name, got %q", got)
		}
	})

	t.Run("logout removes credential", func(t *testing.T) {
		runner, _, output := newAuthedRunner(t)

		if err := runCommand(t, runner, "auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}
		if runner.manager.Authenticated(cliPrincipal) {
			t.Error("expected credential to be removed")
		}
		if !strings.Contains(output.String(), "Logged out") {
			t.Errorf("expected logout message, got %q", output.String())
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Run("creates config file and database", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")

		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "moodlist.db")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})

		if err := runCommand(t, runner, "setup", "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Errorf("expected config file to exist: %v", err)
		}
		if _, err := os.Stat(config.Database.Path); err != nil {
			t.Errorf("expected database file to exist: %v", err)
		}
		if !strings.Contains(output.String(), fmt.Sprintf("Created %s", configPath)) {
			t.Errorf("expected creation message, got %q", output.String())
		}
	})

	t.Run("leaves existing config alone", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(configPath, []byte("# existing\n"), 0o644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "moodlist.db")
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Output: output})

		if err := runCommand(t, runner, "setup", "--config", configPath); err != nil {
			t.Fatalf("setup failed: %v", err)
		}

		content, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatalf("failed to read config: %v", err)
		}
		if string(content) != "# existing\n" {
			t.Error("expected existing config to be untouched")
		}
		if !strings.Contains(output.String(), "already exists") {
			t.Errorf("expected already-exists message, got %q", output.String())
		}
	})
}

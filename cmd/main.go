package main

import (
	"context"
	"os"

	"github.com/desertthunder/moodlist/internal/auth"
	"github.com/desertthunder/moodlist/internal/pipeline"
	"github.com/desertthunder/moodlist/internal/repositories"
	"github.com/desertthunder/moodlist/internal/services"
	"github.com/desertthunder/moodlist/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "error", err)
		}
	}

	runner := NewRunner(RunnerOpts{Config: config, Logger: logger})

	spotify := config.Credentials.Spotify
	if spotify.ClientID != "" && spotify.ClientSecret != "" {
		oauthConfig, err := auth.NewConfig(spotify.ClientID, spotify.ClientSecret, spotify.RedirectURI)
		if err != nil {
			logger.Fatalf("invalid spotify credentials: %v", err)
		}

		db, err := shared.NewDatabase(config.Database.Path)
		if err != nil {
			logger.Fatalf("failed to open database: %v", err)
		}
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

		tokens := repositories.NewTokenRepository(db)
		if err := tokens.Migrate(); err != nil {
			logger.Fatalf("failed to migrate database: %v", err)
		}

		manager := auth.NewManager(oauthConfig, tokens, logger)
		catalogs := func(principalID string) services.Catalog {
			return services.NewSpotifyService(manager.Source(principalID), logger)
		}

		var generator services.Generator
		if config.Credentials.OpenAI.APIKey != "" {
			generator, err = services.NewOpenAIService(config.Credentials.OpenAI.APIKey, config.Credentials.OpenAI.Model, logger)
			if err != nil {
				logger.Fatalf("failed to create generator: %v", err)
			}
		}

		store := pipeline.NewSessionStore(pipeline.DefaultSessionTTL, logger)

		runner = NewRunner(RunnerOpts{
			Config:    config,
			OAuth:     oauthConfig,
			Manager:   manager,
			Generator: generator,
			Catalogs:  catalogs,
			Pipeline:  pipeline.NewPipeline(store, generator, catalogs, logger),
			Logger:    logger,
		})
	}

	app := &cli.Command{
		Name:     "moodlist",
		Usage:    "Generate mood-based Spotify playlists with an LLM",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

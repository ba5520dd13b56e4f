package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/moodlist/internal/repositories"
	"github.com/desertthunder/moodlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes an example config file when none exists and creates the
// database schema.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", configPath)
		r.writePlain("Edit it with your Spotify and OpenAI credentials, then run: moodlist auth login\n")
	} else {
		r.writePlain("✓ Config file %s already exists\n", configPath)
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := repositories.NewTokenRepository(db).Migrate(); err != nil {
		return err
	}
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}

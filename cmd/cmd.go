// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand initializes the config file and database
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles login, status and logout
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2 (PKCE)",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show authentication status",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the stored credential",
				Action: r.AuthLogout,
			},
		},
	}
}

// generateCommand runs the full mood playlist workflow
func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Generate a mood playlist and create it on Spotify",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "mood",
				Aliases: []string{"m"},
				Usage:   "Mood description, e.g. \"Upbeat workout songs\"",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of songs to request",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Import songs from a CSV file (Title,Artist) instead of generating",
			},
			&cli.StringSliceFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Constrain song language, repeatable (overrides config)",
			},
			&cli.StringFlag{
				Name:  "export",
				Usage: "Write the song list to a CSV file before matching",
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Playlist name (defaults to one derived from the mood)",
			},
			&cli.BoolFlag{
				Name:    "personalize",
				Aliases: []string{"p"},
				Usage:   "Fold listening history into the generation prompt",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Keep all matched songs without the interactive curation step",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the created playlist as JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
		},
		Action: r.Generate,
	}
}

// preferencesCommand shows the user's listening history summary
func preferencesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "preferences",
		Aliases: []string{"prefs"},
		Usage:   "Show top tracks, artists and genres from listening history",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Preferences,
	}
}

// serveCommand runs the HTTP API server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the playlist pipeline as an HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to bind (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to a file instead of stderr",
			},
		},
		Action: r.Serve,
	}
}

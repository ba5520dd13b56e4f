// package services contains the external API clients: the Spotify Web
// API catalog client and the OpenAI song generator.
package services

import (
	"context"

	"github.com/desertthunder/moodlist/internal/models"
)

// TokenProvider yields a non-expired bearer token for each request.
// Satisfied by [auth.PrincipalSource].
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// MusicPreferences summarizes a user's listening history, used to
// personalize generation prompts. Both lists may be empty.
type MusicPreferences struct {
	TopTracks  []models.Song `json:"top_tracks"`
	TopArtists []string      `json:"top_artists"`
	Genres     []string      `json:"genres"`
}

// Empty reports whether the preferences carry no usable signal.
func (p MusicPreferences) Empty() bool {
	return len(p.TopTracks) == 0 && len(p.TopArtists) == 0
}

// Catalog is the surface the playlist pipeline needs from the streaming
// catalog.
type Catalog interface {
	// CurrentUser returns the authenticated user's profile.
	CurrentUser(ctx context.Context) (*SpotifyUser, error)

	// SearchTrack resolves a title/artist pair to a catalog track.
	// A nil track with a nil error means no match was found; catalog
	// failures for a single lookup degrade to no-match rather than
	// failing the batch.
	SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error)

	// CreatePlaylist creates a private playlist for the current user.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddTracks appends track URIs to a playlist in order.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// Preferences reads the user's listening history. Missing history
	// degrades to empty preferences, never an error.
	Preferences(ctx context.Context) (MusicPreferences, error)
}

// GenerationRequest describes one song-generation call. Languages, when
// set, constrain what language the suggested songs should be in.
type GenerationRequest struct {
	Mood        string
	Languages   []string
	Count       int
	Preferences MusicPreferences
}

// GenerationResult is the outcome of a generation call. UsedFallback is
// set when the model output was unusable and the built-in list was
// served instead.
type GenerationResult struct {
	Songs        []models.Song
	PlaylistName string
	Hebrew       bool
	UsedFallback bool
}

// Generator produces song candidates for a mood description.
type Generator interface {
	GenerateSongs(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

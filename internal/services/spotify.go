// Spotify Web API implementation of [Catalog]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
	"golang.org/x/sync/errgroup"
)

var spotifyBaseURL = "https://api.spotify.com/v1"

// addTracksBatchSize is the Spotify API's per-request cap on playlist
// additions.
const addTracksBatchSize = 100

// topItemsTimeRange selects the listening-history window for top
// tracks/artists reads (short_term, medium_term or long_term).
const topItemsTimeRange = "medium_term"

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	URI    string   `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	URI        string          `json:"uri"`
	PreviewURL string          `json:"preview_url"`
}

func (t SpotifyTrack) toCatalogTrack() models.CatalogTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	track := models.CatalogTrack{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    artists,
		URI:        t.URI,
		PreviewURL: t.PreviewURL,
	}
	if len(t.Album.Images) > 0 {
		track.ArtworkURL = t.Album.Images[0].URL
	}
	return track
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type topTracksResponse struct {
	Items []SpotifyTrack `json:"items"`
}

type topArtistsResponse struct {
	Items []SpotifyArtist `json:"items"`
}

type createPlaylistResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// apiError decodes the Spotify error envelope.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}

// SpotifyService implements [Catalog] over the Spotify Web API. Tokens
// come from the provider per request, so a long-running service picks
// up refreshed credentials automatically.
type SpotifyService struct {
	tokens     TokenProvider
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates a Spotify catalog client.
func NewSpotifyService(tokens TokenProvider, logger *log.Logger) *SpotifyService {
	return &SpotifyService{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated HTTP request against the Spotify
// API, encoding body as JSON when present and decoding into result.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	token, err := s.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	apiURL := spotifyBaseURL + endpoint

	var req *http.Request
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCatalogRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&envelope)
		return fmt.Errorf("%w: %v", shared.ErrCatalogRequest, &apiError{Status: resp.StatusCode, Message: envelope.Error.Message})
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrCatalogRequest, err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchTrack resolves a title/artist pair to the best catalog match.
// Returns (nil, nil) when nothing matches. Catalog failures also yield
// (nil, nil) so one flaky lookup cannot sink a whole batch; auth
// failures propagate.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*models.CatalogTrack, error) {
	query := formatQuery(title, artist)
	endpoint := "/search?" + url.Values{
		"q":     {query},
		"type":  {"track"},
		"limit": {"1"},
	}.Encode()

	var resp searchResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if !errors.Is(err, shared.ErrCatalogRequest) {
			return nil, err
		}
		s.logger.Warn("track search failed", "title", title, "artist", artist, "error", err)
		return nil, nil
	}

	if len(resp.Tracks.Items) == 0 {
		return nil, nil
	}

	track := resp.Tracks.Items[0].toCatalogTrack()
	return &track, nil
}

// CreatePlaylist creates a private playlist for the current user. An
// empty description gets a date-stamped default.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrInvalidArgument)
	}
	if description == "" {
		description = "Mood playlist generated on " + time.Now().Format("January 2, 2006")
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var resp createPlaylistResponse
	endpoint := fmt.Sprintf("/users/%s/playlists", user.ID)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:   resp.ID,
		Name: resp.Name,
		URL:  resp.ExternalURLs.Spotify,
	}, nil
}

// AddTracks appends track URIs to a playlist in batches of at most 100,
// preserving order. A failed batch aborts the remainder so tracks are
// never added out of order.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidArgument)
	}
	if len(uris) == 0 {
		return nil
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)
	for start := 0; start < len(uris); start += addTracksBatchSize {
		end := min(start+addTracksBatchSize, len(uris))

		body := map[string]any{"uris": uris[start:end]}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start+1, end, err)
		}
	}

	return nil
}

// TopTracks reads the user's most played tracks. Missing history and
// catalog failures degrade to an empty list.
func (s *SpotifyService) TopTracks(ctx context.Context, limit int) ([]models.Song, error) {
	endpoint := fmt.Sprintf("/me/top/tracks?limit=%d&time_range=%s", limit, topItemsTimeRange)
	var resp topTracksResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if !errors.Is(err, shared.ErrCatalogRequest) {
			return nil, err
		}
		s.logger.Warn("failed to read top tracks", "error", err)
		return nil, nil
	}

	songs := make([]models.Song, 0, len(resp.Items))
	for _, item := range resp.Items {
		song := models.Song{Title: item.Name}
		if len(item.Artists) > 0 {
			song.Artist = item.Artists[0].Name
		}
		songs = append(songs, song)
	}
	return songs, nil
}

// TopArtists reads the user's most played artists with their genres.
// Missing history and catalog failures degrade to an empty list.
func (s *SpotifyService) TopArtists(ctx context.Context, limit int) ([]SpotifyArtist, error) {
	endpoint := fmt.Sprintf("/me/top/artists?limit=%d&time_range=%s", limit, topItemsTimeRange)
	var resp topArtistsResponse
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if !errors.Is(err, shared.ErrCatalogRequest) {
			return nil, err
		}
		s.logger.Warn("failed to read top artists", "error", err)
		return nil, nil
	}
	return resp.Items, nil
}

// Preferences reads top tracks and top artists concurrently and merges
// them into a [MusicPreferences]. New accounts without history produce
// empty preferences, not an error.
func (s *SpotifyService) Preferences(ctx context.Context) (MusicPreferences, error) {
	var prefs MusicPreferences

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		tracks, err := s.TopTracks(groupCtx, 10)
		if err != nil {
			return err
		}
		prefs.TopTracks = tracks
		return nil
	})
	group.Go(func() error {
		artists, err := s.TopArtists(groupCtx, 10)
		if err != nil {
			return err
		}

		seen := map[string]bool{}
		for _, artist := range artists {
			prefs.TopArtists = append(prefs.TopArtists, artist.Name)
			for _, genre := range artist.Genres {
				if !seen[genre] {
					seen[genre] = true
					prefs.Genres = append(prefs.Genres, genre)
				}
			}
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return MusicPreferences{}, err
	}
	return prefs, nil
}

// formatQuery builds a field-filtered search query. Quoting the values
// keeps multi-word titles as one phrase.
func formatQuery(title, artist string) string {
	return fmt.Sprintf("track:%q artist:%q", strings.TrimSpace(title), strings.TrimSpace(artist))
}

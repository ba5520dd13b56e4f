package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/shared"
	"golang.org/x/oauth2"
)

// CallbackTimeout bounds how long a flow waits for the redirect.
const CallbackTimeout = 5 * time.Minute

var (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested for playlist creation and listening-history reads.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-modify-public",
	"playlist-modify-private",
	"user-top-read",
}

// Config holds the OAuth client settings shared by flows and the [Manager].
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	HTTPClient   *http.Client
}

// NewConfig creates a Config from Spotify credentials, applying the
// default redirect URI and a 15 second HTTP timeout when unset.
func NewConfig(clientID, clientSecret, redirectURI string) (*Config, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if redirectURI == "" {
		redirectURI = "http://localhost:8888/callback"
	}

	return &Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		HTTPClient:   &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Config) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  spotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// FlowState tracks a single handshake through its lifecycle.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowAwaitingCallback
	FlowExchanging
	FlowComplete
	FlowFailed
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowAwaitingCallback:
		return "awaiting_callback"
	case FlowExchanging:
		return "exchanging"
	case FlowComplete:
		return "complete"
	case FlowFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Flow runs one authorization-code-with-PKCE handshake. Terminal states
// end the instance; a second handshake needs a new Flow.
type Flow struct {
	config   *Config
	oauth    *oauth2.Config
	verifier string
	state    string

	mu    sync.Mutex
	stage FlowState
}

// NewFlow creates a single-use flow with a fresh PKCE verifier and CSRF
// state token. The verifier never leaves the flow before the exchange.
func NewFlow(config *Config) (*Flow, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, err
	}

	return &Flow{
		config:   config,
		oauth:    config.oauth2Config(),
		verifier: oauth2.GenerateVerifier(),
		state:    state,
		stage:    FlowIdle,
	}, nil
}

// State returns the CSRF state token bound to this flow.
func (f *Flow) State() string {
	return f.state
}

// Stage returns the current lifecycle state.
func (f *Flow) Stage() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stage
}

// AuthorizationURL builds the provider authorization URL with the S256
// code challenge and moves the flow to [FlowAwaitingCallback].
func (f *Flow) AuthorizationURL() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stage != FlowIdle {
		return "", fmt.Errorf("%w: flow already started (%s)", shared.ErrInvalidArgument, f.stage)
	}
	f.stage = FlowAwaitingCallback

	return f.oauth.AuthCodeURL(f.state, oauth2.S256ChallengeOption(f.verifier)), nil
}

// Exchange trades an authorization code for a credential, sending the
// retained PKCE verifier. Any failure moves the flow to [FlowFailed].
func (f *Flow) Exchange(ctx context.Context, code string) (models.Credential, error) {
	f.mu.Lock()
	if f.stage != FlowAwaitingCallback {
		stage := f.stage
		f.mu.Unlock()
		return models.Credential{}, fmt.Errorf("%w: flow not awaiting callback (%s)", shared.ErrAuthFailed, stage)
	}
	f.stage = FlowExchanging
	f.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.config.HTTPClient)
	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(f.verifier))
	if err != nil {
		f.fail()
		return models.Credential{}, fmt.Errorf("%w: %s", shared.ErrAuthFailed, providerErrorDetail(err))
	}

	f.mu.Lock()
	f.stage = FlowComplete
	f.mu.Unlock()

	return models.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}

// Fail moves the flow to [FlowFailed]. Used when the provider redirects
// with an error parameter instead of a code.
func (f *Flow) Fail() {
	f.fail()
}

func (f *Flow) fail() {
	f.mu.Lock()
	f.stage = FlowFailed
	f.mu.Unlock()
}

// Refresh exchanges a refresh token for a new credential. The old
// refresh token is preserved when the provider omits a replacement;
// rotation is optional per the provider contract and must not be
// assumed.
func (c *Config) Refresh(ctx context.Context, cred models.Credential) (models.Credential, error) {
	if cred.RefreshToken == "" {
		return models.Credential{}, shared.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", cred.RefreshToken)
	form.Set("client_id", c.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, spotifyTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return models.Credential{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		detail := fmt.Sprintf("status %d", resp.StatusCode)
		if err := json.NewDecoder(resp.Body).Decode(&errBody); err == nil && errBody.Description != "" {
			detail = errBody.Description
		}
		return models.Credential{}, fmt.Errorf("%w: %s", shared.ErrRefreshFailed, detail)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return models.Credential{}, fmt.Errorf("%w: failed to decode response: %v", shared.ErrRefreshFailed, err)
	}

	refreshToken := tokenResp.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}

	return models.Credential{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
	}, nil
}

// providerErrorDetail extracts the provider's error description from an
// oauth2 retrieve error when present.
func providerErrorDetail(err error) string {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorDescription != "" {
			return retrieveErr.ErrorDescription
		}
		if retrieveErr.ErrorCode != "" {
			return retrieveErr.ErrorCode
		}
		return fmt.Sprintf("token endpoint returned status %d", retrieveErr.Response.StatusCode)
	}
	return err.Error()
}

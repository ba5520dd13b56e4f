package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Catalog and generation errors
	ErrCatalogRequest = fmt.Errorf("catalog request failed")
	ErrGeneration     = fmt.Errorf("song generation failed")
	ErrTrackNotFound  = fmt.Errorf("track not found")

	// Pipeline errors
	ErrInvalidStage    = fmt.Errorf("invalid pipeline stage")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrNoSongsSelected = fmt.Errorf("no songs selected")
	ErrNoMatches       = fmt.Errorf("no songs matched")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

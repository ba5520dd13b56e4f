package models

import (
	"time"
)

// ExpiryMargin is the safety window applied before a credential's actual
// expiry. A credential inside the margin is treated as expired and must
// be refreshed before any authenticated call.
const ExpiryMargin = 60 * time.Second

// Credential holds an OAuth access/refresh token pair for a principal.
// Owned by the auth layer and the token repository; never handed to the
// presentation layer.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the access token is within [ExpiryMargin] of
// its expiry (or past it).
func (c Credential) IsExpired() bool {
	return !time.Now().Add(ExpiryMargin).Before(c.ExpiresAt)
}

// Valid reports whether the credential carries the fields required to be
// usable at all.
func (c Credential) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && !c.ExpiresAt.IsZero()
}

// Song is a title/artist pair, either generated by the model or read
// from an uploaded CSV. Immutable once produced.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// CatalogTrack is a track resolved against the external catalog.
type CatalogTrack struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	URI        string   `json:"uri"`
	ArtworkURL string   `json:"artwork_url,omitempty"`
	PreviewURL string   `json:"preview_url,omitempty"`
}

// MatchedSong pairs a source [Song] with the catalog track it resolved
// to. Songs without a match are dropped before this type is built, so a
// MatchedSong always carries a track.
type MatchedSong struct {
	Original Song         `json:"original"`
	Track    CatalogTrack `json:"track"`
}

// Playlist describes a playlist created in the user's catalog account.
type Playlist struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	TrackCount int    `json:"track_count"`
}

// Stage is a step in a session's linear workflow. Curation happens
// within the curate stage without advancing it; playlist creation
// consumes the stored selection and moves the session to done.
type Stage int

const (
	StageGenerate Stage = iota
	StageMatch
	StageCurate
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageGenerate:
		return "generate"
	case StageMatch:
		return "match"
	case StageCurate:
		return "curate"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

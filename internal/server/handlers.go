package server

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodlist/internal/auth"
	"github.com/desertthunder/moodlist/internal/formatter"
	"github.com/desertthunder/moodlist/internal/pipeline"
	"github.com/desertthunder/moodlist/internal/shared"
)

// principalCookie identifies the browser across requests. The cookie
// value is an opaque ID, never a token.
const principalCookie = "moodlist_principal"

// pendingFlow is an authorization flow waiting for its redirect.
type pendingFlow struct {
	flow        *auth.Flow
	principalID string
	created     time.Time
}

// APIHandler serves the HTTP surface of the playlist pipeline: login,
// OAuth callback, and the session workflow endpoints.
type APIHandler struct {
	pipeline *pipeline.Pipeline
	manager  *auth.Manager
	oauth    *auth.Config
	catalogs pipeline.CatalogFactory
	logger   *log.Logger

	mu    sync.Mutex
	flows map[string]*pendingFlow
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(p *pipeline.Pipeline, manager *auth.Manager, oauth *auth.Config, catalogs pipeline.CatalogFactory, logger *log.Logger) *APIHandler {
	return &APIHandler{
		pipeline: p,
		manager:  manager,
		oauth:    oauth,
		catalogs: catalogs,
		logger:   logger,
		flows:    map[string]*pendingFlow{},
	}
}

// Register mounts all API routes on the router.
func (h *APIHandler) Register(router *BasicRouter) {
	router.Handle(http.MethodGet, "/health", http.HandlerFunc(h.health))
	router.Handle(http.MethodGet, "/login", http.HandlerFunc(h.login))
	router.Handle(http.MethodGet, "/callback", http.HandlerFunc(h.callback))
	router.Handle(http.MethodPost, "/logout", http.HandlerFunc(h.logout))

	router.Handle(http.MethodGet, "/api/preferences", http.HandlerFunc(h.preferences))
	router.Handle(http.MethodPost, "/api/sessions", http.HandlerFunc(h.startSession))
	router.Handle(http.MethodGet, "/api/sessions/{id}", http.HandlerFunc(h.session))
	router.Handle(http.MethodDelete, "/api/sessions/{id}", http.HandlerFunc(h.endSession))
	router.Handle(http.MethodPost, "/api/sessions/{id}/generate", http.HandlerFunc(h.generate))
	router.Handle(http.MethodPost, "/api/sessions/{id}/songs", http.HandlerFunc(h.uploadSongs))
	router.Handle(http.MethodPost, "/api/sessions/{id}/match", http.HandlerFunc(h.match))
	router.Handle(http.MethodPost, "/api/sessions/{id}/curate", http.HandlerFunc(h.curate))
	router.Handle(http.MethodPost, "/api/sessions/{id}/playlist", http.HandlerFunc(h.createPlaylist))
}

// principalID reads the principal cookie, minting one when absent.
func (h *APIHandler) principalID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(principalCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	id := shared.GenerateID()
	http.SetCookie(w, &http.Cookie{
		Name:     principalCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *APIHandler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// login starts an authorization flow and redirects the browser to the
// provider.
func (h *APIHandler) login(w http.ResponseWriter, r *http.Request) {
	principal := h.principalID(w, r)

	flow, err := auth.NewFlow(h.oauth)
	if err != nil {
		writeError(w, err)
		return
	}
	authURL, err := flow.AuthorizationURL()
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	h.expireFlowsLocked()
	h.flows[flow.State()] = &pendingFlow{flow: flow, principalID: principal, created: time.Now()}
	h.mu.Unlock()

	http.Redirect(w, r, authURL, http.StatusFound)
}

// expireFlowsLocked drops pending flows older than the callback
// timeout. Caller holds the mutex.
func (h *APIHandler) expireFlowsLocked() {
	cutoff := time.Now().Add(-auth.CallbackTimeout)
	for state, pending := range h.flows {
		if pending.created.Before(cutoff) {
			delete(h.flows, state)
		}
	}
}

// callback completes a pending authorization flow and stores the
// credential.
func (h *APIHandler) callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")

	h.mu.Lock()
	pending, ok := h.flows[state]
	delete(h.flows, state)
	h.mu.Unlock()

	if !ok {
		writePage(w, http.StatusBadRequest, failurePage("The authorization response could not be verified."))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		pending.flow.Fail()
		h.logger.Warn("authorization denied", "error", r.URL.Query().Get("error"))
		writePage(w, http.StatusBadRequest, failurePage("Authorization was denied or failed."))
		return
	}

	cred, err := pending.flow.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "error", err)
		writePage(w, http.StatusBadGateway, failurePage("The authorization code could not be exchanged."))
		return
	}

	if err := h.manager.Save(pending.principalID, cred); err != nil {
		h.logger.Error("failed to persist credential", "error", err)
		writePage(w, http.StatusInternalServerError, failurePage("The credential could not be stored."))
		return
	}

	writePage(w, http.StatusOK, successPage)
}

func (h *APIHandler) logout(w http.ResponseWriter, r *http.Request) {
	principal := h.principalID(w, r)
	if err := h.manager.Logout(principal); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) preferences(w http.ResponseWriter, r *http.Request) {
	principal := h.principalID(w, r)
	prefs, err := h.catalogs(principal).Preferences(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *APIHandler) startSession(w http.ResponseWriter, r *http.Request) {
	principal := h.principalID(w, r)
	if !h.manager.Authenticated(principal) {
		writeError(w, fmt.Errorf("%w: log in before starting a session", shared.ErrNotAuthenticated))
		return
	}

	session := h.pipeline.StartSession(principal)
	writeJSON(w, http.StatusCreated, session.Snapshot())
}

// ownedSession resolves the path session and verifies it belongs to the
// requesting principal. Foreign sessions read as not found.
func (h *APIHandler) ownedSession(w http.ResponseWriter, r *http.Request) (*pipeline.UserSession, bool) {
	principal := h.principalID(w, r)
	session, err := h.pipeline.Session(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if session.PrincipalID != principal {
		writeError(w, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, r.PathValue("id")))
		return nil, false
	}
	return session, true
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

func (h *APIHandler) endSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}
	h.pipeline.EndSession(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) generate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Mood        string   `json:"mood"`
		Languages   []string `json:"languages"`
		Count       int      `json:"count"`
		Personalize bool     `json:"personalize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput))
		return
	}

	songs, err := h.pipeline.Generate(r.Context(), session.ID, body.Mood, body.Languages, body.Count, body.Personalize, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"songs":         songs,
		"playlist_name": snap.PlaylistName,
		"used_fallback": snap.UsedFallback,
	})
}

// uploadSongs seeds the session from an uploaded CSV instead of
// generation. Accepts a raw text/csv body or a multipart "file" part.
func (h *APIHandler) uploadSongs(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	reader := r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: missing file part", shared.ErrInvalidInput))
			return
		}
		defer file.Close()
		reader = file
	}

	songs, err := formatter.ParseSongsCSV(reader)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.pipeline.ImportSongs(session.ID, songs, r.URL.Query().Get("name")); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"imported": len(songs)})
}

func (h *APIHandler) match(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	matched, err := h.pipeline.Match(r.Context(), session.ID, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"matched": matched})
}

func (h *APIHandler) curate(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Indices []int `json:"indices"`
		KeepAll bool  `json:"keep_all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput))
		return
	}

	var selected any
	var err error
	if body.KeepAll {
		selected, err = h.pipeline.KeepAll(session.ID)
	} else {
		selected, err = h.pipeline.Curate(session.ID, body.Indices)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"selected": selected})
}

func (h *APIHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	session, ok := h.ownedSession(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Errorf("%w: malformed JSON body", shared.ErrInvalidInput))
		return
	}

	playlist, err := h.pipeline.CreatePlaylist(r.Context(), session.ID, body.Name, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, playlist)
}

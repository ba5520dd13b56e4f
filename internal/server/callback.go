package server

import (
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult contains the outcome of an OAuth redirect: the
// authorization code, or the provider's error.
type CallbackResult struct {
	Code string
	err  error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler receives the OAuth redirect for one authorization
// flow. It validates the state parameter and hands the raw code back
// through the result channel; the code exchange itself stays with the
// auth flow, which holds the PKCE verifier.
//
// Implements the [Handler] interface for registration with a Router.
type CallbackHandler struct {
	state       string
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a callback handler bound to a flow's state
// token. The state token should be cryptographically random for CSRF
// protection.
func NewCallbackHandler(state string) *CallbackHandler {
	return &CallbackHandler{
		state:      state,
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []Route {
	return []Route{{Method: http.MethodGet, Path: "/callback"}}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter and sends the authorization code
// through the result channel. Only the first callback is processed;
// retries and stray hits get a 400.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.Send(CallbackResult{err: fmt.Errorf("invalid state parameter")})
		writePage(w, http.StatusBadRequest, failurePage("The authorization response could not be verified."))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.Send(CallbackResult{err: fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)})
		writePage(w, http.StatusBadRequest, failurePage("Authorization was denied or failed."))
		return
	}

	h.Send(CallbackResult{Code: code})
	writePage(w, http.StatusOK, successPage)
}

// Send sends the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

func writePage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

const pageStyle = `
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1.ok { color: #1DB954; margin: 0 0 1rem 0; }
        h1.err { color: #c0392b; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
`

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>` + pageStyle + `</style>
</head>
<body>
    <div class="container">
        <h1 class="ok">✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`

func failurePage(reason string) string {
	return `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Failed</title>
    <style>` + pageStyle + `</style>
</head>
<body>
    <div class="container">
        <h1 class="err">✗ Authorization Failed</h1>
        <p>` + reason + `</p>
    </div>
</body>
</html>
`
}

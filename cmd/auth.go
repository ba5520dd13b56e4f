package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/moodlist/internal/auth"
	"github.com/desertthunder/moodlist/internal/models"
	"github.com/desertthunder/moodlist/internal/server"
	"github.com/desertthunder/moodlist/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthLogin runs the OAuth authorization flow: starts a local HTTP
// server, opens the browser, waits for the redirect, exchanges the code
// and stores the credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if r.oauth == nil || r.manager == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	cred, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	if err := r.manager.Save(cliPrincipal, cred); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("You can now use: moodlist generate --mood \"...\"\n")

	return nil
}

// AuthStatus reports whether a credential is stored and still usable.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if r.manager == nil {
		return r.writePlain("✗ Not configured: missing Spotify credentials\n")
	}

	if !r.manager.Authenticated(cliPrincipal) {
		return r.writePlain("✗ Not authenticated. Run: moodlist auth login\n")
	}

	r.writePlain("✓ Authenticated\n")

	user, err := r.catalogs(cliPrincipal).CurrentUser(ctx)
	if err != nil {
		r.logger.Warn("could not read profile", "error", err)
		return nil
	}

	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	return r.writePlain("Account: %s\n", name)
}

// AuthLogout removes the stored credential.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if r.manager == nil {
		return nil
	}
	if err := r.manager.Logout(cliPrincipal); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

// doOAuth executes the authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (cred models.Credential, err error) {
	flow, err := auth.NewFlow(r.oauth)
	if err != nil {
		return cred, fmt.Errorf("failed to create flow: %w", err)
	}

	authURL, err := flow.AuthorizationURL()
	if err != nil {
		return cred, err
	}

	callbackHandler := server.NewCallbackHandler(flow.State())
	router := server.NewBasicRouter()
	router.Handler(callbackHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Info("starting OAuth callback server", "addr", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (5 minute timeout)...\n")

	timeout := time.NewTimer(auth.CallbackTimeout)
	defer timeout.Stop()

	var result server.CallbackResult

	select {
	case result = <-callbackHandler.Result():
		// Got result from callback
	case err := <-serverErrors:
		return cred, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return cred, fmt.Errorf("%w: authorization timed out after 5 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return cred, fmt.Errorf("%w: %v", shared.ErrAuthFailed, result.Error())
	}

	return flow.Exchange(ctx, result.Code)
}

// package auth implements the authorization-code-with-PKCE handshake
// against the Spotify accounts service and manages stored credentials.
//
// A [Flow] runs exactly one handshake: build the authorization URL,
// receive the redirect code (via the server package), exchange it for a
// credential. The [Manager] owns long-lived credential state: it loads
// tokens from the repository, refreshes them inside the expiry margin,
// and deduplicates concurrent refreshes per principal.
package auth

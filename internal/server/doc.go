// package server provides the HTTP layer of the playlist service.
//
// [BasicRouter] wraps [http.ServeMux] with a middleware stack.
// [CallbackHandler] receives a single OAuth redirect for CLI-driven
// logins, and [APIHandler] exposes the full session workflow (login,
// generate, upload, match, curate, create) as a JSON API for browser
// clients.
package server

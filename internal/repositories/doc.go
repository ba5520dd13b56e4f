// package repositories provides the persistence layer for OAuth credentials.
//
// TokenRepository stores one access/refresh token pair per principal in
// SQLite, so a restart of the CLI does not force a fresh authorization.
package repositories

// Package services defines the [Service] interface for the Spotify Web API and its [SpotifyService] implementation.
//
// # Authorization
//
// [SpotifyService] drives the single-user OAuth2 authorization-code grant:
//
//  1. [SpotifyService.AuthURL] builds the authorize redirect (scopes
//     user-library-read, playlist-modify-private, playlist-modify-public).
//  2. [SpotifyService.ValidateCallback] enforces the CSRF precondition on the
//     callback before any exchange is attempted.
//  3. [SpotifyService.Exchange] trades the code for a [Token] bundle.
//
// # Token Freshness
//
// The [Token] bundle is owned by the caller (config file or web session).
// [SpotifyService.EnsureFresh] is a synchronous precondition invoked before
// every privileged call: it refreshes a stale bundle in place with exactly one
// refresh-grant request, preserving the held refresh token when the server
// omits a new one. Bundles are issued already-near-expiry (lifetime minus a
// 30 second margin) so freshness checks err on the safe side.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrCallbackInvalid] : malformed or forged authorization callback
//   - [shared.ErrAuthFailed] : token exchange, refresh, or bearer call rejected
//   - [shared.ErrAPIRequest] : any other non-success provider response
//   - [shared.ErrNotAuthenticated] : no token bundle supplied
//
// Failures are never retried here; callers decide whether re-authentication
// or surfacing the error is appropriate.
package services

// Package server provides HTTP routing, middleware, sessions, and handlers
// for the web application and the CLI OAuth flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. The [BasicRouter] implementation uses
// [http.ServeMux] internally with method filtering.
//
// # Sessions
//
// The web application keeps per-browser state in an HMAC-signed cookie
// ([SessionCodec]): the token bundle after login, and the pending OAuth state
// token during a login attempt. The cookie is the caller-owned token store;
// handlers pass the bundle into the core and write back whatever comes out,
// so the session always carries the freshest credentials.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback for the
// CLI flow. The handler validates the callback (CSRF state, code presence,
// provider errors), exchanges the authorization code for tokens, and sends
// the result through a channel. It only processes one callback to prevent
// replay attacks.
//
// # Web Application
//
// [AppHandler] serves the browser-facing flow:
//
//	GET  /                 → index page (login state aware)
//	GET  /login            → state into session, redirect to authorize URL
//	GET  /callback         → validation, code exchange, tokens into session
//	GET  /logout           → clear session
//	POST /create-playlist  → run the liked-songs transfer, render the result
package server

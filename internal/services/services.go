package services

import (
	"context"
	"net/url"
	"time"
)

// Service defines the operations the application needs from a music service
// provider: the authorization-code flow, token freshness, and the
// saved-tracks/playlist endpoints used by the liked-songs transfer.
type Service interface {
	// AuthURL returns the provider's authorization redirect URL for the
	// given anti-CSRF state token. Pure construction, no network call.
	AuthURL(state string) string

	// ValidateCallback checks an authorization callback's query parameters
	// against the state stored for this login attempt. Returns the
	// authorization code, or an error wrapping [shared.ErrCallbackInvalid]
	// when the callback is malformed, forged, or provider-rejected.
	ValidateCallback(query url.Values, wantState string) (string, error)

	// Exchange trades an authorization code for a token bundle.
	Exchange(ctx context.Context, code string) (*Token, error)

	// EnsureFresh refreshes the token bundle in place when it is stale and a
	// refresh token is available. A fresh bundle is returned unchanged with
	// zero network calls.
	EnsureFresh(ctx context.Context, tok *Token) error

	// CurrentUser retrieves the authenticated user's identity.
	CurrentUser(ctx context.Context, tok *Token) (*User, error)

	// LikedTrackURIs walks the user's saved tracks and returns their URIs in
	// collection order. maxCount > 0 caps the result; 0 fetches everything.
	LikedTrackURIs(ctx context.Context, tok *Token, pageSize, maxCount int) ([]string, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, tok *Token, userID, name string, public bool, description string) (*Playlist, error)

	// AddTracks appends track URIs to a playlist in order, batching as the
	// provider requires.
	AddTracks(ctx context.Context, tok *Token, playlistID string, uris []string) error

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// Token is the session-scoped credential bundle. It is owned by the caller
// (config file or web session) across requests; services only read it and,
// on refresh, update it in place.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds, already includes the issuance margin
}

// freshFor is the grace window before expiry during which a token is still
// treated as stale, absorbing clock skew and in-flight latency.
const freshFor = 5 * time.Second

// Fresh reports whether the access token is still usable at the given instant.
func (t *Token) Fresh(now time.Time) bool {
	return now.Unix() < t.ExpiresAt-int64(freshFor.Seconds())
}

// User represents the authenticated user's identity.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Playlist represents a created playlist.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Public bool   `json:"public"`
}

// URL returns the user-facing playlist URL.
func (p *Playlist) URL() string {
	return "https://open.spotify.com/playlist/" + p.ID
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avelinebess/likify/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// issueMargin is subtracted from the server-declared token lifetime at
	// issuance and refresh, so a bundle is cached as already-near-expiry.
	issueMargin = 30 * time.Second

	// addTracksBatchSize is Spotify's documented per-request ceiling for
	// POST /playlists/{id}/tracks.
	addTracksBatchSize = 100

	defaultDescription = "Auto-generated from Liked Songs"
)

// savedTracksPage is one page of GET /me/tracks. Next carries the absolute
// URL of the following page, or null at end-of-collection.
type savedTracksPage struct {
	Items []savedTrackItem `json:"items"`
	Next  *string          `json:"next"`
}

type savedTrackItem struct {
	AddedAt string `json:"added_at"`
	Track   struct {
		URI string `json:"uri"`
	} `json:"track"`
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for the authorization-code and refresh-token grants.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-library-read",
			"playlist-modify-private",
			"playlist-modify-public",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
			// Client credentials go in an Authorization: Basic header.
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetRateLimit applies a client-side cap on outbound API requests per second.
// A non-positive value disables the limiter.
func (s *SpotifyService) SetRateLimit(rps float64) {
	if rps <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "false"))
}

// ValidateCallback enforces the callback precondition: no provider-reported
// error, both code and state present, and the state matching the one stored
// for this login attempt. Any violation fails closed before token exchange.
func (s *SpotifyService) ValidateCallback(query url.Values, wantState string) (string, error) {
	if errParam := query.Get("error"); errParam != "" {
		return "", fmt.Errorf("%w: provider reported %q", shared.ErrCallbackInvalid, errParam)
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		return "", fmt.Errorf("%w: missing code or state", shared.ErrCallbackInvalid)
	}

	if wantState == "" || state != wantState {
		return "", fmt.Errorf("%w: state mismatch", shared.ErrCallbackInvalid)
	}

	return code, nil
}

// Exchange trades an authorization code for a token bundle via a single POST
// to the token endpoint. No retries.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*Token, error) {
	ot, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange rejected: %v", shared.ErrAuthFailed, err)
	}

	return bundleToken(ot, time.Now()), nil
}

// EnsureFresh refreshes the bundle in place when it is stale. Refresh is
// opportunistic: a stale bundle without a refresh token is returned unchanged
// and the next privileged call surfaces the auth failure instead.
func (s *SpotifyService) EnsureFresh(ctx context.Context, tok *Token) error {
	if tok == nil {
		return fmt.Errorf("%w: no token bundle", shared.ErrNotAuthenticated)
	}
	if tok.Fresh(time.Now()) {
		return nil
	}
	if tok.RefreshToken == "" {
		return nil
	}

	stale := &oauth2.Token{
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}
	ot, err := s.config.TokenSource(s.oauthContext(ctx), stale).Token()
	if err != nil {
		return fmt.Errorf("%w: token refresh rejected: %v", shared.ErrAuthFailed, err)
	}

	fresh := bundleToken(ot, time.Now())
	tok.AccessToken = fresh.AccessToken
	tok.ExpiresAt = fresh.ExpiresAt
	// Servers may omit refresh_token to signal "unchanged"; never drop the
	// one already held.
	if fresh.RefreshToken != "" {
		tok.RefreshToken = fresh.RefreshToken
	}

	return nil
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context, tok *Token) (*User, error) {
	if err := s.EnsureFresh(ctx, tok); err != nil {
		return nil, err
	}

	var user User
	if err := s.doRequest(ctx, tok, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// LikedTrackURIs walks the saved-tracks collection page by page, following
// the provider-supplied next pointer until it is absent. Items without a
// playable track (e.g. removed tracks) are skipped. When maxCount > 0 the
// walk stops as soon as the cap is reached, discarding the rest of the
// in-progress page and never fetching further pages.
//
// A failed page fetch discards the partial result; the listing is atomic
// from the caller's perspective.
func (s *SpotifyService) LikedTrackURIs(ctx context.Context, tok *Token, pageSize, maxCount int) ([]string, error) {
	if err := s.EnsureFresh(ctx, tok); err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}

	uris := []string{}
	next := fmt.Sprintf("%s/me/tracks?limit=%d", s.baseURL, pageSize)

	for next != "" {
		var page savedTracksPage
		if err := s.doRequest(ctx, tok, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track.URI == "" {
				continue
			}
			uris = append(uris, item.Track.URI)
			if maxCount > 0 && len(uris) >= maxCount {
				return uris, nil
			}
		}

		if page.Next == nil {
			break
		}
		next = *page.Next
	}

	return uris, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, tok *Token, userID, name string, public bool, description string) (*Playlist, error) {
	if err := s.EnsureFresh(ctx, tok); err != nil {
		return nil, err
	}

	if description == "" {
		description = defaultDescription
	}

	payload := map[string]any{
		"name":        name,
		"public":      public,
		"description": description,
	}

	var playlist Playlist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, tok, http.MethodPost, endpoint, payload, &playlist); err != nil {
		return nil, err
	}

	return &playlist, nil
}

// AddTracks appends URIs to a playlist in consecutive batches of at most 100,
// submitted strictly sequentially so playlist order matches input order.
// A failed batch aborts the operation; already-submitted batches are not
// rolled back, so the playlist may be left partially populated.
func (s *SpotifyService) AddTracks(ctx context.Context, tok *Token, playlistID string, uris []string) error {
	if err := s.EnsureFresh(ctx, tok); err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(uris); start += addTracksBatchSize {
		end := min(start+addTracksBatchSize, len(uris))
		payload := map[string]any{"uris": uris[start:end]}
		if err := s.doRequest(ctx, tok, http.MethodPost, endpoint, payload, nil); err != nil {
			return err
		}
	}

	return nil
}

// doRequest performs a bearer-authenticated request against the API.
// endpoint may be a path relative to the API base or an absolute URL
// (pagination next pointers are absolute).
func (s *SpotifyService) doRequest(ctx context.Context, tok *Token, method, endpoint string, body, result any) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: no access token", shared.ErrNotAuthenticated)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
	}

	apiURL := endpoint
	if len(endpoint) > 0 && endpoint[0] == '/' {
		apiURL = s.baseURL + endpoint
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// oauthContext routes the oauth2 transport through the service's HTTP client.
func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// bundleToken converts an [oauth2.Token] into a session bundle, applying the
// issuance margin so the bundle reads as near-expiry ahead of the server's
// declared lifetime. A missing lifetime defaults to an hour.
func bundleToken(ot *oauth2.Token, now time.Time) *Token {
	expiry := ot.Expiry
	if expiry.IsZero() {
		expiry = now.Add(time.Hour)
	}

	return &Token{
		AccessToken:  ot.AccessToken,
		RefreshToken: ot.RefreshToken,
		ExpiresAt:    expiry.Add(-issueMargin).Unix(),
	}
}

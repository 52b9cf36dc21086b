package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
)

// stubService implements services.Service with canned behavior for handler
// tests.
type stubService struct {
	validateErr    error
	exchangeToken  *services.Token
	exchangeErr    error
	exchangeCalls  int
	currentUserErr error
	uris           []string
	likedErr       error
	addedURIs      []string
}

func (s *stubService) Name() string { return "Stub" }

func (s *stubService) AuthURL(state string) string {
	return "https://accounts.example.com/authorize?state=" + url.QueryEscape(state)
}

func (s *stubService) ValidateCallback(query url.Values, wantState string) (string, error) {
	if s.validateErr != nil {
		return "", s.validateErr
	}
	if code := query.Get("code"); code == "" || query.Get("state") != wantState || wantState == "" {
		return "", fmt.Errorf("%w: state mismatch", shared.ErrCallbackInvalid)
	}
	return query.Get("code"), nil
}

func (s *stubService) Exchange(ctx context.Context, code string) (*services.Token, error) {
	s.exchangeCalls++
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	if s.exchangeToken != nil {
		return s.exchangeToken, nil
	}
	return &services.Token{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (s *stubService) EnsureFresh(ctx context.Context, tok *services.Token) error { return nil }

func (s *stubService) CurrentUser(ctx context.Context, tok *services.Token) (*services.User, error) {
	if s.currentUserErr != nil {
		return nil, s.currentUserErr
	}
	return &services.User{ID: "user123"}, nil
}

func (s *stubService) LikedTrackURIs(ctx context.Context, tok *services.Token, pageSize, maxCount int) ([]string, error) {
	if s.likedErr != nil {
		return nil, s.likedErr
	}
	return s.uris, nil
}

func (s *stubService) CreatePlaylist(ctx context.Context, tok *services.Token, userID, name string, public bool, description string) (*services.Playlist, error) {
	return &services.Playlist{ID: "pl42", Name: name, Public: public}, nil
}

func (s *stubService) AddTracks(ctx context.Context, tok *services.Token, playlistID string, uris []string) error {
	s.addedURIs = append(s.addedURIs, uris...)
	return nil
}

// stubRecorder collects recorded transfer results.
type stubRecorder struct {
	recorded []*tasks.TransferResult
	err      error
}

func (r *stubRecorder) Record(ctx context.Context, result *tasks.TransferResult) error {
	r.recorded = append(r.recorded, result)
	return r.err
}

func newTestApp(stub *stubService, recorder tasks.Recorder) (*AppHandler, *SessionCodec) {
	codec := NewSessionCodec("test_secret")
	handler := NewAppHandler(AppConfig{
		Spotify:      stub,
		Engine:       tasks.NewTransferEngine(stub),
		Sessions:     codec,
		Recorder:     recorder,
		Logger:       shared.NewLogger(io.Discard),
		PlaylistName: "Liked Songs",
	})
	return handler, codec
}

func sessionRequest(t *testing.T, codec *SessionCodec, method, target string, body io.Reader, sess *Session) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if sess != nil {
		value, err := codec.Encode(sess)
		if err != nil {
			t.Fatalf("failed to encode session: %v", err)
		}
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: value})
	}
	return req
}

// responseSession decodes the last session cookie the handler set.
func responseSession(t *testing.T, codec *SessionCodec, rec *httptest.ResponseRecorder) *Session {
	t.Helper()
	cookies := rec.Result().Cookies()
	var last *http.Cookie
	for _, c := range cookies {
		if c.Name == SessionCookie {
			last = c
		}
	}
	if last == nil {
		t.Fatal("expected a session cookie on the response")
	}
	sess, err := codec.Decode(last.Value)
	if err != nil {
		t.Fatalf("failed to decode session cookie: %v", err)
	}
	return sess
}

func TestAppHandlerHome(t *testing.T) {
	handler, codec := newTestApp(&stubService{}, nil)

	t.Run("Anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "/login") {
			t.Error("expected the anonymous page to offer login")
		}
	})

	t.Run("Logged In", func(t *testing.T) {
		rec := httptest.NewRecorder()
		sess := &Session{Token: &services.Token{AccessToken: "access"}}
		handler.ServeHTTP(rec, sessionRequest(t, codec, http.MethodGet, "/", nil, sess))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "/create-playlist") {
			t.Error("expected the logged-in page to offer playlist creation")
		}
	})

	t.Run("Unknown Path", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestAppHandlerLogin(t *testing.T) {
	handler, codec := newTestApp(&stubService{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected a redirect, got %d", rec.Code)
	}

	sess := responseSession(t, codec, rec)
	if sess.State == "" {
		t.Fatal("expected a state token stored in the session")
	}

	location := rec.Header().Get("Location")
	if !strings.HasPrefix(location, "https://accounts.example.com/authorize") {
		t.Errorf("expected a redirect to the authorize endpoint, got %s", location)
	}
	if !strings.Contains(location, url.QueryEscape(sess.State)) {
		t.Error("expected the redirect to carry the stored state")
	}
}

func TestAppHandlerCallback(t *testing.T) {
	t.Run("Successful Callback", func(t *testing.T) {
		stub := &stubService{exchangeToken: &services.Token{AccessToken: "new_access", RefreshToken: "new_refresh", ExpiresAt: 42}}
		handler, codec := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		sess := &Session{State: "s1"}
		req := sessionRequest(t, codec, http.MethodGet, "/callback?code=abc&state=s1", nil, sess)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("expected a redirect, got %d: %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Location"); got != "/" {
			t.Errorf("expected redirect to /, got %s", got)
		}

		stored := responseSession(t, codec, rec)
		if stored.Token == nil || stored.Token.AccessToken != "new_access" {
			t.Errorf("expected the exchanged token stored, got %+v", stored.Token)
		}
		if stored.State != "" {
			t.Error("expected the pending state to be cleared")
		}
	})

	t.Run("State Mismatch Skips Exchange", func(t *testing.T) {
		stub := &stubService{}
		handler, codec := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		sess := &Session{State: "s1"}
		req := sessionRequest(t, codec, http.MethodGet, "/callback?code=abc&state=forged", nil, sess)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if stub.exchangeCalls != 0 {
			t.Error("expected no token exchange after a state mismatch")
		}
	})

	t.Run("No Pending Login", func(t *testing.T) {
		stub := &stubService{}
		handler, _ := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=s1", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if stub.exchangeCalls != 0 {
			t.Error("expected no token exchange without a stored state")
		}
	})

	t.Run("Exchange Failure", func(t *testing.T) {
		stub := &stubService{exchangeErr: fmt.Errorf("%w: code exchange rejected", shared.ErrAuthFailed)}
		handler, codec := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		sess := &Session{State: "s1"}
		req := sessionRequest(t, codec, http.MethodGet, "/callback?code=abc&state=s1", nil, sess)
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

func TestAppHandlerLogout(t *testing.T) {
	handler, codec := newTestApp(&stubService{}, nil)

	rec := httptest.NewRecorder()
	sess := &Session{Token: &services.Token{AccessToken: "access"}}
	handler.ServeHTTP(rec, sessionRequest(t, codec, http.MethodGet, "/logout", nil, sess))

	if rec.Code != http.StatusFound {
		t.Fatalf("expected a redirect, got %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Error("expected the session cookie to be expired")
	}
}

func TestAppHandlerCreatePlaylist(t *testing.T) {
	loggedIn := func() *Session {
		return &Session{Token: &services.Token{AccessToken: "access", RefreshToken: "refresh"}}
	}

	t.Run("Successful Transfer", func(t *testing.T) {
		stub := &stubService{uris: []string{"spotify:track:a", "spotify:track:b"}}
		recorder := &stubRecorder{}
		handler, codec := newTestApp(stub, recorder)

		rec := httptest.NewRecorder()
		form := strings.NewReader(url.Values{"name": {"Road Trip"}}.Encode())
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", form, loggedIn())
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "https://open.spotify.com/playlist/pl42") {
			t.Error("expected the result page to link the playlist")
		}
		if len(stub.addedURIs) != 2 {
			t.Errorf("expected both tracks pushed, got %d", len(stub.addedURIs))
		}

		if len(recorder.recorded) != 1 {
			t.Fatalf("expected the transfer to be recorded, got %d", len(recorder.recorded))
		}
		if recorder.recorded[0].PlaylistName != "Road Trip" {
			t.Errorf("expected the chosen name recorded, got %s", recorder.recorded[0].PlaylistName)
		}
	})

	t.Run("Default Playlist Name", func(t *testing.T) {
		stub := &stubService{uris: []string{"spotify:track:a"}}
		recorder := &stubRecorder{}
		handler, codec := newTestApp(stub, recorder)

		rec := httptest.NewRecorder()
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", nil, loggedIn())
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if recorder.recorded[0].PlaylistName != "Liked Songs" {
			t.Errorf("expected the configured default name, got %s", recorder.recorded[0].PlaylistName)
		}
	})

	t.Run("Empty Library", func(t *testing.T) {
		stub := &stubService{}
		recorder := &stubRecorder{}
		handler, codec := newTestApp(stub, recorder)

		rec := httptest.NewRecorder()
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", nil, loggedIn())
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(recorder.recorded) != 0 {
			t.Error("expected empty transfers not to be recorded")
		}
	})

	t.Run("GET Not Allowed", func(t *testing.T) {
		handler, _ := newTestApp(&stubService{}, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/create-playlist", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Anonymous Redirects To Login", func(t *testing.T) {
		handler, _ := newTestApp(&stubService{}, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-playlist", nil))
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Errorf("expected a redirect to /login, got %d %s", rec.Code, rec.Header().Get("Location"))
		}
	})

	t.Run("Auth Failure Clears Session", func(t *testing.T) {
		stub := &stubService{currentUserErr: errors.New("boom")}
		handler, codec := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", nil, loggedIn())
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
			t.Fatalf("expected a redirect to /login, got %d %s", rec.Code, rec.Header().Get("Location"))
		}

		var sessionCookies []*http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == SessionCookie {
				sessionCookies = append(sessionCookies, c)
			}
		}
		if len(sessionCookies) != 1 {
			t.Fatalf("expected a single session cookie, got %d", len(sessionCookies))
		}
		if sessionCookies[0].MaxAge >= 0 {
			t.Error("expected the session cookie to be expired")
		}
	})

	t.Run("Non Auth Failure Keeps Session", func(t *testing.T) {
		stub := &stubService{likedErr: fmt.Errorf("%w: spotify API status 500", shared.ErrAPIRequest)}
		handler, codec := newTestApp(stub, nil)

		rec := httptest.NewRecorder()
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", nil, loggedIn())
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
		stored := responseSession(t, codec, rec)
		if !stored.LoggedIn() {
			t.Error("expected the session to survive a non-auth failure")
		}
	})

	t.Run("Recorder Failure Is Not Fatal", func(t *testing.T) {
		stub := &stubService{uris: []string{"spotify:track:a"}}
		recorder := &stubRecorder{err: errors.New("disk full")}
		handler, codec := newTestApp(stub, recorder)

		rec := httptest.NewRecorder()
		req := sessionRequest(t, codec, http.MethodPost, "/create-playlist", nil, loggedIn())
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 despite the recorder failure, got %d", rec.Code)
		}
	})
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
)

// mockService implements services.Service with canned responses and call
// accounting.
type mockService struct {
	user  *services.User
	uris  []string
	liked error

	ensureFreshCalls int
	currentUserErr   error
	likedCalls       []likedCall
	createdPlaylists []createCall
	addedBatches     []addCall
	createErr        error
	addErr           error
}

type likedCall struct {
	pageSize int
	maxCount int
}

type createCall struct {
	userID      string
	name        string
	public      bool
	description string
}

type addCall struct {
	playlistID string
	uris       []string
}

func (m *mockService) Name() string         { return "Mock" }
func (m *mockService) AuthURL(string) string { return "https://example.com/authorize" }

func (m *mockService) ValidateCallback(url.Values, string) (string, error) {
	return "", nil
}

func (m *mockService) Exchange(context.Context, string) (*services.Token, error) {
	return nil, nil
}

func (m *mockService) EnsureFresh(ctx context.Context, tok *services.Token) error {
	m.ensureFreshCalls++
	return nil
}

func (m *mockService) CurrentUser(ctx context.Context, tok *services.Token) (*services.User, error) {
	if m.currentUserErr != nil {
		return nil, m.currentUserErr
	}
	return m.user, nil
}

func (m *mockService) LikedTrackURIs(ctx context.Context, tok *services.Token, pageSize, maxCount int) ([]string, error) {
	m.likedCalls = append(m.likedCalls, likedCall{pageSize, maxCount})
	if m.liked != nil {
		return nil, m.liked
	}
	return m.uris, nil
}

func (m *mockService) CreatePlaylist(ctx context.Context, tok *services.Token, userID, name string, public bool, description string) (*services.Playlist, error) {
	m.createdPlaylists = append(m.createdPlaylists, createCall{userID, name, public, description})
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &services.Playlist{ID: "pl42", Name: name, Public: public}, nil
}

func (m *mockService) AddTracks(ctx context.Context, tok *services.Token, playlistID string, uris []string) error {
	m.addedBatches = append(m.addedBatches, addCall{playlistID, uris})
	return m.addErr
}

func testToken() *services.Token {
	return &services.Token{AccessToken: "access", RefreshToken: "refresh"}
}

func TestTransferEngineRun(t *testing.T) {
	t.Run("Successful Transfer", func(t *testing.T) {
		uris := make([]string, 120)
		for i := range uris {
			uris[i] = fmt.Sprintf("spotify:track:%03d", i)
		}

		mock := &mockService{
			user: &services.User{ID: "user123", DisplayName: "Tester"},
			uris: uris,
		}
		engine := NewTransferEngine(mock)

		result, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Empty {
			t.Error("expected a non-empty result")
		}
		if result.TrackCount != 120 {
			t.Errorf("expected 120 tracks, got %d", result.TrackCount)
		}
		if result.PlaylistID != "pl42" {
			t.Errorf("expected playlist id 'pl42', got %s", result.PlaylistID)
		}
		if result.PlaylistName != "My Liked Songs" {
			t.Errorf("expected playlist name to round-trip, got %s", result.PlaylistName)
		}
		if result.PlaylistURL != "https://open.spotify.com/playlist/pl42" {
			t.Errorf("unexpected playlist URL %s", result.PlaylistURL)
		}

		if mock.ensureFreshCalls == 0 {
			t.Error("expected the token bundle to be refreshed first")
		}
		if len(mock.likedCalls) != 1 || mock.likedCalls[0].pageSize != 50 || mock.likedCalls[0].maxCount != 0 {
			t.Errorf("expected one uncapped listing with page size 50, got %+v", mock.likedCalls)
		}

		if len(mock.createdPlaylists) != 1 {
			t.Fatalf("expected one playlist creation, got %d", len(mock.createdPlaylists))
		}
		created := mock.createdPlaylists[0]
		if created.userID != "user123" {
			t.Errorf("expected playlist owned by user123, got %s", created.userID)
		}
		if !created.public {
			t.Error("expected a public playlist")
		}

		if len(mock.addedBatches) != 1 {
			t.Fatalf("expected one add call, got %d", len(mock.addedBatches))
		}
		added := mock.addedBatches[0]
		if added.playlistID != "pl42" {
			t.Errorf("expected tracks added to pl42, got %s", added.playlistID)
		}
		if len(added.uris) != 120 {
			t.Fatalf("expected all 120 URIs forwarded, got %d", len(added.uris))
		}
		for i, uri := range added.uris {
			if uri != uris[i] {
				t.Fatalf("order not preserved at index %d: got %s", i, uri)
			}
		}
	})

	t.Run("Empty Library Creates Nothing", func(t *testing.T) {
		mock := &mockService{
			user: &services.User{ID: "user123"},
			uris: nil,
		}
		engine := NewTransferEngine(mock)

		result, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !result.Empty {
			t.Error("expected an empty result")
		}
		if result.TrackCount != 0 {
			t.Errorf("expected zero tracks, got %d", result.TrackCount)
		}
		if len(mock.createdPlaylists) != 0 {
			t.Errorf("expected no playlist creation, got %d", len(mock.createdPlaylists))
		}
		if len(mock.addedBatches) != 0 {
			t.Errorf("expected no add calls, got %d", len(mock.addedBatches))
		}
	})

	t.Run("Identity Failure Reads As Auth Failure", func(t *testing.T) {
		mock := &mockService{
			currentUserErr: errors.New("boom"),
		}
		engine := NewTransferEngine(mock)

		_, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
		if len(mock.likedCalls) != 0 {
			t.Error("expected no listing after identity failure")
		}
	})

	t.Run("Listing Failure Aborts Before Creation", func(t *testing.T) {
		mock := &mockService{
			user:  &services.User{ID: "user123"},
			liked: fmt.Errorf("%w: spotify API status 500", shared.ErrAPIRequest),
		}
		engine := NewTransferEngine(mock)

		_, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if len(mock.createdPlaylists) != 0 {
			t.Error("expected no playlist creation after listing failure")
		}
	})

	t.Run("Add Failure Surfaces Without Rollback", func(t *testing.T) {
		mock := &mockService{
			user:   &services.User{ID: "user123"},
			uris:   []string{"spotify:track:a"},
			addErr: fmt.Errorf("%w: spotify API status 500", shared.ErrAPIRequest),
		}
		engine := NewTransferEngine(mock)

		_, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if len(mock.createdPlaylists) != 1 {
			t.Error("expected the created playlist to remain")
		}
	})

	t.Run("Missing Playlist Name", func(t *testing.T) {
		engine := NewTransferEngine(&mockService{})
		_, err := engine.Run(context.Background(), testToken(), "", nil)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Missing Service", func(t *testing.T) {
		engine := NewTransferEngine(nil)
		_, err := engine.Run(context.Background(), testToken(), "My Liked Songs", nil)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestProgressReporting(t *testing.T) {
	t.Run("Updates Arrive In Phase Order", func(t *testing.T) {
		mock := &mockService{
			user: &services.User{ID: "user123"},
			uris: []string{"spotify:track:a", "spotify:track:b"},
		}
		engine := NewTransferEngine(mock)

		progress := make(chan ProgressUpdate, 16)
		_, err := engine.Run(context.Background(), testToken(), "My Liked Songs", progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var phases []Phase
		for update := range progress {
			phases = append(phases, update.Phase)
		}

		want := []Phase{RefreshToken, FetchProfile, FetchLiked, FetchLiked, CreatePlaylist, AddTracks}
		if len(phases) != len(want) {
			t.Fatalf("expected %d updates, got %d: %v", len(want), len(phases), phases)
		}
		for i, phase := range phases {
			if phase != want[i] {
				t.Errorf("update %d: expected phase %s, got %s", i, want[i], phase)
			}
		}
	})

	t.Run("Full Channel Does Not Block", func(t *testing.T) {
		mock := &mockService{
			user: &services.User{ID: "user123"},
			uris: []string{"spotify:track:a"},
		}
		engine := NewTransferEngine(mock)

		// Unbuffered with no reader: every send must fall through.
		progress := make(chan ProgressUpdate)

		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := engine.Run(context.Background(), testToken(), "My Liked Songs", progress); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}()

		<-done
	})
}

// package tasks implements the liked-songs transfer operation.
//
// The core abstraction is [TransferEngine], which sequences token refresh,
// identity lookup, the saved-tracks fetch, and playlist publishing.
// The operation emits progress updates via channels for non-blocking status
// reporting to CLI/web layers.
package tasks

import (
	"context"
	"fmt"

	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
)

// likedPageSize is the fixed page size for the saved-tracks walk.
const likedPageSize = 50

// TransferResult summarizes a completed transfer: either the created playlist
// reference and track count, or Empty when the liked-songs collection had
// nothing to copy (no playlist is created in that case by policy).
type TransferResult struct {
	Empty        bool   `json:"empty,omitempty"`
	PlaylistID   string `json:"playlist_id,omitempty"`
	PlaylistName string `json:"playlist_name,omitempty"`
	PlaylistURL  string `json:"playlist_url,omitempty"`
	TrackCount   int    `json:"track_count"`
}

// Recorder persists a summary of a completed transfer.
type Recorder interface {
	Record(ctx context.Context, result *TransferResult) error
}

// TransferEngine orchestrates the liked-songs transfer against a [services.Service].
type TransferEngine struct {
	spotify services.Service
}

// NewTransferEngine creates a new TransferEngine with the provided service.
func NewTransferEngine(spotify services.Service) *TransferEngine {
	return &TransferEngine{spotify: spotify}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never blocks execution.
func (e *TransferEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run copies the user's liked songs into a newly created public playlist.
//
// The sequence is strictly ordered and fail-fast: refresh the token bundle,
// look up the user's identity, fetch the full liked-songs list, then create
// the playlist and push tracks in order. Every external call completes before
// the next is issued; the first failure aborts the operation.
//
// The token bundle is refreshed in place, so the caller observes the freshest
// credentials immediately after Run returns and is responsible for persisting
// them.
func (e *TransferEngine) Run(ctx context.Context, tok *services.Token, playlistName string, progress chan<- ProgressUpdate) (*TransferResult, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if playlistName == "" {
		return nil, fmt.Errorf("%w: playlist name must not be empty", shared.ErrInvalidArgument)
	}

	e.sendProgress(progress, refreshTokenUpdate())
	if err := e.spotify.EnsureFresh(ctx, tok); err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchProfileUpdate())
	user, err := e.spotify.CurrentUser(ctx, tok)
	if err != nil {
		// An identity failure means the token is unusable even after refresh.
		return nil, fmt.Errorf("%w: identity lookup failed: %v", shared.ErrAuthFailed, err)
	}

	e.sendProgress(progress, fetchLikedUpdate())
	uris, err := e.spotify.LikedTrackURIs(ctx, tok, likedPageSize, 0)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, likedFetchedUpdate(len(uris)))

	if len(uris) == 0 {
		return &TransferResult{Empty: true}, nil
	}

	e.sendProgress(progress, createPlaylistUpdate(playlistName))
	playlist, err := e.spotify.CreatePlaylist(ctx, tok, user.ID, playlistName, true, "")
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, addTracksUpdate(len(uris)))
	if err := e.spotify.AddTracks(ctx, tok, playlist.ID, uris); err != nil {
		return nil, err
	}

	return &TransferResult{
		PlaylistID:   playlist.ID,
		PlaylistName: playlistName,
		PlaylistURL:  playlist.URL(),
		TrackCount:   len(uris),
	}, nil
}

// package repositories provides the persistence layer for transfer history.
//
// The [TransferRepository] records one row per completed liked-songs transfer
// and implements [tasks.Recorder] so the engine's callers can persist results
// without knowing about SQL.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
)

// TransferRecord is one persisted transfer summary.
type TransferRecord struct {
	ID           string
	PlaylistID   string
	PlaylistName string
	TrackCount   int
	CreatedAt    time.Time
}

// TransferRepository handles CRUD for transfer history rows.
type TransferRepository struct {
	db *sql.DB
}

// NewTransferRepository creates a new TransferRepository with the given database connection
func NewTransferRepository(db *sql.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

// Record persists a completed transfer. Empty results are not recorded: no
// playlist was created, so there is nothing to point back at.
func (r *TransferRepository) Record(ctx context.Context, result *tasks.TransferResult) error {
	if result == nil || result.Empty {
		return nil
	}

	query := `
		INSERT INTO transfers (id, playlist_id, playlist_name, track_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(),
		result.PlaylistID,
		result.PlaylistName,
		result.TrackCount,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transfer record: %w", err)
	}

	return nil
}

// List returns transfer records newest-first, capped at limit (0 for all).
func (r *TransferRepository) List(ctx context.Context, limit int) ([]TransferRecord, error) {
	query := `
		SELECT id, playlist_id, playlist_name, track_count, created_at
		FROM transfers
		ORDER BY created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var records []TransferRecord
	for rows.Next() {
		var rec TransferRecord
		if err := rows.Scan(&rec.ID, &rec.PlaylistID, &rec.PlaylistName, &rec.TrackCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transfers: %w", err)
	}

	return records, nil
}

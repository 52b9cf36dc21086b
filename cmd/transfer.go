package main

import (
	"context"
	"fmt"

	"github.com/avelinebess/likify/internal/repositories"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
	"github.com/avelinebess/likify/internal/ui"
	"github.com/urfave/cli/v3"
)

// TransferRun copies the authorized user's liked songs into a new playlist.
func (r *Runner) TransferRun(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	config := r.loadConfig(configPath)

	name := cmd.String("name")
	if name == "" {
		name = config.Transfer.PlaylistName
	}
	if name == "" {
		name = "Liked Songs"
	}

	tok := sessionToken(config)
	if tok == nil {
		return fmt.Errorf("%w: no stored tokens, run: likify auth", shared.ErrNotAuthenticated)
	}

	if r.engine == nil || r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Info("starting transfer", "playlist", name)
	r.writePlain("%s\n", ui.Title("Liked Songs → "+name))

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("  %s\n", update.Message)
		}
	}()

	result, err := r.engine.Run(ctx, tok, name, progressCh)
	close(progressCh)
	<-done

	// The engine refreshes tokens in place; persist the freshest bundle even
	// when the transfer itself failed.
	storeToken(config, tok)
	if configPath != "" {
		if serr := shared.SaveConfig(configPath, config); serr != nil {
			r.logger.Warn("failed to save refreshed tokens", "error", serr)
		}
	}

	if err != nil {
		return err
	}

	if result.Empty {
		r.writePlainln("%s No liked songs found; no playlist created.", ui.Warn("⚠"))
		return nil
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainln("%s Transfer complete!", ui.OK("✓"))
	r.writePlain("  Playlist: %s\n", result.PlaylistName)
	r.writePlain("  Tracks:   %d\n", result.TrackCount)
	r.writePlain("  URL:      %s\n", result.PlaylistURL)

	r.recordTransfer(ctx, config, result)

	return nil
}

// recordTransfer appends the result to the transfer history table. History is
// best-effort: failures are logged, never surfaced.
func (r *Runner) recordTransfer(ctx context.Context, config *shared.Config, result *tasks.TransferResult) {
	db, err := r.openDatabase(config)
	if err != nil {
		r.logger.Warn("history unavailable", "error", err)
		return
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		r.logger.Warn("history unavailable", "error", err)
		return
	}

	repo := repositories.NewTransferRepository(db)
	if err := repo.Record(ctx, result); err != nil {
		r.logger.Warn("failed to record transfer", "error", err)
	}
}

// History lists past transfers, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	repo := repositories.NewTransferRepository(db)
	records, err := repo.List(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	if len(records) == 0 {
		r.writePlain("No transfers recorded yet.\n")
		return nil
	}

	r.writePlain("%s\n", ui.Title("Transfer history"))
	for i, rec := range records {
		r.writePlain("%d. %s (%d tracks)\n", i+1, rec.PlaylistName, rec.TrackCount)
		r.writePlain("   %s\n", ui.Help(rec.CreatedAt.Format("2006-01-02 15:04")))
		r.writePlain("   https://open.spotify.com/playlist/%s\n", rec.PlaylistID)
	}

	return nil
}

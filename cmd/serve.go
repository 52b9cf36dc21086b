package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avelinebess/likify/internal/repositories"
	"github.com/avelinebess/likify/internal/server"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Serve runs the browser-facing web application.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if config.Server.SessionSecret == "" {
		return fmt.Errorf("%w: server.session_secret (or SESSION_SECRET) must be set", shared.ErrInvalidConfig)
	}

	var recorder tasks.Recorder
	if db, err := r.openDatabase(config); err == nil {
		defer db.Close()
		if err := shared.RunMigrations(db); err == nil {
			recorder = repositories.NewTransferRepository(db)
		} else {
			r.logger.Warn("transfer history disabled", "error", err)
		}
	} else {
		r.logger.Warn("transfer history disabled", "error", err)
	}

	app := server.NewAppHandler(server.AppConfig{
		Spotify:      r.spotify,
		Engine:       r.engine,
		Sessions:     server.NewSessionCodec(config.Server.SessionSecret),
		Recorder:     recorder,
		Logger:       r.logger,
		PlaylistName: config.Transfer.PlaylistName,
	})

	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(app)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("serving at http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return httpServer.Shutdown(context.Background())
	}
}

package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
	"github.com/charmbracelet/log"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config  *shared.Config
	spotify services.Service
	logger  *log.Logger
	output  io.Writer
	engine  *tasks.TransferEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config  *shared.Config
	Spotify services.Service
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:  opts.Config,
		spotify: opts.Spotify,
		logger:  opts.Logger,
		output:  opts.Output,
		engine:  tasks.NewTransferEngine(opts.Spotify),
	}
}

// loadConfig resolves the effective configuration for a command: an explicit
// config file when present, the Runner's config otherwise.
func (r *Runner) loadConfig(path string) *shared.Config {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err := shared.LoadConfig(path); err == nil {
				return config
			} else {
				r.logger.Warnf("failed to load config, using defaults %v", err)
			}
		}
	}
	if r.config != nil {
		return r.config
	}
	return shared.DefaultConfig()
}

// openDatabase opens (and pools) the configured SQLite database.
func (r *Runner) openDatabase(config *shared.Config) (*sql.DB, error) {
	path := config.Database.Path
	if path == "" {
		path = "likify.db"
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}

	if config.Database.MaxOpenConns > 0 {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
	}

	return db, nil
}

// sessionToken builds the token bundle stored in the config file.
func sessionToken(config *shared.Config) *services.Token {
	sp := config.Credentials.Spotify
	if sp.AccessToken == "" {
		return nil
	}
	return &services.Token{
		AccessToken:  sp.AccessToken,
		RefreshToken: sp.RefreshToken,
		ExpiresAt:    sp.ExpiresAt,
	}
}

// storeToken writes a token bundle back into the config value.
func storeToken(config *shared.Config, tok *services.Token) {
	config.Credentials.Spotify.AccessToken = tok.AccessToken
	config.Credentials.Spotify.RefreshToken = tok.RefreshToken
	config.Credentials.Spotify.ExpiresAt = tok.ExpiresAt
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

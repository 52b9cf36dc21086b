package main

import (
	"context"

	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes an example config.toml for editing.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("%s Config written to %s\n", ui.OK("✓"), path)
	r.writePlain("Fill in your Spotify client credentials, then run: likify auth\n")
	return nil
}

// SetupDatabase initializes the history database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return err
	}

	r.logger.Info("database ready", "path", config.Database.Path)
	r.writePlain("%s Database initialized\n", ui.OK("✓"))
	return nil
}

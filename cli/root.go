// Package cli implements the plane command line.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/config"
	"github.com/asaidimu/go-plane/core/persistence"
	"github.com/asaidimu/go-plane/sqlite"
)

// app holds what the persistent pre-run resolved for a command.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

// NewRootCommand builds the plane command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "plane",
		Short:         "Plane - issue tracking API",
		Long:          "Plane serves workspace and project issue lists, saved views and account settings over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("database") {
				db, _ := cmd.Flags().GetString("database")
				cfg.Database.Path = db
			}
			logger, err := cfg.Logger()
			if err != nil {
				return fmt.Errorf("failed to build logger: %w", err)
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "Path to config file")
	root.PersistentFlags().String("database", "", "Path to the SQLite database (overrides database.path)")

	root.AddCommand(
		newServeCommand(a),
		newMigrateCommand(a),
		newSeedCommand(a),
	)
	return root
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

// open opens the configured database and migrates it, returning the schema
// versions this run applied.
func (a *app) open(ctx context.Context) (*persistence.Persistence, *sql.DB, []persistence.SchemaRecord, error) {
	db, err := sqlite.Open(a.cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := persistence.NewPersistence(sqlite.NewSQLiteInteractor(db, a.logger, nil, nil), a.logger)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	applied, err := p.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return p, db, applied, nil
}

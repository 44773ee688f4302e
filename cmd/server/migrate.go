package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aiadmin/ai-admin/internal/platform/logger"
	"github.com/aiadmin/ai-admin/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [" + strings.Join(postgres.MigrationCommands, "|") + "]",
		Short:     "Run the task archive schema migrations",
		Long:      "Applies the embedded migrations to database.url. The command defaults to up.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("database.url is not configured")
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			db, err := postgres.Open(ctx, cfg.Database.URL, log)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(ctx, db, command, log)
		},
	}
}

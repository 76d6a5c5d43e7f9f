package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mind-engage/examportal/internal/config"
	"github.com/mind-engage/examportal/internal/db"
	"github.com/mind-engage/examportal/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Operator commands for the exam portal database",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg = config.FromEnv()
			logger.Init(cfg.LogLevel, true)
		},
	}
	env := func() config.Config { return cfg }
	root.AddCommand(
		newCreateAdminCmd(env),
		newImportQuestionsCmd(env),
		newFinalizeExpiredCmd(env),
	)
	return root
}

// openDB opens the configured database with a bounded connect timeout.
func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("driver", cfg.DBDriver).Msg("database open")
	return dbh, nil
}

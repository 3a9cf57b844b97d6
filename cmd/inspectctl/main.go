// Command inspectctl is the operator tool of the inspection service: it
// seeds the photo catalog and inspects or renders reports without going
// through the HTTP API.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/smbt-dev/inspectgo/internal/config"
	"github.com/smbt-dev/inspectgo/internal/database"
	"github.com/smbt-dev/inspectgo/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is what every subcommand works against
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *database.DB
}

// openDB is replaced in tests
var openDB = func(cfg *config.Config, log *zap.Logger) (*database.DB, error) {
	return database.Connect(cfg.Database, log)
}

// close releases what PersistentPreRunE opened. It runs even when a
// subcommand fails, so an embedded database is always stopped.
func (e *env) close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("database close error", zap.Error(err))
		}
		e.db = nil
	}
	if e.log != nil {
		_ = e.log.Sync()
	}
}

func newRootCmd() (*cobra.Command, func()) {
	var (
		verbose bool
		e       env
	)

	root := &cobra.Command{
		Use:           "inspectctl",
		Short:         "Operate the property inspection service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadTooling()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			log, err := logging.New(level)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			db, err := openDB(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			e = env{cfg: cfg, log: log, db: db}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSeedCmd(&e),
		newAggregateCmd(&e),
		newRenderCmd(&e),
	)
	return root, e.close
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func main() {
	root, cleanup := newRootCmd()
	err := root.Execute()
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Command posctl runs maintenance tasks against the shop database: migrations, totals
// recomputation, demo data and admin bootstrap.
package main

import (
	"fmt"
	"os"

	"repairshop-backend/config"
	"repairshop-backend/database"
	"repairshop-backend/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// env is filled by the root command before any subcommand runs.
var env struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
}

var rootCmd = &cobra.Command{
	Use:           "posctl",
	Short:         "Maintenance CLI for the repair shop backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		env.cfg = cfg
		env.log = logger.New(logger.Config{Level: cfg.Log.Level, Format: "console", Output: "stderr"})
		db, err := database.Connect(cfg.Database, env.log)
		if err != nil {
			return err
		}
		env.db = db
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env.log != nil {
			_ = env.log.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, recomputeCmd, seedCmd, createAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

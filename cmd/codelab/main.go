// Command codelab keeps a learner's local exercise files in sync with the
// remote answer store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/codelabhq/codelab/internal/answers"
	"github.com/codelabhq/codelab/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "codelab",
	Short: "Exercise synchronization for codelab courses",
	Long: `codelab materializes a lesson's exercises as local files, watches your
edits, and pushes answers to the course's answer store.

Configuration is read from codelab.yaml (working directory or
~/.config/codelab), CODELAB_* environment variables, and an optional .env
file. At minimum a user_id and a store backend must be configured.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: codelab.yaml)")
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

// loadConfig reads and validates configuration for commands that need the
// full stack.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects to the configured answer store backend.
func openStore(cfg *config.Config) (answers.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return answers.OpenPostgres(cfg.PostgresDSN)
	default:
		return answers.OpenSQLite(cfg.SQLitePath)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

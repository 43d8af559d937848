package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/retail-pos/internal/adapter/storage"
	"github.com/rl1809/retail-pos/internal/config"
)

var (
	// Global flags
	envFile string
	driver  string
	dsn     string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "posctl",
	Short: "Administration tool for the retail POS service",
	Long: `posctl prepares and inspects the database behind the retail POS service.

Connection settings come from the same environment variables as the server
(DB_DRIVER, DATABASE_DSN) and can be overridden with flags.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional env file to load")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Database driver: mysql or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database DSN (overrides DATABASE_DSN)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(migrateCmd, seedCmd, lowStockCmd)
}

// openAdapter connects using the env configuration plus flag overrides.
func openAdapter(ctx context.Context) (*storage.SQLAdapter, func(), error) {
	if driver != "" {
		os.Setenv("DB_DRIVER", driver)
	}
	if dsn != "" {
		os.Setenv("DATABASE_DSN", dsn)
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(ctx, cfg.DBDriver, cfg.DatabaseDSN, storage.PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2})
	if err != nil {
		return nil, nil, err
	}
	if verbose {
		fmt.Printf("connected to %s\n", cfg.DBDriver)
	}
	return storage.NewSQLAdapter(db, cfg.DBDriver, ""), func() { db.Close() }, nil
}

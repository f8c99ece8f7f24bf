package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	migrateOnly bool
	seedOnly    bool
)

var rootCmd = &cobra.Command{
	Use:   "nexusbilling",
	Short: "Invoicing web application",
	Long:  "Serves the catalog, invoice and dashboard pages. Without a subcommand the HTTP server is started.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case migrateOnly:
			return runMigrate(cmd.Context())
		case seedOnly:
			return runSeed(cmd.Context())
		}
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Prepare the database and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the starter catalog when it is empty and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeed(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVar(&migrateOnly, "migrate-only", false, "Run DB migrations and exit")
	rootCmd.Flags().BoolVar(&seedOnly, "seed-only", false, "Run DB seed and exit")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

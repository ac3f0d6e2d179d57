package main

import (
	"fmt"
	"os"

	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/pkg/logging"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "payment-webhooks",
		Short:   "Payme and Click callback reconciliation service",
		Version: Version,
		// serve is the default command
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statementCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, logging and the database shared by every command
func bootstrap() error {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	// Initialize logging
	logging.InitLogging(config.AppConfig.LogLevel, config.AppConfig.LogFormat)

	// Initialize database
	if err := database.InitDatabase(); err != nil {
		return err
	}
	return nil
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootstrap(); err != nil {
			return err
		}
		defer database.CloseDatabase()

		logging.Infof("Database schema is up to date")
		return nil
	},
}

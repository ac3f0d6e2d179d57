package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/internal/models"

	"github.com/spf13/cobra"
)

var (
	statementProvider string
	statementFrom     int64
	statementTo       int64
)

var statementCmd = &cobra.Command{
	Use:   "statement",
	Short: "Print transactions created in a time range as JSON",
	Long: `Print the statement of transactions created between --from and --to.

Times are unix milliseconds, both bounds inclusive. --to defaults to now.

Examples:
  payment-webhooks statement --from 1700000000000
  payment-webhooks statement --provider click --from 1700000000000 --to 1700086400000`,
	RunE: runStatement,
}

func init() {
	statementCmd.Flags().StringVar(&statementProvider, "provider", string(models.ProviderPayme), "provider (payme, click)")
	statementCmd.Flags().Int64Var(&statementFrom, "from", 0, "range start, unix ms")
	statementCmd.Flags().Int64Var(&statementTo, "to", 0, "range end, unix ms (default now)")
}

func runStatement(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer database.CloseDatabase()

	to := time.Now().UTC()
	if statementTo > 0 {
		to = time.UnixMilli(statementTo).UTC()
	}
	from := time.UnixMilli(statementFrom).UTC()
	if from.After(to) {
		return fmt.Errorf("--from is after --to")
	}

	store := database.NewTransactionStore(database.GetDB())
	transactions, err := store.List(cmd.Context(), database.TransactionFilter{
		Provider: models.Provider(statementProvider),
		From:     from,
		To:       to,
	})
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	entries := make([]models.StatementEntry, 0, len(transactions))
	for i := range transactions {
		entries = append(entries, models.NewStatementEntry(&transactions[i], config.AppConfig.Payme.AccountField))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(models.StatementResult{Transactions: entries})
}

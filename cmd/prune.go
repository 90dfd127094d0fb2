package cmd

import (
	"context"
	"fmt"
	"time"

	"carte-manager/core/config"
	"carte-manager/core/database"
	"carte-manager/core/logger"
	"carte-manager/core/schema"
	"carte-manager/core/storage"
	"carte-manager/feature/cartes"
	"carte-manager/feature/journal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pruneDays int

// pruneCmd archives and deletes expired journal entries.
var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Archive old journal entries to object storage and delete them",
	Long: `Prune uploads every journal entry older than the retention window to the
configured archive bucket as a JSON document, then deletes those entries.
The upload happens before the delete: a failed archive leaves the journal
untouched. Requires storage to be configured.`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().IntVar(&pruneDays, "days", 365, "Retention window in days")
	RootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if !cfg.Storage.Enabled() {
		return fmt.Errorf("prune requires archive storage to be configured")
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := storage.NewClient(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	registry := schema.NewRegistry()
	registry.Register(cartes.Schema())
	svc := journal.NewService(db, l, registry, nil, store, cfg.Storage.Bucket)

	cutoff := time.Now().AddDate(0, 0, -pruneDays)
	pruned, err := svc.Prune(context.Background(), cutoff)
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	l.Info("Journal pruned",
		zap.Time("cutoff", cutoff),
		zap.Int("archived", pruned))
	return nil
}

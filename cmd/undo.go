package cmd

import (
	"fmt"
	"strconv"

	"carte-manager/core/config"
	"carte-manager/core/database"
	"carte-manager/core/events"
	"carte-manager/core/logger"
	"carte-manager/core/schema"
	"carte-manager/feature/cartes"
	"carte-manager/feature/journal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var undoActeur string

// undoCmd compensates one journal entry.
var undoCmd = &cobra.Command{
	Use:   "undo <journal-id>",
	Short: "Undo one journaled action by its compensating write",
	Long: `Undo loads a journal entry, applies the inverse of the recorded action
(delete for INSERT, column restore for UPDATE, re-insert for DELETE) and
marks the entry annulee. An entry can only be undone once.`,
	Args: cobra.ExactArgs(1),
	RunE: runUndo,
}

// undoImportCmd annuls a whole import batch.
var undoImportCmd = &cobra.Command{
	Use:   "annuler-import <batch-id>",
	Short: "Delete every carte inserted by one import batch",
	Args:  cobra.ExactArgs(1),
	RunE:  runUndoImport,
}

func init() {
	undoCmd.Flags().StringVar(&undoActeur, "acteur", "admin", "Actor recorded on the annulment entry")
	undoImportCmd.Flags().StringVar(&undoActeur, "acteur", "admin", "Actor recorded on the annulment entry")
	RootCmd.AddCommand(undoCmd)
	RootCmd.AddCommand(undoImportCmd)
}

func newJournalService(cfg *config.Config, l *zap.Logger) (*journal.Service, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	registry := schema.NewRegistry()
	registry.Register(cartes.Schema())

	return journal.NewService(db, l, registry, events.NewProducer(cfg.Events), nil, ""), nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid journal id %q", args[0])
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	svc, err := newJournalService(cfg, l)
	if err != nil {
		return err
	}

	if err := svc.Undo(uint(id), undoActeur); err != nil {
		return fmt.Errorf("undo failed: %w", err)
	}

	l.Info("Journal entry undone", zap.Uint64("journal_id", id))
	return nil
}

func runUndoImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	svc, err := newJournalService(cfg, l)
	if err != nil {
		return err
	}

	deleted, err := svc.AnnulerImport(args[0], undoActeur)
	if err != nil {
		return fmt.Errorf("import annulment failed: %w", err)
	}

	l.Info("Import batch annulled",
		zap.String("batch_id", args[0]),
		zap.Int64("deleted", deleted))
	return nil
}

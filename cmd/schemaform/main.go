// Command schemaform inspects extraction schemas and reviews extracted
// documents stored in a local SQLite database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reoring/schemaform/config"
)

var (
	// Global flags
	cfgPath string
	dbPath  string
	verbose bool

	// Set up in PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "schemaform",
	Short: "Schema-driven review of extracted documents",
	Long: `schemaform derives editable fields from JSON Schema documents, edits
extracted data by field path and runs the save and verification protocol
against a local document store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c

		zc := zap.NewProductionConfig()
		level, _ := cfg.LogLevel()
		if verbose {
			level = zapcore.DebugLevel
		}
		zc.Level = zap.NewAtomicLevelAt(level)
		l, err := zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "schemaform.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "document database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		fieldsCmd,
		hintsCmd,
		columnsCmd,
		importSchemaCmd,
		getCmd,
		setCmd,
		importDocCmd,
		editCmd,
		verifyCmd,
		validateCmd,
		reextractCmd,
		jobsCmd,
		hintCmd,
		watchCmd,
		notifyCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}

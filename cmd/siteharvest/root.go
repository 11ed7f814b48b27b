package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	shlog "github.com/nao1215/siteharvest/internal/log"
)

// NewRootCmd creates the root command for siteharvest.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "siteharvest",
		Short: "Turn HAR captures into an offline website snapshot",
		Long: `siteharvest decodes browser HAR captures, recovers every recorded
response body, crawls the captured hosts breadth-first within a page budget
and writes routes, page text and manifests to an output directory.

Runs are recorded in a local database so route inventories can be compared
over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewAssetsCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// newLogger builds the redacting stderr logger selected by the global
// flags and installs it as the slog default.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	jsonLogs, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		jsonLogs, _ = cmd.Root().PersistentFlags().GetBool("log-json")
	}

	logger := shlog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	if jsonLogs {
		logger = shlog.NewSecureJSONLogger(cmd.ErrOrStderr(), verbose)
	}
	slog.SetDefault(logger)
	return logger
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

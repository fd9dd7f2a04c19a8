// Package cli provides the command-line interface for slalog.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/slalog/internal/cli/commands"
	"github.com/ccollicutt/slalog/internal/telemetry"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := telemetry.Setup(ctx, "slalog", commands.Version)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slalog",
		Short: "Measure incident management time against SLA targets",
		Long: `slalog is a batch SLA compliance evaluator for incident activity logs.

For every incident it reads the activity log, accumulates the business time
during which the incident waited on a resolver, and compares it to the target
for the incident's severity and application criticality.

Business time follows a weekly calendar with holidays. Incidents of the
always-on severity are measured around the clock.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewEvaluateCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewLogsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}

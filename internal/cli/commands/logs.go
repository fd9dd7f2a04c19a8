package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/slalog/internal/logview"
	"github.com/ccollicutt/slalog/pkg/config"
)

// LogsOptions holds options for the logs command.
type LogsOptions struct {
	Lines  int
	Follow bool
	File   string
}

// NewLogsCommand creates the logs command.
func NewLogsCommand() *cobra.Command {
	opts := &LogsOptions{}

	cmd := &cobra.Command{
		Use:   "logs <config-file>",
		Short: "Show the application log",
		Long: `Show the last lines of the application log configured in logging.file.

With --follow, lines appended to the log are streamed until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Lines, "lines", "n", logview.DefaultLines, "Number of lines to show")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Stream appended lines")
	cmd.Flags().StringVar(&opts.File, "file", "", "Log file to read (overrides logging.file)")

	return cmd
}

func runLogs(cmd *cobra.Command, args []string, opts *LogsOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	path := opts.File
	if path == "" {
		cfg, err := config.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.Logging.File
	}
	if path == "" {
		return errors.New("no log file: set logging.file or pass --file")
	}

	lines, err := logview.Tail(path, opts.Lines)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}

	if !opts.Follow {
		return nil
	}
	return logview.Follow(ctx, path, w)
}

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/slalog/internal/logging"
	"github.com/ccollicutt/slalog/internal/metrics"
	"github.com/ccollicutt/slalog/internal/store"
	"github.com/ccollicutt/slalog/pkg/analyzer"
	"github.com/ccollicutt/slalog/pkg/config"
	"github.com/ccollicutt/slalog/pkg/filter"
	"github.com/ccollicutt/slalog/pkg/output"
	"github.com/ccollicutt/slalog/pkg/sla"
	"github.com/ccollicutt/slalog/pkg/webhook"
)

// EvaluateOptions holds command-line options for the evaluate command.
type EvaluateOptions struct {
	SourceOptions

	Refs     []string
	RefsFile string
	Match    string
	From     string
	To       string
	Filter   string
	Workers  int
	Save     bool

	Output      string
	Out         string
	BOM         bool
	Verbose     bool
	Quiet       bool
	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewEvaluateCommand creates the evaluate command.
func NewEvaluateCommand() *cobra.Command {
	opts := &EvaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate <config-file>",
		Short: "Evaluate incidents against their SLA",
		Long: `Evaluate incidents against the SLA rules defined in the configuration file.

Incidents are read from YAML or JSON files (--incidents) or from the
configured database. For each incident the business time spent waiting on a
resolver is computed from its activity log and compared to the target for
its severity and application criticality.

Exit codes:
  0 - All measured incidents are compliant
  1 - At least one incident is non-compliant
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd, args, opts)
		},
	}

	// Source flags
	cmd.Flags().StringSliceVar(&opts.Incidents, "incidents", nil, "Incident files or glob patterns (can be repeated)")
	cmd.Flags().StringVar(&opts.DSN, "db", "", "Database DSN (overrides storage.dsn)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Database driver (sqlite|pgx)")

	// Selection flags
	cmd.Flags().StringArrayVar(&opts.Refs, "ref", nil, "Evaluate this incident only (can be repeated)")
	cmd.Flags().StringVar(&opts.RefsFile, "refs-file", "", "File with one incident ref per line")
	cmd.Flags().StringVar(&opts.Match, "match", "", "Only incidents whose ref contains this text")
	cmd.Flags().StringVar(&opts.From, "from", "", "Resolved on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Resolved on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", `Filter expression, e.g. 'severity_norm == "alta"'`)
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "Concurrent evaluations (default from config, 0 = one per CPU)")
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Write management time and verdict back to the database")

	// Output flags
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|csv)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write the report to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.BOM, "bom", false, "Prefix CSV output with a UTF-8 byte order mark")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show segment counts and diagnostics")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file (overrides metrics.textfile)")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_noncompliant", "When to fire webhook (on_noncompliant|always|never)")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string, opts *EvaluateOptions) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Fail on bad flags before touching any source
	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}
	if opts.Save && len(opts.Incidents) > 0 {
		return fmt.Errorf("--save needs a database source, not --incidents")
	}

	cfg, closeLog, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeLog()

	refs := opts.Refs
	if opts.RefsFile != "" {
		fileRefs, err := readRefsFile(opts.RefsFile)
		if err != nil {
			return err
		}
		refs = append(append([]string{}, refs...), fileRefs...)
	}

	start, end, ranged, err := parseDateRange(opts.From, opts.To, cfg.Location())
	if err != nil {
		return err
	}

	var analyzerOpts []analyzer.AnalyzerOption
	query := store.IncidentQuery{Refs: refs}

	if ranged {
		analyzerOpts = append(analyzerOpts, analyzer.WithTimeRange(start, end))
		query.ResolvedFrom, query.ResolvedTo = start, end
	}
	if len(refs) > 0 {
		analyzerOpts = append(analyzerOpts, analyzer.WithRefs(refs))
	}
	if opts.Match != "" {
		analyzerOpts = append(analyzerOpts, analyzer.WithRefMatch(opts.Match))
	}
	if opts.Filter != "" {
		f, err := filter.New(opts.Filter)
		if err != nil {
			return fmt.Errorf("invalid --filter: %w", err)
		}
		analyzerOpts = append(analyzerOpts, analyzer.WithFilter(f))
	}

	workers := cfg.Evaluation.Workers
	if opts.Workers > 0 {
		workers = opts.Workers
	}
	analyzerOpts = append(analyzerOpts, analyzer.WithWorkers(workers))

	src, err := openSource(ctx, cfg, opts.SourceOptions, query)
	if err != nil {
		return err
	}
	defer src.Close()

	if opts.Save {
		analyzerOpts = append(analyzerOpts, analyzer.WithSaver(src.store))
	}

	m := metrics.New()
	observer := sla.MultiObserver{logging.NewObserver(nil), m}

	eval, err := cfg.NewEvaluator(src.catalog, sla.WithObserver(observer))
	if err != nil {
		return fmt.Errorf("building evaluator: %w", err)
	}

	analyzerOpts = append(analyzerOpts,
		analyzer.WithCatalog(src.catalog),
		analyzer.WithObserver(observer),
	)

	a, err := analyzer.NewAnalyzer(eval, analyzerOpts...)
	if err != nil {
		return fmt.Errorf("creating analyzer: %w", err)
	}

	result, analyzeErr := a.Analyze(ctx, src)
	if analyzeErr != nil {
		if result == nil {
			return fmt.Errorf("evaluation failed: %w", analyzeErr)
		}
		slog.Warn("evaluation interrupted", "error", analyzeErr)
	}

	report := output.NewReport(result, configPath, src.label)
	logSummary(report)

	if err := writeReport(ctx, formatter, report, cmd.OutOrStdout(), opts.Out); err != nil {
		return err
	}

	m.ObserveBatch(report.Metadata.Duration, report.Metadata.SaveFailures, report.Metadata.AnalyzedAt)
	writeMetrics(m, cfg, opts)

	// Send webhooks (errors logged but don't fail evaluation)
	sendWebhooks(ctx, cfg, opts, report)

	// Set exit code based on results
	if report.HasNonCompliant() {
		ExitCode = ExitNonCompliant
	}

	return analyzeErr
}

func createFormatter(opts *EvaluateOptions) (output.Formatter, error) {
	return output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		BOM:     opts.BOM,
	})
}

// writeReport renders the report to path, or to stdout when path is empty.
func writeReport(ctx context.Context, f output.Formatter, report *output.Report, stdout io.Writer, path string) error {
	if path == "" {
		if err := f.Format(ctx, report, stdout); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
		return nil
	}

	file, err := os.Create(path) // #nosec G304 -- user-supplied output path
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := f.Format(ctx, report, file); err != nil {
		file.Close()
		return fmt.Errorf("formatting output: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	slog.Info("report written", "path", path, "format", f.Name())
	return nil
}

// logSummary logs the verdict counts of a finished batch.
func logSummary(report *output.Report) {
	attrs := []any{
		"run_id", report.Metadata.RunID,
		"incidents", report.Summary.Total,
		"duration", report.Metadata.Duration,
	}
	for _, v := range sla.Verdicts() {
		if n := report.Summary.Counts[v]; n > 0 {
			attrs = append(attrs, string(v), n)
		}
	}
	if len(report.Summary.NotFound) > 0 {
		attrs = append(attrs, "not_found", len(report.Summary.NotFound))
	}
	slog.Info("batch finished", attrs...)
}

func writeMetrics(m *metrics.Metrics, cfg *config.Config, opts *EvaluateOptions) {
	path := cfg.Metrics.Textfile
	if opts.MetricsFile != "" {
		path = opts.MetricsFile
	}
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		slog.Warn("metrics not written", "path", path, "error", err)
	}
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are logged but don't fail the evaluation.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *EvaluateOptions, report *output.Report) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, report.HasNonCompliant()) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			slog.Info("webhook sent", "webhook", name, "status", resp.StatusCode, "duration", resp.Duration)
		} else {
			slog.Warn("webhook failed", "webhook", name, "error", resp.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *EvaluateOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnNonCompliant
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// shouldFireWebhook determines if a webhook should fire for a batch.
func shouldFireWebhook(trigger config.WebhookTrigger, nonCompliant bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return nonCompliant
	}
}

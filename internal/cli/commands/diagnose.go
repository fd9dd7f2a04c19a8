package commands

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/slalog/internal/store"
	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/config"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	SourceOptions

	Verbose bool

	// Incident trace options
	Ref           string
	LogFile       string
	SeverityID    int64
	ApplicationID int64
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose configuration issues or trace one incident",
		Long: `Diagnose configuration issues or trace the evaluation of one incident.

Without --ref or --log-file the configuration is checked:
- Config file syntax and structure
- Business calendar
- Database reachability and schema
- SLA rules against the catalog
- Eligibility settings and resolvers
- Webhooks

With --ref the incident is read from --incidents files or the database and
every parsed entry, dropped timestamp and segment is printed together with
the final result. --log-file traces a raw activity log instead.

Example:
  slalog diagnose sla.yaml
  slalog diagnose sla.yaml --ref INC000123 --incidents 'exports/*.yaml'
  slalog diagnose sla.yaml --log-file bitacora.txt --severity-id 2 --application-id 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Ref != "" || opts.LogFile != "" {
				return runTrace(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
			}
			return runDiagnose(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "Trace this incident")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "Trace a raw activity log file")
	cmd.Flags().Int64Var(&opts.SeverityID, "severity-id", 0, "Severity of the --log-file incident")
	cmd.Flags().Int64Var(&opts.ApplicationID, "application-id", 0, "Application of the --log-file incident")
	cmd.Flags().StringSliceVar(&opts.Incidents, "incidents", nil, "Incident files or glob patterns")
	cmd.Flags().StringVar(&opts.DSN, "db", "", "Database DSN (overrides storage.dsn)")
	cmd.Flags().StringVar(&opts.Driver, "driver", "", "Database driver (sqlite|pgx)")
	cmd.MarkFlagsMutuallyExclusive("ref", "log-file")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 3. Business calendar
	results = append(results, checkCalendar(cfg, opts))

	// 4. Database, which may extend the catalog
	dbCat, storageResults := checkStorage(ctx, cfg, opts)
	results = append(results, storageResults...)
	cat := catalog.Merge(cfg.Catalog(), dbCat)

	// 5. SLA rules against the catalog
	results = append(results, checkRules(cfg, cat)...)

	// 6. Eligibility and resolvers
	results = append(results, checkEligibility(cfg, cat, opts))

	// 7. Webhooks
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{"Check the file path is correct"}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{"Define at least business_hours, sla_rules and eligibility"}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		result.Suggests = []string{
			"Check YAML syntax (indentation, colons, quotes)",
			"Run 'slalog validate' for the full error",
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Timezone: %s", cfg.Timezone),
		fmt.Sprintf("SLA rules: %d", len(cfg.SLARules)),
	}
	return cfg, result
}

func checkCalendar(cfg *config.Config, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Business Calendar",
	}

	cal := cfg.BuildCalendar()
	hours := cal.Hours()

	open := 0
	var details []string
	for i, wd := range weekdays {
		win := hours[i]
		if win == nil {
			details = append(details, fmt.Sprintf("%-9s closed", wd))
			continue
		}
		open++
		details = append(details, fmt.Sprintf("%-9s %s", wd, win))
	}
	details = append(details, fmt.Sprintf("Holidays: %d", len(cal.Holidays())))

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d business day(s) per week in %s", open, cal.Location())
	if open < 5 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Only %d business day(s) per week", open)
		result.Suggests = []string{"Days missing from business_hours are closed"}
	}

	if n := len(cal.Holidays()); n > 0 && result.Status == "ok" {
		latest := cal.Holidays()[n-1]
		if calendar.DateOf(time.Now().In(cal.Location())).After(latest) {
			result.Status = "warning"
			result.Message = fmt.Sprintf("Latest holiday %s is in the past", latest)
			result.Suggests = []string{"Add this year's holidays to the holidays list"}
		}
	}

	if opts.Verbose || result.Status != "ok" {
		result.Details = details
	}

	return result
}

var weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func checkStorage(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) (*catalog.Catalog, []DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Database",
	}

	dsn := cfg.Storage.DSN
	if opts.DSN != "" {
		dsn = opts.DSN
	}
	driver := cfg.Storage.Driver
	if opts.Driver != "" {
		driver = opts.Driver
	}

	if dsn == "" {
		if !opts.Verbose {
			return nil, nil
		}
		result.Status = "ok"
		result.Message = "No database configured (incidents read from files)"
		return nil, []DiagnosticResult{result}
	}

	st, err := store.Open(ctx, driver, dsn)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot open database: %v", err)
		result.Suggests = []string{"Check storage.driver and storage.dsn"}
		return nil, []DiagnosticResult{result}
	}
	defer st.Close()

	version, err := st.SchemaVersion(ctx)
	if err != nil || version == 0 {
		result.Status = "warning"
		result.Message = "Database reachable but schema not initialized"
		result.Suggests = []string{"The schema is created on the first 'slalog evaluate' against it"}
		return nil, []DiagnosticResult{result}
	}

	cat, err := st.LoadCatalog(ctx)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot read catalog: %v", err)
		return nil, []DiagnosticResult{result}
	}

	sev, crit, apps, resolvers := cat.Counts()
	result.Status = "ok"
	result.Message = fmt.Sprintf("%s database at schema version %d", st.Driver(), version)
	result.Details = []string{
		fmt.Sprintf("Severities: %d, criticalities: %d", sev, crit),
		fmt.Sprintf("Applications: %d, resolvers: %d", apps, resolvers),
	}
	return cat, []DiagnosticResult{result}
}

func checkRules(cfg *config.Config, cat *catalog.Catalog) []DiagnosticResult {
	result := DiagnosticResult{
		Check: "SLA Rules",
	}

	rules, err := cfg.BuildRules(cat)
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		result.Suggests = []string{
			"Rule severities and criticalities must name a catalog id or label",
			"Add the missing entry to severities/criticalities or the database",
		}
		return []DiagnosticResult{result}
	}

	// Every severity/criticality pair the catalog knows should have a target
	var missing []string
	sevs, crits := cat.SeverityLabels(), cat.CriticalityLabels()
	for sid, sl := range sevs {
		for cid, cl := range crits {
			if _, ok := rules.Lookup(sid, cid); !ok {
				missing = append(missing, fmt.Sprintf("%s / %s", sl, cl))
			}
		}
	}
	sort.Strings(missing)

	if len(missing) > 0 {
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d rule(s), %d severity/criticality pair(s) without a target", len(rules), len(missing))
		result.Details = missing
		result.Suggests = []string{"Incidents with these pairs are reported as no_rule_defined"}
		return []DiagnosticResult{result}
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("%d rule(s) cover every catalog pair", len(rules))
	return []DiagnosticResult{result}
}

func checkEligibility(cfg *config.Config, cat *catalog.Catalog, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Eligibility",
	}

	eval, err := cfg.NewEvaluator(cat)
	if err == nil {
		err = eval.Validate()
	}
	if err != nil {
		result.Status = "error"
		result.Message = err.Error()
		result.Suggests = []string{"Evaluation refuses to start until this is fixed"}
		return result
	}

	s := cfg.Sentinels()
	result.Status = "ok"
	result.Message = fmt.Sprintf("%d resolver(s), always-on severity %q", len(cat.Resolvers()), s.AlwaysOnSeverity)
	if opts.Verbose {
		result.Details = []string{
			fmt.Sprintf("Excluded block: %d", s.ExcludedBlock),
			fmt.Sprintf("Excluded resolver group: %d", s.ExcludedResolverGroup),
			fmt.Sprintf("Fallback: %s", cfg.Evaluation.Fallback),
			fmt.Sprintf("Pause keyword: %q", cfg.Evaluation.PauseKeyword),
		}
	}
	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== slalog Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before running an evaluation.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		issues := []string{}
		warnings := []string{}

		if wh.URL == "" {
			issues = append(issues, "Missing url")
		} else {
			u, err := url.Parse(wh.URL)
			if err != nil {
				issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
			} else if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
				warnings = append(warnings, "Reports are sent over plain http")
			}
		}

		// Tokens are expanded during loading; an empty result means the variable was unset
		if strings.Contains(wh.Token, "$") {
			warnings = append(warnings, fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
		}

		if len(issues) > 0 {
			result.Status = "error"
			result.Message = fmt.Sprintf("%d configuration issue(s)", len(issues))
			result.Details = issues
		} else if len(warnings) > 0 {
			result.Status = "warning"
			result.Message = fmt.Sprintf("%d warning(s)", len(warnings))
			result.Details = warnings
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("Trigger: %s", wh.Trigger)
			if opts.Verbose {
				result.Details = []string{
					fmt.Sprintf("URL: %s", wh.URL),
					fmt.Sprintf("Timeout: %s", wh.Timeout),
				}
				if wh.Token != "" {
					result.Details = append(result.Details, "Token: configured")
				}
			}
		}

		results = append(results, result)
	}

	return results
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

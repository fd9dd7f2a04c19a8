package commands

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/slalog/pkg/config"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate an slalog configuration file without evaluating incidents.

Checks:
  - YAML syntax
  - Timezone, business hours and holidays
  - SLA rule targets and their catalog references
  - Eligibility sentinels
  - Storage, logging and webhook settings`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cat := cfg.Catalog()
	rules, err := cfg.BuildRules(cat)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(w, "\nConfiguration valid!\n")
	printCalendar(w, cfg)
	printRules(w, cfg, rules)

	s := cfg.Sentinels()
	fmt.Fprintf(w, "\nEligibility:\n")
	fmt.Fprintf(w, "  Excluded block:          %d\n", s.ExcludedBlock)
	fmt.Fprintf(w, "  Excluded resolver group: %d\n", s.ExcludedResolverGroup)
	fmt.Fprintf(w, "  Always-on severity:      %s\n", s.AlwaysOnSeverity)
	fmt.Fprintf(w, "  Fallback:                %s\n", sla.FormatHMS(cfg.Evaluation.Fallback))
	fmt.Fprintf(w, "  Pause keyword:           %s\n", cfg.Evaluation.PauseKeyword)

	if n := len(cat.Resolvers()); n == 0 {
		fmt.Fprintf(w, "\nWarning: no resolvers in config; they must come from the database\n")
	} else {
		fmt.Fprintf(w, "\nResolvers: %d\n", n)
	}

	return nil
}

func printCalendar(w io.Writer, cfg *config.Config) {
	cal := cfg.BuildCalendar()
	hours := cal.Hours()

	fmt.Fprintf(w, "\nCalendar (%s):\n", cal.Location())
	for i, wd := range weekdays {
		if hours[i] == nil {
			fmt.Fprintf(w, "  %-9s closed\n", wd)
			continue
		}
		fmt.Fprintf(w, "  %-9s %s\n", wd, hours[i])
	}
	if hs := cal.Holidays(); len(hs) > 0 {
		fmt.Fprintf(w, "  Holidays: %d (%s .. %s)\n", len(hs), hs[0], hs[len(hs)-1])
	}
}

func printRules(w io.Writer, cfg *config.Config, rules sla.RuleTable) {
	keys := make([]sla.RuleKey, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Severity != keys[j].Severity {
			return keys[i].Severity < keys[j].Severity
		}
		return keys[i].Criticality < keys[j].Criticality
	})

	cat := cfg.Catalog()
	fmt.Fprintf(w, "\nSLA rules: %d\n", len(rules))
	for i, k := range keys {
		sev, _ := cat.SeverityLabel(k.Severity)
		crit, _ := cat.CriticalityLabel(k.Criticality)
		fmt.Fprintf(w, "  %d. severity %d %-12s criticality %d %-12s target %s\n",
			i+1, k.Severity, orNA(sev), k.Criticality, orNA(crit), sla.FormatHMS(rules[k]))
	}
}

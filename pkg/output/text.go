package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ccollicutt/slalog/pkg/sla"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// verdictLabel renders a verdict for humans, colored when the writer is a
// terminal.
func verdictLabel(v sla.Verdict) string {
	label := strings.ReplaceAll(string(v), "_", " ")
	switch v {
	case sla.VerdictCompliant:
		return green(label)
	case sla.VerdictNonCompliant, sla.VerdictError:
		return red(label)
	default:
		return yellow(label)
	}
}

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "slalog: %d incidents, %d compliant, %d non-compliant, %s compliance\n",
		report.Summary.Total,
		report.Summary.Counts[sla.VerdictCompliant],
		report.Summary.Counts[sla.VerdictNonCompliant],
		rate(report))
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, bold("=== SLA Compliance Report ==="))
	fmt.Fprintln(w)

	for _, res := range report.Results {
		f.formatResult(res, w)
	}
	if len(report.Results) > 0 {
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d incidents, %d measured, %s compliance\n",
		report.Summary.Total, report.Measured(), rate(report))

	for _, v := range sla.Verdicts() {
		if n := report.Summary.Counts[v]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", string(v), n)
		}
	}

	if len(report.Summary.NotFound) > 0 {
		fmt.Fprintf(w, "Not found: %s\n", strings.Join(report.Summary.NotFound, ", "))
	}

	if f.opts.Verbose {
		if len(report.Summary.ByApplication) > 0 {
			fmt.Fprintln(w, "By application:")
			for _, app := range report.Summary.ByApplication {
				fmt.Fprintf(w, "  %s: %d compliant, %d non-compliant, %d unmeasured\n",
					app.Application, app.Compliant, app.NonCompliant, app.Unmeasured)
			}
		}
		fmt.Fprintf(w, "Incidents read: %d (%d skipped)\n",
			report.Metadata.IncidentsRead, report.Metadata.IncidentsSkipped)
		if report.Metadata.SaveFailures > 0 {
			fmt.Fprintf(w, "Save failures: %d\n", report.Metadata.SaveFailures)
		}
		fmt.Fprintf(w, "Run: %s\n", report.Metadata.RunID)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatResult(res *sla.Result, w io.Writer) {
	fmt.Fprintf(w, "%-14s %s / %s  %s\n",
		res.Ref, res.TotalHMS, res.TargetHMS, verdictLabel(res.Verdict))

	if !f.opts.Verbose {
		return
	}

	fmt.Fprintf(w, "  application: %s (%s), severity: %s\n",
		res.Application, res.Criticality, res.Severity)
	fmt.Fprintf(w, "  last responder: %s, entries: %d\n", res.LastResponder, res.Entries)

	s := res.Segments
	fmt.Fprintf(w, "  segments: %d counted, %d not resolver, %d paused, %d oversized\n",
		s.Counted, s.NotResolver, s.Paused, s.Oversized)

	var flags []string
	if res.Exempt {
		flags = append(flags, "always-on")
	}
	if res.FallbackApplied {
		flags = append(flags, "fallback applied")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "  %s\n", strings.Join(flags, ", "))
	}

	if len(res.MissingFields) > 0 {
		fmt.Fprintf(w, "  missing: %s\n", strings.Join(res.MissingFields, ", "))
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "  dropped: %s\n", d)
	}
	if res.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", res.Error)
	}
}

func rate(report *Report) string {
	if report.Measured() == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", report.Summary.ComplianceRate*100)
}

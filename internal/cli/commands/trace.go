package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ccollicutt/slalog/internal/store"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/config"
	"github.com/ccollicutt/slalog/pkg/parser"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// segmentRecorder keeps the segments of the traced incident.
type segmentRecorder struct {
	mu       sync.Mutex
	segments []sla.Segment
}

func (r *segmentRecorder) OnSegmentEvaluated(_ *sla.Incident, seg sla.Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, seg)
}

func (r *segmentRecorder) OnVerdict(*sla.Incident, *sla.Result) {}

// runTrace evaluates one incident and prints every step.
func runTrace(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, closeLog, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	defer closeLog()

	var (
		inc *sla.Incident
		cat *catalog.Catalog
	)
	if opts.LogFile != "" {
		inc, err = incidentFromLogFile(opts)
		cat = cfg.Catalog()
	} else {
		inc, cat, err = findIncident(ctx, cfg, opts)
	}
	if err != nil {
		return err
	}
	inc.Fill(cat)

	rec := &segmentRecorder{}
	eval, err := cfg.NewEvaluator(cat, sla.WithObserver(rec))
	if err != nil {
		return fmt.Errorf("building evaluator: %w", err)
	}
	if err := eval.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	res := eval.Evaluate(inc)
	entries, diags := eval.Parser().Parse(inc.Log, inc.Ref)

	printTrace(w, inc, cat, entries, diags, rec.segments, res)
	return nil
}

func incidentFromLogFile(opts *DiagnoseOptions) (*sla.Incident, error) {
	data, err := os.ReadFile(opts.LogFile) // #nosec G304 -- user-supplied log file
	if err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return &sla.Incident{
		Ref:           filepath.Base(opts.LogFile),
		SeverityID:    catalog.ID(opts.SeverityID),
		ApplicationID: catalog.ID(opts.ApplicationID),
		Log:           string(data),
	}, nil
}

// findIncident reads the source until the requested ref appears.
func findIncident(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) (*sla.Incident, *catalog.Catalog, error) {
	src, err := openSource(ctx, cfg, opts.SourceOptions, store.IncidentQuery{Refs: []string{opts.Ref}})
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	for {
		inc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("incident %s not found in %s", opts.Ref, src.label)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading incident source: %w", err)
		}
		if inc.Ref == opts.Ref {
			return inc, src.catalog, nil
		}
	}
}

func printTrace(w io.Writer, inc *sla.Incident, cat *catalog.Catalog, entries []parser.Entry, diags []parser.Diagnostic, segments []sla.Segment, res *sla.Result) {
	fmt.Fprintf(w, "Incident %s\n", inc.Ref)
	fmt.Fprintf(w, "  Severity:       %s (%d)\n", orNA(inc.SeverityLabel), inc.SeverityID)
	fmt.Fprintf(w, "  Application:    %s (%d)\n", orNA(inc.ApplicationName), inc.ApplicationID)
	fmt.Fprintf(w, "  Criticality:    %s (%d)\n", orNA(inc.CriticalityLabel), inc.CriticalityID)
	if inc.BlockID.Valid() || inc.ResolverGroupID.Valid() {
		fmt.Fprintf(w, "  Block/group:    %d / %d\n", inc.BlockID, inc.ResolverGroupID)
	}
	if !inc.ResolvedAt.IsZero() {
		fmt.Fprintf(w, "  Resolved:       %s\n", inc.ResolvedAt.Format(time.DateTime))
	}

	fmt.Fprintf(w, "\nEntries (%d):\n", len(entries))
	for i, e := range entries {
		marker := " "
		if cat.IsResolver(e.Actor) {
			marker = "*"
		}
		msg := strings.Join(strings.Fields(e.Message), " ")
		fmt.Fprintf(w, "  %3d. %s %s %-16s %s\n", i+1, e.Time.Format(time.DateTime), marker, e.Actor, truncate(msg, 60))
	}
	if len(entries) > 0 {
		fmt.Fprintln(w, "  (* resolver)")
	}

	if len(diags) > 0 {
		fmt.Fprintf(w, "\nDropped (%d):\n", len(diags))
		for _, d := range diags {
			fmt.Fprintf(w, "  - %q: %v\n", d.Token, d.Err)
		}
	}

	if len(segments) > 0 {
		fmt.Fprintf(w, "\nSegments (%d):\n", len(segments))
		for _, seg := range segments {
			fmt.Fprintf(w, "  %3d. %s -> %s  %-16s %-13s %s\n",
				seg.Index+1,
				seg.From.Time.Format(time.DateTime),
				seg.To.Time.Format(time.DateTime),
				seg.To.Actor,
				seg.Outcome,
				sla.FormatHMS(seg.Duration),
			)
		}
	}

	fmt.Fprintln(w, "\nResult:")
	fmt.Fprintf(w, "  Verdict:        %s\n", res.Verdict)
	total := res.TotalHMS
	switch {
	case res.FallbackApplied:
		total += " (fallback)"
	case res.Exempt:
		total += " (always on)"
	}
	fmt.Fprintf(w, "  Total:          %s\n", total)
	fmt.Fprintf(w, "  Target:         %s\n", res.TargetHMS)
	fmt.Fprintf(w, "  Last responder: %s\n", res.LastResponder)
	if len(res.MissingFields) > 0 {
		fmt.Fprintf(w, "  Missing:        %s\n", strings.Join(res.MissingFields, ", "))
	}
}

func orNA(s string) string {
	if s == "" {
		return sla.NotAvailable
	}
	return s
}

package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/filter"
	"github.com/ccollicutt/slalog/pkg/sla"
)

const tracerName = "github.com/ccollicutt/slalog/pkg/analyzer"

// Analyzer orchestrates SLA evaluation across a batch of incidents.
type Analyzer struct {
	eval   Evaluator
	tracer trace.Tracer

	// Options
	workers   int
	catalog   *catalog.Catalog
	timeRange *TimeRange
	refMatch  string
	refs      map[string]bool // nil means all incidents
	filter    *filter.Filter
	saver     ResultSaver
	observer  sla.Observer
}

// TimeRange limits a batch to incidents resolved within [Start, End].
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in the range. The zero time never does.
func (r *TimeRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithWorkers sets how many incidents are evaluated concurrently.
// Zero or less means one per CPU.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithCatalog fills missing incident labels from cat before filtering.
func WithCatalog(cat *catalog.Catalog) AnalyzerOption {
	return func(a *Analyzer) {
		a.catalog = cat
	}
}

// WithTimeRange limits analysis to incidents resolved in the given range.
func WithTimeRange(start, end time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.timeRange = &TimeRange{Start: start, End: end}
	}
}

// WithRefMatch limits analysis to incidents whose ref contains s,
// ignoring case.
func WithRefMatch(s string) AnalyzerOption {
	return func(a *Analyzer) {
		a.refMatch = strings.ToLower(strings.TrimSpace(s))
	}
}

// WithRefs limits analysis to the listed incident refs. Refs the source
// never produces are reported in AnalysisResult.NotFound.
func WithRefs(refs []string) AnalyzerOption {
	return func(a *Analyzer) {
		if len(refs) > 0 {
			a.refs = make(map[string]bool, len(refs))
			for _, r := range refs {
				if r = strings.TrimSpace(r); r != "" {
					a.refs[r] = true
				}
			}
		}
	}
}

// WithFilter limits analysis to incidents matching an expression.
func WithFilter(f *filter.Filter) AnalyzerOption {
	return func(a *Analyzer) {
		a.filter = f
	}
}

// WithSaver writes every result back through s after evaluation.
func WithSaver(s ResultSaver) AnalyzerOption {
	return func(a *Analyzer) {
		a.saver = s
	}
}

// WithObserver receives verdicts for incidents whose evaluation failed.
// Successful evaluations report through the evaluator's own observer.
func WithObserver(o sla.Observer) AnalyzerOption {
	return func(a *Analyzer) {
		a.observer = o
	}
}

// NewAnalyzer creates an analyzer. Configuration defects reported by the
// evaluator are returned here, before any incident is read.
func NewAnalyzer(eval Evaluator, opts ...AnalyzerOption) (*Analyzer, error) {
	if eval == nil {
		return nil, errors.New("no evaluator")
	}

	a := &Analyzer{
		eval:     eval,
		tracer:   otel.Tracer(tracerName),
		observer: sla.NopObserver{},
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.workers <= 0 {
		a.workers = runtime.NumCPU()
	}

	if err := eval.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return a, nil
}

// Analyze reads every incident from source, evaluates the selected ones in
// parallel and aggregates the verdicts. If ctx ends early the incidents
// already evaluated are returned together with the context error.
func (a *Analyzer) Analyze(ctx context.Context, source IncidentSource) (*AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analyze")
	defer span.End()

	result := &AnalysisResult{
		Metadata: AnalysisMetadata{
			RunID:     uuid.NewString(),
			TimeRange: a.timeRange,
			StartTime: time.Now(),
		},
	}

	incidents, err := a.collect(ctx, source, result)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]*sla.Result, len(incidents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, inc := range incidents {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = a.evaluate(gctx, inc)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res != nil {
			result.Results = append(result.Results, res)
		}
	}

	if a.saver != nil {
		a.save(ctx, result)
	}

	result.tally()
	result.Metadata.EndTime = time.Now()

	span.SetAttributes(
		attribute.String("run_id", result.Metadata.RunID),
		attribute.Int("incidents", result.Total()),
		attribute.Int("non_compliant", result.Count(sla.VerdictNonCompliant)),
	)

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("analysis interrupted after %d of %d incidents: %w",
			result.Total(), len(incidents), err)
	}

	return result, nil
}

// collect drains the source and applies the selection options.
func (a *Analyzer) collect(ctx context.Context, source IncidentSource, result *AnalysisResult) ([]*sla.Incident, error) {
	var incidents []*sla.Incident
	seen := make(map[string]bool, len(a.refs))

	for {
		inc, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading incident source: %w", err)
		}

		result.Metadata.IncidentsRead++
		inc.Fill(a.catalog)

		keep, err := a.selected(inc, seen)
		if err != nil {
			return nil, fmt.Errorf("filtering incident %s: %w", inc.Ref, err)
		}
		if !keep {
			result.Metadata.IncidentsSkipped++
			continue
		}

		incidents = append(incidents, inc)
	}

	for ref := range a.refs {
		if !seen[ref] {
			result.NotFound = append(result.NotFound, ref)
		}
	}
	sort.Strings(result.NotFound)

	return incidents, nil
}

func (a *Analyzer) selected(inc *sla.Incident, seen map[string]bool) (bool, error) {
	if a.refs != nil {
		if !a.refs[inc.Ref] {
			return false, nil
		}
		seen[inc.Ref] = true
	}

	if a.refMatch != "" && !strings.Contains(strings.ToLower(inc.Ref), a.refMatch) {
		return false, nil
	}

	if a.timeRange != nil && !a.timeRange.Contains(inc.ResolvedAt) {
		return false, nil
	}

	if a.filter != nil {
		return a.filter.Match(inc)
	}

	return true, nil
}

// evaluate runs one incident, turning a panic into an error verdict so the
// rest of the batch proceeds.
func (a *Analyzer) evaluate(ctx context.Context, inc *sla.Incident) (res *sla.Result) {
	_, span := a.tracer.Start(ctx, "evaluate",
		trace.WithAttributes(attribute.String("incident", inc.Ref)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			res = sla.NewResult(inc)
			res.Verdict = sla.VerdictError
			res.Error = fmt.Sprint(r)

			span.SetStatus(codes.Error, res.Error)
			slog.Error("evaluation failed", "incident", inc.Ref, "error", res.Error)
			a.observer.OnVerdict(inc, res)
		}
	}()

	res = a.eval.Evaluate(inc)
	span.SetAttributes(attribute.String("verdict", string(res.Verdict)))
	return res
}

func (a *Analyzer) save(ctx context.Context, result *AnalysisResult) {
	for _, res := range result.Results {
		if res.Verdict == sla.VerdictError {
			continue
		}
		if err := a.saver.SaveResult(ctx, res); err != nil {
			result.Metadata.SaveFailures++
			slog.Warn("saving result failed", "incident", res.Ref, "error", err)
		}
	}
}

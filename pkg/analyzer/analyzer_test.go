package analyzer

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/filter"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// stubEvaluator returns a fixed verdict per ref and panics for "boom".
type stubEvaluator struct {
	validateErr error
	verdicts    map[string]sla.Verdict
}

func (s *stubEvaluator) Validate() error { return s.validateErr }

func (s *stubEvaluator) Evaluate(inc *sla.Incident) *sla.Result {
	if inc.Ref == "boom" {
		panic("corrupt incident")
	}
	res := sla.NewResult(inc)
	res.Verdict = s.verdicts[inc.Ref]
	if res.Verdict == "" {
		res.Verdict = sla.VerdictCompliant
	}
	return res
}

type memorySaver struct {
	mu    sync.Mutex
	saved map[string]sla.Verdict
	fail  string
}

func (m *memorySaver) SaveResult(_ context.Context, res *sla.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if res.Ref == m.fail {
		return errors.New("disk full")
	}
	if m.saved == nil {
		m.saved = make(map[string]sla.Verdict)
	}
	m.saved[res.Ref] = res.Verdict
	return nil
}

type verdictRecorder struct {
	mu       sync.Mutex
	verdicts []sla.Verdict
}

func (r *verdictRecorder) OnSegmentEvaluated(*sla.Incident, sla.Segment) {}

func (r *verdictRecorder) OnVerdict(_ *sla.Incident, res *sla.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdicts = append(r.verdicts, res.Verdict)
}

func refs(names ...string) []*sla.Incident {
	out := make([]*sla.Incident, len(names))
	for i, n := range names {
		out[i] = &sla.Incident{Ref: n}
	}
	return out
}

func resultRefs(r *AnalysisResult) []string {
	out := make([]string, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Ref
	}
	return out
}

func TestNewAnalyzer_ConfigDefect(t *testing.T) {
	_, err := NewAnalyzer(&stubEvaluator{validateErr: sla.ErrNoResolvers})
	if !errors.Is(err, sla.ErrNoResolvers) {
		t.Errorf("NewAnalyzer() error = %v, want ErrNoResolvers", err)
	}

	if _, err := NewAnalyzer(nil); err == nil {
		t.Error("NewAnalyzer(nil) expected error")
	}
}

func TestAnalyzer_Analyze_OrderAndCounts(t *testing.T) {
	eval := &stubEvaluator{verdicts: map[string]sla.Verdict{
		"b": sla.VerdictNonCompliant,
		"d": sla.VerdictNoRule,
	}}

	a, err := NewAnalyzer(eval, WithWorkers(3))
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	result, err := a.Analyze(context.Background(), NewSliceSource(refs("a", "b", "c", "d", "e", "f", "g")))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got := resultRefs(result); !reflect.DeepEqual(got, []string{"a", "b", "c", "d", "e", "f", "g"}) {
		t.Errorf("results out of order: %v", got)
	}
	if result.Count(sla.VerdictCompliant) != 5 || result.Count(sla.VerdictNonCompliant) != 1 || result.Count(sla.VerdictNoRule) != 1 {
		t.Errorf("Counts = %v", result.Counts)
	}
	if !result.HasNonCompliant() {
		t.Error("HasNonCompliant() = false, want true")
	}
	if rate := result.ComplianceRate(); rate < 0.83 || rate > 0.84 {
		t.Errorf("ComplianceRate() = %v, want 5/6", rate)
	}
	if result.Metadata.RunID == "" {
		t.Error("RunID is empty")
	}
	if result.Metadata.IncidentsRead != 7 {
		t.Errorf("IncidentsRead = %d, want 7", result.Metadata.IncidentsRead)
	}
}

func TestAnalyzer_Analyze_PanicBecomesErrorVerdict(t *testing.T) {
	rec := &verdictRecorder{}
	a, err := NewAnalyzer(&stubEvaluator{}, WithObserver(rec), WithWorkers(1))
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	result, err := a.Analyze(context.Background(), NewSliceSource(refs("a", "boom", "c")))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", result.Total())
	}
	bad := result.Results[1]
	if bad.Verdict != sla.VerdictError || bad.Error != "corrupt incident" {
		t.Errorf("result = %+v, want error verdict", bad)
	}
	if result.Count(sla.VerdictCompliant) != 2 {
		t.Errorf("batch should continue after a failure, Counts = %v", result.Counts)
	}
	if !reflect.DeepEqual(rec.verdicts, []sla.Verdict{sla.VerdictError}) {
		t.Errorf("observer saw %v, want one error verdict", rec.verdicts)
	}
}

func TestAnalyzer_Analyze_Selection(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	incidents := []*sla.Incident{
		{Ref: "INC-001", ResolvedAt: day(1), SeverityLabel: "Alta"},
		{Ref: "INC-002", ResolvedAt: day(5), SeverityLabel: "Baja"},
		{Ref: "REQ-003", ResolvedAt: day(5), SeverityLabel: "Alta"},
		{Ref: "INC-004", SeverityLabel: "Alta"},
	}

	f, err := filter.New(`severity == "Alta"`)
	if err != nil {
		t.Fatalf("filter.New() error = %v", err)
	}

	tests := []struct {
		name    string
		opts    []AnalyzerOption
		want    []string
		missing []string
	}{
		{"no selection", nil, []string{"INC-001", "INC-002", "REQ-003", "INC-004"}, nil},
		{"ref match", []AnalyzerOption{WithRefMatch("inc")}, []string{"INC-001", "INC-002", "INC-004"}, nil},
		{"time range", []AnalyzerOption{WithTimeRange(day(2), day(6))}, []string{"INC-002", "REQ-003"}, nil},
		{"filter", []AnalyzerOption{WithFilter(f)}, []string{"INC-001", "REQ-003", "INC-004"}, nil},
		{"refs", []AnalyzerOption{WithRefs([]string{"INC-002", " REQ-003 ", "INC-999"})}, []string{"INC-002", "REQ-003"}, []string{"INC-999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAnalyzer(&stubEvaluator{}, tt.opts...)
			if err != nil {
				t.Fatalf("NewAnalyzer() error = %v", err)
			}

			result, err := a.Analyze(context.Background(), NewSliceSource(incidents))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if got := resultRefs(result); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("selected %v, want %v", got, tt.want)
			}
			if !reflect.DeepEqual(result.NotFound, tt.missing) {
				t.Errorf("NotFound = %v, want %v", result.NotFound, tt.missing)
			}
			if skipped := result.Metadata.IncidentsSkipped; skipped != len(incidents)-len(tt.want) {
				t.Errorf("IncidentsSkipped = %d", skipped)
			}
		})
	}
}

func TestAnalyzer_Analyze_Saver(t *testing.T) {
	saver := &memorySaver{fail: "c"}
	a, err := NewAnalyzer(&stubEvaluator{}, WithSaver(saver))
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	result, err := a.Analyze(context.Background(), NewSliceSource(refs("a", "boom", "c")))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(saver.saved) != 1 || saver.saved["a"] != sla.VerdictCompliant {
		t.Errorf("saved = %v, want only a", saver.saved)
	}
	if result.Metadata.SaveFailures != 1 {
		t.Errorf("SaveFailures = %d, want 1", result.Metadata.SaveFailures)
	}
}

func TestAnalyzer_Analyze_Cancelled(t *testing.T) {
	a, err := NewAnalyzer(&stubEvaluator{})
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.Analyze(ctx, NewSliceSource(refs("a"))); !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

func TestAnalyzer_Analyze_RealEvaluator(t *testing.T) {
	w, err := calendar.ParseWindow("08:00-18:00")
	if err != nil {
		t.Fatal(err)
	}
	cal := calendar.New(calendar.WeeklyHours{w, w, w, w, w, nil, nil}, nil, time.UTC)

	cat := catalog.NewBuilder().
		AddSeverity(1, "Alta").
		AddCriticality(1, "Media").
		AddApplication(catalog.Application{ID: 10, Name: "Portal", CriticalityID: 1}).
		AddResolver("gestor1").
		Build()

	eval := sla.NewEvaluator(cal, sla.RuleTable{{Severity: 1, Criticality: 1}: 4 * time.Hour}, cat,
		sla.WithSentinels(sla.Sentinels{ExcludedBlock: 5, ExcludedResolverGroup: 15, AlwaysOnSeverity: "critica"}))

	a, err := NewAnalyzer(eval, WithCatalog(cat))
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}

	incidents := []*sla.Incident{
		{Ref: "ok", SeverityID: 1, ApplicationID: 10, Log: "04-03-2024 09:00:00, u, a\n04-03-2024 12:00:00, gestor1, b"},
		{Ref: "excluded", SeverityID: 1, ApplicationID: 10, BlockID: 5},
		{Ref: "empty", SeverityID: 1, ApplicationID: 10},
	}

	result, err := a.Analyze(context.Background(), NewSliceSource(incidents))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	want := []sla.Verdict{sla.VerdictCompliant, sla.VerdictNotApplicable, sla.VerdictNoData}
	for i, res := range result.Results {
		if res.Verdict != want[i] {
			t.Errorf("%s verdict = %s, want %s", res.Ref, res.Verdict, want[i])
		}
	}
	if result.Results[0].Application != "Portal" {
		t.Errorf("catalog fill missing, Application = %q", result.Results[0].Application)
	}
}

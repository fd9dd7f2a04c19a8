package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ccollicutt/slalog/pkg/sla"
)

func TestMetrics_Observer(t *testing.T) {
	m := New()
	inc := &sla.Incident{Ref: "INC-1"}

	m.OnSegmentEvaluated(inc, sla.Segment{Outcome: sla.SegmentCounted})
	m.OnSegmentEvaluated(inc, sla.Segment{Outcome: sla.SegmentCounted})
	m.OnSegmentEvaluated(inc, sla.Segment{Outcome: sla.SegmentPaused})

	ok := sla.NewResult(inc)
	ok.Verdict = sla.VerdictCompliant
	ok.SetTotal(90 * time.Minute)
	ok.Diagnostics = []string{"a", "b"}
	m.OnVerdict(inc, ok)

	skipped := sla.NewResult(inc)
	skipped.Verdict = sla.VerdictNotApplicable
	m.OnVerdict(inc, skipped)

	if got := testutil.ToFloat64(m.SegmentsTotal.WithLabelValues("counted")); got != 2 {
		t.Errorf("counted segments = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SegmentsTotal.WithLabelValues("paused")); got != 1 {
		t.Errorf("paused segments = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("compliant")); got != 1 {
		t.Errorf("compliant = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.VerdictsTotal.WithLabelValues("not_applicable")); got != 1 {
		t.Errorf("not_applicable = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DroppedEntriesTotal); got != 2 {
		t.Errorf("dropped entries = %v, want 2", got)
	}
	if n := testutil.CollectAndCount(m.ManagementSeconds); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}

func TestMetrics_ObserveBatch(t *testing.T) {
	m := New()
	finished := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	m.ObserveBatch(1500*time.Millisecond, 2, finished)

	if got := testutil.ToFloat64(m.BatchDuration); got != 1.5 {
		t.Errorf("batch duration = %v, want 1.5", got)
	}
	if got := testutil.ToFloat64(m.SaveFailuresTotal); got != 2 {
		t.Errorf("save failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.LastRun); got != float64(finished.Unix()) {
		t.Errorf("last run = %v", got)
	}
}

func TestMetrics_SeparateRegistries(t *testing.T) {
	a, b := New(), New()
	a.VerdictsTotal.WithLabelValues("compliant").Inc()

	if got := testutil.ToFloat64(b.VerdictsTotal.WithLabelValues("compliant")); got != 0 {
		t.Errorf("registries share state: %v", got)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.VerdictsTotal.WithLabelValues("non_compliant").Inc()

	path := filepath.Join(t.TempDir(), "slalog.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `slalog_evaluation_verdicts_total{verdict="non_compliant"} 1`) {
		t.Errorf("textfile missing verdict counter:\n%s", data)
	}
}

func TestMetrics_WriteTextfile_BadPath(t *testing.T) {
	m := New()
	path := filepath.Join(t.TempDir(), "missing", "dir", "slalog.prom")
	if err := m.WriteTextfile(path); err == nil {
		t.Error("expected error for missing directory")
	}
}

// Package analyzer runs SLA evaluation over a batch of incidents.
package analyzer

import (
	"context"
	"io"
	"time"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// AnalysisResult contains the complete batch output.
type AnalysisResult struct {
	// Results holds one result per evaluated incident, in source order.
	Results []*sla.Result

	// Counts is the number of results per verdict.
	Counts map[sla.Verdict]int

	// NotFound lists requested incident refs the source never produced.
	NotFound []string

	// Metadata provides context about the analysis.
	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// RunID uniquely identifies this batch.
	RunID string

	// TimeRange is the resolution date filter applied, if any.
	TimeRange *TimeRange

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time

	// IncidentsRead is the number of incidents the source produced.
	IncidentsRead int

	// IncidentsSkipped is the number of incidents removed by filters.
	IncidentsSkipped int

	// SaveFailures is the number of results that could not be written back.
	SaveFailures int
}

// Total returns the number of evaluated incidents.
func (r *AnalysisResult) Total() int {
	return len(r.Results)
}

// Count returns the number of results with the given verdict.
func (r *AnalysisResult) Count(v sla.Verdict) int {
	return r.Counts[v]
}

// HasNonCompliant returns true if any incident breached its SLA.
func (r *AnalysisResult) HasNonCompliant() bool {
	return r.Counts[sla.VerdictNonCompliant] > 0
}

// ComplianceRate returns compliant incidents as a fraction of measured ones,
// or zero when none were measured.
func (r *AnalysisResult) ComplianceRate() float64 {
	ok := r.Counts[sla.VerdictCompliant]
	measured := ok + r.Counts[sla.VerdictNonCompliant]
	if measured == 0 {
		return 0
	}
	return float64(ok) / float64(measured)
}

func (r *AnalysisResult) tally() {
	r.Counts = make(map[sla.Verdict]int, len(sla.Verdicts()))
	for _, res := range r.Results {
		r.Counts[res.Verdict]++
	}
}

// SliceSource is an IncidentSource over an in-memory slice.
type SliceSource struct {
	incidents []*sla.Incident
	index     int
}

// NewSliceSource creates a source that yields the given incidents in order.
func NewSliceSource(incidents []*sla.Incident) *SliceSource {
	return &SliceSource{incidents: incidents}
}

// Next returns the next incident or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*sla.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.index >= len(s.incidents) {
		return nil, io.EOF
	}
	inc := s.incidents[s.index]
	s.index++
	return inc, nil
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}

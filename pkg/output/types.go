// Package output renders SLA compliance reports.
package output

import (
	"sort"
	"time"

	"github.com/ccollicutt/slalog/pkg/analyzer"
	"github.com/ccollicutt/slalog/pkg/sla"
)

// Report is the complete batch output.
type Report struct {
	// Summary provides aggregate statistics.
	Summary Summary `json:"summary"`

	// Results holds one result per evaluated incident.
	Results []*sla.Result `json:"results"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	// Total is the number of evaluated incidents.
	Total int `json:"total"`

	// Counts has one entry per verdict, including zero counts.
	Counts map[sla.Verdict]int `json:"counts"`

	// ComplianceRate is compliant over measured incidents, from 0 to 1.
	ComplianceRate float64 `json:"compliance_rate"`

	// ByApplication breaks the measured verdicts down per application.
	ByApplication []ApplicationSummary `json:"by_application,omitempty"`

	// NotFound lists requested refs that were not in the source.
	NotFound []string `json:"not_found,omitempty"`
}

// ApplicationSummary counts verdicts for one application.
type ApplicationSummary struct {
	Application  string `json:"application"`
	Compliant    int    `json:"compliant"`
	NonCompliant int    `json:"non_compliant"`
	Unmeasured   int    `json:"unmeasured"`
}

// Metadata provides context about the run.
type Metadata struct {
	RunID      string `json:"run_id"`
	ConfigFile string `json:"config_file"`

	// Source describes where incidents were read from.
	Source string `json:"source"`

	// TimeRange is the resolution date filter that was applied, if any.
	TimeRange *TimeRange `json:"time_range,omitempty"`

	IncidentsRead    int `json:"incidents_read"`
	IncidentsSkipped int `json:"incidents_skipped"`
	SaveFailures     int `json:"save_failures,omitempty"`

	// AnalyzedAt is when the batch completed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the batch took.
	Duration time.Duration `json:"duration_ns"`
}

// TimeRange represents a resolution window.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewReport creates a Report from a batch result.
func NewReport(result *analyzer.AnalysisResult, configFile, source string) *Report {
	report := &Report{
		Results: result.Results,
		Metadata: Metadata{
			RunID:            result.Metadata.RunID,
			ConfigFile:       configFile,
			Source:           source,
			IncidentsRead:    result.Metadata.IncidentsRead,
			IncidentsSkipped: result.Metadata.IncidentsSkipped,
			SaveFailures:     result.Metadata.SaveFailures,
			AnalyzedAt:       result.Metadata.EndTime,
			Duration:         result.Metadata.EndTime.Sub(result.Metadata.StartTime),
		},
		Summary: Summary{
			Total:          result.Total(),
			Counts:         make(map[sla.Verdict]int, len(sla.Verdicts())),
			ComplianceRate: result.ComplianceRate(),
			ByApplication:  byApplication(result.Results),
			NotFound:       result.NotFound,
		},
	}

	for _, v := range sla.Verdicts() {
		report.Summary.Counts[v] = result.Count(v)
	}

	if result.Metadata.TimeRange != nil {
		report.Metadata.TimeRange = &TimeRange{
			Start: result.Metadata.TimeRange.Start,
			End:   result.Metadata.TimeRange.End,
		}
	}

	return report
}

func byApplication(results []*sla.Result) []ApplicationSummary {
	index := make(map[string]*ApplicationSummary)
	for _, res := range results {
		s, ok := index[res.Application]
		if !ok {
			s = &ApplicationSummary{Application: res.Application}
			index[res.Application] = s
		}
		switch res.Verdict {
		case sla.VerdictCompliant:
			s.Compliant++
		case sla.VerdictNonCompliant:
			s.NonCompliant++
		default:
			s.Unmeasured++
		}
	}

	out := make([]ApplicationSummary, 0, len(index))
	for _, s := range index {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Application < out[j].Application })
	return out
}

// HasNonCompliant returns true if any incident breached its SLA.
func (r *Report) HasNonCompliant() bool {
	return r.Summary.Counts[sla.VerdictNonCompliant] > 0
}

// Measured returns the number of compliant and non-compliant incidents.
func (r *Report) Measured() int {
	return r.Summary.Counts[sla.VerdictCompliant] + r.Summary.Counts[sla.VerdictNonCompliant]
}

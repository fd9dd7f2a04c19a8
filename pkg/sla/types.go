// Package sla evaluates incidents against SLA rules: it walks an incident's
// activity log, accumulates the business time during which the incident
// was waiting on a resolver, and compares it to the target for the
// incident's severity and application criticality.
package sla

import (
	"time"

	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/parser"
)

// Incident is the read-only snapshot of an incident the evaluator needs.
type Incident struct {
	// ID is the storage row id, if any.
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`

	// Ref is the human-facing incident label, e.g. "INC000123".
	Ref string `json:"ref" yaml:"ref"`

	SeverityID    catalog.ID `json:"severity_id,omitempty" yaml:"severity_id,omitempty"`
	SeverityLabel string     `json:"severity,omitempty" yaml:"severity,omitempty"`

	ApplicationID   catalog.ID `json:"application_id,omitempty" yaml:"application_id,omitempty"`
	ApplicationName string     `json:"application,omitempty" yaml:"application,omitempty"`

	// CriticalityID is the criticality of the incident's application.
	CriticalityID    catalog.ID `json:"criticality_id,omitempty" yaml:"criticality_id,omitempty"`
	CriticalityLabel string     `json:"criticality,omitempty" yaml:"criticality,omitempty"`

	// BlockID is the organizational block the incident belongs to.
	BlockID catalog.ID `json:"block_id,omitempty" yaml:"block_id,omitempty"`

	ResolverGroupID catalog.ID `json:"resolver_group_id,omitempty" yaml:"resolver_group_id,omitempty"`

	// ResolvedAt is the last resolution date, used for filtering and reports.
	ResolvedAt time.Time `json:"resolved_at,omitzero" yaml:"resolved_at,omitempty"`

	// Log is the raw activity log text.
	Log string `json:"log" yaml:"log"`
}

// Fill completes missing labels and the application criticality from cat.
// Ids already set on the incident are never replaced.
func (i *Incident) Fill(cat *catalog.Catalog) {
	if cat == nil {
		return
	}

	if i.SeverityLabel == "" {
		if l, ok := cat.SeverityLabel(i.SeverityID); ok {
			i.SeverityLabel = l
		}
	}

	if app, ok := cat.Application(i.ApplicationID); ok {
		if i.ApplicationName == "" {
			i.ApplicationName = app.Name
		}
		if !i.CriticalityID.Valid() {
			i.CriticalityID = app.CriticalityID
		}
	}

	if i.CriticalityLabel == "" {
		if l, ok := cat.CriticalityLabel(i.CriticalityID); ok {
			i.CriticalityLabel = l
		}
	}
}

// Verdict is the outcome of evaluating one incident.
type Verdict string

const (
	// VerdictNotApplicable marks incidents excluded from SLA measurement.
	VerdictNotApplicable Verdict = "not_applicable"

	// VerdictMissingData marks incidents lacking severity, application or
	// application criticality.
	VerdictMissingData Verdict = "missing_data"

	// VerdictNoData marks incidents whose log yielded no entries.
	VerdictNoData Verdict = "no_data"

	// VerdictNoRule marks incidents without an SLA rule for their
	// severity and criticality.
	VerdictNoRule Verdict = "no_rule_defined"

	VerdictCompliant    Verdict = "compliant"
	VerdictNonCompliant Verdict = "non_compliant"

	// VerdictError marks incidents whose evaluation failed unexpectedly.
	VerdictError Verdict = "error"
)

// Verdicts lists every verdict in reporting order.
func Verdicts() []Verdict {
	return []Verdict{
		VerdictCompliant,
		VerdictNonCompliant,
		VerdictNoRule,
		VerdictNoData,
		VerdictMissingData,
		VerdictNotApplicable,
		VerdictError,
	}
}

// Measured reports whether the verdict compared a total against a target.
func (v Verdict) Measured() bool {
	return v == VerdictCompliant || v == VerdictNonCompliant
}

// NotAvailable stands in for absent text values in results.
const NotAvailable = "N/A"

// SegmentOutcome classifies one pair of consecutive log entries.
type SegmentOutcome string

const (
	// SegmentCounted means the segment's business time was added.
	SegmentCounted SegmentOutcome = "counted"

	// SegmentNotResolver means the closing entry was not written by a resolver.
	SegmentNotResolver SegmentOutcome = "not_resolver"

	// SegmentPaused means the clock was paused by the pause keyword.
	SegmentPaused SegmentOutcome = "paused"

	// SegmentOversized means the segment would have counted but spans more
	// than the configured maximum; it contributes nothing.
	SegmentOversized SegmentOutcome = "oversized"
)

// Segment is the interval between two consecutive log entries.
type Segment struct {
	Index    int
	From     parser.Entry
	To       parser.Entry
	Outcome  SegmentOutcome
	Duration time.Duration
}

// SegmentStats counts segments by outcome.
type SegmentStats struct {
	Counted     int `json:"counted"`
	NotResolver int `json:"not_resolver"`
	Paused      int `json:"paused"`
	Oversized   int `json:"oversized"`
}

func (s *SegmentStats) add(o SegmentOutcome) {
	switch o {
	case SegmentCounted:
		s.Counted++
	case SegmentNotResolver:
		s.NotResolver++
	case SegmentPaused:
		s.Paused++
	case SegmentOversized:
		s.Oversized++
	}
}

// Result is the evaluation output for one incident. Every field is always
// populated: absent durations are zero and absent text is "N/A".
type Result struct {
	IncidentID  int64     `json:"incident_id,omitempty"`
	Ref         string    `json:"incident"`
	Severity    string    `json:"severity"`
	Application string    `json:"application"`
	Criticality string    `json:"criticality"`
	ResolvedAt  time.Time `json:"resolved_at,omitzero"`

	Verdict Verdict `json:"verdict"`

	Total        time.Duration `json:"-"`
	TotalSeconds int64         `json:"total_seconds"`
	TotalHMS     string        `json:"total_hms"`

	Target        time.Duration `json:"-"`
	TargetSeconds int64         `json:"target_seconds"`
	TargetHMS     string        `json:"target_hms"`

	LastResponder   string       `json:"last_responder"`
	Exempt          bool         `json:"exempt"`
	FallbackApplied bool         `json:"fallback_applied"`
	Entries         int          `json:"entries"`
	Segments        SegmentStats `json:"segments"`

	MissingFields []string `json:"missing_fields,omitempty"`
	Diagnostics   []string `json:"diagnostics,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// NewResult returns a result for inc with every field at its absent value.
func NewResult(inc *Incident) *Result {
	r := &Result{
		IncidentID:    inc.ID,
		Ref:           inc.Ref,
		Severity:      orNA(inc.SeverityLabel),
		Application:   orNA(inc.ApplicationName),
		Criticality:   orNA(inc.CriticalityLabel),
		ResolvedAt:    inc.ResolvedAt,
		TargetHMS:     NotAvailable,
		LastResponder: NotAvailable,
	}
	r.SetTotal(0)
	return r
}

// SetTotal records the management time.
func (r *Result) SetTotal(d time.Duration) {
	r.Total = d
	r.TotalSeconds = int64(d / time.Second)
	r.TotalHMS = FormatHMS(d)
}

// SetTarget records the SLA target.
func (r *Result) SetTarget(d time.Duration) {
	r.Target = d
	r.TargetSeconds = int64(d / time.Second)
	r.TargetHMS = FormatHMS(d)
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}

// RuleKey selects an SLA rule.
type RuleKey struct {
	Severity    catalog.ID
	Criticality catalog.ID
}

// RuleTable maps severity and criticality to the maximum allowed
// management time. A missing key means no SLA is defined.
type RuleTable map[RuleKey]time.Duration

// Lookup returns the target for a severity and criticality.
func (t RuleTable) Lookup(severity, criticality catalog.ID) (time.Duration, bool) {
	d, ok := t[RuleKey{Severity: severity, Criticality: criticality}]
	return d, ok
}

// Sentinels are the configured values that exempt or exclude incidents.
type Sentinels struct {
	// ExcludedBlock excludes incidents of this organizational block.
	ExcludedBlock catalog.ID

	// ExcludedResolverGroup excludes incidents of this resolver group.
	ExcludedResolverGroup catalog.ID

	// AlwaysOnSeverity is the severity label measured around the clock,
	// compared after normalization.
	AlwaysOnSeverity string
}

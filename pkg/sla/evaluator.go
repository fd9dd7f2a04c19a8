package sla

import (
	"errors"
	"time"

	"github.com/ccollicutt/slalog/pkg/calendar"
	"github.com/ccollicutt/slalog/pkg/catalog"
	"github.com/ccollicutt/slalog/pkg/parser"
	"github.com/ccollicutt/slalog/pkg/textnorm"
)

// Defaults for evaluator options.
const (
	DefaultFallback       = 20 * time.Minute
	DefaultPauseKeyword   = "pendiente"
	DefaultMaxSegmentSpan = 366 * 24 * time.Hour
)

// Configuration defects reported by Validate.
var (
	ErrNoResolvers    = errors.New("no resolvers configured")
	ErrNoRules        = errors.New("no SLA rules configured")
	ErrSentinelsUnset = errors.New("excluded block and resolver group must both be set")
	ErrAlwaysOnUnset  = errors.New("always-on severity label is not set")
	ErrNoCalendar     = errors.New("no business calendar configured")
	ErrNoPauseKeyword = errors.New("pause keyword is empty")
)

// Lookups is the catalog view the evaluator reads.
type Lookups interface {
	IsResolver(name string) bool
	SeverityLabel(id catalog.ID) (string, bool)
	Resolvers() []string
}

// Evaluator applies SLA rules to incidents. It holds only read-only state
// and may be shared by concurrent callers.
type Evaluator struct {
	cal     *calendar.Calendar
	rules   RuleTable
	lookups Lookups
	parser  *parser.Parser

	sentinels    Sentinels
	observer     Observer
	fallback     time.Duration
	pauseKeyword string
	targetPause  bool
	maxSpan      time.Duration
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSentinels sets the exclusion and always-on values.
func WithSentinels(s Sentinels) Option {
	return func(e *Evaluator) {
		e.sentinels = s
	}
}

// WithObserver sets the receiver of segment and verdict events.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithFallback sets the management time used when an incident with log
// entries accumulates none.
func WithFallback(d time.Duration) Option {
	return func(e *Evaluator) {
		e.fallback = d
	}
}

// WithPauseKeyword sets the word that pauses the clock when it appears in a
// segment's opening message.
func WithPauseKeyword(k string) Option {
	return func(e *Evaluator) {
		e.pauseKeyword = textnorm.Normalize(k)
	}
}

// WithTargetPause makes the pause keyword in a segment's closing message
// pause the clock as well.
func WithTargetPause(v bool) Option {
	return func(e *Evaluator) {
		e.targetPause = v
	}
}

// WithMaxSegmentSpan sets the longest segment that may contribute time.
func WithMaxSegmentSpan(d time.Duration) Option {
	return func(e *Evaluator) {
		e.maxSpan = d
	}
}

// WithParser sets the log parser, which fixes the timestamp location.
func WithParser(p *parser.Parser) Option {
	return func(e *Evaluator) {
		if p != nil {
			e.parser = p
		}
	}
}

// NewEvaluator creates an evaluator. The parser defaults to the calendar's
// location.
func NewEvaluator(cal *calendar.Calendar, rules RuleTable, lookups Lookups, opts ...Option) *Evaluator {
	e := &Evaluator{
		cal:          cal,
		rules:        rules,
		lookups:      lookups,
		observer:     NopObserver{},
		fallback:     DefaultFallback,
		pauseKeyword: DefaultPauseKeyword,
		maxSpan:      DefaultMaxSegmentSpan,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.parser == nil {
		var loc *time.Location
		if cal != nil {
			loc = cal.Location()
		}
		e.parser = parser.New(loc)
	}

	return e
}

// Validate reports configuration defects that must abort a batch before any
// incident is evaluated.
func (e *Evaluator) Validate() error {
	if e.cal == nil {
		return ErrNoCalendar
	}
	if err := e.cal.Validate(); err != nil {
		return err
	}
	if len(e.rules) == 0 {
		return ErrNoRules
	}
	if e.lookups == nil || len(e.lookups.Resolvers()) == 0 {
		return ErrNoResolvers
	}
	if !e.sentinels.ExcludedBlock.Valid() || !e.sentinels.ExcludedResolverGroup.Valid() {
		return ErrSentinelsUnset
	}
	if textnorm.Normalize(e.sentinels.AlwaysOnSeverity) == "" {
		return ErrAlwaysOnUnset
	}
	if e.pauseKeyword == "" {
		return ErrNoPauseKeyword
	}
	return nil
}

// Parser returns the parser used for activity logs.
func (e *Evaluator) Parser() *parser.Parser {
	return e.parser
}

// Evaluate computes the verdict for one incident. It never fails: every
// defect in the incident maps to a verdict.
func (e *Evaluator) Evaluate(inc *Incident) *Result {
	res := NewResult(inc)

	if e.excluded(inc) {
		res.Verdict = VerdictNotApplicable
		return e.finish(inc, res)
	}

	if missing := missingFields(inc); len(missing) > 0 {
		res.Verdict = VerdictMissingData
		res.MissingFields = missing
		return e.finish(inc, res)
	}

	entries, diags := e.parser.Parse(inc.Log, inc.Ref)
	res.Entries = len(entries)
	for _, d := range diags {
		res.Diagnostics = append(res.Diagnostics, d.String())
	}

	exempt := textnorm.Equal(e.severityLabel(inc), e.sentinels.AlwaysOnSeverity)
	res.Exempt = exempt

	var total time.Duration
	for i := 0; i+1 < len(entries); i++ {
		seg := e.segment(i, entries[i], entries[i+1], exempt)
		res.Segments.add(seg.Outcome)
		total += seg.Duration
		e.observer.OnSegmentEvaluated(inc, seg)
	}

	if total == 0 && !exempt && len(entries) > 0 {
		total = e.fallback
		res.FallbackApplied = true
	}
	res.SetTotal(total)
	res.LastResponder = e.lastResponder(entries)

	if len(entries) == 0 {
		res.Verdict = VerdictNoData
		return e.finish(inc, res)
	}

	target, ok := e.rules.Lookup(inc.SeverityID, inc.CriticalityID)
	if !ok {
		res.Verdict = VerdictNoRule
		return e.finish(inc, res)
	}
	res.SetTarget(target)

	if total <= target {
		res.Verdict = VerdictCompliant
	} else {
		res.Verdict = VerdictNonCompliant
	}
	return e.finish(inc, res)
}

func (e *Evaluator) finish(inc *Incident, res *Result) *Result {
	e.observer.OnVerdict(inc, res)
	return res
}

func (e *Evaluator) excluded(inc *Incident) bool {
	s := e.sentinels
	return (s.ExcludedBlock.Valid() && inc.BlockID == s.ExcludedBlock) ||
		(s.ExcludedResolverGroup.Valid() && inc.ResolverGroupID == s.ExcludedResolverGroup)
}

// missingFields names the required attributes the incident lacks. The
// criticality is only checked when an application is present.
func missingFields(inc *Incident) []string {
	var missing []string
	if !inc.SeverityID.Valid() {
		missing = append(missing, "severity")
	}
	if !inc.ApplicationID.Valid() {
		missing = append(missing, "application")
	} else if !inc.CriticalityID.Valid() {
		missing = append(missing, "application_criticality")
	}
	return missing
}

func (e *Evaluator) severityLabel(inc *Incident) string {
	if inc.SeverityLabel != "" {
		return inc.SeverityLabel
	}
	if e.lookups != nil {
		if l, ok := e.lookups.SeverityLabel(inc.SeverityID); ok {
			return l
		}
	}
	return ""
}

func (e *Evaluator) isResolver(actor string) bool {
	return e.lookups != nil && e.lookups.IsResolver(actor)
}

func (e *Evaluator) segment(i int, from, to parser.Entry, exempt bool) Segment {
	seg := Segment{Index: i, From: from, To: to}

	responded := e.isResolver(to.Actor)
	paused := textnorm.Contains(from.Message, e.pauseKeyword)
	if e.targetPause && !paused {
		paused = textnorm.Contains(to.Message, e.pauseKeyword)
	}

	switch {
	case !responded:
		seg.Outcome = SegmentNotResolver
	case paused:
		seg.Outcome = SegmentPaused
	case e.maxSpan > 0 && to.Time.Sub(from.Time) > e.maxSpan:
		seg.Outcome = SegmentOversized
	default:
		seg.Outcome = SegmentCounted
		seg.Duration = e.cal.EffectiveDuration(from.Time, to.Time, exempt)
	}

	return seg
}

func (e *Evaluator) lastResponder(entries []parser.Entry) string {
	for i := len(entries) - 1; i >= 0; i-- {
		if e.isResolver(entries[i].Actor) {
			return entries[i].Actor
		}
	}
	return NotAvailable
}

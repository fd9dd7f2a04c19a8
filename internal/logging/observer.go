package logging

import (
	"context"
	"log/slog"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// Observer writes segment and verdict events to a slog logger. Segments
// are logged at debug, verdicts at info and dropped log entries at warn.
type Observer struct {
	logger *slog.Logger
}

// NewObserver returns an observer logging to l, or to the default logger
// when l is nil.
func NewObserver(l *slog.Logger) *Observer {
	if l == nil {
		l = slog.Default()
	}
	return &Observer{logger: l}
}

// OnSegmentEvaluated logs one segment.
func (o *Observer) OnSegmentEvaluated(inc *sla.Incident, seg sla.Segment) {
	if !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	o.logger.Debug("segment",
		"incident", inc.Ref,
		"index", seg.Index,
		"from", seg.From.Time,
		"to", seg.To.Time,
		"actor", seg.To.Actor,
		"outcome", string(seg.Outcome),
		"duration", sla.FormatHMS(seg.Duration),
	)
}

// OnVerdict logs the result of one incident.
func (o *Observer) OnVerdict(inc *sla.Incident, res *sla.Result) {
	for _, d := range res.Diagnostics {
		o.logger.Warn("dropped log entry", "incident", inc.Ref, "detail", d)
	}

	attrs := []any{
		"incident", inc.Ref,
		"verdict", string(res.Verdict),
		"total", res.TotalHMS,
		"target", res.TargetHMS,
		"last_responder", res.LastResponder,
	}
	if res.FallbackApplied {
		attrs = append(attrs, "fallback", true)
	}
	if len(res.MissingFields) > 0 {
		attrs = append(attrs, "missing", res.MissingFields)
	}

	if res.Verdict == sla.VerdictError {
		o.logger.Error("incident evaluation failed", append(attrs, "error", res.Error)...)
		return
	}
	o.logger.Info("incident evaluated", attrs...)
}

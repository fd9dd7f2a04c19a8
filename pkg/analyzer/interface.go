package analyzer

import (
	"context"

	"github.com/ccollicutt/slalog/pkg/sla"
)

// IncidentSource provides an iterator over incident snapshots.
// Implementations must be safe for sequential access (not concurrent).
type IncidentSource interface {
	// Next returns the next incident.
	// Returns io.EOF when no more incidents are available.
	Next(ctx context.Context) (*sla.Incident, error)

	// Close releases any resources held by the source.
	Close() error
}

// Evaluator computes a verdict for one incident.
type Evaluator interface {
	// Validate reports configuration defects that must abort the batch.
	Validate() error

	// Evaluate returns the result for one incident.
	Evaluate(inc *sla.Incident) *sla.Result
}

// ResultSaver persists the derived fields of a result.
type ResultSaver interface {
	SaveResult(ctx context.Context, res *sla.Result) error
}

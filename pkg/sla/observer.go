package sla

// Observer receives evaluation events. Batches call observers from several
// goroutines at once, so implementations must be safe for concurrent use.
type Observer interface {
	// OnSegmentEvaluated is called for every pair of consecutive entries.
	OnSegmentEvaluated(inc *Incident, seg Segment)

	// OnVerdict is called once per incident, early exits included.
	OnVerdict(inc *Incident, res *Result)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnSegmentEvaluated(*Incident, Segment) {}
func (NopObserver) OnVerdict(*Incident, *Result)          {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnSegmentEvaluated(inc *Incident, seg Segment) {
	for _, o := range m {
		o.OnSegmentEvaluated(inc, seg)
	}
}

func (m MultiObserver) OnVerdict(inc *Incident, res *Result) {
	for _, o := range m {
		o.OnVerdict(inc, res)
	}
}

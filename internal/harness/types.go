package harness

import (
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
)

// TraceEvent is one propagated event of a scenario run.
type TraceEvent struct {
	Step       int      `json:"step"`
	Seq        int64    `json:"seq"`
	Entity     string   `json:"entity"`
	Mask       string   `json:"mask"`
	Properties []string `json:"properties,omitempty"`
	Depth      int      `json:"depth"`
	Channel    int64    `json:"channel"`
}

func newTraceEvent(step int, entry engine.TraceEntry) TraceEvent {
	ev := entry.Event
	return TraceEvent{
		Step:       step,
		Seq:        entry.Seq,
		Entity:     ev.Source.Key().String(),
		Mask:       ev.Mask.String(),
		Properties: ev.Properties,
		Depth:      ev.Depth,
		Channel:    ev.ChannelID,
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall success.
	Pass bool `json:"pass"`

	// Marks is the publish queue after the last step.
	Marks []ir.DirtyMark `json:"marks"`

	// Trace contains every propagated event in order.
	Trace []TraceEvent `json:"trace"`

	// Transactions are the committed transaction records.
	Transactions []ir.TxRecord `json:"transactions"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Stats sums the counters of every committed transaction.
func (r *Result) Stats() ir.TxStats {
	var s ir.TxStats
	for _, tx := range r.Transactions {
		s.Events += tx.Stats.Events
		s.Marks += tx.Stats.Marks
		s.DroppedDepth += tx.Stats.DroppedDepth
		s.SkippedCycles += tx.Stats.SkippedCycles
		s.SkippedStale += tx.Stats.SkippedStale
	}
	return s
}

package scheduler

import (
	"github.com/dougsko/rigsync/pkg/state"
)

// Outcome is what happened to one pending command
type Outcome int

const (
	Applied Outcome = iota
	Rejected
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// CommandOutcome reports one application attempt. Err is the device error
// for Rejected and capability.ErrUnsupported for Skipped.
type CommandOutcome struct {
	Field   state.Field
	Value   any
	Outcome Outcome
	Err     error
}

// TickReport describes one completed tick
type TickReport struct {
	Priority bool
	// Plan is the plan the poll stage executed, or the held plan when the
	// poll stage did not run
	Plan     PollPlan
	Polled   []state.Category
	Outcomes []CommandOutcome
	Stale    state.CategorySet
}

// Structural reports whether a command applied this tick changed the
// device layout enough to need a full refresh
func (r TickReport) Structural() bool {
	for _, o := range r.Outcomes {
		if o.Outcome == Applied && isStructural(o.Field) {
			return true
		}
	}
	return false
}

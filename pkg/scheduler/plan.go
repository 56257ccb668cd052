package scheduler

import (
	"github.com/dougsko/rigsync/pkg/state"
)

// PollPlan says what the next poll stage refreshes: every category, or a
// single one. The zero value is All.
type PollPlan struct {
	cat state.Category
}

// All refreshes every category
func All() PollPlan { return PollPlan{} }

// CategoryPlan refreshes only c
func CategoryPlan(c state.Category) PollPlan { return PollPlan{cat: c} }

// IsAll reports whether the plan is a full refresh
func (p PollPlan) IsAll() bool { return !p.cat.Valid() }

// Category returns the single category of the plan, or 0 for All
func (p PollPlan) Category() state.Category {
	if p.IsAll() {
		return 0
	}
	return p.cat
}

// Next is the plan after this one has run. All is followed by the first
// category and the last category wraps round to the first.
func (p PollPlan) Next() PollPlan {
	if p.IsAll() {
		return CategoryPlan(1)
	}
	return CategoryPlan(p.cat%state.NumCategories + 1)
}

// Cursor is the legacy integer form: 0 for All, i for Category(i)
func (p PollPlan) Cursor() int {
	return int(p.Category())
}

func (p PollPlan) String() string {
	if p.IsAll() {
		return "all"
	}
	return p.cat.String()
}

// MarshalText writes the plan as its String form
func (p PollPlan) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

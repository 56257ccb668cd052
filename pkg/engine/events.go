package engine

import (
	"fmt"
	"time"

	"github.com/dougsko/rigsync/pkg/scheduler"
	"github.com/dougsko/rigsync/pkg/state"
)

// EventKind classifies engine events
type EventKind string

const (
	EventCommand    EventKind = "command"
	EventFrequency  EventKind = "frequency"
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
)

// Event is a record of something the device context did, for the event
// store and other observers
type Event struct {
	ID       string    `json:"id,omitempty"`
	Time     time.Time `json:"time"`
	Kind     EventKind `json:"kind"`
	Field    string    `json:"field,omitempty"`
	Value    string    `json:"value,omitempty"`
	Outcome  string    `json:"outcome,omitempty"`
	Error    string    `json:"error,omitempty"`
	FreqMain int64     `json:"freq_main,omitempty"`
	Mode     string    `json:"mode,omitempty"`
	Band     string    `json:"band,omitempty"`
}

func commandEvent(o scheduler.CommandOutcome, obs state.Observed) Event {
	ev := Event{
		Time:     time.Now().UTC(),
		Kind:     EventCommand,
		Field:    o.Field.String(),
		Outcome:  o.Outcome.String(),
		FreqMain: obs.FreqMain,
		Mode:     string(obs.ModeMain),
	}
	if o.Value != nil {
		ev.Value = fmt.Sprint(o.Value)
	}
	if o.Err != nil {
		ev.Error = o.Err.Error()
	}
	return ev
}

// emit queues ev without blocking the device context
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Warn(component, "event buffer full, dropping event", map[string]interface{}{
			"kind":  string(ev.Kind),
			"field": ev.Field,
		})
	}
}

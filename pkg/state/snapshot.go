package state

import (
	"time"

	"github.com/dougsko/rigsync/pkg/rig"
)

// Snapshot is an immutable copy of the device state published after every
// tick. Readers must not modify it.
type Snapshot struct {
	Seq          uint64            `json:"seq"`
	Time         time.Time         `json:"time"`
	Connected    bool              `json:"connected"`
	Model        string            `json:"model,omitempty"`
	Band         string            `json:"band,omitempty"`
	Observed     Observed          `json:"observed"`
	Stale        CategorySet       `json:"stale"`
	Pending      []string          `json:"pending,omitempty"`
	Capabilities *rig.Capabilities `json:"-"`
}

// NewSnapshot builds a snapshot. caps is shared, never copied, because it
// does not change for the life of a connection.
func NewSnapshot(seq uint64, connected bool, obs Observed, stale CategorySet, pending FieldSet, caps *rig.Capabilities) *Snapshot {
	s := &Snapshot{
		Seq:          seq,
		Time:         time.Now().UTC(),
		Connected:    connected,
		Observed:     obs,
		Stale:        stale,
		Capabilities: caps,
	}
	if connected && obs.FreqMain > 0 {
		s.Band = rig.BandForFreq(obs.FreqMain).Name
	}
	if caps != nil {
		s.Model = caps.ModelName
	}
	for _, f := range pending.Fields() {
		s.Pending = append(s.Pending, f.String())
	}
	return s
}

// Disconnected is the snapshot published while no device is attached
func Disconnected(seq uint64) *Snapshot {
	return NewSnapshot(seq, false, NewObserved(), 0, 0, nil)
}

// Package capability decides, per connected device, which operations the
// scheduler may issue.
package capability

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dougsko/rigsync/pkg/rig"
)

// ErrUnsupported is carried by commands skipped because the device lacks
// the operation
var ErrUnsupported = errors.New("capability unsupported")

// Decision is the verdict for one operation
type Decision int

const (
	Unsupported Decision = iota
	Supported
	// RequiresActiveVFOOnly means the operation can only address the
	// current VFO, so it applies only when its target VFO is active
	RequiresActiveVFOOnly
)

func (d Decision) String() string {
	switch d {
	case Supported:
		return "supported"
	case RequiresActiveVFOOnly:
		return "active_vfo_only"
	default:
		return "unsupported"
	}
}

// ParseDecision parses the names written by String
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supported", "yes", "true":
		return Supported, nil
	case "unsupported", "no", "false":
		return Unsupported, nil
	case "active_vfo_only":
		return RequiresActiveVFOOnly, nil
	}
	return Unsupported, fmt.Errorf("unknown decision %q", s)
}

// OpKind groups operations that share a capability rule
type OpKind string

const (
	KindGetPower   OpKind = "get_power"
	KindSetPower   OpKind = "set_power"
	KindSetPTT     OpKind = "set_ptt"
	KindGetFreqSub OpKind = "get_freq_sub"
	KindSetFreqSub OpKind = "set_freq_sub"
	KindGetModeSub OpKind = "get_mode_sub"
	KindSetModeSub OpKind = "set_mode_sub"
	KindSetMode    OpKind = "set_mode"
	KindBandSelect OpKind = "band_select"
	KindVFOOp      OpKind = "vfo_op"
	KindGetAntenna OpKind = "get_antenna"
	KindSetAntenna OpKind = "set_antenna"
	KindGetLevel   OpKind = "get_level"
	KindSetLevel   OpKind = "set_level"
	KindGetFunc    OpKind = "get_func"
	KindSetFunc    OpKind = "set_func"
	KindRIT        OpKind = "rit"
	KindXIT        OpKind = "xit"
	KindRepeater   OpKind = "repeater"
	KindTone       OpKind = "tone"
	KindMeter      OpKind = "meter"
	KindRaw        OpKind = "raw"
)

// Operation is one device call the scheduler may make. Arg names the level,
// function, VFO operation, mode, meter or tone type where the kind needs one.
type Operation struct {
	Kind OpKind
	Arg  string
}

func (op Operation) String() string {
	if op.Arg == "" {
		return string(op.Kind)
	}
	return string(op.Kind) + " " + op.Arg
}

// ParseOperation parses the form written by String ("get_level AGC")
func ParseOperation(s string) (Operation, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), " ")
	k := OpKind(strings.ToLower(kind))
	if _, ok := rules[k]; !ok {
		return Operation{}, fmt.Errorf("unknown operation %q", s)
	}
	return Operation{Kind: k, Arg: strings.TrimSpace(arg)}, nil
}

// Operation constructors
var (
	GetPower   = Operation{Kind: KindGetPower}
	SetPower   = Operation{Kind: KindSetPower}
	SetPTT     = Operation{Kind: KindSetPTT}
	GetFreqSub = Operation{Kind: KindGetFreqSub}
	SetFreqSub = Operation{Kind: KindSetFreqSub}
	GetModeSub = Operation{Kind: KindGetModeSub}
	SetModeSub = Operation{Kind: KindSetModeSub}
	BandSelect = Operation{Kind: KindBandSelect}
	GetAntenna = Operation{Kind: KindGetAntenna}
	SetAntenna = Operation{Kind: KindSetAntenna}
	RIT        = Operation{Kind: KindRIT}
	XIT        = Operation{Kind: KindXIT}
	Repeater   = Operation{Kind: KindRepeater}
	Raw        = Operation{Kind: KindRaw}
)

func SetMode(m rig.Mode) Operation { return Operation{Kind: KindSetMode, Arg: string(m)} }
func VFOOp(op rig.VFOOp) Operation { return Operation{Kind: KindVFOOp, Arg: string(op)} }
func GetLevel(l rig.Level) Operation { return Operation{Kind: KindGetLevel, Arg: string(l)} }
func SetLevel(l rig.Level) Operation { return Operation{Kind: KindSetLevel, Arg: string(l)} }
func GetFunc(f rig.Func) Operation { return Operation{Kind: KindGetFunc, Arg: string(f)} }
func SetFunc(f rig.Func) Operation { return Operation{Kind: KindSetFunc, Arg: string(f)} }
func Tone(t rig.ToneType) Operation { return Operation{Kind: KindTone, Arg: string(t)} }
func Meter(m rig.Meter) Operation { return Operation{Kind: KindMeter, Arg: string(m)} }

// Rule decides an operation kind from the probed capabilities
type Rule func(c *rig.Capabilities, arg string) Decision

func flag(ok bool) Decision {
	if ok {
		return Supported
	}
	return Unsupported
}

func subVFO(addressable bool) Decision {
	if addressable {
		return Supported
	}
	return RequiresActiveVFOOnly
}

var rules = map[OpKind]Rule{
	KindGetPower:   func(c *rig.Capabilities, _ string) Decision { return flag(c.CanGetPower) },
	KindSetPower:   func(c *rig.Capabilities, _ string) Decision { return flag(c.SupportsPowerToggle) },
	KindSetPTT:     func(c *rig.Capabilities, _ string) Decision { return flag(c.SupportsPTT) },
	KindGetFreqSub: func(c *rig.Capabilities, _ string) Decision { return subVFO(c.SubVFOFreqAddressable) },
	KindSetFreqSub: func(c *rig.Capabilities, _ string) Decision { return subVFO(c.SubVFOFreqAddressable) },
	KindGetModeSub: func(c *rig.Capabilities, _ string) Decision { return subVFO(c.SubVFOModeAddressable) },
	KindSetModeSub: func(c *rig.Capabilities, _ string) Decision { return subVFO(c.SubVFOModeAddressable) },
	KindSetMode: func(c *rig.Capabilities, arg string) Decision {
		return flag(arg == "" || len(c.Modes) == 0 || slices.Contains(c.Modes, rig.Mode(arg)))
	},
	KindBandSelect: func(c *rig.Capabilities, _ string) Decision { return flag(c.SupportsBandSelect) },
	KindVFOOp:      func(c *rig.Capabilities, arg string) Decision { return flag(c.VFOOps.Has(rig.VFOOp(arg))) },
	KindGetAntenna: func(c *rig.Capabilities, _ string) Decision { return flag(c.CanGetAntenna) },
	KindSetAntenna: func(c *rig.Capabilities, _ string) Decision { return flag(c.CanSetAntenna) },
	KindGetLevel:   func(c *rig.Capabilities, arg string) Decision { return flag(c.GetLevels.Has(rig.Level(arg))) },
	KindSetLevel:   func(c *rig.Capabilities, arg string) Decision { return flag(c.SetLevels.Has(rig.Level(arg))) },
	KindGetFunc:    func(c *rig.Capabilities, arg string) Decision { return flag(c.GetFuncs.Has(rig.Func(arg))) },
	KindSetFunc:    func(c *rig.Capabilities, arg string) Decision { return flag(c.SetFuncs.Has(rig.Func(arg))) },
	KindRIT:        func(c *rig.Capabilities, _ string) Decision { return flag(c.CanRIT) },
	KindXIT:        func(c *rig.Capabilities, _ string) Decision { return flag(c.CanXIT) },
	KindRepeater:   func(c *rig.Capabilities, _ string) Decision { return flag(c.CanRepeater) },
	KindTone: func(c *rig.Capabilities, arg string) Decision {
		switch rig.ToneType(arg) {
		case rig.ToneCTCSS, rig.ToneCTCSSSql:
			return flag(len(c.CTCSSTones) > 0)
		case rig.ToneDCS:
			return flag(c.CanRepeater)
		}
		return Unsupported
	},
	KindMeter: func(c *rig.Capabilities, arg string) Decision { return flag(c.HasMeter(rig.Meter(arg))) },
	KindRaw:   func(c *rig.Capabilities, _ string) Decision { return flag(c.CanRaw) },
}

// Gate answers capability questions for one connection. It is immutable
// after construction and safe for concurrent reads.
type Gate struct {
	caps      rig.Capabilities
	overrides map[Operation]Decision
}

// NewGate builds the gate for a connection. Profiles matching the model
// adjust the capabilities first and then pin individual decisions.
func NewGate(caps rig.Capabilities, profiles ...Profile) *Gate {
	g := &Gate{caps: caps, overrides: make(map[Operation]Decision)}
	for _, p := range profiles {
		if !p.Matches(caps.ModelID) {
			continue
		}
		p.apply(&g.caps)
		for op, d := range p.decisions {
			g.overrides[op] = d
		}
	}
	return g
}

// Capabilities returns the effective capabilities after profile overrides
func (g *Gate) Capabilities() rig.Capabilities {
	return g.caps
}

// Decide returns the verdict for op
func (g *Gate) Decide(op Operation) Decision {
	if d, ok := g.overrides[op]; ok {
		return d
	}
	if d, ok := g.overrides[Operation{Kind: op.Kind}]; ok {
		return d
	}
	rule, ok := rules[op.Kind]
	if !ok {
		return Unsupported
	}
	return rule(&g.caps, op.Arg)
}

// Allowed reports whether op is fully supported
func (g *Gate) Allowed(op Operation) bool {
	return g.Decide(op) == Supported
}

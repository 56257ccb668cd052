package scheduler

import (
	"context"
	"fmt"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
)

// command writes one validated desired value to the device. A command
// returns capability.ErrUnsupported when the gate refuses it.
type command func(s *Scheduler, ctx context.Context, v any) error

// commandOrder is the order of the full command pass
var commandOrder = []state.Field{
	state.FieldPower,
	state.FieldModeMain, state.FieldModeSub,
	state.FieldBandwidth, state.FieldNarrow,
	state.FieldSplit,
	state.FieldVFOExchange, state.FieldVFOCopy, state.FieldVFOUp, state.FieldVFODown,
	state.FieldBandUp, state.FieldBandDown, state.FieldBand,
	state.FieldTuner, state.FieldTune,
	state.FieldAntenna,
	state.FieldAGC,
	state.FieldAttenuator,
	state.FieldPreamp,
	state.FieldRFPower, state.FieldRFGain, state.FieldAFGain, state.FieldSquelch, state.FieldMicGain, state.FieldMonitorGain,
	state.FieldNoiseBlanker, state.FieldNoiseReduction, state.FieldNRLevel, state.FieldNotch,
	state.FieldIFShift,
	state.FieldRIT, state.FieldRITOffset, state.FieldXIT, state.FieldXITOffset,
	state.FieldBreakIn, state.FieldAPF, state.FieldKeyerSpeed,
	state.FieldRepeaterShift, state.FieldRepeaterOffset, state.FieldToneType, state.FieldTone,
	state.FieldCompressor, state.FieldMonitor,
}

// isStructural reports whether applying f invalidates the whole mirror
func isStructural(f state.Field) bool {
	switch f {
	case state.FieldModeMain, state.FieldBandUp, state.FieldBandDown, state.FieldBand,
		state.FieldVFOExchange, state.FieldVFOCopy:
		return true
	}
	return false
}

func unsupported(op capability.Operation) error {
	return fmt.Errorf("%s: %w", op, capability.ErrUnsupported)
}

// require fails with ErrUnsupported unless the gate fully supports op
func (s *Scheduler) require(op capability.Operation) error {
	if !s.gate.Allowed(op) {
		return unsupported(op)
	}
	return nil
}

func setLevel(l rig.Level, conv func(any) float64) command {
	return func(s *Scheduler, ctx context.Context, v any) error {
		if err := s.require(capability.SetLevel(l)); err != nil {
			return err
		}
		return s.call(ctx, "set_level "+string(l), func(ctx context.Context) error {
			return s.rig.SetLevel(ctx, l, conv(v))
		})
	}
}

func setFunc(fn rig.Func) command {
	return func(s *Scheduler, ctx context.Context, v any) error {
		if err := s.require(capability.SetFunc(fn)); err != nil {
			return err
		}
		return s.call(ctx, "set_func "+string(fn), func(ctx context.Context) error {
			return s.rig.SetFunc(ctx, fn, v.(bool))
		})
	}
}

func vfoOp(op rig.VFOOp) command {
	return func(s *Scheduler, ctx context.Context, _ any) error {
		if err := s.require(capability.VFOOp(op)); err != nil {
			return err
		}
		return s.call(ctx, "vfo_op "+string(op), func(ctx context.Context) error {
			return s.rig.VFOOp(ctx, op)
		})
	}
}

func level(v any) float64 { return v.(float64) }
func intLevel(v any) float64 { return float64(v.(int)) }

var commands map[state.Field]command

func init() {
	commands = map[state.Field]command{
		state.FieldPTT:      setPTT,
		state.FieldFreqMain: setFreq(false),
		state.FieldFreqSub:  setFreq(true),
		state.FieldPower:    setPower,
		state.FieldModeMain: setModeMain,
		state.FieldModeSub:  setModeSub,
		state.FieldBandwidth: func(s *Scheduler, ctx context.Context, v any) error {
			return s.setPassband(ctx, v.(int))
		},
		state.FieldNarrow: func(s *Scheduler, ctx context.Context, v any) error {
			width := rig.PassbandNormal
			if v.(bool) {
				width = rig.NarrowWidth(s.obs.ModeMain)
			}
			return s.setPassband(ctx, width)
		},
		state.FieldSplit: setSplit,

		state.FieldVFOExchange: vfoOp(rig.OpExchange),
		state.FieldVFOCopy:     vfoOp(rig.OpCopy),
		state.FieldVFOUp:       vfoOp(rig.OpUp),
		state.FieldVFODown:     vfoOp(rig.OpDown),
		state.FieldBandUp:      vfoOp(rig.OpBandUp),
		state.FieldBandDown:    vfoOp(rig.OpBandDown),
		state.FieldBand:        setBand,

		state.FieldTuner: setFunc(rig.FuncTuner),
		state.FieldTune:  vfoOp(rig.OpTune),
		state.FieldAntenna: func(s *Scheduler, ctx context.Context, v any) error {
			if err := s.require(capability.SetAntenna); err != nil {
				return err
			}
			return s.call(ctx, "set_ant", func(ctx context.Context) error {
				return s.rig.SetAntenna(ctx, v.(rig.Antenna))
			})
		},
		state.FieldAGC: setLevel(rig.LevelAGC, func(v any) float64 {
			return float64(v.(rig.AGC))
		}),
		state.FieldAttenuator: setLevel(rig.LevelAttenuator, intLevel),
		state.FieldPreamp:     setLevel(rig.LevelPreamp, intLevel),

		state.FieldRFPower:     setLevel(rig.LevelRFPower, level),
		state.FieldRFGain:      setLevel(rig.LevelRF, level),
		state.FieldAFGain:      setLevel(rig.LevelAF, level),
		state.FieldSquelch:     setLevel(rig.LevelSquelch, level),
		state.FieldMicGain:     setLevel(rig.LevelMicGain, level),
		state.FieldMonitorGain: setLevel(rig.LevelMonitorGain, level),

		state.FieldNoiseBlanker:   setFunc(rig.FuncNB),
		state.FieldNoiseReduction: setFunc(rig.FuncNR),
		state.FieldNRLevel:        setLevel(rig.LevelNR, level),
		state.FieldNotch:          setFunc(rig.FuncANF),
		state.FieldIFShift:        setLevel(rig.LevelIFShift, intLevel),

		state.FieldRIT:       setClarifier(capability.RIT, rig.FuncRIT),
		state.FieldXIT:       setClarifier(capability.XIT, rig.FuncXIT),
		state.FieldRITOffset: setOffset(capability.RIT, "set_rit", rig.Rig.SetRIT),
		state.FieldXITOffset: setOffset(capability.XIT, "set_xit", rig.Rig.SetXIT),

		state.FieldBreakIn:    setBreakIn,
		state.FieldAPF:        setFunc(rig.FuncAPF),
		state.FieldKeyerSpeed: setLevel(rig.LevelKeySpeed, intLevel),

		state.FieldRepeaterShift: func(s *Scheduler, ctx context.Context, v any) error {
			if err := s.require(capability.Repeater); err != nil {
				return err
			}
			return s.call(ctx, "set_rptr_shift", func(ctx context.Context) error {
				return s.rig.SetRptrShift(ctx, v.(rig.RptrShift))
			})
		},
		state.FieldRepeaterOffset: setOffset(capability.Repeater, "set_rptr_offs", rig.Rig.SetRptrOffset),
		state.FieldToneType:       setToneType,
		state.FieldTone:           setTone,

		state.FieldCompressor: setFunc(rig.FuncComp),
		state.FieldMonitor:    setFunc(rig.FuncMonitor),
	}
}

func setPTT(s *Scheduler, ctx context.Context, v any) error {
	if err := s.require(capability.SetPTT); err != nil {
		return err
	}
	return s.call(ctx, "set_ptt", func(ctx context.Context) error {
		return s.rig.SetPTT(ctx, v.(bool))
	})
}

func setFreq(sub bool) command {
	return func(s *Scheduler, ctx context.Context, v any) error {
		vfo, ok := s.vfoFor(sub, capability.SetFreqSub)
		if !ok {
			return unsupported(capability.SetFreqSub)
		}
		return s.call(ctx, "set_freq "+string(vfo), func(ctx context.Context) error {
			return s.rig.SetFreq(ctx, vfo, v.(int64))
		})
	}
}

func setPower(s *Scheduler, ctx context.Context, v any) error {
	if err := s.require(capability.SetPower); err != nil {
		return err
	}
	return s.call(ctx, "set_powerstat", func(ctx context.Context) error {
		return s.rig.SetPowerStat(ctx, v.(rig.PowerStatus))
	})
}

func setModeMain(s *Scheduler, ctx context.Context, v any) error {
	m := v.(rig.Mode)
	if err := s.require(capability.SetMode(m)); err != nil {
		return err
	}
	vfo, ok := s.vfoFor(false, capability.SetModeSub)
	if !ok {
		return unsupported(capability.SetModeSub)
	}
	return s.call(ctx, "set_mode "+string(vfo), func(ctx context.Context) error {
		return s.rig.SetMode(ctx, vfo, m, rig.PassbandNormal)
	})
}

func setModeSub(s *Scheduler, ctx context.Context, v any) error {
	m := v.(rig.Mode)
	if err := s.require(capability.SetMode(m)); err != nil {
		return err
	}
	vfo, ok := s.vfoFor(true, capability.SetModeSub)
	if !ok {
		return unsupported(capability.SetModeSub)
	}
	return s.call(ctx, "set_mode "+string(vfo), func(ctx context.Context) error {
		return s.rig.SetMode(ctx, vfo, m, rig.PassbandNoChange)
	})
}

// setPassband rewrites the main VFO mode with a new filter width
func (s *Scheduler) setPassband(ctx context.Context, width int) error {
	mode := s.obs.ModeMain
	if mode == rig.ModeNone {
		return fmt.Errorf("passband change: main mode not yet known")
	}
	if err := s.require(capability.SetMode(mode)); err != nil {
		return err
	}
	vfo, ok := s.vfoFor(false, capability.SetModeSub)
	if !ok {
		return unsupported(capability.SetModeSub)
	}
	return s.call(ctx, "set_mode "+string(vfo), func(ctx context.Context) error {
		return s.rig.SetMode(ctx, vfo, mode, width)
	})
}

// setSplit moves the transmit VFO with the split flag
func setSplit(s *Scheduler, ctx context.Context, v any) error {
	tx := s.caps.MainVFO
	if v.(bool) {
		tx = s.caps.SubVFO
	}
	return s.call(ctx, "set_split_vfo", func(ctx context.Context) error {
		return s.rig.SetSplitVFO(ctx, v.(bool), tx)
	})
}

func setBand(s *Scheduler, ctx context.Context, v any) error {
	band, err := rig.LookupBand(v.(string))
	if err != nil {
		return err
	}
	if band.Select < 0 {
		return unsupported(capability.BandSelect)
	}
	if err := s.require(capability.BandSelect); err != nil {
		return err
	}
	return s.call(ctx, "set_band "+band.Name, func(ctx context.Context) error {
		return s.rig.SetBand(ctx, band)
	})
}

func setClarifier(op capability.Operation, fn rig.Func) command {
	return func(s *Scheduler, ctx context.Context, v any) error {
		if err := s.require(op); err != nil {
			return err
		}
		if err := s.require(capability.SetFunc(fn)); err != nil {
			return err
		}
		return s.call(ctx, "set_func "+string(fn), func(ctx context.Context) error {
			return s.rig.SetFunc(ctx, fn, v.(bool))
		})
	}
}

func setOffset(op capability.Operation, name string, set func(rig.Rig, context.Context, int) error) command {
	return func(s *Scheduler, ctx context.Context, v any) error {
		if err := s.require(op); err != nil {
			return err
		}
		return s.call(ctx, name, func(ctx context.Context) error {
			return set(s.rig, ctx, v.(int))
		})
	}
}

// setBreakIn maps the three-way break-in mode onto the semi and full
// break-in functions
func setBreakIn(s *Scheduler, ctx context.Context, v any) error {
	semi, full := false, false
	switch v.(rig.BreakIn) {
	case rig.BreakInSemi:
		semi = true
	case rig.BreakInFull:
		full = true
	}
	semiOK := s.gate.Allowed(capability.SetFunc(rig.FuncSemiBKIN))
	fullOK := s.gate.Allowed(capability.SetFunc(rig.FuncFullBKIN))
	if (semi && !semiOK) || (full && !fullOK) || (!semiOK && !fullOK) {
		return unsupported(capability.SetFunc(rig.FuncFullBKIN))
	}
	// clear the mode being left before setting the new one
	steps := []struct {
		fn rig.Func
		on bool
		ok bool
	}{
		{rig.FuncSemiBKIN, false, semiOK && !semi},
		{rig.FuncFullBKIN, false, fullOK && !full},
		{rig.FuncSemiBKIN, true, semi},
		{rig.FuncFullBKIN, true, full},
	}
	for _, st := range steps {
		if !st.ok {
			continue
		}
		fn, on := st.fn, st.on
		if err := s.call(ctx, "set_func "+string(fn), func(ctx context.Context) error {
			return s.rig.SetFunc(ctx, fn, on)
		}); err != nil {
			return err
		}
	}
	return nil
}

// toneFuncs maps tone types to the function enabling them
var toneFuncs = []struct {
	kind rig.ToneType
	fn   rig.Func
}{
	{rig.ToneBurst1750, rig.FuncTBurst},
	{rig.ToneCTCSS, rig.FuncTone},
	{rig.ToneCTCSSSql, rig.FuncTSQL},
	{rig.ToneDCS, rig.FuncCSQL},
}

func setToneType(s *Scheduler, ctx context.Context, v any) error {
	want := v.(rig.ToneType)
	var target rig.Func
	for _, tf := range toneFuncs {
		if tf.kind == want {
			target = tf.fn
		}
	}
	if target != "" {
		if err := s.require(capability.SetFunc(target)); err != nil {
			return err
		}
	}
	for _, tf := range toneFuncs {
		fn := tf.fn
		if fn == target || !s.gate.Allowed(capability.SetFunc(fn)) {
			continue
		}
		if err := s.call(ctx, "set_func "+string(fn), func(ctx context.Context) error {
			return s.rig.SetFunc(ctx, fn, false)
		}); err != nil {
			return err
		}
	}
	if target == "" {
		return nil
	}
	return s.call(ctx, "set_func "+string(target), func(ctx context.Context) error {
		return s.rig.SetFunc(ctx, target, true)
	})
}

// setTone writes the tone value for the active tone type. A DCS code is
// written when DCS is active, a CTCSS tone otherwise.
func setTone(s *Scheduler, ctx context.Context, v any) error {
	kind := s.obs.ToneType
	switch kind {
	case rig.ToneCTCSS, rig.ToneCTCSSSql, rig.ToneDCS:
	default:
		kind = rig.ToneCTCSS
	}
	if err := s.require(capability.Tone(kind)); err != nil {
		return err
	}
	return s.call(ctx, "set_tone "+string(kind), func(ctx context.Context) error {
		return s.rig.SetTone(ctx, kind, v.(int))
	})
}

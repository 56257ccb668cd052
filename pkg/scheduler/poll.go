package scheduler

import (
	"context"
	"errors"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
)

// reads tracks the calls made while refreshing one category
type reads struct {
	any    bool
	failed bool
	errs   []error
}

func (r *reads) note(err error) {
	if errors.Is(err, rig.ErrNotSupported) {
		return
	}
	r.any = true
	if err != nil {
		r.failed = true
		r.errs = append(r.errs, err)
	}
}

type reader func(s *Scheduler, ctx context.Context, r *reads)

var readers = map[state.Category]reader{
	state.CatModeBandwidth: func(s *Scheduler, ctx context.Context, r *reads) {
		vfo, ok := s.vfoFor(false, capability.GetModeSub)
		if !ok {
			return
		}
		var mode rig.Mode
		var width int
		err := s.call(ctx, "get_mode "+string(vfo), func(ctx context.Context) (err error) {
			mode, width, err = s.rig.GetMode(ctx, vfo)
			return err
		})
		r.note(err)
		if err == nil {
			s.obs.ModeMain = mode
			s.obs.Bandwidth = width
			s.obs.Narrow = width > 0 && width <= rig.NarrowWidth(mode)
		}
	},
	state.CatSplitVFO: func(s *Scheduler, ctx context.Context, r *reads) {
		var split bool
		var tx rig.VFO
		err := s.call(ctx, "get_split_vfo", func(ctx context.Context) (err error) {
			split, tx, err = s.rig.GetSplitVFO(ctx)
			return err
		})
		r.note(err)
		if err == nil {
			s.obs.Split, s.obs.TXVFO = split, tx
		}

		var active rig.VFO
		err = s.call(ctx, "get_vfo", func(ctx context.Context) (err error) {
			active, err = s.rig.GetVFO(ctx)
			return err
		})
		r.note(err)
		if err == nil {
			s.obs.ActiveVFO = active
		}
	},
	state.CatTuner: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readFunc(ctx, r, rig.FuncTuner, &s.obs.Tuner)
	},
	state.CatAntenna: func(s *Scheduler, ctx context.Context, r *reads) {
		if !s.gate.Allowed(capability.GetAntenna) {
			return
		}
		var ant rig.AntennaState
		err := s.call(ctx, "get_ant", func(ctx context.Context) (err error) {
			ant, err = s.rig.GetAntenna(ctx)
			return err
		})
		r.note(err)
		if err == nil {
			s.obs.Antenna = ant
		}
	},
	state.CatAGC: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelAGC, func(v float64) { s.obs.AGC = rig.AGC(v) })
	},
	state.CatAttenuator: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelAttenuator, func(v float64) { s.obs.Attenuator = int(v) })
	},
	state.CatPreamp: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelPreamp, func(v float64) { s.obs.Preamp = int(v) })
	},
	state.CatRFPower: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelRFPower, func(v float64) { s.obs.RFPower = v })
	},
	state.CatRFGain: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelRF, func(v float64) { s.obs.RFGain = v })
	},
	state.CatAFGain: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelAF, func(v float64) { s.obs.AFGain = v })
	},
	state.CatSquelch: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelSquelch, func(v float64) { s.obs.Squelch = v })
	},
	state.CatNoiseBlanker: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readFunc(ctx, r, rig.FuncNB, &s.obs.NoiseBlanker)
	},
	state.CatNoiseReduction: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readFunc(ctx, r, rig.FuncNR, &s.obs.NoiseReduction)
		s.readLevel(ctx, r, rig.LevelNR, func(v float64) { s.obs.NRLevel = v })
	},
	state.CatNotch: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readFunc(ctx, r, rig.FuncANF, &s.obs.Notch)
	},
	state.CatIFShift: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelIFShift, func(v float64) { s.obs.IFShift = int(v) })
	},
	state.CatClarifier: func(s *Scheduler, ctx context.Context, r *reads) {
		if s.gate.Allowed(capability.RIT) {
			s.readFunc(ctx, r, rig.FuncRIT, &s.obs.RIT)
			s.readOffset(ctx, r, "get_rit", rig.Rig.GetRIT, &s.obs.RITOffset)
		}
		if s.gate.Allowed(capability.XIT) {
			s.readFunc(ctx, r, rig.FuncXIT, &s.obs.XIT)
			s.readOffset(ctx, r, "get_xit", rig.Rig.GetXIT, &s.obs.XITOffset)
		}
	},
	state.CatCW: func(s *Scheduler, ctx context.Context, r *reads) {
		var semi, full bool
		semiRead := s.readFunc(ctx, r, rig.FuncSemiBKIN, &semi)
		fullRead := s.readFunc(ctx, r, rig.FuncFullBKIN, &full)
		if semiRead || fullRead {
			switch {
			case full:
				s.obs.BreakIn = rig.BreakInFull
			case semi:
				s.obs.BreakIn = rig.BreakInSemi
			default:
				s.obs.BreakIn = rig.BreakInOff
			}
		}
		s.readFunc(ctx, r, rig.FuncAPF, &s.obs.APF)
		s.readLevel(ctx, r, rig.LevelKeySpeed, func(v float64) { s.obs.KeyerSpeed = int(v) })
	},
	state.CatFM: func(s *Scheduler, ctx context.Context, r *reads) {
		if s.gate.Allowed(capability.Repeater) {
			var shift rig.RptrShift
			err := s.call(ctx, "get_rptr_shift", func(ctx context.Context) (err error) {
				shift, err = s.rig.GetRptrShift(ctx)
				return err
			})
			r.note(err)
			if err == nil {
				s.obs.RepeaterShift = shift
			}
			s.readOffset(ctx, r, "get_rptr_offs", rig.Rig.GetRptrOffset, &s.obs.RepeaterOffset)
		}

		toneType, known := rig.ToneNone, false
		for _, tf := range toneFuncs {
			var on bool
			if s.readFunc(ctx, r, tf.fn, &on) {
				known = true
				if on {
					toneType = tf.kind
				}
			}
		}
		if known {
			s.obs.ToneType = toneType
		}

		kind := s.obs.ToneType
		if kind != rig.ToneDCS && kind != rig.ToneCTCSSSql {
			kind = rig.ToneCTCSS
		}
		if s.gate.Allowed(capability.Tone(kind)) {
			var tone int
			err := s.call(ctx, "get_tone "+string(kind), func(ctx context.Context) (err error) {
				tone, err = s.rig.GetTone(ctx, kind)
				return err
			})
			r.note(err)
			if err == nil {
				s.obs.Tone = tone
			}
		}
	},
	state.CatMic: func(s *Scheduler, ctx context.Context, r *reads) {
		s.readLevel(ctx, r, rig.LevelMicGain, func(v float64) { s.obs.MicGain = v })
		s.readLevel(ctx, r, rig.LevelMonitorGain, func(v float64) { s.obs.MonitorGain = v })
		s.readFunc(ctx, r, rig.FuncComp, &s.obs.Compressor)
		s.readFunc(ctx, r, rig.FuncMonitor, &s.obs.Monitor)
	},
	state.CatSubMode: func(s *Scheduler, ctx context.Context, r *reads) {
		vfo, ok := s.vfoFor(true, capability.GetModeSub)
		if !ok {
			return
		}
		var mode rig.Mode
		err := s.call(ctx, "get_mode "+string(vfo), func(ctx context.Context) (err error) {
			mode, _, err = s.rig.GetMode(ctx, vfo)
			return err
		})
		r.note(err)
		if err == nil {
			s.obs.ModeSub = mode
		}
	},
}

// applicable reports whether c means anything in the current mode
func (s *Scheduler) applicable(c state.Category) bool {
	switch c {
	case state.CatCW:
		return s.obs.ModeMain.IsCW()
	case state.CatFM:
		return s.obs.ModeMain.IsFM()
	}
	return true
}

// refresh reads one category. It reports whether any device call was made.
// A failed call marks the category stale and a clean refresh clears it.
func (s *Scheduler) refresh(ctx context.Context, c state.Category) bool {
	if !s.applicable(c) {
		return false
	}
	read, ok := readers[c]
	if !ok {
		return false
	}
	var r reads
	read(s, ctx, &r)
	if !r.any {
		return false
	}
	if r.failed {
		s.stale = s.stale.With(c)
		s.log.Debug(component, "category refresh failed", map[string]interface{}{
			"category": c.String(),
			"error":    errors.Join(r.errs...).Error(),
		})
	} else {
		s.stale = s.stale.Without(c)
	}
	return true
}

func (s *Scheduler) readLevel(ctx context.Context, r *reads, l rig.Level, set func(float64)) {
	if !s.gate.Allowed(capability.GetLevel(l)) {
		return
	}
	var v float64
	err := s.call(ctx, "get_level "+string(l), func(ctx context.Context) (err error) {
		v, err = s.rig.GetLevel(ctx, l)
		return err
	})
	r.note(err)
	if err == nil {
		set(v)
	}
}

// readFunc reads fn into dst and reports whether the read succeeded
func (s *Scheduler) readFunc(ctx context.Context, r *reads, fn rig.Func, dst *bool) bool {
	if !s.gate.Allowed(capability.GetFunc(fn)) {
		return false
	}
	var on bool
	err := s.call(ctx, "get_func "+string(fn), func(ctx context.Context) (err error) {
		on, err = s.rig.GetFunc(ctx, fn)
		return err
	})
	r.note(err)
	if err != nil {
		return false
	}
	*dst = on
	return true
}

func (s *Scheduler) readOffset(ctx context.Context, r *reads, name string, get func(rig.Rig, context.Context) (int, error), dst *int) {
	var hz int
	err := s.call(ctx, name, func(ctx context.Context) (err error) {
		hz, err = get(s.rig, ctx)
		return err
	})
	r.note(err)
	if err == nil {
		*dst = hz
	}
}

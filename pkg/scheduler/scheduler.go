// Package scheduler interleaves operator commands with the background
// refresh of device state. One Tick runs per timer period, always from the
// same goroutine.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
)

const component = "scheduler"

// DefaultCallTimeout bounds a device call when Config leaves it zero
const DefaultCallTimeout = time.Second

// Config tunes a Scheduler
type Config struct {
	// FullPoll refreshes every category on every tick
	FullPoll bool
	// CallTimeout bounds every device call
	CallTimeout time.Duration
	// Power is the power state learnt at connect
	Power rig.PowerStatus
	// Meter is the secondary meter read while transmitting
	Meter  rig.Meter
	Logger *logging.Logger
}

// Scheduler owns Observed and drives one device. It is not safe for
// concurrent use.
type Scheduler struct {
	rig   rig.Rig
	gate  *capability.Gate
	caps  rig.Capabilities
	model *state.Model
	cfg   Config
	log   *logging.Logger

	obs   state.Observed
	stale state.CategorySet
	plan  PollPlan
}

// New creates a scheduler for an open device. The first tick performs a
// full refresh.
func New(r rig.Rig, gate *capability.Gate, model *state.Model, cfg Config) *Scheduler {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}
	s := &Scheduler{
		rig:   r,
		gate:  gate,
		caps:  gate.Capabilities(),
		model: model,
		cfg:   cfg,
		log:   cfg.Logger,
		obs:   state.NewObserved(),
		plan:  All(),
	}
	if cfg.Power != "" {
		s.obs.Power = cfg.Power
	}
	if cfg.Meter != "" {
		s.obs.Meter = cfg.Meter
	}
	return s
}

// Observed returns a copy of the observed state
func (s *Scheduler) Observed() state.Observed { return s.obs }

// Stale returns the categories whose last refresh failed
func (s *Scheduler) Stale() state.CategorySet { return s.stale }

// Plan returns the plan the next poll stage will execute
func (s *Scheduler) Plan() PollPlan { return s.plan }

// Cursor is the legacy integer form of Plan
func (s *Scheduler) Cursor() int { return s.plan.Cursor() }

// Capabilities returns the effective capabilities of the device
func (s *Scheduler) Capabilities() rig.Capabilities { return s.caps }

// ForceFullRefresh makes the next poll stage refresh every category
func (s *Scheduler) ForceFullRefresh() {
	s.plan = All()
}

// call runs one device operation under the bounded wait
func (s *Scheduler) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := fn(cctx); err != nil {
		return &rig.DeviceCallError{Op: op, Err: err}
	}
	return nil
}

// Tick runs one scheduling cycle to completion
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	rep := TickReport{Plan: s.plan}

	if s.obs.Power == rig.PowerOff {
		s.powerOffTick(ctx, &rep)
		rep.Stale = s.stale
		return rep
	}

	if s.priorityPending() {
		rep.Priority = true
		s.applyPriority(ctx, &rep)
		s.capture(ctx)
		rep.Stale = s.stale
		return rep
	}

	s.capture(ctx)
	s.meters(ctx, &rep)

	if !s.obs.PTT {
		s.commandPass(ctx, &rep)
	}

	if !s.obs.PTT && s.obs.Power != rig.PowerOff {
		s.poll(ctx, &rep)
	}
	rep.Stale = s.stale
	return rep
}

func (s *Scheduler) priorityPending() bool {
	p := s.model.Pending()
	return p.Has(state.FieldPTT) || p.Has(state.FieldFreqMain) || p.Has(state.FieldFreqSub)
}

func (s *Scheduler) applyPriority(ctx context.Context, rep *TickReport) {
	for _, f := range []state.Field{state.FieldPTT, state.FieldFreqMain, state.FieldFreqSub} {
		if o, ok := s.run(ctx, f); ok {
			rep.Outcomes = append(rep.Outcomes, o)
		}
	}
}

// powerOffTick handles a device that reported power off. Nothing but the
// power command and the power read is attempted.
func (s *Scheduler) powerOffTick(ctx context.Context, rep *TickReport) {
	if o, ok := s.run(ctx, state.FieldPower); ok {
		rep.Outcomes = append(rep.Outcomes, o)
	}
	s.readPower(ctx)
	if s.obs.Power.IsOn() {
		s.log.Info(component, "device powered on, scheduling full refresh")
		s.plan = All()
	}
}

func (s *Scheduler) readPower(ctx context.Context) {
	if !s.gate.Allowed(capability.GetPower) {
		return
	}
	var p rig.PowerStatus
	err := s.call(ctx, "get_powerstat", func(ctx context.Context) (err error) {
		p, err = s.rig.GetPowerStat(ctx)
		return err
	})
	if err != nil {
		s.log.Debug(component, "power read failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s.obs.Power = p
}

// vfoFor resolves the VFO argument for a main or sub VFO access governed
// by op. Devices that cannot address VFOs are driven through the current
// VFO, and only when the target is the active one.
func (s *Scheduler) vfoFor(sub bool, op capability.Operation) (rig.VFO, bool) {
	d := s.gate.Decide(op)
	if d == capability.Supported {
		if sub {
			return s.caps.SubVFO, true
		}
		return s.caps.MainVFO, true
	}
	subActive := s.obs.ActiveVFO != rig.VFONone && s.obs.ActiveVFO == s.caps.SubVFO
	if sub {
		if d == capability.RequiresActiveVFOOnly && subActive {
			return rig.VFOCurrent, true
		}
		return rig.VFONone, false
	}
	if subActive {
		return rig.VFONone, false
	}
	return rig.VFOCurrent, true
}

// markLive records the result of a tick's live reads in c
func (s *Scheduler) markLive(c state.Category, failed bool) {
	if failed {
		s.stale = s.stale.With(c)
	} else {
		s.stale = s.stale.Without(c)
	}
}

// capture reads PTT and both frequencies
func (s *Scheduler) capture(ctx context.Context) {
	var ptt bool
	err := s.call(ctx, "get_ptt", func(ctx context.Context) (err error) {
		ptt, err = s.rig.GetPTT(ctx)
		return err
	})
	failed := err != nil
	if err != nil {
		s.log.Debug(component, "ptt read failed", map[string]interface{}{"error": err.Error()})
	} else {
		s.obs.PTT = ptt
	}

	if vfo, ok := s.vfoFor(false, capability.GetFreqSub); ok {
		if err := s.readFreq(ctx, vfo, &s.obs.FreqMain); err != nil {
			failed = true
		}
	}
	if vfo, ok := s.vfoFor(true, capability.GetFreqSub); ok {
		if err := s.readFreq(ctx, vfo, &s.obs.FreqSub); err != nil {
			failed = true
		}
	}
	s.markLive(state.CatCapture, failed)
}

func (s *Scheduler) readFreq(ctx context.Context, vfo rig.VFO, dst *int64) error {
	var hz int64
	err := s.call(ctx, "get_freq "+string(vfo), func(ctx context.Context) (err error) {
		hz, err = s.rig.GetFreq(ctx, vfo)
		return err
	})
	if err != nil {
		s.log.Debug(component, "frequency read failed", map[string]interface{}{"vfo": string(vfo), "error": err.Error()})
		return err
	}
	*dst = hz
	return nil
}

// meters reads the live meters. A pending meter selection waits until the
// device stops transmitting.
func (s *Scheduler) meters(ctx context.Context, rep *TickReport) {
	if s.obs.PTT {
		err := s.readMeter(ctx, rig.LevelPowerMeter, &s.obs.PowerMeter)
		if s.gate.Allowed(capability.Meter(s.obs.Meter)) {
			err = errors.Join(err, s.readMeter(ctx, s.obs.Meter.Level(), &s.obs.MeterValue))
		}
		s.markLive(state.CatMeters, err != nil)
		return
	}

	if v, ok := s.model.Take(state.FieldMeter); ok {
		s.obs.Apply(state.FieldMeter, v)
		rep.Outcomes = append(rep.Outcomes, CommandOutcome{Field: state.FieldMeter, Value: v, Outcome: Applied})
	}
	s.markLive(state.CatMeters, s.readMeter(ctx, rig.LevelStrength, &s.obs.SMeter) != nil)
}

func (s *Scheduler) readMeter(ctx context.Context, l rig.Level, dst *float64) error {
	if !s.gate.Allowed(capability.GetLevel(l)) {
		return nil
	}
	var v float64
	err := s.call(ctx, "get_level "+string(l), func(ctx context.Context) (err error) {
		v, err = s.rig.GetLevel(ctx, l)
		return err
	})
	if err != nil {
		s.log.Debug(component, "meter read failed", map[string]interface{}{"level": string(l), "error": err.Error()})
		return err
	}
	*dst = v
	return nil
}

// commandPass applies every pending non-priority command in fixed order
func (s *Scheduler) commandPass(ctx context.Context, rep *TickReport) {
	for _, f := range commandOrder {
		o, ok := s.run(ctx, f)
		if !ok {
			continue
		}
		rep.Outcomes = append(rep.Outcomes, o)
		if f == state.FieldPower && s.obs.Power == rig.PowerOff {
			// the device stops answering once it is off
			return
		}
	}
}

// run takes the pending value of f and tries to apply it. The pending bit
// is cleared whatever happens. ok is false when f was not pending.
func (s *Scheduler) run(ctx context.Context, f state.Field) (CommandOutcome, bool) {
	v, ok := s.model.Take(f)
	if !ok {
		return CommandOutcome{}, false
	}
	o := CommandOutcome{Field: f, Value: v}

	cmd := commands[f]
	err := cmd(s, ctx, v)
	switch {
	case err == nil:
		o.Outcome = Applied
		s.acknowledge(f, v)
	case errors.Is(err, capability.ErrUnsupported):
		o.Outcome = Skipped
		o.Err = err
		s.log.Debug(component, "command skipped", map[string]interface{}{"field": f.String()})
	default:
		o.Outcome = Rejected
		o.Err = err
		if c, ok := state.CategoryOf(f); ok {
			s.stale = s.stale.With(c)
		}
		s.log.Warn(component, "command rejected", map[string]interface{}{"field": f.String(), "error": err.Error()})
	}
	return o, true
}

// acknowledge mirrors an applied write into Observed
func (s *Scheduler) acknowledge(f state.Field, v any) {
	s.obs.Apply(f, v)
	switch f {
	case state.FieldSplit:
		if v.(bool) {
			s.obs.TXVFO = s.caps.SubVFO
		} else {
			s.obs.TXVFO = s.caps.MainVFO
		}
	case state.FieldPower:
		if v.(rig.PowerStatus) == rig.PowerOn {
			s.plan = All()
		}
	}
	if isStructural(f) {
		s.ForceFullRefresh()
	}
}

// poll runs the poll stage and advances the plan
func (s *Scheduler) poll(ctx context.Context, rep *TickReport) {
	rep.Plan = s.plan
	if s.cfg.FullPoll || s.plan.IsAll() {
		s.readPower(ctx)
		if s.obs.Power == rig.PowerOff {
			return
		}
		if s.plan.IsAll() {
			// a structural change may have moved both VFOs
			s.capture(ctx)
		}
		for _, c := range state.Categories() {
			if s.refresh(ctx, c) {
				rep.Polled = append(rep.Polled, c)
			}
		}
		if s.plan.IsAll() {
			s.plan = s.plan.Next()
		}
		return
	}

	if c := s.plan.Category(); s.refresh(ctx, c) {
		rep.Polled = append(rep.Polled, c)
	}
	s.plan = s.plan.Next()
}

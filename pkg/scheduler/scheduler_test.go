package scheduler

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/state"
)

type fixture struct {
	s     *Scheduler
	dummy *rig.Dummy
	model *state.Model
}

func newFixture(t *testing.T, cfg Config, adjust ...func(*rig.Capabilities)) *fixture {
	t.Helper()
	ctx := context.Background()
	d := rig.NewDummy()
	for _, fn := range adjust {
		d.ModifyCapabilities(fn)
	}
	require.NoError(t, d.Open(ctx))
	caps, err := d.Capabilities(ctx)
	require.NoError(t, err)

	if cfg.Logger == nil {
		cfg.Logger = logging.NewWriterLogger(io.Discard, logging.LevelDebug, false)
	}
	if cfg.Power == "" {
		cfg.Power = rig.PowerOn
	}
	m := state.NewModel()
	return &fixture{s: New(d, capability.NewGate(caps), m, cfg), dummy: d, model: m}
}

func (f *fixture) tick(t *testing.T) TickReport {
	t.Helper()
	return f.s.Tick(context.Background())
}

func (f *fixture) submit(t *testing.T, field state.Field, v any) {
	t.Helper()
	require.NoError(t, f.model.Submit(field, v))
}

func outcomeFor(rep TickReport, field state.Field) (CommandOutcome, bool) {
	for _, o := range rep.Outcomes {
		if o.Field == field {
			return o, true
		}
	}
	return CommandOutcome{}, false
}

func called(calls []string, op string) bool {
	return slices.Contains(calls, op)
}

func TestPollPlan(t *testing.T) {
	p := All()
	assert.True(t, p.IsAll())
	assert.Equal(t, 0, p.Cursor())
	assert.Equal(t, "all", p.String())

	p = p.Next()
	assert.Equal(t, state.CatModeBandwidth, p.Category())
	assert.Equal(t, 1, p.Cursor())

	last := CategoryPlan(state.CatSubMode)
	assert.Equal(t, state.NumCategories, last.Cursor())
	assert.Equal(t, CategoryPlan(1), last.Next(), "cursor wraps to the first category")
	assert.Equal(t, CategoryPlan(state.CatAGC+1), CategoryPlan(state.CatAGC).Next())
}

func TestFullPoll(t *testing.T) {
	f := newFixture(t, Config{FullPoll: true})

	for i := 0; i < 3; i++ {
		rep := f.tick(t)
		var want []state.Category
		for _, c := range state.Categories() {
			if c != state.CatCW && c != state.CatFM {
				want = append(want, c)
			}
		}
		assert.Equal(t, want, rep.Polled, "tick %d", i)
	}
}

func TestReducedPollCoversEveryCategory(t *testing.T) {
	f := newFixture(t, Config{})

	first := f.tick(t)
	assert.True(t, first.Plan.IsAll(), "first tick refreshes everything")
	assert.Equal(t, 1, f.s.Cursor())

	seen := make(map[state.Category]int)
	for i := 0; i < state.NumCategories; i++ {
		rep := f.tick(t)
		require.False(t, rep.Plan.IsAll())
		seen[rep.Plan.Category()]++
		assert.LessOrEqual(t, len(rep.Polled), 1)
		if len(rep.Polled) == 1 {
			assert.Equal(t, rep.Plan.Category(), rep.Polled[0])
		}
	}
	for _, c := range state.Categories() {
		assert.Equal(t, 1, seen[c], "category %s", c)
	}
	assert.Equal(t, 1, f.s.Cursor(), "cursor is back at the start")
}

func TestModeGatedCategories(t *testing.T) {
	f := newFixture(t, Config{})
	f.submit(t, state.FieldModeMain, rig.ModeCW)
	f.tick(t)

	f.s.plan = CategoryPlan(state.CatCW)
	rep := f.tick(t)
	assert.Equal(t, []state.Category{state.CatCW}, rep.Polled)

	f.s.plan = CategoryPlan(state.CatFM)
	rep = f.tick(t)
	assert.Empty(t, rep.Polled, "FM category is skipped in CW")
	assert.Equal(t, CategoryPlan(state.CatMic), f.s.Plan(), "skipped slot still advances")
}

func TestPriorityCommands(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)
	for i := 0; i < 7; i++ {
		f.tick(t)
	}
	cursor := f.s.Cursor()

	f.submit(t, state.FieldAGC, rig.AGCFast)
	f.submit(t, state.FieldFreqSub, 7080000)
	f.submit(t, state.FieldFreqMain, 7074000)
	f.submit(t, state.FieldPTT, true)
	f.dummy.ResetCalls()

	rep := f.tick(t)
	require.True(t, rep.Priority)
	require.Len(t, rep.Outcomes, 3)
	assert.Equal(t, state.FieldPTT, rep.Outcomes[0].Field)
	assert.Equal(t, state.FieldFreqMain, rep.Outcomes[1].Field)
	assert.Equal(t, state.FieldFreqSub, rep.Outcomes[2].Field)
	for _, o := range rep.Outcomes {
		assert.Equal(t, Applied, o.Outcome)
	}
	assert.Empty(t, rep.Polled)
	assert.Equal(t, cursor, f.s.Cursor(), "priority tick leaves the plan alone")
	assert.True(t, f.model.IsPending(state.FieldAGC))

	obs := f.s.Observed()
	assert.True(t, obs.PTT)
	assert.Equal(t, int64(7074000), obs.FreqMain)
	assert.Equal(t, int64(7080000), obs.FreqSub)

	calls := f.dummy.Calls()
	for _, c := range calls {
		assert.False(t, strings.HasPrefix(c, "get_level"), "no meter or level reads on a priority tick: %s", c)
	}
}

func TestTransmitting(t *testing.T) {
	f := newFixture(t, Config{Meter: rig.MeterALC})
	f.tick(t)
	f.dummy.Key(true)

	f.submit(t, state.FieldAGC, rig.AGCSlow)
	f.dummy.ResetCalls()
	plan := f.s.Plan()

	rep := f.tick(t)
	assert.False(t, rep.Priority)
	assert.Empty(t, rep.Outcomes, "commands are held while transmitting")
	assert.Empty(t, rep.Polled)
	assert.Equal(t, plan, f.s.Plan(), "plan holds while transmitting")
	assert.True(t, f.model.IsPending(state.FieldAGC))

	calls := f.dummy.Calls()
	assert.True(t, called(calls, "get_level RFPOWER_METER"))
	assert.True(t, called(calls, "get_level ALC"))
	assert.False(t, called(calls, "get_level STRENGTH"))
	assert.InDelta(t, 0.2, f.s.Observed().MeterValue, 1e-9)

	f.submit(t, state.FieldFreqMain, 14080000)
	rep = f.tick(t)
	o, ok := outcomeFor(rep, state.FieldFreqMain)
	require.True(t, ok, "frequency changes still run while transmitting")
	assert.Equal(t, Applied, o.Outcome)

	f.dummy.Key(false)
	rep = f.tick(t)
	o, ok = outcomeFor(rep, state.FieldAGC)
	require.True(t, ok)
	assert.Equal(t, Applied, o.Outcome)
	assert.Equal(t, rig.AGCSlow, f.s.Observed().AGC)
}

func TestStructuralCommandForcesFullRefresh(t *testing.T) {
	tests := []struct {
		field state.Field
		value any
	}{
		{state.FieldModeMain, rig.ModeLSB},
		{state.FieldBandUp, nil},
		{state.FieldBand, "40m"},
		{state.FieldVFOExchange, nil},
		{state.FieldVFOCopy, nil},
	}
	for _, tt := range tests {
		t.Run(tt.field.String(), func(t *testing.T) {
			f := newFixture(t, Config{})
			f.tick(t)
			f.tick(t)
			require.False(t, f.s.Plan().IsAll())

			f.submit(t, tt.field, tt.value)
			rep := f.tick(t)
			o, ok := outcomeFor(rep, tt.field)
			require.True(t, ok)
			require.Equal(t, Applied, o.Outcome)
			assert.True(t, rep.Structural())
			assert.True(t, rep.Plan.IsAll(), "poll stage of the same tick is a full refresh")
			assert.Greater(t, len(rep.Polled), 1)
			assert.Equal(t, 1, f.s.Cursor())
		})
	}

	t.Run("non-structural", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.tick(t)
		f.submit(t, state.FieldAFGain, 0.4)
		rep := f.tick(t)
		assert.False(t, rep.Structural())
		assert.False(t, rep.Plan.IsAll())
	})
}

func TestBandChangeReadBack(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)
	f.submit(t, state.FieldBand, "40m")
	f.tick(t)
	assert.Equal(t, int64(7100000), f.s.Observed().FreqMain)
}

func TestLastWriteWins(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.submit(t, state.FieldAFGain, 0.2)
	f.submit(t, state.FieldAFGain, 0.7)
	f.dummy.ResetCalls()
	rep := f.tick(t)

	n := 0
	for _, o := range rep.Outcomes {
		if o.Field == state.FieldAFGain {
			n++
			assert.Equal(t, 0.7, o.Value)
		}
	}
	assert.Equal(t, 1, n)

	writes := 0
	for _, c := range f.dummy.Calls() {
		if c == "set_level AF" {
			writes++
		}
	}
	assert.Equal(t, 1, writes)

	v, err := f.dummy.GetLevel(context.Background(), rig.LevelAF)
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)
}

func TestUnsupportedPowerToggle(t *testing.T) {
	f := newFixture(t, Config{}, func(c *rig.Capabilities) { c.SupportsPowerToggle = false })
	f.tick(t)

	f.submit(t, state.FieldPower, rig.PowerOff)
	f.dummy.ResetCalls()
	rep := f.tick(t)

	o, ok := outcomeFor(rep, state.FieldPower)
	require.True(t, ok)
	assert.Equal(t, Skipped, o.Outcome)
	assert.ErrorIs(t, o.Err, capability.ErrUnsupported)
	assert.False(t, f.model.IsPending(state.FieldPower))
	assert.False(t, called(f.dummy.Calls(), "set_powerstat"))
}

func TestPowerOff(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.submit(t, state.FieldPower, rig.PowerOff)
	f.submit(t, state.FieldAFGain, 0.9)
	rep := f.tick(t)
	o, ok := outcomeFor(rep, state.FieldPower)
	require.True(t, ok)
	require.Equal(t, Applied, o.Outcome)
	assert.Equal(t, rig.PowerOff, f.s.Observed().Power)
	assert.True(t, f.model.IsPending(state.FieldAFGain), "commands after power off wait")

	f.dummy.ResetCalls()
	rep = f.tick(t)
	assert.Empty(t, rep.Outcomes)
	assert.Equal(t, []string{"get_powerstat"}, f.dummy.Calls())

	f.submit(t, state.FieldPower, rig.PowerOn)
	rep = f.tick(t)
	o, ok = outcomeFor(rep, state.FieldPower)
	require.True(t, ok)
	assert.Equal(t, Applied, o.Outcome)
	assert.Equal(t, rig.PowerOn, f.s.Observed().Power)
	assert.True(t, f.s.Plan().IsAll())

	rep = f.tick(t)
	o, ok = outcomeFor(rep, state.FieldAFGain)
	require.True(t, ok)
	assert.Equal(t, Applied, o.Outcome)
}

func TestReadFailureMarksStale(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)
	before := f.s.Observed().AGC
	require.Equal(t, rig.AGCMedium, before)

	f.dummy.FailOn("get_level AGC", errors.New("bus error"))
	f.s.ForceFullRefresh()
	rep := f.tick(t)
	assert.True(t, rep.Stale.Has(state.CatAGC))
	assert.Equal(t, before, f.s.Observed().AGC)
	assert.False(t, rep.Stale.Has(state.CatAFGain))

	f.dummy.ClearFailures()
	f.s.ForceFullRefresh()
	rep = f.tick(t)
	assert.False(t, rep.Stale.Has(state.CatAGC), "successful read clears stale")
}

func TestLiveReadFailureMarksStale(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)
	before := f.s.Observed()
	require.Equal(t, int64(14074000), before.FreqMain)

	t.Run("Capture", func(t *testing.T) {
		f.dummy.FailOn("get_freq", errors.New("bus error"))
		f.dummy.FailOn("get_ptt", errors.New("bus error"))
		rep := f.tick(t)
		assert.True(t, rep.Stale.Has(state.CatCapture))
		assert.Equal(t, before.FreqMain, f.s.Observed().FreqMain)
		assert.False(t, rep.Stale.Has(state.CatMeters))

		f.dummy.ClearFailures()
		rep = f.tick(t)
		assert.False(t, rep.Stale.Has(state.CatCapture), "successful capture clears stale")
	})

	t.Run("Meters", func(t *testing.T) {
		f.dummy.FailOn("get_level STRENGTH", errors.New("bus error"))
		rep := f.tick(t)
		assert.True(t, rep.Stale.Has(state.CatMeters))
		assert.False(t, rep.Stale.Has(state.CatCapture))

		f.dummy.ClearFailures()
		rep = f.tick(t)
		assert.False(t, rep.Stale.Has(state.CatMeters))
	})

	t.Run("Priority Tick", func(t *testing.T) {
		f.dummy.FailOn("get_freq", errors.New("bus error"))
		f.submit(t, state.FieldPTT, false)
		rep := f.tick(t)
		require.True(t, rep.Priority)
		assert.True(t, rep.Stale.Has(state.CatCapture))
		f.dummy.ClearFailures()
	})
}

func TestWriteFailureRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.dummy.FailOn("set_level AGC", &rig.StatusError{Code: -9, Message: "command rejected by the rig"})
	f.submit(t, state.FieldAGC, rig.AGCFast)
	rep := f.tick(t)

	o, ok := outcomeFor(rep, state.FieldAGC)
	require.True(t, ok)
	assert.Equal(t, Rejected, o.Outcome)
	var dce *rig.DeviceCallError
	assert.True(t, errors.As(o.Err, &dce))
	assert.False(t, f.model.IsPending(state.FieldAGC), "no retry queue")
	assert.True(t, rep.Stale.Has(state.CatAGC))
	assert.Equal(t, rig.AGCMedium, f.s.Observed().AGC)
}

func TestCallTimeout(t *testing.T) {
	f := newFixture(t, Config{CallTimeout: 5 * time.Millisecond})
	f.tick(t)

	f.dummy.SetDelay(50 * time.Millisecond)
	f.submit(t, state.FieldNotch, true)
	rep := f.tick(t)

	o, ok := outcomeFor(rep, state.FieldNotch)
	require.True(t, ok)
	assert.Equal(t, Rejected, o.Outcome)
	assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
	assert.True(t, rep.Stale.Has(state.CatNotch))
}

func TestSubVFOActiveOnly(t *testing.T) {
	f := newFixture(t, Config{}, func(c *rig.Capabilities) {
		c.SubVFOFreqAddressable = false
		c.SubVFOModeAddressable = false
	})
	f.tick(t)
	require.Equal(t, rig.VFOA, f.s.Observed().ActiveVFO)

	f.submit(t, state.FieldFreqSub, 7080000)
	rep := f.tick(t)
	o, ok := outcomeFor(rep, state.FieldFreqSub)
	require.True(t, ok)
	assert.Equal(t, Skipped, o.Outcome)

	f.submit(t, state.FieldFreqMain, 7074000)
	f.dummy.ResetCalls()
	rep = f.tick(t)
	o, _ = outcomeFor(rep, state.FieldFreqMain)
	assert.Equal(t, Applied, o.Outcome)
	assert.True(t, called(f.dummy.Calls(), "set_freq currVFO"))
}

func TestSplitMovesTXVFO(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.submit(t, state.FieldSplit, true)
	f.tick(t)
	assert.True(t, f.s.Observed().Split)
	assert.Equal(t, rig.VFOB, f.s.Observed().TXVFO)

	f.submit(t, state.FieldSplit, false)
	f.tick(t)
	assert.Equal(t, rig.VFOA, f.s.Observed().TXVFO)
}

func TestMeterSelectionIsLocal(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.submit(t, state.FieldMeter, rig.MeterVDD)
	f.dummy.ResetCalls()
	rep := f.tick(t)
	o, ok := outcomeFor(rep, state.FieldMeter)
	require.True(t, ok)
	assert.Equal(t, Applied, o.Outcome)
	assert.Equal(t, rig.MeterVDD, f.s.Observed().Meter)
	for _, c := range f.dummy.Calls() {
		assert.False(t, strings.HasPrefix(c, "set_"), "unexpected device write %s", c)
	}
}

func TestMeterSelectionHeldWhileTransmitting(t *testing.T) {
	f := newFixture(t, Config{Meter: rig.MeterSWR})
	f.tick(t)
	f.dummy.Key(true)
	f.tick(t)
	require.True(t, f.s.Observed().PTT)

	f.submit(t, state.FieldMeter, rig.MeterALC)
	rep := f.tick(t)
	_, ok := outcomeFor(rep, state.FieldMeter)
	assert.False(t, ok)
	assert.True(t, f.model.IsPending(state.FieldMeter))
	assert.Equal(t, rig.MeterSWR, f.s.Observed().Meter)

	f.dummy.Key(false)
	rep = f.tick(t)
	o, ok := outcomeFor(rep, state.FieldMeter)
	require.True(t, ok)
	assert.Equal(t, Applied, o.Outcome)
	assert.Equal(t, rig.MeterALC, f.s.Observed().Meter)
}

func TestBreakInAndTone(t *testing.T) {
	f := newFixture(t, Config{})
	f.tick(t)

	f.submit(t, state.FieldModeMain, rig.ModeCW)
	f.submit(t, state.FieldBreakIn, rig.BreakInFull)
	f.tick(t)
	assert.Equal(t, rig.BreakInFull, f.s.Observed().BreakIn)

	f.submit(t, state.FieldModeMain, rig.ModeFM)
	f.submit(t, state.FieldToneType, rig.ToneCTCSSSql)
	f.submit(t, state.FieldTone, 1000)
	f.tick(t)
	obs := f.s.Observed()
	assert.Equal(t, rig.ToneCTCSSSql, obs.ToneType)
	assert.Equal(t, 1000, obs.Tone)

	on, err := f.dummy.GetFunc(context.Background(), rig.FuncTSQL)
	require.NoError(t, err)
	assert.True(t, on)
}

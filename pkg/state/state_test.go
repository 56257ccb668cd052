package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/rigsync/pkg/rig"
)

func TestFieldNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, f := range AllFields() {
		name := f.String()
		require.NotEmpty(t, name, "field %d has no name", int(f))
		require.False(t, seen[name], "duplicate field name %s", name)
		seen[name] = true

		parsed, err := ParseField(name)
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
	}

	_, err := ParseField("flux_capacitor")
	assert.Error(t, err)

	assert.True(t, FieldPTT.IsPriority())
	assert.True(t, FieldFreqSub.IsPriority())
	assert.False(t, FieldPower.IsPriority())
	assert.True(t, FieldBand.IsAction())
	assert.True(t, FieldVFOExchange.IsAction())
	assert.False(t, FieldAGC.IsAction())
}

func TestFieldSet(t *testing.T) {
	var s FieldSet
	assert.True(t, s.Empty())

	s = s.With(FieldAGC).With(FieldPTT).With(FieldMeter)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []Field{FieldPTT, FieldAGC, FieldMeter}, s.Fields())

	s = s.Without(FieldPTT)
	assert.False(t, s.Has(FieldPTT))
	assert.Equal(t, "{agc,meter}", s.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    any
		want  any
		err   bool
	}{
		{"freq from int", FieldFreqMain, 14074000, int64(14074000), false},
		{"freq zero", FieldFreqMain, 0, nil, true},
		{"freq wrong type", FieldFreqSub, "14074000", nil, true},
		{"rf power floor", FieldRFPower, 0.01, MinRFPower, false},
		{"rf power ok", FieldRFPower, 0.5, 0.5, false},
		{"level too high", FieldAFGain, 1.5, nil, true},
		{"power on", FieldPower, rig.PowerOn, rig.PowerOn, false},
		{"power unknown", FieldPower, rig.PowerUnknown, nil, true},
		{"mode", FieldModeMain, rig.ModeCW, rig.ModeCW, false},
		{"bogus mode", FieldModeMain, rig.Mode("SSTV"), nil, true},
		{"antenna", FieldAntenna, rig.Ant2, rig.Ant2, false},
		{"antenna none", FieldAntenna, rig.AntNone, nil, true},
		{"keyer speed range", FieldKeyerSpeed, 99, nil, true},
		{"rit offset", FieldRITOffset, -500, -500, false},
		{"band", FieldBand, "20", "20m", false},
		{"unknown band", FieldBand, "11m", nil, true},
		{"action", FieldVFOExchange, nil, true, false},
		{"action false", FieldTune, false, nil, true},
		{"meter", FieldMeter, rig.MeterALC, rig.MeterALC, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate(tt.field, tt.in)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidValue))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		field Field
		text  string
		want  any
	}{
		{FieldFreqMain, "14074000", int64(14074000)},
		{FieldFreqMain, "14.074M", int64(14074000)},
		{FieldFreqSub, "7074k", int64(7074000)},
		{FieldPTT, "on", true},
		{FieldSplit, "0", false},
		{FieldPower, "off", rig.PowerOff},
		{FieldModeMain, "pktusb", rig.ModePKTUSB},
		{FieldAGC, "fast", rig.AGCFast},
		{FieldAntenna, "ANT2", rig.Ant2},
		{FieldRFPower, "50%", 0.5},
		{FieldAFGain, "0.25", 0.25},
		{FieldBreakIn, "semi", rig.BreakInSemi},
		{FieldRepeaterShift, "-", rig.ShiftMinus},
		{FieldToneType, "tsql", rig.ToneCTCSSSql},
		{FieldTone, "885", 885},
		{FieldMeter, "alc", rig.MeterALC},
		{FieldBand, "40m", "40m"},
		{FieldBandUp, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.field.String()+"="+tt.text, func(t *testing.T) {
			got, err := ParseValue(tt.field, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseValue(FieldPTT, "maybe")
	assert.ErrorIs(t, err, ErrInvalidValue)
	_, err = ParseValue(FieldVFOCopy, "off")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestModel(t *testing.T) {
	t.Run("last write wins", func(t *testing.T) {
		m := NewModel()
		require.NoError(t, m.Submit(FieldAFGain, 0.2))
		require.NoError(t, m.Submit(FieldAFGain, 0.7))

		v, ok := m.Take(FieldAFGain)
		require.True(t, ok)
		assert.Equal(t, 0.7, v)

		_, ok = m.Take(FieldAFGain)
		assert.False(t, ok, "bit must be cleared by Take")

		kept, ok := m.Desired(FieldAFGain)
		assert.True(t, ok)
		assert.Equal(t, 0.7, kept)
	})

	t.Run("invalid submission leaves state alone", func(t *testing.T) {
		m := NewModel()
		assert.Error(t, m.Submit(FieldAGC, "fast"))
		assert.True(t, m.Pending().Empty())
	})
}

func TestCategories(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, NumCategories)
	assert.Equal(t, CatModeBandwidth, cats[0])
	assert.Equal(t, CatSubMode, cats[NumCategories-1])

	for _, c := range cats {
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	c, ok := CategoryOf(FieldNRLevel)
	assert.True(t, ok)
	assert.Equal(t, CatNoiseReduction, c)
	_, ok = CategoryOf(FieldFreqMain)
	assert.False(t, ok)

	for _, f := range AllFields() {
		if f.IsAction() || f.IsPriority() || f == FieldPower || f == FieldMeter {
			continue
		}
		_, ok := CategoryOf(f)
		assert.True(t, ok, "value field %s has no poll category", f)
	}
}

func TestLiveCategories(t *testing.T) {
	for _, c := range []Category{CatCapture, CatMeters} {
		assert.False(t, c.Valid(), "%s is not a poll slot", c)
		assert.True(t, c.IsLive())
		parsed, err := ParseCategory(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	assert.False(t, CatAGC.IsLive())
	assert.Equal(t, "capture", CatCapture.String())

	s := CategorySet(0).With(CatMeters).With(CatAGC)
	assert.Equal(t, []Category{CatAGC, CatMeters}, s.Categories())
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["agc","meters"]`, string(data))
}

func TestCategorySetJSON(t *testing.T) {
	s := CategorySet(0).With(CatAGC).With(CatFM)
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["agc","fm"]`, string(data))

	var back CategorySet
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, back)

	empty, _ := json.Marshal(CategorySet(0))
	assert.Equal(t, "[]", string(empty))
}

func TestObservedApply(t *testing.T) {
	o := NewObserved()
	assert.Equal(t, rig.PowerUnknown, o.Power)

	o.Apply(FieldAGC, rig.AGCSlow)
	o.Apply(FieldAntenna, rig.Ant2)
	o.Apply(FieldFreqMain, int64(7074000))
	o.Apply(FieldVFOExchange, true)

	assert.Equal(t, rig.AGCSlow, o.AGC)
	assert.Equal(t, rig.Ant2, o.Antenna.TX)
	assert.Equal(t, int64(7074000), o.FreqMain)
}

func TestSnapshot(t *testing.T) {
	caps := &rig.Capabilities{ModelName: "Dummy"}
	obs := NewObserved()
	obs.FreqMain = 14074000

	s := NewSnapshot(7, true, obs, CategorySet(0).With(CatAGC), FieldSet(0).With(FieldNotch), caps)
	assert.Equal(t, "20m", s.Band)
	assert.Equal(t, "Dummy", s.Model)
	assert.Equal(t, []string{"notch"}, s.Pending)

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stale":["agc"]`)
	assert.NotContains(t, string(data), "capabilities")

	d := Disconnected(8)
	assert.False(t, d.Connected)
	assert.Empty(t, d.Band)
}

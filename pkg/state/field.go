package state

import (
	"fmt"
	"math/bits"
	"strings"
)

// Field names one settable device parameter or one action trigger
type Field int

const (
	FieldPTT Field = iota
	FieldFreqMain
	FieldFreqSub
	FieldPower
	FieldModeMain
	FieldModeSub
	FieldBandwidth
	FieldNarrow
	FieldSplit
	FieldVFOExchange
	FieldVFOCopy
	FieldVFOUp
	FieldVFODown
	FieldBandUp
	FieldBandDown
	FieldBand
	FieldTuner
	FieldTune
	FieldAntenna
	FieldAGC
	FieldAttenuator
	FieldPreamp
	FieldRFPower
	FieldRFGain
	FieldAFGain
	FieldSquelch
	FieldMicGain
	FieldMonitorGain
	FieldNoiseBlanker
	FieldNoiseReduction
	FieldNRLevel
	FieldNotch
	FieldIFShift
	FieldRIT
	FieldRITOffset
	FieldXIT
	FieldXITOffset
	FieldBreakIn
	FieldAPF
	FieldKeyerSpeed
	FieldRepeaterShift
	FieldRepeaterOffset
	FieldToneType
	FieldTone
	FieldCompressor
	FieldMonitor
	FieldMeter

	numFields
)

// Kind is the value type a field accepts
type Kind int

const (
	KindBool Kind = iota
	KindFreq
	KindInt
	KindLevel
	KindPower
	KindMode
	KindAntenna
	KindAGC
	KindBreakIn
	KindShift
	KindToneType
	KindMeter
	KindBand
	KindAction
)

type fieldInfo struct {
	name string
	kind Kind
}

var fields = [numFields]fieldInfo{
	FieldPTT:            {"ptt", KindBool},
	FieldFreqMain:       {"freq_main", KindFreq},
	FieldFreqSub:        {"freq_sub", KindFreq},
	FieldPower:          {"power", KindPower},
	FieldModeMain:       {"mode_main", KindMode},
	FieldModeSub:        {"mode_sub", KindMode},
	FieldBandwidth:      {"bandwidth", KindInt},
	FieldNarrow:         {"narrow", KindBool},
	FieldSplit:          {"split", KindBool},
	FieldVFOExchange:    {"vfo_exchange", KindAction},
	FieldVFOCopy:        {"vfo_copy", KindAction},
	FieldVFOUp:          {"vfo_up", KindAction},
	FieldVFODown:        {"vfo_down", KindAction},
	FieldBandUp:         {"band_up", KindAction},
	FieldBandDown:       {"band_down", KindAction},
	FieldBand:           {"band", KindBand},
	FieldTuner:          {"tuner", KindBool},
	FieldTune:           {"tune", KindAction},
	FieldAntenna:        {"antenna", KindAntenna},
	FieldAGC:            {"agc", KindAGC},
	FieldAttenuator:     {"attenuator", KindInt},
	FieldPreamp:         {"preamp", KindInt},
	FieldRFPower:        {"rf_power", KindLevel},
	FieldRFGain:         {"rf_gain", KindLevel},
	FieldAFGain:         {"af_gain", KindLevel},
	FieldSquelch:        {"squelch", KindLevel},
	FieldMicGain:        {"mic_gain", KindLevel},
	FieldMonitorGain:    {"monitor_gain", KindLevel},
	FieldNoiseBlanker:   {"nb", KindBool},
	FieldNoiseReduction: {"nr", KindBool},
	FieldNRLevel:        {"nr_level", KindLevel},
	FieldNotch:          {"notch", KindBool},
	FieldIFShift:        {"if_shift", KindInt},
	FieldRIT:            {"rit", KindBool},
	FieldRITOffset:      {"rit_offset", KindInt},
	FieldXIT:            {"xit", KindBool},
	FieldXITOffset:      {"xit_offset", KindInt},
	FieldBreakIn:        {"break_in", KindBreakIn},
	FieldAPF:            {"apf", KindBool},
	FieldKeyerSpeed:     {"keyer_speed", KindInt},
	FieldRepeaterShift:  {"rptr_shift", KindShift},
	FieldRepeaterOffset: {"rptr_offset", KindInt},
	FieldToneType:       {"tone_type", KindToneType},
	FieldTone:           {"tone", KindInt},
	FieldCompressor:     {"compressor", KindBool},
	FieldMonitor:        {"monitor", KindBool},
	FieldMeter:          {"meter", KindMeter},
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fields[f].name
}

// Kind returns the value type of the field
func (f Field) Kind() Kind {
	return fields[f].kind
}

// IsAction reports whether the field is a trigger without an observed value
func (f Field) IsAction() bool {
	k := fields[f].kind
	return k == KindAction || k == KindBand
}

// IsPriority reports whether the field preempts the rest of a tick
func (f Field) IsPriority() bool {
	return f == FieldPTT || f == FieldFreqMain || f == FieldFreqSub
}

// Valid reports whether f is a known field
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

// ParseField looks a field up by name
func ParseField(name string) (Field, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, info := range fields {
		if info.name == n {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field %q", name)
}

// AllFields returns every field in declaration order
func AllFields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// FieldSet is a set of fields, used for the pending bits
type FieldSet uint64

// Has reports whether f is in the set
func (s FieldSet) Has(f Field) bool { return s&(1<<uint(f)) != 0 }

// With returns the set with f added
func (s FieldSet) With(f Field) FieldSet { return s | 1<<uint(f) }

// Without returns the set with f removed
func (s FieldSet) Without(f Field) FieldSet { return s &^ (1 << uint(f)) }

// Empty reports whether no field is set
func (s FieldSet) Empty() bool { return s == 0 }

// Len returns the number of fields in the set
func (s FieldSet) Len() int { return bits.OnesCount64(uint64(s)) }

// Fields lists the members in declaration order
func (s FieldSet) Fields() []Field {
	var out []Field
	for f := Field(0); f < numFields; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) String() string {
	names := make([]string, 0, s.Len())
	for _, f := range s.Fields() {
		names = append(names, f.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

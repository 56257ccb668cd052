package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is one slot of the reduced poll. Categories are numbered from 1.
type Category int

const (
	CatModeBandwidth Category = iota + 1
	CatSplitVFO
	CatTuner
	CatAntenna
	CatAGC
	CatAttenuator
	CatPreamp
	CatRFPower
	CatRFGain
	CatAFGain
	CatSquelch
	CatNoiseBlanker
	CatNoiseReduction
	CatNotch
	CatIFShift
	CatClarifier
	CatCW
	CatFM
	CatMic
	CatSubMode
)

// NumCategories is the length of one reduced-poll cycle
const NumCategories = 20

// Live reads happen every tick outside the reduced poll. Their categories
// only ever appear in stale sets.
const (
	// CatCapture covers PTT and both frequencies
	CatCapture Category = NumCategories + 1 + iota
	// CatMeters covers the S-meter and the transmit meters
	CatMeters
)

const lastCategory = CatMeters

var categoryNames = [lastCategory + 1]string{
	"", "mode_bandwidth", "split_vfo", "tuner", "antenna", "agc", "attenuator",
	"preamp", "rf_power", "rf_gain", "af_gain", "squelch", "nb", "nr", "notch",
	"if_shift", "clarifier", "cw", "fm", "mic", "sub_mode",
	"capture", "meters",
}

// Categories returns every category in poll order
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i + 1)
	}
	return out
}

// Valid reports whether c is a slot of the reduced poll
func (c Category) Valid() bool { return c >= 1 && c <= NumCategories }

// IsLive reports whether c is read every tick outside the reduced poll
func (c Category) IsLive() bool { return c > NumCategories && c <= lastCategory }

func (c Category) String() string {
	if !c.Valid() && !c.IsLive() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory looks a category up by name
func ParseCategory(name string) (Category, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i := 1; i <= int(lastCategory); i++ {
		if categoryNames[i] == n {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", name)
}

// fieldCategory maps value fields to the category whose poll reads them back
var fieldCategory = map[Field]Category{
	FieldModeMain:       CatModeBandwidth,
	FieldBandwidth:      CatModeBandwidth,
	FieldNarrow:         CatModeBandwidth,
	FieldSplit:          CatSplitVFO,
	FieldTuner:          CatTuner,
	FieldAntenna:        CatAntenna,
	FieldAGC:            CatAGC,
	FieldAttenuator:     CatAttenuator,
	FieldPreamp:         CatPreamp,
	FieldRFPower:        CatRFPower,
	FieldRFGain:         CatRFGain,
	FieldAFGain:         CatAFGain,
	FieldSquelch:        CatSquelch,
	FieldNoiseBlanker:   CatNoiseBlanker,
	FieldNoiseReduction: CatNoiseReduction,
	FieldNRLevel:        CatNoiseReduction,
	FieldNotch:          CatNotch,
	FieldIFShift:        CatIFShift,
	FieldRIT:            CatClarifier,
	FieldRITOffset:      CatClarifier,
	FieldXIT:            CatClarifier,
	FieldXITOffset:      CatClarifier,
	FieldBreakIn:        CatCW,
	FieldAPF:            CatCW,
	FieldKeyerSpeed:     CatCW,
	FieldRepeaterShift:  CatFM,
	FieldRepeaterOffset: CatFM,
	FieldToneType:       CatFM,
	FieldTone:           CatFM,
	FieldMicGain:        CatMic,
	FieldMonitorGain:    CatMic,
	FieldCompressor:     CatMic,
	FieldMonitor:        CatMic,
	FieldModeSub:        CatSubMode,
}

// CategoryOf returns the poll category that reads f back. Fields captured
// every tick (PTT, frequencies, power) and actions have none.
func CategoryOf(f Field) (Category, bool) {
	c, ok := fieldCategory[f]
	return c, ok
}

// CategorySet is a set of categories
type CategorySet uint32

// Has reports whether c is in the set
func (s CategorySet) Has(c Category) bool { return s&(1<<uint(c)) != 0 }

// With returns the set with c added
func (s CategorySet) With(c Category) CategorySet { return s | 1<<uint(c) }

// Without returns the set with c removed
func (s CategorySet) Without(c Category) CategorySet { return s &^ (1 << uint(c)) }

// Empty reports whether the set has no members
func (s CategorySet) Empty() bool { return s == 0 }

// Categories lists the members in poll order, live categories last
func (s CategorySet) Categories() []Category {
	var out []Category
	for c := Category(1); c <= lastCategory; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s CategorySet) String() string {
	var names []string
	for _, c := range s.Categories() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}

// MarshalJSON renders the set as a list of category names
func (s CategorySet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0)
	for _, c := range s.Categories() {
		names = append(names, c.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON accepts the list form written by MarshalJSON
func (s *CategorySet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var out CategorySet
	for _, n := range names {
		c, err := ParseCategory(n)
		if err != nil {
			return err
		}
		out = out.With(c)
	}
	*s = out
	return nil
}

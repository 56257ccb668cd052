package state

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dougsko/rigsync/pkg/rig"
)

// MinRFPower is the lowest RF power level accepted from the operator
const MinRFPower = 0.05

// MaxFreq bounds frequency submissions
const MaxFreq = 10_000_000_000

// ErrInvalidValue is wrapped by every validation failure
var ErrInvalidValue = errors.New("invalid value")

func invalid(f Field, format string, args ...any) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidValue, f, fmt.Sprintf(format, args...))
}

type intRange struct{ min, max int }

var intRanges = map[Field]intRange{
	FieldBandwidth:      {0, 500000},
	FieldAttenuator:     {0, 60},
	FieldPreamp:         {0, 60},
	FieldIFShift:        {-10000, 10000},
	FieldRITOffset:      {-9999, 9999},
	FieldXITOffset:      {-9999, 9999},
	FieldKeyerSpeed:     {4, 60},
	FieldRepeaterOffset: {0, 100000000},
	FieldTone:           {0, 9999},
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Validate checks that v is acceptable for f and returns it in the
// canonical Go type for the field's kind
func Validate(f Field, v any) (any, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown field %d", ErrInvalidValue, int(f))
	}

	switch f.Kind() {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, invalid(f, "want bool, got %T", v)
		}
		return b, nil

	case KindFreq:
		hz, ok := toInt64(v)
		if !ok {
			return nil, invalid(f, "want Hz, got %T", v)
		}
		if hz <= 0 || hz > MaxFreq {
			return nil, invalid(f, "%d Hz out of range", hz)
		}
		return hz, nil

	case KindInt:
		n, ok := toInt64(v)
		if !ok {
			return nil, invalid(f, "want integer, got %T", v)
		}
		if r, ok := intRanges[f]; ok && (n < int64(r.min) || n > int64(r.max)) {
			return nil, invalid(f, "%d outside %d..%d", n, r.min, r.max)
		}
		return int(n), nil

	case KindLevel:
		x, ok := toFloat(v)
		if !ok {
			return nil, invalid(f, "want level, got %T", v)
		}
		if math.IsNaN(x) || x < 0 || x > 1 {
			return nil, invalid(f, "%g outside 0..1", x)
		}
		if f == FieldRFPower && x < MinRFPower {
			x = MinRFPower
		}
		return x, nil

	case KindPower:
		p, ok := v.(rig.PowerStatus)
		if !ok || (p != rig.PowerOn && p != rig.PowerOff) {
			return nil, invalid(f, "want on or off, got %v", v)
		}
		return p, nil

	case KindMode:
		m, ok := v.(rig.Mode)
		if !ok {
			return nil, invalid(f, "want mode, got %T", v)
		}
		if _, err := rig.ParseMode(string(m)); err != nil {
			return nil, invalid(f, "%v", err)
		}
		return m, nil

	case KindAntenna:
		a, ok := v.(rig.Antenna)
		if !ok || a < rig.Ant1 || a > rig.Ant5 {
			return nil, invalid(f, "want ANT1..ANT5, got %v", v)
		}
		return a, nil

	case KindAGC:
		a, ok := v.(rig.AGC)
		if !ok || a < rig.AGCOff || a > rig.AGCAuto {
			return nil, invalid(f, "want AGC setting, got %v", v)
		}
		return a, nil

	case KindBreakIn:
		b, ok := v.(rig.BreakIn)
		if !ok || (b != rig.BreakInOff && b != rig.BreakInSemi && b != rig.BreakInFull) {
			return nil, invalid(f, "want off, semi or full, got %v", v)
		}
		return b, nil

	case KindShift:
		s, ok := v.(rig.RptrShift)
		if !ok || (s != rig.ShiftNone && s != rig.ShiftMinus && s != rig.ShiftPlus) {
			return nil, invalid(f, "want none, minus or plus, got %v", v)
		}
		return s, nil

	case KindToneType:
		t, ok := v.(rig.ToneType)
		switch {
		case !ok:
			return nil, invalid(f, "want tone type, got %T", v)
		case t == rig.ToneNone, t == rig.ToneBurst1750, t == rig.ToneCTCSS, t == rig.ToneCTCSSSql, t == rig.ToneDCS:
			return t, nil
		}
		return nil, invalid(f, "unknown tone type %q", t)

	case KindMeter:
		m, ok := v.(rig.Meter)
		if !ok {
			return nil, invalid(f, "want meter, got %T", v)
		}
		if _, err := rig.ParseMeter(string(m)); err != nil {
			return nil, invalid(f, "%v", err)
		}
		return m, nil

	case KindBand:
		name, ok := v.(string)
		if !ok {
			return nil, invalid(f, "want band name, got %T", v)
		}
		b, err := rig.LookupBand(name)
		if err != nil {
			return nil, invalid(f, "%v", err)
		}
		return b.Name, nil

	case KindAction:
		if v == nil {
			return true, nil
		}
		if b, ok := v.(bool); ok && b {
			return true, nil
		}
		return nil, invalid(f, "actions take no value")
	}
	return nil, invalid(f, "unsupported kind")
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes", "enable", "enabled":
		return true, nil
	case "off", "no", "disable", "disabled":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || x != math.Trunc(x) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int64(x), nil
}

// parseFreq accepts plain Hz or a k/M suffixed value ("14.074M")
func parseFreq(s string) (int64, error) {
	mult := 1.0
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "mhz"), strings.HasSuffix(lower, "m"):
		mult = 1e6
	case strings.HasSuffix(lower, "khz"), strings.HasSuffix(lower, "k"):
		mult = 1e3
	}
	num := strings.TrimRight(lower, "mhzk")
	x, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("not a frequency: %q", s)
	}
	return int64(math.Round(x * mult)), nil
}

func parseLevel(s string) (float64, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		x, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		return x / 100, err
	}
	return strconv.ParseFloat(s, 64)
}

func parseBreakIn(s string) (rig.BreakIn, error) {
	switch b := rig.BreakIn(strings.ToLower(s)); b {
	case rig.BreakInOff, rig.BreakInSemi, rig.BreakInFull:
		return b, nil
	}
	return "", fmt.Errorf("unknown break-in %q", s)
}

func parseShift(s string) (rig.RptrShift, error) {
	switch strings.ToLower(s) {
	case "none", "off", "0", "simplex":
		return rig.ShiftNone, nil
	case "minus", "-":
		return rig.ShiftMinus, nil
	case "plus", "+":
		return rig.ShiftPlus, nil
	}
	return "", fmt.Errorf("unknown repeater shift %q", s)
}

func parseToneType(s string) (rig.ToneType, error) {
	switch strings.ToLower(s) {
	case "none", "off":
		return rig.ToneNone, nil
	case "burst", "1750", "burst1750":
		return rig.ToneBurst1750, nil
	case "ctcss", "tone":
		return rig.ToneCTCSS, nil
	case "ctcss_sql", "tsql":
		return rig.ToneCTCSSSql, nil
	case "dcs":
		return rig.ToneDCS, nil
	}
	return "", fmt.Errorf("unknown tone type %q", s)
}

// ParseValue converts operator text into a validated value for f
func ParseValue(f Field, text string) (any, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: unknown field %d", ErrInvalidValue, int(f))
	}
	s := strings.TrimSpace(text)

	var v any
	var err error
	switch f.Kind() {
	case KindBool:
		v, err = parseBool(s)
	case KindFreq:
		v, err = parseFreq(s)
	case KindInt:
		v, err = parseInt(s)
	case KindLevel:
		v, err = parseLevel(s)
	case KindPower:
		var on bool
		on, err = parseBool(s)
		v = rig.PowerOff
		if on {
			v = rig.PowerOn
		}
	case KindMode:
		v, err = rig.ParseMode(s)
	case KindAntenna:
		v, err = rig.ParseAntenna(s)
	case KindAGC:
		v, err = rig.ParseAGC(s)
	case KindBreakIn:
		v, err = parseBreakIn(s)
	case KindShift:
		v, err = parseShift(s)
	case KindToneType:
		v, err = parseToneType(s)
	case KindMeter:
		v, err = rig.ParseMeter(s)
	case KindBand:
		v = s
	case KindAction:
		v = true
		if s != "" {
			var b bool
			if b, err = parseBool(s); err == nil && !b {
				err = errors.New("actions cannot be cleared")
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidValue, f, err)
	}
	return Validate(f, v)
}

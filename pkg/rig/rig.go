package rig

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// VFO identifies one tunable frequency/mode context of a transceiver
type VFO string

const (
	VFONone    VFO = ""
	VFOA       VFO = "VFOA"
	VFOB       VFO = "VFOB"
	VFOMain    VFO = "Main"
	VFOSub     VFO = "Sub"
	VFOCurrent VFO = "currVFO"
)

// ParseVFO parses a VFO name as printed by rigctl
func ParseVFO(s string) (VFO, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vfoa", "a":
		return VFOA, nil
	case "vfob", "b":
		return VFOB, nil
	case "main":
		return VFOMain, nil
	case "sub":
		return VFOSub, nil
	case "currvfo", "current", "curr":
		return VFOCurrent, nil
	}
	return VFONone, fmt.Errorf("unknown VFO %q", s)
}

// Mode is an operating mode, named as hamlib names it
type Mode string

const (
	ModeNone   Mode = ""
	ModeAM     Mode = "AM"
	ModeAMS    Mode = "AMS"
	ModeCW     Mode = "CW"
	ModeCWR    Mode = "CWR"
	ModeUSB    Mode = "USB"
	ModeLSB    Mode = "LSB"
	ModeRTTY   Mode = "RTTY"
	ModeRTTYR  Mode = "RTTYR"
	ModeFM     Mode = "FM"
	ModeFMN    Mode = "FMN"
	ModeWFM    Mode = "WFM"
	ModePKTUSB Mode = "PKTUSB"
	ModePKTLSB Mode = "PKTLSB"
	ModePKTFM  Mode = "PKTFM"
)

var knownModes = []Mode{
	ModeAM, ModeAMS, ModeCW, ModeCWR, ModeUSB, ModeLSB, ModeRTTY, ModeRTTYR,
	ModeFM, ModeFMN, ModeWFM, ModePKTUSB, ModePKTLSB, ModePKTFM,
}

// ParseMode parses a mode name, case-insensitively
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	if slices.Contains(knownModes, m) {
		return m, nil
	}
	return ModeNone, fmt.Errorf("unknown mode %q", s)
}

// IsCW reports whether CW keying parameters apply to the mode
func (m Mode) IsCW() bool {
	return m == ModeCW || m == ModeCWR
}

// IsFM reports whether repeater and tone parameters apply to the mode
func (m Mode) IsFM() bool {
	return m == ModeFM || m == ModeFMN || m == ModeWFM || m == ModePKTFM
}

// NarrowWidth returns the passband at or below which a filter counts as narrow
func NarrowWidth(m Mode) int {
	switch {
	case m.IsCW():
		return 500
	case m == ModeRTTY || m == ModeRTTYR:
		return 300
	case m == ModeAM || m == ModeAMS:
		return 3000
	case m.IsFM():
		return 6000
	case m == ModeNone:
		return 0
	default:
		return 1800
	}
}

// Passband special values
const (
	PassbandNoChange = -1
	PassbandNormal   = 0
)

// PowerStatus is the power state of the device
type PowerStatus string

const (
	PowerOff     PowerStatus = "off"
	PowerOn      PowerStatus = "on"
	PowerUnknown PowerStatus = "unknown"
)

// IsOn reports whether the device may be operating. Unknown counts as on
// because many devices cannot report power over their control channel.
func (p PowerStatus) IsOn() bool {
	return p != PowerOff
}

// Level names a continuous or stepped device setting or meter
type Level string

const (
	LevelAF          Level = "AF"
	LevelRF          Level = "RF"
	LevelSquelch     Level = "SQL"
	LevelRFPower     Level = "RFPOWER"
	LevelMicGain     Level = "MICGAIN"
	LevelMonitorGain Level = "MONITOR_GAIN"
	LevelNR          Level = "NR"
	LevelIFShift     Level = "IF"
	LevelAGC         Level = "AGC"
	LevelAttenuator  Level = "ATT"
	LevelPreamp      Level = "PREAMP"
	LevelKeySpeed    Level = "KEYSPD"
	LevelStrength    Level = "STRENGTH"
	LevelPowerMeter  Level = "RFPOWER_METER"
	LevelSWR         Level = "SWR"
	LevelALC         Level = "ALC"
	LevelCompMeter   Level = "COMP_METER"
	LevelIDMeter     Level = "ID_METER"
	LevelVDMeter     Level = "VD_METER"
	LevelBandSelect  Level = "BAND_SELECT"
)

// LevelSet is a set of levels
type LevelSet []Level

// Has reports whether l is in the set
func (s LevelSet) Has(l Level) bool { return slices.Contains(s, l) }

// Func names an on/off device function
type Func string

const (
	FuncNB       Func = "NB"
	FuncNR       Func = "NR"
	FuncANF      Func = "ANF"
	FuncTuner    Func = "TUNER"
	FuncRIT      Func = "RIT"
	FuncXIT      Func = "XIT"
	FuncSemiBKIN Func = "SBKIN"
	FuncFullBKIN Func = "FBKIN"
	FuncAPF      Func = "APF"
	FuncComp     Func = "COMP"
	FuncMonitor  Func = "MON"
	FuncTBurst   Func = "TBURST"
	FuncTone     Func = "TONE"
	FuncTSQL     Func = "TSQL"
	FuncCSQL     Func = "CSQL"
)

// FuncSet is a set of functions
type FuncSet []Func

// Has reports whether f is in the set
func (s FuncSet) Has(f Func) bool { return slices.Contains(s, f) }

// VFOOp is a VFO operation
type VFOOp string

const (
	OpCopy     VFOOp = "CPY"
	OpExchange VFOOp = "XCHG"
	OpUp       VFOOp = "UP"
	OpDown     VFOOp = "DOWN"
	OpBandUp   VFOOp = "BAND_UP"
	OpBandDown VFOOp = "BAND_DOWN"
	OpTune     VFOOp = "TUNE"
)

// VFOOpSet is a set of VFO operations
type VFOOpSet []VFOOp

// Has reports whether op is in the set
func (s VFOOpSet) Has(op VFOOp) bool { return slices.Contains(s, op) }

// Antenna selects an antenna port
type Antenna int

const (
	AntNone Antenna = iota
	Ant1
	Ant2
	Ant3
	Ant4
	Ant5
	AntUnknown
	AntCurrent
)

var antennaNames = []string{"NONE", "ANT1", "ANT2", "ANT3", "ANT4", "ANT5", "UNK", "CURR"}

func (a Antenna) String() string {
	if a < 0 || int(a) >= len(antennaNames) {
		return "UNK"
	}
	return antennaNames[a]
}

// ParseAntenna accepts ANT1..ANT5 or a bare port number
func ParseAntenna(s string) (Antenna, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range antennaNames {
		if s == name {
			return Antenna(i), nil
		}
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '5' {
		return Antenna(s[0] - '0'), nil
	}
	return AntUnknown, fmt.Errorf("unknown antenna %q", s)
}

// AGC is an AGC time constant, numbered as hamlib numbers it
type AGC int

const (
	AGCOff AGC = iota
	AGCSuperFast
	AGCFast
	AGCSlow
	AGCUser
	AGCMedium
	AGCAuto
)

var agcNames = []string{"OFF", "SUPERFAST", "FAST", "SLOW", "USER", "MEDIUM", "AUTO"}

func (a AGC) String() string {
	if a < 0 || int(a) >= len(agcNames) {
		return "UNKNOWN"
	}
	return agcNames[a]
}

// ParseAGC accepts an AGC name or its numeric value
func ParseAGC(s string) (AGC, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range agcNames {
		if s == name {
			return AGC(i), nil
		}
	}
	if len(s) == 1 && s[0] >= '0' && int(s[0]-'0') < len(agcNames) {
		return AGC(s[0] - '0'), nil
	}
	return AGCOff, fmt.Errorf("unknown AGC setting %q", s)
}

// BreakIn is the CW break-in mode
type BreakIn string

const (
	BreakInOff  BreakIn = "off"
	BreakInSemi BreakIn = "semi"
	BreakInFull BreakIn = "full"
)

// RptrShift is the FM repeater shift direction
type RptrShift string

const (
	ShiftNone  RptrShift = "none"
	ShiftMinus RptrShift = "minus"
	ShiftPlus  RptrShift = "plus"
)

// ToneType selects the sub-audible signalling in FM
type ToneType string

const (
	ToneNone      ToneType = "none"
	ToneBurst1750 ToneType = "burst"
	ToneCTCSS     ToneType = "ctcss"
	ToneCTCSSSql  ToneType = "ctcss_sql"
	ToneDCS       ToneType = "dcs"
)

// Meter is the secondary meter shown while transmitting
type Meter string

const (
	MeterSWR  Meter = "SWR"
	MeterALC  Meter = "ALC"
	MeterComp Meter = "COMP"
	MeterID   Meter = "ID"
	MeterVDD  Meter = "VDD"
)

// Level returns the level used to read the meter
func (m Meter) Level() Level {
	switch m {
	case MeterALC:
		return LevelALC
	case MeterComp:
		return LevelCompMeter
	case MeterID:
		return LevelIDMeter
	case MeterVDD:
		return LevelVDMeter
	default:
		return LevelSWR
	}
}

// ParseMeter parses a meter name
func ParseMeter(s string) (Meter, error) {
	switch m := Meter(strings.ToUpper(strings.TrimSpace(s))); m {
	case MeterSWR, MeterALC, MeterComp, MeterID, MeterVDD:
		return m, nil
	}
	return MeterSWR, fmt.Errorf("unknown meter %q", s)
}

// AntennaState is the answer to an antenna query
type AntennaState struct {
	Current Antenna `json:"current"`
	TX      Antenna `json:"tx"`
	RX      Antenna `json:"rx"`
}

// Rig is the vendor-neutral control surface of a transceiver. Every call
// may block on I/O and must honour ctx cancellation and deadlines.
type Rig interface {
	Open(ctx context.Context) error
	Close() error

	// Capabilities runs the read-only capability probe
	Capabilities(ctx context.Context) (Capabilities, error)

	GetPowerStat(ctx context.Context) (PowerStatus, error)
	SetPowerStat(ctx context.Context, status PowerStatus) error

	GetFreq(ctx context.Context, vfo VFO) (int64, error)
	SetFreq(ctx context.Context, vfo VFO, hz int64) error
	GetMode(ctx context.Context, vfo VFO) (Mode, int, error)
	SetMode(ctx context.Context, vfo VFO, mode Mode, passband int) error
	GetVFO(ctx context.Context) (VFO, error)
	GetSplitVFO(ctx context.Context) (bool, VFO, error)
	SetSplitVFO(ctx context.Context, split bool, txVFO VFO) error
	GetPTT(ctx context.Context) (bool, error)
	SetPTT(ctx context.Context, on bool) error

	GetLevel(ctx context.Context, level Level) (float64, error)
	SetLevel(ctx context.Context, level Level, value float64) error
	GetFunc(ctx context.Context, fn Func) (bool, error)
	SetFunc(ctx context.Context, fn Func, on bool) error
	VFOOp(ctx context.Context, op VFOOp) error
	SetBand(ctx context.Context, band Band) error

	GetAntenna(ctx context.Context) (AntennaState, error)
	SetAntenna(ctx context.Context, ant Antenna) error

	GetRIT(ctx context.Context) (int, error)
	SetRIT(ctx context.Context, hz int) error
	GetXIT(ctx context.Context) (int, error)
	SetXIT(ctx context.Context, hz int) error

	GetRptrShift(ctx context.Context) (RptrShift, error)
	SetRptrShift(ctx context.Context, shift RptrShift) error
	GetRptrOffset(ctx context.Context) (int, error)
	SetRptrOffset(ctx context.Context, hz int) error
	// GetTone reads the CTCSS tone (tenths of Hz) or DCS code for kind
	GetTone(ctx context.Context, kind ToneType) (int, error)
	SetTone(ctx context.Context, kind ToneType, value int) error

	// SendRaw passes a vendor command through untouched
	SendRaw(ctx context.Context, cmd string) (string, error)
}

// Capabilities describes what one connected device instance can do. It is
// filled once by the capability probe and never changes afterwards.
type Capabilities struct {
	ModelID      int    `json:"model_id"`
	ModelName    string `json:"model_name"`
	Manufacturer string `json:"manufacturer"`
	Version      string `json:"version"`

	SupportsPowerToggle   bool `json:"supports_power_toggle"`
	CanGetPower           bool `json:"can_get_power"`
	SupportsPTT           bool `json:"supports_ptt"`
	SupportsBandSelect    bool `json:"supports_band_select"`
	SubVFOFreqAddressable bool `json:"sub_vfo_freq_addressable"`
	SubVFOModeAddressable bool `json:"sub_vfo_mode_addressable"`
	CanGetAntenna         bool `json:"can_get_antenna"`
	CanSetAntenna         bool `json:"can_set_antenna"`
	CanRIT                bool `json:"can_rit"`
	CanXIT                bool `json:"can_xit"`
	CanRepeater           bool `json:"can_repeater"`
	CanRaw                bool `json:"can_raw"`

	MainVFO VFO `json:"main_vfo"`
	SubVFO  VFO `json:"sub_vfo"`

	Modes       []Mode   `json:"modes"`
	Attenuators []int    `json:"attenuators"`
	Preamps     []int    `json:"preamps"`
	CTCSSTones  []int    `json:"ctcss_tones"`
	Antennas    int      `json:"antennas"`
	GetLevels   LevelSet `json:"get_levels"`
	SetLevels   LevelSet `json:"set_levels"`
	GetFuncs    FuncSet  `json:"get_funcs"`
	SetFuncs    FuncSet  `json:"set_funcs"`
	VFOOps      VFOOpSet `json:"vfo_ops"`
}

// HasMeter reports whether the secondary meter can be read
func (c Capabilities) HasMeter(m Meter) bool {
	return c.GetLevels.Has(m.Level())
}

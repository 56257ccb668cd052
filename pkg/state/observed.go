package state

import "github.com/dougsko/rigsync/pkg/rig"

// Observed mirrors what the device last reported or acknowledged
type Observed struct {
	Power     rig.PowerStatus `json:"power"`
	FreqMain  int64           `json:"freq_main"`
	FreqSub   int64           `json:"freq_sub"`
	ActiveVFO rig.VFO         `json:"active_vfo"`
	ModeMain  rig.Mode        `json:"mode_main"`
	ModeSub   rig.Mode        `json:"mode_sub"`
	Bandwidth int             `json:"bandwidth"`
	Narrow    bool            `json:"narrow"`
	Split     bool            `json:"split"`
	TXVFO     rig.VFO         `json:"tx_vfo"`
	PTT       bool            `json:"ptt"`

	// SMeter is dB relative to S9 while receiving. PowerMeter is 0..1
	// while transmitting.
	SMeter     float64   `json:"s_meter"`
	PowerMeter float64   `json:"power_meter"`
	Meter      rig.Meter `json:"meter"`
	MeterValue float64   `json:"meter_value"`

	AGC        rig.AGC          `json:"agc"`
	Attenuator int              `json:"attenuator"`
	Preamp     int              `json:"preamp"`
	Antenna    rig.AntennaState `json:"antenna"`

	RFPower     float64 `json:"rf_power"`
	RFGain      float64 `json:"rf_gain"`
	AFGain      float64 `json:"af_gain"`
	Squelch     float64 `json:"squelch"`
	MicGain     float64 `json:"mic_gain"`
	MonitorGain float64 `json:"monitor_gain"`

	NoiseBlanker   bool    `json:"nb"`
	NoiseReduction bool    `json:"nr"`
	NRLevel        float64 `json:"nr_level"`
	Notch          bool    `json:"notch"`
	IFShift        int     `json:"if_shift"`

	RIT       bool `json:"rit"`
	RITOffset int  `json:"rit_offset"`
	XIT       bool `json:"xit"`
	XITOffset int  `json:"xit_offset"`

	BreakIn    rig.BreakIn `json:"break_in"`
	APF        bool        `json:"apf"`
	KeyerSpeed int         `json:"keyer_speed"`

	RepeaterShift  rig.RptrShift `json:"rptr_shift"`
	RepeaterOffset int           `json:"rptr_offset"`
	ToneType       rig.ToneType  `json:"tone_type"`
	Tone           int           `json:"tone"`

	Tuner      bool `json:"tuner"`
	Compressor bool `json:"compressor"`
	Monitor    bool `json:"monitor"`
}

// NewObserved returns the state of a device nothing is known about yet
func NewObserved() Observed {
	return Observed{
		Power:         rig.PowerUnknown,
		Meter:         rig.MeterSWR,
		BreakIn:       rig.BreakInOff,
		RepeaterShift: rig.ShiftNone,
		ToneType:      rig.ToneNone,
	}
}

// Apply records an acknowledged write of a validated value. Actions have
// no observed counterpart and are ignored.
func (o *Observed) Apply(f Field, v any) {
	switch f {
	case FieldPTT:
		o.PTT = v.(bool)
	case FieldFreqMain:
		o.FreqMain = v.(int64)
	case FieldFreqSub:
		o.FreqSub = v.(int64)
	case FieldPower:
		o.Power = v.(rig.PowerStatus)
	case FieldModeMain:
		o.ModeMain = v.(rig.Mode)
	case FieldModeSub:
		o.ModeSub = v.(rig.Mode)
	case FieldBandwidth:
		o.Bandwidth = v.(int)
	case FieldNarrow:
		o.Narrow = v.(bool)
	case FieldSplit:
		o.Split = v.(bool)
	case FieldTuner:
		o.Tuner = v.(bool)
	case FieldAntenna:
		a := v.(rig.Antenna)
		o.Antenna = rig.AntennaState{Current: a, TX: a, RX: a}
	case FieldAGC:
		o.AGC = v.(rig.AGC)
	case FieldAttenuator:
		o.Attenuator = v.(int)
	case FieldPreamp:
		o.Preamp = v.(int)
	case FieldRFPower:
		o.RFPower = v.(float64)
	case FieldRFGain:
		o.RFGain = v.(float64)
	case FieldAFGain:
		o.AFGain = v.(float64)
	case FieldSquelch:
		o.Squelch = v.(float64)
	case FieldMicGain:
		o.MicGain = v.(float64)
	case FieldMonitorGain:
		o.MonitorGain = v.(float64)
	case FieldNoiseBlanker:
		o.NoiseBlanker = v.(bool)
	case FieldNoiseReduction:
		o.NoiseReduction = v.(bool)
	case FieldNRLevel:
		o.NRLevel = v.(float64)
	case FieldNotch:
		o.Notch = v.(bool)
	case FieldIFShift:
		o.IFShift = v.(int)
	case FieldRIT:
		o.RIT = v.(bool)
	case FieldRITOffset:
		o.RITOffset = v.(int)
	case FieldXIT:
		o.XIT = v.(bool)
	case FieldXITOffset:
		o.XITOffset = v.(int)
	case FieldBreakIn:
		o.BreakIn = v.(rig.BreakIn)
	case FieldAPF:
		o.APF = v.(bool)
	case FieldKeyerSpeed:
		o.KeyerSpeed = v.(int)
	case FieldRepeaterShift:
		o.RepeaterShift = v.(rig.RptrShift)
	case FieldRepeaterOffset:
		o.RepeaterOffset = v.(int)
	case FieldToneType:
		o.ToneType = v.(rig.ToneType)
	case FieldTone:
		o.Tone = v.(int)
	case FieldCompressor:
		o.Compressor = v.(bool)
	case FieldMonitor:
		o.Monitor = v.(bool)
	case FieldMeter:
		o.Meter = v.(rig.Meter)
	}
}

// Transmitting reports whether the device is keyed
func (o *Observed) Transmitting() bool {
	return o.PTT
}

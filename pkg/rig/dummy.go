package rig

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Dummy is an in-process simulated transceiver. It behaves like hamlib's
// dummy backend and additionally records every call and can be told to
// fail or stall specific operations.
type Dummy struct {
	mu sync.Mutex

	open     bool
	caps     Capabilities
	power    PowerStatus
	freq     map[VFO]int64
	mode     map[VFO]Mode
	width    map[VFO]int
	vfo      VFO
	split    bool
	txVFO    VFO
	ptt      bool
	levels   map[Level]float64
	funcs    map[Func]bool
	ant      AntennaState
	rit, xit int
	shift    RptrShift
	offset   int
	tones    map[ToneType]int

	calls    []string
	failures map[string]error
	delay    time.Duration
}

// CTCSS tones offered by the simulated transceiver, in tenths of Hz
var standardCTCSS = []int{
	670, 693, 719, 744, 770, 797, 825, 854, 885, 915, 948, 974, 1000, 1035, 1072, 1109,
	1148, 1188, 1230, 1273, 1318, 1365, 1413, 1462, 1514, 1567, 1622, 1679, 1738, 1799,
	1862, 1928, 2035, 2107, 2181, 2257, 2336, 2418, 2503,
}

// NewDummy creates a powered-on simulated transceiver on 20m USB
func NewDummy() *Dummy {
	d := &Dummy{
		power:    PowerOn,
		freq:     map[VFO]int64{VFOA: 14074000, VFOB: 14079000},
		mode:     map[VFO]Mode{VFOA: ModeUSB, VFOB: ModeUSB},
		width:    map[VFO]int{VFOA: 2400, VFOB: 2400},
		vfo:      VFOA,
		txVFO:    VFOA,
		levels:   make(map[Level]float64),
		funcs:    make(map[Func]bool),
		ant:      AntennaState{Current: Ant1, TX: Ant1, RX: Ant1},
		shift:    ShiftNone,
		tones:    map[ToneType]int{ToneCTCSS: 885, ToneCTCSSSql: 885, ToneDCS: 23},
		failures: make(map[string]error),
	}
	d.levels[LevelRFPower] = 0.5
	d.levels[LevelAF] = 0.3
	d.levels[LevelRF] = 1.0
	d.levels[LevelMicGain] = 0.5
	d.levels[LevelMonitorGain] = 0.2
	d.levels[LevelNR] = 0.3
	d.levels[LevelKeySpeed] = 20
	d.levels[LevelAGC] = float64(AGCMedium)
	d.levels[LevelVDMeter] = 13.8

	allLevels := LevelSet{
		LevelAF, LevelRF, LevelSquelch, LevelRFPower, LevelMicGain, LevelMonitorGain,
		LevelNR, LevelIFShift, LevelAGC, LevelAttenuator, LevelPreamp, LevelKeySpeed,
	}
	meters := LevelSet{
		LevelStrength, LevelPowerMeter, LevelSWR, LevelALC, LevelCompMeter, LevelIDMeter, LevelVDMeter,
	}
	allFuncs := FuncSet{
		FuncNB, FuncNR, FuncANF, FuncTuner, FuncRIT, FuncXIT, FuncSemiBKIN, FuncFullBKIN,
		FuncAPF, FuncComp, FuncMonitor, FuncTBurst, FuncTone, FuncTSQL, FuncCSQL,
	}
	d.caps = Capabilities{
		ModelID:               ModelDummy,
		ModelName:             "Dummy",
		Manufacturer:          "Hamlib",
		Version:               "simulated",
		SupportsPowerToggle:   true,
		CanGetPower:           true,
		SupportsPTT:           true,
		SupportsBandSelect:    true,
		SubVFOFreqAddressable: true,
		SubVFOModeAddressable: true,
		CanGetAntenna:         true,
		CanSetAntenna:         true,
		CanRIT:                true,
		CanXIT:                true,
		CanRepeater:           true,
		CanRaw:                true,
		MainVFO:               VFOA,
		SubVFO:                VFOB,
		Modes:                 append([]Mode(nil), knownModes...),
		Attenuators:           []int{6, 12, 18},
		Preamps:               []int{10, 20},
		CTCSSTones:            standardCTCSS,
		Antennas:              2,
		GetLevels:             append(append(LevelSet{}, allLevels...), meters...),
		SetLevels:             allLevels,
		GetFuncs:              allFuncs,
		SetFuncs:              allFuncs,
		VFOOps:                VFOOpSet{OpCopy, OpExchange, OpUp, OpDown, OpBandUp, OpBandDown, OpTune},
	}
	return d
}

// ModifyCapabilities edits what the probe will report
func (d *Dummy) ModifyCapabilities(fn func(*Capabilities)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.caps)
}

// FailOn makes every call matching op return err. op is either a bare
// verb ("get_level") or a verb with its argument ("get_level AGC").
func (d *Dummy) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op] = err
}

// ClearFailures removes every injected failure
func (d *Dummy) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = make(map[string]error)
}

// SetDelay makes every call take at least delay
func (d *Dummy) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Calls returns the operations performed so far
func (d *Dummy) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// ResetCalls clears the call log
func (d *Dummy) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = nil
}

// Key simulates the operator pressing the transmit key on the front panel
func (d *Dummy) Key(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ptt = on
}

// begin records op and applies injected delay and failure. The lock is
// held on success and must be released by the caller.
func (d *Dummy) begin(ctx context.Context, op string) error {
	d.mu.Lock()
	d.calls = append(d.calls, op)
	delay := d.delay
	err := d.failures[op]
	if err == nil {
		verb, _, _ := strings.Cut(op, " ")
		err = d.failures[verb]
	}
	open := d.open
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !open && op != "open" {
		return ErrNotOpen
	}
	if err != nil {
		return err
	}
	d.mu.Lock()
	if d.power == PowerOff {
		switch op {
		case "open", "dump_caps", "get_powerstat", "set_powerstat":
		default:
			d.mu.Unlock()
			return &StatusError{Code: -5, Message: "communication timed out"}
		}
	}
	return nil
}

// Open opens the simulated channel
func (d *Dummy) Open(ctx context.Context) error {
	if err := d.begin(ctx, "open"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.open = true
	return nil
}

// Close closes the simulated channel
func (d *Dummy) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, "close")
	d.open = false
	return nil
}

// Capabilities returns the simulated capability set
func (d *Dummy) Capabilities(ctx context.Context) (Capabilities, error) {
	if err := d.begin(ctx, "dump_caps"); err != nil {
		return Capabilities{}, err
	}
	defer d.mu.Unlock()
	return d.caps, nil
}

func (d *Dummy) GetPowerStat(ctx context.Context) (PowerStatus, error) {
	if err := d.begin(ctx, "get_powerstat"); err != nil {
		return PowerUnknown, err
	}
	defer d.mu.Unlock()
	return d.power, nil
}

func (d *Dummy) SetPowerStat(ctx context.Context, status PowerStatus) error {
	if err := d.begin(ctx, "set_powerstat"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.power = status
	if status == PowerOff {
		d.ptt = false
	}
	return nil
}

func (d *Dummy) resolve(vfo VFO) VFO {
	if vfo == VFOCurrent || vfo == VFONone {
		return d.vfo
	}
	if vfo == VFOMain {
		return VFOA
	}
	if vfo == VFOSub {
		return VFOB
	}
	return vfo
}

func (d *Dummy) GetFreq(ctx context.Context, vfo VFO) (int64, error) {
	if err := d.begin(ctx, "get_freq "+string(vfo)); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.freq[d.resolve(vfo)], nil
}

func (d *Dummy) SetFreq(ctx context.Context, vfo VFO, hz int64) error {
	if err := d.begin(ctx, "set_freq "+string(vfo)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if hz <= 0 {
		return &StatusError{Code: -1, Message: "invalid parameter"}
	}
	d.freq[d.resolve(vfo)] = hz
	return nil
}

func (d *Dummy) GetMode(ctx context.Context, vfo VFO) (Mode, int, error) {
	if err := d.begin(ctx, "get_mode "+string(vfo)); err != nil {
		return ModeNone, 0, err
	}
	defer d.mu.Unlock()
	v := d.resolve(vfo)
	return d.mode[v], d.width[v], nil
}

func (d *Dummy) SetMode(ctx context.Context, vfo VFO, mode Mode, passband int) error {
	if err := d.begin(ctx, "set_mode "+string(vfo)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	v := d.resolve(vfo)
	if mode != ModeNone {
		d.mode[v] = mode
	}
	switch passband {
	case PassbandNoChange:
	case PassbandNormal:
		d.width[v] = normalWidth(d.mode[v])
	default:
		d.width[v] = passband
	}
	return nil
}

func normalWidth(m Mode) int {
	switch {
	case m.IsCW():
		return 1200
	case m == ModeAM || m == ModeAMS:
		return 6000
	case m == ModeWFM:
		return 230000
	case m.IsFM():
		return 15000
	case m == ModeRTTY || m == ModeRTTYR:
		return 500
	default:
		return 2400
	}
}

func (d *Dummy) GetVFO(ctx context.Context) (VFO, error) {
	if err := d.begin(ctx, "get_vfo"); err != nil {
		return VFONone, err
	}
	defer d.mu.Unlock()
	return d.vfo, nil
}

func (d *Dummy) GetSplitVFO(ctx context.Context) (bool, VFO, error) {
	if err := d.begin(ctx, "get_split_vfo"); err != nil {
		return false, VFONone, err
	}
	defer d.mu.Unlock()
	return d.split, d.txVFO, nil
}

func (d *Dummy) SetSplitVFO(ctx context.Context, split bool, txVFO VFO) error {
	if err := d.begin(ctx, "set_split_vfo"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.split = split
	d.txVFO = d.resolve(txVFO)
	return nil
}

func (d *Dummy) GetPTT(ctx context.Context) (bool, error) {
	if err := d.begin(ctx, "get_ptt"); err != nil {
		return false, err
	}
	defer d.mu.Unlock()
	return d.ptt, nil
}

func (d *Dummy) SetPTT(ctx context.Context, on bool) error {
	if err := d.begin(ctx, "set_ptt"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.ptt = on
	return nil
}

func (d *Dummy) GetLevel(ctx context.Context, level Level) (float64, error) {
	if err := d.begin(ctx, "get_level "+string(level)); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	switch level {
	case LevelStrength:
		// deterministic band noise that moves with the dial
		return float64(-54 + (d.freq[d.vfo]/1000)%30), nil
	case LevelPowerMeter:
		if d.ptt {
			return d.levels[LevelRFPower], nil
		}
		return 0, nil
	case LevelSWR:
		if d.ptt {
			return 1.3, nil
		}
		return 1.0, nil
	case LevelALC:
		if d.ptt {
			return 0.2, nil
		}
		return 0, nil
	}
	return d.levels[level], nil
}

func (d *Dummy) SetLevel(ctx context.Context, level Level, value float64) error {
	if err := d.begin(ctx, "set_level "+string(level)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if !d.caps.SetLevels.Has(level) {
		return &StatusError{Code: -11, Message: "feature not available"}
	}
	d.levels[level] = value
	return nil
}

func (d *Dummy) GetFunc(ctx context.Context, fn Func) (bool, error) {
	if err := d.begin(ctx, "get_func "+string(fn)); err != nil {
		return false, err
	}
	defer d.mu.Unlock()
	return d.funcs[fn], nil
}

func (d *Dummy) SetFunc(ctx context.Context, fn Func, on bool) error {
	if err := d.begin(ctx, "set_func "+string(fn)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.funcs[fn] = on
	return nil
}

func (d *Dummy) VFOOp(ctx context.Context, op VFOOp) error {
	if err := d.begin(ctx, "vfo_op "+string(op)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	switch op {
	case OpExchange:
		d.freq[VFOA], d.freq[VFOB] = d.freq[VFOB], d.freq[VFOA]
		d.mode[VFOA], d.mode[VFOB] = d.mode[VFOB], d.mode[VFOA]
		d.width[VFOA], d.width[VFOB] = d.width[VFOB], d.width[VFOA]
	case OpCopy:
		d.freq[VFOB], d.mode[VFOB], d.width[VFOB] = d.freq[VFOA], d.mode[VFOA], d.width[VFOA]
	case OpUp:
		d.freq[d.vfo] += 100
	case OpDown:
		d.freq[d.vfo] -= 100
	case OpBandUp, OpBandDown:
		d.freq[d.vfo] = stepBand(d.freq[d.vfo], op == OpBandUp).Default
	case OpTune:
		d.funcs[FuncTuner] = true
	default:
		return &StatusError{Code: -1, Message: fmt.Sprintf("unknown op %s", op)}
	}
	return nil
}

// stepBand returns the amateur band above or below the one containing hz
func stepBand(hz int64, up bool) Band {
	ham := Bands[:len(Bands)-1]
	cur := BandForFreq(hz)
	for i, b := range ham {
		if b.Name != cur.Name {
			continue
		}
		if up {
			return ham[(i+1)%len(ham)]
		}
		return ham[(i+len(ham)-1)%len(ham)]
	}
	for _, b := range ham {
		if b.Lower > hz {
			return b
		}
	}
	return ham[0]
}

func (d *Dummy) SetBand(ctx context.Context, band Band) error {
	if err := d.begin(ctx, "set_band "+band.Name); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.freq[d.vfo] = band.Default
	return nil
}

func (d *Dummy) GetAntenna(ctx context.Context) (AntennaState, error) {
	if err := d.begin(ctx, "get_ant"); err != nil {
		return AntennaState{}, err
	}
	defer d.mu.Unlock()
	return d.ant, nil
}

func (d *Dummy) SetAntenna(ctx context.Context, ant Antenna) error {
	if err := d.begin(ctx, "set_ant"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	if int(ant) < 1 || int(ant) > d.caps.Antennas {
		return &StatusError{Code: -1, Message: "invalid antenna"}
	}
	d.ant = AntennaState{Current: ant, TX: ant, RX: ant}
	return nil
}

func (d *Dummy) GetRIT(ctx context.Context) (int, error) {
	if err := d.begin(ctx, "get_rit"); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.rit, nil
}

func (d *Dummy) SetRIT(ctx context.Context, hz int) error {
	if err := d.begin(ctx, "set_rit"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.rit = hz
	return nil
}

func (d *Dummy) GetXIT(ctx context.Context) (int, error) {
	if err := d.begin(ctx, "get_xit"); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.xit, nil
}

func (d *Dummy) SetXIT(ctx context.Context, hz int) error {
	if err := d.begin(ctx, "set_xit"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.xit = hz
	return nil
}

func (d *Dummy) GetRptrShift(ctx context.Context) (RptrShift, error) {
	if err := d.begin(ctx, "get_rptr_shift"); err != nil {
		return ShiftNone, err
	}
	defer d.mu.Unlock()
	return d.shift, nil
}

func (d *Dummy) SetRptrShift(ctx context.Context, shift RptrShift) error {
	if err := d.begin(ctx, "set_rptr_shift"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.shift = shift
	return nil
}

func (d *Dummy) GetRptrOffset(ctx context.Context) (int, error) {
	if err := d.begin(ctx, "get_rptr_offs"); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.offset, nil
}

func (d *Dummy) SetRptrOffset(ctx context.Context, hz int) error {
	if err := d.begin(ctx, "set_rptr_offs"); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.offset = hz
	return nil
}

func (d *Dummy) GetTone(ctx context.Context, kind ToneType) (int, error) {
	if err := d.begin(ctx, "get_tone "+string(kind)); err != nil {
		return 0, err
	}
	defer d.mu.Unlock()
	return d.tones[kind], nil
}

func (d *Dummy) SetTone(ctx context.Context, kind ToneType, value int) error {
	if err := d.begin(ctx, "set_tone "+string(kind)); err != nil {
		return err
	}
	defer d.mu.Unlock()
	d.tones[kind] = value
	return nil
}

// SendRaw echoes the command back
func (d *Dummy) SendRaw(ctx context.Context, cmd string) (string, error) {
	if err := d.begin(ctx, "send_raw"); err != nil {
		return "", err
	}
	defer d.mu.Unlock()
	return strings.TrimSuffix(cmd, ";") + ";", nil
}

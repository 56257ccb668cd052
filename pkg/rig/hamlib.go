//go:build hamlib

package rig

/*
#cgo pkg-config: hamlib
#include <hamlib/rig.h>
#include <stdlib.h>
#include <string.h>

static int set_conf(RIG *rig, const char *name, const char *value) {
    if (rig && name && value) {
        token_t token = rig_token_lookup(rig, name);
        if (token != RIG_CONF_END) {
            return rig_set_conf(rig, token, value);
        }
    }
    return -RIG_EINVAL;
}

static const struct rig_caps *model_caps(rig_model_t model) {
    static int loaded = 0;
    if (!loaded) {
        rig_load_all_backends();
        loaded = 1;
    }
    return rig_get_caps(model);
}

static int caps_port_type(const struct rig_caps *caps) {
    return caps ? (int)caps->port_type : -1;
}

static int get_level_f(RIG *rig, vfo_t vfo, setting_t level, double *out) {
    value_t val;
    int ret = rig_get_level(rig, vfo, level, &val);
    if (ret == RIG_OK) {
        *out = RIG_LEVEL_IS_FLOAT(level) ? (double)val.f : (double)val.i;
    }
    return ret;
}

static int set_level_f(RIG *rig, vfo_t vfo, setting_t level, double in) {
    value_t val;
    if (RIG_LEVEL_IS_FLOAT(level)) {
        val.f = (float)in;
    } else {
        val.i = (int)in;
    }
    return rig_set_level(rig, vfo, level, val);
}

static int get_antenna(RIG *rig, vfo_t vfo, int *curr, int *tx, int *rx) {
    value_t option;
    ant_t c = 0, t = 0, r = 0;
    int ret = rig_get_ant(rig, vfo, RIG_ANT_CURR, &option, &c, &t, &r);
    *curr = c; *tx = t; *rx = r;
    return ret;
}

static int set_antenna(RIG *rig, vfo_t vfo, int ant) {
    value_t option;
    option.i = 0;
    return rig_set_ant(rig, vfo, RIG_ANT_N(ant - 1), option);
}

static int send_raw(RIG *rig, const char *cmd, char *reply, int reply_len) {
    unsigned char term[] = ";";
    return rig_send_raw(rig, (const unsigned char *)cmd, strlen(cmd),
                        (unsigned char *)reply, reply_len, term);
}

static const char *caps_model_name(RIG *rig) { return rig->caps->model_name; }
static const char *caps_mfg_name(RIG *rig) { return rig->caps->mfg_name; }
static const char *caps_version(RIG *rig) { return rig->caps->version; }
static int caps_can_set_power(RIG *rig) { return rig->caps->set_powerstat != NULL; }
static int caps_can_get_power(RIG *rig) { return rig->caps->get_powerstat != NULL; }
static int caps_can_set_ptt(RIG *rig) { return rig->caps->set_ptt != NULL || rig->caps->ptt_type != RIG_PTT_NONE; }
static int caps_can_get_ant(RIG *rig) { return rig->caps->get_ant != NULL; }
static int caps_can_set_ant(RIG *rig) { return rig->caps->set_ant != NULL; }
static int caps_can_rit(RIG *rig) { return rig->caps->set_rit != NULL; }
static int caps_can_xit(RIG *rig) { return rig->caps->set_xit != NULL; }
static int caps_can_rptr(RIG *rig) { return rig->caps->set_rptr_shift != NULL; }
static int caps_targetable(RIG *rig, int what) { return (rig->caps->targetable_vfo & what) != 0; }
static int caps_attenuator(RIG *rig, int i) { return i < HAMLIB_MAXDBLSTSIZ ? rig->caps->attenuator[i] : 0; }
static int caps_preamp(RIG *rig, int i) { return i < HAMLIB_MAXDBLSTSIZ ? rig->caps->preamp[i] : 0; }
static int caps_ctcss(RIG *rig, int i) { return rig->caps->ctcss_list ? (int)rig->caps->ctcss_list[i] : 0; }
static int caps_has_main_sub(RIG *rig) { return (rig->state.vfo_list & RIG_VFO_MAIN) != 0; }
static int caps_has_mode(RIG *rig, rmode_t mode) { return (rig->state.mode_list & mode) != 0; }
*/
import "C"

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// Hamlib drives a transceiver through the native hamlib library
type Hamlib struct {
	cfg  ConnectionConfig
	rig  *C.RIG
	busy chan struct{}
}

func init() {
	C.rig_set_debug(C.RIG_DEBUG_NONE)
	nativeModel = lookupNativeModel
}

func lookupNativeModel(id int) (Model, bool) {
	caps := C.model_caps(C.rig_model_t(id))
	if caps == nil {
		return Model{}, false
	}

	port := PortSerial
	switch C.caps_port_type(caps) {
	case C.RIG_PORT_NETWORK, C.RIG_PORT_UDP_NETWORK:
		port = PortNetwork
	case C.RIG_PORT_NONE:
		port = PortNone
	}

	return Model{
		ID:           id,
		Manufacturer: C.GoString(caps.mfg_name),
		Name:         C.GoString(caps.model_name),
		Port:         port,
		New:          func(cfg ConnectionConfig) Rig { return NewHamlib(cfg) },
	}, true
}

// NewHamlib creates a native backend for cfg.Model
func NewHamlib(cfg ConnectionConfig) *Hamlib {
	return &Hamlib{cfg: cfg, busy: make(chan struct{}, 1)}
}

// call runs fn on the library with exclusive access. The library cannot be
// interrupted, so when ctx expires first the call keeps the rig busy until
// it returns and the caller gets the context error.
func (h *Hamlib) call(ctx context.Context, op string, fn func() C.int) error {
	select {
	case h.busy <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	if h.rig == nil {
		<-h.busy
		return ErrNotOpen
	}

	done := make(chan C.int, 1)
	go func() {
		defer func() { <-h.busy }()
		done <- fn()
	}()

	select {
	case ret := <-done:
		if ret != C.RIG_OK {
			return fmt.Errorf("failed to %s: %w", op, &StatusError{
				Code:    int(ret),
				Message: C.GoString(C.rigerror(ret)),
			})
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hamlib) setConf(name, value string) error {
	cname := C.CString(name)
	cvalue := C.CString(value)
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(cvalue))

	if ret := C.set_conf(h.rig, cname, cvalue); ret != C.RIG_OK {
		return fmt.Errorf("failed to set %s: %s", name, C.GoString(C.rigerror(ret)))
	}
	return nil
}

// Open initializes the library handle, applies the port settings and opens
// the control channel
func (h *Hamlib) Open(ctx context.Context) error {
	h.rig = C.rig_init(C.rig_model_t(h.cfg.Model))
	if h.rig == nil {
		return &ConnectionError{Kind: InvalidModel, Reason: fmt.Sprintf("hamlib rejected model %d", h.cfg.Model)}
	}

	settings := [][2]string{{"rig_pathname", h.cfg.Port}}
	if !h.cfg.IsNetwork() {
		if h.cfg.BaudRate > 0 {
			settings = append(settings, [2]string{"serial_speed", strconv.Itoa(h.cfg.BaudRate)})
		}
		if h.cfg.DataBits > 0 {
			settings = append(settings, [2]string{"data_bits", strconv.Itoa(h.cfg.DataBits)})
		}
		if h.cfg.StopBits > 0 {
			settings = append(settings, [2]string{"stop_bits", strconv.Itoa(h.cfg.StopBits)})
		}
		if h.cfg.Parity != "" {
			settings = append(settings, [2]string{"serial_parity", hamlibParity(h.cfg.Parity)})
		}
		if h.cfg.Handshake != "" {
			settings = append(settings, [2]string{"serial_handshake", hamlibHandshake(h.cfg.Handshake)})
		}
	}
	if h.cfg.CIVAddress > 0 {
		settings = append(settings, [2]string{"civaddr", strconv.Itoa(h.cfg.CIVAddress)})
	}
	for _, s := range settings {
		if s[1] == "" {
			continue
		}
		if err := h.setConf(s[0], s[1]); err != nil {
			C.rig_cleanup(h.rig)
			h.rig = nil
			return &ConnectionError{Kind: PortOpenFailed, Reason: "invalid settings", Err: err}
		}
	}

	rig := h.rig
	if err := h.call(ctx, "open rig", func() C.int { return C.rig_open(rig) }); err != nil {
		h.busy <- struct{}{}
		C.rig_cleanup(rig)
		h.rig = nil
		<-h.busy
		return err
	}
	return nil
}

// Close closes the channel and releases the handle
func (h *Hamlib) Close() error {
	h.busy <- struct{}{}
	defer func() { <-h.busy }()

	if h.rig == nil {
		return nil
	}
	C.rig_close(h.rig)
	C.rig_cleanup(h.rig)
	h.rig = nil
	return nil
}

func hamlibParity(p Parity) string {
	switch p {
	case ParityEven:
		return "Even"
	case ParityOdd:
		return "Odd"
	case ParityMark:
		return "Mark"
	case ParitySpace:
		return "Space"
	}
	return "None"
}

func hamlibHandshake(h Handshake) string {
	switch h {
	case HandshakeSoftware:
		return "XONXOFF"
	case HandshakeHardware:
		return "Hardware"
	}
	return "None"
}

func vfoValue(v VFO) C.vfo_t {
	switch v {
	case VFOA:
		return C.RIG_VFO_A
	case VFOB:
		return C.RIG_VFO_B
	case VFOMain:
		return C.RIG_VFO_MAIN
	case VFOSub:
		return C.RIG_VFO_SUB
	}
	return C.RIG_VFO_CURR
}

func vfoName(v C.vfo_t) VFO {
	switch v {
	case C.RIG_VFO_A:
		return VFOA
	case C.RIG_VFO_B:
		return VFOB
	case C.RIG_VFO_MAIN:
		return VFOMain
	case C.RIG_VFO_SUB:
		return VFOSub
	}
	return VFOCurrent
}

func modeValue(m Mode) C.rmode_t {
	cs := C.CString(string(m))
	defer C.free(unsafe.Pointer(cs))
	return C.rig_parse_mode(cs)
}

func levelValue(l Level) C.setting_t {
	cs := C.CString(string(l))
	defer C.free(unsafe.Pointer(cs))
	return C.rig_parse_level(cs)
}

func funcValue(f Func) C.setting_t {
	cs := C.CString(string(f))
	defer C.free(unsafe.Pointer(cs))
	return C.rig_parse_func(cs)
}

func vfoOpValue(op VFOOp) C.vfo_op_t {
	cs := C.CString(string(op))
	defer C.free(unsafe.Pointer(cs))
	return C.rig_parse_vfo_op(cs)
}

func hamlibBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

// Capabilities reads the static capability record of the backend
func (h *Hamlib) Capabilities(ctx context.Context) (Capabilities, error) {
	if h.rig == nil {
		return Capabilities{}, ErrNotOpen
	}
	r := h.rig
	caps := Capabilities{
		ModelName:             C.GoString(C.caps_model_name(r)),
		Manufacturer:          C.GoString(C.caps_mfg_name(r)),
		Version:               C.GoString(C.caps_version(r)),
		SupportsPowerToggle:   C.caps_can_set_power(r) != 0,
		CanGetPower:           C.caps_can_get_power(r) != 0,
		SupportsPTT:           C.caps_can_set_ptt(r) != 0,
		SubVFOFreqAddressable: C.caps_targetable(r, C.RIG_TARGETABLE_FREQ) != 0,
		SubVFOModeAddressable: C.caps_targetable(r, C.RIG_TARGETABLE_MODE) != 0,
		CanGetAntenna:         C.caps_can_get_ant(r) != 0,
		CanSetAntenna:         C.caps_can_set_ant(r) != 0,
		CanRIT:                C.caps_can_rit(r) != 0,
		CanXIT:                C.caps_can_xit(r) != 0,
		CanRepeater:           C.caps_can_rptr(r) != 0,
		CanRaw:                true,
		MainVFO:               VFOA,
		SubVFO:                VFOB,
	}
	if C.caps_has_main_sub(r) != 0 {
		caps.MainVFO, caps.SubVFO = VFOMain, VFOSub
	}

	for _, m := range knownModes {
		if C.caps_has_mode(r, modeValue(m)) != 0 {
			caps.Modes = append(caps.Modes, m)
		}
	}
	for i := 0; ; i++ {
		db := int(C.caps_attenuator(r, C.int(i)))
		if db == 0 {
			break
		}
		caps.Attenuators = append(caps.Attenuators, db)
	}
	for i := 0; ; i++ {
		db := int(C.caps_preamp(r, C.int(i)))
		if db == 0 {
			break
		}
		caps.Preamps = append(caps.Preamps, db)
	}
	for i := 0; ; i++ {
		tone := int(C.caps_ctcss(r, C.int(i)))
		if tone == 0 {
			break
		}
		caps.CTCSSTones = append(caps.CTCSSTones, tone)
	}

	levels := []Level{
		LevelAF, LevelRF, LevelSquelch, LevelRFPower, LevelMicGain, LevelMonitorGain,
		LevelNR, LevelIFShift, LevelAGC, LevelAttenuator, LevelPreamp, LevelKeySpeed,
		LevelStrength, LevelPowerMeter, LevelSWR, LevelALC, LevelCompMeter, LevelIDMeter,
		LevelVDMeter, LevelBandSelect,
	}
	for _, l := range levels {
		v := levelValue(l)
		if v == 0 {
			continue
		}
		if C.rig_has_get_level(r, v) != 0 {
			caps.GetLevels = append(caps.GetLevels, l)
		}
		if C.rig_has_set_level(r, v) != 0 {
			caps.SetLevels = append(caps.SetLevels, l)
		}
	}

	funcs := []Func{
		FuncNB, FuncNR, FuncANF, FuncTuner, FuncRIT, FuncXIT, FuncSemiBKIN, FuncFullBKIN,
		FuncAPF, FuncComp, FuncMonitor, FuncTBurst, FuncTone, FuncTSQL, FuncCSQL,
	}
	for _, f := range funcs {
		v := funcValue(f)
		if v == 0 {
			continue
		}
		if C.rig_has_get_func(r, v) != 0 {
			caps.GetFuncs = append(caps.GetFuncs, f)
		}
		if C.rig_has_set_func(r, v) != 0 {
			caps.SetFuncs = append(caps.SetFuncs, f)
		}
	}

	for _, op := range []VFOOp{OpCopy, OpExchange, OpUp, OpDown, OpBandUp, OpBandDown, OpTune} {
		if C.rig_has_vfo_op(r, vfoOpValue(op)) != 0 {
			caps.VFOOps = append(caps.VFOOps, op)
		}
	}

	caps.SupportsBandSelect = caps.SetLevels.Has(LevelBandSelect)
	if caps.CanSetAntenna {
		caps.Antennas = 2
	}
	return caps, nil
}

func (h *Hamlib) GetPowerStat(ctx context.Context) (PowerStatus, error) {
	var st C.powerstat_t
	err := h.call(ctx, "get power status", func() C.int { return C.rig_get_powerstat(h.rig, &st) })
	if err != nil {
		return PowerUnknown, err
	}
	switch st {
	case C.RIG_POWER_OFF, C.RIG_POWER_STANDBY:
		return PowerOff, nil
	case C.RIG_POWER_ON, C.RIG_POWER_OPERATE:
		return PowerOn, nil
	}
	return PowerUnknown, nil
}

func (h *Hamlib) SetPowerStat(ctx context.Context, status PowerStatus) error {
	st := C.powerstat_t(C.RIG_POWER_OFF)
	if status == PowerOn {
		st = C.RIG_POWER_ON
	}
	return h.call(ctx, "set power status", func() C.int { return C.rig_set_powerstat(h.rig, st) })
}

func (h *Hamlib) GetFreq(ctx context.Context, vfo VFO) (int64, error) {
	var freq C.freq_t
	err := h.call(ctx, "get frequency", func() C.int { return C.rig_get_freq(h.rig, vfoValue(vfo), &freq) })
	return int64(freq), err
}

func (h *Hamlib) SetFreq(ctx context.Context, vfo VFO, hz int64) error {
	return h.call(ctx, "set frequency", func() C.int { return C.rig_set_freq(h.rig, vfoValue(vfo), C.freq_t(hz)) })
}

func (h *Hamlib) GetMode(ctx context.Context, vfo VFO) (Mode, int, error) {
	var mode C.rmode_t
	var width C.pbwidth_t
	err := h.call(ctx, "get mode", func() C.int { return C.rig_get_mode(h.rig, vfoValue(vfo), &mode, &width) })
	if err != nil {
		return ModeNone, 0, err
	}
	m, err := ParseMode(C.GoString(C.rig_strrmode(mode)))
	if err != nil {
		return ModeNone, 0, err
	}
	return m, int(width), nil
}

func (h *Hamlib) SetMode(ctx context.Context, vfo VFO, mode Mode, passband int) error {
	m := modeValue(mode)
	if mode == ModeNone {
		m = C.RIG_MODE_NONE
	}
	return h.call(ctx, "set mode", func() C.int {
		return C.rig_set_mode(h.rig, vfoValue(vfo), m, C.pbwidth_t(passband))
	})
}

func (h *Hamlib) GetVFO(ctx context.Context) (VFO, error) {
	var vfo C.vfo_t
	err := h.call(ctx, "get VFO", func() C.int { return C.rig_get_vfo(h.rig, &vfo) })
	return vfoName(vfo), err
}

func (h *Hamlib) GetSplitVFO(ctx context.Context) (bool, VFO, error) {
	var split C.split_t
	var tx C.vfo_t
	err := h.call(ctx, "get split", func() C.int { return C.rig_get_split_vfo(h.rig, C.RIG_VFO_CURR, &split, &tx) })
	return split == C.RIG_SPLIT_ON, vfoName(tx), err
}

func (h *Hamlib) SetSplitVFO(ctx context.Context, split bool, txVFO VFO) error {
	s := C.split_t(C.RIG_SPLIT_OFF)
	if split {
		s = C.RIG_SPLIT_ON
	}
	return h.call(ctx, "set split", func() C.int {
		return C.rig_set_split_vfo(h.rig, C.RIG_VFO_CURR, s, vfoValue(txVFO))
	})
}

func (h *Hamlib) GetPTT(ctx context.Context) (bool, error) {
	var ptt C.ptt_t
	err := h.call(ctx, "get PTT", func() C.int { return C.rig_get_ptt(h.rig, C.RIG_VFO_CURR, &ptt) })
	return ptt != C.RIG_PTT_OFF, err
}

func (h *Hamlib) SetPTT(ctx context.Context, on bool) error {
	ptt := C.ptt_t(C.RIG_PTT_OFF)
	if on {
		ptt = C.RIG_PTT_ON
	}
	return h.call(ctx, "set PTT", func() C.int { return C.rig_set_ptt(h.rig, C.RIG_VFO_CURR, ptt) })
}

func (h *Hamlib) GetLevel(ctx context.Context, level Level) (float64, error) {
	var v C.double
	l := levelValue(level)
	err := h.call(ctx, "get level "+string(level), func() C.int { return C.get_level_f(h.rig, C.RIG_VFO_CURR, l, &v) })
	return float64(v), err
}

func (h *Hamlib) SetLevel(ctx context.Context, level Level, value float64) error {
	l := levelValue(level)
	return h.call(ctx, "set level "+string(level), func() C.int {
		return C.set_level_f(h.rig, C.RIG_VFO_CURR, l, C.double(value))
	})
}

func (h *Hamlib) GetFunc(ctx context.Context, fn Func) (bool, error) {
	var status C.int
	f := funcValue(fn)
	err := h.call(ctx, "get function "+string(fn), func() C.int { return C.rig_get_func(h.rig, C.RIG_VFO_CURR, f, &status) })
	return status != 0, err
}

func (h *Hamlib) SetFunc(ctx context.Context, fn Func, on bool) error {
	f := funcValue(fn)
	return h.call(ctx, "set function "+string(fn), func() C.int {
		return C.rig_set_func(h.rig, C.RIG_VFO_CURR, f, hamlibBool(on))
	})
}

func (h *Hamlib) VFOOp(ctx context.Context, op VFOOp) error {
	o := vfoOpValue(op)
	return h.call(ctx, "run VFO operation "+string(op), func() C.int { return C.rig_vfo_op(h.rig, C.RIG_VFO_CURR, o) })
}

func (h *Hamlib) SetBand(ctx context.Context, band Band) error {
	if band.Select < 0 {
		return ErrNotSupported
	}
	return h.SetLevel(ctx, LevelBandSelect, float64(band.Select))
}

func antennaFromMask(mask C.int) Antenna {
	for i := 0; i < 5; i++ {
		if mask == C.int(1)<<i {
			return Antenna(i + 1)
		}
	}
	if mask == 0 {
		return AntNone
	}
	return AntUnknown
}

func (h *Hamlib) GetAntenna(ctx context.Context) (AntennaState, error) {
	var curr, tx, rx C.int
	err := h.call(ctx, "get antenna", func() C.int { return C.get_antenna(h.rig, C.RIG_VFO_CURR, &curr, &tx, &rx) })
	return AntennaState{
		Current: antennaFromMask(curr),
		TX:      antennaFromMask(tx),
		RX:      antennaFromMask(rx),
	}, err
}

func (h *Hamlib) SetAntenna(ctx context.Context, ant Antenna) error {
	if ant < Ant1 || ant > Ant5 {
		return fmt.Errorf("invalid antenna %s", ant)
	}
	return h.call(ctx, "set antenna", func() C.int { return C.set_antenna(h.rig, C.RIG_VFO_CURR, C.int(ant)) })
}

func (h *Hamlib) GetRIT(ctx context.Context) (int, error) {
	var off C.shortfreq_t
	err := h.call(ctx, "get RIT", func() C.int { return C.rig_get_rit(h.rig, C.RIG_VFO_CURR, &off) })
	return int(off), err
}

func (h *Hamlib) SetRIT(ctx context.Context, hz int) error {
	return h.call(ctx, "set RIT", func() C.int { return C.rig_set_rit(h.rig, C.RIG_VFO_CURR, C.shortfreq_t(hz)) })
}

func (h *Hamlib) GetXIT(ctx context.Context) (int, error) {
	var off C.shortfreq_t
	err := h.call(ctx, "get XIT", func() C.int { return C.rig_get_xit(h.rig, C.RIG_VFO_CURR, &off) })
	return int(off), err
}

func (h *Hamlib) SetXIT(ctx context.Context, hz int) error {
	return h.call(ctx, "set XIT", func() C.int { return C.rig_set_xit(h.rig, C.RIG_VFO_CURR, C.shortfreq_t(hz)) })
}

func (h *Hamlib) GetRptrShift(ctx context.Context) (RptrShift, error) {
	var shift C.rptr_shift_t
	err := h.call(ctx, "get repeater shift", func() C.int { return C.rig_get_rptr_shift(h.rig, C.RIG_VFO_CURR, &shift) })
	switch shift {
	case C.RIG_RPT_SHIFT_PLUS:
		return ShiftPlus, err
	case C.RIG_RPT_SHIFT_MINUS:
		return ShiftMinus, err
	}
	return ShiftNone, err
}

func (h *Hamlib) SetRptrShift(ctx context.Context, shift RptrShift) error {
	s := C.rptr_shift_t(C.RIG_RPT_SHIFT_NONE)
	switch shift {
	case ShiftPlus:
		s = C.RIG_RPT_SHIFT_PLUS
	case ShiftMinus:
		s = C.RIG_RPT_SHIFT_MINUS
	}
	return h.call(ctx, "set repeater shift", func() C.int { return C.rig_set_rptr_shift(h.rig, C.RIG_VFO_CURR, s) })
}

func (h *Hamlib) GetRptrOffset(ctx context.Context) (int, error) {
	var off C.shortfreq_t
	err := h.call(ctx, "get repeater offset", func() C.int { return C.rig_get_rptr_offs(h.rig, C.RIG_VFO_CURR, &off) })
	return int(off), err
}

func (h *Hamlib) SetRptrOffset(ctx context.Context, hz int) error {
	return h.call(ctx, "set repeater offset", func() C.int {
		return C.rig_set_rptr_offs(h.rig, C.RIG_VFO_CURR, C.shortfreq_t(hz))
	})
}

func (h *Hamlib) GetTone(ctx context.Context, kind ToneType) (int, error) {
	var tone C.tone_t
	var err error
	switch kind {
	case ToneCTCSS:
		err = h.call(ctx, "get CTCSS tone", func() C.int { return C.rig_get_ctcss_tone(h.rig, C.RIG_VFO_CURR, &tone) })
	case ToneCTCSSSql:
		err = h.call(ctx, "get CTCSS squelch", func() C.int { return C.rig_get_ctcss_sql(h.rig, C.RIG_VFO_CURR, &tone) })
	case ToneDCS:
		err = h.call(ctx, "get DCS code", func() C.int { return C.rig_get_dcs_code(h.rig, C.RIG_VFO_CURR, &tone) })
	}
	return int(tone), err
}

func (h *Hamlib) SetTone(ctx context.Context, kind ToneType, value int) error {
	tone := C.tone_t(value)
	switch kind {
	case ToneCTCSS:
		return h.call(ctx, "set CTCSS tone", func() C.int { return C.rig_set_ctcss_tone(h.rig, C.RIG_VFO_CURR, tone) })
	case ToneCTCSSSql:
		return h.call(ctx, "set CTCSS squelch", func() C.int { return C.rig_set_ctcss_sql(h.rig, C.RIG_VFO_CURR, tone) })
	case ToneDCS:
		return h.call(ctx, "set DCS code", func() C.int { return C.rig_set_dcs_code(h.rig, C.RIG_VFO_CURR, tone) })
	}
	return nil
}

func (h *Hamlib) SendRaw(ctx context.Context, cmd string) (string, error) {
	var reply string
	err := h.call(ctx, "send raw command", func() C.int {
		ccmd := C.CString(cmd)
		defer C.free(unsafe.Pointer(ccmd))
		buf := (*C.char)(C.calloc(256, 1))
		defer C.free(unsafe.Pointer(buf))

		n := C.send_raw(h.rig, ccmd, buf, 255)
		if n < 0 {
			return n
		}
		reply = C.GoStringN(buf, n)
		return C.RIG_OK
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

package rig

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultRigctldAddress is where rigctld listens unless told otherwise
const DefaultRigctldAddress = "localhost:4532"

// rigctld status codes (negated hamlib error numbers)
var rigctlErrors = map[int]string{
	-1:  "invalid parameter",
	-2:  "invalid configuration",
	-3:  "memory shortage",
	-4:  "feature not implemented",
	-5:  "communication timed out",
	-6:  "IO error",
	-7:  "internal hamlib error",
	-8:  "protocol error",
	-9:  "command rejected by the rig",
	-10: "command performed, but arg truncated",
	-11: "feature not available",
	-12: "target VFO unaccessible",
	-13: "communication bus error",
	-14: "communication bus collision",
	-15: "NULL RIG handle or invalid pointer parameter",
	-16: "invalid VFO",
	-17: "argument out of domain of func",
	-18: "function deprecated",
	-19: "security error",
	-20: "rig is not powered on",
}

// commands that take a VFO argument when rigctld runs with --vfo
var vfoCommands = map[string]bool{
	"get_freq": true, "set_freq": true, "get_mode": true, "set_mode": true,
	"get_split_vfo": true, "set_split_vfo": true, "get_ptt": true, "set_ptt": true,
	"get_level": true, "set_level": true, "get_func": true, "set_func": true,
	"vfo_op": true, "get_ant": true, "set_ant": true, "get_rit": true, "set_rit": true,
	"get_xit": true, "set_xit": true, "get_rptr_shift": true, "set_rptr_shift": true,
	"get_rptr_offs": true, "set_rptr_offs": true, "get_ctcss_tone": true, "set_ctcss_tone": true,
	"get_ctcss_sql": true, "set_ctcss_sql": true, "get_dcs_code": true, "set_dcs_code": true,
}

// NetRigctl talks to a rigctld daemon using the extended response protocol
type NetRigctl struct {
	addr string

	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	vfoMode bool
	closed  bool
}

// NewNetRigctl creates a client for the rigctld at addr
func NewNetRigctl(addr string) *NetRigctl {
	if addr == "" {
		addr = DefaultRigctldAddress
	}
	return &NetRigctl{addr: addr}
}

// Open dials rigctld and asks whether it runs in VFO mode
func (n *NetRigctl) Open(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = false
	if err := n.dialLocked(ctx); err != nil {
		return err
	}

	lines, err := n.roundTripLocked(ctx, `\chk_vfo`, false)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// a daemon that accepts but never answers is not usable
		return err
	}
	if err == nil && len(lines) > 0 {
		fields := strings.Fields(lines[len(lines)-1])
		n.vfoMode = len(fields) > 0 && fields[len(fields)-1] == "1"
	}
	return nil
}

func (n *NetRigctl) dialLocked(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to rigctld at %s: %w", n.addr, err)
	}
	n.conn = conn
	n.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection to rigctld
func (n *NetRigctl) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.closed = true
	if n.conn == nil {
		return nil
	}
	n.conn.Write([]byte("q\n"))
	err := n.conn.Close()
	n.conn = nil
	return err
}

func (n *NetRigctl) dropLocked() {
	if n.conn != nil {
		n.conn.Close()
	}
	n.conn = nil
	n.reader = nil
}

// roundTripLocked writes one command line and reads the reply. With
// extended set the reply ends with an RPRT line; otherwise a single line
// is read.
func (n *NetRigctl) roundTripLocked(ctx context.Context, line string, extended bool) ([]string, error) {
	if n.conn == nil {
		return nil, ErrNotOpen
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	n.conn.SetDeadline(deadline)
	conn := n.conn
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if extended {
		line = "+" + line
	}
	if _, err := n.conn.Write([]byte(line + "\n")); err != nil {
		n.dropLocked()
		return nil, n.ioError(ctx, err)
	}

	var lines []string
	for {
		text, err := n.reader.ReadString('\n')
		if err != nil {
			n.dropLocked()
			return nil, n.ioError(ctx, err)
		}
		text = strings.TrimRight(text, "\r\n")
		if !extended {
			return []string{text}, nil
		}
		if strings.HasPrefix(text, "RPRT ") {
			code, _ := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(text, "RPRT ")))
			if code != 0 {
				return lines, &StatusError{Code: code, Message: rigctlErrors[code]}
			}
			return lines, nil
		}
		lines = append(lines, text)
	}
}

func (n *NetRigctl) ioError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return context.DeadlineExceeded
	}
	return err
}

// command runs a long-form command and returns the value lines, with the
// echoed command line removed
func (n *NetRigctl) command(ctx context.Context, name string, vfo VFO, args ...string) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, ErrNotOpen
	}
	if n.conn == nil {
		if err := n.dialLocked(ctx); err != nil {
			return nil, err
		}
	}

	parts := []string{`\` + name}
	if n.vfoMode && vfoCommands[name] {
		if vfo == VFONone {
			vfo = VFOCurrent
		}
		parts = append(parts, string(vfo))
	}
	parts = append(parts, args...)

	lines, err := n.roundTripLocked(ctx, strings.Join(parts, " "), true)
	if len(lines) > 0 && strings.HasPrefix(lines[0], name+":") {
		lines = lines[1:]
	}
	return lines, err
}

// values extracts the text after "Key:" on each line
func values(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, v, ok := strings.Cut(l, ":"); ok {
			out = append(out, strings.TrimSpace(v))
		} else {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}

func (n *NetRigctl) value(ctx context.Context, name string, vfo VFO, args ...string) (string, error) {
	lines, err := n.command(ctx, name, vfo, args...)
	if err != nil {
		return "", err
	}
	vals := values(lines)
	if len(vals) == 0 {
		return "", fmt.Errorf("%s: empty reply", name)
	}
	return vals[0], nil
}

func (n *NetRigctl) intValue(ctx context.Context, name string, vfo VFO, args ...string) (int, error) {
	v, err := n.value(ctx, name, vfo, args...)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: bad value %q", name, v)
	}
	return int(f), nil
}

func (n *NetRigctl) set(ctx context.Context, name string, vfo VFO, args ...string) error {
	_, err := n.command(ctx, name, vfo, args...)
	return err
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Capabilities parses the dump_caps report
func (n *NetRigctl) Capabilities(ctx context.Context) (Capabilities, error) {
	lines, err := n.command(ctx, "dump_caps", VFONone)
	if err != nil {
		return Capabilities{}, err
	}
	caps := parseDumpCaps(lines)
	// rigctld forwards VFO-targeted calls itself
	caps.SubVFOFreqAddressable = true
	caps.SubVFOModeAddressable = true
	caps.CanRaw = true
	return caps, nil
}

func parseDumpCaps(lines []string) Capabilities {
	var caps Capabilities
	yes := func(v string) bool { return strings.HasPrefix(strings.TrimSpace(v), "Y") }
	names := func(v string) []string {
		var out []string
		for _, f := range strings.Fields(v) {
			if name, _, ok := strings.Cut(f, "("); ok {
				f = name
			}
			if f != "" && f != "None" {
				out = append(out, f)
			}
		}
		return out
	}
	steps := func(v string) []int {
		var out []int
		for _, f := range strings.Fields(v) {
			if db, err := strconv.Atoi(strings.TrimSuffix(f, "dB")); err == nil && db > 0 {
				out = append(out, db)
			}
		}
		return out
	}

	for _, line := range lines {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "Model name":
			caps.ModelName = val
		case "Mfg name":
			caps.Manufacturer = val
		case "Backend version":
			caps.Version = val
		case "Mode list":
			for _, m := range names(val) {
				if mode, err := ParseMode(m); err == nil {
					caps.Modes = append(caps.Modes, mode)
				}
			}
		case "VFO list":
			if strings.Contains(val, "Main") && strings.Contains(val, "Sub") {
				caps.MainVFO, caps.SubVFO = VFOMain, VFOSub
			} else {
				caps.MainVFO, caps.SubVFO = VFOA, VFOB
			}
		case "Preamp":
			caps.Preamps = steps(val)
		case "Attenuator":
			caps.Attenuators = steps(val)
		case "CTCSS":
			for _, f := range strings.Fields(val) {
				if hz, err := strconv.ParseFloat(strings.TrimSuffix(f, ","), 64); err == nil && strings.Contains(f, ".") {
					caps.CTCSSTones = append(caps.CTCSSTones, int(hz*10+0.5))
				}
			}
		case "Get functions":
			for _, f := range names(val) {
				caps.GetFuncs = append(caps.GetFuncs, Func(f))
			}
		case "Set functions":
			for _, f := range names(val) {
				caps.SetFuncs = append(caps.SetFuncs, Func(f))
			}
		case "Get level":
			for _, l := range names(val) {
				caps.GetLevels = append(caps.GetLevels, Level(l))
			}
		case "Set level":
			for _, l := range names(val) {
				caps.SetLevels = append(caps.SetLevels, Level(l))
			}
		case "VFO Ops", "VFO Operations":
			for _, op := range names(val) {
				caps.VFOOps = append(caps.VFOOps, VFOOp(op))
			}
		case "Can set Power Stat":
			caps.SupportsPowerToggle = yes(val)
		case "Can get Power Stat":
			caps.CanGetPower = yes(val)
		case "Can set PTT":
			caps.SupportsPTT = yes(val)
		case "Can set Ant":
			caps.CanSetAntenna = yes(val)
		case "Can get Ant":
			caps.CanGetAntenna = yes(val)
		case "Can set RIT":
			caps.CanRIT = yes(val)
		case "Can set XIT":
			caps.CanXIT = yes(val)
		case "Can set Repeater Shift":
			caps.CanRepeater = yes(val)
		case "Antennas":
			caps.Antennas, _ = strconv.Atoi(val)
		}
	}

	caps.SupportsBandSelect = caps.SetLevels.Has(LevelBandSelect)
	if caps.CanSetAntenna && caps.Antennas == 0 {
		caps.Antennas = 2
	}
	return caps
}

func (n *NetRigctl) GetPowerStat(ctx context.Context) (PowerStatus, error) {
	v, err := n.intValue(ctx, "get_powerstat", VFONone)
	if err != nil {
		return PowerUnknown, err
	}
	switch v {
	case 0, 2:
		return PowerOff, nil
	case 1, 4:
		return PowerOn, nil
	}
	return PowerUnknown, nil
}

func (n *NetRigctl) SetPowerStat(ctx context.Context, status PowerStatus) error {
	return n.set(ctx, "set_powerstat", VFONone, boolArg(status == PowerOn))
}

func (n *NetRigctl) GetFreq(ctx context.Context, vfo VFO) (int64, error) {
	v, err := n.value(ctx, "get_freq", vfo)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("get_freq: bad value %q", v)
	}
	return int64(f), nil
}

func (n *NetRigctl) SetFreq(ctx context.Context, vfo VFO, hz int64) error {
	return n.set(ctx, "set_freq", vfo, strconv.FormatInt(hz, 10))
}

func (n *NetRigctl) GetMode(ctx context.Context, vfo VFO) (Mode, int, error) {
	lines, err := n.command(ctx, "get_mode", vfo)
	if err != nil {
		return ModeNone, 0, err
	}
	vals := values(lines)
	if len(vals) < 2 {
		return ModeNone, 0, fmt.Errorf("get_mode: short reply")
	}
	mode, err := ParseMode(vals[0])
	if err != nil {
		return ModeNone, 0, err
	}
	width, _ := strconv.Atoi(vals[1])
	return mode, width, nil
}

func (n *NetRigctl) SetMode(ctx context.Context, vfo VFO, mode Mode, passband int) error {
	m := string(mode)
	if mode == ModeNone {
		m = "?"
	}
	return n.set(ctx, "set_mode", vfo, m, strconv.Itoa(passband))
}

func (n *NetRigctl) GetVFO(ctx context.Context) (VFO, error) {
	v, err := n.value(ctx, "get_vfo", VFONone)
	if err != nil {
		return VFONone, err
	}
	return ParseVFO(v)
}

func (n *NetRigctl) GetSplitVFO(ctx context.Context) (bool, VFO, error) {
	lines, err := n.command(ctx, "get_split_vfo", VFOCurrent)
	if err != nil {
		return false, VFONone, err
	}
	vals := values(lines)
	if len(vals) < 2 {
		return false, VFONone, fmt.Errorf("get_split_vfo: short reply")
	}
	tx, err := ParseVFO(vals[1])
	if err != nil {
		return false, VFONone, err
	}
	return vals[0] == "1", tx, nil
}

func (n *NetRigctl) SetSplitVFO(ctx context.Context, split bool, txVFO VFO) error {
	return n.set(ctx, "set_split_vfo", VFOCurrent, boolArg(split), string(txVFO))
}

func (n *NetRigctl) GetPTT(ctx context.Context) (bool, error) {
	v, err := n.intValue(ctx, "get_ptt", VFOCurrent)
	return v != 0, err
}

func (n *NetRigctl) SetPTT(ctx context.Context, on bool) error {
	return n.set(ctx, "set_ptt", VFOCurrent, boolArg(on))
}

func (n *NetRigctl) GetLevel(ctx context.Context, level Level) (float64, error) {
	v, err := n.value(ctx, "get_level", VFOCurrent, string(level))
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("get_level %s: bad value %q", level, v)
	}
	return f, nil
}

func levelArg(level Level, value float64) string {
	switch level {
	case LevelAGC, LevelAttenuator, LevelPreamp, LevelKeySpeed, LevelIFShift, LevelBandSelect:
		return strconv.Itoa(int(value))
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func (n *NetRigctl) SetLevel(ctx context.Context, level Level, value float64) error {
	return n.set(ctx, "set_level", VFOCurrent, string(level), levelArg(level, value))
}

func (n *NetRigctl) GetFunc(ctx context.Context, fn Func) (bool, error) {
	v, err := n.intValue(ctx, "get_func", VFOCurrent, string(fn))
	return v != 0, err
}

func (n *NetRigctl) SetFunc(ctx context.Context, fn Func, on bool) error {
	return n.set(ctx, "set_func", VFOCurrent, string(fn), boolArg(on))
}

func (n *NetRigctl) VFOOp(ctx context.Context, op VFOOp) error {
	return n.set(ctx, "vfo_op", VFOCurrent, string(op))
}

func (n *NetRigctl) SetBand(ctx context.Context, band Band) error {
	if band.Select < 0 {
		return ErrNotSupported
	}
	return n.SetLevel(ctx, LevelBandSelect, float64(band.Select))
}

func parseAntennaValue(v string) Antenna {
	if a, err := ParseAntenna(v); err == nil {
		return a
	}
	return AntUnknown
}

func (n *NetRigctl) GetAntenna(ctx context.Context) (AntennaState, error) {
	lines, err := n.command(ctx, "get_ant", VFOCurrent, "0")
	if err != nil {
		return AntennaState{}, err
	}
	var st AntennaState
	for _, l := range lines {
		key, val, ok := strings.Cut(l, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "AntCurr":
			st.Current = parseAntennaValue(val)
		case "AntTx":
			st.TX = parseAntennaValue(val)
		case "AntRx":
			st.RX = parseAntennaValue(val)
		}
	}
	return st, nil
}

func (n *NetRigctl) SetAntenna(ctx context.Context, ant Antenna) error {
	return n.set(ctx, "set_ant", VFOCurrent, strconv.Itoa(int(ant)), "0")
}

func (n *NetRigctl) GetRIT(ctx context.Context) (int, error) {
	return n.intValue(ctx, "get_rit", VFOCurrent)
}

func (n *NetRigctl) SetRIT(ctx context.Context, hz int) error {
	return n.set(ctx, "set_rit", VFOCurrent, strconv.Itoa(hz))
}

func (n *NetRigctl) GetXIT(ctx context.Context) (int, error) {
	return n.intValue(ctx, "get_xit", VFOCurrent)
}

func (n *NetRigctl) SetXIT(ctx context.Context, hz int) error {
	return n.set(ctx, "set_xit", VFOCurrent, strconv.Itoa(hz))
}

func (n *NetRigctl) GetRptrShift(ctx context.Context) (RptrShift, error) {
	v, err := n.value(ctx, "get_rptr_shift", VFOCurrent)
	if err != nil {
		return ShiftNone, err
	}
	switch v {
	case "+":
		return ShiftPlus, nil
	case "-":
		return ShiftMinus, nil
	}
	return ShiftNone, nil
}

func (n *NetRigctl) SetRptrShift(ctx context.Context, shift RptrShift) error {
	arg := "0"
	switch shift {
	case ShiftPlus:
		arg = "+"
	case ShiftMinus:
		arg = "-"
	}
	return n.set(ctx, "set_rptr_shift", VFOCurrent, arg)
}

func (n *NetRigctl) GetRptrOffset(ctx context.Context) (int, error) {
	return n.intValue(ctx, "get_rptr_offs", VFOCurrent)
}

func (n *NetRigctl) SetRptrOffset(ctx context.Context, hz int) error {
	return n.set(ctx, "set_rptr_offs", VFOCurrent, strconv.Itoa(hz))
}

func toneCommand(kind ToneType) (string, bool) {
	switch kind {
	case ToneCTCSS:
		return "ctcss_tone", true
	case ToneCTCSSSql:
		return "ctcss_sql", true
	case ToneDCS:
		return "dcs_code", true
	}
	return "", false
}

func (n *NetRigctl) GetTone(ctx context.Context, kind ToneType) (int, error) {
	cmd, ok := toneCommand(kind)
	if !ok {
		return 0, nil
	}
	return n.intValue(ctx, "get_"+cmd, VFOCurrent)
}

func (n *NetRigctl) SetTone(ctx context.Context, kind ToneType, value int) error {
	cmd, ok := toneCommand(kind)
	if !ok {
		return nil
	}
	return n.set(ctx, "set_"+cmd, VFOCurrent, strconv.Itoa(value))
}

// SendRaw forwards a ';' terminated CAT string through rigctld
func (n *NetRigctl) SendRaw(ctx context.Context, cmd string) (string, error) {
	lines, err := n.command(ctx, "send_raw", VFONone, ";", cmd)
	if err != nil {
		return "", err
	}
	return strings.Join(values(lines), " "), nil
}

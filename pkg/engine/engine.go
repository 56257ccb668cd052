// Package engine runs the device context: one goroutine that owns the
// connected rig, the scheduler and the desired state, fed by an inbox of
// requests and publishing immutable snapshots.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dougsko/rigsync/pkg/capability"
	"github.com/dougsko/rigsync/pkg/config"
	"github.com/dougsko/rigsync/pkg/logging"
	"github.com/dougsko/rigsync/pkg/rig"
	"github.com/dougsko/rigsync/pkg/scheduler"
	"github.com/dougsko/rigsync/pkg/state"
)

const component = "engine"

// Version is reported by STATUS
const Version = "0.3.0"

// Options configures an Engine
type Options struct {
	Connection rig.ConnectionConfig
	Profiles   []capability.Profile
	Meter      rig.Meter
	Callsign   string
	SocketPath string
	Logger     *logging.Logger
	History    History
	// EventBuffer is the capacity of the Events channel
	EventBuffer int
}

// OptionsFromConfig builds engine options from the daemon configuration and
// loads the capability profiles it names
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	profiles, err := capability.LoadProfiles(cfg.Radio.ProfilesDir)
	if err != nil {
		return Options{}, err
	}
	meter, err := rig.ParseMeter(cfg.Radio.SecondaryMeter)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Connection: cfg.ConnectionConfig(),
		Profiles:   profiles,
		Meter:      meter,
		Callsign:   cfg.Station.Callsign,
		SocketPath: cfg.API.UnixSocket,
	}, nil
}

type requestKind int

const (
	reqSubmit requestKind = iota
	reqConnect
	reqDisconnect
	reqRaw
)

type request struct {
	kind  requestKind
	ctx   context.Context
	sub   state.Submission
	raw   string
	reply chan result
}

type result struct {
	caps rig.Capabilities
	text string
	err  error
}

// session is everything that exists only while a device is connected
type session struct {
	conn   *rig.Connection
	gate   *capability.Gate
	caps   *rig.Capabilities
	model  *state.Model
	sched  *scheduler.Scheduler
	ticker *time.Ticker
}

// Engine is the device context
type Engine struct {
	opts Options
	log  *logging.Logger

	inbox  chan request
	events chan Event

	snap      atomic.Pointer[state.Snapshot]
	seq       uint64
	connected atomic.Bool

	subMu sync.Mutex
	subs  map[chan struct{}]struct{}

	startTime time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	socket *socketServer
	sess   *session
}

// New creates an engine. Start must be called before use.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	if opts.Connection.RefreshInterval <= 0 {
		opts.Connection.RefreshInterval = 100 * time.Millisecond
	}
	if opts.Meter == "" {
		opts.Meter = rig.MeterSWR
	}
	e := &Engine{
		opts:   opts,
		log:    opts.Logger,
		inbox:  make(chan request, 64),
		events: make(chan Event, opts.EventBuffer),
		subs:   make(map[chan struct{}]struct{}),
		done:   make(chan struct{}),
	}
	e.snap.Store(state.Disconnected(0))
	return e
}

// Start launches the device context, the control socket when configured,
// and connects when AutoConnect is set
func (e *Engine) Start(ctx context.Context) error {
	ctx, e.cancel = context.WithCancel(ctx)
	e.startTime = time.Now()

	if e.opts.SocketPath != "" {
		srv, err := listenSocket(e, e.opts.SocketPath)
		if err != nil {
			e.cancel()
			return err
		}
		e.socket = srv
		go srv.acceptConnections()
	}

	go e.run(ctx)

	if e.opts.Connection.AutoConnect {
		if _, err := e.Connect(ctx); err != nil {
			e.log.Warn(component, "auto-connect failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Stop shuts the device context down, releasing the device
func (e *Engine) Stop() error {
	if e.cancel == nil {
		return nil
	}
	if e.socket != nil {
		e.socket.close()
	}
	e.cancel()
	<-e.done
	return nil
}

// Snapshot returns the last published state. It never blocks on the device.
func (e *Engine) Snapshot() *state.Snapshot {
	return e.snap.Load()
}

// Connected reports whether a device is attached
func (e *Engine) Connected() bool {
	return e.connected.Load()
}

// Uptime is the time since Start
func (e *Engine) Uptime() time.Duration {
	return time.Since(e.startTime)
}

// Events delivers command outcomes and connection changes. Events are
// dropped when the reader falls behind.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Subscribe returns a channel that receives one notification per published
// snapshot. Notifications coalesce when the reader is slow.
func (e *Engine) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()
	return ch
}

// Unsubscribe releases a channel returned by Subscribe
func (e *Engine) Unsubscribe(ch <-chan struct{}) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for c := range e.subs {
		if c == ch {
			delete(e.subs, c)
			return
		}
	}
}

func (e *Engine) notify() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// send hands req to the device context and waits for its reply when it
// has a reply channel
func (e *Engine) send(ctx context.Context, req request) (result, error) {
	select {
	case e.inbox <- req:
	case <-e.done:
		return result{}, ErrStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	if req.reply == nil {
		return result{}, nil
	}
	select {
	case res := <-req.reply:
		return res, res.err
	case <-e.done:
		return result{}, ErrStopped
	}
}

// Connect attaches the configured device and returns its capabilities.
// Connection failures are *rig.ConnectionError values.
func (e *Engine) Connect(ctx context.Context) (rig.Capabilities, error) {
	res, err := e.send(ctx, request{kind: reqConnect, ctx: ctx, reply: make(chan result, 1)})
	return res.caps, err
}

// Disconnect releases the device after the in-flight tick. It is refused
// with ErrTransmitGuard while the device is transmitting.
func (e *Engine) Disconnect(ctx context.Context) error {
	_, err := e.send(ctx, request{kind: reqDisconnect, ctx: ctx, reply: make(chan result, 1)})
	return err
}

// Submit records a desired value. The device context applies it on a
// later tick; a second submission for the same field before then wins.
func (e *Engine) Submit(f state.Field, v any) error {
	norm, err := state.Validate(f, v)
	if err != nil {
		return err
	}
	if !e.Connected() {
		return ErrNotConnected
	}
	_, err = e.send(context.Background(), request{kind: reqSubmit, sub: state.Submission{Field: f, Value: norm}})
	return err
}

// SubmitText parses a field name and textual value and submits them
func (e *Engine) SubmitText(name, text string) error {
	f, err := state.ParseField(name)
	if err != nil {
		return fmt.Errorf("%w: %v", state.ErrInvalidValue, err)
	}
	v, err := state.ParseValue(f, text)
	if err != nil {
		return err
	}
	return e.Submit(f, v)
}

// QuickSplit puts the sub VFO 5 kHz above the main VFO in the same mode
// and turns split on
func (e *Engine) QuickSplit() error {
	snap := e.Snapshot()
	if !snap.Connected {
		return ErrNotConnected
	}
	obs := snap.Observed
	if obs.FreqMain <= 0 {
		return fmt.Errorf("quick split: main frequency not yet known")
	}
	if err := e.Submit(state.FieldFreqSub, obs.FreqMain+5000); err != nil {
		return err
	}
	if obs.ModeMain != rig.ModeNone {
		if err := e.Submit(state.FieldModeSub, obs.ModeMain); err != nil {
			return err
		}
	}
	return e.Submit(state.FieldSplit, true)
}

// SetBand changes band with the device's band-select command, or by
// tuning to the band's default frequency when it has none
func (e *Engine) SetBand(name string) error {
	band, err := rig.LookupBand(name)
	if err != nil {
		return fmt.Errorf("%w: %v", state.ErrInvalidValue, err)
	}
	snap := e.Snapshot()
	if !snap.Connected {
		return ErrNotConnected
	}
	if snap.Capabilities != nil && snap.Capabilities.SupportsBandSelect && band.Select >= 0 {
		return e.Submit(state.FieldBand, band.Name)
	}
	return e.Submit(state.FieldFreqMain, band.Default)
}

// Raw passes a vendor command to the device and returns its reply
func (e *Engine) Raw(ctx context.Context, cmd string) (string, error) {
	res, err := e.send(ctx, request{kind: reqRaw, ctx: ctx, raw: cmd, reply: make(chan result, 1)})
	return res.text, err
}

// run is the device context
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	var tick <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return

		case req := <-e.inbox:
			e.handle(ctx, req)

		case <-tick:
			e.drainSubmissions(ctx)
			e.tick(ctx)
		}

		if e.sess != nil {
			tick = e.sess.ticker.C
		} else {
			tick = nil
		}
	}
}

// drainSubmissions applies queued submissions so the coming tick sees
// them. It stops after the first request of any other kind.
func (e *Engine) drainSubmissions(ctx context.Context) {
	for {
		select {
		case req := <-e.inbox:
			e.handle(ctx, req)
			if req.kind != reqSubmit {
				return
			}
		default:
			return
		}
	}
}

func (e *Engine) handle(runCtx context.Context, req request) {
	var res result
	switch req.kind {
	case reqSubmit:
		if e.sess == nil {
			return
		}
		if err := e.sess.model.Submit(req.sub.Field, req.sub.Value); err != nil {
			e.log.Warn(component, "submission rejected", map[string]interface{}{"field": req.sub.Field.String(), "error": err.Error()})
		}
		return
	case reqConnect:
		ctx, cancel := requestContext(runCtx, req.ctx)
		res.caps, res.err = e.connect(ctx)
		cancel()
	case reqDisconnect:
		res.err = e.disconnect()
	case reqRaw:
		ctx, cancel := requestContext(runCtx, req.ctx)
		res.text, res.err = e.raw(ctx, req.raw)
		cancel()
	}
	if req.reply != nil {
		req.reply <- res
	}
}

// requestContext bounds a request by both its caller and the device
// context, so Stop abandons a call blocked on a silent device
func requestContext(run, caller context.Context) (context.Context, context.CancelFunc) {
	if caller == nil {
		caller = context.Background()
	}
	ctx, cancel := context.WithCancel(caller)
	stop := context.AfterFunc(run, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (e *Engine) connect(ctx context.Context) (rig.Capabilities, error) {
	if e.sess != nil {
		return rig.Capabilities{}, ErrAlreadyConnected
	}
	cfg := e.opts.Connection
	e.log.Info(component, "connecting", map[string]interface{}{"model": cfg.Model, "port": cfg.Port})

	conn, err := rig.Connect(ctx, cfg)
	if err != nil {
		e.log.Error(component, "connect failed", map[string]interface{}{"error": err.Error()})
		return rig.Capabilities{}, err
	}

	gate := capability.NewGate(conn.Capabilities, e.opts.Profiles...)
	caps := gate.Capabilities()
	model := state.NewModel()
	e.sess = &session{
		conn:  conn,
		gate:  gate,
		caps:  &caps,
		model: model,
		sched: scheduler.New(conn.Rig, gate, model, scheduler.Config{
			FullPoll:    cfg.FullPoll,
			CallTimeout: cfg.CallTimeout,
			Power:       conn.Power,
			Meter:       e.opts.Meter,
			Logger:      e.log,
		}),
		ticker: time.NewTicker(cfg.RefreshInterval),
	}
	e.connected.Store(true)
	e.log.Info(component, "connected", map[string]interface{}{
		"model":        caps.ModelName,
		"manufacturer": caps.Manufacturer,
		"power":        string(conn.Power),
	})
	e.emit(Event{Time: time.Now().UTC(), Kind: EventConnect, Value: caps.ModelName})
	e.publish()
	return caps, nil
}

func (e *Engine) disconnect() error {
	if e.sess == nil {
		return ErrNotConnected
	}
	if e.sess.sched.Observed().PTT {
		return ErrTransmitGuard
	}
	e.release()
	return nil
}

// release closes the session unconditionally
func (e *Engine) release() {
	s := e.sess
	s.ticker.Stop()
	if err := s.conn.Rig.Close(); err != nil {
		e.log.Warn(component, "close failed", map[string]interface{}{"error": err.Error()})
	}
	e.sess = nil
	e.connected.Store(false)
	e.log.Info(component, "disconnected")
	e.emit(Event{Time: time.Now().UTC(), Kind: EventDisconnect})
	e.seq++
	e.snap.Store(state.Disconnected(e.seq))
	e.notify()
}

// shutdown unkeys the transmitter if needed and releases the device
func (e *Engine) shutdown() {
	if e.sess == nil {
		return
	}
	if e.sess.sched.Observed().PTT {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		if err := e.sess.conn.Rig.SetPTT(ctx, false); err != nil {
			e.log.Error(component, "failed to unkey on shutdown", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}
	e.release()
}

func (e *Engine) raw(ctx context.Context, cmd string) (string, error) {
	if e.sess == nil {
		return "", ErrNotConnected
	}
	if !e.sess.gate.Allowed(capability.Raw) {
		return "", fmt.Errorf("raw command: %w", capability.ErrUnsupported)
	}
	timeout := e.opts.Connection.CallTimeout
	if timeout <= 0 {
		timeout = scheduler.DefaultCallTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	reply, err := e.sess.conn.Rig.SendRaw(cctx, cmd)
	if err != nil {
		return "", &rig.DeviceCallError{Op: "send_raw", Err: err}
	}
	return reply, nil
}

func (e *Engine) tick(ctx context.Context) {
	if e.sess == nil {
		return
	}
	prev := e.sess.sched.Observed()
	rep := e.sess.sched.Tick(ctx)
	obs := e.sess.sched.Observed()

	for _, o := range rep.Outcomes {
		e.emit(commandEvent(o, obs))
	}
	if obs.FreqMain != prev.FreqMain && obs.FreqMain > 0 {
		e.emit(Event{
			Time:     time.Now().UTC(),
			Kind:     EventFrequency,
			FreqMain: obs.FreqMain,
			Mode:     string(obs.ModeMain),
			Band:     rig.BandForFreq(obs.FreqMain).Name,
		})
	}
	e.publish()
}

// publish stores a new snapshot and wakes every subscriber once
func (e *Engine) publish() {
	s := e.sess
	e.seq++
	e.snap.Store(state.NewSnapshot(e.seq, true, s.sched.Observed(), s.sched.Stale(), s.model.Pending(), s.caps))
	e.notify()
}

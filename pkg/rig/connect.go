package rig

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
	"time"
)

// DefaultConnectCallTimeout bounds each device call made while connecting
// when the configuration leaves CallTimeout unset
const DefaultConnectCallTimeout = time.Second

// Connection is an open device together with what the probe learnt about it
type Connection struct {
	Rig          Rig
	Model        Model
	Capabilities Capabilities
	Power        PowerStatus
}

// Connect validates the model, applies the port descriptor, opens the
// channel and probes the device. Failures are *ConnectionError values.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Connection, error) {
	model, ok := LookupModel(cfg.Model)
	if !ok {
		return nil, unknownModelError(cfg.Model)
	}

	switch model.Port {
	case PortNetwork:
		if cfg.Port == "" {
			cfg.Port = DefaultRigctldAddress
		}
		if _, _, err := net.SplitHostPort(cfg.Port); err != nil {
			return nil, &ConnectionError{Kind: PortOpenFailed, Reason: "invalid address", Err: err}
		}
	case PortSerial:
		if !cfg.IsNetwork() {
			if err := probeSerialPort(cfg); err != nil {
				return nil, err
			}
		}
	}

	r := model.New(cfg)
	if err := bounded(ctx, cfg, r.Open); err != nil {
		var ce *ConnectionError
		if errors.As(err, &ce) && ce.Kind == InvalidModel {
			return nil, ce
		}
		return nil, &ConnectionError{Kind: PortOpenFailed, Reason: openErrorReason(err), Err: err}
	}

	var caps Capabilities
	err := bounded(ctx, cfg, func(ctx context.Context) (err error) {
		caps, err = r.Capabilities(ctx)
		return err
	})
	if err != nil {
		r.Close()
		reason := "capability probe failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timed out"
		}
		return nil, &ConnectionError{Kind: PortOpenFailed, Reason: reason, Err: err}
	}
	caps.ModelID = cfg.Model
	if caps.ModelName == "" {
		caps.ModelName = model.Name
		caps.Manufacturer = model.Manufacturer
	}
	if caps.MainVFO == VFONone {
		caps.MainVFO, caps.SubVFO = VFOA, VFOB
	}

	conn := &Connection{Rig: r, Model: model, Capabilities: caps, Power: PowerUnknown}
	if caps.CanGetPower {
		bounded(ctx, cfg, func(ctx context.Context) error {
			p, err := r.GetPowerStat(ctx)
			if err == nil {
				conn.Power = p
			}
			return err
		})
	}

	if cfg.AutoPowerOn && caps.SupportsPowerToggle && conn.Power == PowerOff {
		err := bounded(ctx, cfg, func(ctx context.Context) error {
			return r.SetPowerStat(ctx, PowerOn)
		})
		if err == nil {
			conn.Power = PowerOn
		}
	}

	// a cancelled caller owns no half-open device
	if err := ctx.Err(); err != nil {
		r.Close()
		return nil, &ConnectionError{Kind: PortOpenFailed, Reason: openErrorReason(err), Err: err}
	}
	return conn, nil
}

// bounded runs one connect-time call under the configured call timeout
func bounded(ctx context.Context, cfg ConnectionConfig, fn func(context.Context) error) error {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = DefaultConnectCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func openErrorReason(err error) string {
	var ce *ConnectionError
	if errors.As(err, &ce) && ce.Reason != "" {
		return ce.Reason
	}
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		return "permission denied"
	case errors.Is(err, syscall.EBUSY):
		return "device busy"
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
		return "not found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "open failed"
	}
}

package rig

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name    string `json:"name"`
	USB     bool   `json:"usb"`
	VID     string `json:"vid,omitempty"`
	PID     string `json:"pid,omitempty"`
	Serial  string `json:"serial_number,omitempty"`
	Product string `json:"product,omitempty"`
}

// ListSerialPorts enumerates serial ports, with USB details where the
// platform provides them
func ListSerialPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err == nil {
		ports := make([]PortInfo, 0, len(details))
		for _, d := range details {
			ports = append(ports, PortInfo{
				Name:    d.Name,
				USB:     d.IsUSB,
				VID:     d.VID,
				PID:     d.PID,
				Serial:  d.SerialNumber,
				Product: d.Product,
			})
		}
		return ports, nil
	}

	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(names))
	for _, n := range names {
		ports = append(ports, PortInfo{Name: n})
	}
	return ports, nil
}

// serialMode translates the line settings of cfg
func serialMode(cfg ConnectionConfig) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
	}
	if mode.DataBits == 0 {
		mode.DataBits = 8
	}

	switch cfg.Parity {
	case ParityNone, "":
		mode.Parity = serial.NoParity
	case ParityEven:
		mode.Parity = serial.EvenParity
	case ParityOdd:
		mode.Parity = serial.OddParity
	case ParityMark:
		mode.Parity = serial.MarkParity
	case ParitySpace:
		mode.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("invalid parity %q", cfg.Parity)
	}

	switch cfg.StopBits {
	case 0, 1:
		mode.StopBits = serial.OneStopBit
	case 2:
		mode.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("invalid stop bits %d", cfg.StopBits)
	}
	return mode, nil
}

// probeSerialPort opens and closes the port with the configured line
// settings so that a missing or busy port is reported before the device
// library takes over
func probeSerialPort(cfg ConnectionConfig) error {
	if cfg.Port == "" {
		return &ConnectionError{Kind: PortOpenFailed, Reason: "no serial port configured"}
	}

	mode, err := serialMode(cfg)
	if err != nil {
		return &ConnectionError{Kind: PortOpenFailed, Reason: "invalid settings", Err: err}
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return &ConnectionError{Kind: PortOpenFailed, Reason: portErrorReason(err), Err: err}
	}
	return port.Close()
}

func portErrorReason(err error) string {
	var code serial.PortErrorCode
	var pp *serial.PortError
	var pv serial.PortError
	switch {
	case errors.As(err, &pp):
		code = pp.Code()
	case errors.As(err, &pv):
		code = pv.Code()
	default:
		return "open failed"
	}

	switch code {
	case serial.PortBusy:
		return "device busy"
	case serial.PortNotFound:
		return "not found"
	case serial.PermissionDenied:
		return "permission denied"
	case serial.InvalidSerialPort:
		return "not a serial port"
	case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity, serial.InvalidStopBits:
		return "invalid settings"
	default:
		return "open failed"
	}
}

package rig

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by calls made before Open or after Close
	ErrNotOpen = errors.New("rig not open")
	// ErrNotSupported is returned by a backend for an operation it does not implement
	ErrNotSupported = errors.New("operation not supported by backend")
)

// ErrorKind classifies connection failures
type ErrorKind int

const (
	InvalidModel ErrorKind = iota + 1
	PortOpenFailed
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidModel:
		return "invalid model"
	case PortOpenFailed:
		return "port open failed"
	default:
		return "connection error"
	}
}

// ConnectionError aborts a connect attempt
type ConnectionError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	msg := e.Kind.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ConnectionError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var ce *ConnectionError
	return errors.As(err, &ce) && ce.Kind == kind
}

// DeviceCallError is a failed get/set on an open device. It never aborts
// a tick.
type DeviceCallError struct {
	Op  string
	Err error
}

func (e *DeviceCallError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *DeviceCallError) Unwrap() error { return e.Err }

// StatusError is a non-success status code reported by the device library
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

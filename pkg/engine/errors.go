package engine

import "errors"

var (
	// ErrNotConnected is returned for device requests while no device is attached
	ErrNotConnected = errors.New("radio not connected")
	// ErrAlreadyConnected is returned by Connect while a device is attached
	ErrAlreadyConnected = errors.New("radio already connected")
	// ErrTransmitGuard refuses a disconnect while the device is transmitting
	ErrTransmitGuard = errors.New("transmit guard: radio is transmitting")
	// ErrStopped is returned once the engine has been stopped
	ErrStopped = errors.New("engine stopped")
)

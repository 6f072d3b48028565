package serial

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// Common errors
var (
	ErrNotSerialPort    = errors.New("not a serial port")
	ErrPortNotFound     = errors.New("port not found")
	ErrPortBusy         = errors.New("port is in use by another owner")
	ErrPortClosed       = errors.New("port has been closed")
	ErrAlreadyListening = errors.New("port already has an event listener")
)

// classify maps driver errors onto the package sentinels while keeping the
// driver error in the chain.
func classify(err error) error {
	var portErr *serial.PortError
	if !errors.As(err, &portErr) {
		return err
	}
	switch portErr.Code() {
	case serial.PortBusy:
		return fmt.Errorf("%w: %w", ErrPortBusy, err)
	case serial.PortNotFound:
		return fmt.Errorf("%w: %w", ErrPortNotFound, err)
	case serial.InvalidSerialPort:
		return fmt.Errorf("%w: %w", ErrNotSerialPort, err)
	case serial.PortClosed:
		return fmt.Errorf("%w: %w", ErrPortClosed, err)
	default:
		return err
	}
}

func isBusy(err error) bool {
	var portErr *serial.PortError
	return errors.As(err, &portErr) && portErr.Code() == serial.PortBusy
}

//go:build linux || darwin || freebsd || netbsd || openbsd

package serial

import (
	"errors"

	"golang.org/x/sys/unix"
)

// checkTermios asks the driver for terminal attributes. Only a tty answers,
// so ENOTTY means the device node is something other than a serial line.
// The device name is left to the caller's error.
// Any other failure (busy, permissions) is left for the real open to report.
func checkTermios(device string) error {
	fd, err := unix.Open(device, unix.O_RDONLY|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil
	}
	defer unix.Close(fd)

	if _, err := unix.IoctlGetTermios(fd, ioctlGetTermios); err != nil {
		if errors.Is(err, unix.ENOTTY) {
			return ErrNotSerialPort
		}
	}
	return nil
}

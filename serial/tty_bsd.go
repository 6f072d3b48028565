//go:build darwin || freebsd || netbsd || openbsd

package serial

import "golang.org/x/sys/unix"

const ioctlGetTermios = unix.TIOCGETA

func checkSerialDevice(device string) error {
	if err := statDevice(device); err != nil {
		return err
	}
	return checkTermios(device)
}

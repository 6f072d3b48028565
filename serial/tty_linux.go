//go:build linux

package serial

import "golang.org/x/sys/unix"

const ioctlGetTermios = unix.TCGETS

func checkSerialDevice(device string) error {
	if err := statDevice(device); err != nil {
		return err
	}
	return checkTermios(device)
}

package serial

import (
	"errors"
	"io/fs"
	"os"
)

// statDevice rejects paths that are missing or are not character devices
func statDevice(device string) error {
	info, err := os.Stat(device)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrPortNotFound
		}
		return err
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return ErrNotSerialPort
	}
	return nil
}

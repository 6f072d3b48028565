//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package serial

// Device names such as COM3 are not filesystem paths, so the driver's own
// open is the only check available.
func checkSerialDevice(device string) error {
	return nil
}

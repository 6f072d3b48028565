package link

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument marks a malformed or out of range parameter value
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConnection matches every *ConnectionError through errors.Is
	ErrConnection = errors.New("serial link connection error")
)

// ConnectionError reports a failure to open, configure or use the port
type ConnectionError struct {
	Op     string
	Device string
	Msg    string
	Err    error
}

func (e *ConnectionError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		cause := e.Err.Error()
		switch {
		case msg == "" || strings.Contains(cause, msg):
			msg = cause
		default:
			msg = fmt.Sprintf("%s: %s", msg, cause)
		}
	}
	if e.Device == "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Device, msg)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrConnection) match any ConnectionError
func (e *ConnectionError) Is(target error) bool {
	return target == ErrConnection
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

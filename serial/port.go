package serial

import (
	"context"
	"io"
	"time"
)

// Parity represents the parity mode of the line
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityNone:
		return "NONE"
	case ParityOdd:
		return "ODD"
	case ParityEven:
		return "EVEN"
	case ParityMark:
		return "MARK"
	case ParitySpace:
		return "SPACE"
	default:
		return "UNKNOWN"
	}
}

// StopBits represents the number of stop bits
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits1Half
	StopBits2
)

func (s StopBits) String() string {
	switch s {
	case StopBits1:
		return "1"
	case StopBits1Half:
		return "1.5"
	case StopBits2:
		return "2"
	default:
		return "?"
	}
}

// FlowControl is a bitmask of flow control modes. Inbound and outbound
// modes are independent bits and are combined with a bitwise or.
type FlowControl int

const (
	FlowNone       FlowControl = 0
	FlowRTSCTSIn   FlowControl = 1
	FlowRTSCTSOut  FlowControl = 2
	FlowXonXoffIn  FlowControl = 4
	FlowXonXoffOut FlowControl = 8
)

// LineSettings holds the framing settings applied to an open port
type LineSettings struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
}

// EventType identifies a hardware notification raised by a port
type EventType int

const (
	DataAvailable EventType = iota + 1
	BreakInterrupt
	CarrierDetect
	ClearToSend
	DataSetReady
	FramingError
	OverrunError
	OutputBufferEmpty
	ParityError
	RingIndicator
)

func (t EventType) String() string {
	switch t {
	case DataAvailable:
		return "data-available"
	case BreakInterrupt:
		return "break-interrupt"
	case CarrierDetect:
		return "carrier-detect"
	case ClearToSend:
		return "clear-to-send"
	case DataSetReady:
		return "data-set-ready"
	case FramingError:
		return "framing-error"
	case OverrunError:
		return "overrun-error"
	case OutputBufferEmpty:
		return "output-buffer-empty"
	case ParityError:
		return "parity-error"
	case RingIndicator:
		return "ring-indicator"
	default:
		return "unknown"
	}
}

// PortEvent is a raw notification pushed by a port. State carries the new
// line level for modem status events.
type PortEvent struct {
	Type  EventType
	State bool
}

// OwnershipEvent is raised when another process asks for a port we hold
type OwnershipEvent struct {
	Device    string
	Requester string
}

// Port defines the operations a serial session needs from the platform
type Port interface {
	io.Closer

	// Configure applies the framing settings
	Configure(settings LineSettings) error

	// SetFlowControl requests a combined flow control mode
	SetFlowControl(mode FlowControl) error

	// FlowControl reports the mode the driver actually applied
	FlowControl() FlowControl

	// InputStream returns the buffered receive stream
	InputStream() io.ReadCloser

	// OutputStream returns the transmit stream
	OutputStream() io.WriteCloser

	// NotifyOn enables or disables raising events of the given type
	NotifyOn(t EventType, enable bool)

	// SetReceiveTimeout bounds how long a single device read may block
	SetReceiveTimeout(d time.Duration) error

	// Listen attaches the channel raw events are pushed to. Only one
	// channel may be attached to a port.
	Listen(ch chan<- PortEvent) error

	// SetOwnershipHandler registers fn for ownership contention, nil unregisters
	SetOwnershipHandler(fn func(OwnershipEvent))

	// Break asserts the break condition for d
	Break(d time.Duration) error

	// Drain waits until all output has been transmitted
	Drain() error

	// Device returns the device path
	Device() string

	// IsOpen returns true if the port is currently open
	IsOpen() bool
}

// Opener resolves a device identifier and acquires the port for owner.
// The context deadline bounds how long Open waits for a busy port.
type Opener interface {
	Open(ctx context.Context, device, owner string) (Port, error)
}

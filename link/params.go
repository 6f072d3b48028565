package link

import (
	"fmt"
	"strings"
	"time"

	"seriallink/serial"
)

// Default parameter values
const (
	DefaultDevice        = "/dev/ttyUSB0"
	DefaultBaudRate      = 9600
	DefaultDataBits      = 8
	DefaultRecvTimeoutMs = 200
)

// StandardBaudRates lists the rates offered to users. Other positive rates
// are accepted as well.
var StandardBaudRates = []int{
	300, 1200, 2400, 4800, 9600, 14400,
	19200, 28800, 38400, 57600, 115200, 230400,
}

// Flow control tokens
const (
	FlowNone       = "NONE"
	FlowRTSCTSIn   = "RTSCTS_IN"
	FlowXonXoffIn  = "XONXOFF_IN"
	FlowRTSCTSOut  = "RTSCTS_OUT"
	FlowXonXoffOut = "XONXOFF_OUT"
)

var (
	flowIn = map[string]serial.FlowControl{
		FlowNone:      serial.FlowNone,
		FlowRTSCTSIn:  serial.FlowRTSCTSIn,
		FlowXonXoffIn: serial.FlowXonXoffIn,
	}
	flowOut = map[string]serial.FlowControl{
		FlowNone:       serial.FlowNone,
		FlowRTSCTSOut:  serial.FlowRTSCTSOut,
		FlowXonXoffOut: serial.FlowXonXoffOut,
	}
	parities = map[string]serial.Parity{
		"NONE":  serial.ParityNone,
		"EVEN":  serial.ParityEven,
		"ODD":   serial.ParityOdd,
		"MARK":  serial.ParityMark,
		"SPACE": serial.ParitySpace,
	}
)

// Parameters is the line configuration of a serial session. It is a plain
// value: assigning it takes a snapshot.
type Parameters struct {
	device         string
	baudRate       int
	flowControlIn  serial.FlowControl
	flowControlOut serial.FlowControl
	dataBits       int
	stopBits       serial.StopBits
	parity         serial.Parity
	recvTimeoutMs  int
}

// DefaultParameters returns 9600 8N1 on /dev/ttyUSB0, no flow control and
// a 200 ms receive timeout.
func DefaultParameters() Parameters {
	return Parameters{
		device:         DefaultDevice,
		baudRate:       DefaultBaudRate,
		flowControlIn:  serial.FlowNone,
		flowControlOut: serial.FlowNone,
		dataBits:       DefaultDataBits,
		stopBits:       serial.StopBits1,
		parity:         serial.ParityNone,
		recvTimeoutMs:  DefaultRecvTimeoutMs,
	}
}

// Device returns the port identifier
func (p Parameters) Device() string { return p.device }

// SetDevice sets the port identifier
func (p *Parameters) SetDevice(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return invalid("port identifier is empty")
	}
	p.device = id
	return nil
}

// BaudRate returns the transfer rate in bauds
func (p Parameters) BaudRate() int { return p.baudRate }

// SetBaudRate sets the transfer rate
func (p *Parameters) SetBaudRate(rate int) error {
	if rate <= 0 {
		return invalid("invalid baud rate: %d", rate)
	}
	p.baudRate = rate
	return nil
}

// FlowControlIn returns the inbound flow control code
func (p Parameters) FlowControlIn() serial.FlowControl { return p.flowControlIn }

// SetFlowControlIn accepts NONE, RTSCTS_IN or XONXOFF_IN
func (p *Parameters) SetFlowControlIn(text string) error {
	code, ok := flowIn[normalize(text)]
	if !ok {
		return invalid("invalid flowControlIn value: %q", text)
	}
	p.flowControlIn = code
	return nil
}

// FlowControlOut returns the outbound flow control code
func (p Parameters) FlowControlOut() serial.FlowControl { return p.flowControlOut }

// SetFlowControlOut accepts NONE, RTSCTS_OUT or XONXOFF_OUT
func (p *Parameters) SetFlowControlOut(text string) error {
	code, ok := flowOut[normalize(text)]
	if !ok {
		return invalid("invalid flowControlOut value: %q", text)
	}
	p.flowControlOut = code
	return nil
}

// FlowControl returns the combined mode applied to the port
func (p Parameters) FlowControl() serial.FlowControl {
	return p.flowControlIn | p.flowControlOut
}

// DataBits returns the number of data bits
func (p Parameters) DataBits() int { return p.dataBits }

// SetDataBits accepts 5, 6, 7 or 8
func (p *Parameters) SetDataBits(n int) error {
	switch n {
	case 5, 6, 7, 8:
		p.dataBits = n
		return nil
	default:
		return invalid("invalid databits value: %d", n)
	}
}

// StopBits returns the number of stop bits
func (p Parameters) StopBits() serial.StopBits { return p.stopBits }

// SetStopBits accepts "1", "1.5" (also "1,5" and "1_5") or "2"
func (p *Parameters) SetStopBits(text string) error {
	switch strings.TrimSpace(text) {
	case "1":
		p.stopBits = serial.StopBits1
	case "1.5", "1,5", "1_5":
		p.stopBits = serial.StopBits1Half
	case "2":
		p.stopBits = serial.StopBits2
	default:
		return invalid("invalid stopbits value: %q", text)
	}
	return nil
}

// Parity returns the parity mode
func (p Parameters) Parity() serial.Parity { return p.parity }

// SetParity accepts NONE, EVEN, ODD, MARK or SPACE
func (p *Parameters) SetParity(text string) error {
	parity, ok := parities[normalize(text)]
	if !ok {
		return invalid("invalid parity value: %q", text)
	}
	p.parity = parity
	return nil
}

// RecvTimeoutMs returns the receive timeout in milliseconds
func (p Parameters) RecvTimeoutMs() int { return p.recvTimeoutMs }

// SetRecvTimeout sets the receive timeout in milliseconds
func (p *Parameters) SetRecvTimeout(ms int) error {
	if ms <= 0 {
		return invalid("invalid receive timeout: %d ms", ms)
	}
	p.recvTimeoutMs = ms
	return nil
}

// RecvTimeout returns the receive timeout as a duration
func (p Parameters) RecvTimeout() time.Duration {
	return time.Duration(p.recvTimeoutMs) * time.Millisecond
}

// LineSettings returns the framing part of the parameters
func (p Parameters) LineSettings() serial.LineSettings {
	return serial.LineSettings{
		BaudRate: p.baudRate,
		DataBits: p.dataBits,
		StopBits: p.stopBits,
		Parity:   p.parity,
	}
}

// String formats the parameters as "/dev/ttyUSB0 9600 8N1"
func (p Parameters) String() string {
	s := fmt.Sprintf("%s %d %d%c%s", p.device, p.baudRate, p.dataBits, p.parity.String()[0], p.stopBits)
	if fc := p.FlowControl(); fc != serial.FlowNone {
		in, _ := FlowControlName(p.flowControlIn)
		out, _ := FlowControlName(p.flowControlOut)
		s += fmt.Sprintf(" flow=%s/%s", in, out)
	}
	return s
}

// FlowControlName maps a single flow control code back to its token
func FlowControlName(code serial.FlowControl) (string, error) {
	switch code {
	case serial.FlowNone:
		return FlowNone, nil
	case serial.FlowRTSCTSIn:
		return FlowRTSCTSIn, nil
	case serial.FlowXonXoffIn:
		return FlowXonXoffIn, nil
	case serial.FlowRTSCTSOut:
		return FlowRTSCTSOut, nil
	case serial.FlowXonXoffOut:
		return FlowXonXoffOut, nil
	default:
		return "", invalid("invalid flow control index: %d", int(code))
	}
}

// FlowControlNames returns the tokens accepted for direction "in" or "out"
func FlowControlNames(direction string) []string {
	switch direction {
	case "in":
		return []string{FlowNone, FlowRTSCTSIn, FlowXonXoffIn}
	case "out":
		return []string{FlowNone, FlowRTSCTSOut, FlowXonXoffOut}
	default:
		return nil
	}
}

// ParityNames returns the accepted parity tokens
func ParityNames() []string {
	return []string{"NONE", "EVEN", "ODD", "MARK", "SPACE"}
}

// StopBitsNames returns the canonical stop bit tokens
func StopBitsNames() []string {
	return []string{"1", "1.5", "2"}
}

func normalize(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

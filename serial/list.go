package serial

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the system
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s (USB %s:%s", p.Name, p.VID, p.PID)
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.SerialNumber != "" {
		desc += " s/n " + p.SerialNumber
	}
	return desc + ")"
}

// ListPorts returns a list of available serial ports
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// DetailedPorts returns available ports with USB details when known
func DetailedPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// UARTInfo contains kernel-level UART information for a serial port
type UARTInfo struct {
	Device  string
	UART    string
	Port    string
	IRQ     int
	TX      int64
	RX      int64
	Signals string
	Active  bool
}

func (u UARTInfo) String() string {
	state := "idle"
	if u.Active {
		state = "active"
	}
	desc := fmt.Sprintf("%s %s io %s irq %d tx:%d rx:%d %s", u.Device, u.UART, u.Port, u.IRQ, u.TX, u.RX, state)
	if u.Signals != "" {
		desc += " " + u.Signals
	}
	return desc
}

const procSerialPath = "/proc/tty/driver/serial"

// Example: "4: uart:16550A port:000002F0 irq:7 tx:1195 rx:1170 CTS|DSR|CD"
var uartLine = regexp.MustCompile(`^\s*(\d+):\s+uart:(\S+)\s+port:([0-9A-Fa-f]+)\s+irq:(\d+)\s+tx:(\d+)\s+rx:(\d+)(.*)$`)

// SystemPorts reads UART details for the on-board ttyS ports. It needs read
// access to /proc/tty/driver/serial, which is usually root only.
func SystemPorts() ([]UARTInfo, error) {
	file, err := os.Open(procSerialPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseUARTs(file)
}

func parseUARTs(r io.Reader) ([]UARTInfo, error) {
	var ports []UARTInfo
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		matches := uartLine.FindStringSubmatch(scanner.Text())
		if len(matches) < 8 || matches[2] == "unknown" {
			continue
		}

		num, _ := strconv.Atoi(matches[1])
		irq, _ := strconv.Atoi(matches[4])
		tx, _ := strconv.ParseInt(matches[5], 10, 64)
		rx, _ := strconv.ParseInt(matches[6], 10, 64)
		signals := strings.TrimSpace(matches[7])

		// A remote device raises CTS, DSR or CD; traffic both ways also counts.
		remote := strings.Contains(signals, "CTS") || strings.Contains(signals, "DSR") || strings.Contains(signals, "CD")

		ports = append(ports, UARTInfo{
			Device:  "/dev/ttyS" + strconv.Itoa(num),
			UART:    matches[2],
			Port:    "0x" + strings.ToUpper(matches[3]),
			IRQ:     irq,
			TX:      tx,
			RX:      rx,
			Signals: signals,
			Active:  remote || (tx > 0 && rx > 0),
		})
	}
	return ports, scanner.Err()
}

package serial

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRetryInterval = 100 * time.Millisecond
	modemPollInterval    = 100 * time.Millisecond
	readChunkSize        = 1024
)

// RealOpener opens ports using go.bug.st/serial
type RealOpener struct {
	// RetryInterval is the pause between attempts on a busy port
	RetryInterval time.Duration
	logger        *slog.Logger
}

// NewOpener creates an opener for real serial devices
func NewOpener(logger *slog.Logger) *RealOpener {
	if logger == nil {
		logger = slog.Default()
	}
	return &RealOpener{
		RetryInterval: defaultRetryInterval,
		logger:        logger,
	}
}

// Open resolves device, checks that it is a serial line and acquires it.
// A busy port is retried until ctx expires so a stale owner has a chance
// to release it.
func (o *RealOpener) Open(ctx context.Context, device, owner string) (Port, error) {
	if err := checkSerialDevice(device); err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	interval := o.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}

	attempt := 0
	for {
		attempt++
		port, err := serial.Open(device, mode)
		if err == nil {
			o.logger.Debug("Serial port acquired", "device", device, "owner", owner, "attempts", attempt)
			return newRealPort(port, device, o.logger), nil
		}
		if !isBusy(err) {
			return nil, fmt.Errorf("failed to open serial port %s: %w", device, classify(err))
		}

		o.logger.Debug("Serial port busy, waiting for release", "device", device, "attempt", attempt)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to open serial port %s: %w", device, classify(err))
		case <-time.After(interval):
		}
	}
}

// RealPort implements Port using a real serial port
type RealPort struct {
	port   serial.Port
	device string
	logger *slog.Logger

	mu          sync.Mutex
	isOpen      bool
	flow        FlowControl
	notify      map[EventType]bool
	listener    chan<- PortEvent
	onOwnership func(OwnershipEvent)

	input  *InputBuffer
	output *portWriter
	closed chan struct{}
	group  errgroup.Group
}

func newRealPort(port serial.Port, device string, logger *slog.Logger) *RealPort {
	p := &RealPort{
		port:   port,
		device: device,
		logger: logger.With("device", device),
		isOpen: true,
		notify: make(map[EventType]bool),
		input:  NewInputBuffer(),
		closed: make(chan struct{}),
	}
	p.output = &portWriter{port: p}
	return p
}

// Configure applies the framing settings
func (p *RealPort) Configure(settings LineSettings) error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	mode := &serial.Mode{
		BaudRate: settings.BaudRate,
		DataBits: settings.DataBits,
		StopBits: convertStopBits(settings.StopBits),
		Parity:   convertParity(settings.Parity),
	}
	if err := p.port.SetMode(mode); err != nil {
		return fmt.Errorf("unsupported parameters for serial link: %w", classify(err))
	}
	return nil
}

// SetFlowControl records the requested mode. go.bug.st/serial leaves
// RTS/CTS and XON/XOFF disabled, so only FlowNone is ever applied and the
// caller sees the difference through FlowControl.
func (p *RealPort) SetFlowControl(mode FlowControl) error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	if mode != FlowNone {
		p.logger.Debug("Driver cannot apply flow control", "requested", int(mode))
		return nil
	}
	p.mu.Lock()
	p.flow = FlowNone
	p.mu.Unlock()
	return nil
}

// FlowControl reports the applied flow control mode
func (p *RealPort) FlowControl() FlowControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flow
}

// InputStream returns the buffered receive stream
func (p *RealPort) InputStream() io.ReadCloser {
	return p.input
}

// OutputStream returns the transmit stream
func (p *RealPort) OutputStream() io.WriteCloser {
	return p.output
}

// NotifyOn enables or disables an event type. Break, framing, overrun and
// parity conditions are not reported by the driver and never fire.
func (p *RealPort) NotifyOn(t EventType, enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify[t] = enable
}

// SetReceiveTimeout sets the device read timeout used by the pump
func (p *RealPort) SetReceiveTimeout(d time.Duration) error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	if err := p.port.SetReadTimeout(d); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", classify(err))
	}
	return nil
}

// Listen attaches ch and starts pumping device input into it
func (p *RealPort) Listen(ch chan<- PortEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	if p.listener != nil {
		return ErrAlreadyListening
	}
	p.listener = ch

	p.group.Go(p.readLoop)
	p.group.Go(p.modemLoop)
	return nil
}

// SetOwnershipHandler registers fn for ownership contention. The port is
// held with exclusive access, so contenders fail to open and fn is never
// called by this implementation.
func (p *RealPort) SetOwnershipHandler(fn func(OwnershipEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOwnership = fn
}

// Break asserts the break condition for d
func (p *RealPort) Break(d time.Duration) error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	if err := p.port.Break(d); err != nil {
		return classify(err)
	}
	return nil
}

// Drain waits until all output has been transmitted
func (p *RealPort) Drain() error {
	if !p.IsOpen() {
		return ErrPortClosed
	}
	return p.port.Drain()
}

// Device returns the device path
func (p *RealPort) Device() string {
	return p.device
}

// IsOpen returns true if the port is currently open
func (p *RealPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// Close releases the device and stops the pump
func (p *RealPort) Close() error {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return nil
	}
	p.isOpen = false
	p.listener = nil
	p.onOwnership = nil
	close(p.closed)
	p.mu.Unlock()

	p.input.Close()
	err := p.port.Close()
	if werr := p.group.Wait(); werr != nil {
		p.logger.Debug("Port pump stopped", "error", werr)
	}
	return err
}

func (p *RealPort) emit(ev PortEvent) {
	p.mu.Lock()
	ch := p.listener
	enabled := p.notify[ev.Type]
	p.mu.Unlock()

	if ch == nil || !enabled {
		return
	}
	select {
	case ch <- ev:
	case <-p.closed:
	}
}

func (p *RealPort) readLoop() error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := p.port.Read(buf)
		if n > 0 {
			p.input.Feed(buf[:n])
			p.emit(PortEvent{Type: DataAvailable, State: true})
		}
		if err != nil {
			select {
			case <-p.closed:
				return nil
			default:
			}
			p.logger.Error("Serial read failed", "error", err)
			return classify(err)
		}
	}
}

func (p *RealPort) modemLoop() error {
	ticker := time.NewTicker(modemPollInterval)
	defer ticker.Stop()

	var last *serial.ModemStatusBits
	for {
		select {
		case <-p.closed:
			return nil
		case <-ticker.C:
		}

		bits, err := p.port.GetModemStatusBits()
		if err != nil {
			select {
			case <-p.closed:
				return nil
			default:
			}
			p.logger.Debug("Modem status unavailable", "error", err)
			return nil
		}
		if last != nil {
			if bits.DCD != last.DCD {
				p.emit(PortEvent{Type: CarrierDetect, State: bits.DCD})
			}
			if bits.CTS != last.CTS {
				p.emit(PortEvent{Type: ClearToSend, State: bits.CTS})
			}
			if bits.DSR != last.DSR {
				p.emit(PortEvent{Type: DataSetReady, State: bits.DSR})
			}
			if bits.RI != last.RI {
				p.emit(PortEvent{Type: RingIndicator, State: bits.RI})
			}
		}
		last = bits
	}
}

// portWriter is the output stream of a RealPort
type portWriter struct {
	port *RealPort

	mu     sync.Mutex
	closed bool
}

func (w *portWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed || !w.port.IsOpen() {
		return 0, ErrPortClosed
	}
	n, err := w.port.port.Write(data)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

func (w *portWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func convertStopBits(bits StopBits) serial.StopBits {
	switch bits {
	case StopBits1Half:
		return serial.OnePointFiveStopBits
	case StopBits2:
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}

func convertParity(parity Parity) serial.Parity {
	switch parity {
	case ParityOdd:
		return serial.OddParity
	case ParityEven:
		return serial.EvenParity
	case ParityMark:
		return serial.MarkParity
	case ParitySpace:
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

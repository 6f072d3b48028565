package serial

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// MockPort implements Port for testing purposes
type MockPort struct {
	mu          sync.Mutex
	device      string
	isOpen      bool
	settings    LineSettings
	supported   FlowControl
	flow        FlowControl
	notify      map[EventType]bool
	readTimeout time.Duration
	listener    chan<- PortEvent
	onOwnership func(OwnershipEvent)
	closed      chan struct{}

	input  *InputBuffer
	peer   *MockPort
	buffer bytes.Buffer
	writes [][]byte
	breaks []time.Duration
	drains []int

	writeErr     error // If set, Write will return this error
	readErr      error // If set, reads from the input stream fail
	configureErr error
	closeErr     error
	drainErr     error
}

// NewMockPort creates a new open mock port that accepts every flow control mode
func NewMockPort(device string) *MockPort {
	return &MockPort{
		device:    device,
		isOpen:    true,
		supported: FlowRTSCTSIn | FlowRTSCTSOut | FlowXonXoffIn | FlowXonXoffOut,
		notify:    make(map[EventType]bool),
		closed:    make(chan struct{}),
		input:     NewInputBuffer(),
		writes:    make([][]byte, 0),
	}
}

// NewLoopbackPair creates two cross-wired mock ports: bytes written to one
// arrive as input, with a data-available event, on the other.
func NewLoopbackPair(deviceA, deviceB string) (*MockPort, *MockPort) {
	a := NewMockPort(deviceA)
	b := NewMockPort(deviceB)
	a.peer = b
	b.peer = a
	return a, b
}

// Configure applies the framing settings
func (p *MockPort) Configure(settings LineSettings) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	if p.configureErr != nil {
		return p.configureErr
	}
	p.settings = settings
	return nil
}

// SetFlowControl applies the bits of mode the mock was told to support
func (p *MockPort) SetFlowControl(mode FlowControl) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	p.flow = mode & p.supported
	return nil
}

// FlowControl reports the applied flow control mode
func (p *MockPort) FlowControl() FlowControl {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flow
}

// InputStream returns the receive stream
func (p *MockPort) InputStream() io.ReadCloser {
	return &mockReader{port: p}
}

// OutputStream returns the transmit stream
func (p *MockPort) OutputStream() io.WriteCloser {
	return &mockWriter{port: p}
}

// NotifyOn enables or disables an event type
func (p *MockPort) NotifyOn(t EventType, enable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify[t] = enable
}

// SetReceiveTimeout records the receive timeout
func (p *MockPort) SetReceiveTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	p.readTimeout = d
	return nil
}

// Listen attaches the raw event channel
func (p *MockPort) Listen(ch chan<- PortEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	if p.listener != nil {
		return ErrAlreadyListening
	}
	p.listener = ch
	return nil
}

// SetOwnershipHandler registers fn for ownership contention
func (p *MockPort) SetOwnershipHandler(fn func(OwnershipEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onOwnership = fn
}

// Break records a break request
func (p *MockPort) Break(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	p.breaks = append(p.breaks, d)
	return nil
}

// Drain records how many writes had completed when it was called
func (p *MockPort) Drain() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return ErrPortClosed
	}
	if p.drainErr != nil {
		return p.drainErr
	}
	p.drains = append(p.drains, len(p.writes))
	return nil
}

// Device returns the mock device path
func (p *MockPort) Device() string {
	return p.device
}

// IsOpen returns true if the mock port is open
func (p *MockPort) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen
}

// Close closes the mock port
func (p *MockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isOpen {
		return nil
	}
	p.isOpen = false
	p.listener = nil
	p.onOwnership = nil
	close(p.closed)
	p.input.Close()
	return p.closeErr
}

// Reopen reopens a closed mock port with fresh streams
func (p *MockPort) Reopen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isOpen {
		return
	}
	p.isOpen = true
	p.flow = FlowNone
	p.notify = make(map[EventType]bool)
	p.closed = make(chan struct{})
	p.input = NewInputBuffer()
}

// Inject feeds data into the input stream and raises data-available
func (p *MockPort) Inject(data []byte) {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return
	}
	input := p.input
	p.mu.Unlock()

	input.Feed(data)
	p.Raise(PortEvent{Type: DataAvailable, State: true})
}

// Raise pushes ev to the attached listener when its type is enabled.
// It reports whether the event was delivered.
func (p *MockPort) Raise(ev PortEvent) bool {
	p.mu.Lock()
	ch := p.listener
	enabled := p.notify[ev.Type]
	closed := p.closed
	p.mu.Unlock()

	if ch == nil || !enabled {
		return false
	}
	select {
	case ch <- ev:
		return true
	case <-closed:
		return false
	}
}

// RequestOwnership simulates another process asking for the port
func (p *MockPort) RequestOwnership(requester string) {
	p.mu.Lock()
	fn := p.onOwnership
	p.mu.Unlock()
	if fn != nil {
		fn(OwnershipEvent{Device: p.device, Requester: requester})
	}
}

// Notifying reports whether events of type t are enabled
func (p *MockPort) Notifying(t EventType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notify[t]
}

// Listening reports whether an event channel is attached
func (p *MockPort) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listener != nil
}

// HasOwnershipHandler reports whether an ownership handler is registered
func (p *MockPort) HasOwnershipHandler() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onOwnership != nil
}

// Settings returns the last applied framing settings
func (p *MockPort) Settings() LineSettings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// ReceiveTimeout returns the configured receive timeout
func (p *MockPort) ReceiveTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimeout
}

// Breaks returns the durations of all break requests
func (p *MockPort) Breaks() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.breaks...)
}

// Drains returns, per Drain call, the number of writes completed before it
func (p *MockPort) Drains() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.drains...)
}

// GetWrittenData returns all data written to the mock port
func (p *MockPort) GetWrittenData() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.buffer.Bytes()...)
}

// GetWrites returns all individual write operations
func (p *MockPort) GetWrites() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		result[i] = make([]byte, len(w))
		copy(result[i], w)
	}
	return result
}

// Reset clears all written data
func (p *MockPort) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buffer.Reset()
	p.writes = make([][]byte, 0)
}

// SetSupportedFlowControl limits the flow control bits the mock applies
func (p *MockPort) SetSupportedFlowControl(mask FlowControl) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.supported = mask
}

// SetWriteError sets an error to be returned on subsequent writes
func (p *MockPort) SetWriteError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeErr = err
}

// SetReadError sets an error to be returned by the input stream
func (p *MockPort) SetReadError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

// SetConfigureError sets an error to be returned by Configure
func (p *MockPort) SetConfigureError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.configureErr = err
}

// SetCloseError sets an error to be returned by Close
func (p *MockPort) SetCloseError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeErr = err
}

// SetDrainError sets an error to be returned by Drain
func (p *MockPort) SetDrainError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainErr = err
}

func (p *MockPort) write(data []byte) (int, error) {
	p.mu.Lock()
	if !p.isOpen {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if p.writeErr != nil {
		err := p.writeErr
		p.mu.Unlock()
		return 0, err
	}

	// Store a copy of the data
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	p.writes = append(p.writes, dataCopy)
	p.buffer.Write(data)
	peer := p.peer
	p.mu.Unlock()

	if peer != nil {
		peer.Inject(dataCopy)
	}
	return len(data), nil
}

type mockReader struct {
	port *MockPort
}

func (r *mockReader) current() (*InputBuffer, error) {
	r.port.mu.Lock()
	defer r.port.mu.Unlock()
	if r.port.readErr != nil {
		return nil, r.port.readErr
	}
	return r.port.input, nil
}

func (r *mockReader) Read(b []byte) (int, error) {
	input, err := r.current()
	if err != nil {
		return 0, err
	}
	return input.Read(b)
}

func (r *mockReader) ReadByte() (byte, error) {
	input, err := r.current()
	if err != nil {
		return 0, err
	}
	return input.ReadByte()
}

func (r *mockReader) Close() error {
	r.port.mu.Lock()
	input := r.port.input
	r.port.mu.Unlock()
	return input.Close()
}

type mockWriter struct {
	port *MockPort
}

func (w *mockWriter) Write(data []byte) (int, error) {
	return w.port.write(data)
}

func (w *mockWriter) Close() error {
	return nil
}

// MockOpener hands out registered mock ports
type MockOpener struct {
	mu        sync.Mutex
	ports     map[string]*MockPort
	notSerial map[string]bool
	opens     map[string]int
	openErr   error
}

// NewMockOpener creates an opener with no devices
func NewMockOpener() *MockOpener {
	return &MockOpener{
		ports:     make(map[string]*MockPort),
		notSerial: make(map[string]bool),
		opens:     make(map[string]int),
	}
}

// Add creates and registers a released mock port for device
func (o *MockOpener) Add(device string) *MockPort {
	port := NewMockPort(device)
	o.Register(port)
	return port
}

// Register releases port and makes it available under its device name
func (o *MockOpener) Register(port *MockPort) {
	port.Close()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ports[port.Device()] = port
}

// AddNonSerial registers a device that exists but is not a serial line
func (o *MockOpener) AddNonSerial(device string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notSerial[device] = true
}

// SetOpenError makes every subsequent Open fail with err
func (o *MockOpener) SetOpenError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openErr = err
}

// OpenCount returns how many times device was acquired
func (o *MockOpener) OpenCount(device string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens[device]
}

// Open acquires a registered port. A port that is still held elsewhere is
// polled until ctx expires.
func (o *MockOpener) Open(ctx context.Context, device, owner string) (Port, error) {
	o.mu.Lock()
	port, ok := o.ports[device]
	notSerial := o.notSerial[device]
	openErr := o.openErr
	o.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}
	if notSerial {
		return nil, ErrNotSerialPort
	}
	if !ok {
		return nil, ErrPortNotFound
	}

	for port.IsOpen() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to open serial port %s: %w", device, ErrPortBusy)
		case <-time.After(10 * time.Millisecond):
		}
	}

	port.Reopen()
	o.mu.Lock()
	o.opens[device]++
	o.mu.Unlock()
	return port, nil
}

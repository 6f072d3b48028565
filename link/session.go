package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"seriallink/serial"
)

// AcquireTimeout bounds how long Open waits for a port held by another owner
const AcquireTimeout = 2 * time.Second

const eventBacklog = 64

// Session owns one serial port for one client. The zero value is not
// usable; create sessions with NewSession.
type Session struct {
	owner     string
	opener    serial.Opener
	logger    *slog.Logger
	listeners registry

	statusEvents atomic.Bool
	connected    atomic.Bool

	// lifecycle serializes Open and Close
	lifecycle sync.Mutex

	mu     sync.RWMutex
	port   serial.Port
	input  io.ReadCloser
	output io.WriteCloser
	params Parameters
	id     string

	stop chan struct{}
	done chan struct{}
}

// NewSession creates a closed session. owner is the name reported to the
// platform when the port is acquired.
func NewSession(owner string, opener serial.Opener, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		owner:  owner,
		opener: opener,
		logger: logger.With("owner", owner),
		params: DefaultParameters(),
	}
}

// SetStatusEvents makes the session forward line status events (break,
// modem lines, line errors) with a short description as message. By
// default only received data reaches listeners.
func (s *Session) SetStatusEvents(enable bool) {
	s.statusEvents.Store(enable)
}

// Open acquires the port named by params and starts event dispatch. It does
// nothing if the session is already open.
func (s *Session) Open(params Parameters) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.connected.Load() {
		return nil
	}

	device := params.Device()
	logger := s.logger.With("device", device)
	logger.Debug("Opening serial port", "params", params.String())

	ctx, cancel := context.WithTimeout(context.Background(), AcquireTimeout)
	defer cancel()

	port, err := s.opener.Open(ctx, device, s.owner)
	if err != nil {
		if errors.Is(err, serial.ErrNotSerialPort) {
			return &ConnectionError{Op: "open", Device: device, Msg: "not a serial port", Err: err}
		}
		return &ConnectionError{Op: "open", Device: device, Err: err}
	}

	events := make(chan serial.PortEvent, eventBacklog)
	input, output, err := s.setup(port, params, events)
	if err != nil {
		if cerr := port.Close(); cerr != nil {
			logger.Warn("Failed to release port after setup error", "error", cerr)
		}
		return err
	}

	id := uuid.NewString()

	s.mu.Lock()
	s.port = port
	s.input = input
	s.output = output
	s.params = params
	s.id = id
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.dispatchLoop(events, input, params, id, stop, done)

	s.connected.Store(true)
	logger.Info("Serial port opened", "session", id, "params", params.String())
	return nil
}

func (s *Session) setup(port serial.Port, params Parameters, events chan<- serial.PortEvent) (io.ReadCloser, io.WriteCloser, error) {
	device := params.Device()
	fail := func(msg string, err error) (io.ReadCloser, io.WriteCloser, error) {
		return nil, nil, &ConnectionError{Op: "open", Device: device, Msg: msg, Err: err}
	}

	if err := port.Configure(params.LineSettings()); err != nil {
		return fail("failed to apply line settings", err)
	}

	want := params.FlowControl()
	if err := port.SetFlowControl(want); err != nil {
		return fail("failed to update flow control mode", err)
	}
	if got := port.FlowControl(); got != want {
		return fail("failed to update flow control mode",
			fmt.Errorf("requested mode %d, driver applied %d", want, got))
	}

	input := port.InputStream()
	output := port.OutputStream()

	port.NotifyOn(serial.BreakInterrupt, true)
	port.NotifyOn(serial.DataAvailable, true)
	if s.statusEvents.Load() {
		for _, t := range statusKinds {
			port.NotifyOn(t, true)
		}
	}

	if err := port.SetReceiveTimeout(params.RecvTimeout()); err != nil {
		return fail("failed to set receive timeout", err)
	}

	logger := s.logger.With("device", device)
	port.SetOwnershipHandler(func(ev serial.OwnershipEvent) {
		logger.Warn("Ownership of serial port requested", "requester", ev.Requester)
	})

	if err := port.Listen(events); err != nil {
		return fail("failed to register event listener", err)
	}
	return input, output, nil
}

// Close waits for pending output, releases the port and stops event
// dispatch. Closing a closed
// session does nothing. Close must not be called from a listener.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.connected.Load() {
		return nil
	}
	s.connected.Store(false)

	s.mu.Lock()
	port, input, output := s.port, s.input, s.output
	stop, done := s.stop, s.done
	device := s.params.Device()
	s.port, s.input, s.output = nil, nil, nil
	s.mu.Unlock()

	logger := s.logger.With("device", device)

	if err := port.Drain(); err != nil {
		logger.Warn("Failed to drain output", "error", err)
	}
	if err := output.Close(); err != nil {
		logger.Warn("Failed to close output stream", "error", err)
	}
	if err := input.Close(); err != nil {
		logger.Warn("Failed to close input stream", "error", err)
	}
	port.SetOwnershipHandler(nil)
	if err := port.Close(); err != nil {
		logger.Error("Failed to close serial port", "error", err)
	}

	close(stop)
	<-done

	logger.Info("Serial port closed")
	return nil
}

// Write sends msg as is. It fails without any I/O when the session is closed.
func (s *Session) Write(msg string) error {
	s.mu.RLock()
	output := s.output
	device := s.params.Device()
	s.mu.RUnlock()

	if !s.connected.Load() || output == nil {
		return &ConnectionError{Op: "write", Device: device, Msg: "client disconnected"}
	}
	if _, err := io.WriteString(output, msg); err != nil {
		return &ConnectionError{Op: "write", Device: device, Err: err}
	}
	return nil
}

// SendBreak asserts the break condition for durationMs milliseconds
func (s *Session) SendBreak(durationMs int) error {
	s.mu.RLock()
	port := s.port
	device := s.params.Device()
	s.mu.RUnlock()

	if !s.connected.Load() || port == nil {
		return &ConnectionError{Op: "break", Device: device, Msg: "serial link is closed"}
	}
	if durationMs < 0 {
		return invalid("invalid break duration: %d ms", durationMs)
	}
	if err := port.Break(time.Duration(durationMs) * time.Millisecond); err != nil {
		return &ConnectionError{Op: "break", Device: device, Err: err}
	}
	return nil
}

// IsConnected reports whether the session currently holds an open port
func (s *Session) IsConnected() bool {
	return s.connected.Load()
}

// Parameters returns the parameters applied by the last successful Open
func (s *Session) Parameters() Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

// ID returns the identifier of the current or last open period
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Owner returns the owner name used to acquire ports
func (s *Session) Owner() string {
	return s.owner
}

// AddListener registers l. A listener registered twice is notified twice.
func (s *Session) AddListener(l Listener) {
	s.listeners.add(l)
}

// RemoveListener removes the first registration of l
func (s *Session) RemoveListener(l Listener) {
	s.listeners.remove(l)
}

// ListenerCount returns the number of registered listeners
func (s *Session) ListenerCount() int {
	return s.listeners.len()
}

var statusKinds = []serial.EventType{
	serial.CarrierDetect,
	serial.ClearToSend,
	serial.DataSetReady,
	serial.FramingError,
	serial.OverrunError,
	serial.OutputBufferEmpty,
	serial.ParityError,
	serial.RingIndicator,
}

func (s *Session) dispatchLoop(events <-chan serial.PortEvent, input io.Reader, params Parameters, id string, stop, done chan struct{}) {
	defer close(done)
	logger := s.logger.With("device", params.Device(), "session", id)

	for {
		select {
		case <-stop:
			return
		case ev := <-events:
			msg := s.message(ev, input, logger)
			if msg == "" {
				continue
			}
			s.listeners.dispatch(Event{
				Source:     s,
				SessionID:  id,
				Parameters: params,
				Message:    msg,
				Kind:       ev.Type,
				Time:       time.Now(),
			})
		}
	}
}

func (s *Session) message(ev serial.PortEvent, input io.Reader, logger *slog.Logger) string {
	if ev.Type == serial.DataAvailable {
		msg, err := ReadMessage(input)
		if err != nil {
			if !errors.Is(err, serial.ErrPortClosed) {
				logger.Error("Failed to read from serial port", "error", err)
			}
			return ""
		}
		return msg
	}

	logger.Debug("Line status event", "event", ev.Type.String(), "state", ev.State)
	if !s.statusEvents.Load() {
		return ""
	}
	if ev.Type == serial.BreakInterrupt {
		return ev.Type.String()
	}
	return fmt.Sprintf("%s=%t", ev.Type, ev.State)
}

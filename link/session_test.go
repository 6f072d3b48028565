package link

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriallink/serial"
)

const testDevice = "/dev/ttyMOCK0"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testParams(t *testing.T, device string) Parameters {
	t.Helper()
	p := DefaultParameters()
	require.NoError(t, p.SetDevice(device))
	return p
}

func openSession(t *testing.T) (*Session, *serial.MockOpener, *serial.MockPort) {
	t.Helper()
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())
	require.NoError(t, s.Open(testParams(t, testDevice)))
	t.Cleanup(func() { s.Close() })
	return s, opener, port
}

func TestSessionOpenAppliesParameters(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())

	params := testParams(t, testDevice)
	require.NoError(t, params.SetBaudRate(19200))
	require.NoError(t, params.SetDataBits(7))
	require.NoError(t, params.SetParity("EVEN"))
	require.NoError(t, params.SetStopBits("2"))
	require.NoError(t, params.SetRecvTimeout(50))
	require.NoError(t, params.SetFlowControlIn("RTSCTS_IN"))

	require.NoError(t, s.Open(params))
	defer s.Close()

	assert.True(t, s.IsConnected())
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, serial.LineSettings{
		BaudRate: 19200,
		DataBits: 7,
		StopBits: serial.StopBits2,
		Parity:   serial.ParityEven,
	}, port.Settings())
	assert.Equal(t, serial.FlowRTSCTSIn, port.FlowControl())
	assert.Equal(t, 50*time.Millisecond, port.ReceiveTimeout())
	assert.True(t, port.Notifying(serial.DataAvailable))
	assert.True(t, port.Notifying(serial.BreakInterrupt))
	assert.False(t, port.Notifying(serial.RingIndicator))
	assert.True(t, port.Listening())
	assert.True(t, port.HasOwnershipHandler())
}

func TestSessionOpenIsIdempotent(t *testing.T) {
	s, opener, _ := openSession(t)
	id := s.ID()

	require.NoError(t, s.Open(testParams(t, testDevice)))
	assert.Equal(t, 1, opener.OpenCount(testDevice))
	assert.Equal(t, id, s.ID())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _, port := openSession(t)

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
	assert.False(t, port.IsOpen())
	assert.False(t, port.HasOwnershipHandler())

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}

func TestSessionReopenGetsNewID(t *testing.T) {
	s, opener, _ := openSession(t)
	first := s.ID()

	require.NoError(t, s.Close())
	require.NoError(t, s.Open(testParams(t, testDevice)))
	assert.NotEqual(t, first, s.ID())
	assert.Equal(t, 2, opener.OpenCount(testDevice))
}

func TestSessionCloseDrainsOutputFirst(t *testing.T) {
	s, _, port := openSession(t)
	require.NoError(t, s.Write("bye"))

	require.NoError(t, s.Close())
	assert.Equal(t, []int{1}, port.Drains())
	assert.Equal(t, "bye", string(port.GetWrittenData()))
}

func TestSessionCloseSwallowsStreamErrors(t *testing.T) {
	s, _, port := openSession(t)
	port.SetCloseError(errors.New("driver hiccup"))
	port.SetDrainError(errors.New("drain timed out"))

	assert.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}

func TestSessionWriteWhenClosed(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())

	err := s.Write("hello")
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "client disconnected", connErr.Msg)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Empty(t, port.GetWrites())
}

func TestSessionWrite(t *testing.T) {
	s, _, port := openSession(t)

	require.NoError(t, s.Write("AT\r"))
	assert.Equal(t, "AT\r", string(port.GetWrittenData()))

	boom := errors.New("cable cut")
	port.SetWriteError(boom)
	err := s.Write("AT\r")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrConnection)
}

func TestSessionSendBreak(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())

	err := s.SendBreak(100)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "serial link is closed", connErr.Msg)

	require.NoError(t, s.Open(testParams(t, testDevice)))
	defer s.Close()
	require.NoError(t, s.SendBreak(250))
	assert.Equal(t, []time.Duration{250 * time.Millisecond}, port.Breaks())
	assert.ErrorIs(t, s.SendBreak(-1), ErrInvalidArgument)
}

func TestSessionOpenNotSerial(t *testing.T) {
	opener := serial.NewMockOpener()
	opener.AddNonSerial("/dev/null")
	s := NewSession("test", opener, discardLogger())

	err := s.Open(testParams(t, "/dev/null"))
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "not a serial port", connErr.Msg)
	assert.Equal(t, "open /dev/null: not a serial port", err.Error())
	assert.ErrorIs(t, err, serial.ErrNotSerialPort)
	assert.False(t, s.IsConnected())
}

func TestSessionOpenMissingDevice(t *testing.T) {
	s := NewSession("test", serial.NewMockOpener(), discardLogger())

	err := s.Open(testParams(t, "/dev/ttyNOPE"))
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, serial.ErrPortNotFound)
	assert.False(t, s.IsConnected())
}

func TestSessionOpenFlowControlMismatch(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	port.SetSupportedFlowControl(serial.FlowNone)
	s := NewSession("test", opener, discardLogger())

	params := testParams(t, testDevice)
	require.NoError(t, params.SetFlowControlOut("XONXOFF_OUT"))

	err := s.Open(params)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "failed to update flow control mode", connErr.Msg)
	assert.False(t, s.IsConnected())
	assert.False(t, port.IsOpen(), "partially opened port is released")
}

func TestSessionOpenConfigureFailure(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	boom := errors.New("unsupported baud rate")
	port.SetConfigureError(boom)
	s := NewSession("test", opener, discardLogger())

	err := s.Open(testParams(t, testDevice))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, s.IsConnected())
	assert.False(t, port.IsOpen())
}

func TestSessionOpenBusyPort(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the acquisition timeout")
	}
	opener := serial.NewMockOpener()
	opener.Add(testDevice)

	holder := NewSession("holder", opener, discardLogger())
	require.NoError(t, holder.Open(testParams(t, testDevice)))
	defer holder.Close()

	s := NewSession("test", opener, discardLogger())
	start := time.Now()
	err := s.Open(testParams(t, testDevice))
	assert.ErrorIs(t, err, serial.ErrPortBusy)
	assert.GreaterOrEqual(t, time.Since(start), AcquireTimeout)
}

func TestSessionEmptyMessageNotDispatched(t *testing.T) {
	s, _, port := openSession(t)
	l := &recorder{}
	s.AddListener(l)

	require.True(t, port.Raise(serial.PortEvent{Type: serial.DataAvailable, State: true}))
	port.Inject([]byte("marker"))

	require.Eventually(t, func() bool { return len(l.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"marker"}, l.messages())
}

func TestSessionDispatchesInRegistrationOrder(t *testing.T) {
	s, _, port := openSession(t)

	var mu sync.Mutex
	var order []string
	var events []Event
	listen := func(name string) Listener {
		return &recorder{name: name, onEv: func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			events = append(events, ev)
		}}
	}
	s.AddListener(listen("first"))
	s.AddListener(listen("second"))

	port.Inject([]byte("ping"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, order)
	for _, ev := range events {
		assert.Equal(t, "ping", ev.Message)
		assert.Equal(t, serial.DataAvailable, ev.Kind)
		assert.Same(t, s, ev.Source)
		assert.Equal(t, s.ID(), ev.SessionID)
		assert.Equal(t, testDevice, ev.Parameters.Device())
	}
}

func TestSessionStatusEventsSuppressedByDefault(t *testing.T) {
	s, _, port := openSession(t)
	l := &recorder{}
	s.AddListener(l)

	require.True(t, port.Raise(serial.PortEvent{Type: serial.BreakInterrupt, State: true}))
	port.Inject([]byte("after"))

	require.Eventually(t, func() bool { return len(l.messages()) > 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"after"}, l.messages())
}

func TestSessionStatusEventsWhenEnabled(t *testing.T) {
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())
	s.SetStatusEvents(true)
	require.NoError(t, s.Open(testParams(t, testDevice)))
	defer s.Close()

	var mu sync.Mutex
	var kinds []serial.EventType
	s.AddListener(&recorder{onEv: func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	}})

	require.True(t, port.Raise(serial.PortEvent{Type: serial.BreakInterrupt, State: true}))
	require.True(t, port.Raise(serial.PortEvent{Type: serial.RingIndicator, State: true}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []serial.EventType{serial.BreakInterrupt, serial.RingIndicator}, kinds)
}

func TestSessionRemoveListener(t *testing.T) {
	s, _, port := openSession(t)
	gone := &recorder{}
	kept := &recorder{}
	s.AddListener(gone)
	s.AddListener(kept)
	s.RemoveListener(gone)
	assert.Equal(t, 1, s.ListenerCount())

	port.Inject([]byte("x"))
	require.Eventually(t, func() bool { return len(kept.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, gone.messages())
}

func TestSessionReadErrorYieldsNoEvent(t *testing.T) {
	s, _, port := openSession(t)
	l := &recorder{}
	s.AddListener(l)

	port.SetReadError(errors.New("framing garbage"))
	port.Inject([]byte("lost"))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, l.messages())

	port.SetReadError(nil)
	port.Inject([]byte("ok"))
	require.Eventually(t, func() bool { return len(l.messages()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"lostok"}, l.messages())
}

func TestSessionOwnershipContentionIsOnlyLogged(t *testing.T) {
	logs := &lockedBuffer{}
	opener := serial.NewMockOpener()
	port := opener.Add(testDevice)
	s := NewSession("test", opener, slog.New(slog.NewTextHandler(logs, nil)))
	require.NoError(t, s.Open(testParams(t, testDevice)))
	defer s.Close()

	port.RequestOwnership("other-app")

	assert.True(t, s.IsConnected())
	assert.True(t, port.IsOpen())
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "requester=other-app")
}

func TestSessionParametersSnapshot(t *testing.T) {
	opener := serial.NewMockOpener()
	opener.Add(testDevice)
	s := NewSession("test", opener, discardLogger())

	params := testParams(t, testDevice)
	require.NoError(t, s.Open(params))
	defer s.Close()

	require.NoError(t, params.SetBaudRate(115200))
	assert.Equal(t, 9600, s.Parameters().BaudRate())
}

func TestSessionLoopback(t *testing.T) {
	a, b := serial.NewLoopbackPair("/dev/loopA", "/dev/loopB")
	opener := serial.NewMockOpener()
	opener.Register(a)
	opener.Register(b)

	sender := NewSession("sender", opener, discardLogger())
	receiver := NewSession("receiver", opener, discardLogger())

	params := testParams(t, "/dev/loopA")
	require.NoError(t, sender.Open(params))
	defer sender.Close()
	require.NoError(t, params.SetDevice("/dev/loopB"))
	require.NoError(t, receiver.Open(params))
	defer receiver.Close()

	got := make(chan Event, 1)
	receiver.AddListener(&recorder{onEv: func(ev Event) { got <- ev }})

	require.NoError(t, sender.Write("hello"))

	select {
	case ev := <-got:
		assert.Equal(t, "hello", ev.Message)
		assert.Equal(t, "/dev/loopB 9600 8N1", ev.Parameters.String())
	case <-time.After(time.Second):
		t.Fatal("no event on receiving session")
	}
}

func TestConnectionErrorMessage(t *testing.T) {
	err := &ConnectionError{Op: "write", Device: "/dev/ttyS0", Msg: "client disconnected"}
	assert.Equal(t, "write /dev/ttyS0: client disconnected", err.Error())

	err = &ConnectionError{Op: "open", Device: "/dev/ttyS0", Msg: "not a serial port", Err: serial.ErrNotSerialPort}
	assert.Equal(t, "open /dev/ttyS0: not a serial port", err.Error())

	err = &ConnectionError{Op: "open", Device: "/dev/null", Msg: "not a serial port", Err: fmt.Errorf("/dev/null is %w", serial.ErrNotSerialPort)}
	assert.Equal(t, "open /dev/null: /dev/null is not a serial port", err.Error())

	err = &ConnectionError{Op: "open", Msg: "failed to update flow control mode", Err: errors.New("requested mode 2, driver applied 0")}
	assert.Equal(t, "open: failed to update flow control mode: requested mode 2, driver applied 0", err.Error())
}

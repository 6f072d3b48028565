package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"seriallink/link"
	"seriallink/serial"
)

// State is the connection state shown to the user
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Options tunes how the controller talks to the port
type Options struct {
	// LineEnding is appended to every message sent
	LineEnding string

	// BreakDuration is the length of the break signal sent by SendBreak
	BreakDuration time.Duration

	// HistorySize bounds the console history
	HistorySize int
}

// Stats contains traffic statistics for the controller's session
type Stats struct {
	MessagesIn   int64
	MessagesOut  int64
	BytesIn      int64
	BytesOut     int64
	Errors       int64
	LastError    string
	LastActivity time.Time
	ConnectedAt  time.Time
}

// Form is the raw parameter input of a front end
type Form struct {
	Device         string
	BaudRate       int
	FlowControlIn  string
	FlowControlOut string
	DataBits       int
	StopBits       string
	Parity         string
	RecvTimeoutMs  int
}

// FormFromParameters fills a form with the values of p
func FormFromParameters(p link.Parameters) Form {
	in, _ := link.FlowControlName(p.FlowControlIn())
	out, _ := link.FlowControlName(p.FlowControlOut())
	return Form{
		Device:         p.Device(),
		BaudRate:       p.BaudRate(),
		FlowControlIn:  in,
		FlowControlOut: out,
		DataBits:       p.DataBits(),
		StopBits:       p.StopBits().String(),
		Parity:         p.Parity().String(),
		RecvTimeoutMs:  p.RecvTimeoutMs(),
	}
}

// Controller connects a front end to a serial session. It owns the shared
// parameter store, turns session events into console entries and keeps
// history and statistics.
type Controller struct {
	session  *link.Session
	notifier Notifier
	logger   *slog.Logger
	opts     Options

	history  *History
	queue    *Queue
	activity *activity

	paramsMu sync.RWMutex
	params   link.Parameters

	stateMu sync.RWMutex
	state   State

	statsMu sync.RWMutex
	stats   Stats
}

// New creates a controller for session starting with params
func New(session *link.Session, params link.Parameters, notifier Notifier, logger *slog.Logger, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		session:  session,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		history:  NewHistory(opts.HistorySize),
		queue:    NewQueue(32, logger),
		activity: &activity{notifier: notifier, flash: ActivityFlash},
		params:   params,
		state:    StateDisconnected,
	}
}

// Connect opens the session with the current parameters
func (c *Controller) Connect() error {
	if c.session.IsConnected() {
		return nil
	}

	params := c.Parameters()
	device := params.Device()

	c.setState(StateConnecting)
	c.logger.Info("Opening serial port", "device", device, "params", params.String())
	c.console(LevelInfo, "Opening %s...", device)

	if err := c.session.Open(params); err != nil {
		c.setState(StateError)
		c.recordError(err)
		c.logger.Error("Connection failed", "device", device, "error", err)
		c.console(LevelError, "Connection to %s failed", device)
		c.notifier.Failure("Connection failed",
			fmt.Sprintf("Connection to port %s failed.\n\n%v", device, err))
		return err
	}
	c.session.AddListener(c)

	c.statsMu.Lock()
	c.stats.ConnectedAt = time.Now()
	c.statsMu.Unlock()

	c.setState(StateConnected)
	c.logger.Info("Serial port connected", "device", device, "session", c.session.ID())
	c.console(LevelInfo, "%s now connected", device)
	c.notifier.ConnectionChanged(true)
	return nil
}

// Disconnect closes the session
func (c *Controller) Disconnect() {
	device := c.Parameters().Device()
	if c.session.IsConnected() {
		device = c.session.Parameters().Device()
	}

	c.session.Close()
	c.session.RemoveListener(c)
	c.activity.stop()

	c.setState(StateDisconnected)
	c.logger.Info("Serial port disconnected", "device", device)
	c.console(LevelInfo, "%s is now disconnected", device)
	c.notifier.ConnectionChanged(false)
}

// Send writes msg followed by the configured line ending
func (c *Controller) Send(msg string) error {
	if !c.session.IsConnected() {
		return &link.ConnectionError{Op: "send", Device: c.Parameters().Device(), Msg: "client disconnected"}
	}

	device := c.session.Parameters().Device()
	c.logger.Info("Sending a message", "device", device, "message", msg)
	c.console(LevelSent, "Sending a message on %s", device)

	payload := msg + c.opts.LineEnding
	if err := c.session.Write(payload); err != nil {
		c.recordError(err)
		c.console(LevelError, "Failed to send on %s", device)
		return err
	}

	c.statsMu.Lock()
	c.stats.MessagesOut++
	c.stats.BytesOut += int64(len(payload))
	c.stats.LastActivity = time.Now()
	c.statsMu.Unlock()
	return nil
}

// SendBreak sends a break signal of the configured duration
func (c *Controller) SendBreak() error {
	ms := int(c.opts.BreakDuration / time.Millisecond)
	if err := c.session.SendBreak(ms); err != nil {
		c.recordError(err)
		return err
	}
	device := c.session.Parameters().Device()
	c.logger.Info("Break sent", "device", device, "duration_ms", ms)
	c.console(LevelSent, "BREAK sent on %s (%d ms)", device, ms)
	return nil
}

var statusTexts = map[serial.EventType]string{
	serial.BreakInterrupt:    "BREAK INTERRUPT received",
	serial.CarrierDetect:     "CARRIER DETECT received",
	serial.ClearToSend:       "CLEAR TO SEND received",
	serial.DataSetReady:      "DATA SET READY received",
	serial.FramingError:      "FRAMING ERROR received",
	serial.OverrunError:      "OVERRUN ERROR received",
	serial.OutputBufferEmpty: "OUTPUT BUFFER EMPTY received",
	serial.ParityError:       "PARITY ERROR received",
	serial.RingIndicator:     "RING INDICATOR received",
}

// OnNotify implements link.Listener
func (c *Controller) OnNotify(ev link.Event) {
	c.activity.pulse()

	if ev.Kind == serial.DataAvailable {
		c.statsMu.Lock()
		c.stats.MessagesIn++
		c.stats.BytesIn += int64(len(ev.Message))
		c.stats.LastActivity = ev.Time
		c.statsMu.Unlock()

		c.logger.Info("Message received", "device", ev.Parameters.Device(), "message", ev.Message)
		c.console(LevelReceived, "Message received : %s", ev.Message)
		return
	}

	text, ok := statusTexts[ev.Kind]
	if !ok {
		c.logger.Error("Receiving an unknown event type", "kind", int(ev.Kind))
		return
	}
	c.logger.Info(text, "device", ev.Parameters.Device(), "detail", ev.Message)
	c.console(LevelInfo, "%s", text)
}

// UpdateParameters validates every field of f and commits them together.
// On error the stored parameters are left untouched.
func (c *Controller) UpdateParameters(f Form) error {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()

	candidate := c.params
	err := errors.Join(
		candidate.SetDevice(f.Device),
		candidate.SetBaudRate(f.BaudRate),
		candidate.SetFlowControlIn(f.FlowControlIn),
		candidate.SetFlowControlOut(f.FlowControlOut),
		candidate.SetDataBits(f.DataBits),
		candidate.SetStopBits(f.StopBits),
		candidate.SetParity(f.Parity),
		candidate.SetRecvTimeout(f.RecvTimeoutMs),
	)
	if err != nil {
		return err
	}
	c.params = candidate
	c.logger.Debug("Parameters updated", "params", candidate.String())
	return nil
}

// SetParameters replaces the stored parameters. The open port keeps the
// parameters it was opened with.
func (c *Controller) SetParameters(p link.Parameters) {
	c.paramsMu.Lock()
	defer c.paramsMu.Unlock()
	c.params = p
}

// Parameters returns the stored parameters
func (c *Controller) Parameters() link.Parameters {
	c.paramsMu.RLock()
	defer c.paramsMu.RUnlock()
	return c.params
}

// RequestConnect runs Connect on the task queue
func (c *Controller) RequestConnect() {
	c.submit("connect", func() { c.Connect() })
}

// RequestDisconnect runs Disconnect on the task queue
func (c *Controller) RequestDisconnect() {
	c.submit("disconnect", c.Disconnect)
}

// RequestSend runs Send on the task queue and reports failures
func (c *Controller) RequestSend(msg string) {
	c.submit("send", func() {
		if err := c.Send(msg); err != nil {
			c.logger.Error("Send failed", "error", err)
			c.notifier.Failure("Send failed", err.Error())
		}
	})
}

// RequestBreak runs SendBreak on the task queue and reports failures
func (c *Controller) RequestBreak() {
	c.submit("break", func() {
		if err := c.SendBreak(); err != nil {
			c.logger.Error("Break failed", "error", err)
			c.notifier.Failure("Break failed", err.Error())
		}
	})
}

func (c *Controller) submit(name string, task func()) {
	if err := c.queue.Submit(task); err != nil {
		c.logger.Warn("Request dropped", "request", name, "error", err)
	}
}

// Close drains pending requests and disconnects
func (c *Controller) Close() {
	c.queue.Close()
	if c.session.IsConnected() {
		c.Disconnect()
	}
}

// IsConnected reports whether the session is open
func (c *Controller) IsConnected() bool {
	return c.session.IsConnected()
}

// State returns the current connection state
func (c *Controller) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Stats returns a copy of the current statistics
func (c *Controller) Stats() Stats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

// History returns the console history, oldest first
func (c *Controller) History() []Entry {
	return c.history.Entries()
}

// ClearHistory drops the console history
func (c *Controller) ClearHistory() {
	c.history.Clear()
}

func (c *Controller) setState(state State) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.state = state
}

func (c *Controller) recordError(err error) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.stats.Errors++
	c.stats.LastError = err.Error()
}

func (c *Controller) console(level EntryLevel, format string, args ...any) {
	e := Entry{
		Time:  time.Now(),
		Level: level,
		Text:  fmt.Sprintf(format, args...),
	}
	c.history.Add(e)
	c.notifier.Console(e)
}

package ui

import (
	"errors"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"seriallink/config"
	"seriallink/controller"
)

// MainUI represents the main user interface. It is the controller's
// notifier: every callback is marshalled onto the fyne thread.
type MainUI struct {
	window fyne.Window
	cfg    *config.Config
	logger *slog.Logger
	ctrl   *controller.Controller

	portConfig *PortConfigPanel
	console    *ConsoleView
	stats      *StatsTab
	ports      *PortsTab

	stateLED    *LED
	activityLED *LED
	status      *widget.Label
}

// NewMainUI creates a new main UI
func NewMainUI(window fyne.Window, cfg *config.Config, logger *slog.Logger) *MainUI {
	leds := loadLEDIcons(cfg.UI, logger)
	return &MainUI{
		window:      window,
		cfg:         cfg,
		logger:      logger,
		stateLED:    newLED(leds),
		activityLED: newLED(leds),
		status:      widget.NewLabel("Status: disconnected"),
	}
}

// Bind attaches the controller. It must be called before Build.
func (m *MainUI) Bind(ctrl *controller.Controller) {
	m.ctrl = ctrl
	m.portConfig = NewPortConfigPanel(m.window, ctrl)
	m.console = NewConsoleView(ctrl, m.cfg.UI.MaxConsoleLines)
	m.stats = NewStatsTab(ctrl)
	m.ports = NewPortsTab(m.portConfig)
}

// Build constructs the UI layout
func (m *MainUI) Build() *fyne.Container {
	terminal := container.NewBorder(
		container.NewVBox(
			m.portConfig.Build(),
			m.buildStatusRow(),
			widget.NewSeparator(),
		),
		nil,
		nil,
		nil,
		m.console.Build(),
	)

	// Create tab container
	tabs := container.NewAppTabs(
		container.NewTabItem("Terminal", terminal),
		container.NewTabItem("Statistics", m.stats.Build()),
		container.NewTabItem("Ports", m.ports.Build()),
	)

	return container.NewBorder(
		nil,
		m.buildFooter(),
		nil,
		nil,
		tabs,
	)
}

// buildStatusRow holds the open and close buttons with both indicators
func (m *MainUI) buildStatusRow() *fyne.Container {
	openBtn := widget.NewButton("Open Port", func() {
		if err := m.portConfig.Commit(); err != nil {
			dialog.ShowError(err, m.window)
			return
		}
		m.ctrl.RequestConnect()
	})
	openBtn.Importance = widget.HighImportance

	closeBtn := widget.NewButton("Close Port", func() {
		m.ctrl.RequestDisconnect()
	})

	return container.NewHBox(
		openBtn,
		closeBtn,
		widget.NewLabel("State :"),
		m.stateLED.Build(),
		widget.NewLabel("Activity :"),
		m.activityLED.Build(),
	)
}

// buildFooter creates the footer section
func (m *MainUI) buildFooter() *fyne.Container {
	return container.NewVBox(
		widget.NewSeparator(),
		m.status,
	)
}

// ApplyConfig takes link parameters from a reloaded configuration. An open
// port keeps running with the parameters it was opened with.
func (m *MainUI) ApplyConfig(cfg *config.Config) {
	params, err := cfg.Link.Parameters()
	if err != nil {
		m.logger.Warn("Ignoring reloaded link parameters", "error", err)
		return
	}
	m.ctrl.SetParameters(params)
	fyne.Do(func() {
		m.portConfig.SetParameters(params)
		m.status.SetText("Status: configuration reloaded, applied on next open")
	})
}

// Close stops background refreshes
func (m *MainUI) Close() {
	m.stats.Stop()
}

func (m *MainUI) Console(e controller.Entry) {
	fyne.Do(func() {
		m.console.Append(e)
	})
}

func (m *MainUI) ConnectionChanged(connected bool) {
	fyne.Do(func() {
		if connected {
			m.stateLED.SetState(ledGreen)
			m.status.SetText("Status: connected to " + m.ctrl.Parameters().String())
		} else {
			m.stateLED.SetState(ledRed)
			m.status.SetText("Status: disconnected")
		}
	})
}

func (m *MainUI) SetActivity(on bool) {
	fyne.Do(func() {
		if on {
			m.activityLED.SetState(ledGreen)
		} else {
			m.activityLED.SetState(ledGray)
		}
	})
}

func (m *MainUI) Failure(title, detail string) {
	fyne.Do(func() {
		m.status.SetText("Status: " + title)
		dialog.ShowError(errors.New(detail), m.window)
	})
}

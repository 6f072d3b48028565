package ui

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"seriallink/controller"
)

// StatsTab shows the controller state and traffic counters
type StatsTab struct {
	ctrl            *controller.Controller
	refreshInterval time.Duration

	stateLabel     *widget.Label
	paramsLabel    *widget.Label
	uptimeLabel    *widget.Label
	table          *widget.Table
	lastErrorLabel *widget.Label
	stats          controller.Stats

	stopOnce    sync.Once
	stopRefresh chan struct{}
}

// NewStatsTab creates a new statistics tab
func NewStatsTab(ctrl *controller.Controller) *StatsTab {
	return &StatsTab{
		ctrl:            ctrl,
		refreshInterval: time.Second,
		stopRefresh:     make(chan struct{}),
	}
}

// Build constructs the statistics UI
func (s *StatsTab) Build() fyne.CanvasObject {
	// Status section
	s.stateLabel = widget.NewLabel("State: -")
	s.paramsLabel = widget.NewLabel("Parameters: -")
	s.uptimeLabel = widget.NewLabel("Connected for: -")
	s.lastErrorLabel = widget.NewLabel("")
	s.lastErrorLabel.Wrapping = fyne.TextWrapWord

	statusCard := widget.NewCard("Link Status", "", container.NewVBox(
		s.stateLabel,
		s.paramsLabel,
		s.uptimeLabel,
	))

	s.table = widget.NewTable(
		func() (int, int) {
			return 3, 3 // header row + in/out
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, cell fyne.CanvasObject) {
			label := cell.(*widget.Label)
			label.SetText(trafficCell(s.stats, id.Row, id.Col))
			label.TextStyle = fyne.TextStyle{Bold: id.Row == 0 || id.Col == 0}
		},
	)
	s.table.SetColumnWidth(0, 100)
	s.table.SetColumnWidth(1, 100)
	s.table.SetColumnWidth(2, 100)

	trafficCard := widget.NewCard("Traffic", "", container.NewGridWrap(fyne.NewSize(320, 120), s.table))
	errorCard := widget.NewCard("Errors", "", s.lastErrorLabel)

	refreshBtn := widget.NewButton("Refresh Now", s.refresh)

	// Start auto-refresh
	go s.startAutoRefresh()

	return container.NewVBox(statusCard, trafficCard, errorCard, refreshBtn)
}

// Stop ends the auto-refresh loop
func (s *StatsTab) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopRefresh)
	})
}

func (s *StatsTab) refresh() {
	s.stats = s.ctrl.Stats()
	s.stateLabel.SetText(fmt.Sprintf("State: %s", s.ctrl.State()))
	s.paramsLabel.SetText(fmt.Sprintf("Parameters: %s", s.ctrl.Parameters()))

	if s.ctrl.IsConnected() && !s.stats.ConnectedAt.IsZero() {
		s.uptimeLabel.SetText("Connected for: " + formatUptime(time.Since(s.stats.ConnectedAt)))
	} else {
		s.uptimeLabel.SetText("Connected for: -")
	}

	if s.stats.Errors > 0 {
		s.lastErrorLabel.SetText(fmt.Sprintf("%d errors, last: %s", s.stats.Errors, s.stats.LastError))
	} else {
		s.lastErrorLabel.SetText("No errors")
	}
	s.table.Refresh()
}

// startAutoRefresh starts the automatic refresh loop
func (s *StatsTab) startAutoRefresh() {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	// Initial fetch
	fyne.Do(s.refresh)

	for {
		select {
		case <-ticker.C:
			fyne.Do(s.refresh)
		case <-s.stopRefresh:
			return
		}
	}
}

func trafficCell(stats controller.Stats, row, col int) string {
	switch {
	case row == 0:
		return []string{"", "Messages", "Bytes"}[col]
	case col == 0:
		return []string{"", "Received", "Sent"}[row]
	case row == 1 && col == 1:
		return fmt.Sprint(stats.MessagesIn)
	case row == 1 && col == 2:
		return fmt.Sprint(stats.BytesIn)
	case row == 2 && col == 1:
		return fmt.Sprint(stats.MessagesOut)
	default:
		return fmt.Sprint(stats.BytesOut)
	}
}

// formatUptime formats a duration into a readable string
func formatUptime(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, secs)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, secs)
	}
	return fmt.Sprintf("%ds", secs)
}

package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"seriallink/serial"
)

// PortsTab lists the serial ports found on the system
type PortsTab struct {
	portConfig *PortConfigPanel

	ports      []serial.PortInfo
	list       *widget.List
	outputText *widget.Entry
}

// NewPortsTab creates a new ports tab. Selecting a port fills the port
// name of portConfig.
func NewPortsTab(portConfig *PortConfigPanel) *PortsTab {
	return &PortsTab{portConfig: portConfig}
}

// Build constructs the ports UI
func (p *PortsTab) Build() fyne.CanvasObject {
	p.list = widget.NewList(
		func() int {
			return len(p.ports)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < len(p.ports) {
				obj.(*widget.Label).SetText(p.ports[id].String())
			}
		},
	)
	p.list.OnSelected = func(id widget.ListItemID) {
		if id < len(p.ports) {
			p.portConfig.SetDevice(p.ports[id].Name)
		}
	}

	scanBtn := widget.NewButton("Scan Ports", p.scan)
	scanBtn.Importance = widget.HighImportance

	// UART details
	p.outputText = widget.NewMultiLineEntry()
	p.outputText.SetPlaceHolder("On-board UART details will appear here...")
	p.outputText.Wrapping = fyne.TextWrapWord

	outputCard := widget.NewCard("On-board UARTs", "", container.NewScroll(p.outputText))

	p.scan()

	return container.NewBorder(
		container.NewVBox(
			widget.NewLabel("Select a port to use it on the Terminal tab"),
			scanBtn,
			widget.NewSeparator(),
		),
		nil,
		nil,
		nil,
		container.NewVSplit(p.list, outputCard),
	)
}

// scan refreshes the port list and the UART details
func (p *PortsTab) scan() {
	ports, err := serial.DetailedPorts()
	if err != nil {
		p.outputText.SetText(fmt.Sprintf("Error: %v\n", err))
		return
	}
	p.ports = ports
	p.list.UnselectAll()
	p.list.Refresh()

	uarts, err := serial.SystemPorts()
	if err != nil {
		p.outputText.SetText(fmt.Sprintf("UART details unavailable: %v\n", err))
		return
	}
	var sb strings.Builder
	for _, u := range uarts {
		sb.WriteString(u.String())
		sb.WriteString("\n")
	}
	if sb.Len() == 0 {
		sb.WriteString("No on-board UARTs detected\n")
	}
	p.outputText.SetText(sb.String())
}

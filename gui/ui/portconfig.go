package ui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"seriallink/controller"
	"seriallink/link"
	"seriallink/serial"
)

// PortConfigPanel edits the serial parameters held by the controller
type PortConfigPanel struct {
	window fyne.Window
	ctrl   *controller.Controller

	deviceEntry    *widget.SelectEntry
	baudEntry      *widget.SelectEntry
	flowInSelect   *widget.Select
	flowOutSelect  *widget.Select
	dataBitsSelect *widget.Select
	stopBitsSelect *widget.Select
	paritySelect   *widget.Select
	timeoutEntry   *widget.Entry
}

// NewPortConfigPanel creates the panel filled with the controller's parameters
func NewPortConfigPanel(window fyne.Window, ctrl *controller.Controller) *PortConfigPanel {
	baudRates := make([]string, 0, len(link.StandardBaudRates))
	for _, rate := range link.StandardBaudRates {
		baudRates = append(baudRates, strconv.Itoa(rate))
	}

	p := &PortConfigPanel{
		window:         window,
		ctrl:           ctrl,
		deviceEntry:    widget.NewSelectEntry(nil),
		baudEntry:      widget.NewSelectEntry(baudRates),
		flowInSelect:   widget.NewSelect(link.FlowControlNames("in"), nil),
		flowOutSelect:  widget.NewSelect(link.FlowControlNames("out"), nil),
		dataBitsSelect: widget.NewSelect([]string{"5", "6", "7", "8"}, nil),
		stopBitsSelect: widget.NewSelect(link.StopBitsNames(), nil),
		paritySelect:   widget.NewSelect(link.ParityNames(), nil),
		timeoutEntry:   widget.NewEntry(),
	}
	p.timeoutEntry.Validator = func(s string) error {
		if n, err := strconv.Atoi(s); err != nil || n <= 0 {
			return fmt.Errorf("must be a positive number of milliseconds")
		}
		return nil
	}
	p.refreshDevices()
	p.SetParameters(ctrl.Parameters())
	return p
}

// Build constructs the port configuration UI
func (p *PortConfigPanel) Build() fyne.CanvasObject {
	refreshBtn := widget.NewButton("Rescan", func() {
		p.refreshDevices()
	})

	left := widget.NewForm(
		widget.NewFormItem("Port Name", container.NewBorder(nil, nil, nil, refreshBtn, p.deviceEntry)),
		widget.NewFormItem("Flow Control In", p.flowInSelect),
		widget.NewFormItem("Data Bits", p.dataBitsSelect),
		widget.NewFormItem("Parity", p.paritySelect),
	)
	right := widget.NewForm(
		widget.NewFormItem("Baud Rate", p.baudEntry),
		widget.NewFormItem("Flow Control Out", p.flowOutSelect),
		widget.NewFormItem("Stop Bits", p.stopBitsSelect),
		widget.NewFormItem("Receive Timeout (ms)", p.timeoutEntry),
	)

	return container.NewGridWithColumns(2, left, right)
}

// SetParameters shows p in the form
func (p *PortConfigPanel) SetParameters(params link.Parameters) {
	f := controller.FormFromParameters(params)
	p.deviceEntry.SetText(f.Device)
	p.baudEntry.SetText(strconv.Itoa(f.BaudRate))
	p.flowInSelect.SetSelected(f.FlowControlIn)
	p.flowOutSelect.SetSelected(f.FlowControlOut)
	p.dataBitsSelect.SetSelected(strconv.Itoa(f.DataBits))
	p.stopBitsSelect.SetSelected(f.StopBits)
	p.paritySelect.SetSelected(f.Parity)
	p.timeoutEntry.SetText(strconv.Itoa(f.RecvTimeoutMs))
}

// SetDevice puts name in the port name field
func (p *PortConfigPanel) SetDevice(name string) {
	p.deviceEntry.SetText(name)
}

// Form reads the widgets into a controller form
func (p *PortConfigPanel) Form() (controller.Form, error) {
	baud, err := strconv.Atoi(strings.TrimSpace(p.baudEntry.Text))
	if err != nil {
		return controller.Form{}, fmt.Errorf("invalid baud rate: %q", p.baudEntry.Text)
	}
	timeout, err := strconv.Atoi(strings.TrimSpace(p.timeoutEntry.Text))
	if err != nil {
		return controller.Form{}, fmt.Errorf("invalid receive timeout: %q", p.timeoutEntry.Text)
	}
	dataBits, _ := strconv.Atoi(p.dataBitsSelect.Selected)

	return controller.Form{
		Device:         p.deviceEntry.Text,
		BaudRate:       baud,
		FlowControlIn:  p.flowInSelect.Selected,
		FlowControlOut: p.flowOutSelect.Selected,
		DataBits:       dataBits,
		StopBits:       p.stopBitsSelect.Selected,
		Parity:         p.paritySelect.Selected,
		RecvTimeoutMs:  timeout,
	}, nil
}

// Commit validates the form and stores it in the controller
func (p *PortConfigPanel) Commit() error {
	form, err := p.Form()
	if err != nil {
		return err
	}
	return p.ctrl.UpdateParameters(form)
}

func (p *PortConfigPanel) refreshDevices() {
	ports, err := serial.ListPorts()
	if err != nil {
		dialog.ShowError(err, p.window)
		return
	}
	p.deviceEntry.SetOptions(ports)
}

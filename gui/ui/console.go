package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"seriallink/controller"
)

// ConsoleView shows console entries and the send controls
type ConsoleView struct {
	ctrl     *controller.Controller
	maxLines int
	entries  []controller.Entry

	list      *widget.List
	sendEntry *widget.Entry
}

// NewConsoleView creates a console keeping at most maxLines entries
func NewConsoleView(ctrl *controller.Controller, maxLines int) *ConsoleView {
	if maxLines <= 0 {
		maxLines = controller.DefaultHistorySize
	}
	return &ConsoleView{
		ctrl:     ctrl,
		maxLines: maxLines,
	}
}

// Build constructs the console UI
func (c *ConsoleView) Build() fyne.CanvasObject {
	c.list = widget.NewList(
		func() int {
			return len(c.entries)
		},
		func() fyne.CanvasObject {
			stamp := widget.NewLabelWithStyle("00:00:00", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
			return container.NewBorder(nil, nil, stamp, nil, widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(c.entries) {
				return
			}
			e := c.entries[id]
			row := obj.(*fyne.Container)
			text := row.Objects[0].(*widget.Label)
			stamp := row.Objects[1].(*widget.Label)

			stamp.SetText(e.Stamp())
			text.Importance = importance(e.Level)
			text.SetText(e.Text)
		},
	)

	c.sendEntry = widget.NewEntry()
	c.sendEntry.SetPlaceHolder("Message to send...")
	c.sendEntry.OnSubmitted = func(string) { c.send() }

	sendBtn := widget.NewButton("Send", c.send)
	breakBtn := widget.NewButton("Break", func() {
		c.ctrl.RequestBreak()
	})
	clearBtn := widget.NewButton("Clear", c.clear)

	return container.NewBorder(
		nil,
		container.NewBorder(nil, nil, nil, container.NewHBox(sendBtn, breakBtn, clearBtn), c.sendEntry),
		nil,
		nil,
		c.list,
	)
}

func (c *ConsoleView) clear() {
	c.ctrl.ClearHistory()
	c.entries = nil
	if c.list != nil {
		c.list.Refresh()
	}
}

// Append adds e at the bottom of the console. It must run on the fyne thread.
func (c *ConsoleView) Append(e controller.Entry) {
	c.entries = append(c.entries, e)
	if over := len(c.entries) - c.maxLines; over > 0 {
		c.entries = c.entries[over:]
	}
	if c.list != nil {
		c.list.Refresh()
		c.list.ScrollToBottom()
	}
}

func (c *ConsoleView) send() {
	msg := c.sendEntry.Text
	if msg == "" {
		return
	}
	c.ctrl.RequestSend(msg)
	c.sendEntry.SetText("")
}

func importance(level controller.EntryLevel) widget.Importance {
	switch level {
	case controller.LevelError:
		return widget.DangerImportance
	case controller.LevelReceived, controller.LevelSent:
		return widget.SuccessImportance
	default:
		return widget.HighImportance
	}
}

package ui

import (
	"image/color"
	"log/slog"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"seriallink/config"
)

type ledState int

const (
	ledGray ledState = iota
	ledRed
	ledGreen
)

var ledColors = map[ledState]color.Color{
	ledGray:  color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
	ledRed:   color.NRGBA{R: 0xd3, G: 0x2f, B: 0x2f, A: 0xff},
	ledGreen: color.NRGBA{R: 0x38, G: 0x8e, B: 0x3c, A: 0xff},
}

var ledSize = fyne.NewSize(16, 16)

// loadLEDIcons reads the configured LED images. States without a readable
// image are drawn as plain colored dots.
func loadLEDIcons(cfg config.UIConfig, logger *slog.Logger) map[ledState]fyne.Resource {
	icons := make(map[ledState]fyne.Resource)
	paths := map[ledState]string{
		ledGray:  cfg.GrayLedIcon,
		ledRed:   cfg.RedLedIcon,
		ledGreen: cfg.GreenLedIcon,
	}
	for state, path := range paths {
		if path == "" {
			continue
		}
		res, err := fyne.LoadResourceFromPath(path)
		if err != nil {
			logger.Warn("Failed to load LED icon", "path", path, "error", err)
			continue
		}
		icons[state] = res
	}
	return icons
}

// LED is a small state indicator
type LED struct {
	icons  map[ledState]fyne.Resource
	image  *canvas.Image
	circle *canvas.Circle
}

func newLED(icons map[ledState]fyne.Resource) *LED {
	l := &LED{
		icons:  icons,
		image:  canvas.NewImageFromResource(nil),
		circle: canvas.NewCircle(ledColors[ledGray]),
	}
	l.image.FillMode = canvas.ImageFillContain
	l.image.SetMinSize(ledSize)
	l.SetState(ledGray)
	return l
}

// Build returns the indicator widget
func (l *LED) Build() fyne.CanvasObject {
	return container.NewGridWrap(ledSize, container.NewStack(l.circle, l.image))
}

// SetState switches the indicator color
func (l *LED) SetState(state ledState) {
	if res, ok := l.icons[state]; ok {
		l.image.Resource = res
		l.image.Show()
		l.circle.Hide()
		l.image.Refresh()
		return
	}
	l.image.Hide()
	l.circle.FillColor = ledColors[state]
	l.circle.Show()
	l.circle.Refresh()
}

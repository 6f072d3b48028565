package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"seriallink/config"
	"seriallink/controller"
	"seriallink/gui/ui"
	"seriallink/link"
	"seriallink/serial"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (.json, .yaml or .toml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}
	params, err := cfg.Link.Parameters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout, *debug)

	// Create the app
	myApp := app.New()
	myWindow := myApp.NewWindow(cfg.UI.Title)
	myWindow.Resize(fyne.NewSize(float32(cfg.UI.WindowWidth), float32(cfg.UI.WindowHeight)))

	// Create the main UI
	mainUI := ui.NewMainUI(myWindow, cfg, logger)

	session := link.NewSession(cfg.App.Name, serial.NewOpener(logger), logger)
	session.SetStatusEvents(cfg.Link.StatusEvents)
	ctrl := controller.New(session, params, mainUI, logger, controller.Options{
		LineEnding:    cfg.Link.LineEndingBytes(),
		BreakDuration: cfg.Link.GetBreakDuration(),
		HistorySize:   cfg.UI.MaxConsoleLines,
	})
	mainUI.Bind(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, logger, mainUI.ApplyConfig); err != nil {
				logger.Warn("Configuration watch stopped", "error", err)
			}
		}()
	}

	myWindow.SetOnClosed(func() {
		cancel()
		mainUI.Close()
		ctrl.Close()
	})

	// Set up the window content
	myWindow.SetContent(mainUI.Build())
	myWindow.ShowAndRun()
}

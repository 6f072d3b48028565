package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"seriallink/config"
	"seriallink/controller"
	"seriallink/link"
	"seriallink/serial"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (.json, .yaml or .toml)")
	validate := flag.Bool("validate", false, "Validate configuration and exit")
	listPorts := flag.Bool("list-ports", false, "List available serial ports and exit")
	device := flag.String("device", "", "Serial device, overrides link.device")
	baud := flag.Int("baud", 0, "Baud rate, overrides link.baud_rate")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Display version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "SerialLink - RS-232 serial terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s -device /dev/ttyUSB0 -baud 115200\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -config seriallink.yaml -validate\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list-ports\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nConsole commands: %s\n", commandList)
	}

	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("SerialLink version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Handle list-ports flag
	if *listPorts {
		printPorts()
		os.Exit(0)
	}

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
	if *device != "" {
		cfg.Link.Device = *device
	}
	if *baud != 0 {
		cfg.Link.BaudRate = *baud
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}
	params, err := cfg.Link.Parameters()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed:\n  %v\n", err)
		os.Exit(1)
	}

	// Handle validate flag
	if *validate {
		fmt.Println("Configuration is valid")
		fmt.Printf("  Instance: %s\n", cfg.App.InstanceID)
		fmt.Printf("  Link: %s\n", params)
		fmt.Printf("  Receive timeout: %d ms, break: %d ms, line ending: %s\n",
			params.RecvTimeoutMs(), cfg.Link.BreakDurationMs, cfg.Link.LineEnding)
		os.Exit(0)
	}

	// Setup logging
	logger := setupLogging(cfg, *debug)
	slog.SetDefault(logger)

	logger.Info("SerialLink starting",
		"version", version,
		"instance", cfg.App.InstanceID,
		"params", params.String(),
	)

	// Create context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := link.NewSession(cfg.App.Name, serial.NewOpener(logger), logger)
	session.SetStatusEvents(cfg.Link.StatusEvents)

	ctrl := controller.New(session, params, controller.NewLogNotifier(os.Stdout), logger, controller.Options{
		LineEnding:    cfg.Link.LineEndingBytes(),
		BreakDuration: cfg.Link.GetBreakDuration(),
		HistorySize:   cfg.UI.MaxConsoleLines,
	})
	defer ctrl.Close()

	// A failed first connection is reported on the console; /connect retries
	ctrl.Connect()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runConsole(gctx, ctrl, os.Stdin, os.Stdout)
	})
	if *configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, *configPath, logger, func(c *config.Config) {
				p, err := c.Link.Parameters()
				if err != nil {
					logger.Warn("Ignoring reloaded link parameters", "error", err)
					return
				}
				ctrl.SetParameters(p)
				logger.Info("Link parameters updated, applied on next connect", "params", p.String())
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errQuit) {
		logger.Error("SerialLink stopped with error", "error", err)
	}

	stats := ctrl.Stats()
	logger.Info("SerialLink stopped",
		"messages_in", stats.MessagesIn,
		"messages_out", stats.MessagesOut,
		"errors", stats.Errors,
	)
}

func printPorts() {
	ports, err := serial.DetailedPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing ports: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Available serial ports:")
	if len(ports) == 0 {
		fmt.Println("  (none found)")
	} else {
		for _, port := range ports {
			fmt.Printf("  %s\n", port)
		}
	}

	uarts, err := serial.SystemPorts()
	if err != nil || len(uarts) == 0 {
		return
	}
	fmt.Println("On-board UARTs:")
	for _, u := range uarts {
		fmt.Printf("  %s\n", u)
	}
}

// setupLogging keeps stdout for the console and sends text logs to stderr
func setupLogging(cfg *config.Config, debug bool) *slog.Logger {
	return cfg.Logging.NewLogger(os.Stderr, debug)
}

package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"seriallink/link"
)

// ValidationError contains details about configuration validation failures
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Validate checks the configuration for errors
func Validate(cfg *Config) error {
	var errors ValidationErrors

	errors = append(errors, validateLink(cfg.Link)...)

	// Validate logging
	if !slices.Contains(logLevels, strings.ToLower(cfg.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level: %s", cfg.Logging.Level),
		})
	}
	if cfg.Logging.BasePath != "" {
		if info, err := os.Stat(cfg.Logging.BasePath); err != nil || !info.IsDir() {
			errors = append(errors, ValidationError{
				Field:   "logging.base_path",
				Message: fmt.Sprintf("directory does not exist: %s", cfg.Logging.BasePath),
			})
		}
	}

	// Validate UI
	if cfg.UI.MaxConsoleLines < 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.max_console_lines",
			Message: "must not be negative",
		})
	}
	if cfg.UI.WindowWidth < 0 || cfg.UI.WindowHeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "ui.window",
			Message: "window size must not be negative",
		})
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validateLink(l LinkConfig) ValidationErrors {
	var errors ValidationErrors
	p := link.DefaultParameters()

	check := func(field string, err error) {
		if err != nil {
			errors = append(errors, ValidationError{Field: "link." + field, Message: err.Error()})
		}
	}

	// Unusual baud rates are accepted as long as they are positive
	check("device", p.SetDevice(l.Device))
	check("baud_rate", p.SetBaudRate(l.BaudRate))
	check("data_bits", p.SetDataBits(l.DataBits))
	check("stop_bits", p.SetStopBits(string(l.StopBits)))
	check("parity", p.SetParity(l.Parity))
	check("flow_control_in", p.SetFlowControlIn(l.FlowControlIn))
	check("flow_control_out", p.SetFlowControlOut(l.FlowControlOut))
	check("recv_timeout_ms", p.SetRecvTimeout(l.RecvTimeoutMs))

	if l.BreakDurationMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "link.break_duration_ms",
			Message: "must not be negative",
		})
	}

	if _, ok := lineEndings[strings.ToLower(l.LineEnding)]; !ok {
		errors = append(errors, ValidationError{
			Field:   "link.line_ending",
			Message: fmt.Sprintf("invalid line ending: %s (must be none, cr, lf or crlf)", l.LineEnding),
		})
	}

	return errors
}

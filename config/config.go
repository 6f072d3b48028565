package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"seriallink/link"
)

// Config is the root configuration structure
type Config struct {
	App     AppConfig     `json:"app" yaml:"app" toml:"app"`
	Link    LinkConfig    `json:"link" yaml:"link" toml:"link"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging"`
	UI      UIConfig      `json:"ui" yaml:"ui" toml:"ui"`
}

// AppConfig contains application metadata
type AppConfig struct {
	Name       string `json:"name" yaml:"name" toml:"name"`
	InstanceID string `json:"instance_id" yaml:"instance_id" toml:"instance_id"`
}

// LinkConfig defines the serial line and how messages are sent on it
type LinkConfig struct {
	Device          string   `json:"device" yaml:"device" toml:"device"`
	BaudRate        int      `json:"baud_rate" yaml:"baud_rate" toml:"baud_rate"`
	DataBits        int      `json:"data_bits" yaml:"data_bits" toml:"data_bits"`
	StopBits        StopBits `json:"stop_bits" yaml:"stop_bits" toml:"stop_bits"`
	Parity          string   `json:"parity" yaml:"parity" toml:"parity"`
	FlowControlIn   string   `json:"flow_control_in" yaml:"flow_control_in" toml:"flow_control_in"`
	FlowControlOut  string   `json:"flow_control_out" yaml:"flow_control_out" toml:"flow_control_out"`
	RecvTimeoutMs   int      `json:"recv_timeout_ms" yaml:"recv_timeout_ms" toml:"recv_timeout_ms"`
	BreakDurationMs int      `json:"break_duration_ms" yaml:"break_duration_ms" toml:"break_duration_ms"`
	LineEnding      string   `json:"line_ending" yaml:"line_ending" toml:"line_ending"`
	StatusEvents    bool     `json:"status_events,omitempty" yaml:"status_events,omitempty" toml:"status_events,omitempty"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level"`
	BasePath   string `json:"base_path" yaml:"base_path" toml:"base_path"`
	Filename   string `json:"filename" yaml:"filename" toml:"filename"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress" toml:"compress"`
}

// UIConfig defines the desktop window
type UIConfig struct {
	Title           string `json:"title" yaml:"title" toml:"title"`
	GrayLedIcon     string `json:"gray_led_icon,omitempty" yaml:"gray_led_icon,omitempty" toml:"gray_led_icon,omitempty"`
	RedLedIcon      string `json:"red_led_icon,omitempty" yaml:"red_led_icon,omitempty" toml:"red_led_icon,omitempty"`
	GreenLedIcon    string `json:"green_led_icon,omitempty" yaml:"green_led_icon,omitempty" toml:"green_led_icon,omitempty"`
	MaxConsoleLines int    `json:"max_console_lines" yaml:"max_console_lines" toml:"max_console_lines"`
	WindowWidth     int    `json:"window_width" yaml:"window_width" toml:"window_width"`
	WindowHeight    int    `json:"window_height" yaml:"window_height" toml:"window_height"`
}

// StopBits holds a stop bit count written either as a number (1, 1.5, 2)
// or as a string ("1.5", "1_5").
type StopBits string

func (s *StopBits) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return s.set(v)
}

func (s *StopBits) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("stop_bits: expected a scalar, got %q", node.Tag)
	}
	*s = StopBits(node.Value)
	return nil
}

func (s *StopBits) UnmarshalTOML(v any) error {
	return s.set(v)
}

func (s *StopBits) set(v any) error {
	switch x := v.(type) {
	case string:
		*s = StopBits(x)
	case json.Number:
		*s = StopBits(x.String())
	case int64:
		*s = StopBits(strconv.FormatInt(x, 10))
	case float64:
		*s = StopBits(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		return fmt.Errorf("stop_bits: unsupported value %v", v)
	}
	return nil
}

// Line ending names accepted in link.line_ending
var lineEndings = map[string]string{
	"none": "",
	"cr":   "\r",
	"lf":   "\n",
	"crlf": "\r\n",
}

// Load reads and parses a configuration file. The format is chosen by
// extension: .json, .yaml/.yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults sets default values for unspecified fields
func (c *Config) applyDefaults() {
	// App defaults
	if c.App.Name == "" {
		c.App.Name = "SerialLink"
	}
	if c.App.InstanceID == "" {
		hostname, _ := os.Hostname()
		c.App.InstanceID = hostname
	}

	// Link defaults
	if c.Link.Device == "" {
		c.Link.Device = link.DefaultDevice
	}
	if c.Link.BaudRate == 0 {
		c.Link.BaudRate = link.DefaultBaudRate
	}
	if c.Link.DataBits == 0 {
		c.Link.DataBits = link.DefaultDataBits
	}
	if c.Link.StopBits == "" {
		c.Link.StopBits = "1"
	}
	if c.Link.Parity == "" {
		c.Link.Parity = "none"
	}
	if c.Link.FlowControlIn == "" {
		c.Link.FlowControlIn = "none"
	}
	if c.Link.FlowControlOut == "" {
		c.Link.FlowControlOut = "none"
	}
	if c.Link.RecvTimeoutMs == 0 {
		c.Link.RecvTimeoutMs = link.DefaultRecvTimeoutMs
	}
	if c.Link.BreakDurationMs == 0 {
		c.Link.BreakDurationMs = 250
	}
	if c.Link.LineEnding == "" {
		c.Link.LineEnding = "none"
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Filename == "" {
		c.Logging.Filename = "seriallink.log"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}

	// UI defaults
	if c.UI.Title == "" {
		c.UI.Title = "Serial Link"
	}
	if c.UI.MaxConsoleLines == 0 {
		c.UI.MaxConsoleLines = 1000
	}
	if c.UI.WindowWidth == 0 {
		c.UI.WindowWidth = 720
	}
	if c.UI.WindowHeight == 0 {
		c.UI.WindowHeight = 560
	}
}

// Parameters builds the link parameters described by the configuration
func (c *LinkConfig) Parameters() (link.Parameters, error) {
	p := link.DefaultParameters()
	err := errors.Join(
		p.SetDevice(c.Device),
		p.SetBaudRate(c.BaudRate),
		p.SetDataBits(c.DataBits),
		p.SetStopBits(string(c.StopBits)),
		p.SetParity(c.Parity),
		p.SetFlowControlIn(c.FlowControlIn),
		p.SetFlowControlOut(c.FlowControlOut),
		p.SetRecvTimeout(c.RecvTimeoutMs),
	)
	if err != nil {
		return link.Parameters{}, err
	}
	return p, nil
}

// LineEndingBytes returns the terminator appended to sent messages
func (c *LinkConfig) LineEndingBytes() string {
	return lineEndings[strings.ToLower(c.LineEnding)]
}

// GetBreakDuration returns the break duration as a duration
func (c *LinkConfig) GetBreakDuration() time.Duration {
	return time.Duration(c.BreakDurationMs) * time.Millisecond
}

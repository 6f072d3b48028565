package config

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriallink/serial"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "seriallink.json",
			content: `{
  "link": {
    "device": "/dev/ttyS1",
    "baud_rate": 19200,
    "data_bits": 7,
    "stop_bits": 1.5,
    "parity": "even",
    "flow_control_in": "rtscts_in",
    "line_ending": "crlf"
  }
}`,
		},
		{
			name: "yaml",
			file: "seriallink.yaml",
			content: `link:
  device: /dev/ttyS1
  baud_rate: 19200
  data_bits: 7
  stop_bits: 1.5
  parity: even
  flow_control_in: rtscts_in
  line_ending: crlf
`,
		},
		{
			name: "toml",
			file: "seriallink.toml",
			content: `[link]
device = "/dev/ttyS1"
baud_rate = 19200
data_bits = 7
stop_bits = 1.5
parity = "even"
flow_control_in = "rtscts_in"
line_ending = "crlf"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.NoError(t, Validate(cfg))

			assert.Equal(t, "/dev/ttyS1", cfg.Link.Device)
			assert.Equal(t, StopBits("1.5"), cfg.Link.StopBits)
			assert.Equal(t, "\r\n", cfg.Link.LineEndingBytes())

			p, err := cfg.Link.Parameters()
			require.NoError(t, err)
			assert.Equal(t, 19200, p.BaudRate())
			assert.Equal(t, 7, p.DataBits())
			assert.Equal(t, serial.StopBits1Half, p.StopBits())
			assert.Equal(t, serial.ParityEven, p.Parity())
			assert.Equal(t, serial.FlowRTSCTSIn, p.FlowControl())
			assert.Equal(t, 200, p.RecvTimeoutMs())
		})
	}
}

func TestLoadIntegerStopBits(t *testing.T) {
	cfg, err := Load(writeFile(t, "c.json", `{"link": {"stop_bits": 2}}`))
	require.NoError(t, err)
	assert.Equal(t, StopBits("2"), cfg.Link.StopBits)

	cfg, err = Load(writeFile(t, "c.toml", "[link]\nstop_bits = 2\n"))
	require.NoError(t, err)
	assert.Equal(t, StopBits("2"), cfg.Link.StopBits)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "c.ini", "device=/dev/ttyS0"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(writeFile(t, "c.json", "{not json"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "SerialLink", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "Serial Link", cfg.UI.Title)
	assert.Equal(t, 250*time.Millisecond, cfg.Link.GetBreakDuration())
	assert.Equal(t, "", cfg.Link.LineEndingBytes())

	p, err := cfg.Link.Parameters()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0 9600 8N1", p.String())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad data bits", func(c *Config) { c.Link.DataBits = 9 }, "link.data_bits"},
		{"bad stop bits", func(c *Config) { c.Link.StopBits = "3" }, "link.stop_bits"},
		{"bad parity", func(c *Config) { c.Link.Parity = "sometimes" }, "link.parity"},
		{"wrong flow direction", func(c *Config) { c.Link.FlowControlIn = "XONXOFF_OUT" }, "link.flow_control_in"},
		{"bad flow out", func(c *Config) { c.Link.FlowControlOut = "hardware" }, "link.flow_control_out"},
		{"negative baud", func(c *Config) { c.Link.BaudRate = -1 }, "link.baud_rate"},
		{"negative timeout", func(c *Config) { c.Link.RecvTimeoutMs = -5 }, "link.recv_timeout_ms"},
		{"negative break", func(c *Config) { c.Link.BreakDurationMs = -1 }, "link.break_duration_ms"},
		{"bad line ending", func(c *Config) { c.Link.LineEnding = "nul" }, "link.line_ending"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"missing log dir", func(c *Config) { c.Logging.BasePath = "/nonexistent/seriallink" }, "logging.base_path"},
		{"negative console", func(c *Config) { c.UI.MaxConsoleLines = -1 }, "ui.max_console_lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestValidateAcceptsUnusualBaudAndMissingIcons(t *testing.T) {
	cfg := Default()
	cfg.Link.BaudRate = 31250
	cfg.UI.GreenLedIcon = "/nonexistent/green.png"
	assert.NoError(t, Validate(cfg))
}

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, "seriallink.yaml", "link:\n  baud_rate: 9600\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, discardLogger(), func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher time to register before writing
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("link:\n  data_bits: 12\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("link:\n  baud_rate: 57600\n"), 0o644))

	var last *Config
	require.Eventually(t, func() bool {
		for {
			select {
			case cfg := <-changes:
				last = cfg
			default:
				return last != nil && last.Link.BaudRate == 57600
			}
		}
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 8, last.Link.DataBits)

	cancel()
	require.NoError(t, <-done)
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Logging.BasePath = dir
	cfg.Logging.Level = "warn"

	logger := cfg.Logging.NewLogger(io.Discard, false)
	logger.Info("dropped")
	logger.Warn("kept", "device", "/dev/ttyS0")

	data, err := os.ReadFile(filepath.Join(dir, "seriallink.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"msg":"kept"`)
	assert.Contains(t, string(data), `"device":"/dev/ttyS0"`)
}

func TestNewLoggerDebugOverride(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Logging.Level = "error"

	cfg.Logging.NewLogger(&buf, true).Debug("verbose")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Equal(t, slog.LevelError, cfg.Logging.SlogLevel())
}

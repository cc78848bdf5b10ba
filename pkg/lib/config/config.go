// Package config loads the harness configuration from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultDebugPort is the port QEMU's gdb stub listens on with -s.
const DefaultDebugPort = 1234

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// SimulatorConfig describes how QEMU is launched.
type SimulatorConfig struct {
	Binary  string `toml:"binary"`
	Machine string `toml:"machine"`
	// ICount is the -icount shift; it paces execution by instruction count
	// instead of wall clock so runs are reproducible.
	ICount int `toml:"icount"`
	// Image is the flash image, relative to the test directory.
	Image     string   `toml:"image"`
	ExtraArgs []string `toml:"extra_args"`
	// WaitListen makes a debug-mode start wait until the gdb stub is listening.
	WaitListen bool `toml:"wait_listen"`
}

// DebuggerConfig describes how GDB is launched.
type DebuggerConfig struct {
	// Binary is resolved against the firmware root when relative and not on PATH.
	Binary string `toml:"binary"`
	// ELF is the symbol file, relative to the test directory.
	ELF        string   `toml:"elf"`
	Port       int      `toml:"port"`
	ScriptName string   `toml:"script_name"`
	ExtraArgs  []string `toml:"extra_args"`
	// AttachSettle is how long a scenario waits after attaching before it
	// starts polling; the target stays halted until the script resumes it.
	AttachSettle time.Duration `toml:"attach_settle"`
}

// TimeoutsConfig holds every bounded wait of a run.
type TimeoutsConfig struct {
	GracePeriod time.Duration `toml:"grace_period"`
	Poll        time.Duration `toml:"poll"`
	FaultPoll   time.Duration `toml:"fault_poll"`
	Scenario    time.Duration `toml:"scenario"`
	Drain       time.Duration `toml:"drain"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the main configuration struct of the harness.
type Config struct {
	// Root is the firmware repository root; test directories are resolved against it.
	Root      string          `toml:"root"`
	Catalog   string          `toml:"catalog"`
	Simulator SimulatorConfig `toml:"simulator"`
	Debugger  DebuggerConfig  `toml:"debugger"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
	Logging   LoggingConfig   `toml:"logging"`
	Remote    RemoteConfig    `toml:"remote"`
}

// Default returns a Config matching the ESP32-C3 QEMU setup.
func Default() *Config {
	return &Config{
		Root: ".",
		Simulator: SimulatorConfig{
			Binary:     "qemu-system-riscv32",
			Machine:    "esp32c3",
			ICount:     3,
			Image:      "build/critical_fw_esp32c3_qemu_image.bin",
			ExtraArgs:  []string{"-nographic"},
			WaitListen: true,
		},
		Debugger: DebuggerConfig{
			Binary:       "tools/riscv32-esp-elf-gdb/bin/riscv32-esp-elf-gdb",
			ELF:          "build/critical_fw_esp32c3.elf",
			Port:         DefaultDebugPort,
			ScriptName:   "gdb_script_temp.gdb",
			ExtraArgs:    []string{"-q"},
			AttachSettle: 5 * time.Second,
		},
		Timeouts: TimeoutsConfig{
			GracePeriod: 5 * time.Second,
			Poll:        3 * time.Second,
			FaultPoll:   10 * time.Second,
			Scenario:    2 * time.Minute,
			Drain:       2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
		Remote: RemoteConfig{
			Address: DefaultAddress,
		},
	}
}

// Load loads configuration from file, merging with defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Simulator.Binary == "" {
		return fmt.Errorf("simulator.binary is required")
	}
	if c.Simulator.Machine == "" {
		return fmt.Errorf("simulator.machine is required")
	}
	if c.Simulator.Image == "" {
		return fmt.Errorf("simulator.image is required")
	}
	if c.Simulator.ICount < 0 {
		return fmt.Errorf("simulator.icount must not be negative")
	}
	if c.Debugger.Binary == "" {
		return fmt.Errorf("debugger.binary is required")
	}
	if c.Debugger.ScriptName == "" || filepath.Base(c.Debugger.ScriptName) != c.Debugger.ScriptName {
		return fmt.Errorf("debugger.script_name must be a plain file name")
	}
	if c.Debugger.Port <= 0 || c.Debugger.Port > 65535 {
		return fmt.Errorf("debugger.port %d out of range", c.Debugger.Port)
	}
	if c.Debugger.AttachSettle < 0 {
		return fmt.Errorf("debugger.attach_settle must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"grace_period": c.Timeouts.GracePeriod,
		"poll":         c.Timeouts.Poll,
		"fault_poll":   c.Timeouts.FaultPoll,
		"scenario":     c.Timeouts.Scenario,
		"drain":        c.Timeouts.Drain,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}
	return nil
}

// TestDir returns the absolute path of a test directory given relative to Root.
func (c *Config) TestDir(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

// DebuggerBinary returns the debugger path, resolved against Root when it is
// a relative path rather than a bare command name.
func (c *Config) DebuggerBinary() string {
	b := c.Debugger.Binary
	if filepath.IsAbs(b) || filepath.Base(b) == b {
		return b
	}
	return filepath.Join(c.Root, b)
}

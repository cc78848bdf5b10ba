package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultDebugPort, cfg.Debugger.Port)
	assert.Equal(t, 3, cfg.Simulator.ICount)
	assert.Equal(t, "gdb_script_temp.gdb", cfg.Debugger.ScriptName)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.toml")
	content := `
root = "/work/bist"

[simulator]
binary = "/opt/qemu/bin/qemu-system-riscv32"
icount = 5

[debugger]
port = 4321
attach_settle = "250ms"

[timeouts]
grace_period = "1s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/work/bist", cfg.Root)
	assert.Equal(t, "/opt/qemu/bin/qemu-system-riscv32", cfg.Simulator.Binary)
	assert.Equal(t, 5, cfg.Simulator.ICount)
	assert.Equal(t, "esp32c3", cfg.Simulator.Machine, "unset keys keep their defaults")
	assert.Equal(t, 4321, cfg.Debugger.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Debugger.AttachSettle)
	assert.Equal(t, time.Second, cfg.Timeouts.GracePeriod)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Poll)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.toml")
	require.NoError(t, os.WriteFile(path, []byte("[simulator\nbinary="), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"no simulator", func(c *Config) { c.Simulator.Binary = "" }, "simulator.binary"},
		{"bad port", func(c *Config) { c.Debugger.Port = 70000 }, "out of range"},
		{"script path", func(c *Config) { c.Debugger.ScriptName = "../x.gdb" }, "plain file name"},
		{"zero poll", func(c *Config) { c.Timeouts.Poll = 0 }, "timeouts.poll"},
		{"negative settle", func(c *Config) { c.Debugger.AttachSettle = -time.Second }, "attach_settle"},
		{"misspelt level", func(c *Config) { c.Logging.Level = "debgu" }, `logging.level "debgu"`},
		{"empty level", func(c *Config) { c.Logging.Level = "" }, "logging.level"},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }, `logging.format "xml"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestPathResolution(t *testing.T) {
	cfg := Default()
	cfg.Root = "/fw"

	assert.Equal(t, "/fw/tests/ram_test", cfg.TestDir("tests/ram_test"))
	assert.Equal(t, "/abs/dir", cfg.TestDir("/abs/dir"))
	assert.Equal(t, "/fw/tools/riscv32-esp-elf-gdb/bin/riscv32-esp-elf-gdb", cfg.DebuggerBinary())

	cfg.Debugger.Binary = "gdb-multiarch"
	assert.Equal(t, "gdb-multiarch", cfg.DebuggerBinary())
}

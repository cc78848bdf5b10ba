// Package fakesim installs shell scripts that stand in for QEMU and GDB so
// the harness can be exercised without a toolchain.
//
// The fake simulator runs ./boot.sh from the test directory. In debug mode it
// first waits for the fake debugger to publish its script as ./injected.gdb
// and runs ./fault.sh with that path instead. Both scripts are followed by a
// long sleep so the simulator never exits on its own, like the real one.
package fakesim

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/espressif/esp-bist/pkg/lib/config"
)

const qemuScript = `#!/bin/sh
debug=0
for a in "$@"; do
  if [ "$a" = "-S" ]; then debug=1; fi
done
echo "fake-qemu $*" >&2
if [ "$debug" = 0 ]; then
  sh ./boot.sh
  exec sleep 60
fi
i=0
while [ ! -f ./injected.gdb ]; do
  i=$((i+1))
  if [ "$i" -gt 400 ]; then
    echo "no debugger attached" >&2
    exit 2
  fi
  sleep 0.05
done
sh ./fault.sh ./injected.gdb
exec sleep 60
`

const gdbScript = `#!/bin/sh
trap 'rm -f ./injected.gdb; exit 0' TERM
for a in "$@"; do
  case "$a" in
    --command=*) cp "${a#--command=}" ./.injected.tmp && mv ./.injected.tmp ./injected.gdb ;;
  esac
done
echo "fake-gdb attached"
sleep 60 &
wait
`

// Install writes the fake binaries under root and returns a configuration
// using them with short timeouts.
func Install(t testing.TB, root string) *config.Config {
	t.Helper()
	bin := filepath.Join(root, "bin")
	mkdir(t, bin)
	write(t, filepath.Join(bin, "qemu-system-riscv32"), qemuScript, 0o755)
	write(t, filepath.Join(bin, "riscv32-esp-elf-gdb"), gdbScript, 0o755)

	cfg := config.Default()
	cfg.Root = root
	cfg.Simulator.Binary = filepath.Join(bin, "qemu-system-riscv32")
	cfg.Simulator.WaitListen = false
	cfg.Debugger.Binary = filepath.Join(bin, "riscv32-esp-elf-gdb")
	cfg.Debugger.AttachSettle = 0
	cfg.Timeouts = config.TimeoutsConfig{
		GracePeriod: 500 * time.Millisecond,
		Poll:        2 * time.Second,
		FaultPoll:   3 * time.Second,
		Scenario:    30 * time.Second,
		Drain:       time.Second,
	}
	return cfg
}

// Firmware creates the test directory dir (relative to cfg.Root) with an
// empty image and the given boot and fault behaviour. fault receives the
// injected script path as $1.
func Firmware(t testing.TB, cfg *config.Config, dir, boot, fault string) string {
	t.Helper()
	abs := cfg.TestDir(dir)
	image := filepath.Join(abs, cfg.Simulator.Image)
	mkdir(t, filepath.Dir(image))
	write(t, image, "", 0o644)
	write(t, filepath.Join(abs, "boot.sh"), boot+"\n", 0o644)
	write(t, filepath.Join(abs, "fault.sh"), fault+"\n", 0o644)
	return abs
}

func mkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func write(t testing.TB, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

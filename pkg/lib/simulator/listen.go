package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/espressif/esp-bist/pkg/lib/process"
)

const listenProbeInterval = 50 * time.Millisecond

// waitListening blocks until h owns a listening TCP socket on port.
func waitListening(ctx context.Context, h *process.Handle, port int) error {
	return waitPidListening(ctx, int32(h.Pid()), port, h.Exited())
}

func waitPidListening(ctx context.Context, pid int32, port int, exited <-chan struct{}) error {
	ticker := time.NewTicker(listenProbeInterval)
	defer ticker.Stop()
	for {
		ok, err := listening(ctx, pid, port)
		if err != nil {
			return fmt.Errorf("probing gdb stub of pid %d: %w", pid, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("gdb stub on port %d not listening: %w", port, ctx.Err())
		case <-exited:
			return fmt.Errorf("simulator exited before its gdb stub opened port %d", port)
		case <-ticker.C:
		}
	}
}

func listening(ctx context.Context, pid int32, port int) (bool, error) {
	conns, err := net.ConnectionsPidWithContext(ctx, "tcp", pid)
	if err != nil {
		return false, err
	}
	for _, c := range conns {
		if c.Status == "LISTEN" && c.Laddr.Port == uint32(port) {
			return true, nil
		}
	}
	return false, nil
}

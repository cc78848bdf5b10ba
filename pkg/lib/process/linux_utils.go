//go:build linux

package process

import (
	"syscall"
)

// GetSysProcAttr puts the child into its own process group so the whole tree
// can be signalled at once, and makes the kernel kill it if the harness dies.
func GetSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

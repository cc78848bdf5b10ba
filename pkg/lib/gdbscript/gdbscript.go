// Package gdbscript renders the GDB command files used for fault injection.
//
// A script attaches to the simulator's gdb stub, arms one temporary breakpoint,
// resumes, and once the breakpoint fires runs the mutation commands in order
// before resuming again. Mutations are opaque debugger commands and are copied
// verbatim.
package gdbscript

import (
	"fmt"
	"strings"
)

// DefaultPort is the port QEMU's gdb stub listens on.
const DefaultPort = 1234

const indent = "    "

// Render returns the script text for the given port, breakpoint symbol and
// mutation commands. Identical arguments always produce identical text.
func Render(port int, breakpoint string, mutations []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "target remote :%d\n", port)
	fmt.Fprintf(&b, "tb %s\n", breakpoint)
	b.WriteString("continue\n")
	b.WriteString("commands\n")
	for _, m := range mutations {
		b.WriteString(indent)
		b.WriteString(m)
		b.WriteByte('\n')
	}
	b.WriteString(indent + "continue\n")
	b.WriteString("end\n")
	return b.String()
}

// Set renders an assignment command, e.g. Set("*start_addr", "0xFF").
func Set(lhs, value string) string {
	return fmt.Sprintf("set %s=%s", lhs, value)
}

// Fault is a declarative fault: where to stop and what to change there.
type Fault struct {
	Breakpoint string   `yaml:"breakpoint" json:"breakpoint"`
	Mutations  []string `yaml:"mutations" json:"mutations"`
}

// Script renders f against the stub listening on port.
func (f Fault) Script(port int) string {
	return Render(port, f.Breakpoint, f.Mutations)
}

// Validate reports whether f can be rendered into a usable script.
func (f Fault) Validate() error {
	if strings.TrimSpace(f.Breakpoint) == "" {
		return fmt.Errorf("fault breakpoint is empty")
	}
	if strings.ContainsAny(f.Breakpoint, " \t\r\n") {
		return fmt.Errorf("fault breakpoint %q contains whitespace", f.Breakpoint)
	}
	for i, m := range f.Mutations {
		if strings.ContainsAny(m, "\r\n") {
			return fmt.Errorf("mutation %d spans multiple lines", i)
		}
		if strings.TrimSpace(m) == "end" {
			return fmt.Errorf("mutation %d would terminate the commands block", i)
		}
	}
	return nil
}

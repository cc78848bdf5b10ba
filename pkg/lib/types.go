package lib

import "time"

// ProcessState mirrors the lifecycle of a spawned simulator or debugger.
// It's intentionally minimal; a handle is either running or gone for good.
type ProcessState int

const (
	ProcessStateUnspecified ProcessState = iota
	ProcessStateRunning
	ProcessStateStopped
)

func (s ProcessState) String() string {
	switch s {
	case ProcessStateRunning:
		return "Running"
	case ProcessStateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Command captures command metadata used to start a process.
type Command struct {
	Command string
	Args    []string
}

// ProcessStatus captures runtime state and timestamps.
type ProcessStatus struct {
	State     ProcessState
	ExitCode  *int
	StartTime time.Time
	EndTime   *time.Time
}

// Source tells which output stream a line was read from.
type Source int

const (
	SourceStdout Source = iota
	SourceStderr
)

func (s Source) String() string {
	if s == SourceStderr {
		return "stderr"
	}
	return "stdout"
}

// Line is a single captured line of process output, without its trailing newline.
type Line struct {
	Seq    uint64
	Source Source
	Text   string
	Time   time.Time
}

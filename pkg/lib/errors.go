package lib

import (
	"fmt"
)

// Error codes attached to harness failures.
const (
	CodeSpawnFailed      = "SPAWN_001"    // External process failed to start
	CodeTeardownProcess  = "TEARDOWN_001" // Process had to be killed or could not be signalled
	CodeTeardownArtifact = "TEARDOWN_002" // Temporary artifact could not be removed
)

// SpawnError reports an external process that never started.
// It is fatal to the session that tried to spawn it and is never retried.
type SpawnError struct {
	Command Command
	Cause   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("[%s] failed to start %q: %v", CodeSpawnFailed, e.Command.Command, e.Cause)
}

func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// TeardownError reports a problem while releasing a session's resources.
// Callers log it; it must never replace an already-determined test outcome.
type TeardownError struct {
	Code      string
	Component string
	Forced    bool
	Cause     error
}

func (e *TeardownError) Error() string {
	msg := fmt.Sprintf("[%s] teardown of %s", e.Code, e.Component)
	if e.Forced {
		msg += " required forced kill"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TeardownError) Unwrap() error {
	return e.Cause
}

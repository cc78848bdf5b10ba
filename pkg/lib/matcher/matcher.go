// Package matcher waits for textual pass/fail markers in captured output.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/output"
)

// Poller yields captured lines one at a time. output.Monitor and
// output.Cursor satisfy it.
type Poller interface {
	Poll(timeout time.Duration) (lib.Line, error)
}

// StopReason tells why AwaitMarkers stopped polling.
type StopReason int

const (
	StopAllObserved StopReason = iota
	StopQuiet                  // no line within the per-poll timeout
	StopClosed                 // stream ended
	StopDeadline               // context deadline or cancellation
	StopError                  // poller returned an unexpected error
)

func (r StopReason) String() string {
	switch r {
	case StopAllObserved:
		return "all markers observed"
	case StopQuiet:
		return "output went quiet"
	case StopClosed:
		return "output closed"
	case StopDeadline:
		return "deadline exceeded"
	default:
		return "poll error"
	}
}

// Outcome is what AwaitMarkers saw. Partial results are ordinary values;
// judging them is up to the caller.
type Outcome struct {
	Expected []string
	// Observed holds the expected markers that were seen, in the order they first appeared.
	Observed   []string
	Transcript []lib.Line
	Reason     StopReason
	Err        error
}

// Complete reports whether every expected marker was observed.
func (o Outcome) Complete() bool {
	return len(o.Missing()) == 0
}

// Missing returns the expected markers that were not observed.
func (o Outcome) Missing() []string {
	var missing []string
	for _, m := range o.Expected {
		if !contains(o.Observed, m) {
			missing = append(missing, m)
		}
	}
	return missing
}

// Saw reports whether any line polled during the wait contains marker.
func (o Outcome) Saw(marker string) bool {
	for _, l := range o.Transcript {
		if strings.Contains(l.Text, marker) {
			return true
		}
	}
	return false
}

const diagnosticTail = 20

// Diagnostic describes the outcome for triage: expected and observed
// markers plus the tail of the transcript.
func (o Outcome) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "expected %q, observed %q (%s)", o.Expected, o.Observed, o.Reason)
	if o.Err != nil {
		fmt.Fprintf(&b, ": %v", o.Err)
	}
	tail := o.Transcript
	if len(tail) > diagnosticTail {
		fmt.Fprintf(&b, "\n... %d earlier lines", len(tail)-diagnosticTail)
		tail = tail[len(tail)-diagnosticTail:]
	}
	for _, l := range tail {
		fmt.Fprintf(&b, "\n  [%s] %s", l.Source, l.Text)
	}
	return b.String()
}

// AwaitMarkers polls p until every expected marker has been seen as a
// substring of some line, the stream stays quiet for perPoll, the stream
// closes, or ctx is done. Each poll waits at most perPoll, shortened to the
// time left before ctx's deadline.
func AwaitMarkers(ctx context.Context, p Poller, expected []string, perPoll time.Duration) Outcome {
	out := Outcome{Expected: dedupe(expected)}
	pending := append([]string(nil), out.Expected...)

	for len(pending) > 0 {
		if ctx.Err() != nil {
			out.Reason = StopDeadline
			return out
		}
		wait := perPoll
		if deadline, ok := ctx.Deadline(); ok {
			left := time.Until(deadline)
			if left <= 0 {
				out.Reason = StopDeadline
				return out
			}
			wait = min(wait, left)
		}

		line, err := p.Poll(wait)
		switch {
		case errors.Is(err, output.ErrClosed):
			out.Reason = StopClosed
			return out
		case errors.Is(err, output.ErrEmpty):
			if ctx.Err() != nil {
				out.Reason = StopDeadline
			} else {
				out.Reason = StopQuiet
			}
			return out
		case err != nil:
			out.Reason = StopError
			out.Err = err
			return out
		}

		out.Transcript = append(out.Transcript, line)
		kept := pending[:0]
		for _, m := range pending {
			if strings.Contains(line.Text, m) {
				out.Observed = append(out.Observed, m)
			} else {
				kept = append(kept, m)
			}
		}
		pending = kept
	}

	out.Reason = StopAllObserved
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

package matcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espressif/esp-bist/pkg/lib"
	"github.com/espressif/esp-bist/pkg/lib/output"
)

// scriptedPoller hands out lines, then a terminal error.
type scriptedPoller struct {
	lines    []string
	tail     error
	timeouts []time.Duration
}

func (p *scriptedPoller) Poll(timeout time.Duration) (lib.Line, error) {
	p.timeouts = append(p.timeouts, timeout)
	if len(p.lines) == 0 {
		return lib.Line{}, p.tail
	}
	text := p.lines[0]
	p.lines = p.lines[1:]
	return lib.Line{Text: text}, nil
}

func TestAwaitMarkersAllObserved(t *testing.T) {
	p := &scriptedPoller{
		lines: []string{
			"boot",
			"I (12) test_BIST_ram_march_x:PASS",
			"noise",
			"I (13) test_BIST_ram_march_a:PASS",
			"never read",
		},
		tail: output.ErrEmpty,
	}
	expected := []string{"test_BIST_ram_march_a:PASS", "test_BIST_ram_march_x:PASS"}

	out := AwaitMarkers(context.Background(), p, expected, 3*time.Second)

	assert.True(t, out.Complete())
	assert.Equal(t, StopAllObserved, out.Reason)
	assert.Equal(t, []string{"test_BIST_ram_march_x:PASS", "test_BIST_ram_march_a:PASS"}, out.Observed)
	assert.Len(t, out.Transcript, 4)
	assert.Equal(t, []string{"never read"}, p.lines)
}

func TestAwaitMarkersPartialOnQuiet(t *testing.T) {
	p := &scriptedPoller{
		lines: []string{"Reset reason: 1", "other"},
		tail:  output.ErrEmpty,
	}
	expected := []string{"Reset reason: 1", "Reset reason: 7"}

	out := AwaitMarkers(context.Background(), p, expected, 10*time.Second)

	assert.False(t, out.Complete())
	assert.Equal(t, StopQuiet, out.Reason)
	assert.Equal(t, []string{"Reset reason: 1"}, out.Observed)
	assert.Equal(t, []string{"Reset reason: 7"}, out.Missing())
	assert.NoError(t, out.Err)
	assert.Contains(t, out.Diagnostic(), "Reset reason: 7")
	assert.Contains(t, out.Diagnostic(), "output went quiet")
}

func TestAwaitMarkersClosedStream(t *testing.T) {
	p := &scriptedPoller{lines: []string{"test_BIST_WDT:FAIL"}, tail: output.ErrClosed}

	out := AwaitMarkers(context.Background(), p, []string{"test_BIST_WDT:PASS"}, time.Second)

	assert.Equal(t, StopClosed, out.Reason)
	assert.Empty(t, out.Observed)
	assert.True(t, out.Saw("test_BIST_WDT:FAIL"))
	assert.False(t, out.Saw("test_BIST_WDT:PASS"))
}

func TestAwaitMarkersPollError(t *testing.T) {
	boom := errors.New("boom")
	p := &scriptedPoller{tail: boom}

	out := AwaitMarkers(context.Background(), p, []string{"x"}, time.Second)

	assert.Equal(t, StopError, out.Reason)
	assert.ErrorIs(t, out.Err, boom)
}

func TestAwaitMarkersEmptyExpected(t *testing.T) {
	p := &scriptedPoller{lines: []string{"a"}}

	out := AwaitMarkers(context.Background(), p, nil, time.Second)

	assert.True(t, out.Complete())
	assert.Empty(t, p.timeouts, "nothing to wait for")
}

func TestAwaitMarkersDuplicatesCountOnce(t *testing.T) {
	p := &scriptedPoller{lines: []string{"m:PASS"}, tail: output.ErrEmpty}

	out := AwaitMarkers(context.Background(), p, []string{"m:PASS", "m:PASS"}, time.Second)

	assert.True(t, out.Complete())
	assert.Equal(t, []string{"m:PASS"}, out.Expected)
}

func TestAwaitMarkersDeadlineShortensPoll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	p := &scriptedPoller{lines: []string{"a"}, tail: output.ErrEmpty}

	AwaitMarkers(ctx, p, []string{"b"}, time.Hour)

	require.Len(t, p.timeouts, 2)
	for _, d := range p.timeouts {
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}

func TestAwaitMarkersCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedPoller{lines: []string{"a"}}

	out := AwaitMarkers(ctx, p, []string{"a"}, time.Second)

	assert.Equal(t, StopDeadline, out.Reason)
	assert.Empty(t, p.timeouts)
}

func TestAwaitMarkersWithStorage(t *testing.T) {
	s := output.RunNewStorage()
	c := s.NewCursor(nil)
	defer c.Close()

	go func() {
		s.Append(lib.SourceStdout, "test_BIST_PC:PASS")
		s.Close()
	}()

	out := AwaitMarkers(context.Background(), c, []string{"test_BIST_PC:PASS"}, 5*time.Second)
	assert.True(t, out.Complete())
}

func TestDiagnosticTruncatesTranscript(t *testing.T) {
	out := Outcome{Expected: []string{"x"}, Reason: StopQuiet}
	for i := 0; i < 50; i++ {
		out.Transcript = append(out.Transcript, lib.Line{Text: "line"})
	}
	assert.Contains(t, out.Diagnostic(), "... 30 earlier lines")
}

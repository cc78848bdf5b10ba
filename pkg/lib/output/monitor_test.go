package output

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espressif/esp-bist/pkg/lib"
)

// pollAll polls until the stream reports emptiness.
func pollAll(t *testing.T, m *Monitor, timeout time.Duration) []lib.Line {
	t.Helper()
	var out []lib.Line
	for {
		l, err := m.Poll(timeout)
		if err != nil {
			require.ErrorIs(t, err, ErrEmpty)
			return out
		}
		out = append(out, l)
	}
}

func bySource(lines []lib.Line, src lib.Source) []string {
	var out []string
	for _, l := range lines {
		if l.Source == src {
			out = append(out, l.Text)
		}
	}
	return out
}

func TestMonitor_SplitsLinesFromBothStreams(t *testing.T) {
	stdout := strings.NewReader("boot\r\ntest_BIST_PC:PASS\npartial")
	stderr := strings.NewReader("warning\n")

	m := RunNewMonitor(stdout, stderr, Options{Name: "test"})
	<-m.Done()
	require.NoError(t, m.Err())

	lines := pollAll(t, m, time.Second)
	assert.Equal(t, []string{"boot", "test_BIST_PC:PASS", "partial"}, bySource(lines, lib.SourceStdout))
	assert.Equal(t, []string{"warning"}, bySource(lines, lib.SourceStderr))
	require.NoError(t, m.Close(time.Second))
}

func TestMonitor_NoLineLossUnderBurst(t *testing.T) {
	const n = 5000
	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	m := RunNewMonitor(outR, errR, Options{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			fmt.Fprintf(outW, "out %d\n", i)
		}
		outW.Close()
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			fmt.Fprintf(errW, "err %d\n", i)
		}
		errW.Close()
	}()
	wg.Wait()

	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("readers did not finish")
	}

	lines := pollAll(t, m, time.Second)
	require.Len(t, lines, 2*n)
	outs := bySource(lines, lib.SourceStdout)
	errs := bySource(lines, lib.SourceStderr)
	for i := 0; i < n; i++ {
		require.Equal(t, fmt.Sprintf("out %d", i), outs[i])
		require.Equal(t, fmt.Sprintf("err %d", i), errs[i])
	}
}

func TestMonitor_CapturesProcessBurstBeforeAnyPoll(t *testing.T) {
	cmd := exec.Command("sh", "-c", `i=1; while [ $i -le 500 ]; do echo "line $i"; echo "diag $i" 1>&2; i=$((i+1)); done`)
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	require.NoError(t, cmd.Start())

	m := RunNewMonitor(stdout, stderr, Options{})
	<-m.Done()
	require.NoError(t, cmd.Wait())

	lines := pollAll(t, m, time.Second)
	require.Len(t, lines, 1000)
	outs := bySource(lines, lib.SourceStdout)
	assert.Equal(t, "line 1", outs[0])
	assert.Equal(t, "line 500", outs[499])
}

func TestMonitor_EchoSeesEveryLine(t *testing.T) {
	var mu sync.Mutex
	var echoed []string
	m := RunNewMonitor(strings.NewReader("a\nb\n"), nil, Options{Echo: func(l lib.Line) {
		mu.Lock()
		defer mu.Unlock()
		echoed = append(echoed, l.Text)
	}})
	<-m.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, echoed)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestMonitor_ReportsReadErrors(t *testing.T) {
	m := RunNewMonitor(failingReader{}, strings.NewReader("ok\n"), Options{})
	<-m.Done()
	assert.ErrorContains(t, m.Err(), "boom")

	l, err := m.Poll(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "ok", l.Text)
}

func TestMonitor_CloseUnblocksStuckReaders(t *testing.T) {
	outR, outW := io.Pipe()
	defer outW.Close()
	m := RunNewMonitor(outR, nil, Options{})

	start := time.Now()
	_ = m.Close(100 * time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-m.Done():
	default:
		t.Fatal("monitor not done after Close")
	}
	_, err := m.Poll(10 * time.Millisecond)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMonitor_CloseDrainFollowsClock(t *testing.T) {
	outR, outW := io.Pipe()
	defer outW.Close()
	fclk := fakeclock.NewFakeClock(time.Unix(0, 0))
	m := RunNewMonitor(outR, nil, Options{Clock: fclk})

	closed := make(chan error, 1)
	go func() { closed <- m.Close(time.Minute) }()

	fclk.WaitForWatcherAndIncrement(time.Minute)
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the drain period elapsed")
	}
	select {
	case <-m.Done():
	default:
		t.Fatal("monitor not done after Close")
	}
}

func TestMonitor_CloseWaitsForDrain(t *testing.T) {
	outR, outW := io.Pipe()
	fclk := fakeclock.NewFakeClock(time.Unix(0, 0))
	m := RunNewMonitor(outR, nil, Options{Clock: fclk})

	closed := make(chan error, 1)
	go func() { closed <- m.Close(time.Minute) }()

	require.Eventually(t, func() bool { return fclk.WatcherCount() > 0 }, 5*time.Second, 10*time.Millisecond)
	select {
	case <-closed:
		t.Fatal("Close returned before the drain period or end-of-stream")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, outW.Close())
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after end-of-stream")
	}
}

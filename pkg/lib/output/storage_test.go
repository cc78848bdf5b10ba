package output

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/espressif/esp-bist/pkg/lib"
)

func texts(lines []lib.Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestNewStorage_Empty(t *testing.T) {
	s := RunNewStorage()
	defer s.Close()

	cnt := 0
	s.ForEach(func(lib.Line) bool {
		cnt++
		return true
	})
	if cnt != 0 || s.Len() != 0 {
		t.Fatalf("expected 0 items, got %d", cnt)
	}
}

func TestAppendAndForEach_OrderAndEarlyStop(t *testing.T) {
	s := RunNewStorage()
	defer s.Close()
	s.Append(lib.SourceStdout, "a")
	s.Append(lib.SourceStderr, "b")
	s.Append(lib.SourceStdout, "c")

	lines := s.Lines()
	if fmt.Sprint(texts(lines)) != fmt.Sprint([]string{"a", "b", "c"}) {
		t.Fatalf("order mismatch: got=%v", texts(lines))
	}
	for i, l := range lines {
		if l.Seq != uint64(i+1) {
			t.Fatalf("line %d has seq %d", i, l.Seq)
		}
	}
	if lines[1].Source != lib.SourceStderr {
		t.Fatalf("source tag lost: %+v", lines[1])
	}

	calls := 0
	s.ForEach(func(lib.Line) bool {
		calls++
		return calls < 2
	})
	if calls != 2 {
		t.Fatalf("early stop failed: calls=%d", calls)
	}
}

func TestAppendAfterCloseIsDropped(t *testing.T) {
	s := RunNewStorage()
	s.Append(lib.SourceStdout, "kept")
	s.Close()
	s.Close()
	s.Append(lib.SourceStdout, "dropped")

	if got := texts(s.Lines()); len(got) != 1 || got[0] != "kept" {
		t.Fatalf("unexpected lines after close: %v", got)
	}
	if !s.Closed() {
		t.Fatalf("Closed() should report true")
	}
}

func TestNilReceiverSafety(t *testing.T) {
	var s *Storage
	s.ForEach(nil)
	s.Append(lib.SourceStdout, "x")
	s.Close()
	if got := s.Lines(); len(got) != 0 {
		t.Fatalf("expected no lines from nil receiver, got %v", got)
	}
}

func TestSubscribe_DeliversExistingItemsInOrder(t *testing.T) {
	s := RunNewStorage()
	defer s.Close()
	s.Append(lib.SourceStdout, "a")
	s.Append(lib.SourceStdout, "b")
	s.Append(lib.SourceStdout, "c")

	ch := s.Subscribe(context.Background(), 3)
	for _, want := range []string{"a", "b", "c"} {
		if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || v.Text != want {
			t.Fatalf("expected %q, ok=%v v=%q", want, ok, v.Text)
		}
	}
	assertNoRecv(t, ch, 50*time.Millisecond)
}

func TestSubscribe_ChannelClosesOnClose(t *testing.T) {
	s := RunNewStorage()
	s.Append(lib.SourceStdout, "x")

	ch := s.Subscribe(context.Background(), 1)
	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || v.Text != "x" {
		t.Fatalf("expected initial item 'x', ok=%v v=%q", ok, v.Text)
	}

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()

	s.Close()

	select {
	case <-done:
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("subscription channel did not close after storage close")
	}
}

func TestSubscribe_ChannelClosesOnCancel(t *testing.T) {
	s := RunNewStorage()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx, 0)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("no line was appended")
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("subscription channel did not close after cancel")
	}
}

func TestSubscribe_ConcurrentSubscribersWhileAppending(t *testing.T) {
	s := RunNewStorage()

	const N = 300
	expected := make([]string, 0, N)
	for i := 1; i <= N; i++ {
		expected = append(expected, fmt.Sprint(i))
	}

	const subs = 10
	chs := make([]<-chan lib.Line, 0, subs)
	for i := 0; i < subs; i++ {
		chs = append(chs, s.Subscribe(context.Background(), 32))
	}

	go func() {
		for i := 1; i <= N; i++ {
			s.Append(lib.SourceStdout, fmt.Sprint(i))
			time.Sleep(time.Microsecond * 200)
		}
		s.Close()
	}()

	var wg sync.WaitGroup
	wg.Add(subs)
	outs := make([][]string, subs)
	for i := 0; i < subs; i++ {
		i := i
		go func() {
			defer wg.Done()
			for l := range chs[i] {
				outs[i] = append(outs[i], l.Text)
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for subscribers to finish")
	}

	for i := 0; i < subs; i++ {
		if fmt.Sprint(outs[i]) != fmt.Sprint(expected) {
			t.Fatalf("subscriber %d mismatch: got %d lines, want %d", i, len(outs[i]), N)
		}
	}
}

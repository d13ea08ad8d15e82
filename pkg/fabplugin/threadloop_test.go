package fabplugin

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-lynx/xr-fabric/pkg/fabevent"
)

type countingBody struct {
	setupCalled atomic.Bool
	iterations  atomic.Int64
	stopAfter   int64
}

func (b *countingBody) ThreadSetup() { b.setupCalled.Store(true) }

func (b *countingBody) ShouldSkip() SkipOption {
	if b.iterations.Load() >= b.stopAfter {
		return Spin
	}
	return Run
}

func (b *countingBody) OneIteration() { b.iterations.Add(1) }

func TestThreadLoopBlocksUntilReady(t *testing.T) {
	dir, _ := newTestDirectory()
	base := NewBase("loop", dir)
	sl := fabevent.NewStoplight()
	body := &countingBody{stopAfter: 3}
	tl := NewThreadLoop(base, body, sl, nil)

	if err := tl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if body.setupCalled.Load() {
		t.Fatalf("ThreadSetup should not run before the stoplight signals ready")
	}

	sl.SignalReady()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if body.iterations.Load() >= 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if body.iterations.Load() < 3 {
		t.Fatalf("expected at least 3 iterations, got %d", body.iterations.Load())
	}

	sl.SignalShouldStop()
	if err := tl.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tl.IterationNo() < 3 {
		t.Fatalf("expected IterationNo >= 3, got %d", tl.IterationNo())
	}
}

func TestThreadLoopStopBeforeShouldStopErrors(t *testing.T) {
	dir, _ := newTestDirectory()
	base := NewBase("loop2", dir)
	sl := fabevent.NewStoplight()
	body := &countingBody{stopAfter: 0}
	tl := NewThreadLoop(base, body, sl, nil)

	if err := tl.Stop(); err == nil {
		t.Fatalf("expected Stop to error before should_stop/internal_stop is signalled")
	}
}

func TestThreadLoopInternalStop(t *testing.T) {
	dir, _ := newTestDirectory()
	base := NewBase("loop3", dir)
	sl := fabevent.NewStoplight()
	body := &countingBody{stopAfter: 1_000_000}
	tl := NewThreadLoop(base, body, sl, nil)

	if err := tl.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	sl.SignalReady()
	time.Sleep(10 * time.Millisecond)
	tl.InternalStop()

	if err := tl.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

package fabplugin

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	ants "github.com/panjf2000/ants/v2"

	"github.com/go-lynx/xr-fabric/pkg/fabevent"
)

// SkipOption is a ThreadLoop body's per-iteration decision, matching the
// should_skip dispatch in the original threadloop.hpp exactly.
type SkipOption int

const (
	// Run executes OneIteration, then increments the iteration counter
	// and resets the skip counter.
	Run SkipOption = iota
	// Yield releases the scheduler quantum (runtime.Gosched) and
	// increments the skip counter without running an iteration.
	Yield
	// Spin retries immediately, incrementing the skip counter.
	Spin
	// Stop requests the loop terminate on its own initiative.
	Stop
)

// ThreadLoopBody is the plugin-specific behavior a ThreadLoop drives.
// ThreadSetup runs once after the stoplight signals ready and before the
// first ShouldSkip call; OneIteration runs whenever ShouldSkip returns
// Run.
type ThreadLoopBody interface {
	ShouldSkip() SkipOption
	ThreadSetup()
	OneIteration()
}

// ThreadLoop composes a *Base with a ThreadLoopBody and a goroutine (the
// Go substitute for the original's owned std::thread) that runs the
// should_skip loop against the runtime's shared Stoplight. It does not
// inherit from Base — Go has no inheritance — it holds one and forwards
// Name/ID/Logger/Directory.
type ThreadLoop struct {
	*Base
	body      ThreadLoopBody
	stoplight *fabevent.Stoplight
	pool      *ants.Pool

	internalStop atomic.Bool
	iterationNo  atomic.Uint64
	skipNo       atomic.Uint64

	started atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewThreadLoop constructs a ThreadLoop. stoplight is the runtime-wide
// barrier the loop blocks on before its first iteration; pool, if
// non-nil, is the worker pool the loop's goroutine is submitted to
// instead of a bare `go` statement (matching how Topic subscriptions run
// on the bus's shared pool).
func NewThreadLoop(base *Base, body ThreadLoopBody, stoplight *fabevent.Stoplight, pool *ants.Pool) *ThreadLoop {
	return &ThreadLoop{
		Base:      base,
		body:      body,
		stoplight: stoplight,
		pool:      pool,
		done:      make(chan struct{}),
	}
}

// Start spawns the loop goroutine and emits the plugin_start record via
// the embedded Base. Calling Start twice is a no-op after the first.
func (tl *ThreadLoop) Start() error {
	if !tl.started.CompareAndSwap(false, true) {
		return nil
	}
	if err := tl.Base.Start(); err != nil {
		tl.started.Store(false)
		return err
	}
	tl.wg.Add(1)
	run := func() {
		defer tl.wg.Done()
		tl.run()
	}
	if tl.pool != nil {
		if err := tl.pool.Submit(run); err != nil {
			tl.wg.Done()
			return fmt.Errorf("fabplugin: submitting %q's loop to worker pool: %w", tl.Name(), err)
		}
	} else {
		go run()
	}
	return nil
}

func (tl *ThreadLoop) run() {
	tl.stoplight.WaitForReady()
	tl.body.ThreadSetup()
	for {
		if tl.stoplight.CheckShouldStop() || tl.internalStop.Load() {
			close(tl.done)
			return
		}
		switch tl.body.ShouldSkip() {
		case Run:
			tl.body.OneIteration()
			tl.iterationNo.Add(1)
			tl.skipNo.Store(0)
		case Yield:
			runtime.Gosched()
			tl.skipNo.Add(1)
		case Spin:
			tl.skipNo.Add(1)
		case Stop:
			close(tl.done)
			return
		}
	}
}

// InternalStop is a thread's self-terminate hook, independent of the
// global stoplight — the loop observes it on its next skip check.
func (tl *ThreadLoop) InternalStop() {
	tl.internalStop.Store(true)
}

// Stop returns an error unless should_stop or InternalStop has been
// signalled (a thread loop may only be stopped as part of the driver's
// shutdown sequence or on its own initiative, never ad hoc); otherwise it
// waits for the loop goroutine to exit.
func (tl *ThreadLoop) Stop() error {
	if !tl.stoplight.CheckShouldStop() && !tl.internalStop.Load() {
		return fmt.Errorf("fabplugin: Stop called on %q before should_stop or internal_stop was signalled", tl.Name())
	}
	if tl.started.Load() {
		tl.wg.Wait()
	}
	return nil
}

// IterationNo returns the number of completed iterations.
func (tl *ThreadLoop) IterationNo() uint64 { return tl.iterationNo.Load() }

// SkipNo returns the number of consecutive Yield/Spin decisions since the
// last Run.
func (tl *ThreadLoop) SkipNo() uint64 { return tl.skipNo.Load() }

var _ Plugin = (*ThreadLoop)(nil)

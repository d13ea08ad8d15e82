package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/xr-fabric/pkg/reclog"
)

type captureSink struct {
	mu   sync.Mutex
	rows [][]any
}

func (c *captureSink) Insert(header *reclog.RecordHeader, rows [][]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
	return nil
}

func newTestDriver(t *testing.T, opts ...Option) *Driver {
	t.Helper()
	sink := &captureSink{}
	all := append([]Option{WithSink(sink), WithFlushDelay(10 * time.Millisecond)}, opts...)
	d, err := NewDriver(log.DefaultLogger, all...)
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}
	return d
}

func TestNewDriverRegistersCoreServices(t *testing.T) {
	d := newTestDriver(t)
	defer d.Shutdown()

	if d.Clock() == nil || d.Bus() == nil || d.Stoplight() == nil || d.Directory() == nil {
		t.Fatalf("expected all core services to be non-nil")
	}
}

func TestRunHonorsRunDurationAndShutsDown(t *testing.T) {
	t.Setenv(EnvRunDuration, "0.05")
	d := newTestDriver(t)

	start := time.Now()
	if err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected run to return promptly after ILLIXR_RUN_DURATION, took %v", elapsed)
	}
	if !d.Stoplight().CheckShouldStop() {
		t.Fatalf("expected should_stop to be signalled once ILLIXR_RUN_DURATION elapses")
	}
	if d.Stoplight().CheckShutdownComplete() {
		t.Fatalf("expected shutdown_complete to be signalled by Shutdown, not by Run returning")
	}
	if err := d.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !d.Stoplight().CheckShutdownComplete() {
		t.Fatalf("expected shutdown_complete to be signalled after Shutdown")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	d := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected Run to return the context's cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
	_ = d.Shutdown()
}

func TestRunReturnsWhenAPluginSignalsShouldStop(t *testing.T) {
	d := newTestDriver(t)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	d.Stoplight().SignalShouldStop() // simulates a plugin driving its own shutdown

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to return nil once should_stop fires, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after should_stop was signalled")
	}
	_ = d.Shutdown()
}

func TestLoadPluginListRejectsMissingPath(t *testing.T) {
	d := newTestDriver(t)
	defer d.Shutdown()

	if err := d.LoadPluginList("/nonexistent/plugin.so"); err == nil {
		t.Fatalf("expected an error loading a nonexistent plugin")
	}
}

package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/xr-fabric/pkg/bus"
	"github.com/go-lynx/xr-fabric/pkg/clock"
	"github.com/go-lynx/xr-fabric/pkg/dynlib"
	"github.com/go-lynx/xr-fabric/pkg/fabevent"
	"github.com/go-lynx/xr-fabric/pkg/fabplugin"
	"github.com/go-lynx/xr-fabric/pkg/guid"
	"github.com/go-lynx/xr-fabric/pkg/netbackend"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
	"github.com/go-lynx/xr-fabric/pkg/registry"
)

// Driver owns the process's core services and the plugins loaded on top
// of them. It is the only component allowed to drive the Stoplight and
// the Clock, matching spec.md §4.8's "only the driver" rule. Grounded on
// boot/bootstrap.go's App: construction builds the equivalent of
// conf.Bootstrap's service wiring, and Run/Shutdown are the App.Run/
// cleanPlug split generalized to the fabric's stoplight-gated lifecycle.
type Driver struct {
	dir       *registry.Directory
	clock     *clock.Clock
	logger    reclog.Logger
	stoplight *fabevent.Stoplight
	bus       *bus.Bus

	kratosLogger   log.Logger
	helper         *log.Helper
	tracerShutdown func(context.Context) error

	libs    []*dynlib.Lib
	plugins []fabplugin.Plugin
}

// Option configures a Driver at construction time.
type Option func(*driverConfig)

type driverConfig struct {
	sink         reclog.Sink
	flushDelay   time.Duration
	poolSize     int
	netBackend   netbackend.Backend
	otlpEndpoint string
}

// WithSink overrides the record logger's sink (default: a StdSink over
// the supplied kratos logger).
func WithSink(sink reclog.Sink) Option {
	return func(c *driverConfig) { c.sink = sink }
}

// WithFlushDelay overrides the coalescing logger's flush interval
// (default: reclog.LogBufferDelay).
func WithFlushDelay(d time.Duration) Option {
	return func(c *driverConfig) { c.flushDelay = d }
}

// WithWorkerPoolSize overrides the bus's shared worker pool size (default:
// ILLIXR_WORKER_POOL_SIZE, or 8 if unset or not a positive integer).
func WithWorkerPoolSize(n int) Option {
	return func(c *driverConfig) { c.poolSize = n }
}

// WithNetworkBackend registers a network backend for the bus's
// NetworkWriter to use instead of the no-op default.
func WithNetworkBackend(b netbackend.Backend) Option {
	return func(c *driverConfig) { c.netBackend = b }
}

// NewDriver constructs the service directory and registers in it, each
// under its own type, the clock, record logger, stoplight, bus, GUID
// generator and network backend, mirroring §4.8 step 1-2.
func NewDriver(kratosLogger log.Logger, opts ...Option) (*Driver, error) {
	cfg := driverConfig{
		flushDelay:   reclog.LogBufferDelay,
		poolSize:     envInt(EnvWorkerPoolSize, 8),
		netBackend:   netbackend.Noop(),
		otlpEndpoint: envString(EnvOTLPEndpoint, ""),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sink == nil {
		cfg.sink = reclog.NewStdSink(kratosLogger)
	}

	dir := registry.NewDirectory()
	clk := clock.New()
	logger := reclog.NewCoalescingLogger(cfg.sink, cfg.flushDelay)
	stoplight := fabevent.NewStoplight()
	ids := guid.NewGenerator()

	b, err := bus.New(cfg.poolSize, logger)
	if err != nil {
		return nil, fmt.Errorf("runtime: constructing bus: %w", err)
	}

	registry.Register[*clock.Clock](dir, clk)
	registry.Register[reclog.Logger](dir, reclog.Logger(logger))
	registry.Register[*fabevent.Stoplight](dir, stoplight)
	registry.Register[*bus.Bus](dir, b)
	registry.Register[*guid.Generator](dir, ids)
	registry.Register[netbackend.Backend](dir, cfg.netBackend)

	shutdownTracing, err := installTracing(context.Background(), cfg.otlpEndpoint)
	if err != nil {
		return nil, err
	}

	helper := log.NewHelper(kratosLogger)
	return &Driver{
		dir:            dir,
		clock:          clk,
		logger:         logger,
		stoplight:      stoplight,
		bus:            b,
		kratosLogger:   kratosLogger,
		helper:         helper,
		tracerShutdown: shutdownTracing,
	}, nil
}

// Directory returns the driver's service directory.
func (d *Driver) Directory() *registry.Directory { return d.dir }

// Bus returns the driver's bus.
func (d *Driver) Bus() *bus.Bus { return d.bus }

// Clock returns the driver's clock.
func (d *Driver) Clock() *clock.Clock { return d.clock }

// Stoplight returns the driver's stoplight.
func (d *Driver) Stoplight() *fabevent.Stoplight { return d.stoplight }

// PluginFactory is the C-ABI-equivalent symbol every plugin shared object
// must export: `func ThisPluginFactory(dir *registry.Directory) fabplugin.Plugin`.
// Declared as an alias, not a defined type: dynlib.Get's type assertion
// requires the loaded symbol's exact (unnamed) function type, which a
// defined type would never match across the plugin .so boundary.
type PluginFactory = func(dir *registry.Directory) fabplugin.Plugin

const pluginFactorySymbol = "ThisPluginFactory"

// LoadPluginList parses a colon-separated list of shared-object paths
// (grounded on boot/plugload.go's App.loadingPlug, generalized from a
// static plugin slice to dynamically loaded .so paths per spec.md §4.8
// step 3), and for each: loads the library, resolves ThisPluginFactory,
// constructs the plugin, and calls Start(). A failure at any step is a
// configuration error and aborts the remaining list.
func (d *Driver) LoadPluginList(colonSeparatedPaths string) error {
	paths := strings.Split(colonSeparatedPaths, ":")
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if err := d.loadOne(p); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) loadOne(path string) error {
	lib, err := dynlib.Create(path)
	if err != nil {
		return fmt.Errorf("runtime: loading plugin %q: %w", path, err)
	}
	factory, err := dynlib.Get[PluginFactory](lib, pluginFactorySymbol)
	if err != nil {
		return fmt.Errorf("runtime: resolving %s in %q: %w", pluginFactorySymbol, path, err)
	}
	d.libs = append(d.libs, lib)

	p := factory(d.dir)
	if p == nil {
		return fmt.Errorf("runtime: %s in %q returned a nil plugin", pluginFactorySymbol, path)
	}
	if err := p.Start(); err != nil {
		return fmt.Errorf("runtime: starting plugin %q from %q: %w", p.Name(), path, err)
	}
	d.plugins = append(d.plugins, p)
	d.helper.Infof("loaded plugin %q (id=%d) from %s", p.Name(), p.ID(), path)
	return nil
}

// Run starts the clock, signals ready, and blocks until should_stop is
// signalled — by a context cancellation (the caller's signal handler), the
// ILLIXR_RUN_DURATION timer, or a plugin calling Stoplight.SignalShouldStop
// directly. Run does not itself drive teardown: it returns as soon as
// should_stop fires so the caller can run Shutdown, exactly as
// cmd/xr-fabric/main.go does. Driving teardown from inside Run would
// deadlock, since Shutdown is the only thing that signals
// shutdown_complete and Run would otherwise be called before it.
func (d *Driver) Run(ctx context.Context) error {
	d.clock.Start()

	if envBool(EnvEnablePreSleep, false) {
		time.Sleep(100 * time.Millisecond)
	}
	d.stoplight.SignalReady()
	d.helper.Infof("runtime ready: %d plugin(s) loaded", len(d.plugins))

	if dur, ok := envDuration(EnvRunDuration, 0); ok && dur > 0 {
		timer := time.AfterFunc(dur, d.stoplight.SignalShouldStop)
		defer timer.Stop()
	}

	shouldStop := make(chan struct{})
	go func() {
		d.stoplight.WaitForShouldStop()
		close(shouldStop)
	}()

	select {
	case <-shouldStop:
		return nil
	case <-ctx.Done():
		d.stoplight.SignalShouldStop()
		return ctx.Err()
	}
}

// Shutdown stops every plugin in reverse construction order, stops the
// bus, signals shutdown_complete, and closes every loaded library — the
// symmetric teardown §4.8 specifies. Safe to call after Run returns.
func (d *Driver) Shutdown() error {
	var firstErr error
	for i := len(d.plugins) - 1; i >= 0; i-- {
		p := d.plugins[i]
		if err := p.Stop(); err != nil {
			d.helper.Errorf("stopping plugin %q: %v", p.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	d.plugins = nil

	d.bus.Stop()

	if !d.stoplight.CheckShutdownComplete() {
		d.stoplight.SignalShutdownComplete()
	}

	for _, lib := range d.libs {
		_ = lib.Close()
	}
	d.libs = nil

	if coalescer, ok := d.logger.(*reclog.CoalescingLogger); ok {
		_ = coalescer.Close()
	}
	if d.tracerShutdown != nil {
		_ = d.tracerShutdown(context.Background())
	}
	return firstErr
}

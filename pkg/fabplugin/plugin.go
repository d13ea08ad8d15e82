// Package fabplugin defines the plugin contract the runtime driver loads
// and the ThreadLoop helper most plugins build their work loop on top of.
// Grounded on the teacher's plugins/plugin.go and plugins/base.go: the
// inheritance hierarchy there (TypedBasePlugin embedded by every concrete
// plugin) becomes composition here, per spec.md's Redesign Flags — a
// plugin holds a *Base rather than extending it.
package fabplugin

import (
	"fmt"

	"github.com/go-lynx/xr-fabric/pkg/guid"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
	"github.com/go-lynx/xr-fabric/pkg/registry"
)

// pluginNamespace is the GUID namespace every plugin's process-unique ID
// is claimed from.
const pluginNamespace = 1

// Plugin is the minimal contract the runtime driver requires: a name and
// ID for logging/diagnostics, and the two lifecycle hooks it calls in
// construction order (Start) and reverse construction order (Stop).
type Plugin interface {
	Name() string
	ID() uint64
	Start() error
	Stop() error
}

// Base is the composable foundation every plugin embeds. It is
// constructed with (name, directory), retrieves the record logger and
// GUID generator the driver registered, and claims a process-unique ID.
// Concrete plugins hold a *Base field and forward Name/ID/Start to it,
// overriding Stop (and adding Start-time behavior) as needed — there is
// no inheritance to override through, only composition and explicit
// forwarding.
type Base struct {
	name string
	dir  *registry.Directory
	id   uint64

	logger reclog.Logger
}

// NewBase constructs a Base, claiming a process-unique ID from the
// directory's registered guid.Generator and record logger.
func NewBase(name string, dir *registry.Directory) *Base {
	ids := registry.MustLookup[*guid.Generator](dir)
	logger := registry.MustLookup[reclog.Logger](dir)
	return &Base{
		name:   name,
		dir:    dir,
		id:     ids.Get(pluginNamespace, 0, 0),
		logger: logger,
	}
}

// Name returns the plugin's configured name.
func (b *Base) Name() string { return b.name }

// ID returns the plugin's process-unique ID.
func (b *Base) ID() uint64 { return b.id }

// Directory returns the service directory the plugin was constructed
// with, for looking up other services (clock, bus, peer plugins).
func (b *Base) Directory() *registry.Directory { return b.dir }

// Logger returns the record logger the plugin was constructed with.
func (b *Base) Logger() reclog.Logger { return b.logger }

// Start emits the plugin_start record. Concrete plugins that embed Base
// and override Start should call this first.
func (b *Base) Start() error {
	return b.logger.Log(reclog.NewRecord(reclog.PluginStartHeader, b.id, b.name))
}

// Stop is the no-op default; ThreadLoop and concrete plugins override it.
func (b *Base) Stop() error { return nil }

var _ Plugin = (*Base)(nil)

// ErrNotAPlugin describes a factory that did not produce a Plugin. Nothing
// in this module returns it: the runtime loaders report a nil plugin or a
// mistyped factory symbol with errors of their own.
var ErrNotAPlugin = fmt.Errorf("fabplugin: factory did not return a Plugin")

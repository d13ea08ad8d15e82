package runtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-lynx/xr-fabric/pkg/dynlib"
	"github.com/go-lynx/xr-fabric/pkg/fabplugin"
	"github.com/go-lynx/xr-fabric/pkg/registry"
)

// Factory is the external "Monado-style embedding" interface: a caller
// that already runs its own process loop and only wants the fabric's
// dynamic-loading/plugin-construction machinery, without a Driver driving
// the Stoplight and Clock on its behalf. It wraps the same dynlib/
// fabplugin primitives LoadPluginList uses internally.
type Factory struct {
	dir *registry.Directory

	mu      sync.Mutex
	libs    []*dynlib.Lib
	plugins []fabplugin.Plugin
}

// NewFactory wraps dir, the directory the embedding caller has already
// populated with whatever services its plugins expect to find.
func NewFactory(dir *registry.Directory) *Factory {
	return &Factory{dir: dir}
}

// LoadSO loads a single shared object, resolves ThisPluginFactory,
// constructs the plugin, and starts it, returning the constructed plugin.
func (f *Factory) LoadSO(path string) (fabplugin.Plugin, error) {
	lib, err := dynlib.Create(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: loading %q: %w", path, err)
	}
	factory, err := dynlib.Get[PluginFactory](lib, pluginFactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("runtime: resolving %s in %q: %w", pluginFactorySymbol, path, err)
	}
	p := factory(f.dir)
	if p == nil {
		return nil, fmt.Errorf("runtime: %s in %q returned a nil plugin", pluginFactorySymbol, path)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("runtime: starting plugin %q from %q: %w", p.Name(), path, err)
	}

	f.mu.Lock()
	f.libs = append(f.libs, lib)
	f.plugins = append(f.plugins, p)
	f.mu.Unlock()
	return p, nil
}

// LoadSOList loads every colon-separated path in order, stopping at the
// first failure.
func (f *Factory) LoadSOList(colonSeparatedPaths string) ([]fabplugin.Plugin, error) {
	var loaded []fabplugin.Plugin
	for _, p := range strings.Split(colonSeparatedPaths, ":") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		plugin, err := f.LoadSO(p)
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, plugin)
	}
	return loaded, nil
}

// LoadPluginFactory resolves and returns a plugin's factory function
// without constructing or starting it, for callers that want to control
// construction themselves (e.g. to pass extra arguments the ABI doesn't
// carry).
func (f *Factory) LoadPluginFactory(path string) (PluginFactory, error) {
	lib, err := dynlib.Create(path)
	if err != nil {
		return nil, fmt.Errorf("runtime: loading %q: %w", path, err)
	}
	factory, err := dynlib.Get[PluginFactory](lib, pluginFactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("runtime: resolving %s in %q: %w", pluginFactorySymbol, path, err)
	}
	f.mu.Lock()
	f.libs = append(f.libs, lib)
	f.mu.Unlock()
	return factory, nil
}

// Wait stops every plugin this factory constructed, in reverse order, and
// closes their libraries. The embedding caller is responsible for driving
// its own stoplight/shutdown signal before calling Wait.
func (f *Factory) Wait() error {
	f.mu.Lock()
	plugins := f.plugins
	libs := f.libs
	f.plugins = nil
	f.libs = nil
	f.mu.Unlock()

	var firstErr error
	for i := len(plugins) - 1; i >= 0; i-- {
		if err := plugins[i].Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, lib := range libs {
		_ = lib.Close()
	}
	return firstErr
}

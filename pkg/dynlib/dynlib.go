// Package dynlib loads a plugin shared object, resolves its factory symbol,
// and owns the library's lifetime. Go's standard "plugin" package is the
// only mechanism on the target platforms (linux, darwin) for opening an
// arbitrary shared object and resolving symbols by name at runtime; no
// third-party library in the example corpus performs raw dlopen/dlsym, so
// this component is one of the few places the fabric reaches for the
// standard library by necessity rather than convenience (see DESIGN.md).
package dynlib

import (
	"fmt"
	pluginpkg "plugin"

	"github.com/google/uuid"
)

// Lib is an owned handle to a loaded shared object. Libraries must outlive
// any object they vended; the runtime driver enforces this by holding every
// Lib in a slice destroyed only after every plugin has been stopped.
type Lib struct {
	path string
	id   uuid.UUID
	p    *pluginpkg.Plugin
}

// Create opens the shared object at path. Go's plugin.Open resolves
// symbols eagerly at load time; there is no lazy/local visibility knob to
// set, unlike dlopen's RTLD_LAZY | RTLD_LOCAL. Failure carries the OS
// diagnostic.
func Create(path string) (*Lib, error) {
	p, err := pluginpkg.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dynlib: open(%q): %w", path, err)
	}
	return &Lib{path: path, id: uuid.New(), p: p}, nil
}

// Path returns the filesystem path this library was opened from.
func (l *Lib) Path() string { return l.path }

// ID returns the correlation ID assigned to this library for log joins
// across the loader/driver boundary.
func (l *Lib) ID() uuid.UUID { return l.id }

// Lookup resolves a symbol, raising on lookup failure.
func (l *Lib) Lookup(symbol string) (pluginpkg.Symbol, error) {
	sym, err := l.p.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("dynlib: lookup(%q) in %q: %w", symbol, l.path, err)
	}
	return sym, nil
}

// MustLookup resolves a symbol or panics — a configuration error that
// should fail the process fast at startup rather than be recovered.
func (l *Lib) MustLookup(symbol string) pluginpkg.Symbol {
	sym, err := l.Lookup(symbol)
	if err != nil {
		panic(err)
	}
	return sym
}

// Get resolves symbol and asserts it has type T, the typed convenience
// mirroring dynamic_lib::get<T>.
func Get[T any](l *Lib, symbol string) (T, error) {
	var zero T
	sym, err := l.Lookup(symbol)
	if err != nil {
		return zero, err
	}
	typed, ok := sym.(T)
	if !ok {
		return zero, fmt.Errorf("dynlib: symbol %q in %q has the wrong type", symbol, l.path)
	}
	return typed, nil
}

// Close releases the driver's reference to the library. The stdlib plugin
// package has no facility to unload a shared object once opened (unlike
// dlclose), so Close is a documented no-op kept only so the driver's
// teardown sequence (§4.8: "dynamic libraries are closed after all plugins
// are destructed") has something to call symmetrically; the process's
// address space keeps the library mapped until exit.
func (l *Lib) Close() error {
	return nil
}

// Package registry provides the service directory: a threadsafe,
// type-keyed map from interface identity to a long-lived shared service
// instance, so independently-loaded plugins can locate each other's
// capabilities without knowing the concrete implementation. Modeled on the
// resource map in app/runtime.go (TypedRuntimePlugin.resources), generalized
// to the reader-writer-lock semantics spec.md §4.5 requires explicitly.
package registry

import (
	"fmt"
	"reflect"
	"sync"
)

// Directory is the type-keyed service map. The zero value is not usable;
// use NewDirectory.
type Directory struct {
	mu       sync.RWMutex
	services map[reflect.Type]any
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{services: make(map[reflect.Type]any)}
}

func keyFor[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register associates the interface type T with impl. Registration is
// one-shot per key; a duplicate registration is a programming error and
// panics immediately, mirroring phonebook::register_impl's assert.
func Register[T any](d *Directory, impl T) {
	key := keyFor[T]()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.services[key]; exists {
		panic(fmt.Errorf("registry: %s already registered", key))
	}
	d.services[key] = impl
}

// Lookup returns the implementation registered for T, or an error if none
// was registered or the stored value cannot be cast to T.
func Lookup[T any](d *Directory) (T, error) {
	var zero T
	key := keyFor[T]()
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.services[key]
	if !ok {
		return zero, fmt.Errorf("registry: no implementation registered for %s", key)
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("registry: implementation for %s has the wrong type", key)
	}
	return typed, nil
}

// MustLookup returns the implementation for T or panics — a programming
// error, not a recoverable runtime condition, per spec.md §7.
func MustLookup[T any](d *Directory) T {
	v, err := Lookup[T](d)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether an implementation is registered for T.
func Has[T any](d *Directory) bool {
	key := keyFor[T]()
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.services[key]
	return ok
}

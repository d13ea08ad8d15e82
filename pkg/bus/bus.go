// Package bus implements the fabric's named-topic registry: typed
// publish/subscribe channels, a latest-value cache per topic, buffered
// pull-readers, and the process-wide config environment the rest of the
// fabric reads through. Grounded on the teacher's app/events package —
// the dispatch mechanics (kelindar/event fan-out, ants worker pool) are
// adapted directly from app/events/lynx_event_bus.go, generalized from a
// fixed small set of BusType/EventType enums to caller-named, caller-typed
// topics.
package bus

import (
	"fmt"
	"reflect"
	"sync"

	ants "github.com/panjf2000/ants/v2"

	"github.com/go-lynx/xr-fabric/pkg/guid"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
)

// pluginNamespace is the GUID namespace nextID draws anonymous caller IDs
// from.
const pluginNamespace = 2

// Bus owns every registered Topic plus the shared worker pool their
// Subscriptions run on. The pool is not exposed outside the package.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*Topic

	pool   *ants.Pool
	logger reclog.Logger
	env    *envCache
	ids    *guid.Generator
}

// New constructs a Bus backed by a worker pool of the given size. logger
// may be nil, in which case per-topic callback/stop records are not
// emitted.
func New(poolSize int, logger reclog.Logger) (*Bus, error) {
	if poolSize <= 0 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("bus: creating worker pool: %w", err)
	}
	return &Bus{
		topics: make(map[string]*Topic),
		pool:   pool,
		logger: logger,
		env:    newEnvCache(),
		ids:    guid.NewGenerator(),
	}, nil
}

// TryRegisterTopic returns the Topic registered under name, creating it
// with T's type tag if this is the first call for that name. A later call
// with a different T is a configuration error — "first caller wins the
// type tag", exactly as spec'd.
func TryRegisterTopic[T any](b *Bus, name string) (*Topic, error) {
	tag := reflect.TypeOf((*T)(nil)).Elem()

	b.mu.RLock()
	existing, ok := b.topics[name]
	b.mu.RUnlock()
	if ok {
		if existing.typeTag != tag {
			return nil, fmt.Errorf("bus: topic %q already registered with type %s, cannot reuse as %s",
				name, existing.typeTag, tag)
		}
		return existing, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.topics[name]; ok {
		if existing.typeTag != tag {
			return nil, fmt.Errorf("bus: topic %q already registered with type %s, cannot reuse as %s",
				name, existing.typeTag, tag)
		}
		return existing, nil
	}
	t := newTopic(name, tag, b.pool, b.logger)
	b.topics[name] = t
	return t, nil
}

// nextID mints a caller ID for callers that don't already carry a
// plugin-assigned one. Nothing in the module calls it.
func (b *Bus) nextID() uint64 {
	return b.ids.Get(pluginNamespace, 0, 0)
}

// Writer is a type-safe handle for publishing values of type T onto a
// topic. Plugins obtain one via bus.NewWriter; the underlying *Topic
// still performs the reflect.Type check at Put time, since the generic
// instantiation itself cannot cross the plugin .so ABI boundary.
type Writer[T any] struct {
	topic *Topic
}

// NewWriter returns a Writer[T] for name, registering the topic with T's
// type tag if this is the first caller.
func NewWriter[T any](b *Bus, name string) (*Writer[T], error) {
	t, err := TryRegisterTopic[T](b, name)
	if err != nil {
		return nil, err
	}
	return &Writer[T]{topic: t}, nil
}

// Put publishes value as the next iteration on the topic. Publishing
// surrenders the value: the same value is shared with the latest-value
// ring and every subscriber, so a caller must not mutate anything it
// references (a pointer, slice or map) after Put. Put does not check this
// at runtime.
func (w *Writer[T]) Put(value T) error {
	iter := w.topic.latestIndex.Load()
	return w.topic.put(value, iter)
}

// Topic returns the underlying untyped Topic, for callers that need the
// reflect.Type tag or direct Schedule access.
func (w *Writer[T]) Topic() *Topic { return w.topic }

// Reader is a type-safe handle for reading the latest value published on
// a topic.
type Reader[T any] struct {
	topic *Topic
}

// NewReader returns a Reader[T] for name, registering the topic with T's
// type tag if this is the first caller.
func NewReader[T any](b *Bus, name string) (*Reader[T], error) {
	t, err := TryRegisterTopic[T](b, name)
	if err != nil {
		return nil, err
	}
	return &Reader[T]{topic: t}, nil
}

// Get returns the most recently published value and its iteration
// number, or ok=false if nothing has been published yet. This is
// get_nullable from spec.md §7.
func (r *Reader[T]) Get() (value T, iterationNo uint64, ok bool) {
	h, has := r.topic.latest()
	if !has {
		return value, 0, false
	}
	typed, assertOK := h.value.(T)
	if !assertOK {
		return value, 0, false
	}
	return typed, h.iterationNo, true
}

// GetRO is get_ro from spec.md §7: like Get, but panics if nothing has
// been published on the topic yet instead of returning ok=false. For
// callers that know, by construction, that a value must already exist.
func (r *Reader[T]) GetRO() (value T, iterationNo uint64) {
	value, iterationNo, ok := r.Get()
	if !ok {
		panic(fmt.Errorf("bus: GetRO on topic %q: no value has been published yet", r.topic.name))
	}
	return value, iterationNo
}

// Schedule registers a callback-driven subscription for pluginID on
// name's topic, creating the topic with T's type tag if this is the
// first caller. The callback runs on the bus's shared worker pool, never
// synchronously with Put.
func Schedule[T any](b *Bus, pluginID uint64, name string, cb func(value T, iterationNo uint64)) (*Subscription, error) {
	t, err := TryRegisterTopic[T](b, name)
	if err != nil {
		return nil, err
	}
	return t.schedule(pluginID, func(event any, iterationNo uint64) {
		typed, ok := event.(T)
		if !ok {
			return
		}
		cb(typed, iterationNo)
	}), nil
}

// NewBufferedReader registers a pull-based subscription for pluginID on
// name's topic, creating the topic with T's type tag if this is the first
// caller. The reader's queue is unbounded, so there is no capacity to
// configure — it is the escape hatch for consumers that must not miss an
// event.
func NewBufferedReader[T any](b *Bus, pluginID uint64, name string) (*BufferedReader, error) {
	t, err := TryRegisterTopic[T](b, name)
	if err != nil {
		return nil, err
	}
	return t.newBufferedReader(pluginID), nil
}

// Topic returns the topic registered under name, or nil if none has been
// registered yet.
func (b *Bus) Topic(name string) (*Topic, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.topics[name]
	return t, ok
}

// Stop tears down every registered topic: every subscription is joined
// after draining and its final counters logged, every buffered reader's
// queue is closed (unblocking any goroutine parked in Dequeue), and the
// shared worker pool is released.
func (b *Bus) Stop() {
	b.mu.Lock()
	topics := make([]*Topic, 0, len(b.topics))
	for _, t := range b.topics {
		topics = append(topics, t)
	}
	b.topics = make(map[string]*Topic)
	b.mu.Unlock()

	for _, t := range topics {
		t.stop()
	}
	if b.pool != nil {
		b.pool.Release()
	}
}

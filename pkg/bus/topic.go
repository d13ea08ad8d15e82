package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	kelindarEvent "github.com/kelindar/event"
	ants "github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-lynx/xr-fabric/pkg/netbackend"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
)

// eventHandle is a single published value plus the iteration count it was
// published under; stored in the topic's latest-value ring.
type eventHandle struct {
	value       any
	iterationNo uint64
}

// topicEvent is the payload kelindar/event dispatches through a topic's
// private Dispatcher. Every topic owns its own Dispatcher (rather than
// sharing one bus-wide dispatcher keyed by event type, the way the
// teacher's LynxEventBus does for its fixed EventType enum) because a
// topic's payload type is caller-defined and only known at the first
// TryRegisterTopic call.
type topicEvent struct {
	handle      eventHandle
	publishedAt time.Time
}

// Type satisfies kelindar/event's dispatch contract. Every topicEvent
// published on a given topic's dispatcher carries the same tag, so
// Subscribe (not SubscribeTo) is used to fan out to every subscriber.
func (topicEvent) Type() uint32 { return 1 }

// Topic is a single named, type-checked channel. The first caller to
// register a name via Bus.TryRegisterTopic fixes its type tag; every
// subsequent Reader/Writer/Subscription on that name must agree with it.
type Topic struct {
	name    string
	typeTag reflect.Type

	mu   sync.RWMutex
	subs []*Subscription
	bufs []*BufferedReader

	latestRing  [256]atomic.Pointer[eventHandle]
	latestIndex atomic.Uint64

	dispatcher *kelindarEvent.Dispatcher
	pool       *ants.Pool
	logger     reclog.Logger

	// netCfg/netAEAD are set by NewNetworkWriter and consumed by
	// DeserializeAndPut (see network.go); guarded by mu like subs/bufs.
	netCfg  netbackend.TopicConfig
	netAEAD aead

	stopped atomic.Bool
}

func newTopic(name string, typeTag reflect.Type, pool *ants.Pool, logger reclog.Logger) *Topic {
	return &Topic{
		name:       name,
		typeTag:    typeTag,
		dispatcher: kelindarEvent.NewDispatcher(),
		pool:       pool,
		logger:     logger,
	}
}

// Name returns the topic's registered name.
func (t *Topic) Name() string { return t.name }

// TypeTag returns the reflect.Type every value Put on this topic must be
// assignable to. Crossing the plugin-ABI boundary loses static generic
// type information, so this is the runtime check that replaces it.
func (t *Topic) TypeTag() reflect.Type { return t.typeTag }

func (t *Topic) checkType(v any) error {
	if !reflect.TypeOf(v).AssignableTo(t.typeTag) {
		return fmt.Errorf("bus: topic %q expects %s, got %s", t.name, t.typeTag, reflect.TypeOf(v))
	}
	return nil
}

// put publishes value under the given iteration number: stores it in the
// latest-value ring, then fans it out to every registered subscription and
// buffered reader. The ring write order (store slot, then advance the
// index) matches the tolerated benign race described for the C++ original:
// a reader may observe a stale index momentarily but never a torn slot.
func (t *Topic) put(value any, iterationNo uint64) error {
	if t.stopped.Load() {
		return fmt.Errorf("bus: topic %q is stopped", t.name)
	}
	if err := t.checkType(value); err != nil {
		return err
	}
	h := &eventHandle{value: value, iterationNo: iterationNo}
	slot := t.latestIndex.Load() % uint64(len(t.latestRing))
	t.latestRing[slot].Store(h)
	t.latestIndex.Add(1)

	t.mu.RLock()
	bufs := t.bufs
	t.mu.RUnlock()
	for _, b := range bufs {
		b.deliver(*h)
	}

	kelindarEvent.Publish(t.dispatcher, topicEvent{handle: *h, publishedAt: time.Now()})
	return nil
}

// latest returns the most recently published value, or false if nothing
// has been published yet.
func (t *Topic) latest() (eventHandle, bool) {
	idx := t.latestIndex.Load()
	if idx == 0 {
		return eventHandle{}, false
	}
	slot := (idx - 1) % uint64(len(t.latestRing))
	h := t.latestRing[slot].Load()
	if h == nil {
		return eventHandle{}, false
	}
	return *h, true
}

// schedule registers a callback-driven subscription, submitting its
// run-loop to the bus's shared worker pool. pluginID identifies the
// caller for the switchboard_callback log record.
func (t *Topic) schedule(pluginID uint64, cb func(event any, iterationNo uint64)) *Subscription {
	sub := &Subscription{
		topic:    t,
		pluginID: pluginID,
		cb:       cb,
		queue:    newUnboundedQueue[topicEvent](),
		done:     make(chan struct{}),
	}
	cancel := kelindarEvent.Subscribe(t.dispatcher, func(ev topicEvent) {
		sub.queue.push(ev)
		sub.enqueued.Add(1)
	})
	sub.cancel = cancel

	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()

	if t.pool != nil {
		_ = t.pool.Submit(sub.run)
	} else {
		go sub.run()
	}
	return sub
}

// newBufferedReader registers a pull-based subscriber: values arrive in an
// unbounded FIFO the caller drains explicitly via Dequeue/DequeueTimeout,
// rather than via a callback. Buffered readers never drop events; they are
// the escape hatch for consumers that must not miss one.
func (t *Topic) newBufferedReader(pluginID uint64) *BufferedReader {
	b := &BufferedReader{
		topic:    t,
		pluginID: pluginID,
		queue:    newUnboundedQueue[eventHandle](),
	}
	t.mu.Lock()
	t.bufs = append(t.bufs, b)
	t.mu.Unlock()
	return b
}

// stop tears the topic down: every subscription's run-loop is joined after
// draining its remaining events and logging its switchboard_topic_stop
// record, every buffered reader's queue is closed (unblocking any goroutine
// parked in Dequeue), and the subscriber lists are cleared. Every later put
// returns an error. Safe to call more than once.
func (t *Topic) stop() {
	if !t.stopped.CompareAndSwap(false, true) {
		return
	}
	t.mu.Lock()
	subs := t.subs
	bufs := t.bufs
	t.subs = nil
	t.bufs = nil
	t.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	for _, b := range bufs {
		b.queue.close()
	}
	_ = t.dispatcher.Close()
}

// subscriptionIdlePoll is the timed-dequeue interval every subscription
// worker polls at, matching spec.md's wait_dequeue_timed(100 ms): short
// enough to notice should_stop promptly, long enough not to spin.
const subscriptionIdlePoll = 100 * time.Millisecond

// Subscription is a callback-driven reader of a topic, created via
// Schedule. Matches the switchboard reader pattern:
// the fabric invokes the plugin's callback on a worker goroutine, never
// the publisher's.
type Subscription struct {
	topic    *Topic
	pluginID uint64
	cb       func(event any, iterationNo uint64)
	cancel   func()

	queue    *unboundedQueue[topicEvent]
	done     chan struct{}
	stopping atomic.Bool

	enqueued   atomic.Uint64
	dequeued   atomic.Uint64
	idleCycles atomic.Uint64
}

func (s *Subscription) run() {
	defer close(s.done)
	tracer := otel.Tracer("github.com/go-lynx/xr-fabric/pkg/bus")
	for {
		ev, res := s.queue.popTimeout(subscriptionIdlePoll)
		switch res {
		case dequeueClosed:
			return
		case dequeueTimedOut:
			s.idleCycles.Add(1)
			continue
		}

		s.dequeued.Add(1)
		if s.stopping.Load() {
			// stop() was called while this event was still queued: drain it
			// without invoking the callback, matching the spec's "worker
			// drains its queue, discarding events" stop sequence.
			continue
		}

		wallStart := time.Now()
		_, span := tracer.Start(context.Background(), "topic.callback",
			trace.WithAttributes(
				attribute.Int64("plugin_id", int64(s.pluginID)),
				attribute.String("topic_name", s.topic.name),
				attribute.Int64("iteration_no", int64(ev.handle.iterationNo)),
			))
		s.invoke(ev)
		span.End()
		wallStop := time.Now()
		if s.topic.logger != nil {
			// Go has no portable per-goroutine CPU-time clock (unlike
			// getrusage(RUSAGE_THREAD) in the original), so cpu_start/
			// cpu_stop record wall-clock nanoseconds since the Unix epoch
			// as the nearest available substitute.
			_ = s.topic.logger.Log(reclog.NewRecord(reclog.SwitchboardCallbackHeader,
				s.pluginID, s.topic.name, ev.handle.iterationNo,
				time.Duration(wallStart.UnixNano()), time.Duration(wallStop.UnixNano()),
				wallStart, wallStop))
		}
	}
}

func (s *Subscription) invoke(ev topicEvent) {
	// A panicking callback is not recovered here: the pool's PanicHandler
	// (left nil by default) or the runtime's default crash behavior applies.
	// Recovering silently here would paper over a plugin bug.
	s.cb(ev.handle.value, ev.handle.iterationNo)
}

// stop cancels the kelindar subscription, closes the queue so the run-loop
// drains any remaining events (discarding them, per spec) and exits, joins
// that goroutine, then logs a switchboard_topic_stop record with final
// counters. Safe to call more than once.
func (s *Subscription) stop() {
	if !s.stopping.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.close()
	<-s.done
	if s.topic.logger != nil {
		_ = s.topic.logger.Log(reclog.NewRecord(reclog.SwitchboardTopicStopHeader,
			s.pluginID, s.topic.name, s.enqueued.Load(), s.dequeued.Load(), s.idleCycles.Load()))
	}
}

// BufferedReader is a pull-based subscriber: Put delivers values into an
// unbounded FIFO instead of invoking a callback, for plugins that want to
// drain a topic on their own schedule (e.g. from inside a ThreadLoop
// iteration) rather than be invoked asynchronously. It is the escape hatch
// for consumers that must not miss an event: the queue never drops.
type BufferedReader struct {
	topic    *Topic
	pluginID uint64
	queue    *unboundedQueue[eventHandle]
}

func (b *BufferedReader) deliver(h eventHandle) {
	b.queue.push(h)
}

// Dequeue returns the next queued value, blocking until one arrives or the
// topic is stopped, in which case ok is false.
func (b *BufferedReader) Dequeue() (value any, iterationNo uint64, ok bool) {
	h, ok := b.queue.pop()
	if !ok {
		return nil, 0, false
	}
	return h.value, h.iterationNo, true
}

// DequeueTimeout returns the next queued value, or ok=false if none arrives
// within d or the topic is stopped first.
func (b *BufferedReader) DequeueTimeout(d time.Duration) (value any, iterationNo uint64, ok bool) {
	h, res := b.queue.popTimeout(d)
	if res != dequeueOK {
		return nil, 0, false
	}
	return h.value, h.iterationNo, true
}

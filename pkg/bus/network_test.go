package bus

import (
	"sync"
	"testing"

	"github.com/go-lynx/xr-fabric/pkg/netbackend"
)

type fakeBackend struct {
	mu        sync.Mutex
	networked map[string]netbackend.TopicConfig
	sent      [][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{networked: make(map[string]netbackend.TopicConfig)}
}

func (f *fakeBackend) IsTopicNetworked(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.networked[name]
	return ok
}

func (f *fakeBackend) TopicCreate(name string, cfg netbackend.TopicConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networked[name] = cfg
	return nil
}

func (f *fakeBackend) TopicSend(name string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}

func TestNetworkWriterFallsThroughWhenNotNetworked(t *testing.T) {
	b := newTestBus(t)
	backend := newFakeBackend()
	nw, err := NewNetworkWriter[pose](b, backend, "pose", netbackend.TopicConfig{Method: netbackend.BoundBinary}, nil)
	if err != nil {
		t.Fatalf("new network writer: %v", err)
	}
	if err := nw.Put(pose{X: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("expected no network sends for a non-networked topic, got %d", len(backend.sent))
	}
}

func TestNetworkWriterSendsWhenTopicNetworked(t *testing.T) {
	b := newTestBus(t)
	backend := newFakeBackend()
	if err := backend.TopicCreate("pose", netbackend.TopicConfig{Method: netbackend.BoundBinary}); err != nil {
		t.Fatalf("topic create: %v", err)
	}
	nw, err := NewNetworkWriter[pose](b, backend, "pose", netbackend.TopicConfig{Method: netbackend.BoundBinary}, nil)
	if err != nil {
		t.Fatalf("new network writer: %v", err)
	}
	if err := nw.Put(pose{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected exactly one network send, got %d", len(backend.sent))
	}
}

func TestNetworkWriterRejectsBadSealKey(t *testing.T) {
	b := newTestBus(t)
	backend := newFakeBackend()
	_, err := NewNetworkWriter[pose](b, backend, "pose", netbackend.TopicConfig{Method: netbackend.BoundBinary, Seal: true}, []byte("too-short"))
	if err == nil {
		t.Fatalf("expected error for an undersized seal key")
	}
}

func TestDeserializeAndPutRoundTripsGobPayload(t *testing.T) {
	b := newTestBus(t)
	backend := newFakeBackend()
	cfg := netbackend.TopicConfig{Method: netbackend.BoundBinary}
	if err := backend.TopicCreate("pose", cfg); err != nil {
		t.Fatalf("topic create: %v", err)
	}
	nw, err := NewNetworkWriter[pose](b, backend, "pose", cfg, nil)
	if err != nil {
		t.Fatalf("new network writer: %v", err)
	}
	if err := nw.Put(pose{X: 1, Y: 2, Z: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one network send, got %d", len(backend.sent))
	}

	topic, ok := b.Topic("pose")
	if !ok {
		t.Fatalf("expected topic %q to exist", "pose")
	}
	if err := topic.DeserializeAndPut(backend.sent[0], cfg); err != nil {
		t.Fatalf("deserialize and put: %v", err)
	}

	r, err := NewReader[pose](b, "pose")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	got, _, ok := r.Get()
	if !ok || got != (pose{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("unexpected value after deserialize and put: %+v ok=%v", got, ok)
	}
}

func TestDeserializeAndPutRoundTripsSealedPayload(t *testing.T) {
	b := newTestBus(t)
	backend := newFakeBackend()
	cfg := netbackend.TopicConfig{Method: netbackend.BoundBinary, Seal: true}
	if err := backend.TopicCreate("pose", cfg); err != nil {
		t.Fatalf("topic create: %v", err)
	}
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	nw, err := NewNetworkWriter[pose](b, backend, "pose", cfg, key)
	if err != nil {
		t.Fatalf("new network writer: %v", err)
	}
	if err := nw.Put(pose{X: 4, Y: 5, Z: 6}); err != nil {
		t.Fatalf("put: %v", err)
	}

	topic, _ := b.Topic("pose")
	if err := topic.DeserializeAndPut(backend.sent[0], cfg); err != nil {
		t.Fatalf("deserialize and put: %v", err)
	}

	r, err := NewReader[pose](b, "pose")
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	got, _, ok := r.Get()
	if !ok || got != (pose{X: 4, Y: 5, Z: 6}) {
		t.Fatalf("unexpected value after deserialize and put: %+v ok=%v", got, ok)
	}
}

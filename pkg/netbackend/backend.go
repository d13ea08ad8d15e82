// Package netbackend declares the contract a concrete network transport
// must satisfy to carry topics across process/host boundaries. The fabric
// ships no real transport of its own — spec.md §4.9/Non-goals explicitly
// keeps the wire protocol and discovery mechanism external — so this
// package is a seam, not an implementation, mirroring how the teacher
// keeps plugins/plugin.go's ResourceLifecycle contract-only and lets
// concrete plugins (plugins/grpc, plugins/redis) supply the substance.
package netbackend

import "fmt"

// SerializationMethod selects how a topic's payload is encoded on the wire.
type SerializationMethod int

const (
	// BoundBinary uses encoding/gob of the published value; the receiving
	// topic decodes it into its own registered type.
	BoundBinary SerializationMethod = iota
	// RawBytes passes the payload through unmodified; the publishing
	// plugin is responsible for framing it.
	RawBytes
)

func (m SerializationMethod) String() string {
	switch m {
	case BoundBinary:
		return "bound_binary"
	case RawBytes:
		return "raw_bytes"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// TopicConfig describes how a single topic should be carried by a backend.
type TopicConfig struct {
	Method SerializationMethod
	// Seal requests chacha20poly1305 sealing of the serialized payload;
	// the key is the sealKey argument given to bus.NewNetworkWriter.
	Seal bool
}

// Backend is the contract a network transport implements. The runtime
// driver registers one in the service directory (pkg/registry) under this
// interface type: the no-op backend below unless another is supplied.
// Callers pass a Backend to pkg/bus's NewNetworkWriter; with the no-op
// backend (or a nil one) every topic behaves as process-local only.
type Backend interface {
	// IsTopicNetworked reports whether name has been registered for
	// network distribution via TopicCreate.
	IsTopicNetworked(name string) bool
	// TopicCreate registers name for network distribution under cfg.
	// Calling it twice for the same name with a different cfg is a
	// configuration error.
	TopicCreate(name string, cfg TopicConfig) error
	// TopicSend hands a serialized payload to the transport. Backends
	// own their own delivery semantics (best-effort, at-least-once,
	// ordering) — the fabric only guarantees the payload it receives
	// matches what TopicCreate's Method produced.
	TopicSend(name string, payload []byte) error
}

// noopBackend is the default Backend: every topic is reported as
// non-networked and sends are rejected, so pkg/bus's NetworkWriter
// degrades to a local-only no-op rather than panicking when no transport
// plugin has registered one.
type noopBackend struct{}

// Noop returns the default backend used when no transport is configured.
func Noop() Backend { return noopBackend{} }

func (noopBackend) IsTopicNetworked(string) bool { return false }

func (noopBackend) TopicCreate(name string, _ TopicConfig) error {
	return fmt.Errorf("netbackend: no transport configured, cannot network topic %q", name)
}

func (noopBackend) TopicSend(name string, _ []byte) error {
	return fmt.Errorf("netbackend: no transport configured, cannot send on topic %q", name)
}

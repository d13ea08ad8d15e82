package bus

import (
	"bytes"
	"crypto/rand"
	"encoding/gob"
	"fmt"
	"io"
	"reflect"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/go-lynx/xr-fabric/pkg/netbackend"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
)

// aead is the subset of cipher.AEAD the network envelope needs for sealing
// and unsealing payloads. chacha20poly1305.New returns a cipher.AEAD, a
// superset of this.
type aead interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
}

// networkSendFailureHeader records network-send failures for a topic; a
// send failure never fails the local Put, so this is the only trace of it.
var networkSendFailureHeader = reclog.NewRecordHeader("network_send_failed",
	reclog.Col("topic_name", ""),
	reclog.Col("reason", ""),
)

func reclogWarning(topicName string, err error) reclog.Record {
	return reclog.NewRecord(networkSendFailureHeader, topicName, err.Error())
}

// NetworkWriter wraps a Writer[T] with an optional network transport: if
// the backend reports the topic as networked, Put also serializes the
// value and hands it to netbackend.Backend.TopicSend. The original's
// Boost-compatible reflective archive has no Go equivalent, so
// encoding/gob — itself a reflection-driven, self-describing binary
// codec — is the direct substitute for BoundBinary (see DESIGN.md Open
// Question resolution); RawBytes passes a []byte payload through as-is.
type NetworkWriter[T any] struct {
	writer  *Writer[T]
	backend netbackend.Backend
	cfg     netbackend.TopicConfig
	name    string
	aead    aead
}

// NewNetworkWriter returns a NetworkWriter[T] for name. sealKey, if
// non-nil, must be chacha20poly1305.KeySize bytes and enables payload
// sealing when cfg.Seal is set.
func NewNetworkWriter[T any](b *Bus, backend netbackend.Backend, name string, cfg netbackend.TopicConfig, sealKey []byte) (*NetworkWriter[T], error) {
	w, err := NewWriter[T](b, name)
	if err != nil {
		return nil, err
	}
	nw := &NetworkWriter[T]{writer: w, backend: backend, cfg: cfg, name: name}
	if cfg.Seal {
		if len(sealKey) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("netwriter: sealing enabled for topic %q but key is %d bytes, want %d",
				name, len(sealKey), chacha20poly1305.KeySize)
		}
		aead, err := chacha20poly1305.New(sealKey)
		if err != nil {
			return nil, fmt.Errorf("netwriter: initializing cipher for topic %q: %w", name, err)
		}
		nw.aead = aead
	}
	w.topic.configureNetwork(cfg, nw.aead)
	return nw, nil
}

// Put publishes value locally, then — if the backend reports this topic
// as networked — serializes and sends it over the transport as well.
// Errors returned are from the local Put; network send failures are
// logged as a warning record rather than failing the call, matching the
// "best-effort wire delivery, guaranteed local delivery" contract spec.md
// implies by keeping the transport external and advisory.
func (nw *NetworkWriter[T]) Put(value T) error {
	if err := nw.writer.Put(value); err != nil {
		return err
	}
	if nw.backend == nil || !nw.backend.IsTopicNetworked(nw.name) {
		return nil
	}
	payload, err := nw.encode(value)
	if err != nil {
		if nw.writer.topic.logger != nil {
			_ = nw.writer.topic.logger.Log(reclogWarning(nw.name, err))
		}
		return nil
	}
	if err := nw.backend.TopicSend(nw.name, payload); err != nil && nw.writer.topic.logger != nil {
		_ = nw.writer.topic.logger.Log(reclogWarning(nw.name, err))
	}
	return nil
}

func (nw *NetworkWriter[T]) encode(value T) ([]byte, error) {
	var buf bytes.Buffer
	switch nw.cfg.Method {
	case netbackend.RawBytes:
		raw, ok := any(value).([]byte)
		if !ok {
			return nil, fmt.Errorf("netwriter: topic %q configured RawBytes but value is %T, not []byte", nw.name, value)
		}
		buf.Write(raw)
	default:
		if err := gob.NewEncoder(&buf).Encode(value); err != nil {
			return nil, fmt.Errorf("netwriter: gob-encoding topic %q: %w", nw.name, err)
		}
	}
	if nw.aead == nil {
		return buf.Bytes(), nil
	}
	nonce := make([]byte, nw.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("netwriter: generating nonce for topic %q: %w", nw.name, err)
	}
	sealed := nw.aead.Seal(nonce, nonce, buf.Bytes(), nil)
	return sealed, nil
}

// configureNetwork records the codec a NetworkWriter registered for this
// topic, so a backend can later call DeserializeAndPut by topic name alone
// without needing T — the reflect.Type tag plus this config is enough to
// reconstruct the value.
func (t *Topic) configureNetwork(cfg netbackend.TopicConfig, a aead) {
	t.mu.Lock()
	t.netCfg = cfg
	t.netAEAD = a
	t.mu.Unlock()
}

// DeserializeAndPut reconstructs an event from a wire payload and publishes
// it locally — the receive-side counterpart of NetworkWriter.Put, and the
// operation spec.md describes as "the backend calls the topic's
// deserialize_and_put(bytes, config)". A network backend only knows a
// topic by name, never by its Go type parameter, so this decodes using the
// topic's own reflect.Type tag (gob.Decoder.DecodeValue accepts a
// reflect.Value of any dynamic type) rather than a generic method.
func (t *Topic) DeserializeAndPut(payload []byte, cfg netbackend.TopicConfig) error {
	t.mu.RLock()
	a := t.netAEAD
	t.mu.RUnlock()

	plain := payload
	if cfg.Seal {
		if a == nil {
			return fmt.Errorf("bus: topic %q received a sealed payload but has no AEAD configured", t.name)
		}
		nonceSize := a.NonceSize()
		if len(payload) < nonceSize {
			return fmt.Errorf("bus: topic %q sealed payload is %d bytes, shorter than nonce size %d",
				t.name, len(payload), nonceSize)
		}
		nonce, ciphertext := payload[:nonceSize], payload[nonceSize:]
		opened, err := a.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return fmt.Errorf("bus: unsealing payload for topic %q: %w", t.name, err)
		}
		plain = opened
	}

	var value any
	switch cfg.Method {
	case netbackend.RawBytes:
		value = append([]byte(nil), plain...)
	default:
		ptr := reflect.New(t.typeTag)
		if err := gob.NewDecoder(bytes.NewReader(plain)).DecodeValue(ptr.Elem()); err != nil {
			return fmt.Errorf("bus: gob-decoding topic %q: %w", t.name, err)
		}
		value = ptr.Elem().Interface()
	}

	iter := t.latestIndex.Load()
	return t.put(value, iter)
}

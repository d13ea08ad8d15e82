package netbackend

import "testing"

func TestNoopBackend(t *testing.T) {
	b := Noop()
	if b.IsTopicNetworked("pose") {
		t.Fatalf("noop backend should report every topic as non-networked")
	}
	if err := b.TopicCreate("pose", TopicConfig{Method: BoundBinary}); err == nil {
		t.Fatalf("expected noop backend to reject TopicCreate")
	}
	if err := b.TopicSend("pose", []byte("x")); err == nil {
		t.Fatalf("expected noop backend to reject TopicSend")
	}
}

func TestSerializationMethodString(t *testing.T) {
	if BoundBinary.String() != "bound_binary" {
		t.Fatalf("unexpected String() for BoundBinary: %s", BoundBinary.String())
	}
	if RawBytes.String() != "raw_bytes" {
		t.Fatalf("unexpected String() for RawBytes: %s", RawBytes.String())
	}
}

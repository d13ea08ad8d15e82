package bus

import (
	"os"
	"testing"
)

func TestSetEnvWritesThroughToOS(t *testing.T) {
	b, err := New(1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Stop()

	const key = "XR_FABRIC_TEST_SETENV"
	defer os.Unsetenv(key)

	b.SetEnv(key, "hello")
	if got := b.GetEnv(key, "default"); got != "hello" {
		t.Fatalf("expected cached value 'hello', got %q", got)
	}
	if got := os.Getenv(key); got != "hello" {
		t.Fatalf("expected SetEnv to write through to the OS environment, got %q", got)
	}
}

func TestGetEnvFallsThroughToOSOnMiss(t *testing.T) {
	b, err := New(1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Stop()

	const key = "XR_FABRIC_TEST_OSFALLTHROUGH"
	os.Setenv(key, "from-os")
	defer os.Unsetenv(key)

	if got := b.GetEnv(key, "default"); got != "from-os" {
		t.Fatalf("expected fallthrough to OS env, got %q", got)
	}
}

func TestTypedEnvAccessorsDefaultOnParseFailure(t *testing.T) {
	b, err := New(1, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Stop()

	b.SetEnv("XR_FABRIC_TEST_BOOL", "not-a-bool")
	defer os.Unsetenv("XR_FABRIC_TEST_BOOL")
	if got := b.GetEnvBool("XR_FABRIC_TEST_BOOL", true); got != true {
		t.Fatalf("expected default true on parse failure, got %v", got)
	}

	b.SetEnv("XR_FABRIC_TEST_INT", "42")
	defer os.Unsetenv("XR_FABRIC_TEST_INT")
	if got := b.GetEnvInt64("XR_FABRIC_TEST_INT", -1); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	b.SetEnv("XR_FABRIC_TEST_FLOAT", "3.5")
	defer os.Unsetenv("XR_FABRIC_TEST_FLOAT")
	if got := b.GetEnvFloat64("XR_FABRIC_TEST_FLOAT", -1); got != 3.5 {
		t.Fatalf("expected 3.5, got %v", got)
	}

	b.SetEnv("XR_FABRIC_TEST_BYTE", "x")
	defer os.Unsetenv("XR_FABRIC_TEST_BYTE")
	if got := b.GetEnvByte("XR_FABRIC_TEST_BYTE", 'd'); got != 'x' {
		t.Fatalf("expected 'x', got %q", got)
	}
}

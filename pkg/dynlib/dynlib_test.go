package dynlib

import "testing"

func TestCreateFailsOnMissingPath(t *testing.T) {
	_, err := Create("/nonexistent/path/libnone.so")
	if err == nil {
		t.Fatalf("expected an error loading a nonexistent shared object")
	}
}

package runtime

import (
	"testing"

	"github.com/go-lynx/xr-fabric/pkg/registry"
)

func TestFactoryLoadSOFailsOnMissingPath(t *testing.T) {
	f := NewFactory(registry.NewDirectory())
	if _, err := f.LoadSO("/nonexistent/plugin.so"); err == nil {
		t.Fatalf("expected an error loading a nonexistent plugin")
	}
}

func TestFactoryLoadSOListStopsAtFirstFailure(t *testing.T) {
	f := NewFactory(registry.NewDirectory())
	loaded, err := f.LoadSOList("/nonexistent/a.so:/nonexistent/b.so")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no plugins loaded, got %d", len(loaded))
	}
}

func TestFactoryWaitOnEmptyFactory(t *testing.T) {
	f := NewFactory(registry.NewDirectory())
	if err := f.Wait(); err != nil {
		t.Fatalf("wait on an empty factory should succeed: %v", err)
	}
}

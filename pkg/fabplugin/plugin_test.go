package fabplugin

import (
	"sync"
	"testing"

	"github.com/go-lynx/xr-fabric/pkg/guid"
	"github.com/go-lynx/xr-fabric/pkg/reclog"
	"github.com/go-lynx/xr-fabric/pkg/registry"
)

type recordingLogger struct {
	mu   sync.Mutex
	logs []reclog.Record
}

func (l *recordingLogger) Log(r reclog.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, r)
	return nil
}

func (l *recordingLogger) LogBatch(rs []reclog.Record) error {
	for _, r := range rs {
		_ = l.Log(r)
	}
	return nil
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.logs)
}

func newTestDirectory() (*registry.Directory, *recordingLogger) {
	dir := registry.NewDirectory()
	registry.Register[*guid.Generator](dir, guid.NewGenerator())
	logger := &recordingLogger{}
	registry.Register[reclog.Logger](dir, logger)
	return dir, logger
}

func TestBaseStartEmitsRecord(t *testing.T) {
	dir, logger := newTestDirectory()
	b := NewBase("demo", dir)
	if b.Name() != "demo" {
		t.Fatalf("unexpected name: %s", b.Name())
	}
	if err := b.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if logger.count() != 1 {
		t.Fatalf("expected 1 log record, got %d", logger.count())
	}
}

func TestBaseClaimsUniqueIDs(t *testing.T) {
	dir, _ := newTestDirectory()
	a := NewBase("a", dir)
	b := NewBase("b", dir)
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct plugin IDs, both got %d", a.ID())
	}
}

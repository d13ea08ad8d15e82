// Package guid allocates process-unique identifiers within a 3-level
// namespace, used to tag plugin IDs and correlate records across record
// logger tables. Modeled after the namespaced-identifier conventions in
// the teacher's plugin ID scheme (plugins/id.go), but numeric rather than
// string-formatted, per the fabric's record-column contract.
package guid

import "sync"

// namespace identifies the (ns, subns, subsubns) tuple a counter belongs to.
type namespace struct {
	ns, subns, subsubns uint32
}

// Generator returns a counter unique within any given 3-level namespace.
type Generator struct {
	mu       sync.Mutex
	counters map[namespace]uint64
}

// NewGenerator returns a Generator with no allocated counters.
func NewGenerator() *Generator {
	return &Generator{counters: make(map[namespace]uint64)}
}

// Get returns the next value in the given namespace, starting at zero.
func (g *Generator) Get(ns, subns, subsubns uint32) uint64 {
	key := namespace{ns, subns, subsubns}
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.counters[key]
	g.counters[key] = v + 1
	return v
}

// Package reclog implements the fabric's structured record logging
// contract: a schema'd header, type-checked records, and a coalescing sink
// that batches inserts the way a write-only database insertion thread
// would. Modeled on the teacher's batching primitives (log/batch_writer.go)
// and its per-type event bookkeeping (app/events/history.go,
// app/events/object_pool.go).
package reclog

import (
	"fmt"
	"reflect"
)

// Column names a single field of a record and the reflect.Type every value
// in that column must match.
type Column struct {
	Name string
	Type reflect.Type
}

// RecordHeader fixes a schema: a globally-unique name plus an ordered list
// of columns. Two headers with the same name are expected to describe the
// same columns; comparing by pointer is the fast path, Equal is the slow
// structural fallback.
type RecordHeader struct {
	Name    string
	Columns []Column
}

// NewRecordHeader constructs a header from (name, type) pairs, inferring the
// reflect.Type for each column from a representative sample value. This
// mirrors the source's `{column_name, typeid(T)}` pairs without requiring
// callers to spell out reflect.TypeOf at every call site.
func NewRecordHeader(name string, columns ...Column) *RecordHeader {
	return &RecordHeader{Name: name, Columns: columns}
}

// Col is a convenience constructor: Col("plugin_id", int64(0)) infers the
// column's type from the zero-value sample.
func Col(name string, sample any) Column {
	return Column{Name: name, Type: reflect.TypeOf(sample)}
}

// Equal compares two headers structurally.
func (h *RecordHeader) Equal(other *RecordHeader) bool {
	if h == other {
		return true
	}
	if h == nil || other == nil {
		return false
	}
	if h.Name != other.Name || len(h.Columns) != len(other.Columns) {
		return false
	}
	for i := range h.Columns {
		if h.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

func (h *RecordHeader) String() string {
	s := "record_header " + h.Name + " { "
	for _, c := range h.Columns {
		s += c.Type.String() + " " + c.Name + "; "
	}
	return s + "}"
}

// Record is a header plus a slice of type-erased values matching it.
type Record struct {
	Header *RecordHeader
	Values []any

	// used tracks whether this record's payload has been handed to a
	// logger — the Go analogue of the source's data_use_indicator.
	// CoalescingLogger.Log sets it on its own copy of the record when it
	// buffers the row; the caller's Record value is not modified.
	used bool
}

// NewRecord constructs a Record, asserting the value count and each
// value's runtime type against the header. A mismatch is a programming
// error: the fabric panics immediately rather than attempting to coerce,
// per the spec's "wrong column type in a record -> assert/terminate" rule.
func NewRecord(header *RecordHeader, values ...any) Record {
	if len(values) != len(header.Columns) {
		panic(fmt.Errorf("reclog: record %s expects %d columns, got %d", header.Name, len(header.Columns), len(values)))
	}
	for i, v := range values {
		want := header.Columns[i].Type
		got := reflect.TypeOf(v)
		if got == nil || !got.AssignableTo(want) {
			panic(fmt.Errorf("reclog: record %s column %s expects %s, got %v", header.Name, header.Columns[i].Name, want, got))
		}
	}
	return Record{Header: header, Values: values}
}

// MarkUsed flags the record as consumed. Safe to call more than once.
func (r *Record) MarkUsed() { r.used = true }

// Used reports whether MarkUsed has been called.
func (r *Record) Used() bool { return r.used }

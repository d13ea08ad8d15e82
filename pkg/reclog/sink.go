package reclog

import (
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
)

// StdSink writes each flushed batch as a structured log line through a
// kratos log.Helper, the way app/log.go wires LynxApp's default logger.
// It stands in for the "write-only database insertion thread" the spec
// describes — a real deployment swaps this Sink for one backed by an
// actual datastore without touching CoalescingLogger.
type StdSink struct {
	helper *log.Helper
}

// NewStdSink wraps a kratos logger.
func NewStdSink(logger log.Logger) *StdSink {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &StdSink{helper: log.NewHelper(logger)}
}

// Insert logs one line per row, keyed by column name, matching the
// Infof-based logging idiom used throughout the teacher's fabric code.
func (s *StdSink) Insert(header *RecordHeader, rows [][]any) error {
	for _, row := range rows {
		line := header.Name
		for i, col := range header.Columns {
			line += fmt.Sprintf(" %s=%v", col.Name, row[i])
		}
		s.helper.Infof("%s", line)
	}
	return nil
}

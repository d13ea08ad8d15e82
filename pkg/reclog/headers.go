package reclog

import "time"

// The three schemas the fabric itself emits, with the exact columns named
// in spec.md §6. Downstream plugins define their own headers freely with
// NewRecordHeader.
var (
	PluginStartHeader = NewRecordHeader("plugin_start",
		Col("plugin_id", uint64(0)),
		Col("plugin_name", ""),
	)

	SwitchboardCallbackHeader = NewRecordHeader("switchboard_callback",
		Col("plugin_id", uint64(0)),
		Col("topic_name", ""),
		Col("iteration_no", uint64(0)),
		Col("cpu_start", time.Duration(0)),
		Col("cpu_stop", time.Duration(0)),
		Col("wall_start", time.Time{}),
		Col("wall_stop", time.Time{}),
	)

	SwitchboardTopicStopHeader = NewRecordHeader("switchboard_topic_stop",
		Col("plugin_id", uint64(0)),
		Col("topic_name", ""),
		Col("enqueued", uint64(0)),
		Col("dequeued", uint64(0)),
		Col("idle_cycles", uint64(0)),
	)
)

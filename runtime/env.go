// Package runtime hosts the driver that owns the process's core services
// (clock, record logger, stoplight, bus, service directory), loads the
// configured plugin list, and runs the standard start/wait/stop sequence.
// Grounded on boot/bootstrap.go and boot/plugload.go's App.Run/loadingPlug
// split, generalized from Lynx's kratos-server bootstrap to the fabric's
// plugin-list-and-stoplight sequence spec.md §1/§4.8 describes.
package runtime

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Recognized environment variables, per spec.md §6 plus the ambient
// additions SPEC_FULL.md §6 calls for.
const (
	// EnvPlugins is a colon-separated list of shared-object paths to load
	// at startup, in the order given.
	EnvPlugins = "ILLIXR_PLUGINS"
	// EnvRunDuration, if set, triggers SignalShouldStop this many seconds
	// after the clock starts.
	EnvRunDuration = "ILLIXR_RUN_DURATION"
	// EnvLogLevel sets the kratos logger's minimum level.
	EnvLogLevel = "ILLIXR_LOG_LEVEL"
	// EnvEnablePreSleep, if true, makes the driver sleep briefly before
	// signaling ready, giving attached debuggers/profilers a window.
	EnvEnablePreSleep = "ILLIXR_ENABLE_PRE_SLEEP"
	// EnvStdoutMetrics is a recognized name only: nothing in this module
	// reads it, and no metrics are written to stdout because of it.
	EnvStdoutMetrics = "ILLIXR_STDOUT_METRICS"
	// EnvEnableVerboseErrors is a recognized name only: nothing in this
	// module reads it, and error diagnostics are the same whatever its
	// value.
	EnvEnableVerboseErrors = "ILLIXR_ENABLE_VERBOSE_ERRORS"
	// EnvOTLPEndpoint, if set, enables OpenTelemetry span export to the
	// given OTLP/gRPC collector endpoint for per-callback tracing.
	EnvOTLPEndpoint = "ILLIXR_OTLP_ENDPOINT"
	// EnvWorkerPoolSize overrides the bus's shared ants.Pool size.
	EnvWorkerPoolSize = "ILLIXR_WORKER_POOL_SIZE"
)

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def, false
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

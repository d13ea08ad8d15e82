// Command xr-fabric is the fabric's standalone runtime entry point: it
// constructs a runtime.Driver, loads the configured plugin list, and runs
// until a shutdown signal arrives. Grounded on boot/application.go and
// boot/logger.go's flag+signal+kratos-logger bootstrap, generalized from a
// kratos *kratos.App lifecycle to the fabric's stoplight-gated one.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-lynx/xr-fabric/runtime"
)

var flagPlugins string

func init() {
	flag.StringVar(&flagPlugins, "plugins", os.Getenv(runtime.EnvPlugins),
		"colon-separated list of plugin shared-object paths to load at startup")
}

func newLogger() log.Logger {
	hostname, _ := os.Hostname()
	logger := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "xr-fabric",
		"service.host", hostname,
	)
	if level := os.Getenv(runtime.EnvLogLevel); level != "" {
		return log.NewFilter(logger, log.FilterLevel(log.ParseLevel(level)))
	}
	return logger
}

func main() {
	flag.Parse()
	logger := newLogger()
	helper := log.NewHelper(logger)

	driver, err := runtime.NewDriver(logger)
	if err != nil {
		helper.Fatalf("constructing runtime driver: %v", err)
	}

	if flagPlugins != "" {
		if err := driver.LoadPluginList(flagPlugins); err != nil {
			helper.Fatalf("loading plugin list: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	helper.Infof("xr-fabric starting, plugins=%q", flagPlugins)
	if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
		helper.Errorf("runtime exited with error: %v", err)
	}

	if err := driver.Shutdown(); err != nil {
		helper.Errorf("shutdown: %v", err)
		os.Exit(1)
	}
}

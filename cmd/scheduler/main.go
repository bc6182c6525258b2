package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/sim"
	"mote-scheduler/internal/tracing"
)

var log = logrus.WithField("prefix", "main")

const version = "0.3.0"

var appFlags = struct {
	Scenario  string
	LogLevel  string
	TraceFile string
}{}

func main() {
	app := &cli.App{
		Name:    "scheduler",
		Usage:   "computes TDMA slot schedules for tree-shaped mote deployments",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "scenario",
				Aliases:     []string{"s"},
				Usage:       "YAML or JSON scenario description",
				Value:       "scenario.yaml",
				EnvVars:     []string{"MOTE_SCHEDULER_SCENARIO"},
				Destination: &appFlags.Scenario,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "logging verbosity (trace, debug, info, warn, error); overrides the scenario",
				EnvVars:     []string{"MOTE_SCHEDULER_LOG_LEVEL"},
				Destination: &appFlags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "trace-file",
				Usage:       "write OpenTelemetry spans to this file",
				Destination: &appFlags.TraceFile,
			},
		},
		Commands: []*cli.Command{generateCmd, publishCmd, serveCmd},
		After: func(_ *cli.Context) error {
			return tracing.Shutdown(context.Background())
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.WithError(err).Error("Scheduler failed")
		os.Exit(1)
	}
}

// setup loads the scenario and applies the ambient settings shared by every
// command.
func setup() (*sim.Scenario, error) {
	sc, err := sim.LoadScenario(appFlags.Scenario)
	if err != nil {
		return nil, err
	}
	level := sc.Logging.Level
	if appFlags.LogLevel != "" {
		level = appFlags.LogLevel
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	logrus.SetLevel(parsed)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000000"})

	traceFile := appFlags.TraceFile
	if traceFile == "" && sc.Tracing.Enabled {
		traceFile = sc.Tracing.OutputFile
	}
	if traceFile != "" {
		if err := tracing.Init("mote-scheduler", version, traceFile); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// observe feeds every bus event into the collector until the bus is closed
// or the returned stop function runs.
func observe(bus *eb.EventBus, coll *metrics.Collector) func() {
	ch := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		coll.Consume(ch)
	}()
	return func() {
		bus.Unsubscribe(ch)
		<-done
	}
}

func flushMetrics(sc *sim.Scenario, coll *metrics.Collector) {
	if sc.Logging.MetricsFile == "" {
		return
	}
	if err := coll.Flush(sc.Logging.MetricsFile); err != nil {
		log.WithError(err).Warn("Could not flush metrics")
		return
	}
	log.WithField("file", sc.Logging.MetricsFile).Debug("Flushed metrics")
}

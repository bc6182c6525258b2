package main

import (
	"time"

	"github.com/urfave/cli/v2"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/server"
	"mote-scheduler/internal/utils"
)

var serveFlags = struct {
	Addr    string
	Monitor time.Duration
}{}

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "serve the schedule over HTTP and stream scheduler events over websocket",
	Action: cliActionServe,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address; overrides the scenario",
			Destination: &serveFlags.Addr,
		},
		&cli.DurationFlag{
			Name:        "monitor",
			Usage:       "log goroutine and heap usage at this interval (debug level)",
			Destination: &serveFlags.Monitor,
		},
	}, scheduleFlags...),
}

func cliActionServe(c *cli.Context) error {
	sc, err := setup()
	if err != nil {
		return err
	}
	applyOverrides(sc)
	if serveFlags.Addr != "" {
		sc.Server.Addr = serveFlags.Addr
	}

	bus := eb.NewEventBus()
	coll := metrics.NewCollector()
	stop := observe(bus, coll)
	defer func() {
		stop()
		flushMetrics(sc, coll)
	}()

	if serveFlags.Monitor > 0 {
		utils.MonitorResources(c.Context, serveFlags.Monitor)
	}

	srv, err := server.New(sc, bus, coll)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(c.Context, sc.Server.Addr)
}

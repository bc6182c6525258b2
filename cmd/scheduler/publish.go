package main

import (
	"time"

	"github.com/urfave/cli/v2"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/mqtt"
	"mote-scheduler/internal/sim"
)

var publishFlags = struct {
	Broker string
	Wait   time.Duration
}{}

var publishCmd = &cli.Command{
	Name:   "publish",
	Usage:  "compute the schedule and push every mote's record to the MQTT broker",
	Action: cliActionPublish,
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:        "broker",
			Usage:       "broker URL, e.g. tcp://localhost:1883; overrides the scenario",
			Destination: &publishFlags.Broker,
		},
		&cli.DurationFlag{
			Name:        "wait",
			Usage:       "how long to collect acknowledgements from the motes",
			Destination: &publishFlags.Wait,
		},
	}, scheduleFlags...),
}

func cliActionPublish(c *cli.Context) error {
	sc, err := setup()
	if err != nil {
		return err
	}
	applyOverrides(sc)
	if publishFlags.Broker != "" {
		sc.MQTT.Broker = publishFlags.Broker
	}

	bus := eb.NewEventBus()
	coll := metrics.NewCollector()
	stop := observe(bus, coll)
	defer func() {
		stop()
		flushMetrics(sc, coll)
	}()

	result, err := sim.NewRunner(sc, bus, coll).Run(c.Context)
	if err != nil {
		return err
	}

	manager, err := mqtt.New(sc.MQTT.Broker, sc.MQTT.ClientID)
	if err != nil {
		return err
	}
	defer manager.Disconnect()

	distributor := mqtt.NewDistributor(manager, bus, sc.MQTT.TopicPrefix, sc.MQTT.QoS)
	if publishFlags.Wait > 0 {
		if err := manager.Subscribe(distributor.AckTopic(), sc.MQTT.QoS, mqtt.ProcessAckMessage(bus)); err != nil {
			return err
		}
	}
	if err := distributor.Publish(result); err != nil {
		return err
	}

	if publishFlags.Wait > 0 {
		log.WithField("wait", publishFlags.Wait).Info("Waiting for acknowledgements")
		select {
		case <-time.After(publishFlags.Wait):
		case <-c.Context.Done():
		}
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/render"
	"mote-scheduler/internal/sim"
)

var generateFlags = struct {
	Policy   string
	Offset   int
	Period   int
	SlotSize int
	Switch   bool
	Output   string
}{}

var scheduleFlags = []cli.Flag{
	&cli.StringFlag{
		Name:        "policy",
		Usage:       "send window policy, fixed or proportional; overrides the scenario",
		Destination: &generateFlags.Policy,
	},
	&cli.IntFlag{
		Name:        "offset",
		Usage:       "first usable slot, 0 or 1; overrides the scenario",
		Value:       -1,
		Destination: &generateFlags.Offset,
	},
	&cli.IntFlag{
		Name:        "period",
		Usage:       "period copied into the firmware table; overrides the scenario",
		Destination: &generateFlags.Period,
	},
	&cli.IntFlag{
		Name:        "slotsize",
		Usage:       "slot size copied into the firmware table; overrides the scenario",
		Destination: &generateFlags.SlotSize,
	},
}

var generateCmd = &cli.Command{
	Name:   "generate",
	Usage:  "compute the schedule and print the slot timeline followed by the firmware table",
	Action: cliActionGenerate,
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:        "switch",
			Usage:       "wrap the firmware table in a get_schedule function",
			Destination: &generateFlags.Switch,
		},
		&cli.StringFlag{
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "write to this file instead of stdout",
			Destination: &generateFlags.Output,
		},
	}, scheduleFlags...),
}

// applyOverrides copies the command line schedule flags onto the scenario.
func applyOverrides(sc *sim.Scenario) {
	f := generateFlags
	if f.Policy != "" {
		sc.Schedule.Policy = f.Policy
	}
	if f.Offset >= 0 {
		sc.Schedule.StartingOffset = f.Offset
	}
	if f.Period > 0 {
		sc.Firmware.Period = f.Period
	}
	if f.SlotSize > 0 {
		sc.Firmware.SlotSize = f.SlotSize
	}
}

func cliActionGenerate(c *cli.Context) error {
	sc, err := setup()
	if err != nil {
		return err
	}
	applyOverrides(sc)

	bus := eb.NewEventBus()
	coll := metrics.NewCollector()
	stop := observe(bus, coll)
	result, err := sim.NewRunner(sc, bus, coll).Run(c.Context)
	stop()
	flushMetrics(sc, coll)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if generateFlags.Output != "" {
		file, err := os.Create(generateFlags.Output)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}
	return writeResult(out, result, generateFlags.Switch)
}

// writeResult prints the timeline, a blank line, then the firmware table.
func writeResult(w io.Writer, result *sim.Result, wrap bool) error {
	for _, line := range result.Timeline {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	if wrap {
		_, err := io.WriteString(w, render.FirmwareSwitch(result.Plan.Root, result.Options))
		return err
	}
	for _, line := range result.Firmware {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

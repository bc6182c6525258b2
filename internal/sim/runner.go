package sim

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	eb "mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/metrics"
	"mote-scheduler/internal/node"
	"mote-scheduler/internal/packet"
	"mote-scheduler/internal/render"
	"mote-scheduler/internal/schedule"
	"mote-scheduler/internal/topology"
	"mote-scheduler/internal/tracing"
)

var log = logrus.WithField("prefix", "sim")

// Result is everything one run produced. It is read-only once returned.
type Result struct {
	RunID    uuid.UUID              `json:"run_id"`
	Plan     *schedule.Plan         `json:"-"`
	Length   int                    `json:"length"`
	Policy   schedule.Policy        `json:"policy"`
	Timeline []string               `json:"timeline"`
	Firmware []string               `json:"firmware"`
	Records  []packet.Record        `json:"records"`
	Options  render.FirmwareOptions `json:"-"`
}

type Runner struct {
	sc   *Scenario
	bus  *eb.EventBus
	coll *metrics.Collector
}

// NewRunner wires a scenario to an optional event bus and collector; either
// may be nil.
func NewRunner(sc *Scenario, bus *eb.EventBus, coll *metrics.Collector) *Runner {
	return &Runner{sc: sc, bus: bus, coll: coll}
}

// Run builds a fresh tree from the scenario, allocates it once and renders
// both outputs. Nothing is rendered when the topology or the schedule is
// rejected.
func (r *Runner) Run(ctx context.Context) (result *Result, err error) {
	runID := uuid.New()
	ctx, span := tracing.StartSpan(ctx, "schedule.run")
	span.WithAttributes(map[string]string{"run_id": runID.String(), "scenario": r.sc.Name})
	defer func() {
		if err != nil {
			r.bus.Publish(eb.Event{Type: eb.EventScheduleRejected, RunID: runID, Payload: err.Error()})
			log.WithError(err).WithField("run", runID).Error("Schedule rejected")
		}
		tracing.EndSpan(span, err)
	}()

	if err := r.sc.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	policy, _ := r.sc.Policy()
	allocator, err := schedule.New(
		schedule.WithPolicy(policy),
		schedule.WithStartingOffset(r.sc.Schedule.StartingOffset),
	)
	if err != nil {
		return nil, err
	}

	root, err := r.build(ctx, runID)
	if err != nil {
		return nil, err
	}
	plan, err := r.allocate(ctx, allocator, root)
	if err != nil {
		return nil, err
	}
	result = r.render(ctx, runID, plan)

	r.coll.Observe(plan)
	for _, record := range result.Records {
		record := record
		r.bus.Publish(eb.Event{Type: eb.EventMoteAllocated, RunID: runID, MoteID: record.DeviceID, ParentID: record.SendTo, Record: &record})
	}
	r.bus.Publish(eb.Event{Type: eb.EventScheduleComputed, RunID: runID, Length: plan.Length,
		Payload: fmt.Sprintf("%d motes, %s policy", len(result.Records), plan.Policy)})
	log.WithFields(logrus.Fields{
		"run":    runID,
		"motes":  len(result.Records),
		"length": plan.Length,
		"policy": plan.Policy,
	}).Info("Schedule computed")
	return result, nil
}

func (r *Runner) build(ctx context.Context, runID uuid.UUID) (root *node.Node, err error) {
	_, span := tracing.StartSpan(ctx, "topology.build")
	defer func() { tracing.EndSpan(span, err) }()

	root, err = topology.Build(&r.sc.Topology)
	if err != nil {
		return nil, err
	}
	root.FinalizeParentLinks(func(child, parent *node.Node) {
		if child == parent {
			log.WithField("mote", child.ID).Debug("Sink")
			return
		}
		log.WithFields(logrus.Fields{"mote": child.ID, "parent": parent.ID}).Debug("Linked mote")
		r.bus.Publish(eb.Event{Type: eb.EventMoteLinked, RunID: runID, MoteID: child.ID, ParentID: parent.ID})
	})
	span.WithInt("motes", root.Len())
	return root, nil
}

func (r *Runner) allocate(ctx context.Context, allocator *schedule.Allocator, root *node.Node) (plan *schedule.Plan, err error) {
	_, span := tracing.StartSpan(ctx, "schedule.allocate")
	defer func() { tracing.EndSpan(span, err) }()

	plan, err = allocator.Allocate(root)
	if err != nil {
		return nil, errors.Wrap(err, "allocate")
	}
	span.WithInt("length", plan.Length).WithAttributes(map[string]string{"policy": plan.Policy.String()})
	return plan, nil
}

func (r *Runner) render(ctx context.Context, runID uuid.UUID, plan *schedule.Plan) *Result {
	_, span := tracing.StartSpan(ctx, "schedule.render")
	defer tracing.EndSpan(span, nil)

	options := render.FirmwareOptions{
		Period:   r.sc.Firmware.Period,
		SlotSize: r.sc.Firmware.SlotSize,
		Policy:   plan.Policy,
	}
	return &Result{
		RunID:    runID,
		Plan:     plan,
		Length:   plan.Length,
		Policy:   plan.Policy,
		Timeline: render.Timeline(plan.Root, plan.Length),
		Firmware: render.Firmware(plan.Root, options),
		Records:  render.Records(plan.Root, options),
		Options:  options,
	}
}

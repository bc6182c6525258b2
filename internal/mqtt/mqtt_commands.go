package mqtt

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"mote-scheduler/internal/eventBus"
	"mote-scheduler/internal/node"
	"mote-scheduler/internal/packet"
	"mote-scheduler/internal/sim"
)

// Distributor pushes computed schedules to the motes through the broker.
type Distributor struct {
	pub    Publisher
	bus    *eventBus.EventBus
	prefix string
	qos    byte
}

func NewDistributor(pub Publisher, bus *eventBus.EventBus, prefix string, qos byte) *Distributor {
	return &Distributor{pub: pub, bus: bus, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// ScheduleTopic is where the retained record of one mote lives.
func (d *Distributor) ScheduleTopic(id uint32) string {
	return fmt.Sprintf("%s/%d/schedule", d.prefix, id)
}

// FrameTopic carries the binary schedule_t frame for gateways that forward
// raw packets to the radio.
func (d *Distributor) FrameTopic(id uint32) string {
	return fmt.Sprintf("%s/%d/frame", d.prefix, id)
}

// AckTopic matches the acknowledgements of every mote.
func (d *Distributor) AckTopic() string {
	return d.prefix + "/+/ack"
}

// Publish sends every record msgpack-encoded and retained, followed by its
// binary frame, then a JSON summary. Motes whose values do not fit the frame
// only get the msgpack record.
func (d *Distributor) Publish(result *sim.Result) error {
	sink := result.Plan.Root.ID
	hops := hopCounts(result.Plan.Root)
	motes := make([]uint32, 0, len(result.Records))
	for _, record := range result.Records {
		payload, err := packet.EncodeRecord(record)
		if err != nil {
			return err
		}
		topic := d.ScheduleTopic(record.DeviceID)
		if err := d.pub.Publish(topic, d.qos, true, payload); err != nil {
			return errors.Wrapf(err, "publish %s", topic)
		}
		if err := d.publishFrame(sink, record, hops[record.DeviceID]); err != nil {
			return err
		}
		record := record
		d.bus.Publish(eventBus.Event{
			Type:     eventBus.EventSchedulePublished,
			RunID:    result.RunID,
			MoteID:   record.DeviceID,
			ParentID: record.SendTo,
			Record:   &record,
			Payload:  topic,
		})
		motes = append(motes, record.DeviceID)
	}

	summary, err := json.Marshal(SummaryPayload{
		RunID:  result.RunID.String(),
		Length: result.Length,
		Policy: result.Policy.String(),
		Motes:  motes,
	})
	if err != nil {
		return err
	}
	if err := d.pub.Publish(d.prefix+"/summary", d.qos, true, summary); err != nil {
		return errors.Wrap(err, "publish summary")
	}
	log.WithField("motes", len(motes)).WithField("run", result.RunID).Info("Published schedule")
	return nil
}

func (d *Distributor) publishFrame(sink uint32, record packet.Record, hops int) error {
	frame, err := scheduleFrame(sink, record, hops)
	if errors.Is(err, packet.ErrFieldOverflow) {
		log.WithError(err).WithField("mote", record.DeviceID).Warn("Skipping binary frame")
		return nil
	}
	if err != nil {
		return err
	}
	topic := d.FrameTopic(record.DeviceID)
	if err := d.pub.Publish(topic, d.qos, true, frame); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	return nil
}

// scheduleFrame builds the radio frame of record sent from sink. The header
// holds a 16-bit source and an 8-bit hop count.
func scheduleFrame(sink uint32, record packet.Record, hops int) ([]byte, error) {
	if sink > math.MaxUint16 {
		return nil, errors.Wrapf(packet.ErrFieldOverflow, "mote %d sink=%d", record.DeviceID, sink)
	}
	if hops < 0 || hops > math.MaxUint8 {
		return nil, errors.Wrapf(packet.ErrFieldOverflow, "mote %d hops=%d", record.DeviceID, hops)
	}
	frame, _, err := packet.CreateSchedulePacket(uint16(sink), record, uint8(hops))
	return frame, err
}

func hopCounts(root *node.Node) map[uint32]int {
	hops := make(map[uint32]int)
	var walk func(n *node.Node, depth int)
	walk = func(n *node.Node, depth int) {
		hops[n.ID] = depth
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	walk(root, 0)
	return hops
}

// ProcessAckMessage handles messages coming from the "<prefix>/+/ack" topic.
func ProcessAckMessage(bus *eventBus.EventBus) func(mqtt.Client, mqtt.Message) {
	return func(client mqtt.Client, msg mqtt.Message) {
		var payload AckPayload
		if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Error parsing ack payload")
			return
		}
		runID, err := uuid.Parse(payload.RunID)
		if err != nil {
			log.WithError(err).WithField("mote", payload.MoteID).Warn("Invalid run_id in ack")
			return
		}
		bus.Publish(eventBus.Event{
			Type:    eventBus.EventScheduleDownloaded,
			RunID:   runID,
			MoteID:  payload.MoteID,
			Payload: msg.Topic(),
		})
		log.WithField("mote", payload.MoteID).Debug("Mote acknowledged schedule")
	}
}

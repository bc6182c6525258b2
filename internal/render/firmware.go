package render

import (
	"fmt"
	"strings"

	"mote-scheduler/internal/node"
	"mote-scheduler/internal/packet"
	"mote-scheduler/internal/schedule"
)

// FirmwareOptions carries the values passed through to the firmware table.
// Period and SlotSize do not influence the slot computation.
type FirmwareOptions struct {
	Period   int
	SlotSize int
	Policy   schedule.Policy
}

// Records returns the firmware record of every mote in post-order.
func Records(root *node.Node, options FirmwareOptions) []packet.Record {
	var records []packet.Record
	root.PostOrder(func(n *node.Node) {
		records = append(records, packet.NewRecord(n, options.Period, options.SlotSize))
	})
	return records
}

// Firmware renders one switch case per mote in post-order. send_done is only
// emitted for the proportional policy, where send windows are wider than one
// slot.
func Firmware(root *node.Node, options FirmwareOptions) []string {
	records := Records(root, options)
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, FirmwareEntry(r, options.Policy))
	}
	return lines
}

// FirmwareEntry renders the schedule_t literal of one record.
func FirmwareEntry(r packet.Record, policy schedule.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    case %d: return (schedule_t){ .device_id = %3d, .sendto = %3d, .period = %5d, .slotsize = %3d, .listen = %3d, .listen_ack = %3d, .send = %3d, ",
		r.DeviceID, r.DeviceID, r.SendTo, r.Period, r.SlotSize, r.Listen, r.ListenAck, r.Send)
	if policy == schedule.Proportional {
		fmt.Fprintf(&b, ".send_done = %3d, ", r.SendDone)
	}
	fmt.Fprintf(&b, ".send_ack = %3d };", r.SendAck)
	return b.String()
}

// FirmwareSwitch wraps the entries in a lookup function ready to paste into
// the firmware sources.
func FirmwareSwitch(root *node.Node, options FirmwareOptions) string {
	var b strings.Builder
	b.WriteString("schedule_t get_schedule(uint8_t id) {\n")
	b.WriteString("  switch (id) {\n")
	for _, line := range Firmware(root, options) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("    default: return (schedule_t){ 0 };\n")
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

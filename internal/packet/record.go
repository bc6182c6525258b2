package packet

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"mote-scheduler/internal/node"
)

// ErrFieldOverflow is returned when a record value does not fit the
// firmware's nx_uint8_t fields.
var ErrFieldOverflow = errors.New("packet: value does not fit schedule_t")

// Record is the firmware view of one mote's schedule. Unset slots are 0 and
// the sink sends to 0.
type Record struct {
	DeviceID  uint32 `json:"device_id" msgpack:"device_id"`
	SendTo    uint32 `json:"sendto" msgpack:"sendto"`
	Period    int    `json:"period" msgpack:"period"`
	SlotSize  int    `json:"slotsize" msgpack:"slotsize"`
	Listen    int    `json:"listen" msgpack:"listen"`
	ListenAck int    `json:"listen_ack" msgpack:"listen_ack"`
	Send      int    `json:"send" msgpack:"send"`
	SendDone  int    `json:"send_done" msgpack:"send_done"`
	SendAck   int    `json:"send_ack" msgpack:"send_ack"`
}

// NewRecord captures the schedule of n with the firmware pass-through values.
func NewRecord(n *node.Node, period, slotSize int) Record {
	return Record{
		DeviceID:  n.ID,
		SendTo:    n.SendTo(),
		Period:    period,
		SlotSize:  slotSize,
		Listen:    n.ListenStart.OrZero(),
		ListenAck: n.ListenAckAt.OrZero(),
		Send:      n.SendStart.OrZero(),
		SendDone:  n.SendDoneAt.OrZero(),
		SendAck:   n.SendAckAt.OrZero(),
	}
}

// MarshalBinary encodes the schedule_t layout: device_id, sendto, listen,
// listen_ack, send, send_done, send_ack, one byte each. Period and slot size
// are compiled into the firmware and are not part of the frame.
func (r Record) MarshalBinary() ([]byte, error) {
	fields := []struct {
		name  string
		value int64
	}{
		{"device_id", int64(r.DeviceID)},
		{"sendto", int64(r.SendTo)},
		{"listen", int64(r.Listen)},
		{"listen_ack", int64(r.ListenAck)},
		{"send", int64(r.Send)},
		{"send_done", int64(r.SendDone)},
		{"send_ack", int64(r.SendAck)},
	}
	buf := make([]byte, ScheduleSize)
	for i, field := range fields {
		if field.value < 0 || field.value > 0xFF {
			return nil, errors.Wrapf(ErrFieldOverflow, "mote %d %s=%d", r.DeviceID, field.name, field.value)
		}
		buf[i] = uint8(field.value)
	}
	return buf, nil
}

func (r *Record) UnmarshalBinary(buf []byte) error {
	if len(buf) < ScheduleSize {
		return fmt.Errorf("buffer too short for schedule_t")
	}
	r.DeviceID = uint32(buf[0])
	r.SendTo = uint32(buf[1])
	r.Listen = int(buf[2])
	r.ListenAck = int(buf[3])
	r.Send = int(buf[4])
	r.SendDone = int(buf[5])
	r.SendAck = int(buf[6])
	return nil
}

// EncodeRecord packs a record for broker delivery.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, errors.Wrapf(err, "encode record of mote %d", r.DeviceID)
	}
	return data, nil
}

// DecodeRecord reverses EncodeRecord.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return r, errors.Wrap(err, "decode record")
	}
	return r, nil
}

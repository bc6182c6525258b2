package packet

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Packet Types
const (
	PKT_SCHEDULE     uint8 = 0x20 // schedule_t for one mote
	PKT_SCHEDULE_ACK uint8 = 0x21 // mote confirms it stored its schedule
	PKT_SYNC         uint8 = 0x07 // AM_SYNC in the firmware
)

const (
	FLAG_RETAINED uint8 = 0x01
	FLAG_ROOT     uint8 = 0x02 // record belongs to the sink
)

const (
	HeaderSize   = 12
	ScheduleSize = 7

	BROADCAST_ADDR uint16 = 0xFFFF
)

// Header precedes every schedule distribution frame. Multi-byte fields are
// big-endian like the firmware's nx_ types.
type Header struct {
	DestNodeID uint16
	SrcNodeID  uint16
	PacketID   uint32
	PacketType uint8
	Flags      uint8
	HopCount   uint8
	Reserved   uint8
}

func (h *Header) Serialise() []byte {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint16(buf[0:2], h.DestNodeID)
	binary.BigEndian.PutUint16(buf[2:4], h.SrcNodeID)
	binary.BigEndian.PutUint32(buf[4:8], h.PacketID)
	buf[8] = h.PacketType
	buf[9] = h.Flags
	buf[10] = h.HopCount
	buf[11] = h.Reserved
	return buf
}

func (h *Header) Deserialise(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("buffer too short for Header")
	}
	h.DestNodeID = binary.BigEndian.Uint16(buf[0:2])
	h.SrcNodeID = binary.BigEndian.Uint16(buf[2:4])
	h.PacketID = binary.BigEndian.Uint32(buf[4:8])
	h.PacketType = buf[8]
	h.Flags = buf[9]
	h.HopCount = buf[10]
	h.Reserved = buf[11]
	return nil
}

// CreateSchedulePacket frames the record of one mote for delivery from src.
// The packet id is random unless one is supplied.
func CreateSchedulePacket(src uint16, record Record, hopCount uint8, packetID ...uint32) ([]byte, uint32, error) {
	body, err := record.MarshalBinary()
	if err != nil {
		return nil, 0, err
	}
	var pid uint32
	if len(packetID) > 0 {
		pid = packetID[0]
	} else {
		pid = rand.Uint32()
	}
	h := Header{
		DestNodeID: uint16(record.DeviceID),
		SrcNodeID:  src,
		PacketID:   pid,
		PacketType: PKT_SCHEDULE,
		HopCount:   hopCount,
	}
	if record.SendTo == 0 {
		h.Flags |= FLAG_ROOT
	}
	return append(h.Serialise(), body...), pid, nil
}

// ParseSchedulePacket splits a frame built by CreateSchedulePacket.
func ParseSchedulePacket(buf []byte) (Header, Record, error) {
	var h Header
	var r Record
	if err := h.Deserialise(buf); err != nil {
		return h, r, err
	}
	if h.PacketType != PKT_SCHEDULE {
		return h, r, fmt.Errorf("unexpected packet type 0x%02x", h.PacketType)
	}
	if err := r.UnmarshalBinary(buf[HeaderSize:]); err != nil {
		return h, r, err
	}
	return h, r, nil
}

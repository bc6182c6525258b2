package packet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mote-scheduler/internal/node"
)

func TestNewRecord(t *testing.T) {
	root := node.NewNode(1, node.NewNode(2)).FinalizeParentLinks()
	root.ListenStart = node.SlotAt(0)
	root.ListenAckAt = node.SlotAt(1)
	child := root.Children[0]
	child.SendStart = node.SlotAt(0)
	child.SendDoneAt = node.SlotAt(1)
	child.SendAckAt = node.SlotAt(1)

	assert.Equal(t, Record{DeviceID: 1, Period: 1000, SlotSize: 10, ListenAck: 1}, NewRecord(root, 1000, 10))
	assert.Equal(t, Record{DeviceID: 2, SendTo: 1, Period: 1000, SlotSize: 10, SendDone: 1, SendAck: 1}, NewRecord(child, 1000, 10))
}

func TestRecord_Binary(t *testing.T) {
	record := Record{DeviceID: 28, SendTo: 33, Period: 1000, SlotSize: 10, Listen: 0, ListenAck: 4, Send: 5, SendDone: 10, SendAck: 13}
	data, err := record.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{28, 33, 0, 4, 5, 10, 13}, data)

	var decoded Record
	require.NoError(t, decoded.UnmarshalBinary(data))
	record.Period, record.SlotSize = 0, 0
	assert.Equal(t, record, decoded)

	assert.Error(t, decoded.UnmarshalBinary(data[:3]))

	_, err = Record{DeviceID: 1, SendAck: 256}.MarshalBinary()
	assert.True(t, errors.Is(err, ErrFieldOverflow))
	assert.Contains(t, err.Error(), "send_ack=256")
}

func TestRecord_Msgpack(t *testing.T) {
	record := Record{DeviceID: 4, SendTo: 1, Period: 500, SlotSize: 20, Send: 12, SendDone: 13, SendAck: 15}
	data, err := EncodeRecord(record)
	require.NoError(t, err)
	decoded, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record, decoded)

	_, err = DecodeRecord([]byte{0xc1})
	assert.Error(t, err)
}

func TestSchedulePacket(t *testing.T) {
	record := Record{DeviceID: 15, SendTo: 1, Send: 14, SendDone: 15, SendAck: 15}
	frame, pid, err := CreateSchedulePacket(1, record, 2, 0xCAFE)
	require.NoError(t, err)
	assert.EqualValues(t, 0xCAFE, pid)
	assert.Len(t, frame, HeaderSize+ScheduleSize)

	header, decoded, err := ParseSchedulePacket(frame)
	require.NoError(t, err)
	assert.Equal(t, Header{DestNodeID: 15, SrcNodeID: 1, PacketID: 0xCAFE, PacketType: PKT_SCHEDULE, HopCount: 2}, header)
	assert.Equal(t, record, decoded)

	sink, _, err := CreateSchedulePacket(1, Record{DeviceID: 1, ListenAck: 15}, 0)
	require.NoError(t, err)
	header, _, err = ParseSchedulePacket(sink)
	require.NoError(t, err)
	assert.Equal(t, FLAG_ROOT, header.Flags&FLAG_ROOT)

	frame[8] = PKT_SYNC
	_, _, err = ParseSchedulePacket(frame)
	assert.Error(t, err)

	_, _, err = ParseSchedulePacket(frame[:4])
	assert.Error(t, err)
}

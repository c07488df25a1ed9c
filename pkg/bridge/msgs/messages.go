package msgs

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/softuart/pkg/uart"
)

// TypeID Groups
const (
	GroupLine uint32 = 0x00010000
)

// Type IDs
const (
	FrameEventTypeID      = TypeIDKindEvent | GroupLine | 0x0001
	TransmitRequestTypeID = TypeIDKindCommand | GroupLine | 0x0001
)

// FrameEvent reports a completed frame.
type FrameEvent struct {
	Device    string `protobuf:"bytes,1,opt,name=device,proto3" json:"device,omitempty"`
	Direction uint32 `protobuf:"varint,2,opt,name=direction,proto3" json:"direction,omitempty"`
	Value     uint32 `protobuf:"varint,3,opt,name=value,proto3" json:"value,omitempty"`
	StartTick uint32 `protobuf:"varint,4,opt,name=start_tick,json=startTick,proto3" json:"start_tick,omitempty"`
	EndTick   uint32 `protobuf:"varint,5,opt,name=end_tick,json=endTick,proto3" json:"end_tick,omitempty"`
	DutyCycle uint32 `protobuf:"varint,6,opt,name=duty_cycle,json=dutyCycle,proto3" json:"duty_cycle,omitempty"`
	Seq       uint64 `protobuf:"varint,7,opt,name=seq,proto3" json:"seq,omitempty"`
}

// NewFrameEvent creates a FrameEvent from a completed frame.
func NewFrameEvent(device string, seq uint64, rec uart.FrameRecord) *FrameEvent {
	return &FrameEvent{
		Device:    device,
		Direction: uint32(rec.Direction),
		Value:     uint32(rec.Value),
		StartTick: uint32(rec.Sample.Start),
		EndTick:   uint32(rec.Sample.End),
		DutyCycle: rec.Sample.Percent(),
		Seq:       seq,
	}
}

// Reset implements proto.Message.
func (m *FrameEvent) Reset() { *m = FrameEvent{} }

// String implements proto.Message.
func (m *FrameEvent) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*FrameEvent) ProtoMessage() {}

// TypeID implements Message.
func (m *FrameEvent) TypeID() uint32 { return FrameEventTypeID }

// Byte returns the frame value.
func (m *FrameEvent) Byte() byte { return byte(m.Value) }

// Dir returns the frame direction.
func (m *FrameEvent) Dir() uart.Direction { return uart.Direction(m.Direction) }

// TransmitRequest asks to transmit bytes.
type TransmitRequest struct {
	Data []byte `protobuf:"bytes,1,opt,name=data,proto3" json:"data,omitempty"`
}

// Reset implements proto.Message.
func (m *TransmitRequest) Reset() { *m = TransmitRequest{} }

// String implements proto.Message.
func (m *TransmitRequest) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*TransmitRequest) ProtoMessage() {}

// TypeID implements Message.
func (m *TransmitRequest) TypeID() uint32 { return TransmitRequestTypeID }

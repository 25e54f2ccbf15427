package protocol

import (
	"encoding/binary"
	"fmt"
)

// Filter mirrors the kernel's struct hci_ufilter, the value of the
// HCI_FILTER socket option.
// Layout: TypeMask(4) | EventMask(8) | Opcode(2), all little-endian.
type Filter struct {
	TypeMask  uint32
	EventMask [2]uint32
	Opcode    Opcode
}

// EventFilter passes every event packet and nothing else.
func EventFilter() Filter {
	return Filter{
		TypeMask:  1 << PacketTypeEvent,
		EventMask: [2]uint32{0xFFFFFFFF, 0xFFFFFFFF},
	}
}

func (f Filter) Bytes() []byte {
	b := make([]byte, FilterSize)
	binary.LittleEndian.PutUint32(b[0:4], f.TypeMask)
	binary.LittleEndian.PutUint32(b[4:8], f.EventMask[0])
	binary.LittleEndian.PutUint32(b[8:12], f.EventMask[1])
	binary.LittleEndian.PutUint16(b[12:14], uint16(f.Opcode))
	return b
}

func ParseFilter(b []byte) (Filter, error) {
	if len(b) != FilterSize {
		return Filter{}, fmt.Errorf("%w: filter length %d", ErrMalformedInput, len(b))
	}
	return Filter{
		TypeMask:  binary.LittleEndian.Uint32(b[0:4]),
		EventMask: [2]uint32{binary.LittleEndian.Uint32(b[4:8]), binary.LittleEndian.Uint32(b[8:12])},
		Opcode:    Opcode(binary.LittleEndian.Uint16(b[12:14])),
	}, nil
}

// Passes reports whether an event with the given code would reach the socket.
func (f Filter) Passes(code EventCode) bool {
	if f.TypeMask&(1<<PacketTypeEvent) == 0 {
		return false
	}
	c := uint32(code) & 63
	return f.EventMask[c>>5]&(1<<(c&31)) != 0
}

package protocol

import (
	"encoding/binary"
	"fmt"
)

// Event is a decoded HCI event. The concrete type is one of the event
// structs below; anything else decodes to *OtherEvent.
type Event interface {
	Code() EventCode
}

// CommandStatus: Status(1) | NumCommands(1) | Opcode(2)
type CommandStatus struct {
	Status      Status
	NumCommands uint8
	Opcode      Opcode
}

// CommandComplete: NumCommands(1) | Opcode(2) | ReturnParams(...)
// By convention the first return parameter is a status byte.
type CommandComplete struct {
	NumCommands  uint8
	Opcode       Opcode
	ReturnParams []byte
}

// ConnectionComplete: Status(1) | Handle(2) | Address(6) | LinkType(1) | Encryption(1)
type ConnectionComplete struct {
	Status     Status
	Handle     uint16
	Address    Address
	LinkType   uint8
	Encryption uint8
}

// AuthenticationComplete: Status(1) | Handle(2)
type AuthenticationComplete struct {
	Status Status
	Handle uint16
}

// DisconnectionComplete: Status(1) | Handle(2) | Reason(1)
type DisconnectionComplete struct {
	Status Status
	Handle uint16
	Reason uint8
}

// OtherEvent keeps events this package does not interpret as opaque bytes.
type OtherEvent struct {
	EventCode EventCode
	Params    []byte
}

func (*CommandStatus) Code() EventCode          { return EventCommandStatus }
func (*CommandComplete) Code() EventCode        { return EventCommandComplete }
func (*ConnectionComplete) Code() EventCode     { return EventConnectionComplete }
func (*AuthenticationComplete) Code() EventCode { return EventAuthenticationComplete }
func (*DisconnectionComplete) Code() EventCode  { return EventDisconnectionComplete }
func (e *OtherEvent) Code() EventCode           { return e.EventCode }

// Status returns the first return parameter, or StatusSuccess when the
// command returns nothing.
func (e *CommandComplete) Status() Status {
	if len(e.ReturnParams) == 0 {
		return StatusSuccess
	}
	return Status(e.ReturnParams[0])
}

// DecodeEvent parses one raw event frame. The three byte header (packet
// type, event code, parameter length) must agree with the buffer length and
// known events must carry their full fixed layout; otherwise the frame is
// rejected with ErrMalformedEvent.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < EventHeaderSize {
		return nil, fmt.Errorf("%w: %d byte frame", ErrMalformedEvent, len(data))
	}
	if data[0] != PacketTypeEvent {
		return nil, fmt.Errorf("%w: packet type 0x%02x", ErrMalformedEvent, data[0])
	}
	code := EventCode(data[1])
	plen := int(data[2])
	if len(data)-EventHeaderSize != plen {
		return nil, fmt.Errorf("%w: event 0x%02x declares %d parameter bytes, has %d",
			ErrMalformedEvent, uint8(code), plen, len(data)-EventHeaderSize)
	}
	p := data[EventHeaderSize:]

	switch code {
	case EventCommandStatus:
		if len(p) < CommandStatusSize {
			return nil, short(code, len(p))
		}
		return &CommandStatus{
			Status:      Status(p[0]),
			NumCommands: p[1],
			Opcode:      Opcode(binary.LittleEndian.Uint16(p[2:4])),
		}, nil
	case EventCommandComplete:
		if len(p) < CommandCompleteMinSize {
			return nil, short(code, len(p))
		}
		rp := make([]byte, len(p)-CommandCompleteMinSize)
		copy(rp, p[CommandCompleteMinSize:])
		return &CommandComplete{
			NumCommands:  p[0],
			Opcode:       Opcode(binary.LittleEndian.Uint16(p[1:3])),
			ReturnParams: rp,
		}, nil
	case EventConnectionComplete:
		if len(p) < ConnectionCompleteSize {
			return nil, short(code, len(p))
		}
		e := &ConnectionComplete{
			Status:     Status(p[0]),
			Handle:     binary.LittleEndian.Uint16(p[1:3]) & HandleMask,
			LinkType:   p[9],
			Encryption: p[10],
		}
		copy(e.Address[:], p[3:9])
		return e, nil
	case EventAuthenticationComplete:
		if len(p) < AuthenticationCompleteSize {
			return nil, short(code, len(p))
		}
		return &AuthenticationComplete{
			Status: Status(p[0]),
			Handle: binary.LittleEndian.Uint16(p[1:3]) & HandleMask,
		}, nil
	case EventDisconnectionComplete:
		if len(p) < DisconnectionCompleteSize {
			return nil, short(code, len(p))
		}
		return &DisconnectionComplete{
			Status: Status(p[0]),
			Handle: binary.LittleEndian.Uint16(p[1:3]) & HandleMask,
			Reason: p[3],
		}, nil
	default:
		raw := make([]byte, len(p))
		copy(raw, p)
		return &OtherEvent{EventCode: code, Params: raw}, nil
	}
}

// EncodeEvent is the inverse of DecodeEvent. Controllers produce events,
// so on the host side it is used by the stub controller.
func EncodeEvent(e Event) ([]byte, error) {
	var p []byte
	switch ev := e.(type) {
	case *CommandStatus:
		p = make([]byte, CommandStatusSize)
		p[0] = byte(ev.Status)
		p[1] = ev.NumCommands
		binary.LittleEndian.PutUint16(p[2:4], uint16(ev.Opcode))
	case *CommandComplete:
		p = make([]byte, CommandCompleteMinSize+len(ev.ReturnParams))
		p[0] = ev.NumCommands
		binary.LittleEndian.PutUint16(p[1:3], uint16(ev.Opcode))
		copy(p[CommandCompleteMinSize:], ev.ReturnParams)
	case *ConnectionComplete:
		p = make([]byte, ConnectionCompleteSize)
		p[0] = byte(ev.Status)
		binary.LittleEndian.PutUint16(p[1:3], ev.Handle&HandleMask)
		copy(p[3:9], ev.Address[:])
		p[9] = ev.LinkType
		p[10] = ev.Encryption
	case *AuthenticationComplete:
		p = make([]byte, AuthenticationCompleteSize)
		p[0] = byte(ev.Status)
		binary.LittleEndian.PutUint16(p[1:3], ev.Handle&HandleMask)
	case *DisconnectionComplete:
		p = make([]byte, DisconnectionCompleteSize)
		p[0] = byte(ev.Status)
		binary.LittleEndian.PutUint16(p[1:3], ev.Handle&HandleMask)
		p[3] = ev.Reason
	case *OtherEvent:
		p = ev.Params
	default:
		return nil, fmt.Errorf("%w: unsupported event %T", ErrMalformedInput, e)
	}
	if len(p) > MaxParamSize {
		return nil, fmt.Errorf("%w: %d parameter bytes", ErrMalformedInput, len(p))
	}
	data := make([]byte, EventHeaderSize+len(p))
	data[0] = PacketTypeEvent
	data[1] = byte(e.Code())
	data[2] = byte(len(p))
	copy(data[EventHeaderSize:], p)
	return data, nil
}

// RSSIResult holds the return parameters of Read_RSSI.
// Layout: Status(1) | Handle(2) | RSSI(1, signed)
type RSSIResult struct {
	Status Status
	Handle uint16
	RSSI   int8
}

func ParseRSSIResult(e *CommandComplete) (RSSIResult, error) {
	if e == nil || e.Opcode != OpReadRSSI {
		return RSSIResult{}, fmt.Errorf("%w: not a Read_RSSI completion", ErrMalformedEvent)
	}
	rp := e.ReturnParams
	if len(rp) < ReadRSSIReturnSize {
		return RSSIResult{}, short(EventCommandComplete, len(rp))
	}
	return RSSIResult{
		Status: Status(rp[0]),
		Handle: binary.LittleEndian.Uint16(rp[1:3]) & HandleMask,
		RSSI:   int8(rp[3]),
	}, nil
}

func (r RSSIResult) ReturnParams() []byte {
	rp := make([]byte, ReadRSSIReturnSize)
	rp[0] = byte(r.Status)
	binary.LittleEndian.PutUint16(rp[1:3], r.Handle&HandleMask)
	rp[3] = byte(r.RSSI)
	return rp
}

func short(code EventCode, n int) error {
	return fmt.Errorf("%w: event 0x%02x truncated at %d parameter bytes", ErrMalformedEvent, uint8(code), n)
}

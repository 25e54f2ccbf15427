package protocol

import (
	"encoding/binary"
	"fmt"
)

// Opcode packs the 6-bit group field and the 10-bit command field.
type Opcode uint16

func NewOpcode(ogf uint8, ocf uint16) Opcode {
	return Opcode(uint16(ogf&0x3F)<<10 | ocf&0x03FF)
}

func (o Opcode) OGF() uint8  { return uint8(o >> 10) }
func (o Opcode) OCF() uint16 { return uint16(o) & 0x03FF }

func (o Opcode) String() string {
	return fmt.Sprintf("0x%02x|0x%04x", o.OGF(), o.OCF())
}

// Command is an encoded-ready HCI command record.
// Layout: Type(1) | Opcode(2, LE) | ParamLen(1) | Params(0-255)
type Command struct {
	Opcode Opcode
	Params []byte
}

// EncodeCommand serialises a command into its raw socket frame.
func EncodeCommand(c *Command) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil command", ErrMalformedInput)
	}
	if len(c.Params) > MaxParamSize {
		return nil, fmt.Errorf("%w: %d parameter bytes", ErrMalformedInput, len(c.Params))
	}
	data := make([]byte, CommandHeaderSize+len(c.Params))
	data[0] = PacketTypeCommand
	binary.LittleEndian.PutUint16(data[1:3], uint16(c.Opcode))
	data[3] = byte(len(c.Params))
	copy(data[CommandHeaderSize:], c.Params)
	return data, nil
}

// DecodeCommand parses a raw command frame. The controller side of the
// stub driver uses it to see what the host sent.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) < CommandHeaderSize || data[0] != PacketTypeCommand {
		return nil, fmt.Errorf("%w: command header", ErrMalformedInput)
	}
	plen := int(data[3])
	if len(data)-CommandHeaderSize != plen {
		return nil, fmt.Errorf("%w: command declares %d parameter bytes, has %d",
			ErrMalformedInput, plen, len(data)-CommandHeaderSize)
	}
	c := &Command{
		Opcode: Opcode(binary.LittleEndian.Uint16(data[1:3])),
		Params: make([]byte, plen),
	}
	copy(c.Params, data[CommandHeaderSize:])
	return c, nil
}

// CreateConnection asks the controller to page a BR/EDR peer.
// Params: Address(6) | PacketType(2) | PageScanRepetitionMode(1) | Reserved(1) | ClockOffset(2) | AllowRoleSwitch(1)
type CreateConnection struct {
	Address                Address
	PacketType             uint16
	PageScanRepetitionMode uint8
	ClockOffset            uint16
	AllowRoleSwitch        uint8
}

// NewCreateConnection fills in the parameters used for every probe.
func NewCreateConnection(addr Address) CreateConnection {
	return CreateConnection{
		Address:                addr,
		PacketType:             DefaultPacketType,
		PageScanRepetitionMode: DefaultPageScanRepetition,
		AllowRoleSwitch:        DefaultAllowRoleSwitch,
	}
}

func (c CreateConnection) Command() *Command {
	p := make([]byte, CreateConnectionSize)
	copy(p[0:6], c.Address[:])
	binary.LittleEndian.PutUint16(p[6:8], c.PacketType)
	p[8] = c.PageScanRepetitionMode
	p[9] = 0x00
	binary.LittleEndian.PutUint16(p[10:12], c.ClockOffset)
	p[12] = c.AllowRoleSwitch
	return &Command{Opcode: OpCreateConnection, Params: p}
}

func ParseCreateConnection(c *Command) (CreateConnection, error) {
	var cc CreateConnection
	if err := expectParams(c, OpCreateConnection, CreateConnectionSize); err != nil {
		return cc, err
	}
	addr, err := AddressFromBytes(c.Params[0:6])
	if err != nil {
		return cc, err
	}
	cc.Address = addr
	cc.PacketType = binary.LittleEndian.Uint16(c.Params[6:8])
	cc.PageScanRepetitionMode = c.Params[8]
	cc.ClockOffset = binary.LittleEndian.Uint16(c.Params[10:12])
	cc.AllowRoleSwitch = c.Params[12]
	return cc, nil
}

// Disconnect tears down the link identified by Handle.
// Params: Handle(2) | Reason(1)
type Disconnect struct {
	Handle uint16
	Reason uint8
}

func (d Disconnect) Command() *Command {
	p := make([]byte, DisconnectSize)
	binary.LittleEndian.PutUint16(p[0:2], d.Handle&HandleMask)
	p[2] = d.Reason
	return &Command{Opcode: OpDisconnect, Params: p}
}

func ParseDisconnect(c *Command) (Disconnect, error) {
	if err := expectParams(c, OpDisconnect, DisconnectSize); err != nil {
		return Disconnect{}, err
	}
	return Disconnect{
		Handle: binary.LittleEndian.Uint16(c.Params[0:2]) & HandleMask,
		Reason: c.Params[2],
	}, nil
}

// HandleCommand covers the commands whose only parameter is a connection
// handle: Authentication_Requested and Read_RSSI.
type HandleCommand struct {
	Opcode Opcode
	Handle uint16
}

func AuthenticationRequested(handle uint16) HandleCommand {
	return HandleCommand{Opcode: OpAuthenticationRequested, Handle: handle}
}

func ReadRSSI(handle uint16) HandleCommand {
	return HandleCommand{Opcode: OpReadRSSI, Handle: handle}
}

func (h HandleCommand) Command() *Command {
	p := make([]byte, HandleParamSize)
	binary.LittleEndian.PutUint16(p, h.Handle&HandleMask)
	return &Command{Opcode: h.Opcode, Params: p}
}

func ParseHandleCommand(c *Command) (HandleCommand, error) {
	if c == nil || len(c.Params) != HandleParamSize {
		return HandleCommand{}, fmt.Errorf("%w: handle command", ErrMalformedInput)
	}
	return HandleCommand{
		Opcode: c.Opcode,
		Handle: binary.LittleEndian.Uint16(c.Params) & HandleMask,
	}, nil
}

// WriteByteParam builds the host controller commands that carry a single
// byte, e.g. Write_Authentication_Enable and Write_Simple_Pairing_Mode.
func WriteByteParam(op Opcode, v uint8) *Command {
	return &Command{Opcode: op, Params: []byte{v}}
}

// NoParams builds commands without parameters (Reset, Read_Authentication_Enable).
func NoParams(op Opcode) *Command {
	return &Command{Opcode: op, Params: []byte{}}
}

func expectParams(c *Command, op Opcode, size int) error {
	if c == nil || c.Opcode != op {
		return fmt.Errorf("%w: expected opcode %v", ErrMalformedInput, op)
	}
	if len(c.Params) != size {
		return fmt.Errorf("%w: opcode %v wants %d parameter bytes, got %d",
			ErrMalformedInput, op, size, len(c.Params))
	}
	return nil
}

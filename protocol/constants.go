package protocol

// HCI constants for the command/event subset used to probe a single ACL link.
// All higher layers should depend on this file rather than on literal values.
const (
	// Packet type indicator, first byte of every frame on a raw HCI socket.
	PacketTypeCommand = 0x01
	PacketTypeACLData = 0x02
	PacketTypeEvent   = 0x04

	// Layout:
	//   command: Type (1) | Opcode (2, LE) | ParamLen (1) | Params (0-255)
	//   event:   Type (1) | EventCode (1)  | ParamLen (1) | Params (0-255)
	CommandHeaderSize = 4
	EventHeaderSize   = 3
	MaxParamSize      = 255
	MaxEventSize      = EventHeaderSize + MaxParamSize

	AddressSize = 6

	// Handles are 12 bits wide; the upper nibble carries packet boundary flags on ACL data.
	HandleMask = 0x0FFF
	MaxHandle  = 0x0EFF

	// Fixed parameter sizes
	CreateConnectionSize       = AddressSize + 7
	DisconnectSize             = 3
	HandleParamSize            = 2
	CommandStatusSize          = 4
	CommandCompleteMinSize     = 3
	ConnectionCompleteSize     = 11
	AuthenticationCompleteSize = 3
	DisconnectionCompleteSize  = 4
	ReadRSSIReturnSize         = 4
	FilterSize                 = 14
)

// Opcode group fields.
const (
	OGFLinkControl      = 0x01
	OGFHostController   = 0x03
	OGFStatusParameters = 0x05
)

// Opcode command fields.
const (
	OCFCreateConnection          = 0x0005
	OCFDisconnect                = 0x0006
	OCFAuthenticationRequested   = 0x0011
	OCFReset                     = 0x0003
	OCFReadAuthenticationEnable  = 0x001F
	OCFWriteAuthenticationEnable = 0x0020
	OCFWriteSimplePairingMode    = 0x0056
	OCFReadRSSI                  = 0x0005
)

var (
	OpCreateConnection          = NewOpcode(OGFLinkControl, OCFCreateConnection)
	OpDisconnect                = NewOpcode(OGFLinkControl, OCFDisconnect)
	OpAuthenticationRequested   = NewOpcode(OGFLinkControl, OCFAuthenticationRequested)
	OpReset                     = NewOpcode(OGFHostController, OCFReset)
	OpReadAuthenticationEnable  = NewOpcode(OGFHostController, OCFReadAuthenticationEnable)
	OpWriteAuthenticationEnable = NewOpcode(OGFHostController, OCFWriteAuthenticationEnable)
	OpWriteSimplePairingMode    = NewOpcode(OGFHostController, OCFWriteSimplePairingMode)
	OpReadRSSI                  = NewOpcode(OGFStatusParameters, OCFReadRSSI)
)

// EventCode identifies an HCI event.
type EventCode uint8

const (
	EventConnectionComplete     EventCode = 0x03
	EventDisconnectionComplete  EventCode = 0x05
	EventAuthenticationComplete EventCode = 0x06
	EventCommandComplete        EventCode = 0x0E
	EventCommandStatus          EventCode = 0x0F
)

// Create connection defaults: DM1/DH1 packet types, page scan repetition R1,
// no clock offset, role switch allowed.
const (
	DefaultPacketType         = 0x0018
	DefaultPageScanRepetition = 0x01
	DefaultAllowRoleSwitch    = 0x01
)

// ReasonRemotePowerOff is the reason code sent with every disconnect.
const ReasonRemotePowerOff uint8 = 0x15

// RSSIUnreadable is reported when the controller fails to read the signal
// strength of an otherwise live link.
const RSSIUnreadable = -255

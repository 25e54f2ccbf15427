package protocol

import (
	"bytes"
	"errors"
	"testing"
)

var testAddr = Address{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Address
		wantErr bool
	}{
		{name: "canonical", in: "11:22:33:44:55:66", want: testAddr},
		{name: "lower case with spaces", in: " aa:bb:cc:dd:ee:ff ", want: Address{0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa}},
		{name: "five octets", in: "11:22:33:44:55", wantErr: true},
		{name: "seven octets", in: "11:22:33:44:55:66:77", wantErr: true},
		{name: "not hex", in: "11:22:33:44:55:GG", wantErr: true},
		{name: "long octet", in: "111:22:33:44:55:66", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedInput) {
					t.Fatalf("ParseAddress(%q) error = %v, want ErrMalformedInput", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddressStringRoundTrip(t *testing.T) {
	s := testAddr.String()
	if s != "11:22:33:44:55:66" {
		t.Fatalf("String() = %q", s)
	}
	back, err := ParseAddress(s)
	if err != nil || back != testAddr {
		t.Fatalf("ParseAddress(String()) = %v, %v", back, err)
	}
}

func TestAddressFromBytesLength(t *testing.T) {
	for _, n := range []int{0, 5, 7} {
		if _, err := AddressFromBytes(make([]byte, n)); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("AddressFromBytes(%d bytes) error = %v, want ErrMalformedInput", n, err)
		}
	}
	a, err := AddressFromBytes(testAddr[:])
	if err != nil || a != testAddr {
		t.Errorf("AddressFromBytes(6 bytes) = %v, %v", a, err)
	}
}

func TestOpcodePacking(t *testing.T) {
	tests := []struct {
		op   Opcode
		want uint16
	}{
		{OpCreateConnection, 0x0405},
		{OpDisconnect, 0x0406},
		{OpAuthenticationRequested, 0x0411},
		{OpReadRSSI, 0x1405},
		{OpReset, 0x0C03},
		{OpReadAuthenticationEnable, 0x0C1F},
		{OpWriteAuthenticationEnable, 0x0C20},
		{OpWriteSimplePairingMode, 0x0C56},
	}
	for _, tt := range tests {
		if uint16(tt.op) != tt.want {
			t.Errorf("opcode %v = 0x%04x, want 0x%04x", tt.op, uint16(tt.op), tt.want)
		}
		if NewOpcode(tt.op.OGF(), tt.op.OCF()) != tt.op {
			t.Errorf("opcode %v does not survive OGF/OCF split", tt.op)
		}
	}
}

func TestCommandEncoding(t *testing.T) {
	tests := []struct {
		name string
		cmd  *Command
		want []byte
	}{
		{
			name: "create connection",
			cmd:  NewCreateConnection(testAddr).Command(),
			want: []byte{
				0x01, 0x05, 0x04, 0x0d,
				0x66, 0x55, 0x44, 0x33, 0x22, 0x11, // address, wire order
				0x18, 0x00, // packet type
				0x01,       // page scan repetition mode
				0x00,       // reserved
				0x00, 0x00, // clock offset
				0x01, // allow role switch
			},
		},
		{
			name: "disconnect",
			cmd:  Disconnect{Handle: 0x002a, Reason: ReasonRemotePowerOff}.Command(),
			want: []byte{0x01, 0x06, 0x04, 0x03, 0x2a, 0x00, 0x15},
		},
		{
			name: "authentication requested",
			cmd:  AuthenticationRequested(0x0102).Command(),
			want: []byte{0x01, 0x11, 0x04, 0x02, 0x02, 0x01},
		},
		{
			name: "read rssi",
			cmd:  ReadRSSI(0x0b).Command(),
			want: []byte{0x01, 0x05, 0x14, 0x02, 0x0b, 0x00},
		},
		{
			name: "write authentication enable",
			cmd:  WriteByteParam(OpWriteAuthenticationEnable, 1),
			want: []byte{0x01, 0x20, 0x0c, 0x01, 0x01},
		},
		{
			name: "reset",
			cmd:  NoParams(OpReset),
			want: []byte{0x01, 0x03, 0x0c, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeCommand(tt.cmd)
			if err != nil {
				t.Fatalf("EncodeCommand() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeCommand() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestCommandRoundTrip(t *testing.T) {
	cc := CreateConnection{
		Address:                testAddr,
		PacketType:             0xcc18,
		PageScanRepetitionMode: 0x02,
		ClockOffset:            0x8123,
		AllowRoleSwitch:        0x00,
	}
	data, err := EncodeCommand(cc.Command())
	if err != nil {
		t.Fatalf("EncodeCommand() error = %v", err)
	}
	cmd, err := DecodeCommand(data)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	back, err := ParseCreateConnection(cmd)
	if err != nil {
		t.Fatalf("ParseCreateConnection() error = %v", err)
	}
	if back != cc {
		t.Errorf("create connection = %+v, want %+v", back, cc)
	}

	for _, handle := range []uint16{0, 1, 0x0abc, MaxHandle} {
		d := Disconnect{Handle: handle, Reason: ReasonRemotePowerOff}
		data, _ := EncodeCommand(d.Command())
		cmd, err := DecodeCommand(data)
		if err != nil {
			t.Fatalf("DecodeCommand() error = %v", err)
		}
		if got, err := ParseDisconnect(cmd); err != nil || got != d {
			t.Errorf("disconnect = %+v, %v, want %+v", got, err, d)
		}

		for _, hc := range []HandleCommand{AuthenticationRequested(handle), ReadRSSI(handle)} {
			data, _ := EncodeCommand(hc.Command())
			cmd, err := DecodeCommand(data)
			if err != nil {
				t.Fatalf("DecodeCommand() error = %v", err)
			}
			if got, err := ParseHandleCommand(cmd); err != nil || got != hc {
				t.Errorf("handle command = %+v, %v, want %+v", got, err, hc)
			}
		}
	}
}

func TestMalformedCommands(t *testing.T) {
	if _, err := EncodeCommand(&Command{Opcode: OpReset, Params: make([]byte, MaxParamSize+1)}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("oversized params error = %v, want ErrMalformedInput", err)
	}
	if _, err := EncodeCommand(nil); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("nil command error = %v, want ErrMalformedInput", err)
	}

	bad := [][]byte{
		nil,
		{0x01, 0x05, 0x04},
		{0x04, 0x05, 0x04, 0x00},
		{0x01, 0x06, 0x04, 0x03, 0x2a, 0x00},
	}
	for _, b := range bad {
		if _, err := DecodeCommand(b); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("DecodeCommand(% x) error = %v, want ErrMalformedInput", b, err)
		}
	}

	if _, err := ParseCreateConnection(&Command{Opcode: OpCreateConnection, Params: make([]byte, 12)}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("short create connection error = %v", err)
	}
	if _, err := ParseDisconnect(ReadRSSI(1).Command()); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("wrong opcode error = %v", err)
	}
}

package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Address is a 6-byte BD_ADDR stored in wire order (least significant byte first).
type Address [AddressSize]byte

// ParseAddress parses the canonical "AA:BB:CC:DD:EE:FF" notation. The
// textual form lists the most significant byte first, so the bytes are
// reversed into wire order.
func ParseAddress(s string) (Address, error) {
	var a Address
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != AddressSize {
		return a, fmt.Errorf("%w: address %q", ErrMalformedInput, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return a, fmt.Errorf("%w: address %q", ErrMalformedInput, s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return a, fmt.Errorf("%w: address %q", ErrMalformedInput, s)
		}
		a[AddressSize-1-i] = byte(v)
	}
	return a, nil
}

// AddressFromBytes copies a wire-order address. b must be exactly 6 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: address length %d", ErrMalformedInput, len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[5], a[4], a[3], a[2], a[1], a[0])
}

func (a Address) IsZero() bool { return a == Address{} }

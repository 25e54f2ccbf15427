package protocol

import "fmt"

// Status is an HCI controller error code as carried in event parameters.
type Status uint8

const (
	StatusSuccess                 Status = 0x00
	StatusUnknownCommand          Status = 0x01
	StatusUnknownConnectionID     Status = 0x02
	StatusPageTimeout             Status = 0x04
	StatusAuthenticationFailure   Status = 0x05
	StatusPINOrKeyMissing         Status = 0x06
	StatusConnectionLimitExceeded Status = 0x09
	StatusConnectionAlreadyExists Status = 0x0B
	StatusCommandDisallowed       Status = 0x0C
	StatusInvalidParameters       Status = 0x12
	StatusLocalHostTerminated     Status = 0x16
	StatusLMPResponseTimeout      Status = 0x22
)

var statusNames = map[Status]string{
	StatusSuccess:                 "success",
	StatusUnknownCommand:          "unknown HCI command",
	StatusUnknownConnectionID:     "unknown connection identifier",
	StatusPageTimeout:             "page timeout",
	StatusAuthenticationFailure:   "authentication failure",
	StatusPINOrKeyMissing:         "PIN or key missing",
	StatusConnectionLimitExceeded: "connection limit exceeded",
	StatusConnectionAlreadyExists: "ACL connection already exists",
	StatusCommandDisallowed:       "command disallowed",
	StatusInvalidParameters:       "invalid HCI command parameters",
	StatusLocalHostTerminated:     "connection terminated by local host",
	StatusLMPResponseTimeout:      "LMP response timeout",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status 0x%02x", uint8(s))
}

func (s Status) OK() bool { return s == StatusSuccess }

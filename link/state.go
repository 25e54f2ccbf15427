package link

import "fmt"

type State int

const (
	Idle State = iota
	Connecting
	Connected
	Authenticating
	Authenticated
	Disconnecting
	Faulted
)

var stateNames = [...]string{
	Idle:           "idle",
	Connecting:     "connecting",
	Connected:      "connected",
	Authenticating: "authenticating",
	Authenticated:  "authenticated",
	Disconnecting:  "disconnecting",
	Faulted:        "faulted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

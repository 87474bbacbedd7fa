// Package connstate holds the socket state-machine enum shared by the
// server and client connection endpoints (spec §4.B).
package connstate

// State is the lifecycle stage of one socket, carried on every
// state-change event.
type State int

const (
	Unconnected State = iota
	HostLookup
	Connecting
	Connected
	Bound
	Closing
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "Unconnected"
	case HostLookup:
		return "HostLookup"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Bound:
		return "Bound"
	case Closing:
		return "Closing"
	default:
		return "Unknown"
	}
}

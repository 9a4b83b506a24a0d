package relay

import "fmt"

// State of the agent's upstream connection.
type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// canTransition lists the only legal moves. Open -> Open does not exist: a replacement
// always passes through Closed, which is what guarantees a single live connection.
func canTransition(from, to State) bool {
	return (from == Closed && to == Open) || (from == Open && to == Closed)
}

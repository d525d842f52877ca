package engine

// State is the controller lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateRestoring
	StateStopping
	StateStopped
)

var stateNames = map[State]string{
	StateUninitialized: "uninitialized",
	StateStarting:      "starting",
	StateReady:         "ready",
	StateRestoring:     "restoring",
	StateStopping:      "stopping",
	StateStopped:       "stopped",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// acquirable reports whether leases may be handed out in s.
func (s State) acquirable() bool {
	return s == StateReady || s == StateRestoring
}

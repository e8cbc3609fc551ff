package model

// NodeEvent drives the role machine of a ring process.
type NodeEvent string

const (
	// EventDefeat represents the process observing a larger uid
	EventDefeat NodeEvent = "defeat"
	// EventElect represents the process seeing its own uid travel the whole ring
	EventElect NodeEvent = "elect"
)

func (n NodeEvent) String() string {
	return string(n)
}

type TransitionType int

const (
	TransitionTypeEnter TransitionType = iota
	TransitionTypeLeave
)

func (t TransitionType) String() string {
	switch t {
	case TransitionTypeEnter:
		return "enter"
	case TransitionTypeLeave:
		return "leave"
	default:
		return "unknown"
	}
}

// StateTransition represents a role change of one ring process
type StateTransition struct {
	// Rank is the rank of the process
	Rank int
	// UID is the uid of the process
	UID int
	// State is the destination state of the transition
	State NodeState
	// SrcState is the source state of the transition
	SrcState NodeState
	// Type is the type of the transition
	Type TransitionType
}

package model

import (
	"errors"
	"fmt"
)

// NodeState represents the role of a ring process during an election.
type NodeState string

const (
	// NodeStateCandidate is a doubling-ring process still contending
	NodeStateCandidate NodeState = "candidate"
	// NodeStateActive is a unidirectional-ring process still contending
	NodeStateActive NodeState = "active"
	// NodeStateNonActive is a unidirectional-ring process that lost
	NodeStateNonActive NodeState = "nonactive"
	// NodeStateRelay is a process that only forwards traffic, either by
	// policy or because it lost the doubling-ring election
	NodeStateRelay NodeState = "relay"
	// NodeStateLeader is the elected process
	NodeStateLeader NodeState = "leader"
)

func (n NodeState) String() string {
	return string(n)
}

// Algorithm selects the election protocol run by every process of a ring.
type Algorithm string

const (
	// AlgorithmDoubling is the bidirectional phase-doubling protocol.
	AlgorithmDoubling Algorithm = "doubling"
	// AlgorithmUnidirectional is the unidirectional forwarding protocol.
	AlgorithmUnidirectional Algorithm = "unidirectional"
)

func (a Algorithm) String() string {
	return string(a)
}

// Valid reports whether a names a known protocol.
func (a Algorithm) Valid() bool {
	return a == AlgorithmDoubling || a == AlgorithmUnidirectional
}

// Identity is the immutable position of a process in the ring.
type Identity struct {
	// Rank is the position of the process, in [0, Size)
	Rank int `json:"rank"`
	// UID is the value the process contests the election with
	UID int `json:"uid"`
	// Size is the number of processes in the ring
	Size int `json:"size"`
	// Left is the rank of the left neighbor
	Left int `json:"left"`
	// Right is the rank of the right neighbor
	Right int `json:"right"`
}

func (i *Identity) Validate() error {
	if i.Size < 2 {
		return errors.New("ring size must be at least 2")
	}
	if i.Rank < 0 || i.Rank >= i.Size {
		return fmt.Errorf("rank %d out of range [0, %d)", i.Rank, i.Size)
	}
	if i.Left != (i.Rank-1+i.Size)%i.Size || i.Right != (i.Rank+1)%i.Size {
		return fmt.Errorf("rank %d has inconsistent neighbors %d/%d", i.Rank, i.Left, i.Right)
	}
	return nil
}

// ProcessConfig is everything a process needs to take part in an election.
// It is fixed before the process starts.
type ProcessConfig struct {
	Identity
	Algorithm Algorithm
	// Passive marks a pure relay that never compares uids
	Passive bool
	// Initiator marks a process that starts contending on its own
	Initiator bool
}

package model

// Outcome is what a single process knows once it has finished.
type Outcome struct {
	Rank int       `json:"rank"`
	UID  int       `json:"uid"`
	Role NodeState `json:"role"`
	// MaxSeen is the largest uid the process observed
	MaxSeen int `json:"max_seen"`
	// Phase is the last doubling phase the process reached
	Phase int `json:"phase"`
	// Passive is true for policy relays
	Passive bool `json:"passive"`
	// Participant is true once the process contended on its own behalf
	Participant bool `json:"participant"`
	// Tally is the local message count at the end of the election
	Tally Tally `json:"tally"`
	// Reported is true when Tally was added to the count report
	Reported bool `json:"reported"`
	// Totals is only set at the leader: the aggregated count report
	Totals Tally `json:"totals"`
}

// IsLeader reports whether the process won.
func (o *Outcome) IsLeader() bool {
	return o.Role == NodeStateLeader
}

// Result describes a finished election over the whole ring.
type Result struct {
	// ID identifies the election run
	ID         string    `json:"id"`
	Algorithm  Algorithm `json:"algorithm"`
	LeaderRank int       `json:"leader_rank"`
	LeaderUID  int       `json:"leader_uid"`
	// Totals is the aggregate printed by the leader
	Totals   Tally      `json:"totals"`
	Outcomes []*Outcome `json:"outcomes"`
}

// Leader returns the outcome of the elected process.
func (r *Result) Leader() *Outcome {
	return r.Outcomes[r.LeaderRank]
}

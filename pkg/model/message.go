package model

// Tag identifies the kind of a ring message.
type Tag int

const (
	// TagProbe carries a candidacy outward
	TagProbe Tag = iota + 1
	// TagReply confirms a probe back to its origin
	TagReply
	// TagTerminate is the announcement lap started by the leader
	TagTerminate
	// TagCountReport carries the message totals around the ring once
	TagCountReport
)

func (t Tag) String() string {
	switch t {
	case TagProbe:
		return "probe"
	case TagReply:
		return "reply"
	case TagTerminate:
		return "terminate"
	case TagCountReport:
		return "count_report"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known tags.
func (t Tag) Valid() bool {
	return t >= TagProbe && t <= TagCountReport
}

// Tally counts the messages a process received and sent.
type Tally struct {
	Received int `json:"received"`
	Sent     int `json:"sent"`
}

// Add returns the element-wise sum of t and o.
func (t Tally) Add(o Tally) Tally {
	return Tally{Received: t.Received + o.Received, Sent: t.Sent + o.Sent}
}

// Message is a single ring message. Every send builds a fresh value.
//
// The unidirectional protocol only uses Value and Tag; COUNT_REPORT uses
// Value for the leader uid and Tally for the running totals.
type Message struct {
	Tag      Tag   `json:"tag"`
	Value    int   `json:"value"`
	Phase    int   `json:"phase"`
	Distance int   `json:"distance"`
	Tally    Tally `json:"tally"`
}

// Probe builds a PROBE message.
func Probe(value, phase, distance int) Message {
	return Message{Tag: TagProbe, Value: value, Phase: phase, Distance: distance}
}

// Reply builds a REPLY message.
func Reply(value, phase int) Message {
	return Message{Tag: TagReply, Value: value, Phase: phase}
}

// Terminate builds the announcement for the leader uid.
func Terminate(leader int) Message {
	return Message{Tag: TagTerminate, Value: leader}
}

// CountReport builds an aggregation message.
func CountReport(leader int, tally Tally) Message {
	return Message{Tag: TagCountReport, Value: leader, Tally: tally}
}

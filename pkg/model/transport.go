package model

import "context"

// Side names one of the two ring edges of a process.
type Side int

const (
	// SideAny matches either edge in a Filter
	SideAny Side = iota
	// SideLeft is the edge towards rank-1
	SideLeft
	// SideRight is the edge towards rank+1
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "any"
	}
}

// Opposite returns the other edge. A message sent to the right neighbor
// arrives at that neighbor on its left edge.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideAny
	}
}

// Envelope is a received message plus the edge it arrived on.
type Envelope struct {
	From Side
	Message
}

// Filter selects which messages a receive is willing to take.
type Filter struct {
	// From restricts the arrival edge, SideAny for both
	From Side
	// Tags restricts the tags, empty for all
	Tags []Tag
}

// Match reports whether env passes the filter.
func (f Filter) Match(env Envelope) bool {
	if f.From != SideAny && f.From != env.From {
		return false
	}
	if len(f.Tags) == 0 {
		return true
	}
	for _, t := range f.Tags {
		if t == env.Tag {
			return true
		}
	}
	return false
}

// Link is one process's view of its two directed ring channels.
// Delivery is reliable and FIFO per directed edge.
type Link interface {
	// Send hands msg to the neighbor on side without blocking.
	Send(side Side, msg Message) error
	// Receive blocks until a message matching filter arrives.
	Receive(ctx context.Context, filter Filter) (Envelope, error)
}

// Header is a common structure for both requests and responses.
type Header struct {
	// Rank of the sending process
	Rank int `json:"rank"`
	// Side is the edge the sender put the message on
	Side Side `json:"side"`
}

// Request represents a structure for the requests.
type Request struct {
	Header
	// CommandCode is the command code.
	CommandCode CommandCode `json:"command_code"`
	// Command is the actual request payload.
	Command any `json:"command"`
}

// Response defines a structure for responses.
type Response struct {
	Header
	Ok      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// CommandCode identifies the request type carried over a network link.
type CommandCode uint

const (
	// Deliver hands a ring message to the receiving process
	Deliver CommandCode = iota + 1
)

func (c CommandCode) String() string {
	switch c {
	case Deliver:
		return "deliver"
	default:
		return "unknown"
	}
}

// CommandHandler represents a function that handles command requests and returns responses.
type CommandHandler func(request *Request, response *Response) error

// TransportConfig is an interface representing the contract for a configuration object
// that can be validated.
type TransportConfig interface {
	Validate() error
}

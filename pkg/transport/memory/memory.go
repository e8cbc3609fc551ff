// Package memory connects the processes of a ring inside one address space.
package memory

import (
	"context"

	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/transport/mailbox"
)

// Network owns one mailbox per process.
type Network struct {
	boxes []*mailbox.Mailbox
}

// NewNetwork creates the directed edges of a ring of size processes.
func NewNetwork(size int) *Network {
	boxes := make([]*mailbox.Mailbox, size)
	for i := range boxes {
		boxes[i] = mailbox.New()
	}
	return &Network{boxes: boxes}
}

// Size returns the number of processes in the ring.
func (n *Network) Size() int {
	return len(n.boxes)
}

// Link returns the view of rank onto its two edges.
func (n *Network) Link(rank int) model.Link {
	return &link{net: n, rank: rank}
}

// Links returns one link per rank.
func (n *Network) Links() []model.Link {
	links := make([]model.Link, len(n.boxes))
	for rank := range links {
		links[rank] = n.Link(rank)
	}
	return links
}

// Pending returns the number of undelivered messages across the ring.
func (n *Network) Pending() int {
	total := 0
	for _, b := range n.boxes {
		total += b.Len()
	}
	return total
}

// Close releases every process blocked in Receive.
func (n *Network) Close() {
	for _, b := range n.boxes {
		b.Close()
	}
}

type link struct {
	net  *Network
	rank int
}

func (l *link) neighbor(side model.Side) int {
	size := len(l.net.boxes)
	if side == model.SideLeft {
		return (l.rank - 1 + size) % size
	}
	return (l.rank + 1) % size
}

func (l *link) Send(side model.Side, msg model.Message) error {
	return l.net.boxes[l.neighbor(side)].Put(model.Envelope{From: side.Opposite(), Message: msg})
}

func (l *link) Receive(ctx context.Context, filter model.Filter) (model.Envelope, error) {
	return l.net.boxes[l.rank].Take(ctx, filter)
}

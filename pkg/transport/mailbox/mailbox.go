// Package mailbox is the receive side shared by every ring transport: an
// unbounded queue of envelopes in arrival order with filtered blocking takes.
package mailbox

import (
	"context"
	"sync"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
)

// Mailbox never blocks Put. Envelopes from the same edge leave in the order
// they were put.
type Mailbox struct {
	mu     sync.Mutex
	queue  []model.Envelope
	signal chan struct{}
	closed bool
}

func New() *Mailbox {
	return &Mailbox{signal: make(chan struct{})}
}

// Put appends env and wakes every waiting Take.
func (m *Mailbox) Put(env model.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return common.ErrLinkClosed
	}
	m.queue = append(m.queue, env)
	m.wake()
	return nil
}

// Take removes and returns the oldest envelope matching filter, blocking
// until one arrives, ctx is done or the mailbox is closed.
func (m *Mailbox) Take(ctx context.Context, filter model.Filter) (model.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return model.Envelope{}, err
	}
	for {
		m.mu.Lock()
		for i, env := range m.queue {
			if filter.Match(env) {
				m.queue = append(m.queue[:i], m.queue[i+1:]...)
				m.mu.Unlock()
				return env, nil
			}
		}
		if m.closed {
			m.mu.Unlock()
			return model.Envelope{}, common.ErrLinkClosed
		}
		signal := m.signal
		m.mu.Unlock()

		select {
		case <-signal:
		case <-ctx.Done():
			return model.Envelope{}, ctx.Err()
		}
	}
}

// Len returns the number of queued envelopes.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close fails every pending and future Take once the queue holds no match.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.wake()
}

// wake must be called with mu held
func (m *Mailbox) wake() {
	close(m.signal)
	m.signal = make(chan struct{})
}

// Package election runs one ring process through a leader election and the
// counting lap that follows it.
package election

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/identity"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/monitoring"
)

// NewProcess creates the process described by cfg on top of link. Role
// changes are published on transitions when it is not nil.
func NewProcess(
	cfg model.ProcessConfig,
	link model.Link,
	transitions chan<- model.StateTransition,
	logger *slog.Logger) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("new process, link is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("new process, logger is nil")
	}

	engine, err := NewEngine(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	p := &Process{
		cfg:         cfg,
		link:        link,
		engine:      engine,
		transitions: transitions,
		logger:      logger.With("component", "process", "rank", cfg.Rank, "uid", cfg.UID),
		maxSeen:     cfg.UID,
		terminal:    identity.CeilLog2(cfg.Size),
	}
	p.fsm = newRoleMachine(cfg.Algorithm, cfg.Passive, p.roleCallbacks())
	return p, nil
}

// Process is the record of one ring process. It is owned by the goroutine
// running it; nothing else reads or writes it until Run returns.
type Process struct {
	cfg    model.ProcessConfig
	link   model.Link
	engine Engine
	logger *slog.Logger

	// fsm holds the role of the process
	fsm *fsm.FSM
	// transitions receives every role change
	transitions chan<- model.StateTransition

	// maxSeen is the largest uid observed, never decreasing
	maxSeen int
	// phase is the current doubling phase
	phase int
	// terminal is ceil(log2(N)), the phase at which a probe can circle the ring
	terminal int
	// participant is set once the process contends on its own behalf
	participant bool

	// tally counts every message sent and received
	tally model.Tally
	// snapshot is the tally when the election loop was left
	snapshot model.Tally
	reported bool
	totals   model.Tally
}

// Run takes the process through the election and the counting lap and
// returns what it ended up knowing.
func (p *Process) Run(ctx context.Context) (*model.Outcome, error) {
	p.logger.Debug("process started", "role", p.Role(), "initiator", p.cfg.Initiator)

	if err := p.engine.Elect(ctx, p); err != nil {
		p.logger.Error("election failed", "role", p.Role(), "error", err.Error())
		return nil, err
	}
	p.snapshot = p.tally

	if err := p.aggregate(ctx); err != nil {
		p.logger.Error("count report failed", "error", err.Error())
		return nil, err
	}

	p.logger.Debug("process finished", "role", p.Role(), "max_seen", p.maxSeen,
		"received", p.snapshot.Received, "sent", p.snapshot.Sent)
	return p.Outcome(), nil
}

// Outcome returns the current view of the process.
func (p *Process) Outcome() *model.Outcome {
	return &model.Outcome{
		Rank:        p.cfg.Rank,
		UID:         p.cfg.UID,
		Role:        p.Role(),
		MaxSeen:     p.maxSeen,
		Phase:       p.phase,
		Passive:     p.cfg.Passive,
		Participant: p.participant,
		Tally:       p.snapshot,
		Reported:    p.reported,
		Totals:      p.totals,
	}
}

// Role returns the current role of the process.
func (p *Process) Role() model.NodeState {
	return model.NodeState(p.fsm.Current())
}

// MaxSeen returns the largest uid the process has observed.
func (p *Process) MaxSeen() int {
	return p.maxSeen
}

func (p *Process) is(state model.NodeState) bool {
	return p.fsm.Is(state.String())
}

// raise folds v into maxSeen and reports whether it grew.
func (p *Process) raise(v int) bool {
	if v <= p.maxSeen {
		return false
	}
	p.maxSeen = v
	return true
}

// fire moves the role machine, refusing events the current role cannot take.
func (p *Process) fire(ctx context.Context, ev model.NodeEvent) error {
	if !p.fsm.Can(ev.String()) {
		return fmt.Errorf("event %s not allowed in role %s", ev, p.fsm.Current())
	}
	if err := p.fsm.Event(ctx, ev.String()); err != nil {
		return fmt.Errorf("event %s in role %s: %w", ev, p.fsm.Current(), err)
	}
	return nil
}

func (p *Process) send(side model.Side, msg model.Message) error {
	if err := p.link.Send(side, msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Tag, side, err)
	}
	p.tally.Sent++
	monitoring.MessagesSent.WithLabelValues(p.cfg.Algorithm.String(), msg.Tag.String()).Inc()
	p.logger.Debug("send", "to", side.String(), "tag", msg.Tag.String(), "value", msg.Value,
		"phase", msg.Phase, "distance", msg.Distance)
	return nil
}

// broadcast sends msg on both edges.
func (p *Process) broadcast(msg model.Message) error {
	if err := p.send(model.SideLeft, msg); err != nil {
		return err
	}
	return p.send(model.SideRight, msg)
}

func (p *Process) receive(ctx context.Context, filter model.Filter) (model.Envelope, error) {
	env, err := p.link.Receive(ctx, filter)
	if err != nil {
		return model.Envelope{}, err
	}
	p.tally.Received++
	monitoring.MessagesReceived.WithLabelValues(p.cfg.Algorithm.String(), env.Tag.String()).Inc()
	return env, nil
}

// aggregate runs the single counting lap. The leader opens it with its own
// counts and closes it when the report returns from the left; everybody else
// adds its counts if it took part and passes the report on.
func (p *Process) aggregate(ctx context.Context) error {
	filter := model.Filter{From: model.SideLeft, Tags: []model.Tag{model.TagCountReport}}

	if p.is(model.NodeStateLeader) {
		p.reported = true
		if err := p.send(model.SideRight, model.CountReport(p.cfg.UID, p.snapshot)); err != nil {
			return err
		}
		env, err := p.receive(ctx, filter)
		if err != nil {
			return err
		}
		p.totals = env.Tally
		p.logger.Info("count report returned", "received", p.totals.Received, "sent", p.totals.Sent)
		return nil
	}

	env, err := p.receive(ctx, filter)
	if err != nil {
		return err
	}
	p.raise(env.Value)
	tally := env.Tally
	if p.participant {
		tally = tally.Add(p.snapshot)
		p.reported = true
	}
	return p.send(model.SideRight, model.CountReport(env.Value, tally))
}

func unknownTag(tag model.Tag) error {
	return fmt.Errorf("%w: %d", common.ErrUnknownTag, int(tag))
}

func unexpectedTag(tag model.Tag, role model.NodeState) error {
	return fmt.Errorf("%w: %s in role %s", common.ErrUnexpectedTag, tag, role)
}

package election

import (
	"context"
	"fmt"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
)

// replySlot remembers the last answer to the process's own probe that came
// back on one edge.
type replySlot struct {
	phase int
	// circled is true when the probe itself came back around the ring
	circled bool
}

// doubling is the bidirectional protocol: in phase k a candidate probes 2^k
// hops in both directions and moves on once both probes are answered.
type doubling struct {
	left, right replySlot
}

func newDoubling() *doubling {
	return &doubling{
		left:  replySlot{phase: -1},
		right: replySlot{phase: -1},
	}
}

func (d *doubling) Algorithm() model.Algorithm {
	return model.AlgorithmDoubling
}

func (d *doubling) Elect(ctx context.Context, p *Process) error {
	if p.cfg.Passive {
		return d.relay(ctx, p)
	}
	if p.cfg.Initiator {
		if err := d.contend(p); err != nil {
			return err
		}
	}

	for {
		env, err := p.receive(ctx, model.Filter{})
		if err != nil {
			return err
		}

		var done bool
		switch env.Tag {
		case model.TagProbe:
			done, err = d.onProbe(ctx, p, env)
		case model.TagReply:
			done, err = d.onReply(ctx, p, env)
		case model.TagTerminate:
			done, err = true, d.onTerminate(ctx, p, env)
		case model.TagCountReport:
			err = unexpectedTag(env.Tag, p.Role())
		default:
			err = unknownTag(env.Tag)
		}
		if err != nil || done {
			return err
		}
	}
}

// contend makes the process a participant and sends its phase 0 probes.
func (d *doubling) contend(p *Process) error {
	p.participant = true
	p.logger.Debug("contending")
	return p.broadcast(model.Probe(p.cfg.UID, 0, 0))
}

func (d *doubling) onProbe(ctx context.Context, p *Process, env model.Envelope) (bool, error) {
	if err := d.checkPhase(p, env.Phase); err != nil {
		return false, err
	}

	switch {
	case env.Value == p.cfg.UID:
		return d.confirm(ctx, p, env.From, env.Phase, true)
	case env.Value < p.maxSeen:
		p.logger.Debug("swallow probe", "value", env.Value, "max_seen", p.maxSeen)
		if p.is(model.NodeStateCandidate) && !p.participant {
			return false, d.contend(p)
		}
		return false, nil
	}

	// a probe at least as large as anything seen so far travels on
	p.raise(env.Value)
	if err := d.defeatBy(ctx, p, env.Value); err != nil {
		return false, err
	}
	hops := env.Distance + 1
	if hops < 1<<env.Phase {
		return false, p.send(env.From.Opposite(), model.Probe(env.Value, env.Phase, hops))
	}
	return false, p.send(env.From, model.Reply(env.Value, env.Phase))
}

func (d *doubling) onReply(ctx context.Context, p *Process, env model.Envelope) (bool, error) {
	if err := d.checkPhase(p, env.Phase); err != nil {
		return false, err
	}
	if env.Value == p.cfg.UID {
		return d.confirm(ctx, p, env.From, env.Phase, false)
	}

	p.raise(env.Value)
	if err := d.defeatBy(ctx, p, env.Value); err != nil {
		return false, err
	}
	return false, p.send(env.From.Opposite(), env.Message)
}

// onTerminate passes the announcement on, unless it is the leader's own
// announcement coming home.
func (d *doubling) onTerminate(ctx context.Context, p *Process, env model.Envelope) error {
	p.raise(env.Value)
	if env.Value == p.cfg.UID {
		return nil
	}
	if err := d.defeatBy(ctx, p, env.Value); err != nil {
		return err
	}
	return p.send(model.SideRight, model.Terminate(env.Value))
}

// confirm records an answer to the process's own probe. Both edges are
// handled by the same rule: the phase resolves once both slots hold it.
func (d *doubling) confirm(ctx context.Context, p *Process, from model.Side, phase int, circled bool) (bool, error) {
	if !p.is(model.NodeStateCandidate) || phase != p.phase {
		p.logger.Debug("ignore stale answer", "phase", phase, "current", p.phase, "role", p.Role())
		return false, nil
	}

	slot, other := &d.left, &d.right
	if from == model.SideRight {
		slot, other = &d.right, &d.left
	}
	slot.phase, slot.circled = phase, circled
	if other.phase != p.phase {
		return false, nil
	}

	if slot.circled && other.circled && p.phase >= p.terminal {
		return d.win(ctx, p)
	}

	p.phase++
	if p.phase > p.terminal+1 {
		return false, fmt.Errorf("%w: phase %d, terminal %d", common.ErrPhaseBound, p.phase, p.terminal)
	}
	p.logger.Debug("phase advanced", "phase", p.phase)
	return false, p.broadcast(model.Probe(p.cfg.UID, p.phase, 0))
}

// win elects the process and starts the announcement lap, then waits for
// the lap to return. Anything else still in flight is left unread.
func (d *doubling) win(ctx context.Context, p *Process) (bool, error) {
	if err := p.fire(ctx, model.EventElect); err != nil {
		return false, err
	}
	if err := p.send(model.SideRight, model.Terminate(p.cfg.UID)); err != nil {
		return false, err
	}

	env, err := p.receive(ctx, model.Filter{From: model.SideLeft, Tags: []model.Tag{model.TagTerminate}})
	if err != nil {
		return false, err
	}
	return true, d.onTerminate(ctx, p, env)
}

// defeatBy turns a candidate into a relay once a larger uid passes by.
func (d *doubling) defeatBy(ctx context.Context, p *Process, v int) error {
	if v <= p.cfg.UID || !p.is(model.NodeStateCandidate) {
		return nil
	}
	return p.fire(ctx, model.EventDefeat)
}

func (d *doubling) checkPhase(p *Process, phase int) error {
	if phase < 0 || phase > p.terminal+1 {
		return fmt.Errorf("%w: message phase %d, terminal %d", common.ErrPhaseBound, phase, p.terminal)
	}
	return nil
}

// relay is the loop of a passive process: every message goes out on the
// edge opposite to the one it came in on, untouched.
func (d *doubling) relay(ctx context.Context, p *Process) error {
	for {
		env, err := p.receive(ctx, model.Filter{})
		if err != nil {
			return err
		}

		switch env.Tag {
		case model.TagTerminate:
			return d.onTerminate(ctx, p, env)
		case model.TagProbe, model.TagReply:
			p.raise(env.Value)
			if err := p.send(env.From.Opposite(), env.Message); err != nil {
				return err
			}
		case model.TagCountReport:
			return unexpectedTag(env.Tag, p.Role())
		default:
			return unknownTag(env.Tag)
		}
	}
}

package election

import (
	"context"

	"github.com/danl5/ringelect/pkg/model"
)

var fromLeft = model.Filter{From: model.SideLeft}

// unidirectional sends every uid to the right and only ever listens to the
// left. A value survives a hop only if it is at least the largest uid that
// hop has seen.
type unidirectional struct{}

func (u *unidirectional) Algorithm() model.Algorithm {
	return model.AlgorithmUnidirectional
}

func (u *unidirectional) Elect(ctx context.Context, p *Process) error {
	if !p.cfg.Passive {
		if p.cfg.Initiator {
			if err := u.contend(p); err != nil {
				return err
			}
		}
		done, err := u.compete(ctx, p)
		if err != nil || done {
			return err
		}
	}
	return u.forward(ctx, p)
}

func (u *unidirectional) contend(p *Process) error {
	p.participant = true
	p.logger.Debug("contending")
	return p.send(model.SideRight, model.Probe(p.cfg.UID, 0, 0))
}

// compete runs while the process is active. It returns done when the
// announcement has already been passed on.
func (u *unidirectional) compete(ctx context.Context, p *Process) (bool, error) {
	for p.is(model.NodeStateActive) {
		env, err := p.receive(ctx, fromLeft)
		if err != nil {
			return false, err
		}

		switch env.Tag {
		case model.TagTerminate:
			p.raise(env.Value)
			if err := p.fire(ctx, model.EventDefeat); err != nil {
				return false, err
			}
			return true, p.send(model.SideRight, model.Terminate(env.Value))
		case model.TagProbe:
			switch {
			case env.Value > p.maxSeen:
				p.raise(env.Value)
				if err := p.fire(ctx, model.EventDefeat); err != nil {
					return false, err
				}
				if err := p.send(model.SideRight, model.Probe(env.Value, 0, 0)); err != nil {
					return false, err
				}
			case env.Value == p.cfg.UID:
				if err := p.fire(ctx, model.EventElect); err != nil {
					return false, err
				}
				if err := p.send(model.SideRight, model.Terminate(p.cfg.UID)); err != nil {
					return false, err
				}
			case !p.participant:
				// a smaller value wakes a process that has not contended yet
				if err := u.contend(p); err != nil {
					return false, err
				}
			default:
				p.logger.Debug("swallow probe", "value", env.Value)
			}
		case model.TagReply, model.TagCountReport:
			return false, unexpectedTag(env.Tag, p.Role())
		default:
			return false, unknownTag(env.Tag)
		}
	}
	return false, nil
}

// forward is the loop of every process that is no longer active. Passive
// relays pass every probe on; the others drop probes below their maxSeen and
// their own uid. It ends on the announcement.
func (u *unidirectional) forward(ctx context.Context, p *Process) error {
	for {
		env, err := p.receive(ctx, fromLeft)
		if err != nil {
			return err
		}

		switch env.Tag {
		case model.TagTerminate:
			p.raise(env.Value)
			if env.Value == p.cfg.UID {
				return nil
			}
			return p.send(model.SideRight, model.Terminate(env.Value))
		case model.TagProbe:
			p.raise(env.Value)
			if !p.cfg.Passive && (env.Value < p.maxSeen || env.Value == p.cfg.UID) {
				p.logger.Debug("swallow probe", "value", env.Value, "max_seen", p.maxSeen)
				continue
			}
			if err := p.send(model.SideRight, model.Probe(env.Value, 0, 0)); err != nil {
				return err
			}
		case model.TagReply, model.TagCountReport:
			return unexpectedTag(env.Tag, p.Role())
		default:
			return unknownTag(env.Tag)
		}
	}
}

package election

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/monitoring"
)

// newRoleMachine builds the role machine of a process. A passive process
// starts as a relay and has no way out of it.
func newRoleMachine(algorithm model.Algorithm, passive bool, callbacks fsm.Callbacks) *fsm.FSM {
	contending, lost := model.NodeStateCandidate, model.NodeStateRelay
	if algorithm == model.AlgorithmUnidirectional {
		contending, lost = model.NodeStateActive, model.NodeStateNonActive
	}

	initial := contending
	if passive {
		initial = model.NodeStateRelay
	}

	return fsm.NewFSM(
		initial.String(),
		fsm.Events{
			{
				Name: model.EventDefeat.String(),
				Src:  []string{contending.String()},
				Dst:  lost.String(),
			},
			{
				Name: model.EventElect.String(),
				Src:  []string{contending.String()},
				Dst:  model.NodeStateLeader.String(),
			},
		},
		callbacks,
	)
}

// Visualize renders the role machine of algorithm in Graphviz format.
func Visualize(algorithm model.Algorithm) string {
	return fsm.Visualize(newRoleMachine(algorithm, false, fsm.Callbacks{}))
}

func (p *Process) roleCallbacks() fsm.Callbacks {
	enter := func(ctx context.Context, ev *fsm.Event) {
		p.logger.Info("enter role", "role", ev.Dst, "from", ev.Src, "max_seen", p.maxSeen)
		monitoring.RoleTransitions.WithLabelValues(p.cfg.Algorithm.String(), ev.Dst).Inc()
		p.publish(ctx, model.NodeState(ev.Dst), model.NodeState(ev.Src), model.TransitionTypeEnter)
	}
	leave := func(ctx context.Context, ev *fsm.Event) {
		p.publish(ctx, model.NodeState(ev.Src), model.NodeState(ev.Dst), model.TransitionTypeLeave)
	}

	callbacks := fsm.Callbacks{}
	for _, s := range []model.NodeState{model.NodeStateLeader, model.NodeStateRelay, model.NodeStateNonActive} {
		callbacks["enter_"+s.String()] = enter
	}
	for _, s := range []model.NodeState{model.NodeStateCandidate, model.NodeStateActive} {
		callbacks["leave_"+s.String()] = leave
	}
	return callbacks
}

func (p *Process) publish(ctx context.Context, state, srcState model.NodeState, transType model.TransitionType) {
	if p.transitions == nil {
		return
	}
	st := model.StateTransition{
		Rank:     p.cfg.Rank,
		UID:      p.cfg.UID,
		State:    state,
		SrcState: srcState,
		Type:     transType,
	}
	select {
	case p.transitions <- st:
	case <-ctx.Done():
	}
}

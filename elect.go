package ringelect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danl5/ringelect/pkg/config"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/ring"
	"github.com/danl5/ringelect/pkg/transport/memory"
	"github.com/danl5/ringelect/pkg/transport/rpc"
)

const defaultCallBackTimeout = 5 * time.Second

// NewElect creates a new Elect instance
func NewElect(cfg *config.Config, callBacks *StateCallBacks, logger *slog.Logger) (*Elect, error) {
	if cfg == nil {
		return nil, errors.New("new elect, config is nil")
	}
	if logger == nil {
		return nil, errors.New("new elect, logger is nil")
	}

	r, err := ring.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	callBackTimeout := cfg.CallBackTimeout
	if callBackTimeout <= 0 {
		callBackTimeout = defaultCallBackTimeout
	}
	if callBacks == nil {
		callBacks = &StateCallBacks{}
	}
	return &Elect{
		cfg:             cfg,
		ring:            r,
		callBacks:       callBacks,
		callBackTimeout: callBackTimeout,
		errChan:         make(chan error, 10),
		logger:          logger.With("component", "elect"),
	}, nil
}

// Elect runs leader elections over one ring layout
type Elect struct {
	// callBacks stores the callbacks to be triggered when a role changes
	callBacks *StateCallBacks
	// callBackTimeout bounds every callback
	callBackTimeout time.Duration
	// errChan is a channel for callback and delivery errors
	errChan chan error

	cfg    *config.Config
	ring   *ring.Ring
	logger *slog.Logger
}

// Run builds the configured transport, runs one election on it and tears the
// transport down again. Callbacks run in order, one at a time, while the
// election is in progress.
func (e *Elect) Run(ctx context.Context) (*model.Result, error) {
	links, closeTransport, transportErrs, err := e.transport()
	if err != nil {
		e.logger.Error("elect, failed to build transport", "transport", e.cfg.Transport, "error", err.Error())
		return nil, err
	}
	defer closeTransport()

	transitions := make(chan model.StateTransition, 2*e.ring.Size())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.handleStateTransition(transitions)
	}()

	stopErrs := make(chan struct{})
	if transportErrs != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.forwardErrors(transportErrs, stopErrs)
		}()
	}

	result, err := e.ring.Run(ctx, links, transitions)
	close(transitions)
	close(stopErrs)
	wg.Wait()
	return result, err
}

// Errors returns a receive-only channel of callback and delivery errors
func (e *Elect) Errors() <-chan error {
	return e.errChan
}

// Ring returns the layout the elections run on.
func (e *Elect) Ring() *ring.Ring {
	return e.ring
}

func (e *Elect) transport() ([]model.Link, func(), <-chan error, error) {
	switch e.cfg.Transport {
	case "", config.TransportMemory:
		net := memory.NewNetwork(e.ring.Size())
		return net.Links(), net.Close, nil, nil
	case config.TransportRPC:
		addresses := make([]string, e.ring.Size())
		for rank := range addresses {
			addresses[rank] = e.cfg.Address(rank)
		}
		net, err := rpc.NewRing(e.ring.Identities(), addresses, e.cfg.TransportConfig(), e.logger)
		if err != nil {
			return nil, nil, nil, err
		}
		closer := func() {
			if err := net.Close(); err != nil {
				e.logger.Warn("elect, failed to close rpc ring", "error", err.Error())
			}
		}
		return net.Links(), closer, net.Errors(), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown transport %q", e.cfg.Transport)
	}
}

func (e *Elect) forwardErrors(errs <-chan error, stop <-chan struct{}) {
	for {
		select {
		case err := <-errs:
			e.sendError(err)
		case <-stop:
			return
		}
	}
}

func (e *Elect) sendError(err error) {
	select {
	case e.errChan <- err:
	default:
	}
}

func (e *Elect) handleStateTransition(stateChan <-chan model.StateTransition) {
	for st := range stateChan {
		e.logger.Debug("elect, role transition", "rank", st.Rank, "type", st.Type.String(),
			"state", st.State, "src", st.SrcState)

		var err error
		switch st.Type {
		case model.TransitionTypeLeave:
			switch st.State {
			case model.NodeStateCandidate:
				err = e.execStateHandler(e.callBacks.LeaveCandidate, st)
			case model.NodeStateActive:
				err = e.execStateHandler(e.callBacks.LeaveActive, st)
			}
		case model.TransitionTypeEnter:
			switch st.State {
			case model.NodeStateLeader:
				err = e.execStateHandler(e.callBacks.EnterLeader, st)
			case model.NodeStateRelay:
				err = e.execStateHandler(e.callBacks.EnterRelay, st)
			case model.NodeStateNonActive:
				err = e.execStateHandler(e.callBacks.EnterNonActive, st)
			}
		default:
		}
		if err != nil {
			e.sendError(err)
		}
	}
	e.logger.Debug("elect, state transition chan is closed")
}

func (e *Elect) execStateHandler(sh StateHandler, st model.StateTransition) error {
	if sh == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.callBackTimeout)
	defer cancel()

	if err := sh(ctx, st); err != nil {
		return fmt.Errorf("callback for rank %d %s %s: %w", st.Rank, st.Type, st.State, err)
	}
	return nil
}

type StateHandler func(ctx context.Context, st model.StateTransition) error

// StateCallBacks is a struct to hold role callbacks
type StateCallBacks struct {
	// EnterLeader is called on the process that wins
	EnterLeader StateHandler
	// EnterRelay is called when a doubling-ring candidate is defeated
	EnterRelay StateHandler
	// EnterNonActive is called when a unidirectional-ring process is defeated
	EnterNonActive StateHandler
	// LeaveCandidate is called when a doubling-ring process stops contending
	LeaveCandidate StateHandler
	// LeaveActive is called when a unidirectional-ring process stops contending
	LeaveActive StateHandler
}

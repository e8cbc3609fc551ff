package election

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danl5/ringelect/pkg/identity"
	"github.com/danl5/ringelect/pkg/log"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/transport/memory"
)

const harnessSize = 4

type runResult struct {
	outcome *model.Outcome
	err     error
}

// harness runs rank 0 of a four process ring for real and plays its two
// neighbors by hand.
type harness struct {
	t      *testing.T
	net    *memory.Network
	links  []model.Link
	proc   *Process
	cancel context.CancelFunc
	done   chan runResult
	trans  chan model.StateTransition
}

func startHarness(t *testing.T, algorithm model.Algorithm, uid int, initiator, passive bool) *harness {
	t.Helper()

	net := memory.NewNetwork(harnessSize)
	h := &harness{
		t:     t,
		net:   net,
		links: net.Links(),
		done:  make(chan runResult, 1),
		trans: make(chan model.StateTransition, 8),
	}
	cfg := model.ProcessConfig{
		Identity:  identity.New(0, uid, harnessSize),
		Algorithm: algorithm,
		Passive:   passive,
		Initiator: initiator,
	}
	proc, err := NewProcess(cfg, h.links[0], h.trans, log.Discard())
	require.NoError(t, err)
	h.proc = proc

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	h.cancel = cancel
	go func() {
		o, err := proc.Run(ctx)
		h.done <- runResult{outcome: o, err: err}
	}()
	t.Cleanup(func() {
		cancel()
		net.Close()
	})
	return h
}

// inject delivers msg to rank 0 on the given edge.
func (h *harness) inject(on model.Side, msg model.Message) {
	h.t.Helper()
	if on == model.SideLeft {
		require.NoError(h.t, h.links[harnessSize-1].Send(model.SideRight, msg))
		return
	}
	require.NoError(h.t, h.links[1].Send(model.SideLeft, msg))
}

// expect returns the next message rank 0 sent on the given edge.
func (h *harness) expect(on model.Side) model.Message {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	link, filter := h.links[1], model.Filter{From: model.SideLeft}
	if on == model.SideLeft {
		link, filter = h.links[harnessSize-1], model.Filter{From: model.SideRight}
	}
	env, err := link.Receive(ctx, filter)
	require.NoError(h.t, err, "rank 0 sent nothing to the %s", on)
	return env.Message
}

func (h *harness) wait() (*model.Outcome, error) {
	h.t.Helper()
	select {
	case r := <-h.done:
		return r.outcome, r.err
	case <-time.After(5 * time.Second):
		h.t.Fatal("process did not finish")
		return nil, nil
	}
}

func (h *harness) stop() error {
	h.cancel()
	_, err := h.wait()
	return err
}

package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/transport/mailbox"
)

var _ model.Link = (*Link)(nil)

// Link is one ring process reachable over tcp. Received messages land in
// an inbox; sent messages are queued per edge and delivered one at a time,
// which keeps every directed edge FIFO without blocking the sender.
type Link struct {
	id     model.Identity
	cfg    *Config
	rpc    *RPC
	logger *slog.Logger

	inbox *mailbox.Mailbox
	// outbox envelopes carry the destination edge in From
	outbox *mailbox.Mailbox

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	errChan chan error
	once    sync.Once
}

// NewLink creates the endpoint of id. Failed deliveries are reported on
// errChan when it is not nil, without blocking.
func NewLink(id model.Identity, cfg *Config, errChan chan error, logger *slog.Logger) (*Link, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	r, err := NewRPC(logger)
	if err != nil {
		return nil, err
	}
	return &Link{
		id:      id,
		cfg:     cfg,
		rpc:     r,
		logger:  logger.With("component", "rpc link", "rank", id.Rank),
		inbox:   mailbox.New(),
		outbox:  mailbox.New(),
		errChan: errChan,
	}, nil
}

// Listen starts serving deliveries on address.
func (l *Link) Listen(address string) error {
	return l.rpc.Start(address, l.HandleRequest, l.cfg)
}

// Addr returns the address the link listens on.
func (l *Link) Addr() string {
	return l.rpc.Addr()
}

// Connect sets up the neighbors and starts one sender per edge.
func (l *Link) Connect(left, right string) error {
	if err := l.rpc.Connect(l.id.Left, left, l.cfg); err != nil {
		return err
	}
	if err := l.rpc.Connect(l.id.Right, right, l.cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	for _, side := range []model.Side{model.SideLeft, model.SideRight} {
		l.wg.Add(1)
		go l.drain(ctx, side)
	}
	return nil
}

func (l *Link) Send(side model.Side, msg model.Message) error {
	if side != model.SideLeft && side != model.SideRight {
		return fmt.Errorf("send to %s edge", side)
	}
	return l.outbox.Put(model.Envelope{From: side, Message: msg})
}

func (l *Link) Receive(ctx context.Context, filter model.Filter) (model.Envelope, error) {
	return l.inbox.Take(ctx, filter)
}

// HandleRequest accepts a delivery from a neighbor.
func (l *Link) HandleRequest(request *model.Request, response *model.Response) error {
	response.Header = model.Header{Rank: l.id.Rank}

	switch request.CommandCode {
	case model.Deliver:
		msg := model.Message{}
		if err := l.rpc.Decode(request.Command, &msg); err != nil {
			l.logger.Error("failed to decode delivery", "from", request.Rank, "error", err.Error())
			response.Message = common.DeliverBadCommand.String()
			return fmt.Errorf("%s: %w", common.DeliverBadCommand, err)
		}
		if !msg.Tag.Valid() {
			response.Message = common.DeliverBadCommand.String()
			return fmt.Errorf("%w: %d from rank %d", common.ErrUnknownTag, msg.Tag, request.Rank)
		}
		// the sender's right edge is our left edge
		env := model.Envelope{From: request.Side.Opposite(), Message: msg}
		if err := l.inbox.Put(env); err != nil {
			response.Message = err.Error()
			return err
		}
		response.Ok = true
		response.Message = common.DeliverOk.String()
		return nil
	default:
		response.Message = common.DeliverUnknownCommand.String()
		return fmt.Errorf("%s: %d", common.DeliverUnknownCommand, request.CommandCode)
	}
}

// Close stops the senders, dropping undelivered messages, then shuts the
// server and the client pools.
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		if l.cancel != nil {
			l.cancel()
		}
		l.outbox.Close()
		l.wg.Wait()
		err = l.rpc.Stop()
		l.rpc.Client.Close()
		l.inbox.Close()
	})
	return err
}

func (l *Link) drain(ctx context.Context, side model.Side) {
	defer l.wg.Done()

	to := l.id.Right
	if side == model.SideLeft {
		to = l.id.Left
	}
	for {
		env, err := l.outbox.Take(ctx, model.Filter{From: side})
		if err != nil {
			return
		}
		if err := l.deliver(to, side, env.Message); err != nil {
			l.logger.Error("failed to deliver message", "to", to, "tag", env.Tag.String(), "error", err.Error())
			l.sendError(err)
		}
	}
}

func (l *Link) deliver(to int, side model.Side, msg model.Message) error {
	request := &model.Request{
		Header:      model.Header{Rank: l.id.Rank, Side: side},
		CommandCode: model.Deliver,
		Command:     msg,
	}
	response := &model.Response{}
	if err := l.rpc.SendRequest(to, request, response); err != nil {
		return err
	}
	if !response.Ok {
		return fmt.Errorf("rank %d rejected %s: %s", to, msg.Tag, response.Message)
	}
	return nil
}

func (l *Link) sendError(err error) {
	if l.errChan == nil {
		return
	}
	select {
	case l.errChan <- err:
	default:
	}
}

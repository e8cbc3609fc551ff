// Package ring runs every process of a ring concurrently and checks that
// they agree on a single leader.
package ring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/config"
	"github.com/danl5/ringelect/pkg/election"
	"github.com/danl5/ringelect/pkg/identity"
	"github.com/danl5/ringelect/pkg/model"
	"github.com/danl5/ringelect/pkg/monitoring"
)

// New validates cfg and lays out the processes of the ring.
func New(cfg *config.Config, logger *slog.Logger) (*Ring, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("new ring, logger is nil")
	}

	procs, err := identity.Assign(cfg)
	if err != nil {
		return nil, err
	}
	return &Ring{
		algorithm: cfg.Algorithm,
		procs:     procs,
		logger:    logger.With("component", "ring"),
	}, nil
}

// Ring is the fixed layout of one election.
type Ring struct {
	algorithm model.Algorithm
	procs     []model.ProcessConfig
	logger    *slog.Logger
}

// Size returns the number of processes.
func (r *Ring) Size() int {
	return len(r.procs)
}

// Processes returns the per-process configuration, indexed by rank.
func (r *Ring) Processes() []model.ProcessConfig {
	return r.procs
}

// Identities returns the identity of every rank.
func (r *Ring) Identities() []model.Identity {
	ids := make([]model.Identity, len(r.procs))
	for i, p := range r.procs {
		ids[i] = p.Identity
	}
	return ids
}

// Run starts one goroutine per process on links, indexed by rank, and
// waits for all of them. The first failing process cancels the others.
func (r *Ring) Run(ctx context.Context, links []model.Link, transitions chan<- model.StateTransition) (*model.Result, error) {
	if len(links) != len(r.procs) {
		return nil, fmt.Errorf("got %d links for %d processes", len(links), len(r.procs))
	}

	id := uuid.NewString()
	logger := r.logger.With("election", id)
	logger.Info("election started", "algorithm", r.algorithm.String(), "processes", len(r.procs))
	start := time.Now()

	procs := make([]*election.Process, len(r.procs))
	for rank, cfg := range r.procs {
		p, err := election.NewProcess(cfg, links[rank], transitions, logger)
		if err != nil {
			return nil, err
		}
		procs[rank] = p
	}

	outcomes := make([]*model.Outcome, len(procs))
	g, gctx := errgroup.WithContext(ctx)
	for rank, p := range procs {
		rank, p := rank, p
		g.Go(func() error {
			o, err := p.Run(gctx)
			if err != nil {
				return fmt.Errorf("rank %d: %w", rank, err)
			}
			outcomes[rank] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		monitoring.Elections.WithLabelValues(r.algorithm.String(), "failed").Inc()
		logger.Error("election failed", "error", err.Error())
		return nil, err
	}

	result, err := r.result(id, outcomes)
	if err != nil {
		monitoring.Elections.WithLabelValues(r.algorithm.String(), "inconsistent").Inc()
		logger.Error("election inconsistent", "error", err.Error())
		return nil, err
	}

	monitoring.Elections.WithLabelValues(r.algorithm.String(), "elected").Inc()
	monitoring.ElectionDuration.WithLabelValues(r.algorithm.String()).Observe(time.Since(start).Seconds())
	logger.Info("leader elected", "rank", result.LeaderRank, "uid", result.LeaderUID,
		"received", result.Totals.Received, "sent", result.Totals.Sent)
	return result, nil
}

func (r *Ring) result(id string, outcomes []*model.Outcome) (*model.Result, error) {
	result := &model.Result{ID: id, Algorithm: r.algorithm, LeaderRank: -1, Outcomes: outcomes}
	for _, o := range outcomes {
		if !o.IsLeader() {
			continue
		}
		if result.LeaderRank >= 0 {
			return nil, fmt.Errorf("%w: ranks %d and %d", common.ErrMultipleLeaders, result.LeaderRank, o.Rank)
		}
		result.LeaderRank, result.LeaderUID, result.Totals = o.Rank, o.UID, o.Totals
	}
	if result.LeaderRank < 0 {
		return nil, common.ErrNoLeader
	}

	for _, o := range outcomes {
		if o.MaxSeen < result.LeaderUID {
			return nil, fmt.Errorf("rank %d never learned leader uid %d, max seen %d", o.Rank, result.LeaderUID, o.MaxSeen)
		}
	}
	return result, nil
}

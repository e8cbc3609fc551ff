// Package identity hands every ring process its rank, uid and neighbors,
// and decides which processes start the election and which only relay.
package identity

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/config"
	"github.com/danl5/ringelect/pkg/model"
)

// random uids are drawn from [0, size*randomSpan+1)
const randomSpan = 1000000

// Neighbors returns the left and right ranks of rank in a ring of size.
func Neighbors(rank, size int) (left, right int) {
	return (rank - 1 + size) % size, (rank + 1) % size
}

// New builds the identity of rank.
func New(rank, uid, size int) model.Identity {
	left, right := Neighbors(rank, size)
	return model.Identity{Rank: rank, UID: uid, Size: size, Left: left, Right: right}
}

// CeilLog2 returns the smallest k with 2^k >= x, for x >= 1.
func CeilLog2(x int) int {
	k := 0
	for 1<<k < x {
		k++
	}
	return k
}

// ScaledUID derives a uid from rank and a scaling factor coprime to size.
// Over all ranks the result is a permutation of 0..size-1.
func ScaledUID(rank, factor, size int) int {
	return ((rank + 1) * factor) % size
}

// AssignUIDs returns the uid of every rank according to cfg.
func AssignUIDs(cfg *config.Config) []int {
	n := cfg.ProcessCount
	switch {
	case len(cfg.UIDs) > 0:
		uids := make([]int, n)
		copy(uids, cfg.UIDs)
		return uids
	case cfg.ScalingFactor != 0:
		uids := make([]int, n)
		for rank := range uids {
			uids[rank] = ScaledUID(rank, cfg.ScalingFactor, n)
		}
		return uids
	default:
		return randomUIDs(n, cfg.Seed)
	}
}

// randomUIDs draws one uid per rank from a per-rank source. A draw that
// collides with an earlier rank is redrawn from the same source.
func randomUIDs(n int, seed int64) []int {
	span := n*randomSpan + 1
	used := make(map[int]struct{}, n)
	uids := make([]int, n)
	for rank := range uids {
		rnd := rand.New(rand.NewSource(seed + int64(rank)))
		uid := rnd.Intn(span)
		for {
			if _, ok := used[uid]; !ok {
				break
			}
			uid = rnd.Intn(span)
		}
		used[uid] = struct{}{}
		uids[rank] = uid
	}
	return uids
}

// Initiators returns, per rank, whether the process starts contending on
// its own. Without passthrough every process is an initiator; with it, the
// single process holding the median uid is.
func Initiators(cfg *config.Config, uids []int) []bool {
	n := len(uids)
	initiators := make([]bool, n)
	switch {
	case len(cfg.Initiators) > 0:
		for _, r := range cfg.Initiators {
			initiators[r] = true
		}
	case !cfg.Passthrough:
		for r := range initiators {
			initiators[r] = true
		}
	default:
		initiators[medianRank(uids)] = true
	}
	return initiators
}

func medianRank(uids []int) int {
	ranks := make([]int, len(uids))
	for r := range ranks {
		ranks[r] = r
	}
	sort.Slice(ranks, func(i, j int) bool { return uids[ranks[i]] < uids[ranks[j]] })
	return ranks[(len(uids)-1)/2]
}

// Assign builds the full per-process configuration of a ring.
func Assign(cfg *config.Config) ([]model.ProcessConfig, error) {
	uids := AssignUIDs(cfg)
	initiators := Initiators(cfg, uids)
	relays := Relays(cfg, initiators)

	procs := make([]model.ProcessConfig, len(uids))
	anyInitiator := false
	for rank, uid := range uids {
		procs[rank] = model.ProcessConfig{
			Identity:  New(rank, uid, len(uids)),
			Algorithm: cfg.Algorithm,
			Passive:   relays[rank],
			Initiator: initiators[rank] && !relays[rank],
		}
		anyInitiator = anyInitiator || procs[rank].Initiator
	}
	if !anyInitiator {
		return nil, fmt.Errorf("%w: every initiator is a relay", common.ErrNoInitiator)
	}
	return procs, nil
}

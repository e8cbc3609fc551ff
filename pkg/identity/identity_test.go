package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/config"
	"github.com/danl5/ringelect/pkg/model"
)

func TestNeighbors(t *testing.T) {
	tests := []struct {
		rank, size  int
		left, right int
	}{
		{rank: 0, size: 5, left: 4, right: 1},
		{rank: 4, size: 5, left: 3, right: 0},
		{rank: 2, size: 5, left: 1, right: 3},
		{rank: 0, size: 2, left: 1, right: 1},
	}
	for _, tt := range tests {
		left, right := Neighbors(tt.rank, tt.size)
		assert.Equal(t, tt.left, left, "left of %d/%d", tt.rank, tt.size)
		assert.Equal(t, tt.right, right, "right of %d/%d", tt.rank, tt.size)

		id := New(tt.rank, 42, tt.size)
		assert.NoError(t, id.Validate())
	}
}

func TestCeilLog2(t *testing.T) {
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10, 1025: 11}
	for x, want := range cases {
		assert.Equal(t, want, CeilLog2(x), "ceil(log2(%d))", x)
	}
}

func TestScaledUIDsArePermutation(t *testing.T) {
	for _, tc := range []struct{ size, factor int }{{8, 11}, {7, 10}, {12, 25}, {2, 3}} {
		cfg := config.Default()
		cfg.ProcessCount = tc.size
		cfg.ScalingFactor = tc.factor
		require.NoError(t, cfg.Validate())

		uids := AssignUIDs(cfg)
		seen := make(map[int]bool)
		for _, uid := range uids {
			assert.GreaterOrEqual(t, uid, 0)
			assert.Less(t, uid, tc.size)
			assert.False(t, seen[uid], "uid %d repeated for size %d factor %d", uid, tc.size, tc.factor)
			seen[uid] = true
		}
	}
}

func TestRandomUIDsDistinctAndReproducible(t *testing.T) {
	a := randomUIDs(64, 99)
	b := randomUIDs(64, 99)
	assert.Equal(t, a, b)

	seen := make(map[int]bool)
	for _, uid := range a {
		assert.False(t, seen[uid])
		assert.Less(t, uid, 64*randomSpan+1)
		seen[uid] = true
	}
}

func TestInitiators(t *testing.T) {
	cfg := config.Default()
	cfg.ProcessCount = 5
	uids := []int{30, 10, 50, 20, 40}

	all := Initiators(cfg, uids)
	assert.Equal(t, []bool{true, true, true, true, true}, all)

	cfg.Passthrough = true
	single := Initiators(cfg, uids)
	// median uid is 30, held by rank 0
	assert.Equal(t, []bool{true, false, false, false, false}, single)

	cfg.Initiators = []int{3}
	explicit := Initiators(cfg, uids)
	assert.Equal(t, []bool{false, false, false, true, false}, explicit)
}

func TestInitiatorMatchesScaledMedian(t *testing.T) {
	cfg := config.Default()
	cfg.ProcessCount = 7
	cfg.ScalingFactor = 10
	cfg.Passthrough = true

	uids := AssignUIDs(cfg)
	initiators := Initiators(cfg, uids)
	for rank, init := range initiators {
		assert.Equal(t, uids[rank] == (cfg.ProcessCount-1)/2, init, "rank %d uid %d", rank, uids[rank])
	}
}

func TestRelays(t *testing.T) {
	cfg := config.Default()
	cfg.ProcessCount = 50
	cfg.Seed = 2014
	initiators := make([]bool, 50)
	initiators[10] = true

	none := Relays(cfg, initiators)
	for _, r := range none {
		assert.False(t, r)
	}

	cfg.Passthrough = true
	cfg.RelayRatio = 0.5
	drawn := Relays(cfg, initiators)
	assert.False(t, drawn[10], "an initiator is never a relay")
	assert.Equal(t, drawn, Relays(cfg, initiators), "draw is reproducible for a seed")

	cfg.Relays = []int{1, 2}
	explicit := Relays(cfg, initiators)
	count := 0
	for rank, r := range explicit {
		if r {
			count++
			assert.Contains(t, []int{1, 2}, rank)
		}
	}
	assert.Equal(t, 2, count)
}

func TestAssign(t *testing.T) {
	cfg := config.Default()
	cfg.ProcessCount = 4
	cfg.UIDs = []int{3, 1, 4, 2}
	cfg.Relays = []int{1}
	cfg.Algorithm = model.AlgorithmUnidirectional

	procs, err := Assign(cfg)
	require.NoError(t, err)
	require.Len(t, procs, 4)
	for rank, p := range procs {
		assert.Equal(t, rank, p.Rank)
		assert.Equal(t, cfg.UIDs[rank], p.UID)
		assert.Equal(t, model.AlgorithmUnidirectional, p.Algorithm)
		assert.Equal(t, rank == 1, p.Passive)
		assert.Equal(t, rank != 1, p.Initiator)
	}

	cfg.Passthrough = true
	cfg.Initiators = []int{1}
	_, err = Assign(cfg)
	assert.ErrorIs(t, err, common.ErrNoInitiator)
}

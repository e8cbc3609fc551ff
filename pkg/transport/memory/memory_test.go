package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danl5/ringelect/pkg/common"
	"github.com/danl5/ringelect/pkg/model"
)

func TestNetwork_Edges(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		rank     int
		side     model.Side
		wantRank int
		wantFrom model.Side
	}{
		{name: "right neighbor", size: 4, rank: 1, side: model.SideRight, wantRank: 2, wantFrom: model.SideLeft},
		{name: "left neighbor", size: 4, rank: 1, side: model.SideLeft, wantRank: 0, wantFrom: model.SideRight},
		{name: "wrap right", size: 4, rank: 3, side: model.SideRight, wantRank: 0, wantFrom: model.SideLeft},
		{name: "wrap left", size: 4, rank: 0, side: model.SideLeft, wantRank: 3, wantFrom: model.SideRight},
		{name: "two process ring", size: 2, rank: 0, side: model.SideLeft, wantRank: 1, wantFrom: model.SideRight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := NewNetwork(tt.size)
			defer net.Close()

			require.NoError(t, net.Link(tt.rank).Send(tt.side, model.Probe(9, 0, 0)))
			assert.Equal(t, 1, net.Pending())

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			env, err := net.Link(tt.wantRank).Receive(ctx, model.Filter{From: tt.wantFrom})
			require.NoError(t, err)
			assert.Equal(t, 9, env.Value)
			assert.Equal(t, model.TagProbe, env.Tag)
			assert.Zero(t, net.Pending())
		})
	}
}

func TestNetwork_FIFOAroundRing(t *testing.T) {
	net := NewNetwork(3)
	links := net.Links()
	for i := 0; i < 10; i++ {
		require.NoError(t, links[0].Send(model.SideRight, model.Probe(i, 0, 0)))
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		env, err := links[1].Receive(ctx, model.Filter{From: model.SideLeft})
		require.NoError(t, err)
		assert.Equal(t, i, env.Value)
	}
}

func TestNetwork_Close(t *testing.T) {
	net := NewNetwork(2)
	done := make(chan error, 1)
	go func() {
		_, err := net.Link(0).Receive(context.Background(), model.Filter{})
		done <- err
	}()

	net.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, common.ErrLinkClosed)
	case <-time.After(time.Second):
		t.Fatal("receive was not released by close")
	}
}

package group_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/group/local"
	"golang.org/x/sync/errgroup"
)

func TestComm_Split(t *testing.T) {
	tests := []struct {
		size         int
		rank         int
		expectedRank int
		expectedSize int
		expectedCtx  string
		expectedWld  []int
	}{
		{size: 2, rank: 0, expectedRank: 0, expectedSize: 1, expectedCtx: "w/0", expectedWld: []int{0}},
		{size: 2, rank: 1, expectedRank: 0, expectedSize: 1, expectedCtx: "w/1", expectedWld: []int{1}},
		{size: 5, rank: 4, expectedRank: 2, expectedSize: 3, expectedCtx: "w/0", expectedWld: []int{0, 2, 4}},
		{size: 5, rank: 3, expectedRank: 1, expectedSize: 2, expectedCtx: "w/1", expectedWld: []int{1, 3}},
		{size: 8, rank: 7, expectedRank: 3, expectedSize: 4, expectedCtx: "w/1", expectedWld: []int{1, 3, 5, 7}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", test.rank, test.size), func(t *testing.T) {
			comm, err := group.NewWorld(nil, test.rank, test.size)
			if err != nil {
				t.Fatalf("world error: %v", err)
			}
			child, err := comm.Split(context.Background())
			if err != nil {
				t.Fatalf("split error: %v", err)
			}
			if child.Rank() != test.expectedRank || child.Size() != test.expectedSize || child.Context() != test.expectedCtx {
				t.Errorf("child got: rank %d size %d context %s, expected: rank %d size %d context %s",
					child.Rank(), child.Size(), child.Context(), test.expectedRank, test.expectedSize, test.expectedCtx)
			}
			var world []int
			for r := 0; r < child.Size(); r++ {
				world = append(world, child.WorldRank(r))
			}
			if !reflect.DeepEqual(world, test.expectedWld) {
				t.Errorf("child members got: %v, expected: %v", world, test.expectedWld)
			}
		})
	}
}

func TestComm_SplitNested(t *testing.T) {
	comm, _ := group.NewWorld(nil, 6, 8)
	lower, _ := comm.Split(context.Background())
	inner, err := lower.Split(context.Background())
	if err != nil {
		t.Fatalf("split error: %v", err)
	}
	if inner.Context() != "w/0/1" || inner.Rank() != 1 || inner.WorldRank(0) != 2 {
		t.Errorf("nested group got: context %s rank %d leader %d", inner.Context(), inner.Rank(), inner.WorldRank(0))
	}
	single, _ := inner.Split(context.Background())
	if _, err := single.Split(context.Background()); !errors.Is(err, group.ErrSplitSingleton) {
		t.Errorf("split error got: %v, expected: %v", err, group.ErrSplitSingleton)
	}
}

func TestComm_Partner(t *testing.T) {
	one, _ := group.NewWorld(nil, 0, 1)
	three, _ := group.NewWorld(nil, 2, 3)
	if one.Partner() != -1 || three.Partner() != 1 {
		t.Errorf("partner got: %d and %d, expected: -1 and 1", one.Partner(), three.Partner())
	}
	if three.Color() != 0 {
		t.Errorf("color of rank 2 got: %d, expected: 0", three.Color())
	}
}

func TestNewWorld_Invalid(t *testing.T) {
	for _, rank := range []int{-1, 3} {
		if _, err := group.NewWorld(nil, rank, 3); !errors.Is(err, group.ErrInvalidRank) {
			t.Errorf("world error for rank %d got: %v, expected: %v", rank, err, group.ErrInvalidRank)
		}
	}
}

func TestComm_BcastGather(t *testing.T) {
	comms, err := local.World(5)
	if err != nil {
		t.Fatalf("world error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make([][]byte, len(comms))
	var gathered [][]byte
	g, gctx := errgroup.WithContext(ctx)
	for i := range comms {
		comm := comms[i]
		g.Go(func() error {
			payload, err := comm.Bcast(gctx, 0, group.TagHeader, []byte("head"))
			if err != nil {
				return err
			}
			received[comm.Rank()] = payload
			all, err := comm.Gather(gctx, 0, group.TagElapsed, []byte{byte(comm.Rank())})
			if comm.Rank() == 0 {
				gathered = all
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("collective error: %v", err)
	}
	for rank, payload := range received {
		if string(payload) != "head" {
			t.Errorf("rank %d received: %q", rank, payload)
		}
	}
	for rank, payload := range gathered {
		if len(payload) != 1 || int(payload[0]) != rank {
			t.Errorf("gathered payload of rank %d got: %v", rank, payload)
		}
	}
}

func TestComm_SendSelf(t *testing.T) {
	comms, _ := local.World(2)
	if err := comms[0].Send(context.Background(), 0, group.TagRoot, nil); !errors.Is(err, group.ErrInvalidRank) {
		t.Errorf("send error got: %v, expected: %v", err, group.ErrInvalidRank)
	}
}

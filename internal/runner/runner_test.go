package runner

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-sod/pkd/internal/dataset"
	"github.com/go-sod/pkd/internal/group/local"
	"github.com/go-sod/pkd/pkg/container/kdtree"
	"github.com/stretchr/testify/require"
)

func points(n, dims int) []kdtree.Node {
	return kdtree.FromPoints(dataset.Generate(n, dims, 99)...)
}

func TestRunner_Modes(t *testing.T) {
	expected := points(3000, 3)
	expectedRoot := kdtree.Grow(expected, 3, 0, 0)

	tests := []struct {
		mode    string
		workers int
	}{
		{mode: ModeSerial, workers: 1},
		{mode: ModeShared, workers: 4},
		{mode: ModeLocal, workers: 1},
		{mode: ModeLocal, workers: 5},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s_%d", test.mode, test.workers), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			r, err := New(3, WithMode(test.mode), WithWorkers(test.workers), WithTaskCutoff(64), WithVerify(true))
			require.NoError(t, err)

			res, err := r.Run(ctx, points(3000, 3))
			require.NoError(t, err)
			require.Equal(t, expectedRoot, res.Root)
			require.Equal(t, test.mode, res.Mode)
			require.Equal(t, test.workers, res.Workers)
			if !reflect.DeepEqual(res.Nodes, expected) {
				t.Errorf("%s tree differs from the serial tree", test.mode)
			}
			if res.MeanElapsed <= 0 || res.Elapsed <= 0 {
				t.Errorf("elapsed got: %s, mean: %s", res.Elapsed, res.MeanElapsed)
			}
		})
	}
}

func TestRunner_RunRank(t *testing.T) {
	r, err := New(2, WithMode(ModeGRPC))
	require.NoError(t, err)
	if _, err := r.Run(context.Background(), points(10, 2)); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("run error got: %v, expected: %v", err, ErrUnknownMode)
	}

	comms, err := local.World(2)
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() {
		res, err := r.RunRank(context.Background(), comms[1], nil)
		if err == nil && (res.Root != kdtree.None || res.Nodes != nil || res.MeanElapsed != 0) {
			err = fmt.Errorf("non owner result: %+v", res)
		}
		errCh <- err
	}()
	res, err := r.RunRank(context.Background(), comms[0], points(100, 2))
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.NoError(t, kdtree.Validate(res.Nodes, res.Root))
	require.Equal(t, 2, res.Workers)
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		err    bool
	}{
		{name: "defaults", config: Config{Mode: ModeLocal, Workers: 4, Compression: "none"}},
		{name: "zstd", config: Config{Mode: ModeGRPC, Workers: 1, Compression: "zstd"}},
		{name: "bad_mode", config: Config{Mode: "mpi", Workers: 4}, err: true},
		{name: "bad_workers", config: Config{Mode: ModeLocal}, err: true},
		{name: "bad_compression", config: Config{Mode: ModeLocal, Workers: 2, Compression: "rar"}, err: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewFromConfig(2, &test.config)
			if (err != nil) != test.err {
				t.Errorf("config error got: %v, expected error: %v", err, test.err)
			}
		})
	}
}

func TestShareDims(t *testing.T) {
	comms, err := local.World(3)
	require.NoError(t, err)
	got := make([]int, len(comms))
	errCh := make(chan error, len(comms))
	for i := range comms {
		go func(i int) {
			dims := 0
			if i == 0 {
				dims = 5
			}
			var err error
			got[i], err = ShareDims(context.Background(), comms[i], dims)
			errCh <- err
		}(i)
	}
	for range comms {
		require.NoError(t, <-errCh)
	}
	require.Equal(t, []int{5, 5, 5}, got)
}

package kdtree

import (
	"runtime"
	"sync"

	"github.com/go-sod/pkd/pkg/rworker"
)

const defaultCutoff = 4096

type TaskOption func(*taskOptions)

type taskOptions struct {
	cutoff  int
	workers int
}

// WithCutoff sets the range length below which subtrees are grown inline.
func WithCutoff(n int) TaskOption {
	return func(o *taskOptions) {
		if n > 0 {
			o.cutoff = n
		}
	}
}

// WithWorkers bounds the number of subtree goroutines running at once.
func WithWorkers(n int) TaskOption {
	return func(o *taskOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// GrowTasks produces the same tree as Grow, growing the lower subtree of large
// ranges on a separate goroutine while a worker slot is free.
func GrowTasks(nodes []Node, dims, axis, offset int, opts ...TaskOption) int {
	if dims <= 0 {
		panic("kdtree: dimensions must be positive")
	}
	o := taskOptions{cutoff: defaultCutoff, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	g := &taskGrower{
		dims:   dims,
		cutoff: o.cutoff,
		rate:   make(chan struct{}, o.workers),
	}
	root := g.grow(nodes, axis, offset)
	g.wg.Wait()
	return root
}

type taskGrower struct {
	wg     sync.WaitGroup
	rate   chan struct{}
	dims   int
	cutoff int
}

func (g *taskGrower) grow(nodes []Node, axis, offset int) int {
	if len(nodes) < g.cutoff {
		return Grow(nodes, g.dims, axis, offset)
	}
	md := SelectMedian(nodes, axis)
	next := (axis + 1) % g.dims
	median := &nodes[md]
	median.Axis = axis

	lower := nodes[:md]
	if !rworker.TryJob(&g.wg, func() error {
		median.Left = g.grow(lower, next, offset)
		return nil
	}, g.rate, nil) {
		median.Left = g.grow(lower, next, offset)
	}
	median.Right = g.grow(nodes[md+1:], next, offset+md+1)
	return offset + md
}

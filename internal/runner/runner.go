// Package runner times tree builds in every supported execution mode and
// reports the result seen by the owner of the data.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sod/pkd/internal/builder"
	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/group/local"
	"github.com/go-sod/pkd/internal/logging"
	"github.com/go-sod/pkd/internal/metric"
	"github.com/go-sod/pkd/internal/wire"
	"github.com/go-sod/pkd/pkg/container/kdtree"
	"golang.org/x/sync/errgroup"
)

const (
	ModeSerial = "serial"
	ModeShared = "shared"
	ModeLocal  = "local"
	ModeGRPC   = "grpc"
)

var ErrUnknownMode = errors.New("runner: unknown mode")

type Config struct {
	Mode            string        `envconfig:"KD_MODE" default:"local"`
	Workers         int           `envconfig:"KD_WORKERS" default:"4"`
	TaskCutoff      int           `envconfig:"KD_TASK_CUTOFF" default:"4096"`
	Compression     string        `envconfig:"KD_COMPRESSION" default:"none"`
	TransferTimeout time.Duration `envconfig:"KD_TRANSFER_TIMEOUT" default:"0s"`
	Verify          bool          `envconfig:"KD_VERIFY" default:"false"`
}

// Result is what a rank knows after a build. Nodes and Root are meaningful on
// the owner only; MeanElapsed is the build time averaged over every rank and
// is filled in on the owner.
type Result struct {
	Nodes       []kdtree.Node
	Root        int
	Elapsed     time.Duration
	MeanElapsed time.Duration
	Workers     int
	Mode        string
}

type Option func(*Runner)

func WithMode(mode string) Option {
	return func(r *Runner) {
		r.mode = mode
	}
}

func WithWorkers(n int) Option {
	return func(r *Runner) {
		r.workers = n
	}
}

func WithTaskCutoff(n int) Option {
	return func(r *Runner) {
		r.cutoff = n
	}
}

// WithVerify checks the tree on the owner after every build.
func WithVerify(verify bool) Option {
	return func(r *Runner) {
		r.verify = verify
	}
}

func WithBuilderOptions(opts ...builder.Option) Option {
	return func(r *Runner) {
		r.builderOpts = append(r.builderOpts, opts...)
	}
}

type Runner struct {
	dims        int
	mode        string
	workers     int
	cutoff      int
	verify      bool
	builderOpts []builder.Option
	builder     *builder.Builder
}

func New(dims int, opts ...Option) (*Runner, error) {
	r := &Runner{
		dims:    dims,
		mode:    ModeLocal,
		workers: 1,
	}
	for _, f := range opts {
		f(r)
	}
	switch r.mode {
	case ModeSerial, ModeShared, ModeLocal, ModeGRPC:
	default:
		return nil, fmt.Errorf("%q: %w", r.mode, ErrUnknownMode)
	}
	if r.workers <= 0 {
		return nil, fmt.Errorf("runner: invalid worker count %d", r.workers)
	}
	b, err := builder.New(dims, r.builderOpts...)
	if err != nil {
		return nil, err
	}
	r.builder = b
	return r, nil
}

// NewFromConfig maps the environment configuration onto runner options.
func NewFromConfig(dims int, config *Config) (*Runner, error) {
	compression, err := wire.ParseCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return New(dims,
		WithMode(config.Mode),
		WithWorkers(config.Workers),
		WithTaskCutoff(config.TaskCutoff),
		WithVerify(config.Verify),
		WithBuilderOptions(
			builder.WithCompression(compression),
			builder.WithTransferTimeout(config.TransferTimeout),
		),
	)
}

func (r *Runner) Mode() string {
	return r.mode
}

// Run builds the tree over nodes inside this process. The grpc mode spans
// processes and goes through RunRank instead.
func (r *Runner) Run(ctx context.Context, nodes []kdtree.Node) (Result, error) {
	switch r.mode {
	case ModeSerial:
		return r.runSerial(ctx, nodes, kdtree.Grow)
	case ModeShared:
		return r.runSerial(ctx, nodes, func(nodes []kdtree.Node, dims, axis, offset int) int {
			return kdtree.GrowTasks(nodes, dims, axis, offset, kdtree.WithCutoff(r.cutoff), kdtree.WithWorkers(r.workers))
		})
	case ModeLocal:
		return r.runLocal(ctx, nodes)
	default:
		return Result{}, fmt.Errorf("%q cannot run in one process: %w", r.mode, ErrUnknownMode)
	}
}

func (r *Runner) runSerial(ctx context.Context, nodes []kdtree.Node, grow func([]kdtree.Node, int, int, int) int) (Result, error) {
	start := time.Now()
	root := grow(nodes, r.dims, 0, 0)
	elapsed := time.Since(start)

	res := Result{
		Nodes:       nodes,
		Root:        root,
		Elapsed:     elapsed,
		MeanElapsed: elapsed,
		Workers:     r.workers,
		Mode:        r.mode,
	}
	if r.mode == ModeSerial {
		res.Workers = 1
	}
	return res, r.finish(ctx, res)
}

func (r *Runner) runLocal(ctx context.Context, nodes []kdtree.Node) (Result, error) {
	comms, err := local.World(r.workers)
	if err != nil {
		return Result{}, err
	}
	var owner Result
	g, gctx := errgroup.WithContext(ctx)
	for i := range comms {
		comm := comms[i]
		g.Go(func() error {
			var owned []kdtree.Node
			if comm.Rank() == 0 {
				owned = nodes
			}
			res, err := r.RunRank(gctx, comm, owned)
			if err != nil {
				return fmt.Errorf("rank %d: %w", comm.Rank(), err)
			}
			if comm.Rank() == 0 {
				owner = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return owner, nil
}

// RunRank runs the build as one member of comm. Every member of the group must
// call it; only rank 0 passes nodes.
func (r *Runner) RunRank(ctx context.Context, comm group.Comm, nodes []kdtree.Node) (Result, error) {
	start := time.Now()
	root, err := r.builder.Build(ctx, comm, nodes, 0, 0)
	if err != nil {
		return Result{}, err
	}
	elapsed := time.Since(start)

	mean, err := meanElapsed(ctx, comm, elapsed)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Root:        root,
		Elapsed:     elapsed,
		MeanElapsed: mean,
		Workers:     comm.Size(),
		Mode:        r.mode,
	}
	if comm.Rank() != 0 {
		metric.RecordBuild(ctx, r.mode, comm.Size(), 0, elapsed)
		return res, nil
	}
	res.Nodes = nodes
	return res, r.finish(ctx, res)
}

// meanElapsed gathers every rank's build time on rank 0 and averages it.
func meanElapsed(ctx context.Context, comm group.Comm, elapsed time.Duration) (time.Duration, error) {
	payload, err := wire.EncodeFloat(elapsed.Seconds())
	if err != nil {
		return 0, err
	}
	all, err := comm.Gather(ctx, 0, group.TagElapsed, payload)
	if err != nil {
		return 0, fmt.Errorf("runner: gather elapsed: %w", err)
	}
	if comm.Rank() != 0 {
		return 0, nil
	}
	var sum float64
	for rank, p := range all {
		v, err := wire.DecodeFloat(p)
		if err != nil {
			return 0, fmt.Errorf("runner: elapsed of rank %d: %w", rank, err)
		}
		sum += v
	}
	return time.Duration(sum / float64(len(all)) * float64(time.Second)), nil
}

func (r *Runner) finish(ctx context.Context, res Result) error {
	logger := logging.FromContext(ctx)
	metric.RecordBuild(ctx, res.Mode, res.Workers, len(res.Nodes), res.Elapsed)
	logger.Debugf("runner: %s build of %d points on %d workers took %s", res.Mode, len(res.Nodes), res.Workers, res.MeanElapsed)
	if !r.verify {
		return nil
	}
	if err := kdtree.Validate(res.Nodes, res.Root); err != nil {
		return fmt.Errorf("runner: %w", err)
	}
	logger.Infof("runner: tree verified")
	return nil
}

// ProvideFn creates a runner for points of dims dimensions.
type ProvideFn func(dims int) (*Runner, error)

// ShareDims broadcasts the dimensionality known to rank 0 so that every rank
// can rotate the splitting axis.
func ShareDims(ctx context.Context, comm group.Comm, dims int) (int, error) {
	var payload []byte
	if comm.Rank() == 0 {
		var err error
		if payload, err = wire.EncodeInt(dims); err != nil {
			return 0, err
		}
	}
	payload, err := comm.Bcast(ctx, 0, group.TagDims, payload)
	if err != nil {
		return 0, fmt.Errorf("runner: share dims: %w", err)
	}
	return wire.DecodeInt(payload)
}

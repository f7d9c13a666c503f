package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/go-sod/pkd/internal/buildinfo"
	pkd "github.com/go-sod/pkd/internal/config"
	"github.com/go-sod/pkd/internal/dataset"
	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/ledger"
	"github.com/go-sod/pkd/internal/logging"
	"github.com/go-sod/pkd/internal/runner"
	"github.com/go-sod/pkd/internal/server"
	"github.com/go-sod/pkd/internal/setup"
	"github.com/go-sod/pkd/internal/shutdown"
	"github.com/go-sod/pkd/pkg/container/kdtree"
	"google.golang.org/grpc"
)

func main() {
	_, _ = fmt.Fprint(os.Stderr, buildinfo.Graffiti)
	_, _ = fmt.Fprintf(
		os.Stderr,
		"%s worker: %s, %s\n",
		buildinfo.Info.Name(),
		buildinfo.Info.Time(),
		buildinfo.Info.Tag(),
	)

	ctx, done := shutdown.New()
	logger := logging.FromContext(ctx)
	if err := run(ctx, done); err != nil {
		logger.Fatal(err)
	}

	defer done()
}

func run(ctx context.Context, cancel func()) error {
	logger := logging.FromContext(ctx)
	config := pkd.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)
	network := config.Network

	transport, closeTransport, err := env.ProvideTransport()(ctx)
	if err != nil {
		return fmt.Errorf("transport provider function error: %w", err)
	}
	defer closeTransport()

	grpcSrv, err := server.New(network.Addr)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	exchange := grpc.NewServer()
	transport.Register(exchange)
	go func() {
		if err := grpcSrv.ServeGRPC(ctx, exchange); err != nil {
			logger.Errorf("exchange server: %v", err)
			cancel()
		}
	}()

	httpSrv, err := server.New(config.SrvAddr, server.WithMaxConns(config.MaxConns))
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/health", server.HandleHealth(ctx))
	if h := env.MetricHandler(); h != nil {
		mux.Handle("/metrics", h)
	}
	go func() {
		if err := httpSrv.ServeHTTPHandler(ctx, mux); err != nil {
			logger.Errorf("http server: %v", err)
			cancel()
		}
	}()

	comm, err := group.NewWorld(transport, network.Rank, network.Size)
	if err != nil {
		return fmt.Errorf("group.NewWorld: %w", err)
	}

	var (
		nodes []kdtree.Node
		dims  int
	)
	if comm.Rank() == 0 {
		sep, err := config.Dataset.Rune()
		if err != nil {
			return err
		}
		points, err := dataset.ReadFile(config.Dataset.Path, sep, config.Dataset.Dims)
		if err != nil {
			return fmt.Errorf("dataset.ReadFile: %w", err)
		}
		dims = config.Dataset.Dims
		if len(points) > 0 {
			dims = points[0].Dimensions()
		}
		if dims == 0 {
			dims = 1
		}
		nodes = kdtree.FromPoints(points...)
		logger.Infof("loaded %d points of %d dimensions from %s", len(points), dims, config.Dataset.Path)
	}
	if dims, err = runner.ShareDims(ctx, comm, dims); err != nil {
		return err
	}

	config.Runner.Mode = runner.ModeGRPC
	r, err := env.ProvideRunner()(dims)
	if err != nil {
		return fmt.Errorf("runner provider function error: %w", err)
	}
	res, err := r.RunRank(ctx, comm, nodes)
	if err != nil {
		return fmt.Errorf("runner.RunRank: %w", err)
	}
	logger.Infof("rank %d of %d built its share in %s", comm.Rank(), comm.Size(), res.Elapsed)
	if comm.Rank() != 0 {
		return nil
	}

	fmt.Printf("Tree grown in %fs\nTree root is at node %d\n", res.MeanElapsed.Seconds(), res.Root)
	if db := env.Database(); db != nil {
		run := ledger.NewRun(config.Dataset.Path, res.Mode, res.Workers, len(nodes), dims, res.MeanElapsed)
		store := ledger.New(db)
		if err := store.Store(ctx, run); err != nil {
			return fmt.Errorf("ledger.Store: %w", err)
		}
		retention := ledger.Retention{MaxRuns: config.Database.MaxRuns, MaxAge: config.Database.MaxAge}
		if err := store.Prune(ctx, retention); err != nil {
			return fmt.Errorf("ledger.Prune: %w", err)
		}
	}
	return nil
}

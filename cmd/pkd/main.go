package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-sod/pkd/internal/buildinfo"
	pkd "github.com/go-sod/pkd/internal/config"
	"github.com/go-sod/pkd/internal/dataset"
	"github.com/go-sod/pkd/internal/ledger"
	"github.com/go-sod/pkd/internal/logging"
	"github.com/go-sod/pkd/internal/runner"
	"github.com/go-sod/pkd/internal/setup"
	"github.com/go-sod/pkd/internal/shutdown"
	"github.com/go-sod/pkd/pkg/container/kdtree"
)

const usage = `usage:
  pkd build [-print] [-no-record]   build a tree over $KD_DATA in $KD_MODE (serial|shared|local)
  pkd gen [-seed n] <points> <dims> [path]   write uniform(0,100) points to path or $KD_DATA
  pkd runs [-weak] [dataset]   scaling report of recorded builds
`

func main() {
	_, _ = fmt.Fprint(os.Stderr, buildinfo.Graffiti)
	_, _ = fmt.Fprintf(
		os.Stderr,
		"%s: %s, %s\n",
		buildinfo.Info.Name(),
		buildinfo.Info.Time(),
		buildinfo.Info.Tag(),
	)

	ctx, done := shutdown.New()
	defer done()
	logger := logging.FromContext(ctx)
	if len(os.Args) < 2 {
		_, _ = fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Fatal(err)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "build":
		return build(ctx, args)
	case "gen":
		return gen(ctx, args)
	case "runs":
		return runs(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func build(ctx context.Context, args []string) error {
	logger := logging.FromContext(ctx)
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	printTree := fs.Bool("print", false, "print the annotated nodes")
	noRecord := fs.Bool("no-record", false, "do not record the build in the ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config := pkd.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)

	sep, err := config.Dataset.Rune()
	if err != nil {
		return err
	}
	points, err := dataset.ReadFile(config.Dataset.Path, sep, config.Dataset.Dims)
	if err != nil {
		return fmt.Errorf("dataset.ReadFile: %w", err)
	}
	dims := config.Dataset.Dims
	if len(points) > 0 {
		dims = points[0].Dimensions()
	}
	if dims == 0 {
		dims = 1
	}
	logger.Infof("loaded %d points of %d dimensions from %s", len(points), dims, config.Dataset.Path)

	r, err := env.ProvideRunner()(dims)
	if err != nil {
		return fmt.Errorf("runner provider function error: %w", err)
	}
	res, err := r.Run(ctx, kdtree.FromPoints(points...))
	if err != nil {
		return fmt.Errorf("runner.Run: %w", err)
	}
	if err := report(os.Stdout, res, *printTree); err != nil {
		return err
	}

	if db := env.Database(); db != nil && !*noRecord {
		run := ledger.NewRun(config.Dataset.Path, res.Mode, res.Workers, len(points), dims, res.MeanElapsed)
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

func report(w io.Writer, res runner.Result, printTree bool) error {
	if printTree {
		if err := kdtree.Fprint(w, res.Nodes); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Tree grown in %fs\nTree root is at node %d\n", res.MeanElapsed.Seconds(), res.Root)
	return err
}

func gen(ctx context.Context, args []string) error {
	logger := logging.FromContext(ctx)
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	seed := fs.Uint("seed", 0, "generator seed, 0 draws a random one")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("gen needs <points> <dims>\n%s", usage)
	}
	n, err := strconv.Atoi(fs.Arg(0))
	if err != nil || n < 0 {
		return fmt.Errorf("invalid point count %q", fs.Arg(0))
	}
	dims, err := strconv.Atoi(fs.Arg(1))
	if err != nil || dims <= 0 {
		return fmt.Errorf("invalid dimensions %q", fs.Arg(1))
	}

	config := pkd.Config{}
	if _, err := setup.Setup(ctx, &config.Dataset); err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	path := config.Dataset.Path
	if fs.NArg() > 2 {
		path = fs.Arg(2)
	}
	sep, err := config.Dataset.Rune()
	if err != nil {
		return err
	}
	if err := dataset.WriteFile(path, dataset.Generate(n, dims, uint32(*seed)), sep); err != nil {
		return fmt.Errorf("dataset.WriteFile: %w", err)
	}
	logger.Infof("wrote %d points of %d dimensions to %s", n, dims, path)
	return nil
}

func runs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	weak := fs.Bool("weak", false, "compare runs with equal points per worker")
	if err := fs.Parse(args); err != nil {
		return err
	}

	config := pkd.Config{}
	env, err := setup.Setup(ctx, &config)
	if err != nil {
		return fmt.Errorf("setup.Setup: %w", err)
	}
	defer env.Close(ctx)
	if env.Database() == nil {
		return fmt.Errorf("no ledger configured, set KD_LEDGER_FILE")
	}
	store := ledger.New(env.Database())

	datasets := fs.Args()
	if len(datasets) == 0 {
		if datasets, err = store.Datasets(); err != nil {
			return fmt.Errorf("ledger.Datasets: %w", err)
		}
	}
	scaling := ledger.Strong
	if *weak {
		scaling = ledger.Weak
	}
	for _, name := range datasets {
		for _, mode := range []string{runner.ModeShared, runner.ModeLocal, runner.ModeGRPC} {
			// serial builds serve as the single worker baseline of every mode
			list, err := store.FindByDataset(name, func(run ledger.Run) bool {
				return run.Mode == mode || run.Mode == runner.ModeSerial
			})
			if err != nil {
				return fmt.Errorf("ledger.FindByDataset: %w", err)
			}
			if !hasMode(list, mode) {
				continue
			}
			rows, err := ledger.Report(list, scaling)
			if err != nil {
				fmt.Printf("%s (%s): %v\n\n", name, mode, err)
				continue
			}
			fmt.Printf("%s (%s)\n", name, mode)
			if err := ledger.Fprint(os.Stdout, rows); err != nil {
				return err
			}
			fmt.Println()
		}
	}
	return nil
}

func hasMode(list []ledger.Run, mode string) bool {
	for _, run := range list {
		if run.Mode == mode {
			return true
		}
	}
	return false
}

package ledger

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"
)

var ErrNoBaseline = errors.New("ledger: no single worker run")

// Scaling selects how runs are compared with the single worker baseline.
type Scaling uint8

const (
	// Strong compares runs over the same number of points.
	Strong Scaling = iota
	// Weak compares runs whose points per worker match the baseline.
	Weak
)

// Row is the averaged result of every run with one worker count.
type Row struct {
	Workers    int
	Points     int
	Runs       int
	Elapsed    time.Duration
	Speedup    float64
	Efficiency float64
}

// Report averages runs per worker count and relates them to the single worker
// run. Runs of different modes must be reported separately.
func Report(runs []Run, scaling Scaling) ([]Row, error) {
	type acc struct {
		points int
		sum    time.Duration
		n      int
	}
	byWorkers := make(map[int]*acc)
	for _, run := range runs {
		if run.Workers <= 0 {
			continue
		}
		a, ok := byWorkers[run.Workers]
		if !ok {
			a = &acc{points: run.Points}
			byWorkers[run.Workers] = a
		}
		a.sum += run.Elapsed
		a.n++
	}
	base, ok := byWorkers[1]
	if !ok || base.sum <= 0 {
		return nil, ErrNoBaseline
	}
	baseline := float64(base.sum) / float64(base.n)

	rows := make([]Row, 0, len(byWorkers))
	for workers, a := range byWorkers {
		switch scaling {
		case Strong:
			if a.points != base.points {
				continue
			}
		case Weak:
			if a.points != base.points*workers {
				continue
			}
		}
		elapsed := float64(a.sum) / float64(a.n)
		row := Row{
			Workers: workers,
			Points:  a.points,
			Runs:    a.n,
			Elapsed: time.Duration(elapsed),
		}
		if elapsed > 0 {
			switch scaling {
			case Strong:
				row.Speedup = baseline / elapsed
				row.Efficiency = row.Speedup / float64(workers)
			case Weak:
				row.Efficiency = baseline / elapsed
				row.Speedup = row.Efficiency * float64(workers)
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Workers < rows[j].Workers })
	return rows, nil
}

// Fprint writes rows as an aligned table.
func Fprint(w io.Writer, rows []Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "workers\tpoints\truns\telapsed\tspeedup\tefficiency")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%.2f\t%.2f\n", r.Workers, r.Points, r.Runs, r.Elapsed, r.Speedup, r.Efficiency)
	}
	return tw.Flush()
}

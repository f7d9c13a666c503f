// Package metric records build measurements with OpenCensus and exports them
// in the Prometheus text format.
package metric

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

type Config struct {
	Namespace string `envconfig:"KD_METRIC_NAMESPACE" default:"pkd"`
	Addr      string `envconfig:"KD_METRIC_ADDR" default:":9090"`
	Enabled   bool   `envconfig:"KD_METRIC_ENABLED" default:"true"`
}

var (
	BuildLatency  = stats.Float64("pkd/build_latency", "Wall time of one tree build on a rank", stats.UnitMilliseconds)
	BuildNodes    = stats.Int64("pkd/build_nodes", "Points handed to a tree build", stats.UnitDimensionless)
	TransferBytes = stats.Int64("pkd/transfer_bytes", "Bytes sent between ranks", stats.UnitBytes)
	Transfers     = stats.Int64("pkd/transfers", "Messages sent between ranks", stats.UnitDimensionless)
)

var (
	KeyMode    = tag.MustNewKey("mode")
	KeyWorkers = tag.MustNewKey("workers")
	KeyTag     = tag.MustNewKey("tag")
)

var Views = []*view.View{
	{
		Name:        "build_latency",
		Measure:     BuildLatency,
		Description: "Distribution of build wall time",
		TagKeys:     []tag.Key{KeyMode, KeyWorkers},
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000),
	},
	{
		Name:        "build_nodes",
		Measure:     BuildNodes,
		Description: "Points handed to builds",
		TagKeys:     []tag.Key{KeyMode, KeyWorkers},
		Aggregation: view.Sum(),
	},
	{
		Name:        "transfer_bytes",
		Measure:     TransferBytes,
		Description: "Bytes sent between ranks",
		TagKeys:     []tag.Key{KeyTag},
		Aggregation: view.Sum(),
	},
	{
		Name:        "transfers",
		Measure:     Transfers,
		Description: "Messages sent between ranks",
		TagKeys:     []tag.Key{KeyTag},
		Aggregation: view.Count(),
	},
}

var registerOnce sync.Once

// Register subscribes the package views. Calling it more than once is a no-op.
func Register() error {
	var err error
	registerOnce.Do(func() {
		err = view.Register(Views...)
	})
	if err != nil {
		return fmt.Errorf("metric: register views: %w", err)
	}
	return nil
}

// Handler registers the views and returns the Prometheus scrape handler.
func Handler(config *Config) (http.Handler, error) {
	if err := Register(); err != nil {
		return nil, err
	}
	exporter, err := prometheus.NewExporter(prometheus.Options{Namespace: config.Namespace})
	if err != nil {
		return nil, fmt.Errorf("metric: prometheus exporter: %w", err)
	}
	return exporter, nil
}

// RecordBuild records one completed build on a rank.
func RecordBuild(ctx context.Context, mode string, workers, n int, elapsed time.Duration) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyMode, mode), tag.Upsert(KeyWorkers, strconv.Itoa(workers))},
		BuildLatency.M(float64(elapsed)/float64(time.Millisecond)),
		BuildNodes.M(int64(n)),
	)
}

// RecordTransfer records one message of n bytes.
func RecordTransfer(ctx context.Context, tagName string, n int) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyTag, tagName)},
		TransferBytes.M(int64(n)),
		Transfers.M(1),
	)
}

package pkd

import (
	"github.com/go-sod/pkd/internal/database"
	"github.com/go-sod/pkd/internal/dataset"
	"github.com/go-sod/pkd/internal/group/grpcnet"
	"github.com/go-sod/pkd/internal/metric"
	"github.com/go-sod/pkd/internal/runner"
	"github.com/go-sod/pkd/internal/setup"
)

var (
	_ setup.RunnerConfigProvider   = (*Config)(nil)
	_ setup.DatabaseConfigProvider = (*Config)(nil)
	_ setup.NetworkConfigProvider  = (*Config)(nil)
	_ setup.MetricConfigProvider   = (*Config)(nil)
	_ setup.LedgerOwnerProvider    = (*Config)(nil)
)

type Config struct {
	SrvAddr  string `envconfig:"KD_ADDR" default:":8787"`
	MaxConns int    `envconfig:"KD_MAX_CONNS" default:"64"`
	Runner   runner.Config
	Dataset  dataset.Config
	Database database.Config
	Network  grpcnet.Config
	Metric   metric.Config
}

func (c *Config) RunnerConfig() *runner.Config {
	return &c.Runner
}

func (c *Config) DatasetConfig() *dataset.Config {
	return &c.Dataset
}

func (c *Config) DatabaseConfig() *database.Config {
	return &c.Database
}

func (c *Config) NetworkConfig() *grpcnet.Config {
	return &c.Network
}

func (c *Config) MetricConfig() *metric.Config {
	return &c.Metric
}

// OwnsLedger is true on rank 0, the only rank that records builds.
func (c *Config) OwnsLedger() bool {
	return c.Network.Rank == 0
}

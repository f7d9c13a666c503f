package setup

import (
	"context"
	"fmt"

	"github.com/go-sod/pkd/internal/database"
	"github.com/go-sod/pkd/internal/group/grpcnet"
	"github.com/go-sod/pkd/internal/logging"
	"github.com/go-sod/pkd/internal/metric"
	"github.com/go-sod/pkd/internal/runner"
	"github.com/go-sod/pkd/internal/srvenv"
	"github.com/kelseyhightower/envconfig"
)

type RunnerConfigProvider interface {
	RunnerConfig() *runner.Config
}

type DatabaseConfigProvider interface {
	DatabaseConfig() *database.Config
}

// LedgerOwnerProvider lets a config decline the ledger, as every worker of a
// world but rank 0 does.
type LedgerOwnerProvider interface {
	OwnsLedger() bool
}

type NetworkConfigProvider interface {
	NetworkConfig() *grpcnet.Config
}

type MetricConfigProvider interface {
	MetricConfig() *metric.Config
}

// Setup loads config from the environment and prepares every component the
// config provides for.
func Setup(ctx context.Context, config interface{}) (*srvenv.SrvEnv, error) {
	logger := logging.FromContext(ctx)
	var serverEnvOpts []srvenv.Option
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	if dbConfigProvider, ok := config.(DatabaseConfigProvider); ok && dbConfigProvider.DatabaseConfig().FileName != "" && ownsLedger(config) {
		logger.Info("Configuring ledger")
		db, err := database.NewFromEnv(ctx, dbConfigProvider.DatabaseConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to open ledger: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithDatabase(db))
	}

	if runnerConfigProvider, ok := config.(RunnerConfigProvider); ok {
		logger.Info("Configuring runner")
		serverEnvOpts = append(serverEnvOpts, srvenv.WithRunner(ProvideRunnerFor(runnerConfigProvider)))
	}

	if networkConfigProvider, ok := config.(NetworkConfigProvider); ok {
		logger.Info("Configuring network")
		serverEnvOpts = append(serverEnvOpts, srvenv.WithTransport(ProvideTransportFor(networkConfigProvider)))
	}

	if metricConfigProvider, ok := config.(MetricConfigProvider); ok && metricConfigProvider.MetricConfig().Enabled {
		logger.Info("Configuring metrics")
		handler, err := metric.Handler(metricConfigProvider.MetricConfig())
		if err != nil {
			return nil, fmt.Errorf("unable create metric handler: %w", err)
		}
		serverEnvOpts = append(serverEnvOpts, srvenv.WithMetricHandler(handler))
	}

	return srvenv.New(serverEnvOpts...), nil
}

func ownsLedger(config interface{}) bool {
	if p, ok := config.(LedgerOwnerProvider); ok {
		return p.OwnsLedger()
	}
	return true
}

func ProvideRunnerFor(provider RunnerConfigProvider) runner.ProvideFn {
	cfg := provider.RunnerConfig()
	return func(dims int) (*runner.Runner, error) {
		return runner.NewFromConfig(dims, cfg)
	}
}

func ProvideTransportFor(provider NetworkConfigProvider) grpcnet.ProvideFn {
	cfg := provider.NetworkConfig()
	return func(ctx context.Context) (*grpcnet.Transport, func() error, error) {
		resolver, closeFn, err := grpcnet.ResolverFor(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		transport := grpcnet.NewTransport(cfg.Rank, resolver)
		return transport, func() error {
			err := transport.Close()
			if cerr := closeFn(); err == nil {
				err = cerr
			}
			return err
		}, nil
	}
}

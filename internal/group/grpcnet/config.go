package grpcnet

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-sod/pkd/internal/logging"
)

type Config struct {
	Rank        int           `envconfig:"KD_RANK" default:"0"`
	Size        int           `envconfig:"KD_SIZE" default:"1"`
	Addr        string        `envconfig:"KD_GRPC_ADDR" default:":7070"`
	Advertise   string        `envconfig:"KD_ADVERTISE_ADDR"`
	Peers       []string      `envconfig:"KD_PEERS"`
	ClusterFile string        `envconfig:"KD_CLUSTER_FILE"`
	RedisAddr   string        `envconfig:"KD_REDIS_ADDR"`
	RedisPrefix string        `envconfig:"KD_REDIS_PREFIX" default:"pkd:peer:"`
	RedisTTL    time.Duration `envconfig:"KD_REDIS_TTL" default:"10m"`
}

// ResolverFor picks the peer source: an explicit peer list, then a cluster
// file, then Redis. With Redis the local rank announces its own address. The
// returned function releases the resolver.
func ResolverFor(ctx context.Context, config *Config) (Resolver, func() error, error) {
	logger := logging.FromContext(ctx)
	noop := func() error { return nil }
	switch {
	case len(config.Peers) > 0:
		logger.Infof("grpcnet: %d peers from environment", len(config.Peers))
		return Static(config.Peers), noop, nil
	case config.ClusterFile != "":
		peers, err := LoadCluster(config.ClusterFile)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("grpcnet: %d peers from %s", len(peers), config.ClusterFile)
		return peers, noop, nil
	case config.RedisAddr != "":
		r := NewRedis(redis.NewClient(&redis.Options{Addr: config.RedisAddr}), config.RedisPrefix)
		advertise := config.Advertise
		if advertise == "" {
			advertise = config.Addr
		}
		if err := r.Announce(ctx, config.Rank, advertise, config.RedisTTL); err != nil {
			_ = r.Close()
			return nil, nil, err
		}
		logger.Infof("grpcnet: rank %d announced %s on redis %s", config.Rank, advertise, config.RedisAddr)
		return r, r.Close, nil
	default:
		return nil, nil, fmt.Errorf("grpcnet: no peers configured, set KD_PEERS, KD_CLUSTER_FILE or KD_REDIS_ADDR")
	}
}

// ProvideFn creates the transport of the local rank and the function that
// releases it.
type ProvideFn func(ctx context.Context) (*Transport, func() error, error)

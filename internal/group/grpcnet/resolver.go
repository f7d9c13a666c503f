package grpcnet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-redis/redis/v8"
)

var ErrUnknownPeer = errors.New("grpcnet: unknown peer")

// Resolver maps a world rank to the address its exchange service listens on.
type Resolver interface {
	Resolve(ctx context.Context, rank int) (string, error)
}

// Static resolves ranks from a list indexed by rank.
type Static []string

func (s Static) Resolve(_ context.Context, rank int) (string, error) {
	if rank < 0 || rank >= len(s) || s[rank] == "" {
		return "", fmt.Errorf("rank %d: %w", rank, ErrUnknownPeer)
	}
	return s[rank], nil
}

type clusterFile struct {
	Peer []struct {
		Rank int    `toml:"rank"`
		Addr string `toml:"addr"`
	} `toml:"peer"`
}

// LoadCluster reads a TOML cluster file of [[peer]] tables with rank and addr
// keys. Ranks must cover 0..n-1 exactly once.
func LoadCluster(path string) (Static, error) {
	var file clusterFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("grpcnet: cluster file %s: %w", path, err)
	}
	peers := make(Static, len(file.Peer))
	for _, p := range file.Peer {
		if p.Rank < 0 || p.Rank >= len(peers) {
			return nil, fmt.Errorf("grpcnet: cluster file %s: rank %d out of %d peers", path, p.Rank, len(peers))
		}
		if peers[p.Rank] != "" {
			return nil, fmt.Errorf("grpcnet: cluster file %s: rank %d listed twice", path, p.Rank)
		}
		if p.Addr == "" {
			return nil, fmt.Errorf("grpcnet: cluster file %s: rank %d has no address", path, p.Rank)
		}
		peers[p.Rank] = p.Addr
	}
	return peers, nil
}

// Redis resolves ranks from keys announced by the peers themselves. Resolve
// waits until the peer has announced or ctx ends.
type Redis struct {
	client *redis.Client
	prefix string
	poll   time.Duration
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{
		client: client,
		prefix: prefix,
		poll:   100 * time.Millisecond,
	}
}

func (r *Redis) key(rank int) string {
	return r.prefix + strconv.Itoa(rank)
}

// Announce publishes the address of rank for ttl.
func (r *Redis) Announce(ctx context.Context, rank int, addr string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(rank), addr, ttl).Err(); err != nil {
		return fmt.Errorf("grpcnet: announce rank %d: %w", rank, err)
	}
	return nil
}

func (r *Redis) Resolve(ctx context.Context, rank int) (string, error) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()
	for {
		addr, err := r.client.Get(ctx, r.key(rank)).Result()
		switch {
		case err == nil:
			return addr, nil
		case !errors.Is(err, redis.Nil):
			return "", fmt.Errorf("grpcnet: resolve rank %d: %w", rank, err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return "", fmt.Errorf("rank %d not announced: %v: %w", rank, ctx.Err(), ErrUnknownPeer)
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

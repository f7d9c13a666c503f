package grpcnet

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-sod/pkd/internal/builder"
	"github.com/go-sod/pkd/internal/geom"
	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/wire"
	"github.com/go-sod/pkd/pkg/container/kdtree"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// loopback starts one exchange server per rank on 127.0.0.1.
func loopback(t *testing.T, size int) []*Transport {
	t.Helper()
	listeners := make([]net.Listener, size)
	addrs := make(Static, size)
	for rank := range listeners {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		listeners[rank] = lis
		addrs[rank] = lis.Addr().String()
	}
	transports := make([]*Transport, size)
	for rank, lis := range listeners {
		tr := NewTransport(rank, addrs)
		srv := grpc.NewServer()
		tr.Register(srv)
		go func(lis net.Listener) { _ = srv.Serve(lis) }(lis)
		t.Cleanup(func() {
			srv.Stop()
			_ = tr.Close()
		})
		transports[rank] = tr
	}
	return transports
}

func TestTransport_Build(t *testing.T) {
	for _, size := range []int{2, 3} {
		t.Run(fmt.Sprintf("ranks_%d", size), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			transports := loopback(t, size)

			r := rand.New(rand.NewSource(int64(size)))
			points := make([]geom.Point, 500)
			for i := range points {
				points[i] = geom.Point{r.Float64() * 100, r.Float64() * 100}
			}
			nodes := kdtree.FromPoints(points...)
			expected := kdtree.FromPoints(points...)
			for i := range expected {
				expected[i].Split = expected[i].Split.Copy()
			}
			expectedRoot := kdtree.Grow(expected, 2, 0, 0)

			b, err := builder.New(2, builder.WithCompression(wire.CompressionLZ4))
			require.NoError(t, err)
			var root int
			g, gctx := errgroup.WithContext(ctx)
			for rank := range transports {
				comm, err := group.NewWorld(transports[rank], rank, size)
				require.NoError(t, err)
				g.Go(func() error {
					if comm.Rank() != 0 {
						_, err := b.Build(gctx, comm, nil, 0, 0)
						return err
					}
					var err error
					root, err = b.Build(gctx, comm, nodes, 0, 0)
					return err
				})
			}
			require.NoError(t, g.Wait())
			require.Equal(t, expectedRoot, root)
			require.Equal(t, expected, nodes)
		})
	}
}

func TestTransport_DeliverWrongRank(t *testing.T) {
	tr := NewTransport(1, Static{})
	_, err := tr.Deliver(context.Background(), &Envelope{To: 2})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("deliver error got: %v, expected code: %v", err, codes.InvalidArgument)
	}
}

func TestCodec(t *testing.T) {
	in := &Envelope{Context: "w/1/0", From: 3, To: 1, Tag: int32(group.TagGather), Payload: []byte{1, 2, 3}}
	data, err := codec{}.Marshal(in)
	require.NoError(t, err)
	var out Envelope
	require.NoError(t, codec{}.Unmarshal(data, &out))
	require.Equal(t, *in, out)
}

func TestStatic(t *testing.T) {
	peers := Static{"a:1", "b:2"}
	if addr, err := peers.Resolve(context.Background(), 1); err != nil || addr != "b:2" {
		t.Errorf("resolve got: %q, %v, expected: %q", addr, err, "b:2")
	}
	if _, err := peers.Resolve(context.Background(), 2); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("resolve error got: %v, expected: %v", err, ErrUnknownPeer)
	}
}

func TestLoadCluster(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected Static
		err      bool
	}{
		{
			name:     "ok",
			content:  "[[peer]]\nrank = 1\naddr = \"h1:7070\"\n\n[[peer]]\nrank = 0\naddr = \"h0:7070\"\n",
			expected: Static{"h0:7070", "h1:7070"},
		},
		{name: "gap", content: "[[peer]]\nrank = 2\naddr = \"h2:7070\"\n", err: true},
		{name: "twice", content: "[[peer]]\nrank = 0\naddr = \"a\"\n[[peer]]\nrank = 0\naddr = \"b\"\n", err: true},
		{name: "no_addr", content: "[[peer]]\nrank = 0\n", err: true},
		{name: "syntax", content: "[[peer]\n", err: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cluster.toml")
			require.NoError(t, os.WriteFile(path, []byte(test.content), 0600))
			peers, err := LoadCluster(path)
			if test.err {
				if err == nil {
					t.Errorf("cluster file must be rejected, got: %v", peers)
				}
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expected, peers)
		})
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("KD_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KD_TEST_REDIS_ADDR is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	prefix := fmt.Sprintf("pkd:test:%d:", time.Now().UnixNano())
	r := NewRedis(redis.NewClient(&redis.Options{Addr: addr}), prefix)
	defer r.Close()

	require.NoError(t, r.Announce(ctx, 4, "10.0.0.4:7070", time.Minute))
	got, err := r.Resolve(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.4:7070", got)

	short, done := context.WithTimeout(ctx, 300*time.Millisecond)
	defer done()
	if _, err := r.Resolve(short, 5); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("resolve error got: %v, expected: %v", err, ErrUnknownPeer)
	}
}

func TestResolverFor(t *testing.T) {
	resolver, closeFn, err := ResolverFor(context.Background(), &Config{Peers: []string{"x:1"}})
	require.NoError(t, err)
	require.NoError(t, closeFn())
	require.Equal(t, Static{"x:1"}, resolver)

	if _, _, err := ResolverFor(context.Background(), &Config{}); err == nil {
		t.Errorf("a config without peers must be rejected")
	}
}

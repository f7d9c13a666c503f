// Package grpcnet connects the ranks of a multi-process world over gRPC.
// Outgoing messages are unary Deliver calls to the receiving rank; incoming
// ones are handed to a local mailbox where Recv picks them up.
package grpcnet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/group/local"
	"github.com/go-sod/pkd/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	_ group.Transport = (*Transport)(nil)
	_ ExchangeServer  = (*Transport)(nil)
)

type Option func(*Transport)

// WithDialOptions appends options used when dialing peers.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(t *Transport) {
		t.dialOpts = append(t.dialOpts, opts...)
	}
}

type Transport struct {
	rank     int
	box      *local.Mailbox
	resolver Resolver
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[int]*grpc.ClientConn
}

func NewTransport(rank int, resolver Resolver, opts ...Option) *Transport {
	t := &Transport{
		rank:     rank,
		box:      local.NewMailbox(),
		resolver: resolver,
		dialOpts: []grpc.DialOption{grpc.WithInsecure()},
		conns:    make(map[int]*grpc.ClientConn),
	}
	for _, f := range opts {
		f(t)
	}
	return t
}

func (t *Transport) Rank() int {
	return t.rank
}

// Register serves incoming messages on s.
func (t *Transport) Register(s *grpc.Server) {
	RegisterExchangeServer(s, t)
}

func (t *Transport) conn(ctx context.Context, rank int) (*grpc.ClientConn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if conn, ok := t.conns[rank]; ok {
		return conn, nil
	}
	addr, err := t.resolver.Resolve(ctx, rank)
	if err != nil {
		return nil, fmt.Errorf("grpcnet: resolve rank %d: %w", rank, err)
	}
	conn, err := grpc.DialContext(ctx, addr, t.dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("grpcnet: dial rank %d at %s: %w", rank, addr, err)
	}
	logging.FromContext(ctx).Debugf("grpcnet: rank %d connected to rank %d at %s", t.rank, rank, addr)
	t.conns[rank] = conn
	return conn, nil
}

// Send returns once the receiving rank took the payload from its mailbox.
func (t *Transport) Send(ctx context.Context, key group.Key, payload []byte) error {
	if key.To == t.rank {
		return t.box.Send(ctx, key, payload)
	}
	conn, err := t.conn(ctx, key.To)
	if err != nil {
		return err
	}
	in := &Envelope{
		Context: key.Context,
		From:    int32(key.From),
		To:      int32(key.To),
		Tag:     int32(key.Tag),
		Payload: payload,
	}
	if err := conn.Invoke(ctx, deliverMethod, in, &Ack{}, grpc.CallContentSubtype(CodecName), grpc.WaitForReady(true)); err != nil {
		return fmt.Errorf("grpcnet: deliver to rank %d: %w", key.To, err)
	}
	return nil
}

func (t *Transport) Recv(ctx context.Context, key group.Key) ([]byte, error) {
	return t.box.Recv(ctx, key)
}

// Deliver blocks until the local rank receives the message or the caller
// gives up.
func (t *Transport) Deliver(ctx context.Context, in *Envelope) (*Ack, error) {
	if int(in.To) != t.rank {
		return nil, status.Errorf(codes.InvalidArgument, "message for rank %d delivered to rank %d", in.To, t.rank)
	}
	key := group.Key{
		Context: in.Context,
		From:    int(in.From),
		To:      int(in.To),
		Tag:     group.Tag(in.Tag),
	}
	if err := t.box.Send(ctx, key, in.Payload); err != nil {
		return nil, contextStatus(err)
	}
	return &Ack{Delivered: true}, nil
}

func contextStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unknown, err.Error())
	}
}

// Close drops every peer connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for rank, conn := range t.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = fmt.Errorf("grpcnet: close rank %d: %w", rank, err)
		}
		delete(t.conns, rank)
	}
	return first
}

// Package builder grows a balanced k-d tree across the members of a process
// group. Every member calls Build with its own view of the group; only rank 0
// holds the range. At each level the owner selects the median, hands the upper
// half to its partner, the group splits in two and both halves recurse
// independently until one member is left and the serial builder takes over.
package builder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sod/pkd/internal/group"
	"github.com/go-sod/pkd/internal/logging"
	"github.com/go-sod/pkd/internal/metric"
	"github.com/go-sod/pkd/internal/wire"
	"github.com/go-sod/pkd/pkg/container/kdtree"
)

var (
	ErrCountMismatch = errors.New("builder: record count mismatch")
	ErrNegativeRange = errors.New("builder: invalid range header")
)

type Option func(*Builder)

// WithCompression sets the block compression of record transfers. Every rank
// of a world must use the same value.
func WithCompression(c wire.Compression) Option {
	return func(b *Builder) {
		b.codec = wire.NewCodec(c)
	}
}

// WithTransferTimeout bounds every single send or receive. Zero waits forever.
func WithTransferTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.timeout = d
	}
}

// WithSerial replaces the single member base case, kdtree.Grow by default.
func WithSerial(fn func(nodes []kdtree.Node, dims, axis, offset int) int) Option {
	return func(b *Builder) {
		b.serial = fn
	}
}

type Builder struct {
	dims    int
	codec   wire.Codec
	timeout time.Duration
	serial  func(nodes []kdtree.Node, dims, axis, offset int) int
}

func New(dims int, opts ...Option) (*Builder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("builder: invalid dimensions %d", dims)
	}
	b := &Builder{
		dims:   dims,
		codec:  wire.NewCodec(wire.CompressionNone),
		serial: kdtree.Grow,
	}
	for _, f := range opts {
		f(b)
	}
	return b, nil
}

func (b *Builder) Dims() int {
	return b.dims
}

// Build grows the tree over nodes, which only rank 0 of comm provides; other
// members pass nil. Identifiers are offset plus the position in nodes. Rank 0
// returns the identifier of the root, every other member returns kdtree.None.
// On return rank 0 holds the annotated records.
func (b *Builder) Build(ctx context.Context, comm group.Comm, nodes []kdtree.Node, axis, offset int) (int, error) {
	logger := logging.FromContext(ctx)
	if comm.Size() == 1 {
		return b.serial(nodes, b.dims, axis, offset), nil
	}

	h, err := b.header(ctx, comm, nodes, axis)
	if err != nil {
		return kdtree.None, err
	}
	if h.Len == 0 {
		return kdtree.None, nil
	}
	md := int(h.Median)
	upperLen := int(h.Len) - md - 1
	logger.Debugf("builder: context %s rank %d of %d, range %d, median %d", comm.Context(), comm.Rank(), comm.Size(), h.Len, md)

	var upper []kdtree.Node
	switch comm.Rank() {
	case 0:
		nodes[md].Axis = axis
		if err := b.sendRecords(ctx, comm, 1, group.TagScatter, nodes[md+1:]); err != nil {
			return kdtree.None, err
		}
	case 1:
		if upper, err = b.recvRecords(ctx, comm, 0, group.TagScatter, upperLen); err != nil {
			return kdtree.None, err
		}
	}

	child, err := comm.Split(ctx)
	if err != nil {
		return kdtree.None, err
	}
	next := (axis + 1) % b.dims

	if comm.Color() == 0 {
		var lower []kdtree.Node
		if comm.Rank() == 0 {
			lower = nodes[:md]
		}
		left, err := b.Build(ctx, child, lower, next, offset)
		if err != nil {
			return kdtree.None, err
		}
		if comm.Rank() != 0 {
			return kdtree.None, nil
		}
		return b.collectUpper(ctx, comm, nodes, md, left, offset)
	}

	right, err := b.Build(ctx, child, upper, next, offset+md+1)
	if err != nil {
		return kdtree.None, err
	}
	if comm.Rank() != 1 {
		return kdtree.None, nil
	}
	return kdtree.None, b.returnUpper(ctx, comm, upper, right)
}

// header lets every member learn the range length and median chosen by rank 0.
func (b *Builder) header(ctx context.Context, comm group.Comm, nodes []kdtree.Node, axis int) (wire.Header, error) {
	var payload []byte
	if comm.Rank() == 0 {
		h := wire.Header{Len: int32(len(nodes))}
		if len(nodes) > 0 {
			h.Median = int32(kdtree.SelectMedian(nodes, axis))
		}
		var err error
		if payload, err = wire.EncodeHeader(h); err != nil {
			return wire.Header{}, err
		}
	}

	tctx, cancel := b.transferContext(ctx)
	defer cancel()
	payload, err := comm.Bcast(tctx, 0, group.TagHeader, payload)
	if err != nil {
		return wire.Header{}, fmt.Errorf("builder: header: %w", err)
	}
	if comm.Rank() == 0 {
		metric.RecordTransfer(ctx, group.TagHeader.String(), len(payload)*(comm.Size()-1))
	}
	h, err := wire.DecodeHeader(payload)
	if err != nil {
		return wire.Header{}, fmt.Errorf("builder: header: %w", err)
	}
	if h.Len < 0 || (h.Len > 0 && (h.Median < 0 || h.Median >= h.Len)) {
		return wire.Header{}, fmt.Errorf("length %d median %d: %w", h.Len, h.Median, ErrNegativeRange)
	}
	return h, nil
}

// returnUpper sends the root of the upper subtree and its annotated records
// back to the owner of the parent range.
func (b *Builder) returnUpper(ctx context.Context, comm group.Comm, upper []kdtree.Node, root int) error {
	payload, err := wire.EncodeInt(root)
	if err != nil {
		return err
	}
	if err := b.send(ctx, comm, 0, group.TagRoot, payload); err != nil {
		return err
	}
	return b.sendRecords(ctx, comm, 0, group.TagGather, upper)
}

// collectUpper receives the upper subtree from the partner into nodes[md+1:]
// and links it under the median.
func (b *Builder) collectUpper(ctx context.Context, comm group.Comm, nodes []kdtree.Node, md, left, offset int) (int, error) {
	payload, err := b.recv(ctx, comm, 1, group.TagRoot)
	if err != nil {
		return kdtree.None, err
	}
	right, err := wire.DecodeInt(payload)
	if err != nil {
		return kdtree.None, fmt.Errorf("builder: upper root: %w", err)
	}
	upper, err := b.recvRecords(ctx, comm, 1, group.TagGather, len(nodes)-md-1)
	if err != nil {
		return kdtree.None, err
	}
	copy(nodes[md+1:], upper)
	nodes[md].Left = left
	nodes[md].Right = right
	return offset + md, nil
}

func (b *Builder) sendRecords(ctx context.Context, comm group.Comm, to int, tag group.Tag, nodes []kdtree.Node) error {
	payload, err := b.codec.EncodeRecords(nodes)
	if err != nil {
		return fmt.Errorf("builder: %s: %w", tag, err)
	}
	return b.send(ctx, comm, to, tag, payload)
}

func (b *Builder) recvRecords(ctx context.Context, comm group.Comm, from int, tag group.Tag, want int) ([]kdtree.Node, error) {
	payload, err := b.recv(ctx, comm, from, tag)
	if err != nil {
		return nil, err
	}
	nodes, err := b.codec.DecodeRecords(payload)
	if err != nil {
		return nil, fmt.Errorf("builder: %s: %w", tag, err)
	}
	if len(nodes) != want {
		return nil, fmt.Errorf("%s from rank %d: got %d records, expected %d: %w", tag, from, len(nodes), want, ErrCountMismatch)
	}
	return nodes, nil
}

func (b *Builder) send(ctx context.Context, comm group.Comm, to int, tag group.Tag, payload []byte) error {
	tctx, cancel := b.transferContext(ctx)
	defer cancel()
	if err := comm.Send(tctx, to, tag, payload); err != nil {
		return fmt.Errorf("builder: %w", err)
	}
	metric.RecordTransfer(ctx, tag.String(), len(payload))
	return nil
}

func (b *Builder) recv(ctx context.Context, comm group.Comm, from int, tag group.Tag) ([]byte, error) {
	tctx, cancel := b.transferContext(ctx)
	defer cancel()
	payload, err := comm.Recv(tctx, from, tag)
	if err != nil {
		return nil, fmt.Errorf("builder: %w", err)
	}
	return payload, nil
}

func (b *Builder) transferContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Package group implements process groups for SPMD tree construction: a rank
// within an ordered set of workers, point to point messaging between members
// and the recursive split of a group into two disjoint halves.
package group

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// WorldContext is the context id of the group holding every worker.
const WorldContext = "w"

var (
	ErrSplitSingleton = errors.New("group: cannot split a group of one")
	ErrInvalidRank    = errors.New("group: invalid rank")
)

// Tag distinguishes the messages exchanged inside one context.
type Tag uint8

const (
	TagHeader Tag = iota + 1
	TagScatter
	TagRoot
	TagGather
	TagElapsed
	TagDims
)

func (t Tag) String() string {
	switch t {
	case TagHeader:
		return "header"
	case TagScatter:
		return "scatter"
	case TagRoot:
		return "root"
	case TagGather:
		return "gather"
	case TagElapsed:
		return "elapsed"
	case TagDims:
		return "dims"
	default:
		return "tag" + strconv.Itoa(int(t))
	}
}

// Key addresses one message stream. From and To are world ranks.
type Key struct {
	Context string
	From    int
	To      int
	Tag     Tag
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d->%d:%s", k.Context, k.From, k.To, k.Tag)
}

// Transport moves payloads between world ranks. Send blocks until the matching
// Recv takes the payload or ctx ends; messages on one key arrive in order.
type Transport interface {
	Send(ctx context.Context, key Key, payload []byte) error
	Recv(ctx context.Context, key Key) ([]byte, error)
}

// Comm is the view one worker has of a group.
type Comm struct {
	transport Transport
	context   string
	rank      int
	members   []int
}

// NewWorld returns the group of size workers as seen by rank.
func NewWorld(t Transport, rank, size int) (Comm, error) {
	if size <= 0 || rank < 0 || rank >= size {
		return Comm{}, fmt.Errorf("rank %d of %d: %w", rank, size, ErrInvalidRank)
	}
	members := make([]int, size)
	for i := range members {
		members[i] = i
	}
	return Comm{
		transport: t,
		context:   WorldContext,
		rank:      rank,
		members:   members,
	}, nil
}

func (c Comm) Rank() int {
	return c.rank
}

func (c Comm) Size() int {
	return len(c.members)
}

func (c Comm) Context() string {
	return c.context
}

// WorldRank translates a rank of this group into a world rank.
func (c Comm) WorldRank(rank int) int {
	return c.members[rank]
}

// Color is the half this worker joins on Split: 0 for even ranks, 1 for odd.
func (c Comm) Color() int {
	return c.rank % 2
}

// Partner is the rank that receives the upper half of the owner's range and
// leads the upper child group; -1 in a group of one.
func (c Comm) Partner() int {
	if c.Size() < 2 {
		return -1
	}
	return 1
}

// Split divides the group by rank parity. Even ranks form the lower half of
// size ceil(P/2) led by rank 0, odd ranks the upper half led by rank 1. Every
// member derives both halves locally, no messages are exchanged.
func (c Comm) Split(_ context.Context) (Comm, error) {
	if c.Size() <= 1 {
		return Comm{}, fmt.Errorf("context %s: %w", c.context, ErrSplitSingleton)
	}
	color := c.Color()
	members := make([]int, 0, (c.Size()+1-color)/2)
	for r := color; r < c.Size(); r += 2 {
		members = append(members, c.members[r])
	}
	return Comm{
		transport: c.transport,
		context:   c.context + "/" + strconv.Itoa(color),
		rank:      c.rank / 2,
		members:   members,
	}, nil
}

func (c Comm) key(from, to int, tag Tag) (Key, error) {
	if from < 0 || from >= c.Size() || to < 0 || to >= c.Size() || from == to {
		return Key{}, fmt.Errorf("message %d->%d in group of %d: %w", from, to, c.Size(), ErrInvalidRank)
	}
	return Key{Context: c.context, From: c.members[from], To: c.members[to], Tag: tag}, nil
}

// Send delivers payload to rank to of this group.
func (c Comm) Send(ctx context.Context, to int, tag Tag, payload []byte) error {
	key, err := c.key(c.rank, to, tag)
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, key, payload); err != nil {
		return fmt.Errorf("send %s: %w", key, err)
	}
	return nil
}

// Recv takes the next payload sent by rank from of this group.
func (c Comm) Recv(ctx context.Context, from int, tag Tag) ([]byte, error) {
	key, err := c.key(from, c.rank, tag)
	if err != nil {
		return nil, err
	}
	payload, err := c.transport.Recv(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("recv %s: %w", key, err)
	}
	return payload, nil
}

// Bcast sends the root's payload to every other member, in rank order. Members
// other than root ignore the payload argument and return what they received.
func (c Comm) Bcast(ctx context.Context, root int, tag Tag, payload []byte) ([]byte, error) {
	if c.rank != root {
		return c.Recv(ctx, root, tag)
	}
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		if err := c.Send(ctx, r, tag, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

// Gather collects one payload per member at root, indexed by rank. Members
// other than root get nil.
func (c Comm) Gather(ctx context.Context, root int, tag Tag, payload []byte) ([][]byte, error) {
	if c.rank != root {
		return nil, c.Send(ctx, root, tag, payload)
	}
	all := make([][]byte, c.Size())
	all[root] = payload
	for r := 0; r < c.Size(); r++ {
		if r == root {
			continue
		}
		p, err := c.Recv(ctx, r, tag)
		if err != nil {
			return nil, err
		}
		all[r] = p
	}
	return all, nil
}

// Package local runs a group of workers inside one process. Ranks are
// goroutines and messages travel through in-memory rendezvous channels.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-sod/pkd/internal/group"
)

var _ group.Transport = (*Mailbox)(nil)

// Mailbox holds one unbuffered channel per message key. Channels are created
// on first use by either side and live as long as the mailbox.
type Mailbox struct {
	mu    sync.Mutex
	slots map[group.Key]chan []byte
}

func NewMailbox() *Mailbox {
	return &Mailbox{slots: make(map[group.Key]chan []byte)}
}

func (m *Mailbox) slot(key group.Key) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.slots[key]
	if !ok {
		ch = make(chan []byte)
		m.slots[key] = ch
	}
	return ch
}

func (m *Mailbox) Send(ctx context.Context, key group.Key, payload []byte) error {
	select {
	case m.slot(key) <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailbox) Recv(ctx context.Context, key group.Key) ([]byte, error) {
	select {
	case payload := <-m.slot(key):
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// World returns the view of every rank of an in-process group of size workers
// sharing one mailbox.
func World(size int) ([]group.Comm, error) {
	if size <= 0 {
		return nil, fmt.Errorf("world of %d: %w", size, group.ErrInvalidRank)
	}
	box := NewMailbox()
	comms := make([]group.Comm, size)
	for rank := range comms {
		comm, err := group.NewWorld(box, rank, size)
		if err != nil {
			return nil, err
		}
		comms[rank] = comm
	}
	return comms, nil
}

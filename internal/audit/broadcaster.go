package audit

import (
	"context"
	"sync"

	"github.com/albepe01/NetworkSecurity-Project/internal/core"
)

// Broadcaster fans decisions out to live subscribers. Slow subscribers miss
// entries rather than holding up the audit writer.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan core.DecisionRecord]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[chan core.DecisionRecord]struct{})}
}

func (b *Broadcaster) Name() string { return "stream" }

// Subscribe returns a channel of decisions and a function that releases it.
func (b *Broadcaster) Subscribe(buffer int) (<-chan core.DecisionRecord, func()) {
	ch := make(chan core.DecisionRecord, buffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.clients[ch]; ok {
				delete(b.clients, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

func (b *Broadcaster) Write(ctx context.Context, rec core.DecisionRecord) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- rec:
		default:
		}
	}
	return nil
}

// Subscribers reports the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every subscriber.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
	return nil
}

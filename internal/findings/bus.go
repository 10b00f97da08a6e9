package findings

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 256

// Bus fans findings out to live subscribers such as Watch streams and the
// serve command's JSONL writer.
type Bus struct {
	mu      sync.RWMutex
	subs    map[chan Finding]struct{}
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Finding]struct{})}
}

// Subscribe returns a channel receiving every finding emitted from now on.
// The channel is closed once ctx is done.
func (b *Bus) Subscribe(ctx context.Context) <-chan Finding {
	ch := make(chan Finding, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, ch)
		close(ch)
	})
	return ch
}

// Subscribers reports how many subscribers are attached.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit hands f to every subscriber without blocking. A subscriber whose
// buffer is full misses the finding and the drop is counted.
func (b *Bus) Emit(f Finding) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- f.Clone():
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped reports how many deliveries were skipped.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

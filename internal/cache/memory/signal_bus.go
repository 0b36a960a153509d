// Package memory provides an in-process SignalBus for single-replica
// deployments without Redis.
package memory

import (
	"context"
	"sync"

	"github.com/alanyoungcy/perpdex/internal/domain"
)

// SignalBus fans published payloads out to local subscribers. Slow
// subscribers drop messages rather than block publishers.
type SignalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[chan []byte]struct{}
	buffer int
}

// NewSignalBus creates an empty bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string]map[chan []byte]struct{}), buffer: 128}
}

// Publish delivers payload to every current subscriber of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber that lives until ctx is done.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, b.buffer)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[chan []byte]struct{})
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers returns the number of live subscriptions on channel.
func (b *SignalBus) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channel])
}

var _ domain.SignalBus = (*SignalBus)(nil)

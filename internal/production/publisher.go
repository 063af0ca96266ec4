package production

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/comalice/circuitx/internal/core"
)

// ChannelPublisher forwards reports to a Go channel.
// Non-blocking publish with drop on backpressure.
type ChannelPublisher struct {
	ch      chan<- core.Report
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- core.Report) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

// Publish implements core.Publisher.
func (p *ChannelPublisher) Publish(ctx context.Context, report core.Report) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return nil
	}
	select {
	case p.ch <- report:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return nil
	}
}

// Dropped returns the number of reports lost to backpressure or a closed
// publisher.
func (p *ChannelPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close closes the output channel. It is safe to call more than once.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	return nil
}

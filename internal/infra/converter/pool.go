package converter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pdf2html/internal/domain"
)

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("converter pool closed")

// Slot is a permit to run one converter process.
type Slot struct {
	acquired time.Time
}

// Stats is a snapshot of pool usage.
type Stats struct {
	Enabled     bool   `json:"enabled"`
	Capacity    int    `json:"capacity"`
	Idle        int    `json:"idle"`
	InUse       int    `json:"in_use"`
	Conversions int64  `json:"conversions"`
	Failures    int64  `json:"failures"`
	Timeouts    int64  `json:"timeouts"`
	LastBusyMS  int64  `json:"last_busy_ms"`
	Binary      string `json:"binary,omitempty"`
}

// Pool bounds the number of concurrent converter processes. A capacity of 0
// means unlimited: Acquire never blocks.
type Pool struct {
	mu       sync.Mutex
	sem      chan struct{}
	capacity int
	closed   bool

	inUse       atomic.Int64
	conversions atomic.Int64
	failures    atomic.Int64
	timeouts    atomic.Int64
	lastBusy    atomic.Int64
}

// NewPool returns a pool with capacity slots.
func NewPool(capacity int) *Pool {
	p := &Pool{capacity: capacity}
	if capacity > 0 {
		p.sem = make(chan struct{}, capacity)
		for i := 0; i < capacity; i++ {
			p.sem <- struct{}{}
		}
	}
	return p
}

// Acquire waits for a free slot or ctx expiry. A deadline is reported as
// domain.ErrTimeout so callers map it like a conversion timeout.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	p.mu.Lock()
	closed, sem := p.closed, p.sem
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	if sem != nil {
		select {
		case _, ok := <-sem:
			if !ok {
				return nil, ErrPoolClosed
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Join(domain.ErrTimeout, ctx.Err())
			}
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.inUse.Add(1)
	return &Slot{acquired: time.Now()}, nil
}

// Release returns slot and records the outcome of the conversion it ran.
func (p *Pool) Release(slot *Slot, convErr error) {
	if slot == nil {
		return
	}
	p.inUse.Add(-1)
	p.conversions.Add(1)
	p.lastBusy.Store(time.Since(slot.acquired).Milliseconds())
	switch {
	case errors.Is(convErr, domain.ErrTimeout):
		p.timeouts.Add(1)
	case convErr != nil:
		p.failures.Add(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.sem == nil {
		return
	}
	select {
	case p.sem <- struct{}{}:
	default:
	}
}

// Stats returns current usage.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	inUse := int(p.inUse.Load())
	s := Stats{
		Enabled:     !closed,
		Capacity:    p.capacity,
		InUse:       inUse,
		Conversions: p.conversions.Load(),
		Failures:    p.failures.Load(),
		Timeouts:    p.timeouts.Load(),
		LastBusyMS:  p.lastBusy.Load(),
	}
	if p.capacity > 0 {
		s.Idle = p.capacity - inUse
		if s.Idle < 0 {
			s.Idle = 0
		}
	}
	return s
}

// Close stops handing out slots. It is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.sem != nil {
		close(p.sem)
	}
}

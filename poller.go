package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// poller runs a batch of reads at a fixed interval. A tick that comes due
// while the previous batch is still running is skipped, never queued, so at
// most one batch is in flight.
type poller struct {
	interval time.Duration
	batch    func(ctx context.Context, seq uint64)
	log      zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}

	inFlight atomic.Bool
	seq      atomic.Uint64
	skipped  atomic.Uint64
	batches  sync.WaitGroup
	stopOnce sync.Once
}

func newPoller(interval time.Duration, batch func(ctx context.Context, seq uint64), log zerolog.Logger) *poller {
	return &poller{
		interval: interval,
		batch:    batch,
		log:      log,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// start launches the timer loop. The first batch runs immediately.
func (p *poller) start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	go p.loop()
}

func (p *poller) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		case <-p.trigger:
			p.tick()
		}
	}
}

// tick starts one batch unless one is already running.
func (p *poller) tick() {
	if p.ctx.Err() != nil {
		return
	}
	if !p.inFlight.CompareAndSwap(false, true) {
		n := p.skipped.Add(1)
		p.log.Debug().Uint64("skipped", n).Msg("poll tick skipped, previous batch still running")
		return
	}

	seq := p.seq.Add(1)
	p.batches.Add(1)
	go func() {
		defer p.batches.Done()
		defer p.inFlight.Store(false)
		p.batch(p.ctx, seq)
	}()
}

// Trigger asks for an immediate tick. It is subject to the same overlap rule
// and never blocks.
func (p *poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Skipped reports how many ticks were dropped because of overlap.
func (p *poller) Skipped() uint64 { return p.skipped.Load() }

// Stop halts the timer and cancels the running batch. In-flight reads are
// allowed to return; it does not wait for them. Safe to call more than once.
func (p *poller) Stop() {
	if p == nil {
		return
	}
	p.stopOnce.Do(func() {
		if p.cancel == nil {
			return
		}
		p.cancel()
		<-p.done
	})
}

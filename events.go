package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Subscription is the disposer for a volume-changed subscription.
type Subscription struct {
	cancel  context.CancelFunc
	stopped atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// subscribeVolume opens src and calls deliver for every pushed value until the
// subscription is stopped or the stream ends. Values are clamped to 0..100.
// A value received after Stop has been requested is dropped.
func subscribeVolume(ctx context.Context, src VolumeSource, deliver func(int), log zerolog.Logger) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	ch, err := src.WatchVolume(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for {
			select {
			case v, ok := <-ch:
				if !ok {
					log.Debug().Msg("volume stream closed")
					return
				}
				if s.stopped.Load() {
					log.Debug().Int("volume", v).Msg("dropping volume event after stop")
					continue
				}
				deliver(clampVolume(v))
			case <-ctx.Done():
				return
			}
		}
	}()
	return s, nil
}

// Stop cancels the watch and waits for the delivery goroutine to exit. It is
// safe to call more than once.
func (s *Subscription) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
		<-s.done
	})
}

// watchByPolling turns a volume read into a push stream for platforms without
// change notifications. Only changes are emitted; read errors are skipped.
func watchByPolling(ctx context.Context, interval time.Duration, read func(context.Context) (int, error), log zerolog.Logger) (<-chan int, error) {
	last, err := read(ctx)
	if err != nil {
		return nil, err
	}

	ch := make(chan int)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				v, err := read(ctx)
				if err != nil {
					log.Debug().Err(err).Msg("volume sample failed")
					continue
				}
				if v == last {
					continue
				}
				last = v
				select {
				case ch <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

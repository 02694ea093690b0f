package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) deliver(v int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *recorder) got() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func TestSubscribeVolumeDelivers(t *testing.T) {
	src := newFakeVolumeSource()
	rec := &recorder{}
	sub, err := subscribeVolume(context.Background(), src, rec.deliver, zerolog.Nop())
	assertNoError(t, err)
	defer sub.Stop()

	src.push(t, 25)
	src.push(t, -4)
	src.push(t, 180)
	waitFor(t, "three values", func() bool { return len(rec.got()) == 3 })

	got := rec.got()
	assertEqual(t, got[0], 25, "first value")
	assertEqual(t, got[1], 0, "negative clamped")
	assertEqual(t, got[2], 100, "overflow clamped")
}

func TestSubscribeVolumeError(t *testing.T) {
	src := newFakeVolumeSource()
	src.err = errors.New("no server")
	sub, err := subscribeVolume(context.Background(), src, func(int) {}, zerolog.Nop())
	assertError(t, err, "watch failure")
	if sub != nil {
		t.Error("Expected nil subscription on error")
	}
}

func TestSubscriptionStop(t *testing.T) {
	src := newFakeVolumeSource()
	rec := &recorder{}
	sub, err := subscribeVolume(context.Background(), src, rec.deliver, zerolog.Nop())
	assertNoError(t, err)

	src.push(t, 10)
	waitFor(t, "value", func() bool { return len(rec.got()) == 1 })

	sub.Stop()
	sub.Stop()

	select {
	case src.ch <- 20:
		t.Error("Expected nobody to receive after Stop")
	case <-time.After(20 * time.Millisecond):
	}
	assertEqual(t, len(rec.got()), 1, "values after stop")

	var nilSub *Subscription
	nilSub.Stop()
}

func TestSubscriptionEndsWithStream(t *testing.T) {
	src := newFakeVolumeSource()
	sub, err := subscribeVolume(context.Background(), src, func(int) {}, zerolog.Nop())
	assertNoError(t, err)

	close(src.ch)
	select {
	case <-sub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end with the stream")
	}
	sub.Stop()
}

func TestWatchByPolling(t *testing.T) {
	var mu sync.Mutex
	samples := []int{40, 40, 40, 55, 55, 60}
	read := func(ctx context.Context) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		v := samples[0]
		if len(samples) > 1 {
			samples = samples[1:]
		}
		return v, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := watchByPolling(ctx, time.Millisecond, read, zerolog.Nop())
	assertNoError(t, err)

	// Only changes are emitted, the first sample is the baseline
	for _, want := range []int{55, 60} {
		select {
		case v := <-ch:
			assertEqual(t, v, want, "polled change")
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}

	cancel()
	for range ch {
	}
}

func TestWatchByPollingInitialError(t *testing.T) {
	read := func(ctx context.Context) (int, error) { return 0, errors.New("osascript failed") }
	_, err := watchByPolling(context.Background(), time.Millisecond, read, zerolog.Nop())
	assertError(t, err, "initial read failure")
}

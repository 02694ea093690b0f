package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSessionCloseStopsBoth(t *testing.T) {
	src := newFakeVolumeSource()
	sub, err := subscribeVolume(context.Background(), src, func(int) {}, zerolog.Nop())
	assertNoError(t, err)

	p := newPoller(time.Hour, func(ctx context.Context, seq uint64) {}, zerolog.Nop())
	p.start(context.Background())

	s := &session{sub: sub, poll: p}
	s.close()
	s.close()

	select {
	case <-sub.done:
	default:
		t.Error("subscription still running")
	}
	select {
	case <-p.done:
	default:
		t.Error("poller still running")
	}
}

func TestSessionClosePartial(t *testing.T) {
	var nilSession *session
	nilSession.close()

	// A session whose subscription never opened
	p := newPoller(time.Hour, func(ctx context.Context, seq uint64) {}, zerolog.Nop())
	p.start(context.Background())
	(&session{poll: p}).close()
	select {
	case <-p.done:
	default:
		t.Error("poller still running")
	}

	(&session{}).close()
}

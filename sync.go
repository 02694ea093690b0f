package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval   = time.Second
	defaultVolumeDebounce = 60 * time.Millisecond
	errorBacklog          = 8
)

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// SyncOptions tunes a Synchronizer. Zero values select the defaults.
type SyncOptions struct {
	// PollInterval is the media poll period.
	PollInterval time.Duration
	// OptimisticVolume writes the snapshot as soon as SetVolume is called and
	// treats the matching push as a confirmation. Off by default: volume only
	// changes when the native layer pushes it.
	OptimisticVolume bool
	// VolumeDebounce is how long SetVolume waits for a newer value before
	// sending. Negative sends every value immediately.
	VolumeDebounce time.Duration
	Logger         zerolog.Logger
}

// Synchronizer keeps a Snapshot of volume and media state aligned with the
// native layer. Volume arrives by push, media by poll; user intents are
// forwarded to the Controller and never assumed to have succeeded.
type Synchronizer struct {
	ctrl   Controller
	src    VolumeSource
	opts   SyncOptions
	log    zerolog.Logger
	volume *volumeSender

	mu          sync.Mutex
	state       runState
	snap        Snapshot
	confirmed   Volume // last volume reported by the native layer
	pushSeen    bool
	lastPollSeq uint64
	target      int // latest requested volume, for relative changes
	session     *session
	ctx         context.Context
	cancel      context.CancelFunc
	intentCtx   context.Context
	updates     chan Snapshot
	errs        chan error

	// target stays the base for relative changes until the native layer
	// reports it, or reports something else once no send is pending
	targetPending bool
}

// NewSynchronizer wires a synchronizer to the command and event channels.
func NewSynchronizer(ctrl Controller, src VolumeSource, opts SyncOptions) *Synchronizer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.VolumeDebounce == 0 {
		opts.VolumeDebounce = defaultVolumeDebounce
	}

	s := &Synchronizer{
		ctrl:    ctrl,
		src:     src,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "sync").Logger(),
		updates: make(chan Snapshot, 1),
		errs:    make(chan error, errorBacklog),
	}
	s.volume = newVolumeSender(opts.VolumeDebounce, s.sendVolume)
	return s
}

// Updates delivers the latest snapshot after every change. Only the newest
// undelivered value is kept. The channel is closed by Stop.
func (s *Synchronizer) Updates() <-chan Snapshot { return s.updates }

// Errors delivers transient failures of intents and reads. It drops errors
// when nobody is listening and is closed by Stop.
func (s *Synchronizer) Errors() <-chan error { return s.errs }

// Snapshot returns the current view.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Start reads the current volume, subscribes to volume pushes and starts the
// media poll. The volume read is asynchronous; a push that lands first wins.
// If the subscription cannot be opened the session is torn down and the error
// returned.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrSessionState
	}
	s.state = stateRunning
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.intentCtx = context.WithoutCancel(ctx)
	s.session = &session{}
	runCtx := s.ctx
	s.mu.Unlock()

	s.log.Debug().Dur("poll_interval", s.opts.PollInterval).Bool("optimistic", s.opts.OptimisticVolume).Msg("starting session")

	go func() {
		v, err := s.ctrl.GetVolume(runCtx)
		s.applyVolumeRead(v, transportErr(callGetVolume, err), true)
	}()

	sub, err := subscribeVolume(runCtx, s.src, s.onVolumePush, s.log)
	if err != nil {
		s.Stop()
		return fmt.Errorf("open volume subscription: %w", transportErr("subscribe", err))
	}

	p := newPoller(s.opts.PollInterval, s.onPollTick, s.log.With().Str("component", "poller").Logger())

	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		sub.Stop()
		return ErrSessionState
	}
	s.session.sub = sub
	s.session.poll = p
	p.start(runCtx)
	s.mu.Unlock()
	return nil
}

// Stop ends the session. From the moment it is called no push, poll result
// or command completion changes the snapshot. It is idempotent and safe after
// a failed Start or without Start.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	sess := s.session
	s.session = nil
	cancel := s.cancel
	close(s.updates)
	close(s.errs)
	s.mu.Unlock()

	// handles are disposed outside the lock: their goroutines may be
	// waiting on it to deliver a value that will now be dropped
	sess.close()
	s.volume.close()
	if cancel != nil {
		cancel()
	}
	var skipped uint64
	if sess != nil && sess.poll != nil {
		skipped = sess.poll.Skipped()
	}
	s.log.Debug().Uint64("poll_ticks_skipped", skipped).Msg("session stopped")
}

// publishLocked bumps the revision and replaces any undelivered snapshot.
func (s *Synchronizer) publishLocked() {
	s.snap.Revision++
	select {
	case <-s.updates:
	default:
	}
	s.updates <- s.snap
}

func (s *Synchronizer) reportLocked(err error) {
	select {
	case s.errs <- err:
	default:
		s.log.Debug().Err(err).Msg("error backlog full, dropping")
	}
}

// onVolumePush applies a volume-changed event. Pushes always win.
func (s *Synchronizer) onVolumePush(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		s.log.Debug().Int("volume", v).Msg("dropping push, session not running")
		return
	}

	s.pushSeen = true
	s.confirmed = Volume{Level: v, Known: true}
	s.settleTargetLocked(v)
	if s.opts.OptimisticVolume && s.snap.Volume == s.confirmed {
		s.log.Debug().Int("volume", v).Msg("push confirms optimistic volume")
		return
	}
	s.snap.Volume = s.confirmed
	s.log.Debug().Int("volume", v).Msg("volume pushed")
	s.publishLocked()
}

// settleTargetLocked drops the pending target once level confirms it. A
// different level observed after every send has returned means the volume
// was changed elsewhere, so the observed level becomes the base again.
func (s *Synchronizer) settleTargetLocked(level int) {
	if s.targetPending && (level == s.target || !s.volume.Busy()) {
		s.targetPending = false
	}
}

// applyVolumeRead merges a get_volume result. A read never overrides a push
// that was already observed, since the push reflects newer state.
func (s *Synchronizer) applyVolumeRead(v int, err error, initial bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return
	}
	if err != nil {
		if initial && !errors.Is(err, context.Canceled) {
			s.log.Warn().Err(err).Msg("initial volume read failed, volume unknown")
			s.reportLocked(err)
		}
		return
	}
	if s.pushSeen {
		s.log.Debug().Int("volume", v).Msg("ignoring volume read, push already observed")
		return
	}

	s.confirmed = Volume{Level: clampVolume(v), Known: true}
	s.settleTargetLocked(s.confirmed.Level)
	if s.snap.Volume == s.confirmed {
		return
	}
	s.snap.Volume = s.confirmed
	s.publishLocked()
}

// onPollTick runs one poll batch. Both media reads must succeed for the
// media snapshot to change; if either reports no media the snapshot is reset
// to the sentinel as a whole.
func (s *Synchronizer) onPollTick(ctx context.Context, seq uint64) {
	var (
		st   MediaState
		info MediaInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = s.ctrl.GetMediaState(gctx)
		return transportErr(callGetMediaState, err)
	})
	g.Go(func() error {
		var err error
		info, err = s.ctrl.GetMediaInfo(gctx)
		return transportErr(callGetMediaInfo, err)
	})
	err := g.Wait()

	s.mergeMedia(ctx, seq, st, info, err)

	if !s.volumeKnown() {
		v, err := s.ctrl.GetVolume(ctx)
		s.applyVolumeRead(v, err, false)
	}
}

func (s *Synchronizer) mergeMedia(ctx context.Context, seq uint64, st MediaState, info MediaInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		s.log.Debug().Uint64("seq", seq).Msg("dropping poll result, session not running")
		return
	}
	if seq <= s.lastPollSeq {
		s.log.Debug().Uint64("seq", seq).Uint64("applied", s.lastPollSeq).Msg("dropping stale poll result")
		return
	}

	var media MediaSnapshot
	switch {
	case err == nil:
		media = newMediaSnapshot(st, info)
	case errors.Is(err, ErrNoActiveMedia):
		// sentinel
	default:
		if ctx.Err() == nil {
			s.log.Warn().Err(err).Uint64("seq", seq).Msg("poll failed, keeping media state")
			s.reportLocked(err)
		}
		return
	}

	s.lastPollSeq = seq
	if media == s.snap.Media {
		return
	}
	s.snap.Media = media
	s.publishLocked()
}

func (s *Synchronizer) volumeKnown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Volume.Known
}

// SetVolume asks the native layer for volume v (clamped to 0..100) and
// returns at once. Rapid calls are coalesced into the latest value.
func (s *Synchronizer) SetVolume(v int) error {
	v = clampVolume(v)

	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.target = v
	s.targetPending = true
	if s.opts.OptimisticVolume {
		local := Volume{Level: v, Known: true}
		if s.snap.Volume != local {
			s.snap.Volume = local
			s.publishLocked()
		}
	}
	s.mu.Unlock()

	s.volume.Request(v)
	return nil
}

// AdjustVolume changes the volume by delta relative to the most recent
// request the native layer has not yet reported, or to the current level. It
// does nothing while the volume is unknown.
func (s *Synchronizer) AdjustVolume(delta int) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	known := s.snap.Volume.Known
	base := s.snap.Volume.Level
	if s.targetPending {
		base = s.target
	}
	s.mu.Unlock()

	if !known {
		return nil
	}
	return s.SetVolume(base + delta)
}

func (s *Synchronizer) sendVolume(v int) {
	s.mu.Lock()
	ctx := s.intentCtx
	s.mu.Unlock()

	err := s.ctrl.SetVolume(ctx, v)
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return
	}
	s.log.Warn().Err(err).Int("volume", v).Msg("set volume failed")
	s.reportLocked(transportErr(callSetVolume, err))
	if s.target == v {
		s.targetPending = false
	}

	// roll an optimistic write back to what the native layer last reported
	if s.opts.OptimisticVolume && s.snap.Volume.Level == v && s.snap.Volume != s.confirmed {
		s.snap.Volume = s.confirmed
		s.publishLocked()
	}
}

// forward issues call in the background. Only a failure is reported back;
// the effect shows up with the next poll.
func (s *Synchronizer) forward(call string, fn func(ctx context.Context) error, after func(*session)) error {
	s.mu.Lock()
	if s.state != stateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	ctx := s.intentCtx
	s.mu.Unlock()

	go func() {
		err := fn(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != stateRunning {
			return
		}
		if err != nil {
			s.log.Warn().Err(err).Str("call", call).Msg("command failed")
			s.reportLocked(transportErr(call, err))
			return
		}
		s.log.Debug().Str("call", call).Msg("command sent")
		if after != nil {
			after(s.session)
		}
	}()
	return nil
}

// Seek moves playback by offset seconds, negative to rewind.
func (s *Synchronizer) Seek(offset float64) error {
	return s.forward(callSeek, func(ctx context.Context) error {
		return s.ctrl.Seek(ctx, offset)
	}, nil)
}

// SetMediaPosition jumps to position seconds.
func (s *Synchronizer) SetMediaPosition(position float64) error {
	if position < 0 {
		position = 0
	}
	return s.forward(callSetPosition, func(ctx context.Context) error {
		return s.ctrl.SetPosition(ctx, position)
	}, nil)
}

// NextTrack skips forward and polls right away.
func (s *Synchronizer) NextTrack() error {
	return s.forward(callNextTrack, s.ctrl.NextTrack, triggerPoll)
}

// PreviousTrack skips back and polls right away.
func (s *Synchronizer) PreviousTrack() error {
	return s.forward(callPreviousTrack, s.ctrl.PreviousTrack, triggerPoll)
}

// TogglePlayback switches between play and pause.
func (s *Synchronizer) TogglePlayback() error {
	return s.forward(callTogglePlayback, s.ctrl.TogglePlayback, triggerPoll)
}

func triggerPoll(sess *session) {
	if sess != nil && sess.poll != nil {
		sess.poll.Trigger()
	}
}

package main

import "strconv"

// Volume is the output volume as a percentage. Known is false until a read or
// push has succeeded; an unknown volume is never reported as 0.
type Volume struct {
	Level int
	Known bool
}

func (v Volume) String() string {
	if !v.Known {
		return "--%"
	}
	return strconv.Itoa(v.Level) + "%"
}

// MediaSnapshot is the polled view of the active media. Duration == 0 means
// nothing is playing; the other fields are then empty.
type MediaSnapshot struct {
	Position float64
	Duration float64
	Title    string
	CoverArt string
}

// Active reports whether media is loaded.
func (m MediaSnapshot) Active() bool { return m.Duration > 0 }

// Progress returns position/duration in 0..1, or 0 without media.
func (m MediaSnapshot) Progress() float64 {
	if !m.Active() {
		return 0
	}
	return m.Position / m.Duration
}

// newMediaSnapshot merges both halves of a poll. Position is clamped into
// 0..duration.
func newMediaSnapshot(st MediaState, info MediaInfo) MediaSnapshot {
	if st.Duration <= 0 {
		return MediaSnapshot{}
	}
	pos := st.Position
	if pos < 0 {
		pos = 0
	}
	if pos > st.Duration {
		pos = st.Duration
	}
	return MediaSnapshot{
		Position: pos,
		Duration: st.Duration,
		Title:    info.Title,
		CoverArt: info.CoverArt,
	}
}

// Snapshot is the single consistent view handed to the UI. Revision grows by
// one with every published change.
type Snapshot struct {
	Volume   Volume
	Media    MediaSnapshot
	Revision uint64
}

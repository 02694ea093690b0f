package main

import "testing"

func TestVolumeString(t *testing.T) {
	assertEqual(t, Volume{}.String(), "--%", "unknown")
	assertEqual(t, Volume{Level: 0, Known: true}.String(), "0%", "muted")
	assertEqual(t, Volume{Level: 65, Known: true}.String(), "65%", "known")
}

func TestNewMediaSnapshot(t *testing.T) {
	tests := []struct {
		name string
		st   MediaState
		info MediaInfo
		want MediaSnapshot
	}{
		{
			"playing",
			MediaState{Position: 30, Duration: 180},
			MediaInfo{Title: "Song", CoverArt: "file:///a.png"},
			MediaSnapshot{Position: 30, Duration: 180, Title: "Song", CoverArt: "file:///a.png"},
		},
		{
			"position past end",
			MediaState{Position: 200, Duration: 180},
			MediaInfo{Title: "Song"},
			MediaSnapshot{Position: 180, Duration: 180, Title: "Song"},
		},
		{
			"negative position",
			MediaState{Position: -1, Duration: 180},
			MediaInfo{Title: "Song"},
			MediaSnapshot{Position: 0, Duration: 180, Title: "Song"},
		},
		{
			"no duration",
			MediaState{Position: 10},
			MediaInfo{Title: "Stream"},
			MediaSnapshot{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertEqual(t, newMediaSnapshot(tt.st, tt.info), tt.want, "snapshot")
		})
	}
}

func TestMediaSnapshotProgress(t *testing.T) {
	assertEqual(t, MediaSnapshot{}.Progress(), 0.0, "no media")
	assertEqual(t, MediaSnapshot{Position: 45, Duration: 180}.Progress(), 0.25, "quarter")
	assertEqual(t, MediaSnapshot{}.Active(), false, "sentinel inactive")
}

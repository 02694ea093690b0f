package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Command names as they appear in logs and transport errors.
const (
	callGetVolume      = "get_volume"
	callSetVolume      = "set_volume"
	callGetMediaState  = "get_media_state"
	callGetMediaInfo   = "get_media_info"
	callSeek           = "seek"
	callSetPosition    = "set_position"
	callNextTrack      = "next_track"
	callPreviousTrack  = "previous_track"
	callTogglePlayback = "toggle_playback"
)

// MediaState is the position half of a media read, in seconds.
type MediaState struct {
	Position float64
	Duration float64
}

// MediaInfo is the metadata half of a media read. CoverArt is an opaque
// reference (usually a file:// or http(s):// URL) and may be empty.
type MediaInfo struct {
	Title    string
	CoverArt string
}

// Controller is the request/response channel to the native control layer.
// Media reads return ErrNoActiveMedia when nothing is playing; every other
// failure is a *TransportError.
type Controller interface {
	GetVolume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error
	GetMediaState(ctx context.Context) (MediaState, error)
	GetMediaInfo(ctx context.Context) (MediaInfo, error)
	Seek(ctx context.Context, offset float64) error
	SetPosition(ctx context.Context, position float64) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	TogglePlayback(ctx context.Context) error
}

// VolumeSource delivers volume-changed pushes. The returned channel is closed
// when ctx is cancelled or the underlying stream ends.
type VolumeSource interface {
	WatchVolume(ctx context.Context) (<-chan int, error)
}

// clampVolume forces v into 0..100.
func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// runCommand runs name with args and returns stdout without the trailing
// newline. The call is bounded by timeout when it is positive.
func runCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.TrimRight(out.String(), "\r\n"), nil
}

var percentPattern = regexp.MustCompile(`(\d+)%`)

// parsePercent returns the first N% value in out, as printed by
// `pactl get-sink-volume`.
func parsePercent(out string) (int, error) {
	m := percentPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no volume percentage in %q", out)
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("failed to parse volume: %w", err)
	}
	return clampVolume(v), nil
}

// isSinkChange reports whether a `pactl subscribe` line announces a sink
// volume or mute change.
func isSinkChange(line string) bool {
	return strings.HasPrefix(line, "Event 'change' on sink #")
}

// parseMediaState parses "<position>\t<length>", both in microseconds as
// printed by playerctl format templates.
// An empty or zero length means nothing is loaded.
func parseMediaState(out string) (MediaState, error) {
	parts := strings.Split(out, "\t")
	if len(parts) != 2 {
		return MediaState{}, fmt.Errorf("unexpected media state format: got %d parts, expected 2", len(parts))
	}

	lengthField := strings.TrimSpace(parts[1])
	if lengthField == "" {
		return MediaState{}, ErrNoActiveMedia
	}
	length, err := strconv.ParseInt(lengthField, 10, 64)
	if err != nil {
		return MediaState{}, fmt.Errorf("failed to parse duration: %w", err)
	}
	if length <= 0 {
		return MediaState{}, ErrNoActiveMedia
	}

	position, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return MediaState{}, fmt.Errorf("failed to parse position: %w", err)
	}

	// Convert from microseconds to seconds
	return MediaState{Position: position / 1e6, Duration: float64(length) / 1e6}, nil
}

// parseMediaInfo parses "<title>\t<art url>". Tabs keep titles containing "|"
// intact.
func parseMediaInfo(out string) (MediaInfo, error) {
	if strings.TrimSpace(out) == "" {
		return MediaInfo{}, ErrNoActiveMedia
	}
	parts := strings.SplitN(out, "\t", 2)
	info := MediaInfo{Title: strings.TrimSpace(parts[0])}
	if len(parts) == 2 {
		info.CoverArt = strings.TrimSpace(parts[1])
	}
	return info, nil
}

// isNoPlayer reports whether a playerctl failure means no MPRIS player exists.
func isNoPlayer(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "No players found") ||
		strings.Contains(msg, "No player could handle this command")
}

// firstActivePlayer returns the first player that check reports as active.
// When none is, a check that failed outright is returned as the error so a
// broken control channel is not mistaken for silence.
func firstActivePlayer(players []string, check func(player string) (bool, error)) (string, error) {
	var failed error
	for _, player := range players {
		active, err := check(player)
		if err != nil {
			failed = err
			continue
		}
		if active {
			return player, nil
		}
	}
	if failed != nil {
		return "", fmt.Errorf("find active player: %w", failed)
	}
	return "", ErrNoActiveMedia
}

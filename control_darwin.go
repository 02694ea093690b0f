//go:build darwin
// +build darwin

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// volumeWatchInterval is how often output volume is sampled; macOS has no
// scriptable volume notification.
const volumeWatchInterval = 500 * time.Millisecond

// NativeController implements Controller using AppleScript for macOS.
// It supports Apple Music and Spotify.
type NativeController struct {
	timeout time.Duration
	log     zerolog.Logger
}

// NewNativeController creates the controller for the current platform.
func NewNativeController(timeout time.Duration, log zerolog.Logger) *NativeController {
	return &NativeController{timeout: timeout, log: log.With().Str("component", "osascript").Logger()}
}

func (a *NativeController) runAppleScript(ctx context.Context, script string) (string, error) {
	out, err := runCommand(ctx, a.timeout, "osascript", "-e", script)
	return strings.TrimSpace(out), err
}

// findActivePlayer checks Music then Spotify for a player that is not stopped.
func (a *NativeController) findActivePlayer(ctx context.Context) (string, error) {
	return firstActivePlayer([]string{"Music", "Spotify"}, func(player string) (bool, error) {
		checkScript := fmt.Sprintf(`
			tell application "System Events"
				if exists (process "%s") then
					tell application "%s"
						if player state is not stopped then
							return "true"
						end if
					end tell
				end if
				return "false"
			end tell`, player, player)

		result, err := a.runAppleScript(ctx, checkScript)
		return result == "true", err
	})
}

// tellPlayer runs body inside a tell block for the active player.
func (a *NativeController) tellPlayer(ctx context.Context, body string) (string, string, error) {
	player, err := a.findActivePlayer(ctx)
	if err != nil {
		return "", "", err
	}
	out, err := a.runAppleScript(ctx, fmt.Sprintf("tell application %q\n%s\nend tell", player, body))
	return player, out, err
}

func (a *NativeController) GetVolume(ctx context.Context) (int, error) {
	out, err := a.runAppleScript(ctx, "output volume of (get volume settings)")
	if err != nil {
		return 0, transportErr(callGetVolume, err)
	}
	v, err := strconv.Atoi(out)
	if err != nil {
		// "missing value" is reported while an output device has no volume control
		return 0, transportErr(callGetVolume, fmt.Errorf("failed to parse volume %q: %w", out, err))
	}
	return clampVolume(v), nil
}

func (a *NativeController) SetVolume(ctx context.Context, volume int) error {
	_, err := a.runAppleScript(ctx, fmt.Sprintf("set volume output volume %d", clampVolume(volume)))
	return transportErr(callSetVolume, err)
}

func (a *NativeController) GetMediaState(ctx context.Context) (MediaState, error) {
	player, out, err := a.tellPlayer(ctx, `return (player position as string) & "|" & (duration of current track as string)`)
	if err != nil {
		return MediaState{}, transportErr(callGetMediaState, err)
	}

	parts := strings.Split(out, "|")
	if len(parts) != 2 {
		return MediaState{}, transportErr(callGetMediaState, errors.New("unexpected media state format"))
	}
	position, err := strconv.ParseFloat(strings.ReplaceAll(parts[0], ",", "."), 64)
	if err != nil {
		return MediaState{}, transportErr(callGetMediaState, fmt.Errorf("failed to parse position: %w", err))
	}
	duration, err := strconv.ParseFloat(strings.ReplaceAll(parts[1], ",", "."), 64)
	if err != nil {
		return MediaState{}, transportErr(callGetMediaState, fmt.Errorf("failed to parse duration: %w", err))
	}

	// Apple Music returns duration in seconds, Spotify in milliseconds
	if player == "Spotify" {
		duration = duration / 1000
	}
	if duration <= 0 {
		return MediaState{}, ErrNoActiveMedia
	}
	return MediaState{Position: position, Duration: duration}, nil
}

func (a *NativeController) GetMediaInfo(ctx context.Context) (MediaInfo, error) {
	player, err := a.findActivePlayer(ctx)
	if err != nil {
		return MediaInfo{}, transportErr(callGetMediaInfo, err)
	}

	script := `tell application "Music" to return name of current track & "|"`
	if player == "Spotify" {
		script = `tell application "Spotify" to return name of current track & "|" & artwork url of current track`
	}
	out, err := a.runAppleScript(ctx, script)
	if err != nil {
		return MediaInfo{}, transportErr(callGetMediaInfo, err)
	}
	info, err := parseMediaInfo(strings.Replace(out, "|", "\t", 1))
	return info, transportErr(callGetMediaInfo, err)
}

func (a *NativeController) Seek(ctx context.Context, offset float64) error {
	_, _, err := a.tellPlayer(ctx, fmt.Sprintf("set player position to (player position + (%s))", strconv.FormatFloat(offset, 'f', 3, 64)))
	return transportErr(callSeek, err)
}

func (a *NativeController) SetPosition(ctx context.Context, position float64) error {
	if position < 0 {
		position = 0
	}
	_, _, err := a.tellPlayer(ctx, fmt.Sprintf("set player position to %s", strconv.FormatFloat(position, 'f', 3, 64)))
	return transportErr(callSetPosition, err)
}

func (a *NativeController) NextTrack(ctx context.Context) error {
	_, _, err := a.tellPlayer(ctx, "next track")
	return transportErr(callNextTrack, err)
}

func (a *NativeController) PreviousTrack(ctx context.Context) error {
	_, _, err := a.tellPlayer(ctx, "previous track")
	return transportErr(callPreviousTrack, err)
}

func (a *NativeController) TogglePlayback(ctx context.Context) error {
	_, _, err := a.tellPlayer(ctx, "playpause")
	return transportErr(callTogglePlayback, err)
}

// WatchVolume samples the output volume and pushes only changes.
func (a *NativeController) WatchVolume(ctx context.Context) (<-chan int, error) {
	return watchByPolling(ctx, volumeWatchInterval, a.GetVolume, a.log)
}

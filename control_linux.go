//go:build linux
// +build linux

package main

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultSink = "@DEFAULT_SINK@"

// NativeController talks to PulseAudio/PipeWire through pactl for volume and
// to the active MPRIS player through playerctl for media.
type NativeController struct {
	timeout time.Duration
	log     zerolog.Logger
}

// NewNativeController creates the controller for the current platform.
func NewNativeController(timeout time.Duration, log zerolog.Logger) *NativeController {
	return &NativeController{timeout: timeout, log: log.With().Str("component", "pactl").Logger()}
}

func (c *NativeController) pactl(ctx context.Context, args ...string) (string, error) {
	return runCommand(ctx, c.timeout, "pactl", args...)
}

// playerctl runs playerctl and maps a missing player onto ErrNoActiveMedia.
func (c *NativeController) playerctl(ctx context.Context, args ...string) (string, error) {
	out, err := runCommand(ctx, c.timeout, "playerctl", args...)
	if isNoPlayer(err) {
		return "", ErrNoActiveMedia
	}
	return out, err
}

func (c *NativeController) GetVolume(ctx context.Context) (int, error) {
	out, err := c.pactl(ctx, "get-sink-volume", defaultSink)
	if err != nil {
		return 0, transportErr(callGetVolume, err)
	}
	v, err := parsePercent(out)
	return v, transportErr(callGetVolume, err)
}

func (c *NativeController) SetVolume(ctx context.Context, volume int) error {
	_, err := c.pactl(ctx, "set-sink-volume", defaultSink, fmt.Sprintf("%d%%", clampVolume(volume)))
	return transportErr(callSetVolume, err)
}

func (c *NativeController) GetMediaState(ctx context.Context) (MediaState, error) {
	out, err := c.playerctl(ctx, "metadata", "--format", "{{position}}\t{{mpris:length}}")
	if err != nil {
		return MediaState{}, transportErr(callGetMediaState, err)
	}
	st, err := parseMediaState(out)
	return st, transportErr(callGetMediaState, err)
}

func (c *NativeController) GetMediaInfo(ctx context.Context) (MediaInfo, error) {
	out, err := c.playerctl(ctx, "metadata", "--format", "{{title}}\t{{mpris:artUrl}}")
	if err != nil {
		return MediaInfo{}, transportErr(callGetMediaInfo, err)
	}
	info, err := parseMediaInfo(out)
	return info, transportErr(callGetMediaInfo, err)
}

// Seek moves relative to the current position. playerctl takes "N+" / "N-".
func (c *NativeController) Seek(ctx context.Context, offset float64) error {
	arg := strconv.FormatFloat(offset, 'f', 3, 64) + "+"
	if offset < 0 {
		arg = strconv.FormatFloat(-offset, 'f', 3, 64) + "-"
	}
	_, err := c.playerctl(ctx, "position", arg)
	return transportErr(callSeek, err)
}

func (c *NativeController) SetPosition(ctx context.Context, position float64) error {
	if position < 0 {
		position = 0
	}
	_, err := c.playerctl(ctx, "position", strconv.FormatFloat(position, 'f', 3, 64))
	return transportErr(callSetPosition, err)
}

func (c *NativeController) NextTrack(ctx context.Context) error {
	_, err := c.playerctl(ctx, "next")
	return transportErr(callNextTrack, err)
}

func (c *NativeController) PreviousTrack(ctx context.Context) error {
	_, err := c.playerctl(ctx, "previous")
	return transportErr(callPreviousTrack, err)
}

func (c *NativeController) TogglePlayback(ctx context.Context) error {
	_, err := c.playerctl(ctx, "play-pause")
	return transportErr(callTogglePlayback, err)
}

// WatchVolume follows `pactl subscribe` and pushes the sink volume after every
// sink change event. Repeated identical values are collapsed.
func (c *NativeController) WatchVolume(ctx context.Context) (<-chan int, error) {
	cmd := exec.CommandContext(ctx, "pactl", "subscribe")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, transportErr("subscribe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, transportErr("subscribe", err)
	}

	ch := make(chan int)
	go func() {
		defer close(ch)
		defer cmd.Wait()

		last := -1
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if !isSinkChange(scanner.Text()) {
				continue
			}
			v, err := c.GetVolume(ctx)
			if err != nil {
				c.log.Debug().Err(err).Msg("volume read after sink event failed")
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
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("pactl subscribe stream ended")
		}
	}()
	return ch, nil
}

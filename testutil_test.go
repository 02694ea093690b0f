package main

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"
)

// generateTestImage creates a simple test image with specified dimensions and colors
// Useful for testing artwork processing functions
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Fill image with the specified color
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}

	return img
}

// generateGradientImage creates a gradient test image for color extraction testing
func generateGradientImage(width, height int, startColor, endColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		ratio := float64(y) / float64(height)
		r := uint8(float64(startColor.R)*(1-ratio) + float64(endColor.R)*ratio)
		g := uint8(float64(startColor.G)*(1-ratio) + float64(endColor.G)*ratio)
		b := uint8(float64(startColor.B)*(1-ratio) + float64(endColor.B)*ratio)

		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}

	return img
}

// assertError is a test helper that checks if an error occurred and fails the test if not
func assertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("Expected error: %s, got nil", msg)
	}
}

// assertNoError is a test helper that fails the test if an error occurred
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertEqual is a generic test helper for comparing values
func assertEqual(t *testing.T, got, want any, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// isValidHexColor checks if a string is a valid hex color (e.g., "#RRGGBB")
func isValidHexColor(color string) bool {
	if len(color) != 7 {
		return false
	}
	if color[0] != '#' {
		return false
	}
	for i := 1; i < 7; i++ {
		c := color[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// waitFor polls cond until it holds or the timeout expires
func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

// fakeController is a scripted Controller. Each read returns the configured
// value or error; a gate channel, when set, blocks the read until closed or
// sent to. Every call is recorded by name.
type fakeController struct {
	mu sync.Mutex

	volume    int
	volumeErr error
	state     MediaState
	stateErr  error
	info      MediaInfo
	infoErr   error
	cmdErr    error

	volumeGate chan struct{}
	stateGate  chan struct{}

	calls      []string
	setVolumes []int
	seeks      []float64
	positions  []float64
}

func newFakeController() *fakeController {
	return &fakeController{volume: 30}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

// count returns how many times call was made
func (f *fakeController) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeController) set(fn func(f *fakeController)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeController) sentVolumes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.setVolumes...)
}

func gate(ctx context.Context, ch chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeController) GetVolume(ctx context.Context) (int, error) {
	f.record(callGetVolume)
	f.mu.Lock()
	g := f.volumeGate
	f.mu.Unlock()
	if err := gate(ctx, g); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume, f.volumeErr
}

func (f *fakeController) SetVolume(ctx context.Context, volume int) error {
	f.record(callSetVolume)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setVolumes = append(f.setVolumes, volume)
	return f.cmdErr
}

func (f *fakeController) GetMediaState(ctx context.Context) (MediaState, error) {
	f.record(callGetMediaState)
	f.mu.Lock()
	g := f.stateGate
	f.mu.Unlock()
	if err := gate(ctx, g); err != nil {
		return MediaState{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.stateErr
}

func (f *fakeController) GetMediaInfo(ctx context.Context) (MediaInfo, error) {
	f.record(callGetMediaInfo)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info, f.infoErr
}

func (f *fakeController) Seek(ctx context.Context, offset float64) error {
	f.record(callSeek)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, offset)
	return f.cmdErr
}

func (f *fakeController) SetPosition(ctx context.Context, position float64) error {
	f.record(callSetPosition)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions = append(f.positions, position)
	return f.cmdErr
}

func (f *fakeController) NextTrack(ctx context.Context) error {
	f.record(callNextTrack)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdErr
}

func (f *fakeController) PreviousTrack(ctx context.Context) error {
	f.record(callPreviousTrack)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdErr
}

func (f *fakeController) TogglePlayback(ctx context.Context) error {
	f.record(callTogglePlayback)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cmdErr
}

// fakeVolumeSource hands out one channel that tests push into
type fakeVolumeSource struct {
	ch      chan int
	err     error
	watched chan struct{}
	once    sync.Once
}

func newFakeVolumeSource() *fakeVolumeSource {
	return &fakeVolumeSource{ch: make(chan int), watched: make(chan struct{})}
}

func (s *fakeVolumeSource) WatchVolume(ctx context.Context) (<-chan int, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.once.Do(func() { close(s.watched) })
	return s.ch, nil
}

// push delivers v, failing the test if nobody receives it
func (s *fakeVolumeSource) push(t *testing.T, v int) {
	t.Helper()
	select {
	case s.ch <- v:
	case <-time.After(2 * time.Second):
		t.Fatalf("volume push %d not received", v)
	}
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	scrollSeparator = "  •  "
	artworkTimeout  = 5 * time.Second
	unmuteDefault   = 50
)

// model is the Bubble Tea model: it renders the synchronizer snapshot and
// turns key presses into intents. It never writes the snapshot itself.
type model struct {
	sync  *Synchronizer
	snap  Snapshot
	color string

	width  int
	height int

	// Transient error toast
	lastError error
	errorAt   time.Time

	// For smooth position interpolation
	lastPositionTime time.Time // When the current snapshot arrived
	isPlaying        bool      // Position advanced since the previous poll

	// Album artwork support
	artworkEncoded string // Kitty protocol-encoded artwork for display
	artworkRef     string // Cover-art reference the encoded artwork belongs to
	supportsKitty  bool   // Whether terminal supports Kitty graphics

	// Mute toggle remembers the level to go back to
	premute int
	muted   bool

	// Text scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int

	help help.Model
}

func newModel(s *Synchronizer, cfg Config, kitty bool) model {
	return model{
		sync:          s,
		snap:          s.Snapshot(),
		color:         cfg.UI.Color,
		supportsKitty: kitty,
		help:          help.New(),
	}
}

// UI refresh tick
type tickMsg time.Time

// A new snapshot from the synchronizer
type snapshotMsg Snapshot

// A transient failure reported by the synchronizer
type syncErrorMsg struct{ err error }

// The synchronizer stopped and closed its channels
type syncClosedMsg struct{}

// Clears the error toast set at the given time
type clearErrorMsg struct{ at time.Time }

// Result of resolving and encoding cover art in the background
type artworkMsg struct {
	ref     string
	encoded string
	color   string
	err     error
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForSnapshot(ch <-chan Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return syncClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func waitForError(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return syncErrorMsg{err: err}
	}
}

// Resolve and encode artwork in background (doesn't block UI)
func loadArtworkCmd(ref string, cfg Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artworkTimeout)
		defer cancel()

		data, err := fetchCoverArt(ctx, ref)
		if err != nil {
			return artworkMsg{ref: ref, err: err}
		}
		return renderArtworkMsg(ref, data, cfg)
	}
}

// renderArtworkMsg turns a panic in an image decoder into an error message
func renderArtworkMsg(ref string, data []byte, cfg Config) (msg artworkMsg) {
	defer func() {
		if r := recover(); r != nil {
			msg = artworkMsg{ref: ref, err: fmt.Errorf("cover art processing panicked: %v", r)}
		}
	}()
	art, err := renderCover(data, cfg.UI.ColorMode == "auto", cfg)
	return artworkMsg{ref: ref, encoded: art.Kitty, color: art.Accent, err: err}
}

// Calculate current position with smooth interpolation
func (m model) getCurrentPosition() float64 {
	media := m.snap.Media
	if !m.isPlaying || !media.Active() {
		return media.Position
	}

	elapsed := time.Since(m.lastPositionTime).Seconds()
	return min(media.Position+elapsed, media.Duration)
}

func (m model) artworkWanted() bool {
	return m.supportsKitty && config.Get().Artwork.Enabled
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForSnapshot(m.sync.Updates()),
		waitForError(m.sync.Errors()),
		watchConfigCmd(),
	)
}

// intent runs a synchronizer call and keeps its immediate error for display
func (m *model) intent(err error) {
	if err != nil {
		m.lastError = err
		m.errorAt = time.Now()
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := config.Get()
	media := m.snap.Media

	switch {
	case key.Matches(msg, keys.Quit):
		m.sync.Stop()
		return m, tea.Quit
	case key.Matches(msg, keys.VolumeUp):
		m.muted = false
		m.intent(m.sync.AdjustVolume(cfg.Volume.Step))
	case key.Matches(msg, keys.VolumeDown):
		m.muted = false
		m.intent(m.sync.AdjustVolume(-cfg.Volume.Step))
	case key.Matches(msg, keys.Mute):
		if !m.snap.Volume.Known {
			return m, nil
		}
		if m.muted || m.snap.Volume.Level == 0 {
			level := m.premute
			if level == 0 {
				level = unmuteDefault
			}
			m.muted = false
			m.intent(m.sync.SetVolume(level))
		} else {
			m.premute = m.snap.Volume.Level
			m.muted = true
			m.intent(m.sync.SetVolume(0))
		}
	case key.Matches(msg, keys.SeekBack):
		m.intent(m.sync.Seek(-cfg.Media.SeekStepSeconds))
	case key.Matches(msg, keys.SeekForward):
		m.intent(m.sync.Seek(cfg.Media.SeekStepSeconds))
	case key.Matches(msg, keys.Scrub):
		if media.Active() {
			fraction := float64(msg.String()[0]-'0') / 10
			m.intent(m.sync.SetMediaPosition(media.Duration * fraction))
		}
	case key.Matches(msg, keys.Next):
		m.intent(m.sync.NextTrack())
	case key.Matches(msg, keys.Previous):
		m.intent(m.sync.PreviousTrack())
	case key.Matches(msg, keys.PlayPause):
		m.intent(m.sync.TogglePlayback())
	case key.Matches(msg, keys.Artwork):
		// Toggle artwork on/off
		cfg.Artwork.Enabled = !cfg.Artwork.Enabled
		config.Set(cfg)
		if !cfg.Artwork.Enabled {
			m.artworkEncoded = ""
			m.artworkRef = ""
			return m, nil
		}
		if m.supportsKitty && media.CoverArt != "" {
			return m, loadArtworkCmd(media.CoverArt, cfg)
		}
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, m.errorTimeoutCmd()
}

// errorTimeoutCmd clears the current error after the configured TTL
func (m model) errorTimeoutCmd() tea.Cmd {
	if m.lastError == nil {
		return nil
	}
	at := m.errorAt
	ttl := time.Duration(config.Get().UI.ErrorTTLMs) * time.Millisecond
	return tea.Tick(ttl, func(time.Time) tea.Msg { return clearErrorMsg{at: at} })
}

func (m model) applySnapshot(snap Snapshot) (model, tea.Cmd) {
	prev := m.snap.Media
	next := snap.Media

	sameTrack := prev.Title == next.Title && prev.Duration == next.Duration
	m.isPlaying = next.Active() && sameTrack && next.Position > prev.Position
	m.lastPositionTime = time.Now()

	if !sameTrack {
		// Reset scroll when the track changes, pause 3 seconds at the start
		m.scrollOffset = 0
		m.scrollPause = 30
		m.scrollTick = 0
	}
	if snap.Volume.Known && snap.Volume.Level > 0 {
		m.muted = false
	}
	m.snap = snap

	if !next.Active() || next.CoverArt == "" {
		m.artworkEncoded = ""
		m.artworkRef = ""
		return m, nil
	}
	if m.artworkWanted() && next.CoverArt != m.artworkRef {
		m.artworkRef = next.CoverArt
		return m, loadArtworkCmd(next.CoverArt, config.Get())
	}
	return m, nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		var cmd tea.Cmd
		m, cmd = m.applySnapshot(Snapshot(msg))
		return m, tea.Batch(cmd, waitForSnapshot(m.sync.Updates()))

	case syncErrorMsg:
		m.lastError = msg.err
		m.errorAt = time.Now()
		return m, tea.Batch(m.errorTimeoutCmd(), waitForError(m.sync.Errors()))

	case clearErrorMsg:
		if msg.at.Equal(m.errorAt) {
			m.lastError = nil
		}

	case syncClosedMsg:
		return m, tea.Quit

	case artworkMsg:
		// Ignore results for art that is no longer current
		if msg.ref != m.snap.Media.CoverArt || !m.artworkWanted() {
			return m, nil
		}
		m.artworkRef = msg.ref
		if msg.err != nil {
			m.artworkEncoded = ""
			return m, nil
		}
		m.artworkEncoded = msg.encoded
		if config.Get().UI.ColorMode == "auto" && msg.color != "" {
			m.color = msg.color
		}

	case configReloadMsg:
		// Config file changed, update color and artwork setting
		cfg := config.Get()
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		}
		if !cfg.Artwork.Enabled {
			m.artworkEncoded = ""
			m.artworkRef = ""
		} else if m.artworkEncoded == "" && m.supportsKitty && m.snap.Media.CoverArt != "" {
			m.artworkRef = m.snap.Media.CoverArt
			return m, tea.Batch(watchConfigCmd(), loadArtworkCmd(m.snap.Media.CoverArt, cfg))
		}
		return m, watchConfigCmd()

	case tickMsg:
		m.advanceScroll()
		return m, tickCmd()
	}

	return m, nil
}

// advanceScroll moves the title scroll by one step every third tick
func (m *model) advanceScroll() {
	m.scrollTick++
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 {
		return
	}
	m.scrollOffset++

	maxLen := m.textWidth()
	titleLen := len([]rune(m.snap.Media.Title))
	if titleLen > maxLen && m.scrollOffset >= titleLen+len([]rune(scrollSeparator)) {
		m.scrollOffset = 0
		m.scrollPause = 30 // Pause for 3 seconds when looping back
	}
}

func (m model) textWidth() int {
	cfg := config.Get()
	if m.artworkEncoded != "" && m.artworkWanted() {
		return cfg.Text.MaxLengthWithArt
	}
	return cfg.Text.MaxLengthNoArt
}

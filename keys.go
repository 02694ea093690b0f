package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	Mute        key.Binding
	SeekBack    key.Binding
	SeekForward key.Binding
	Scrub       key.Binding
	PlayPause   key.Binding
	Next        key.Binding
	Previous    key.Binding
	Artwork     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = keyMap{
	VolumeUp:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
	VolumeDown:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "volume down")),
	Mute:        key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
	SeekBack:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "rewind")),
	SeekForward: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "forward")),
	Scrub:       key.NewBinding(key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("0-9", "jump")),
	PlayPause:   key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "play/pause")),
	Next:        key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
	Previous:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "previous")),
	Artwork:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "artwork")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// ShortHelp is shown under the player when the full help is hidden
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.VolumeUp, k.VolumeDown, k.Mute},
		{k.SeekBack, k.SeekForward, k.Scrub},
		{k.PlayPause, k.Next, k.Previous},
		{k.Artwork, k.Help, k.Quit},
	}
}

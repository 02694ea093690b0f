package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	// Get config snapshot for rendering
	cfg := config.Get()

	// Use lipgloss.Color to validate the color input
	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	white := lipgloss.NewStyle().Foreground(lipgloss.Color("15")) // ANSI white

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)

	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	barWidth := cfg.UI.MaxWidth - 17
	bar := func(fraction float64) string {
		filled, empty := barCells(barWidth, fraction)
		return highlight.Render(strings.Repeat("█", filled)) +
			white.Render(strings.Repeat("─", empty))
	}

	media := m.snap.Media
	showArt := media.Active() && m.artworkEncoded != "" && m.artworkWanted()

	var textContent strings.Builder
	textContent.WriteString(highlight.Render("󰓃 Now Playing") + "\n\n")

	var progressBarContent string
	if !media.Active() {
		// Nothing playing: position, title and art are not rendered
		textContent.WriteString(mutedStyle.Render("Nothing playing") + "\n\n")
		textContent.WriteString(dimStyle.Render("Start playing music to begin"))
	} else {
		maxLen := cfg.Text.MaxLengthNoArt
		if showArt {
			maxLen = cfg.Text.MaxLengthWithArt
		}
		title := media.Title
		if title == "" {
			title = "Unknown title"
		}
		textContent.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("󰎈 "), scrollText(title, maxLen, m.scrollOffset)))

		statusIcon, status := "󰏤 ", "Paused"
		if m.isPlaying {
			statusIcon, status = "󰐊 ", "Playing"
		}
		textContent.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(statusIcon), status))

		currentPos := m.getCurrentPosition()
		progressBarContent = fmt.Sprintf(
			"\n%s %s/%s",
			bar(currentPos/media.Duration),
			highlight.Render(formatTime(currentPos)),
			highlight.Render(formatTime(media.Duration)),
		)
	}

	// Volume line is always shown; an unknown volume renders as --%
	volumeContent := fmt.Sprintf("\n%s %s %s", bar(float64(m.snap.Volume.Level)/100), labelStyle.Render("󰕾"), highlight.Render(m.snap.Volume.String()))
	if !m.snap.Volume.Known {
		volumeContent = fmt.Sprintf("\n%s %s %s", bar(0), labelStyle.Render("󰕾"), mutedStyle.Render(m.snap.Volume.String()))
	}

	// Combine artwork and text content
	var topSection string
	if showArt {
		// Add padding to the left of text to make room for the image
		paddedText := lipgloss.NewStyle().
			PaddingLeft(cfg.Artwork.Padding).
			Render(textContent.String())
		topSection = m.artworkEncoded + paddedText
	} else if m.supportsKitty {
		// Delete any image left on screen
		topSection = "\033_Ga=d,d=A\033\\" + textContent.String()
	} else {
		topSection = textContent.String()
	}

	mainContent := topSection + progressBarContent + volumeContent
	if m.lastError != nil {
		mainContent += "\n\n" + errorStyle.Render("Error: "+m.lastError.Error())
	}

	contentStr := borderStyle.
		Width(cfg.UI.MaxWidth).
		Render(mainContent)

	// Full key map or a short hint line
	m.help.Width = cfg.UI.MaxWidth
	m.help.Styles.ShortKey = highlight
	m.help.Styles.FullKey = highlight
	helpText := lipgloss.NewStyle().
		Width(cfg.UI.MaxWidth).
		Align(lipgloss.Center).
		Render(m.help.View(keys))

	fullUI := lipgloss.JoinVertical(lipgloss.Center, contentStr, "\n"+helpText)

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}

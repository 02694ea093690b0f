package main

import (
	"fmt"
	"math"
)

// formatTime converts seconds to MM:SS, or H:MM:SS from one hour on.
// Negative and NaN inputs render as 00:00.
func formatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// scrollText returns a scrolling window of text with smooth looping
func scrollText(text string, max int, offset int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}

	// Add padding for smooth loop
	fullText := append(runes, []rune(scrollSeparator)...)
	textLen := len(fullText)

	// Wrap offset around
	offset = offset % textLen

	// Build visible window
	result := make([]rune, 0, max)
	for i := 0; i < max; i++ {
		result = append(result, fullText[(offset+i)%textLen])
	}
	return string(result)
}

// barCells splits width cells into filled and empty parts for fraction,
// which is clamped to 0..1.
func barCells(width int, fraction float64) (filled, empty int) {
	if width <= 0 {
		return 0, 0
	}
	if fraction < 0 || math.IsNaN(fraction) {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled = int(float64(width) * fraction)
	return filled, width - filled
}

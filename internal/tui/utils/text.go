// Package utils holds small text helpers shared by the view
// components. All width math is display-width aware so CJK titles
// line up.
package utils

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap wraps text at word boundaries to fit within maxWidth and
// returns the lines.
func Wrap(text string, maxWidth int) []string {
	words := strings.Fields(strings.TrimSpace(text))

	var lines []string
	var current strings.Builder
	width := 0

	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)

		switch {
		case width == 0:
			current.WriteString(word)
			width = wordWidth
		case width+1+wordWidth <= maxWidth:
			current.WriteString(" ")
			current.WriteString(word)
			width += 1 + wordWidth
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			width = wordWidth
		}
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// ClampLines wraps text and keeps at most maxLines lines, ellipsizing
// the last one when content was cut.
func ClampLines(text string, maxLines, maxWidth int) string {
	lines := Wrap(text, maxWidth)
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}

	kept := lines[:maxLines]
	last := kept[maxLines-1]
	if runewidth.StringWidth(last) > maxWidth-3 {
		last = Truncate(last, maxWidth)
	} else {
		last += "..."
	}
	kept[maxLines-1] = last
	return strings.Join(kept, "\n")
}

// Truncate cuts text to fit maxWidth display cells, appending "..."
// when anything was removed.
func Truncate(text string, maxWidth int) string {
	if runewidth.StringWidth(text) <= maxWidth {
		return text
	}

	width := 0
	for i, r := range text {
		width += runewidth.RuneWidth(r)
		if width > maxWidth-3 {
			return text[:i] + "..."
		}
	}
	return text
}

// Clock formats seconds as mm:ss, or h:mm:ss past the hour mark.
func Clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FirstNonEmpty returns the first non-empty string, used for title
// fallbacks.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

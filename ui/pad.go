package ui

import "github.com/mattn/go-runewidth"

// PadOrTrim fits s into exactly width terminal cells.
func PadOrTrim(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

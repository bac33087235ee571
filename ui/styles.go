package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles decouples rendering from the terminal. Every field must be set;
// PlainStyles is the identity set used for pipes and tests.
type Styles struct {
	Header    func(string) string
	Secondary func(string) string
	Bold      func(string) string
	Success   func(string) string
	Failure   func(string) string
	Warn      func(string) string
	// Branch colours a branch name with palette slot i.
	Branch func(i int, s string) string
	// Link wraps text in a terminal hyperlink to url.
	Link func(url string, text string) string
}

func identity(s string) string { return s }

func PlainStyles() Styles {
	return Styles{
		Header:    identity,
		Secondary: identity,
		Bold:      identity,
		Success:   identity,
		Failure:   identity,
		Warn:      identity,
		Branch:    func(_ int, s string) string { return s },
		Link:      func(_ string, text string) string { return text },
	}
}

var (
	headerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	secondaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	boldStyle      = lipgloss.NewStyle().Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failureStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)

	// green, cyan, blue, magenta, yellow, red
	branchPalette = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

// ColorStyles renders with lipgloss; links are emitted only when links is
// true because not every terminal understands OSC 8.
func ColorStyles(links bool) Styles {
	link := func(_ string, text string) string { return text }
	if links {
		link = func(url string, text string) string {
			if url == "" {
				return text
			}
			return termenv.Hyperlink(url, text)
		}
	}
	return Styles{
		Header:    func(s string) string { return headerStyle.Render(s) },
		Secondary: func(s string) string { return secondaryStyle.Render(s) },
		Bold:      func(s string) string { return boldStyle.Render(s) },
		Success:   func(s string) string { return successStyle.Render(s) },
		Failure:   func(s string) string { return failureStyle.Render(s) },
		Warn:      func(s string) string { return warnStyle.Render(s) },
		Branch: func(i int, s string) string {
			if i < 0 {
				return s
			}
			return branchPalette[i%len(branchPalette)].Render(s)
		},
		Link: link,
	}
}

// BranchColors hands out palette slots in first-seen order.
type BranchColors map[string]int

// AssignBranchColors walks entries in order, giving each unseen base and
// then head the next slot.
func AssignBranchColors(entries []StackEntry) BranchColors {
	colors := make(BranchColors, len(entries)*2)
	next := 0
	for _, e := range entries {
		for _, name := range []string{e.Base, e.Head} {
			if _, ok := colors[name]; !ok {
				colors[name] = next
				next++
			}
		}
	}
	return colors
}

// Slot returns the palette slot for name, or -1 when it has none.
func (c BranchColors) Slot(name string) int {
	if i, ok := c[name]; ok {
		return i
	}
	return -1
}

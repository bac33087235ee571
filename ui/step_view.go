package ui

import (
	"fmt"
	"strings"
)

// StepLine describes one rebase as it is announced.
type StepLine struct {
	Entry    StackEntry
	Upstream string
	Remote   string
	Push     bool
}

// FormatStep renders "#2 feat-b → origin/feat-a", dimming the remote prefix
// so a local upstream stands out.
func FormatStep(line StepLine, colors BranchColors, styles Styles) string {
	number := styles.Bold(fmt.Sprintf("#%d", line.Entry.Number))
	head := styles.Branch(colors.Slot(line.Entry.Head), line.Entry.Head)
	return number + " " + head + " → " + formatUpstream(line.Upstream, line.Remote, colors, styles)
}

// FormatPlannedStep is FormatStep for a dry run, noting the push that would
// follow.
func FormatPlannedStep(line StepLine, colors BranchColors, styles Styles) string {
	out := FormatStep(line, colors, styles)
	if line.Push {
		out += styles.Secondary(" + push")
	}
	return out
}

func formatUpstream(upstream string, remote string, colors BranchColors, styles Styles) string {
	if remote != "" {
		prefix := remote + "/"
		if base, ok := strings.CutPrefix(upstream, prefix); ok {
			return styles.Secondary(prefix) + styles.Branch(colors.Slot(base), base)
		}
	}
	return styles.Branch(colors.Slot(upstream), upstream)
}

// StatusLine prefixes msg with a result mark: ✔ ok, ✘ failed, ↷ skipped.
func StatusLine(mark Mark, msg string, styles Styles) string {
	switch mark {
	case MarkOK:
		return styles.Success("✔") + " " + msg
	case MarkFailed:
		return styles.Failure("✘") + " " + msg
	default:
		return styles.Warn("↷") + " " + msg
	}
}

type Mark int

const (
	MarkOK Mark = iota
	MarkFailed
	MarkSkipped
)

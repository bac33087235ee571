package ui

import (
	"fmt"
	"sort"
	"strings"
)

// StackEntry is one pull request as the tree and step lines see it.
type StackEntry struct {
	Number int
	Head   string
	Base   string
	URL    string
}

// RenderStackTree draws every stack hanging off an untracked base:
//
//	main
//	├─ #1 feat-a
//	│  └─ #3 feat-c
//	└─ #2 feat-b
//
// Roots are sorted by name; siblings keep entry order.
func RenderStackTree(entries []StackEntry, styles Styles) string {
	colors := AssignBranchColors(entries)
	heads := make(map[string]struct{}, len(entries))
	children := make(map[string][]StackEntry, len(entries))
	for _, e := range entries {
		heads[e.Head] = struct{}{}
		children[e.Base] = append(children[e.Base], e)
	}

	var roots []string
	seen := make(map[string]struct{})
	for _, e := range entries {
		if _, tracked := heads[e.Base]; tracked {
			continue
		}
		if _, dup := seen[e.Base]; dup {
			continue
		}
		seen[e.Base] = struct{}{}
		roots = append(roots, e.Base)
	}
	sort.Strings(roots)

	var b strings.Builder
	for _, root := range roots {
		b.WriteString(styles.Bold(styles.Branch(colors.Slot(root), root)))
		b.WriteString("\n")
		writeChildren(&b, children, children[root], "", colors, styles, map[string]bool{root: true})
	}
	return b.String()
}

// onPath stops a malformed (cyclic) input from recursing forever.
func writeChildren(b *strings.Builder, children map[string][]StackEntry, nodes []StackEntry, prefix string, colors BranchColors, styles Styles, onPath map[string]bool) {
	for i, e := range nodes {
		last := i == len(nodes)-1
		connector, childPrefix := "├─", "│  "
		if last {
			connector, childPrefix = "└─", "   "
		}
		number := styles.Link(e.URL, styles.Bold(fmt.Sprintf("#%d", e.Number)))
		b.WriteString(styles.Secondary(prefix+connector) + " " + number + " " + styles.Branch(colors.Slot(e.Head), e.Head))
		b.WriteString("\n")
		if onPath[e.Head] {
			continue
		}
		onPath[e.Head] = true
		writeChildren(b, children, children[e.Head], prefix+childPrefix, colors, styles, onPath)
		delete(onPath, e.Head)
	}
}

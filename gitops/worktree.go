package gitops

import (
	"context"
	"os/exec"
	"strings"
)

// Worktree is one entry of `git worktree list --porcelain`.
type Worktree struct {
	Path     string
	Branch   string
	Head     string
	Detached bool
	Bare     bool
}

// ListWorktrees returns every worktree of the repository at repoRoot.
func ListWorktrees(ctx context.Context, repoRoot string) ([]Worktree, error) {
	gitPath, err := RequireGit()
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, gitPath, "worktree", "list", "--porcelain")
	cmd.Dir = repoRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, commandErrorWithOutput(err, output)
	}
	return parseWorktrees(string(output)), nil
}

// BranchWorktrees maps each checked-out branch to its worktree path.
// Detached and bare entries are left out.
func BranchWorktrees(worktrees []Worktree) map[string]string {
	out := make(map[string]string, len(worktrees))
	for _, wt := range worktrees {
		if wt.Branch == "" || wt.Detached || wt.Bare {
			continue
		}
		if _, ok := out[wt.Branch]; !ok {
			out[wt.Branch] = wt.Path
		}
	}
	return out
}

func parseWorktrees(output string) []Worktree {
	var worktrees []Worktree
	var current *Worktree

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			current = nil
			continue
		}
		key, value, _ := strings.Cut(line, " ")
		if key == "worktree" {
			worktrees = append(worktrees, Worktree{Path: strings.TrimSpace(value)})
			current = &worktrees[len(worktrees)-1]
			continue
		}
		if current == nil {
			continue
		}
		switch key {
		case "HEAD":
			current.Head = strings.TrimSpace(value)
		case "branch":
			current.Branch = strings.TrimPrefix(strings.TrimSpace(value), "refs/heads/")
		case "detached":
			current.Detached = true
		case "bare":
			current.Bare = true
		}
	}
	return worktrees
}

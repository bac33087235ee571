package gitops

import (
	"errors"
	"strings"
	"testing"
)

const porcelainFixture = `worktree /home/dev/code/app
HEAD 1f0c3a9d2b7e4c5f6a7b8c9d0e1f2a3b4c5d6e7f
branch refs/heads/main

worktree /home/dev/code/app__worktrees/feat-a
HEAD 2a1b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b
branch refs/heads/feat-a

worktree /home/dev/code/app__worktrees/with space
HEAD 3b2c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c
branch refs/heads/feature/feat-b

worktree /home/dev/code/app__worktrees/scratch
HEAD 4c3d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d
detached
`

func TestParseWorktrees(t *testing.T) {
	got := parseWorktrees(porcelainFixture)
	if len(got) != 4 {
		t.Fatalf("expected 4 worktrees, got %d: %+v", len(got), got)
	}
	if got[1].Path != "/home/dev/code/app__worktrees/feat-a" || got[1].Branch != "feat-a" {
		t.Fatalf("unexpected feat-a entry: %+v", got[1])
	}
	if got[2].Path != "/home/dev/code/app__worktrees/with space" {
		t.Fatalf("expected path with space, got %q", got[2].Path)
	}
	if got[2].Branch != "feature/feat-b" {
		t.Fatalf("expected nested branch name, got %q", got[2].Branch)
	}
	if !got[3].Detached || got[3].Branch != "" {
		t.Fatalf("expected detached entry without branch, got %+v", got[3])
	}
	if !strings.HasPrefix(got[0].Head, "1f0c3a9") {
		t.Fatalf("expected HEAD to be parsed, got %q", got[0].Head)
	}
}

func TestParseWorktrees_IgnoresLinesBeforeFirstEntry(t *testing.T) {
	got := parseWorktrees("branch refs/heads/ghost\n\nworktree /repo\nbare\n")
	if len(got) != 1 {
		t.Fatalf("expected 1 worktree, got %+v", got)
	}
	if !got[0].Bare || got[0].Branch != "" {
		t.Fatalf("expected bare entry without branch, got %+v", got[0])
	}
}

func TestBranchWorktrees(t *testing.T) {
	got := BranchWorktrees(parseWorktrees(porcelainFixture))
	if len(got) != 3 {
		t.Fatalf("expected 3 branches, got %v", got)
	}
	if got["feature/feat-b"] != "/home/dev/code/app__worktrees/with space" {
		t.Fatalf("unexpected path for feature/feat-b: %q", got["feature/feat-b"])
	}
	if _, ok := got[""]; ok {
		t.Fatalf("detached worktree must not be mapped")
	}
}

func TestCommandErrorWithOutput_PrefersCommandOutput(t *testing.T) {
	fallback := errors.New("exit status 1")
	err := commandErrorWithOutput(fallback, []byte("error: cannot rebase: You have unstaged changes.\n"))
	if !strings.Contains(err.Error(), "unstaged changes") {
		t.Fatalf("expected git output, got %q", err.Error())
	}
}

func TestCommandErrorWithOutput_FallsBackToOriginalError(t *testing.T) {
	fallback := errors.New("exit status 128")
	err := commandErrorWithOutput(fallback, []byte("   \n\t"))
	if err.Error() != fallback.Error() {
		t.Fatalf("expected fallback error %q, got %q", fallback.Error(), err.Error())
	}
}

func TestIsConflictOutput(t *testing.T) {
	if !isConflictOutput("Auto-merging a.txt\nCONFLICT (content): Merge conflict in a.txt\n") {
		t.Fatalf("expected CONFLICT output to be detected")
	}
	if isConflictOutput("fatal: invalid upstream 'origin/nope'") {
		t.Fatalf("expected invalid upstream not to be a conflict")
	}
}

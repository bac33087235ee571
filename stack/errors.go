package stack

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoPullRequests is returned when discovery finds nothing to restack.
	ErrNoPullRequests = errors.New("no open PRs found for checked-out worktree branches")
	// ErrCancelled marks steps that never started because the run was cancelled.
	ErrCancelled = errors.New("run cancelled before this branch was processed")
)

// DiscoveryError wraps a failed hosting-service or worktree inventory call.
type DiscoveryError struct {
	Source string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery failed (%s): %v", e.Source, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// UnknownPRError is returned when a selection names a PR that is not in the
// record set.
type UnknownPRError struct {
	ID int
}

func (e *UnknownPRError) Error() string {
	return fmt.Sprintf("PR #%d is not a tracked pull request", e.ID)
}

// CycleError reports a dependency loop. Branches lists every branch of the
// loop once, each one the base of the next and the last the base of the first.
type CycleError struct {
	Branches     []string
	PullRequests []PullRequestRef
}

func (e *CycleError) Error() string {
	if len(e.Branches) == 0 {
		return "circular dependency detected"
	}
	loop := append(append([]string{}, e.Branches...), e.Branches[0])
	lines := make([]string, 0, len(e.PullRequests))
	for _, pr := range e.PullRequests {
		lines = append(lines, fmt.Sprintf("PR #%d (%s → %s)", pr.ID, pr.HeadBranch, pr.BaseBranch))
	}
	return fmt.Sprintf("circular dependency detected: %s\n  %s", strings.Join(loop, " → "), strings.Join(lines, "\n  "))
}

// Violation is one failed preflight precondition.
type Violation struct {
	PR     PullRequestRef
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("PR #%d (%s): %s", v.PR.ID, v.PR.HeadBranch, v.Reason)
}

// PreflightError lists every violation found before any git operation ran.
type PreflightError struct {
	Violations []Violation
}

func (e *PreflightError) Error() string {
	lines := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		lines = append(lines, v.String())
	}
	return fmt.Sprintf("preflight failed for %d PR(s):\n  %s", len(e.Violations), strings.Join(lines, "\n  "))
}

// FetchError is fatal: no rebase runs without a consistent fetch.
type FetchError struct {
	Remote string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed: %v", e.Remote, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RebaseError is a per-branch rebase failure, conflicts included.
type RebaseError struct {
	Branch   string
	Upstream string
	Worktree string
	Conflict bool
	Aborted  bool
	Err      error
}

func (e *RebaseError) Error() string {
	msg := fmt.Sprintf("rebase %s onto %s failed: %v", e.Branch, e.Upstream, e.Err)
	switch {
	case e.Conflict && e.Aborted:
		msg += "\nrebase aborted; " + e.Worktree + " is back on its previous commit"
	case e.Conflict:
		msg += fmt.Sprintf("\nresolve conflicts in %s then run: git rebase --continue && git push --force-with-lease", e.Worktree)
	}
	return msg
}

func (e *RebaseError) Unwrap() error { return e.Err }

// PushError is a per-branch push failure, lease rejections included.
type PushError struct {
	Branch string
	Remote string
	Err    error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("push %s to %s failed: %v", e.Branch, e.Remote, e.Err)
}

func (e *PushError) Unwrap() error { return e.Err }

// SkippedError explains why a branch was not touched.
type SkippedError struct {
	Base        string
	BaseOutcome Outcome
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped: base %s ended %s", e.Base, e.BaseOutcome)
}

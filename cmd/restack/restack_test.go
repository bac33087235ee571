package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrbonezy/restack/gh"
	"github.com/mrbonezy/restack/gitops"
	"github.com/mrbonezy/restack/stack"
)

type fakeBackend struct {
	root      string
	fetchErr  error
	rebaseErr map[string]error
	localRefs map[string]bool

	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) RepoRoot() string { return f.root }

func (f *fakeBackend) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *fakeBackend) Fetch(_ context.Context, remote string) error {
	f.record("fetch %s", remote)
	return f.fetchErr
}

func (f *fakeBackend) Rebase(_ context.Context, dir string, upstream string, _ bool) error {
	f.record("rebase %s %s", dir, upstream)
	return f.rebaseErr[dir]
}

func (f *fakeBackend) AbortRebase(_ context.Context, dir string) error {
	f.record("abort %s", dir)
	return nil
}

func (f *fakeBackend) PushWithLease(_ context.Context, dir string, remote string, branch string) error {
	f.record("push %s %s %s", dir, remote, branch)
	return nil
}

func (f *fakeBackend) LocalRefExists(_ context.Context, branch string) bool {
	return f.localRefs[branch]
}

func (f *fakeBackend) mutatingCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if !strings.HasPrefix(c, "fetch ") {
			out = append(out, c)
		}
	}
	return out
}

type fakeLock struct{ released bool }

func (l *fakeLock) OwnerID() string { return "run-1" }

func (l *fakeLock) Release() { l.released = true }

// stubRestack wires runRestack to fakes for a linear stack main <- feat-a <- feat-b.
func stubRestack(t *testing.T, backend *fakeBackend) *fakeLock {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RESTACK_TEST_MODE", "1")
	t.Setenv("RESTACK_DEBUG", "")

	lock := &fakeLock{}
	oldGit, oldLock, oldSource, oldCheck := newGitFn, acquireLockFn, newPRSourceFn, checkWorktreeFn
	newGitFn = func(string, ...gitops.Option) (gitBackend, error) { return backend, nil }
	acquireLockFn = func(string) (runLock, error) { return lock, nil }
	newPRSourceFn = func(string, int, time.Duration) prSource {
		a, b := openPR(1, "feat-a", "main"), openPR(2, "feat-b", "feat-a")
		return &fakePRSource{
			open: []gh.PullRequest{a, b},
			byID: map[int]gh.PullRequest{1: a, 2: b},
		}
	}
	checkWorktreeFn = func(string) (bool, error) { return true, nil }
	t.Cleanup(func() {
		newGitFn, acquireLockFn, newPRSourceFn, checkWorktreeFn = oldGit, oldLock, oldSource, oldCheck
	})
	stubWorktrees(t, []gitops.Worktree{
		{Path: "/repo", Branch: "main"},
		{Path: "/wt/feat-a", Branch: "feat-a"},
		{Path: "/wt/feat-b", Branch: "feat-b"},
	}, nil)
	return lock
}

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(append([]string{"restack"}, args...))
	cmd.SetOut(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestRestack_DryRunTouchesNothing(t *testing.T) {
	backend := &fakeBackend{root: "/repo", localRefs: map[string]bool{"feat-a": true}}
	lock := stubRestack(t, backend)

	out, err := executeRoot(t, "--dry-run")
	if err != nil {
		t.Fatalf("dry run: %v\n%s", err, out)
	}
	if calls := backend.mutatingCalls(); len(calls) != 0 {
		t.Fatalf("expected no mutating calls, got %v", calls)
	}
	for _, want := range []string{
		"main\n└─ #1 feat-a\n   └─ #2 feat-b\n",
		"✔ Fetching origin",
		"#1 feat-a → origin/main + push",
		"#2 feat-b → feat-a + push",
		"(dry run — no changes made)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	if !lock.released {
		t.Fatalf("expected lock released")
	}
}

func TestRestack_RebasesAndPushesInOrder(t *testing.T) {
	backend := &fakeBackend{root: "/repo", localRefs: map[string]bool{"feat-a": true}}
	stubRestack(t, backend)

	out, err := executeRoot(t)
	if err != nil {
		t.Fatalf("restack: %v\n%s", err, out)
	}
	want := []string{
		"rebase /wt/feat-a origin/main",
		"push /wt/feat-a origin feat-a",
		"rebase /wt/feat-b feat-a",
		"push /wt/feat-b origin feat-b",
	}
	if got := backend.mutatingCalls(); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("expected calls\n%s\ngot\n%s", strings.Join(want, "\n"), strings.Join(got, "\n"))
	}
	if !strings.Contains(out, "All PRs restacked successfully.") {
		t.Fatalf("expected success line, got:\n%s", out)
	}
}

func TestRestack_PartialFailureReportsSummary(t *testing.T) {
	backend := &fakeBackend{
		root:      "/repo",
		localRefs: map[string]bool{"feat-a": true},
		rebaseErr: map[string]error{"/wt/feat-a": fmt.Errorf("%w: CONFLICT (content)", stack.ErrRebaseConflict)},
	}
	stubRestack(t, backend)

	out, err := executeRoot(t, "--no-push")
	if !errors.Is(err, errPartialFailure) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if exitCode(err) != exitPartialFailure {
		t.Fatalf("expected exit code %d", exitPartialFailure)
	}
	if got := backend.mutatingCalls(); len(got) != 1 || got[0] != "rebase /wt/feat-a origin/main" {
		t.Fatalf("expected only the first rebase, got %v", got)
	}
	for _, want := range []string{
		"✘ #1 feat-a → origin/main",
		"↷ #2 feat-b",
		"rebase failed",
		"skipped",
		"resolve conflicts in /wt/feat-a",
		"0 of 2 PRs restacked.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRestack_FetchFailureIsFatal(t *testing.T) {
	backend := &fakeBackend{root: "/repo", fetchErr: errors.New("could not read from remote")}
	stubRestack(t, backend)

	out, err := executeRoot(t)
	var ferr *stack.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if exitCode(err) != exitFatal {
		t.Fatalf("expected fatal exit code")
	}
	if len(backend.mutatingCalls()) != 0 {
		t.Fatalf("expected nothing mutated, got %v", backend.mutatingCalls())
	}
	if !strings.Contains(out, "✘ Fetching origin") {
		t.Fatalf("expected failed fetch line, got:\n%s", out)
	}
}

func TestRestack_PreflightFailureMutatesNothing(t *testing.T) {
	backend := &fakeBackend{root: "/repo"}
	stubRestack(t, backend)
	checkWorktreeFn = func(path string) (bool, error) { return path != "/wt/feat-b", nil }

	_, err := executeRoot(t)
	var perr *stack.PreflightError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PreflightError, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend calls, got %v", backend.calls)
	}
}

func TestRestack_InvalidConflictFlagIsUsageError(t *testing.T) {
	stubRestack(t, &fakeBackend{root: "/repo"})

	_, err := executeRoot(t, "--conflict", "theirs")
	if err == nil || !strings.Contains(err.Error(), "Usage:") {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestRestack_LockHeldStopsRun(t *testing.T) {
	backend := &fakeBackend{root: "/repo"}
	stubRestack(t, backend)
	acquireLockFn = func(string) (runLock, error) {
		return nil, &gitops.LockedError{Path: "/repo/.git/restack.lock", PID: 4242}
	}

	_, err := executeRoot(t)
	var lerr *gitops.LockedError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected LockedError, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend calls, got %v", backend.calls)
	}
}

func TestRestack_PushDeclinedChangesNothing(t *testing.T) {
	backend := &fakeBackend{root: "/repo"}
	stubRestack(t, backend)
	t.Setenv("RESTACK_TEST_MODE", "")
	on := true
	if err := SaveConfig(Config{ConfirmPush: &on}); err != nil {
		t.Fatalf("save config: %v", err)
	}
	old := confirmPushFn
	var asked int
	confirmPushFn = func(count int, remote string) (bool, error) {
		asked = count
		return false, nil
	}
	t.Cleanup(func() { confirmPushFn = old })

	_, err := executeRoot(t)
	if !errors.Is(err, errPushNotConfirmed) {
		t.Fatalf("expected errPushNotConfirmed, got %v", err)
	}
	if asked != 2 {
		t.Fatalf("expected confirmation for 2 PRs, got %d", asked)
	}
	if len(backend.calls) != 0 {
		t.Fatalf("expected no backend calls, got %v", backend.calls)
	}
}

func TestRestack_ExplicitIDsRestrictPlan(t *testing.T) {
	backend := &fakeBackend{root: "/repo", localRefs: map[string]bool{"feat-a": true}}
	stubRestack(t, backend)

	out, err := executeRoot(t, "2", "--no-push")
	if err != nil {
		t.Fatalf("restack 2: %v\n%s", err, out)
	}
	if got := backend.mutatingCalls(); len(got) != 1 || got[0] != "rebase /wt/feat-b origin/feat-a" {
		t.Fatalf("expected only feat-b rebased onto origin/feat-a, got %v", got)
	}
	if !strings.Contains(out, "feat-a\n└─ #2 feat-b\n") {
		t.Fatalf("expected tree rooted at feat-a, got:\n%s", out)
	}
	if strings.Contains(out, "#1 feat-a") {
		t.Fatalf("expected #1 to stay out of the run, got:\n%s", out)
	}
}

func TestRestack_ExplicitIDsBeforeFlags(t *testing.T) {
	backend := &fakeBackend{root: "/repo", localRefs: map[string]bool{"feat-a": true}}
	stubRestack(t, backend)

	out, err := executeRoot(t, "1", "2", "--dry-run")
	if err != nil {
		t.Fatalf("restack 1 2 --dry-run: %v\n%s", err, out)
	}
	if !strings.Contains(out, "#2 feat-b → feat-a + push") {
		t.Fatalf("expected both PRs planned, got:\n%s", out)
	}
	if calls := backend.mutatingCalls(); len(calls) != 0 {
		t.Fatalf("expected no mutating calls, got %v", calls)
	}
}

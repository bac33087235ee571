package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mrbonezy/restack/gh"
	"github.com/mrbonezy/restack/gitops"
	"github.com/mrbonezy/restack/stack"
)

type fakePRSource struct {
	open    []gh.PullRequest
	listErr error
	byID    map[int]gh.PullRequest
}

func (f *fakePRSource) ListOpenPullRequests(context.Context) ([]gh.PullRequest, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.open, nil
}

func (f *fakePRSource) ViewPullRequest(_ context.Context, number int) (gh.PullRequest, error) {
	pr, ok := f.byID[number]
	if !ok {
		return gh.PullRequest{}, fmt.Errorf("no pull requests found for #%d", number)
	}
	if !pr.IsOpen() {
		return gh.PullRequest{}, fmt.Errorf("PR #%d is %s, not open", number, pr.State)
	}
	return pr, nil
}

func openPR(number int, head string, base string) gh.PullRequest {
	return gh.PullRequest{
		Number:      number,
		HeadRefName: head,
		BaseRefName: base,
		State:       "OPEN",
		URL:         fmt.Sprintf("https://github.com/acme/app/pull/%d", number),
	}
}

func stubWorktrees(t *testing.T, wts []gitops.Worktree, err error) {
	t.Helper()
	old := listWorktreesFn
	listWorktreesFn = func(context.Context, string) ([]gitops.Worktree, error) {
		return wts, err
	}
	t.Cleanup(func() { listWorktreesFn = old })
}

func recordIDs(set *stack.RecordSet) []int {
	var ids []int
	for _, r := range set.Records() {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestDiscover_FollowsWorktreeOrder(t *testing.T) {
	stubWorktrees(t, []gitops.Worktree{
		{Path: "/repo", Branch: "main"},
		{Path: "/wt/feat-b", Branch: "feat-b"},
		{Path: "/wt/detached", Detached: true},
		{Path: "/wt/feat-a", Branch: "feat-a"},
		{Path: "/wt/unrelated", Branch: "spike"},
	}, nil)
	source := &fakePRSource{open: []gh.PullRequest{
		openPR(1, "feat-a", "main"),
		openPR(2, "feat-b", "feat-a"),
		openPR(9, "not-checked-out", "main"),
	}}

	set, err := discover(context.Background(), "/repo", source, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got := fmt.Sprint(recordIDs(set)); got != "[2 1]" {
		t.Fatalf("expected worktree order [2 1], got %s", got)
	}
	pr, ok := set.Lookup(1)
	if !ok || pr.WorktreePath != "/wt/feat-a" || pr.URL != "https://github.com/acme/app/pull/1" {
		t.Fatalf("unexpected record %+v", pr)
	}
}

func TestDiscover_SameBranchInTwoWorktreesCountsOnce(t *testing.T) {
	stubWorktrees(t, []gitops.Worktree{
		{Path: "/wt/one", Branch: "feat-a"},
		{Path: "/wt/two", Branch: "feat-a"},
	}, nil)
	source := &fakePRSource{open: []gh.PullRequest{openPR(1, "feat-a", "main")}}

	set, err := discover(context.Background(), "/repo", source, nil)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected one record, got %d", set.Len())
	}
	if pr, _ := set.Lookup(1); pr.WorktreePath != "/wt/one" {
		t.Fatalf("expected first worktree, got %q", pr.WorktreePath)
	}
}

func TestDiscover_NoMatchingPRs(t *testing.T) {
	stubWorktrees(t, []gitops.Worktree{{Path: "/repo", Branch: "main"}}, nil)
	source := &fakePRSource{open: []gh.PullRequest{openPR(1, "feat-a", "main")}}

	_, err := discover(context.Background(), "/repo", source, nil)
	if !errors.Is(err, stack.ErrNoPullRequests) {
		t.Fatalf("expected ErrNoPullRequests, got %v", err)
	}
}

func TestDiscover_WrapsSourceFailures(t *testing.T) {
	stubWorktrees(t, nil, nil)
	source := &fakePRSource{listErr: errors.New("gh auth login required")}

	_, err := discover(context.Background(), "/repo", source, nil)
	var derr *stack.DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DiscoveryError, got %T %v", err, err)
	}
	if derr.Source != "gh pr list" || !strings.Contains(err.Error(), "gh auth login required") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDiscover_WrapsWorktreeFailures(t *testing.T) {
	stubWorktrees(t, nil, errors.New("not a git repository"))
	source := &fakePRSource{}

	_, err := discover(context.Background(), "/repo", source, nil)
	var derr *stack.DiscoveryError
	if !errors.As(err, &derr) || derr.Source != "git worktree list" {
		t.Fatalf("expected worktree DiscoveryError, got %v", err)
	}
}

func TestDiscover_ExplicitIDsKeepArgumentOrder(t *testing.T) {
	stubWorktrees(t, []gitops.Worktree{
		{Path: "/wt/feat-a", Branch: "feat-a"},
	}, nil)
	source := &fakePRSource{byID: map[int]gh.PullRequest{
		1: openPR(1, "feat-a", "main"),
		2: openPR(2, "feat-b", "feat-a"),
	}}

	set, err := discover(context.Background(), "/repo", source, []int{2, 1})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if got := fmt.Sprint(recordIDs(set)); got != "[2 1]" {
		t.Fatalf("expected argument order, got %s", got)
	}
	if pr, _ := set.Lookup(2); pr.WorktreePath != "" {
		t.Fatalf("expected no worktree for feat-b, got %q", pr.WorktreePath)
	}
}

func TestDiscover_ExplicitClosedPRFails(t *testing.T) {
	stubWorktrees(t, nil, nil)
	closed := openPR(4, "old", "main")
	closed.State = "MERGED"
	source := &fakePRSource{byID: map[int]gh.PullRequest{4: closed}}

	_, err := discover(context.Background(), "/repo", source, []int{4})
	if err == nil || !strings.Contains(err.Error(), "PR #4 is MERGED, not open") {
		t.Fatalf("expected not-open error, got %v", err)
	}
}

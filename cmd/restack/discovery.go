package main

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mrbonezy/restack/gh"
	"github.com/mrbonezy/restack/gitops"
	"github.com/mrbonezy/restack/stack"
)

type prSource interface {
	ListOpenPullRequests(ctx context.Context) ([]gh.PullRequest, error)
	ViewPullRequest(ctx context.Context, number int) (gh.PullRequest, error)
}

var listWorktreesFn = gitops.ListWorktrees

// discover builds the record set. Without ids it takes every open PR whose
// head branch is checked out in a worktree, in worktree order; with ids it
// loads exactly those PRs, each of which must be open. The PR lookups and the
// worktree listing run concurrently.
func discover(ctx context.Context, repoRoot string, source prSource, ids []int) (*stack.RecordSet, error) {
	var (
		worktrees []gitops.Worktree
		open      []gh.PullRequest
		explicit  = make([]gh.PullRequest, len(ids))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wts, err := listWorktreesFn(gctx, repoRoot)
		if err != nil {
			return &stack.DiscoveryError{Source: "git worktree list", Err: err}
		}
		worktrees = wts
		return nil
	})
	if len(ids) == 0 {
		g.Go(func() error {
			prs, err := source.ListOpenPullRequests(gctx)
			if err != nil {
				return &stack.DiscoveryError{Source: "gh pr list", Err: err}
			}
			open = prs
			return nil
		})
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			pr, err := source.ViewPullRequest(gctx, id)
			if err != nil {
				return &stack.DiscoveryError{Source: "gh pr view", Err: err}
			}
			explicit[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	paths := gitops.BranchWorktrees(worktrees)
	var refs []stack.PullRequestRef
	if len(ids) > 0 {
		for _, pr := range explicit {
			refs = append(refs, toRef(pr, paths))
		}
		return stack.NewRecordSet(refs...)
	}

	byHead := make(map[string]gh.PullRequest, len(open))
	for _, pr := range open {
		byHead[strings.TrimSpace(pr.HeadRefName)] = pr
	}
	seen := make(map[int]struct{}, len(open))
	for _, wt := range worktrees {
		if wt.Detached || wt.Bare || wt.Branch == "" {
			continue
		}
		pr, ok := byHead[wt.Branch]
		if !ok {
			continue
		}
		if _, dup := seen[pr.Number]; dup {
			continue
		}
		seen[pr.Number] = struct{}{}
		refs = append(refs, toRef(pr, paths))
	}
	if len(refs) == 0 {
		return nil, stack.ErrNoPullRequests
	}
	return stack.NewRecordSet(refs...)
}

func toRef(pr gh.PullRequest, paths map[string]string) stack.PullRequestRef {
	head := strings.TrimSpace(pr.HeadRefName)
	return stack.PullRequestRef{
		ID:           pr.Number,
		HeadBranch:   head,
		BaseBranch:   strings.TrimSpace(pr.BaseRefName),
		WorktreePath: paths[head],
		URL:          strings.TrimSpace(pr.URL),
	}
}

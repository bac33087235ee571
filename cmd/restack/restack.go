package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrbonezy/restack/gh"
	"github.com/mrbonezy/restack/gitops"
	"github.com/mrbonezy/restack/stack"
	"github.com/mrbonezy/restack/ui"
)

type gitBackend interface {
	stack.Operations
	RepoRoot() string
}

type runLock interface {
	OwnerID() string
	Release()
}

var newGitFn = func(dir string, opts ...gitops.Option) (gitBackend, error) {
	g, err := gitops.New(dir, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

var acquireLockFn = func(repoRoot string) (runLock, error) {
	lock, err := gitops.NewLockManager().Acquire(repoRoot)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

var newPRSourceFn = func(dir string, limit int, timeout time.Duration) prSource {
	return gh.NewClient(dir, limit, timeout)
}

var checkWorktreeFn stack.WorktreeChecker = stack.DirExists

var errPushNotConfirmed = errors.New("push not confirmed; nothing was changed")

func runRestack(cmd *cobra.Command, ids []int, flags restackFlags) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	settings, err := resolveSettings(cfg, flags)
	if err != nil {
		return usageError(cmd, err.Error())
	}
	logger, closeLog := newDebugLogger(settings.Debug)
	defer closeLog()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newGitFn("", gitops.WithNetworkTimeout(settings.NetworkTimeout), gitops.WithLogger(logger))
	if err != nil {
		return err
	}
	lock, err := acquireLockFn(backend.RepoRoot())
	if err != nil {
		return err
	}
	defer lock.Release()

	plan, err := loadPlan(ctx, backend.RepoRoot(), settings, ids)
	if err != nil {
		return err
	}
	logger.Debug("plan ready", "steps", plan.Len(), "branches", plan.Branches())

	out := cmd.OutOrStdout()
	styles := outputStyles(out)
	entries := stackEntries(plan.Steps)
	colors := ui.AssignBranchColors(entries)
	fmt.Fprint(out, ui.RenderStackTree(entries, styles))
	fmt.Fprintln(out)

	if err := stack.Preflight(plan, checkWorktreeFn); err != nil {
		return err
	}
	if settings.Push && !settings.DryRun && settings.Confirm && !testModeEnabled() {
		ok, err := confirmPushFn(plan.Len(), settings.Remote)
		if err != nil {
			return err
		}
		if !ok {
			return errPushNotConfirmed
		}
	}

	var ops stack.Operations = backend
	if settings.DryRun {
		ops = stack.NewDryRunOperations(backend)
	}
	orch := stack.NewOrchestrator(
		reportingOperations{Operations: ops, out: out, styles: styles},
		stack.WithRemote(settings.Remote),
		stack.WithPush(settings.Push),
		stack.WithAutostash(settings.Autostash),
		stack.WithDryRun(settings.DryRun),
		stack.WithConflictPolicy(settings.Policy),
		stack.WithRunID(lock.OwnerID()),
		stack.WithLogger(logger),
		stack.WithObserver(newProgressObserver(out, colors, styles, settings)),
	)
	summary, err := orch.Run(ctx, plan)
	if err != nil {
		return err
	}
	return reportSummary(out, summary, styles)
}

func runTree(cmd *cobra.Command, ids []int) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if _, err := gitops.RequireGit(); err != nil {
		return err
	}
	repoRoot, err := gitops.RepoRoot("")
	if err != nil {
		return err
	}
	settings, err := resolveSettings(cfg, restackFlags{})
	if err != nil {
		return err
	}
	plan, err := loadPlan(commandContext(cmd), repoRoot, settings, ids)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	_, err = fmt.Fprint(out, ui.RenderStackTree(stackEntries(plan.Steps), outputStyles(out)))
	return err
}

func loadPlan(ctx context.Context, repoRoot string, settings runSettings, ids []int) (stack.ExecutionPlan, error) {
	message := "Fetching open PRs"
	if len(ids) > 0 {
		message = "Resolving PRs"
	}
	stop := startDelayedSpinner(message, 0)
	set, err := discover(ctx, repoRoot, newPRSourceFn(repoRoot, settings.PRLimit, settings.NetworkTimeout), ids)
	stop()
	if err != nil {
		return stack.ExecutionPlan{}, err
	}
	return stack.BuildGraph(set).Plan(nil)
}

func reportSummary(out io.Writer, summary *stack.Summary, styles ui.Styles) error {
	fmt.Fprintln(out)
	failed := summary.Failed()
	if len(failed) == 0 {
		if summary.DryRun {
			fmt.Fprintln(out, styles.Secondary("(dry run — no changes made)"))
		} else {
			fmt.Fprintln(out, styles.Success("All PRs restacked successfully."))
		}
		return nil
	}

	fmt.Fprint(out, ui.RenderSummary(summaryRows(summary), styles))
	fmt.Fprintln(out)
	for _, r := range failed {
		if r.Err == nil || r.Outcome == stack.OutcomeSkipped {
			continue
		}
		fmt.Fprintf(out, "%s %v\n", styles.Failure(fmt.Sprintf("#%d %s:", r.PR.ID, r.PR.HeadBranch)), r.Err)
	}
	fmt.Fprintf(out, "%d of %d PRs restacked.\n", len(summary.Results)-len(failed), len(summary.Results))
	return errPartialFailure
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

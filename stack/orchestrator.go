package stack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrRebaseConflict is wrapped by Operations implementations when a rebase
// stopped on conflicts and is still in progress in the worktree.
var ErrRebaseConflict = errors.New("rebase stopped on conflicts")

// DefaultRemote is fetched from and pushed to unless WithRemote says otherwise.
const DefaultRemote = "origin"

// ConflictPolicy decides what happens to a worktree left mid-rebase.
type ConflictPolicy string

const (
	// ConflictLeave keeps the conflicted rebase for manual resolution.
	ConflictLeave ConflictPolicy = "leave"
	// ConflictAbort runs `git rebase --abort` so the worktree returns to its
	// pre-rebase state.
	ConflictAbort ConflictPolicy = "abort"
)

// ParseConflictPolicy accepts "leave" or "abort"; empty means leave.
func ParseConflictPolicy(raw string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ConflictLeave):
		return ConflictLeave, nil
	case string(ConflictAbort):
		return ConflictAbort, nil
	default:
		return "", fmt.Errorf("invalid conflict policy %q (want leave or abort)", raw)
	}
}

// Observer is told about each step as it runs, for progress output.
type Observer interface {
	StepStarted(pr PullRequestRef, upstream string)
	StepFinished(result BranchResult)
}

type nopObserver struct{}

func (nopObserver) StepStarted(PullRequestRef, string) {}
func (nopObserver) StepFinished(BranchResult)          {}

// Orchestrator runs an ExecutionPlan against an Operations backend, one PR at
// a time, in plan order.
type Orchestrator struct {
	ops       Operations
	remote    string
	push      bool
	autostash bool
	dryRun    bool
	policy    ConflictPolicy
	runID     string
	log       *log.Logger
	observer  Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemote sets the remote to fetch and push; blank keeps DefaultRemote.
func WithRemote(remote string) Option {
	return func(o *Orchestrator) {
		if r := strings.TrimSpace(remote); r != "" {
			o.remote = r
		}
	}
}

// WithPush turns the force-with-lease push after each rebase on or off.
func WithPush(push bool) Option {
	return func(o *Orchestrator) { o.push = push }
}

// WithAutostash passes --autostash to every rebase.
func WithAutostash(autostash bool) Option {
	return func(o *Orchestrator) { o.autostash = autostash }
}

// WithDryRun only labels the summary; pair it with DryRunOperations.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// WithConflictPolicy sets what happens to a rebase stopped on conflicts.
func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(o *Orchestrator) { o.policy = policy }
}

// WithRunID replaces the generated run ID used in logs and the summary.
func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id = strings.TrimSpace(id); id != "" {
			o.runID = id
		}
	}
}

// WithLogger sets the logger; nil keeps the discarding default.
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.log = logger
		}
	}
}

// WithObserver registers progress callbacks.
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// NewOrchestrator pushes with autostash to DefaultRemote and leaves
// conflicts in place unless options say otherwise.
func NewOrchestrator(ops Operations, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ops:       ops,
		remote:    DefaultRemote,
		push:      true,
		autostash: true,
		policy:    ConflictLeave,
		runID:     uuid.NewString(),
		log:       log.New(io.Discard),
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run fetches once, then rebases (and pushes) every step. A fetch failure is
// fatal and returns no summary. Per-branch failures are recorded and skip the
// branch's dependents; every step ends with exactly one terminal outcome.
// Cancelling ctx takes effect between steps only.
func (o *Orchestrator) Run(ctx context.Context, plan ExecutionPlan) (*Summary, error) {
	summary := &Summary{RunID: o.runID, DryRun: o.dryRun, Push: o.push}
	led := newLedger(plan)

	o.log.Info("fetching", "run", o.runID, "remote", o.remote, "steps", plan.Len())
	if err := o.ops.Fetch(ctx, o.remote); err != nil {
		return nil, &FetchError{Remote: o.remote, Err: err}
	}

	for i, pr := range plan.Steps {
		if ctx.Err() != nil {
			o.log.Warn("run cancelled", "run", o.runID, "remaining", len(plan.Steps)-i)
			for _, rest := range plan.Steps[i:] {
				result := BranchResult{PR: rest, Outcome: OutcomeSkipped, Err: ErrCancelled}
				if err := led.set(rest, OutcomeSkipped); err != nil {
					return nil, err
				}
				o.observer.StepFinished(result)
				summary.Results = append(summary.Results, result)
			}
			break
		}
		result, err := o.step(ctx, pr, led)
		if err != nil {
			return nil, err
		}
		o.observer.StepFinished(result)
		summary.Results = append(summary.Results, result)
	}

	o.log.Info("run finished", "run", o.runID, "status", summary.Status().String())
	return summary, nil
}

func (o *Orchestrator) step(ctx context.Context, pr PullRequestRef, led *ledger) (BranchResult, error) {
	if base, ok := led.branch(pr.BaseBranch); ok && base.Failed() {
		o.log.Debug("skipping", "pr", pr.ID, "branch", pr.HeadBranch, "base", pr.BaseBranch, "base_outcome", base)
		result := BranchResult{PR: pr, Outcome: OutcomeSkipped, Err: &SkippedError{Base: pr.BaseBranch, BaseOutcome: base}}
		return result, led.set(pr, OutcomeSkipped)
	}

	upstream := o.resolveUpstream(ctx, pr, led)
	o.observer.StepStarted(pr, upstream)
	o.log.Debug("rebasing", "pr", pr.ID, "branch", pr.HeadBranch, "upstream", upstream, "worktree", pr.WorktreePath)

	// A rebase or push that has started always runs to completion.
	opCtx := context.WithoutCancel(ctx)
	result := BranchResult{PR: pr, Upstream: upstream}

	if err := o.ops.Rebase(opCtx, pr.WorktreePath, upstream, o.autostash); err != nil {
		rebaseErr := &RebaseError{
			Branch:   pr.HeadBranch,
			Upstream: upstream,
			Worktree: pr.WorktreePath,
			Conflict: errors.Is(err, ErrRebaseConflict),
			Err:      err,
		}
		result.Err = rebaseErr
		if rebaseErr.Conflict && o.policy == ConflictAbort {
			if abortErr := o.ops.AbortRebase(opCtx, pr.WorktreePath); abortErr != nil {
				result.Err = errors.Join(rebaseErr, fmt.Errorf("abort rebase in %s: %w", pr.WorktreePath, abortErr))
			} else {
				rebaseErr.Aborted = true
			}
		}
		o.log.Error("rebase failed", "pr", pr.ID, "branch", pr.HeadBranch, "conflict", rebaseErr.Conflict, "err", err)
		result.Outcome = OutcomeRebaseFailed
		return result, led.set(pr, OutcomeRebaseFailed)
	}
	result.Outcome = OutcomeRebased
	if err := led.set(pr, OutcomeRebased); err != nil {
		return result, err
	}

	if !o.push {
		return result, nil
	}
	if err := o.ops.PushWithLease(opCtx, pr.WorktreePath, o.remote, pr.HeadBranch); err != nil {
		o.log.Error("push failed", "pr", pr.ID, "branch", pr.HeadBranch, "err", err)
		result.Outcome = OutcomePushFailed
		result.Err = &PushError{Branch: pr.HeadBranch, Remote: o.remote, Err: err}
		return result, led.set(pr, OutcomePushFailed)
	}
	result.Outcome = OutcomePushSucceeded
	return result, led.set(pr, OutcomePushSucceeded)
}

// resolveUpstream picks the local base branch when it was rebased earlier in
// this run, and the remote-tracking branch otherwise.
func (o *Orchestrator) resolveUpstream(ctx context.Context, pr PullRequestRef, led *ledger) string {
	if base, ok := led.branch(pr.BaseBranch); ok && base.Succeeded() && o.ops.LocalRefExists(ctx, pr.BaseBranch) {
		return pr.BaseBranch
	}
	return o.remote + "/" + pr.BaseBranch
}

// ledger holds the outcome of every step. It is owned by a single Run call.
type ledger struct {
	byID     map[int]Outcome
	byBranch map[string]Outcome
}

func newLedger(plan ExecutionPlan) *ledger {
	l := &ledger{
		byID:     make(map[int]Outcome, plan.Len()),
		byBranch: make(map[string]Outcome, plan.Len()),
	}
	for _, pr := range plan.Steps {
		l.byID[pr.ID] = OutcomePending
	}
	return l
}

func (l *ledger) set(pr PullRequestRef, next Outcome) error {
	current, ok := l.byID[pr.ID]
	if !ok {
		return fmt.Errorf("PR #%d is not part of the plan", pr.ID)
	}
	if !current.canBecome(next) {
		return fmt.Errorf("PR #%d: invalid outcome transition %s → %s", pr.ID, current, next)
	}
	l.byID[pr.ID] = next
	// A failure recorded for a head branch is never overwritten.
	if prev, seen := l.byBranch[pr.HeadBranch]; !seen || !prev.Failed() {
		l.byBranch[pr.HeadBranch] = next
	}
	return nil
}

// branch returns the latest outcome recorded for a head branch processed in
// this run.
func (l *ledger) branch(name string) (Outcome, bool) {
	o, ok := l.byBranch[name]
	return o, ok
}

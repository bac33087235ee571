package stack

import (
	"context"
	"sync"
)

// Operations is the version-control capability the orchestrator drives.
// Implementations own timeouts for network calls.
type Operations interface {
	Fetch(ctx context.Context, remote string) error
	Rebase(ctx context.Context, worktreePath string, upstream string, autostash bool) error
	AbortRebase(ctx context.Context, worktreePath string) error
	PushWithLease(ctx context.Context, worktreePath string, remote string, branch string) error
	LocalRefExists(ctx context.Context, branch string) bool
}

// CallKind names a mutating call recorded by DryRunOperations.
type CallKind string

const (
	CallRebase      CallKind = "rebase"
	CallAbortRebase CallKind = "abort-rebase"
	CallPush        CallKind = "push"
)

// Call is one mutating operation a dry run skipped.
type Call struct {
	Kind CallKind
	Dir  string
	Ref  string
}

// DryRunOperations fetches and reads refs through the real backend but turns
// every mutating call into a recorded no-op that succeeds.
type DryRunOperations struct {
	real Operations

	mu    sync.Mutex
	calls []Call
}

func NewDryRunOperations(real Operations) *DryRunOperations {
	return &DryRunOperations{real: real}
}

func (d *DryRunOperations) Fetch(ctx context.Context, remote string) error {
	return d.real.Fetch(ctx, remote)
}

func (d *DryRunOperations) LocalRefExists(ctx context.Context, branch string) bool {
	return d.real.LocalRefExists(ctx, branch)
}

func (d *DryRunOperations) Rebase(_ context.Context, worktreePath string, upstream string, _ bool) error {
	d.record(Call{Kind: CallRebase, Dir: worktreePath, Ref: upstream})
	return nil
}

func (d *DryRunOperations) AbortRebase(_ context.Context, worktreePath string) error {
	d.record(Call{Kind: CallAbortRebase, Dir: worktreePath})
	return nil
}

func (d *DryRunOperations) PushWithLease(_ context.Context, worktreePath string, remote string, branch string) error {
	d.record(Call{Kind: CallPush, Dir: worktreePath, Ref: remote + "/" + branch})
	return nil
}

// Calls returns the skipped mutating calls in the order they were made.
func (d *DryRunOperations) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *DryRunOperations) record(c Call) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	d.mu.Unlock()
}

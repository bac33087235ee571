package stack

// Outcome is the per-branch result of a run.
type Outcome string

const (
	OutcomePending       Outcome = "pending"
	OutcomeRebased       Outcome = "rebased"
	OutcomeRebaseFailed  Outcome = "rebase_failed"
	OutcomePushSucceeded Outcome = "push_succeeded"
	OutcomePushFailed    Outcome = "push_failed"
	OutcomeSkipped       Outcome = "skipped"
)

// Terminal reports whether no further transition is allowed.
func (o Outcome) Terminal() bool {
	return o != OutcomePending && o != OutcomeRebased
}

// Succeeded reports whether the branch's local ref now holds its final state.
func (o Outcome) Succeeded() bool {
	return o == OutcomeRebased || o == OutcomePushSucceeded
}

// Failed reports whether dependents of this branch must be skipped.
func (o Outcome) Failed() bool {
	return o == OutcomeRebaseFailed || o == OutcomePushFailed || o == OutcomeSkipped
}

func (o Outcome) canBecome(next Outcome) bool {
	if o.Terminal() {
		return false
	}
	switch o {
	case OutcomePending:
		return next == OutcomeRebased || next == OutcomeRebaseFailed || next == OutcomeSkipped
	case OutcomeRebased:
		return next == OutcomePushSucceeded || next == OutcomePushFailed
	}
	return false
}

// BranchResult is one line of the run summary.
type BranchResult struct {
	PR       PullRequestRef
	Outcome  Outcome
	Upstream string
	Err      error
}

// ExitStatus summarises a completed run.
type ExitStatus int

const (
	StatusSuccess ExitStatus = iota
	StatusPartialFailure
)

func (s ExitStatus) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "partial failure"
}

// Summary is the ordered outcome of every step in a plan.
type Summary struct {
	RunID   string
	DryRun  bool
	Push    bool
	Results []BranchResult
}

// Status is success only when every branch reached its final outcome:
// push_succeeded when pushing, rebased otherwise.
func (s *Summary) Status() ExitStatus {
	want := OutcomeRebased
	if s.Push {
		want = OutcomePushSucceeded
	}
	for _, r := range s.Results {
		if r.Outcome != want {
			return StatusPartialFailure
		}
	}
	return StatusSuccess
}

// Failed returns the results that did not reach their final outcome.
func (s *Summary) Failed() []BranchResult {
	want := OutcomeRebased
	if s.Push {
		want = OutcomePushSucceeded
	}
	var out []BranchResult
	for _, r := range s.Results {
		if r.Outcome != want {
			out = append(out, r)
		}
	}
	return out
}

// Upstreams returns the upstream each step resolved to, in plan order.
// Skipped steps resolve to an empty string.
func (s *Summary) Upstreams() []string {
	out := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		out = append(out, r.Upstream)
	}
	return out
}

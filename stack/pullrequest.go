// Package stack orders stacked pull requests by their base/head branch
// relationships and restacks them in that order.
package stack

import (
	"fmt"
	"strings"
)

// PullRequestRef identifies one tracked pull request and the worktree that
// has its head branch checked out.
type PullRequestRef struct {
	ID           int
	HeadBranch   string
	BaseBranch   string
	WorktreePath string
	URL          string
}

func (pr PullRequestRef) String() string {
	return fmt.Sprintf("#%d %s → %s", pr.ID, pr.HeadBranch, pr.BaseBranch)
}

// Validate reports whether both branch names are set. A PR whose head equals
// its base is accepted here and rejected by the sorter as a cycle.
func (pr PullRequestRef) Validate() error {
	if strings.TrimSpace(pr.HeadBranch) == "" {
		return fmt.Errorf("PR #%d: head branch required", pr.ID)
	}
	if strings.TrimSpace(pr.BaseBranch) == "" {
		return fmt.Errorf("PR #%d: base branch required", pr.ID)
	}
	return nil
}

// RecordSet is the ordered input to graph construction. The order records
// were added in is the discovery order used to break ties when sorting.
type RecordSet struct {
	records []PullRequestRef
	byID    map[int]int
}

// NewRecordSet validates refs and keeps them in the order given.
func NewRecordSet(refs ...PullRequestRef) (*RecordSet, error) {
	set := &RecordSet{
		records: make([]PullRequestRef, 0, len(refs)),
		byID:    make(map[int]int, len(refs)),
	}
	for _, ref := range refs {
		ref.HeadBranch = strings.TrimSpace(ref.HeadBranch)
		ref.BaseBranch = strings.TrimSpace(ref.BaseBranch)
		ref.WorktreePath = strings.TrimSpace(ref.WorktreePath)
		if err := ref.Validate(); err != nil {
			return nil, err
		}
		if _, dup := set.byID[ref.ID]; dup {
			return nil, fmt.Errorf("PR #%d listed more than once", ref.ID)
		}
		set.byID[ref.ID] = len(set.records)
		set.records = append(set.records, ref)
	}
	return set, nil
}

// Len returns the number of records.
func (s *RecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// Records returns a copy of the records in discovery order.
func (s *RecordSet) Records() []PullRequestRef {
	if s == nil {
		return nil
	}
	out := make([]PullRequestRef, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the record with the given ID.
func (s *RecordSet) Lookup(id int) (PullRequestRef, bool) {
	if s == nil {
		return PullRequestRef{}, false
	}
	idx, ok := s.byID[id]
	if !ok {
		return PullRequestRef{}, false
	}
	return s.records[idx], true
}

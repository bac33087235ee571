package stack

import "sort"

// Graph is the dependency graph of a RecordSet keyed by branch name. An edge
// runs from a base branch to every PR based on it. Bases that are not the
// head of any tracked PR are external roots and are never scheduled.
type Graph struct {
	set        *RecordSet
	byHead     map[string][]int
	dependents map[string][]int
}

// BuildGraph registers an edge base → head for every record. It never fails;
// records were validated when the set was built.
func BuildGraph(set *RecordSet) *Graph {
	g := &Graph{
		set:        set,
		byHead:     make(map[string][]int, set.Len()),
		dependents: make(map[string][]int, set.Len()),
	}
	for idx, pr := range set.Records() {
		g.byHead[pr.HeadBranch] = append(g.byHead[pr.HeadBranch], idx)
		g.dependents[pr.BaseBranch] = append(g.dependents[pr.BaseBranch], idx)
	}
	return g
}

// Records returns the graph's records in discovery order.
func (g *Graph) Records() []PullRequestRef {
	return g.set.Records()
}

// IsTracked reports whether branch is the head of a tracked PR.
func (g *Graph) IsTracked(branch string) bool {
	return len(g.byHead[branch]) > 0
}

// PullRequestsForHead returns the PRs whose head is branch.
func (g *Graph) PullRequestsForHead(branch string) []PullRequestRef {
	return g.pick(g.byHead[branch])
}

// Dependents returns the PRs whose base is branch, in discovery order.
func (g *Graph) Dependents(branch string) []PullRequestRef {
	return g.pick(g.dependents[branch])
}

// Roots returns the external base branches, sorted by name.
func (g *Graph) Roots() []string {
	roots := make([]string, 0)
	for base := range g.dependents {
		if !g.IsTracked(base) {
			roots = append(roots, base)
		}
	}
	sort.Strings(roots)
	return roots
}

func (g *Graph) pick(indexes []int) []PullRequestRef {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]PullRequestRef, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, g.set.records[idx])
	}
	return out
}

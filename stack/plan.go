package stack

import "sort"

// ExecutionPlan lists PRs so that every base precedes its dependents.
type ExecutionPlan struct {
	Steps []PullRequestRef
}

// Len returns the number of steps.
func (p ExecutionPlan) Len() int {
	return len(p.Steps)
}

// Branches returns the head branch of every step, in plan order.
func (p ExecutionPlan) Branches() []string {
	out := make([]string, 0, len(p.Steps))
	for _, step := range p.Steps {
		out = append(out, step.HeadBranch)
	}
	return out
}

type visitColor uint8

const (
	unvisited visitColor = iota
	inProgress
	visited
)

type visitFrame struct {
	idx   int
	bases []int
	next  int
}

// Plan orders the selected PRs (all records when selection is empty) so each
// base is scheduled before its dependents. Only edges between selected PRs
// constrain the order; a tracked base outside the selection behaves like an
// external root. Ties are broken by discovery order, so the plan is stable
// for a fixed RecordSet.
func (g *Graph) Plan(selection []int) (ExecutionPlan, error) {
	selected, err := g.selectIndexes(selection)
	if err != nil {
		return ExecutionPlan{}, err
	}
	inSelection := make(map[int]bool, len(selected))
	for _, idx := range selected {
		inSelection[idx] = true
	}

	colors := make(map[int]visitColor, len(selected))
	steps := make([]PullRequestRef, 0, len(selected))
	for _, start := range selected {
		if colors[start] != unvisited {
			continue
		}
		colors[start] = inProgress
		path := []visitFrame{{idx: start, bases: g.selectedBases(start, inSelection)}}
		for len(path) > 0 {
			top := &path[len(path)-1]
			if top.next < len(top.bases) {
				base := top.bases[top.next]
				top.next++
				switch colors[base] {
				case unvisited:
					colors[base] = inProgress
					path = append(path, visitFrame{idx: base, bases: g.selectedBases(base, inSelection)})
				case inProgress:
					return ExecutionPlan{}, g.cycleError(path, base)
				}
				continue
			}
			colors[top.idx] = visited
			steps = append(steps, g.set.records[top.idx])
			path = path[:len(path)-1]
		}
	}
	return ExecutionPlan{Steps: steps}, nil
}

func (g *Graph) selectIndexes(selection []int) ([]int, error) {
	if len(selection) == 0 {
		all := make([]int, g.set.Len())
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]bool, len(selection))
	out := make([]int, 0, len(selection))
	for _, id := range selection {
		idx, ok := g.set.byID[id]
		if !ok {
			return nil, &UnknownPRError{ID: id}
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// selectedBases returns the selected PRs whose head is the base of idx.
func (g *Graph) selectedBases(idx int, inSelection map[int]bool) []int {
	candidates := g.byHead[g.set.records[idx].BaseBranch]
	out := make([]int, 0, len(candidates))
	for _, c := range candidates {
		if inSelection[c] {
			out = append(out, c)
		}
	}
	return out
}

// cycleError reports the loop closed by revisiting closing. Frames from
// closing to the top of path each point at their base, so the loop in
// base → head order is closing followed by the frames above it, reversed.
func (g *Graph) cycleError(path []visitFrame, closing int) *CycleError {
	start := 0
	for i, frame := range path {
		if frame.idx == closing {
			start = i
			break
		}
	}
	loop := []int{path[start].idx}
	for i := len(path) - 1; i > start; i-- {
		loop = append(loop, path[i].idx)
	}

	first := 0
	for i, idx := range loop {
		if idx < loop[first] {
			first = i
		}
	}
	loop = append(loop[first:], loop[:first]...)

	cycle := &CycleError{}
	for _, idx := range loop {
		pr := g.set.records[idx]
		cycle.PullRequests = append(cycle.PullRequests, pr)
		cycle.Branches = append(cycle.Branches, pr.HeadBranch)
	}
	return cycle
}

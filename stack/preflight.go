package stack

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// WorktreeChecker reports whether a worktree directory exists.
type WorktreeChecker func(path string) (bool, error)

// DirExists is the default WorktreeChecker.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Preflight checks every step before anything is mutated. It either passes
// the whole plan or returns a *PreflightError naming every violation.
func Preflight(plan ExecutionPlan, exists WorktreeChecker) error {
	if exists == nil {
		exists = DirExists
	}
	var violations []Violation
	for _, pr := range plan.Steps {
		path := strings.TrimSpace(pr.WorktreePath)
		if path == "" {
			violations = append(violations, Violation{PR: pr, Reason: "no worktree has this branch checked out"})
			continue
		}
		ok, err := exists(path)
		if err != nil {
			violations = append(violations, Violation{PR: pr, Reason: fmt.Sprintf("cannot inspect worktree %s: %v", path, err)})
			continue
		}
		if !ok {
			violations = append(violations, Violation{PR: pr, Reason: fmt.Sprintf("worktree %s does not exist", path)})
		}
	}
	if len(violations) > 0 {
		return &PreflightError{Violations: violations}
	}
	return nil
}

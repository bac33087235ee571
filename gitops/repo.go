package gitops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RepoRoot walks up from dir (the working directory when empty) to the first
// directory holding a .git entry.
func RepoRoot(dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", ErrNotInGitRepository
		}
		dir = wd
	}
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", ErrNotInGitRepository
	}
	for {
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotInGitRepository
		}
		current = parent
	}
}

// CommonDir returns the git directory shared by every worktree of the
// repository rooted at repoRoot.
func CommonDir(repoRoot string) (string, error) {
	repoRoot = strings.TrimSpace(repoRoot)
	if repoRoot == "" {
		return "", ErrNotInGitRepository
	}
	dotGit := filepath.Join(repoRoot, ".git")
	info, err := os.Stat(dotGit)
	switch {
	case err == nil && info.IsDir():
		return filepath.Abs(dotGit)
	case err == nil:
		return parseGitdirPointer(dotGit, repoRoot)
	case errors.Is(err, os.ErrNotExist):
		return "", ErrNotInGitRepository
	default:
		return "", err
	}
}

func isLinkedWorktreeDir(dir string) bool {
	dotGit := filepath.Join(strings.TrimSpace(dir), ".git")
	info, err := os.Stat(dotGit)
	if err != nil || info.IsDir() {
		return false
	}
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(string(data)), "gitdir:")
}

// parseGitdirPointer resolves a linked worktree's .git file to the main
// repository's git directory.
func parseGitdirPointer(dotGitFile string, repoRoot string) (string, error) {
	data, err := os.ReadFile(dotGitFile)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	const prefix = "gitdir:"
	if !strings.HasPrefix(strings.ToLower(line), prefix) {
		return "", fmt.Errorf("invalid .git file format in %s", repoRoot)
	}
	target := strings.TrimSpace(line[len(prefix):])
	if target == "" {
		return "", fmt.Errorf("empty gitdir in %s", repoRoot)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(repoRoot, target)
	}
	target = filepath.Clean(target)
	sep := string(filepath.Separator) + "worktrees" + string(filepath.Separator)
	if idx := strings.LastIndex(target, sep); idx > 0 {
		return target[:idx], nil
	}
	return target, nil
}

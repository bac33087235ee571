package gitops

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

type fixture struct {
	remote string
	repo   string
}

// newFixture builds a bare remote and a clone of it with one commit on main.
func newFixture(t *testing.T) fixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_AUTHOR_NAME", "Restack Test")
	t.Setenv("GIT_AUTHOR_EMAIL", "restack@example.com")
	t.Setenv("GIT_COMMITTER_NAME", "Restack Test")
	t.Setenv("GIT_COMMITTER_EMAIL", "restack@example.com")

	base := resolved(t, t.TempDir())
	f := fixture{remote: filepath.Join(base, "remote.git"), repo: filepath.Join(base, "app")}
	mustGit(t, base, "init", "--bare", f.remote)
	mustGit(t, f.remote, "symbolic-ref", "HEAD", "refs/heads/main")
	mustGit(t, base, "init", f.repo)
	mustGit(t, f.repo, "checkout", "-b", "main")
	commitFile(t, f.repo, "README.md", "hello\n", "initial")
	mustGit(t, f.repo, "remote", "add", "origin", f.remote)
	mustGit(t, f.repo, "push", "-u", "origin", "main")
	return f
}

// addWorktree creates branch off main in a sibling worktree and pushes it.
func (f fixture) addWorktree(t *testing.T, branch string) string {
	t.Helper()
	path := filepath.Join(filepath.Dir(f.repo), "wt-"+branch)
	mustGit(t, f.repo, "worktree", "add", "-b", branch, path, "main")
	commitFile(t, path, branch+".txt", branch+"\n", "add "+branch)
	mustGit(t, path, "push", "-u", "origin", branch)
	return path
}

func mustGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

func commitFile(t *testing.T, dir string, name string, content string, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	mustGit(t, dir, "add", name)
	mustGit(t, dir, "commit", "-m", message)
}

func resolved(t *testing.T, path string) string {
	t.Helper()
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("eval symlinks: %v", err)
	}
	return real
}

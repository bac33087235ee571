// Package gitops runs the git operations a restack needs against a real
// repository. Read-only ref lookups and fetch go through go-git when it can
// serve them; everything that mutates a worktree shells out to git.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mrbonezy/restack/stack"
)

var (
	ErrGitNotInstalled    = errors.New("git not installed")
	ErrNotInGitRepository = errors.New("not in a git repository")
)

// DefaultNetworkTimeout bounds fetch and push.
const DefaultNetworkTimeout = 2 * time.Minute

var gitLookPath = func() (string, error) {
	return exec.LookPath("git")
}

// RequireGit returns the git binary path or ErrGitNotInstalled.
func RequireGit() (string, error) {
	path, err := gitLookPath()
	if err != nil {
		return "", ErrGitNotInstalled
	}
	return path, nil
}

// Git implements stack.Operations for one repository.
type Git struct {
	gitPath        string
	repoRoot       string
	networkTimeout time.Duration
	log            *log.Logger
}

var _ stack.Operations = (*Git)(nil)

// Option configures a Git.
type Option func(*Git)

// WithNetworkTimeout bounds fetch and push; non-positive keeps the default.
func WithNetworkTimeout(d time.Duration) Option {
	return func(g *Git) {
		if d > 0 {
			g.networkTimeout = d
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(g *Git) {
		if logger != nil {
			g.log = logger
		}
	}
}

// New resolves the git binary and the repository containing dir.
func New(dir string, opts ...Option) (*Git, error) {
	gitPath, err := RequireGit()
	if err != nil {
		return nil, err
	}
	repoRoot, err := RepoRoot(dir)
	if err != nil {
		return nil, err
	}
	g := &Git{
		gitPath:        gitPath,
		repoRoot:       repoRoot,
		networkTimeout: DefaultNetworkTimeout,
		log:            log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *Git) RepoRoot() string {
	return g.repoRoot
}

// Fetch updates remote-tracking refs. go-git is tried first; any failure
// there falls back to the git binary, which knows the user's credential
// helpers.
func (g *Git) Fetch(ctx context.Context, remote string) error {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return errors.New("remote required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.networkTimeout)
	defer cancel()

	if !isLinkedWorktreeDir(g.repoRoot) {
		err := fetchWithGoGit(ctx, g.repoRoot, remote)
		if err == nil {
			g.log.Debug("fetched with go-git", "remote", remote)
			return nil
		}
		g.log.Debug("go-git fetch failed; using git binary", "remote", remote, "err", err)
	}
	_, err := g.run(ctx, g.repoRoot, "fetch", remote)
	return err
}

// Rebase replays the worktree's branch onto upstream. A rebase that stops on
// conflicts wraps stack.ErrRebaseConflict and is left in progress.
func (g *Git) Rebase(ctx context.Context, worktreePath string, upstream string, autostash bool) error {
	worktreePath = strings.TrimSpace(worktreePath)
	upstream = strings.TrimSpace(upstream)
	if worktreePath == "" {
		return errors.New("worktree path required")
	}
	if upstream == "" {
		return errors.New("upstream required")
	}
	args := []string{"rebase"}
	if autostash {
		args = append(args, "--autostash")
	}
	args = append(args, upstream)

	out, err := g.runDetached(ctx, worktreePath, args...)
	if err == nil {
		return nil
	}
	if isConflictOutput(out) || rebaseInProgress(ctx, g.gitPath, worktreePath) {
		return fmt.Errorf("%w: %w", stack.ErrRebaseConflict, err)
	}
	return err
}

func (g *Git) AbortRebase(ctx context.Context, worktreePath string) error {
	worktreePath = strings.TrimSpace(worktreePath)
	if worktreePath == "" {
		return errors.New("worktree path required")
	}
	_, err := g.runDetached(ctx, worktreePath, "rebase", "--abort")
	return err
}

// PushWithLease force-pushes branch, refusing when the remote moved since
// the last fetch.
func (g *Git) PushWithLease(ctx context.Context, worktreePath string, remote string, branch string) error {
	worktreePath = strings.TrimSpace(worktreePath)
	remote = strings.TrimSpace(remote)
	branch = strings.TrimSpace(branch)
	if worktreePath == "" {
		return errors.New("worktree path required")
	}
	if remote == "" || branch == "" {
		return errors.New("remote and branch required")
	}
	ctx, cancel := context.WithTimeout(ctx, g.networkTimeout)
	defer cancel()
	_, err := g.runDetached(ctx, worktreePath, "push", "--force-with-lease="+branch, remote, branch)
	return err
}

// LocalRefExists reports whether refs/heads/<branch> exists.
func (g *Git) LocalRefExists(ctx context.Context, branch string) bool {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return false
	}
	if found, handled := localBranchWithGoGit(g.repoRoot, branch); handled {
		return found
	}
	cmd := exec.CommandContext(ctx, g.gitPath, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	cmd.Dir = g.repoRoot
	return cmd.Run() == nil
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	return g.output(g.command(ctx, dir, args...))
}

// runDetached starts git in its own process group so a terminal Ctrl-C
// reaches restack but not a rebase or push that is already underway.
func (g *Git) runDetached(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := g.command(ctx, dir, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return g.output(cmd)
}

func (g *Git) command(ctx context.Context, dir string, args ...string) *exec.Cmd {
	g.log.Debug("git", "dir", dir, "args", strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, g.gitPath, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true")
	return cmd
}

func (g *Git) output(cmd *exec.Cmd) (string, error) {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), commandErrorWithOutput(err, output)
	}
	return string(output), nil
}

// commandErrorWithOutput prefers what git printed over the bare exit status.
func commandErrorWithOutput(err error, output []byte) error {
	msg := strings.TrimSpace(string(output))
	if msg == "" {
		return err
	}
	return errors.New(msg)
}

func isConflictOutput(output string) bool {
	return strings.Contains(output, "CONFLICT") || strings.Contains(output, "could not apply")
}

func rebaseInProgress(ctx context.Context, gitPath string, worktreePath string) bool {
	cmd := exec.CommandContext(ctx, gitPath, "rev-parse", "--path-format=absolute", "--git-dir")
	cmd.Dir = worktreePath
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	gitDir := strings.TrimSpace(string(out))
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		if info, err := os.Stat(filepath.Join(gitDir, name)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

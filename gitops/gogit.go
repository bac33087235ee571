package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	sshconfig "github.com/kevinburke/ssh_config"
)

var sshConfigGet = func(alias, key string) string {
	return sshconfig.Get(alias, key)
}

var sshConfigGetAll = func(alias, key string) []string {
	return sshconfig.GetAll(alias, key)
}

func openRepo(dir string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

// localBranchWithGoGit answers a refs/heads lookup in-process. handled is
// false when go-git could not open the repository.
func localBranchWithGoGit(dir string, branch string) (found bool, handled bool) {
	repo, err := openRepo(dir)
	if err != nil {
		return false, false
	}
	_, err = repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err == nil {
		return true, true
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, true
	}
	return false, false
}

func fetchWithGoGit(ctx context.Context, dir string, remoteName string) error {
	repo, err := openRepo(dir)
	if err != nil {
		return err
	}
	endpoint, remoteURL, err := remoteEndpoint(repo, remoteName)
	if err != nil {
		return err
	}
	err = newFetchAuth(endpoint, remoteURL).fetch(ctx, repo, remoteName)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

func remoteEndpoint(repo *git.Repository, remoteName string) (*transport.Endpoint, string, error) {
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return nil, "", err
	}
	cfg := remote.Config()
	if cfg == nil || len(cfg.URLs) == 0 {
		return nil, "", fmt.Errorf("remote %q has no URL", remoteName)
	}
	remoteURL := strings.TrimSpace(cfg.URLs[0])
	endpoint, err := transport.NewEndpoint(remoteURL)
	if err != nil {
		return nil, remoteURL, err
	}
	return endpoint, remoteURL, nil
}

// fetchAuth holds the credentials a go-git fetch tries, in order: keys named
// by IdentityFile for the host, then the ssh agent, then the default key
// files. Non-SSH remotes get no credentials.
type fetchAuth struct {
	ssh       bool
	remoteURL string
	methods   []transport.AuthMethod
	problems  []string
}

func newFetchAuth(endpoint *transport.Endpoint, remoteURL string) fetchAuth {
	a := fetchAuth{ssh: isSSHEndpoint(endpoint), remoteURL: remoteURL}
	if !a.ssh {
		return a
	}
	user := sshUser(endpoint)
	configured, defaults := identityFiles(endpoint.Host, user)
	a.addKeys(user, configured)
	if agent, err := gitssh.NewSSHAgentAuth(user); err == nil {
		a.methods = append(a.methods, agent)
	} else {
		a.problems = append(a.problems, "ssh-agent: "+err.Error())
	}
	a.addKeys(user, defaults)
	return a
}

func (a *fetchAuth) addKeys(user string, paths []string) {
	for _, path := range paths {
		keys, err := gitssh.NewPublicKeysFromFile(user, path, "")
		if err != nil {
			a.problems = append(a.problems, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		a.methods = append(a.methods, keys)
	}
}

// fetch moves on to the next credential only when the server rejected the
// previous one.
func (a fetchAuth) fetch(ctx context.Context, repo *git.Repository, remoteName string) error {
	if !a.ssh {
		return repo.FetchContext(ctx, &git.FetchOptions{RemoteName: remoteName})
	}
	if len(a.methods) == 0 {
		if len(a.problems) == 0 {
			return fmt.Errorf("no usable ssh credentials for %q", a.remoteURL)
		}
		return fmt.Errorf("no usable ssh credentials for %q: %s", a.remoteURL, strings.Join(a.problems, "; "))
	}
	var err error
	for _, method := range a.methods {
		err = repo.FetchContext(ctx, &git.FetchOptions{RemoteName: remoteName, Auth: method})
		if err == nil || !isSSHAuthFailure(err) {
			return err
		}
	}
	return err
}

func isSSHEndpoint(endpoint *transport.Endpoint) bool {
	if endpoint == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(endpoint.Protocol)) {
	case "ssh", "git+ssh", "ssh+git":
		return true
	default:
		return false
	}
}

func sshUser(endpoint *transport.Endpoint) string {
	for _, user := range []string{endpoint.User, sshConfigGet(endpoint.Host, "User")} {
		if user = strings.TrimSpace(user); user != "" {
			return user
		}
	}
	return "git"
}

func isSSHAuthFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unable to authenticate", "attempted methods", "permission denied (publickey)"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// identityFiles returns existing key files for host: the IdentityFile
// entries from ~/.ssh/config, and separately the default key names not
// already listed there.
func identityFiles(host string, user string) (configured []string, defaults []string) {
	seen := make(map[string]bool)
	keep := func(raw string) string {
		path := expandIdentityPath(raw, host, user)
		if path == "" || seen[path] {
			return ""
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return ""
		}
		seen[path] = true
		return path
	}
	for _, raw := range sshConfigGetAll(host, "IdentityFile") {
		if path := keep(raw); path != "" {
			configured = append(configured, path)
		}
	}
	for _, name := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
		if path := keep("~/.ssh/" + name); path != "" {
			defaults = append(defaults, path)
		}
	}
	return configured, defaults
}

// expandIdentityPath applies ssh_config's %h, %r, %u and %% tokens. Relative
// paths are taken from ~/.ssh.
func expandIdentityPath(raw string, host string, user string) string {
	path := strings.Trim(strings.TrimSpace(raw), `"'`)
	if path == "" || strings.EqualFold(path, "none") {
		return ""
	}
	path = strings.NewReplacer("%h", host, "%r", user, "%u", os.Getenv("USER"), "%%", "%").Replace(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return filepath.Join(home, ".ssh", path)
}

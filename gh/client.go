// Package gh reads pull request metadata through the GitHub CLI.
package gh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultLimit   = 100
	DefaultTimeout = 30 * time.Second

	listFields = "number,headRefName,baseRefName,state,url,updatedAt"
)

var ErrNotInstalled = errors.New("`gh` not installed; install GitHub CLI to discover pull requests")

// PullRequest is the subset of `gh pr` JSON restack reads.
type PullRequest struct {
	Number      int    `json:"number"`
	HeadRefName string `json:"headRefName"`
	BaseRefName string `json:"baseRefName"`
	State       string `json:"state"`
	URL         string `json:"url"`
	UpdatedAt   string `json:"updatedAt"`
}

func (p PullRequest) IsOpen() bool {
	return strings.EqualFold(strings.TrimSpace(p.State), "OPEN")
}

var lookPath = func() (string, error) {
	return exec.LookPath("gh")
}

var runGH = func(ctx context.Context, dir string, ghPath string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ghPath, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

type Client struct {
	dir     string
	limit   int
	timeout time.Duration
}

// NewClient runs gh in dir, which selects the repository.
func NewClient(dir string, limit int, timeout time.Duration) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{dir: dir, limit: limit, timeout: timeout}
}

// ListOpenPullRequests returns open PRs in gh's order. When several share a
// head branch only the most recently updated one is kept.
func (c *Client) ListOpenPullRequests(ctx context.Context) ([]PullRequest, error) {
	out, err := c.run(ctx, "pr", "list", "--state", "open", "--limit", strconv.Itoa(c.limit), "--json", listFields)
	if err != nil {
		return nil, fmt.Errorf("listing open PRs: %w", err)
	}
	var prs []PullRequest
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse open PRs list: %w", err)
	}
	return latestPerHead(prs), nil
}

// ViewPullRequest fetches one PR and fails unless it is open.
func (c *Client) ViewPullRequest(ctx context.Context, number int) (PullRequest, error) {
	if number <= 0 {
		return PullRequest{}, errors.New("pull request number required")
	}
	out, err := c.run(ctx, "pr", "view", strconv.Itoa(number), "--json", listFields)
	if err != nil {
		return PullRequest{}, fmt.Errorf("failed to resolve PR #%d: %w", number, err)
	}
	var pr PullRequest
	if err := json.Unmarshal(out, &pr); err != nil {
		return PullRequest{}, fmt.Errorf("failed to parse PR #%d details: %w", number, err)
	}
	if strings.TrimSpace(pr.HeadRefName) == "" {
		return PullRequest{}, fmt.Errorf("PR #%d has no head branch", number)
	}
	if !pr.IsOpen() {
		return PullRequest{}, fmt.Errorf("PR #%d is %s, not open", number, strings.ToLower(strings.TrimSpace(pr.State)))
	}
	return pr, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ghPath, err := lookPath()
	if err != nil {
		return nil, ErrNotInstalled
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := runGH(ctx, c.dir, ghPath, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("gh timed out after %s", c.timeout.Round(time.Second))
		}
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	return out, nil
}

// ParseNumber accepts "123" or "#123".
func ParseNumber(raw string) (int, error) {
	value := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if value == "" {
		return 0, errors.New("pull request number required")
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid pull request number %q", raw)
	}
	return n, nil
}

func latestPerHead(prs []PullRequest) []PullRequest {
	out := make([]PullRequest, 0, len(prs))
	index := make(map[string]int, len(prs))
	for _, pr := range prs {
		head := strings.TrimSpace(pr.HeadRefName)
		if head == "" || !pr.IsOpen() {
			continue
		}
		i, seen := index[head]
		if !seen {
			index[head] = len(out)
			out = append(out, pr)
			continue
		}
		if parseGitHubTime(pr.UpdatedAt).After(parseGitHubTime(out[i].UpdatedAt)) {
			out[i] = pr
		}
	}
	return out
}

func parseGitHubTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return t
}

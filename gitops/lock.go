package gitops

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const lockFileName = "restack.lock"

// LockedError means another restack run holds the repository lock.
type LockedError struct {
	Path string
	PID  int
}

func (e *LockedError) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("another restack run (pid %d) holds %s", e.PID, e.Path)
	}
	return fmt.Sprintf("another restack run holds %s", e.Path)
}

// LockManager hands out repository-wide run locks stored in the git common
// directory, so every worktree of a repository shares one lock.
type LockManager struct {
	staleAfter time.Duration
	pidAlive   func(int) bool
}

func NewLockManager() *LockManager {
	return &LockManager{staleAfter: 10 * time.Second, pidAlive: pidAlive}
}

type RunLock struct {
	path    string
	ownerID string
	pid     int
}

func (l *RunLock) OwnerID() string {
	if l == nil {
		return ""
	}
	return l.ownerID
}

type lockPayload struct {
	OwnerID   string `json:"owner_id"`
	PID       int    `json:"pid"`
	RepoRoot  string `json:"repo_root"`
	Timestamp string `json:"timestamp"`
}

// Acquire takes the lock for the repository at repoRoot. A lock whose pid
// is dead, or that is unreadable and older than the stale window, is
// reclaimed.
func (m *LockManager) Acquire(repoRoot string) (*RunLock, error) {
	commonDir, err := CommonDir(repoRoot)
	if err != nil {
		return nil, err
	}
	return m.acquireAt(filepath.Join(commonDir, lockFileName), repoRoot, os.Getpid())
}

func (m *LockManager) acquireAt(lockPath string, repoRoot string, pid int) (*RunLock, error) {
	ownerID := uuid.NewString()
	payload, err := json.Marshal(lockPayload{
		OwnerID:   ownerID,
		PID:       pid,
		RepoRoot:  strings.TrimSpace(repoRoot),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		if _, werr := file.Write(payload); werr != nil {
			_ = file.Close()
			_ = os.Remove(lockPath)
			return nil, werr
		}
		if cerr := file.Close(); cerr != nil {
			_ = os.Remove(lockPath)
			return nil, cerr
		}
		return &RunLock{path: lockPath, ownerID: ownerID, pid: pid}, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	info, statErr := os.Stat(lockPath)
	if statErr != nil {
		return nil, statErr
	}
	current, readErr := readLockPayload(lockPath)
	if readErr == nil && current.PID > 0 && m.pidAlive(current.PID) {
		return nil, &LockedError{Path: lockPath, PID: current.PID}
	}
	if readErr != nil && time.Since(info.ModTime()) < m.staleAfter {
		return nil, &LockedError{Path: lockPath}
	}

	tmpPath := lockPath + "." + ownerID + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpPath, lockPath); err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}
	current, err = readLockPayload(lockPath)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != ownerID {
		return nil, &LockedError{Path: lockPath, PID: current.PID}
	}
	return &RunLock{path: lockPath, ownerID: ownerID, pid: pid}, nil
}

// Release removes the lock file if this lock still owns it.
func (l *RunLock) Release() {
	if l == nil {
		return
	}
	current, err := readLockPayload(l.path)
	if err != nil || current.OwnerID != l.ownerID {
		return
	}
	_ = os.Remove(l.path)
}

func readLockPayload(path string) (lockPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockPayload{}, err
	}
	var payload lockPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return lockPayload{}, err
	}
	return payload, nil
}

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

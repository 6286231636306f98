// ABOUTME: Sidecar lock files enforcing the single-owner contract across processes
// ABOUTME: Live owners block Open with Locked; locks left by dead processes are broken

package store

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// lockSuffix is appended to the store path to form the lock file path.
const lockSuffix = ".lock"

// lockInfo is the JSON body of a lock file, enough to decide staleness and
// name the holder in error messages.
type lockInfo struct {
	Owner       string `json:"owner"`
	PID         int    `json:"pid"`
	Host        string `json:"host"`
	CreatedUnix int64  `json:"created_unix"`
}

// fileLock is a held sidecar lock. Release removes the file if this owner
// still holds it.
type fileLock struct {
	path   string
	owner  string
	logger *slog.Logger
}

func lockPath(storePath string) string { return storePath + lockSuffix }

// acquireLock takes the sidecar lock for storePath. A lock held by a live
// process fails with KindLocked. Stale locks (dead pid or unreadable body)
// are broken with a warning and the acquisition retried once.
func acquireLock(storePath string, logger *slog.Logger) (*fileLock, error) {
	path := lockPath(storePath)
	owner := uuid.NewString()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return writeLock(f, path, owner, logger)
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, wrapf(KindLock, err, "creating lock file %s", path)
		}

		info, rerr := readLockInfo(path)
		if rerr == nil && processAlive(info.PID) {
			return nil, errf(KindLocked, "store is locked by pid %d on %s", info.PID, info.Host)
		}
		logger.Warn("breaking stale lock", "path", path, "pid", info.PID)
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return nil, wrapf(KindLock, rmErr, "removing stale lock %s", path)
		}
	}
	return nil, errf(KindLocked, "store is locked: %s", path)
}

func writeLock(f *os.File, path, owner string, logger *slog.Logger) (*fileLock, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	info := lockInfo{
		Owner:       owner,
		PID:         os.Getpid(),
		Host:        host,
		CreatedUnix: time.Now().Unix(),
	}
	data, err := json.Marshal(info)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, wrapf(KindLock, err, "encoding lock file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return nil, wrapf(KindLock, err, "writing lock file %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, wrapf(KindLock, err, "writing lock file %s", path)
	}
	return &fileLock{path: path, owner: owner, logger: logger}, nil
}

// Release removes the lock file if this owner still holds it. Releasing a
// lock that was already broken is a no-op.
func (l *fileLock) Release() error {
	info, err := readLockInfo(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && info.Owner != l.owner {
		l.logger.Warn("lock file no longer ours, leaving it", "path", l.path, "holder_pid", info.PID)
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapf(KindLock, err, "removing lock file %s", l.path)
	}
	return nil
}

func readLockInfo(path string) (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	return info, nil
}

// processAlive reports whether pid refers to a running process we could
// signal. EPERM means alive but owned by someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

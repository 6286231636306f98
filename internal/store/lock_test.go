// ABOUTME: Tests for the sidecar lock protocol
// ABOUTME: Covers live-holder rejection, stale breaking, and release ownership

package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	logger := slog.Default()

	lock, err := acquireLock(storePath, logger)
	require.NoError(t, err)

	_, err = os.Stat(lockPath(storePath))
	require.NoError(t, err, "lock file should exist while held")

	require.NoError(t, lock.Release())
	_, err = os.Stat(lockPath(storePath))
	assert.True(t, os.IsNotExist(err), "lock file should be gone after release")
}

func TestAcquireLock_HeldByLiveProcess(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	logger := slog.Default()

	lock, err := acquireLock(storePath, logger)
	require.NoError(t, err)
	defer lock.Release()

	// Our own pid is alive, so a second acquisition must fail.
	_, err = acquireLock(storePath, logger)
	require.Error(t, err)
	assert.True(t, IsLocked(err))
}

func TestAcquireLock_BreaksDeadHolder(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	stale := `{"owner":"gone","pid":-1,"host":"nowhere","created_unix":0}`
	require.NoError(t, os.WriteFile(lockPath(storePath), []byte(stale), 0644))

	lock, err := acquireLock(storePath, slog.Default())
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestAcquireLock_BreaksUnreadableLock(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	require.NoError(t, os.WriteFile(lockPath(storePath), []byte("not json at all"), 0644))

	lock, err := acquireLock(storePath, slog.Default())
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestRelease_LeavesForeignLockAlone(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	lock, err := acquireLock(storePath, slog.Default())
	require.NoError(t, err)

	// Simulate another process stealing the lock after a stale break.
	foreign := `{"owner":"someone-else","pid":1,"host":"elsewhere","created_unix":0}`
	require.NoError(t, os.WriteFile(lockPath(storePath), []byte(foreign), 0644))

	require.NoError(t, lock.Release())
	_, err = os.Stat(lockPath(storePath))
	require.NoError(t, err, "a lock we no longer own stays put")
}

func TestRelease_Idempotent(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "memories.eng")
	lock, err := acquireLock(storePath, slog.Default())
	require.NoError(t, err)

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())
}

func TestProcessAlive(t *testing.T) {
	assert.True(t, processAlive(os.Getpid()))
	assert.False(t, processAlive(-1))
	assert.False(t, processAlive(0))
}

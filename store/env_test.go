package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/config"
	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Path = filepath.Join(t.TempDir(), "chatstore.db")
	cfg.InitialMmapSizeMB = 1
	cfg.ConservativeMmapSizeMB = 1
	return cfg
}

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	env := NewEnv(testConfig(t), logging.NoOpLogger{})
	t.Cleanup(func() { _ = env.Close() })
	return env
}

// seedSession inserts a session directly so repository tests can satisfy the
// referential check without going through SessionStore.
func seedSession(t *testing.T, env *Env, id string) {
	t.Helper()
	sess := core.NewSession(id, "test session")
	data, err := encodeSession(sess)
	require.NoError(t, err)
	require.NoError(t, env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(id), data)
	}))
}

func TestEnv_LazyOpenCreatesPartitions(t *testing.T) {
	env := newTestEnv(t)
	err := env.View(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			require.NotNil(t, tx.Bucket(name), "partition %s missing", name)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestEnv_ReopenAfterClose(t *testing.T) {
	env := newTestEnv(t)
	seedSession(t, env, "s1")
	require.NoError(t, env.Close())

	// Lazy reopen on next transaction.
	err := env.View(func(tx *bolt.Tx) error {
		require.NotNil(t, tx.Bucket(bucketSessions).Get([]byte("s1")))
		return nil
	})
	require.NoError(t, err)
}

func TestEnv_RecoveryFromCorruptFile(t *testing.T) {
	cfg := testConfig(t)
	garbage := strings.Repeat("not a database", 4096)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Path), 0o755))
	require.NoError(t, os.WriteFile(cfg.Path, []byte(garbage), 0o600))

	env := NewEnv(cfg, logging.NoOpLogger{})
	defer env.Close()

	err := env.View(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			require.NotNil(t, tx.Bucket(name))
		}
		return nil
	})
	require.NoError(t, err)

	// The damaged file was moved aside, not destroyed.
	entries, err := os.ReadDir(filepath.Dir(cfg.Path))
	require.NoError(t, err)
	var asideFound bool
	for _, e := range entries {
		if strings.Contains(e.Name(), ".corrupt-") {
			asideFound = true
		}
	}
	require.True(t, asideFound, "corrupt file should be preserved aside")
}

func TestEnv_RecoveryRestoresSnapshot(t *testing.T) {
	cfg := testConfig(t)

	env := NewEnv(cfg, logging.NoOpLogger{})
	seedSession(t, env, "survivor")
	require.NoError(t, env.Close())

	// A clean reopen refreshes the snapshot with the committed session.
	env2 := NewEnv(cfg, logging.NoOpLogger{})
	require.NoError(t, env2.View(func(tx *bolt.Tx) error { return nil }))
	require.NoError(t, env2.Close())

	// Garble the data file and reopen: recovery must restore the snapshot
	// instead of silently recreating an empty environment.
	require.NoError(t, os.WriteFile(cfg.Path, []byte(strings.Repeat("x", 65536)), 0o600))

	env3 := NewEnv(cfg, logging.NoOpLogger{})
	defer env3.Close()
	err := env3.View(func(tx *bolt.Tx) error {
		require.NotNil(t, tx.Bucket(bucketSessions).Get([]byte("survivor")), "committed data lost in recovery")
		return nil
	})
	require.NoError(t, err)
}

func TestEnv_ContendedOpenLeavesDataUntouched(t *testing.T) {
	cfg := testConfig(t)
	cfg.LockTimeout = 50 * time.Millisecond

	env := NewEnv(cfg, logging.NoOpLogger{})
	seedSession(t, env, "committed")
	require.NoError(t, env.Close())

	// Another handle holds the file lock on the healthy database.
	holder, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)

	contender := NewEnv(cfg, logging.NoOpLogger{})
	t.Cleanup(func() { _ = contender.Close() })
	err = contender.View(func(tx *bolt.Tx) error { return nil })
	require.ErrorIs(t, err, core.ErrStoreUnavailable)

	// The lock timeout must not be treated as corruption: the data file stays
	// in place and no corrupt-aside copy appears.
	entries, err := os.ReadDir(filepath.Dir(cfg.Path))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".corrupt-")
	}
	_, err = os.Stat(cfg.Path)
	require.NoError(t, err)

	// Once the holder releases the lock the same env opens and every commit
	// is still there.
	require.NoError(t, holder.Close())
	err = contender.View(func(tx *bolt.Tx) error {
		require.NotNil(t, tx.Bucket(bucketSessions).Get([]byte("committed")), "committed data lost after a lock timeout")
		return nil
	})
	require.NoError(t, err)
}

func TestEnv_FatalWhenDirectoryUncreatable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("file"), 0o600))

	cfg := config.Default()
	cfg.Path = filepath.Join(blocker, "nested", "chatstore.db")
	env := NewEnv(cfg, logging.NoOpLogger{})

	err := env.View(func(tx *bolt.Tx) error { return nil })
	require.ErrorIs(t, err, core.ErrStoreUnavailable)

	// Fatal state is sticky.
	err = env.Update(func(tx *bolt.Tx) error { return nil })
	require.ErrorIs(t, err, core.ErrStoreUnavailable)
}

func TestIsCorruptionSignal(t *testing.T) {
	require.True(t, isCorruptionSignal(bolt.ErrChecksum))
	require.True(t, isCorruptionSignal(bolt.ErrInvalid))
	require.False(t, isCorruptionSignal(os.ErrPermission))
}

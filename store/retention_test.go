package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/internal/testutil"
)

func TestRetention_SweepMessages(t *testing.T) {
	env := newTestEnv(t)
	messages := NewMessageStore(env)
	retention := NewRetention(env, messages, nil)

	seedSession(t, env, "s1")
	seedSession(t, env, "s2")
	createSequence(t, messages, "s1", 7)
	createSequence(t, messages, "s2", 3)

	deleted, err := retention.SweepMessages(5)
	require.NoError(t, err)
	require.Equal(t, 2, deleted, "only the session over the cap is trimmed")

	page, err := messages.ListBySession("s1", core.ListOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)

	page, err = messages.ListBySession("s2", core.ListOptions{Limit: 100})
	require.NoError(t, err)
	require.Len(t, page.Messages, 3)

	// A second sweep finds nothing to do.
	deleted, err = retention.SweepMessages(5)
	require.NoError(t, err)
	require.Zero(t, deleted)
}

func TestRetention_SweepExpiredContexts(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)
	retention := NewRetention(env, NewMessageStore(env), nil)

	// Five expired session-scoped contexts, one live, one expired without a
	// session. Batch size of 2 forces multiple collect/delete rounds.
	for i := 0; i < 5; i++ {
		_, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Session("s1").TTL(0).Build())
		require.NoError(t, err)
	}
	live, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Session("s1").TTL(60).Build())
	require.NoError(t, err)
	_, err = contexts.Create(testutil.NewContextBuilder("a1", "a2").TTL(0).Build())
	require.NoError(t, err)

	deleted, err := retention.SweepExpiredContexts(2)
	require.NoError(t, err)
	require.Equal(t, 6, deleted)

	// Primary rows and session index entries are both down to the survivor.
	require.NoError(t, env.View(func(tx *bolt.Tx) error {
		require.EqualValues(t, 1, tx.Bucket(bucketSharedContexts).Stats().KeyN)
		require.EqualValues(t, 1, tx.Bucket(bucketContextBySession).Stats().KeyN)
		return nil
	}))

	remaining, err := contexts.ListBySession("s1", true)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, live.ID, remaining[0].ID)
}

func TestRetention_SweepExpiredContextsEmpty(t *testing.T) {
	env := newTestEnv(t)
	retention := NewRetention(env, NewMessageStore(env), nil)

	deleted, err := retention.SweepExpiredContexts(0)
	require.NoError(t, err)
	require.Zero(t, deleted)
}

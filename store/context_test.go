package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chatmesh/chatstore/core"
	"github.com/chatmesh/chatstore/internal/testutil"
)

func TestContextStore_CreateAndGet(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	created, err := contexts.Create(testutil.NewContextBuilder("planner", "executor").
		Session("s1").
		Type(core.ContextTypeSummary).
		Content("summary", "the plan so far").
		Build())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.False(t, created.CreatedAt.IsZero())

	got, err := contexts.Get(created.ID)
	require.NoError(t, err)
	require.Equal(t, "planner", got.SourceAgentID)
	require.Equal(t, "executor", got.TargetAgentID)
	require.Equal(t, core.ContextTypeSummary, got.ContextType)
	require.Equal(t, "the plan so far", got.Content["summary"])
}

func TestContextStore_ExpiredExcludedFromLists(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	// TTL of zero minutes expires the context immediately.
	expired, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Session("s1").TTL(0).Build())
	require.NoError(t, err)
	live, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Session("s1").TTL(60).Build())
	require.NoError(t, err)

	visible, err := contexts.ListBySession("s1", false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, live.ID, visible[0].ID)

	all, err := contexts.ListBySession("s1", true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Get ignores expiry; TTL state is the caller's concern on point reads.
	_, err = contexts.Get(expired.ID)
	require.NoError(t, err)

	byAgent, err := contexts.ListByAgent("a2", core.AgentContextFilter{})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)

	byAgentAll, err := contexts.ListByAgent("a2", core.AgentContextFilter{IncludeExpired: true})
	require.NoError(t, err)
	require.Len(t, byAgentAll, 2)
}

func TestContextStore_ExtendTTLMonotonic(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	created, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").TTL(0).Build())
	require.NoError(t, err)

	before := time.Now().UTC()
	first, err := contexts.ExtendTTL(created.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, first.ExpiresAt)
	// Expired context extends from now, not the stale expiry.
	require.False(t, first.ExpiresAt.Before(before.Add(10*time.Minute)))

	second, err := contexts.ExtendTTL(created.ID, 10)
	require.NoError(t, err)
	// Live context extends from its current expiry: strictly monotonic even
	// in quick succession.
	require.False(t, second.ExpiresAt.Before(first.ExpiresAt.Add(10*time.Minute)))

	history, ok := second.Metadata["ttl_extensions"].([]any)
	require.True(t, ok)
	require.Len(t, history, 2)
}

func TestContextStore_ExtendTTLNotFound(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)
	_, err := contexts.ExtendTTL("missing", 5)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestContextStore_UpdateMerges(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	created, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").
		Content("k", "v").
		TTL(60).
		Build())
	require.NoError(t, err)
	created.Metadata = nil

	full := core.ContextTypeFull
	updated, err := contexts.Update(created.ID, core.ContextPatch{
		ContextType: &full,
		Content:     map[string]any{"k2": "v2"},
		Metadata:    map[string]any{"origin": "merge"},
	})
	require.NoError(t, err)
	require.Equal(t, core.ContextTypeFull, updated.ContextType)
	// Content replaces wholesale; metadata merges.
	require.Nil(t, updated.Content["k"])
	require.Equal(t, "v2", updated.Content["k2"])
	require.Equal(t, "merge", updated.Metadata["origin"])
	require.NotNil(t, updated.ExpiresAt, "unpatched fields are retained")

	cleared, err := contexts.Update(created.ID, core.ContextPatch{ClearExpiry: true})
	require.NoError(t, err)
	require.Nil(t, cleared.ExpiresAt)
}

func TestContextStore_ListByAgentFilters(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	mk := func(source, target, session string) {
		_, err := contexts.Create(testutil.NewContextBuilder(source, target).Session(session).Build())
		require.NoError(t, err)
	}
	mk("planner", "executor", "s1")
	mk("planner", "executor", "s2")
	mk("critic", "executor", "s1")
	mk("planner", "observer", "s1")

	all, err := contexts.ListByAgent("executor", core.AgentContextFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	bySession, err := contexts.ListByAgent("executor", core.AgentContextFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, bySession, 2)

	bySource, err := contexts.ListByAgent("executor", core.AgentContextFilter{SourceAgentID: "planner"})
	require.NoError(t, err)
	require.Len(t, bySource, 2)

	narrow, err := contexts.ListByAgent("executor", core.AgentContextFilter{SessionID: "s1", SourceAgentID: "planner"})
	require.NoError(t, err)
	require.Len(t, narrow, 1)
}

func TestContextStore_DeleteRemovesIndexEntry(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	created, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Session("s1").Build())
	require.NoError(t, err)

	require.NoError(t, contexts.Delete(created.ID))
	_, err = contexts.Get(created.ID)
	require.ErrorIs(t, err, core.ErrNotFound)

	remaining, err := contexts.ListBySession("s1", true)
	require.NoError(t, err)
	require.Empty(t, remaining)

	require.ErrorIs(t, contexts.Delete(created.ID), core.ErrNotFound)
}

func TestContextStore_SessionlessContextNotIndexed(t *testing.T) {
	env := newTestEnv(t)
	contexts := NewContextStore(env)

	created, err := contexts.Create(testutil.NewContextBuilder("a1", "a2").Build())
	require.NoError(t, err)

	// Reachable by agent, invisible to any session listing.
	byAgent, err := contexts.ListByAgent("a2", core.AgentContextFilter{})
	require.NoError(t, err)
	require.Len(t, byAgent, 1)
	require.Equal(t, created.ID, byAgent[0].ID)

	bySession, err := contexts.ListBySession("", true)
	require.NoError(t, err)
	require.Empty(t, bySession)
}

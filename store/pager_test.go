package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

// fillIndex writes n index entries under partitionKey with timestamps one
// second apart, ids "id-0".."id-n-1", returning the timestamp segments.
func fillIndex(t *testing.T, env *Env, partitionKey string, n int) []string {
	t.Helper()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	segs := make([]string, n)
	err := env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketMessageBySession)
		for i := 0; i < n; i++ {
			ts := base.Add(time.Duration(i) * time.Second)
			segs[i] = encodeTimestamp(ts)
			id := "id-" + string(rune('0'+i))
			if err := bkt.Put(indexKey(partitionKey, ts, id), []byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return segs
}

func scanFor(t *testing.T, env *Env, req pageRequest) pageResult {
	t.Helper()
	var res pageResult
	err := env.View(func(tx *bolt.Tx) error {
		var err error
		res, err = scanIndex(tx.Bucket(bucketMessageBySession), req)
		return err
	})
	require.NoError(t, err)
	return res
}

func TestScanIndex_AscendingAndDescending(t *testing.T) {
	env := newTestEnv(t)
	fillIndex(t, env, "s1", 5)
	fillIndex(t, env, "s2", 3) // must not bleed into s1 scans

	asc := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 10})
	require.Equal(t, []string{"id-0", "id-1", "id-2", "id-3", "id-4"}, asc.ids)
	require.Empty(t, asc.nextCursor, "exhausted scan should not return a cursor")

	desc := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 10, descending: true})
	require.Equal(t, []string{"id-4", "id-3", "id-2", "id-1", "id-0"}, desc.ids)
}

func TestScanIndex_SkipAndLimit(t *testing.T) {
	env := newTestEnv(t)
	fillIndex(t, env, "s1", 5)

	res := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), skip: 1, limit: 2})
	require.Equal(t, []string{"id-1", "id-2"}, res.ids)
	require.NotEmpty(t, res.nextCursor)
}

func TestScanIndex_CursorContinuation(t *testing.T) {
	env := newTestEnv(t)
	fillIndex(t, env, "s1", 5)

	first := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 2})
	require.Equal(t, []string{"id-0", "id-1"}, first.ids)
	require.NotEmpty(t, first.nextCursor)

	rest := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 10, cursor: first.nextCursor})
	require.Equal(t, []string{"id-2", "id-3", "id-4"}, rest.ids)
}

func TestScanIndex_CursorSurvivesDeletedBoundary(t *testing.T) {
	env := newTestEnv(t)
	segs := fillIndex(t, env, "s1", 5)

	first := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 2})
	require.Equal(t, segs[1]+":id-1", first.nextCursor)

	// Delete the boundary entry; continuation must fall back to the nearest
	// key in the scan direction instead of failing.
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := env.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessageBySession).Delete(indexKey("s1", base.Add(time.Second), "id-1"))
	})
	require.NoError(t, err)

	rest := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 10, cursor: first.nextCursor})
	require.Equal(t, []string{"id-2", "id-3", "id-4"}, rest.ids)
}

func TestScanIndex_SameNanosecondAcrossPages(t *testing.T) {
	env := newTestEnv(t)
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Three entries sharing one timestamp; pagination must not drop any.
	err := env.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketMessageBySession)
		for _, id := range []string{"id-a", "id-b", "id-c"} {
			if err := bkt.Put(indexKey("s1", ts, id), []byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var ids []string
	cursor := ""
	for {
		res := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 1, cursor: cursor})
		if len(res.ids) == 0 {
			break
		}
		ids = append(ids, res.ids...)
		if res.nextCursor == "" {
			break
		}
		cursor = res.nextCursor
	}
	require.Equal(t, []string{"id-a", "id-b", "id-c"}, ids)

	// Same walk, reverse direction.
	ids = nil
	cursor = ""
	for {
		res := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 1, cursor: cursor, descending: true})
		if len(res.ids) == 0 {
			break
		}
		ids = append(ids, res.ids...)
		if res.nextCursor == "" {
			break
		}
		cursor = res.nextCursor
	}
	require.Equal(t, []string{"id-c", "id-b", "id-a"}, ids)
}

func TestScanIndex_DescendingCursor(t *testing.T) {
	env := newTestEnv(t)
	fillIndex(t, env, "s1", 5)

	first := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 2, descending: true})
	require.Equal(t, []string{"id-4", "id-3"}, first.ids)

	rest := scanFor(t, env, pageRequest{prefix: indexPrefix("s1"), limit: 10, cursor: first.nextCursor, descending: true})
	require.Equal(t, []string{"id-2", "id-1", "id-0"}, rest.ids)
}

func TestScanIndex_EmptyPrefix(t *testing.T) {
	env := newTestEnv(t)
	res := scanFor(t, env, pageRequest{prefix: indexPrefix("absent"), limit: 5})
	require.Empty(t, res.ids)
	require.Empty(t, res.nextCursor)

	res = scanFor(t, env, pageRequest{prefix: indexPrefix("absent"), limit: 5, descending: true})
	require.Empty(t, res.ids)
}

func TestCountPrefix(t *testing.T) {
	env := newTestEnv(t)
	fillIndex(t, env, "s1", 4)
	fillIndex(t, env, "s2", 2)

	err := env.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketMessageBySession)
		require.Equal(t, 4, countPrefix(bkt, indexPrefix("s1")))
		require.Equal(t, 2, countPrefix(bkt, indexPrefix("s2")))
		require.Equal(t, 0, countPrefix(bkt, indexPrefix("s3")))
		return nil
	})
	require.NoError(t, err)
}

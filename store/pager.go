package store

import (
	"bytes"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// pageRequest drives one direction-aware scan over an index partition.
// cursor, when set, is the `paddedTimestamp:id` boundary of the last row a
// previous page returned; iteration resumes strictly past it, so rows sharing
// the boundary nanosecond never straddle pages. A cursor whose key has since
// been deleted still positions correctly because comparison is against each
// key's suffix, not a stored key.
type pageRequest struct {
	prefix     []byte
	skip       int
	limit      int
	cursor     string
	descending bool
}

// pageResult carries the resolved entity ids in scan order plus the
// continuation cursor (empty once the listing could be exhausted).
type pageResult struct {
	ids        []string
	nextCursor string
}

// scanIndex walks the index bucket for req.prefix collecting up to req.limit
// entity ids. Keys under the prefix are `prefix || paddedNanos : id`, so
// byte order equals chronological order and reverse iteration yields
// reverse-chronological order.
func scanIndex(bkt *bolt.Bucket, req pageRequest) (pageResult, error) {
	var res pageResult
	if req.limit <= 0 {
		return res, nil
	}

	c := bkt.Cursor()
	var k []byte
	advance := c.Next
	if req.descending {
		advance = c.Prev
		k = seekLast(c, req.prefix)
	} else {
		k, _ = c.Seek(req.prefix)
	}

	skip := req.skip
	for ; k != nil && bytes.HasPrefix(k, req.prefix); k, _ = advance() {
		if len(k) < len(req.prefix)+tsDigits+1 {
			return pageResult{}, fmt.Errorf("store: malformed index key %q", k)
		}
		// The suffix is `paddedNanos:id`; its byte order equals the key order
		// under the prefix, so comparing suffixes resumes exactly one row past
		// the boundary even when several rows share a nanosecond.
		suffix := string(k[len(req.prefix):])
		id := suffix[tsDigits+1:]

		if req.cursor != "" {
			if !req.descending && suffix <= req.cursor {
				continue
			}
			if req.descending && suffix >= req.cursor {
				continue
			}
		}
		if skip > 0 {
			skip--
			continue
		}

		res.ids = append(res.ids, id)
		if len(res.ids) == req.limit {
			res.nextCursor = suffix
			break
		}
	}
	return res, nil
}

// seekLast positions the cursor at the last key under prefix, or nil when the
// prefix range is empty.
func seekLast(c *bolt.Cursor, prefix []byte) []byte {
	after := prefixSuccessor(prefix)
	var k []byte
	if after == nil {
		k, _ = c.Last()
	} else {
		k, _ = c.Seek(after)
		if k == nil {
			k, _ = c.Last()
		} else {
			k, _ = c.Prev()
		}
	}
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return nil
	}
	return k
}

// prefixSuccessor returns the smallest byte string greater than every key
// with the given prefix, or nil if no such string exists (all 0xff).
func prefixSuccessor(prefix []byte) []byte {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] != 0xff {
			succ := make([]byte, i+1)
			copy(succ, prefix[:i+1])
			succ[i]++
			return succ
		}
	}
	return nil
}

// countPrefix counts every entry under prefix. Bounded by per-partition-key
// cardinality; callers opt in per request.
func countPrefix(bkt *bolt.Bucket, prefix []byte) int {
	c := bkt.Cursor()
	n := 0
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		n++
	}
	return n
}

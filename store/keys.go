package store

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Index keys are `partitionKey:paddedNanos:id`. The timestamp is zero-padded
// to a fixed width so lexicographic bucket order equals chronological order.
// Partition keys (session/agent ids) must not contain the separator; ids
// generated by core.NewID never do.

const (
	keySep   = ':'
	tsDigits = 20 // fits any int64 nanosecond value
)

// encodeTimestamp renders ts as a fixed-width decimal of its Unix nanos.
func encodeTimestamp(ts time.Time) string {
	return fmt.Sprintf("%0*d", tsDigits, ts.UnixNano())
}

// decodeTimestamp parses the fixed-width form back into a UTC time.
func decodeTimestamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: bad timestamp segment %q: %w", s, err)
	}
	return time.Unix(0, n).UTC(), nil
}

// indexKey builds the composite key for one index entry.
func indexKey(partitionKey string, ts time.Time, id string) []byte {
	buf := make([]byte, 0, len(partitionKey)+1+tsDigits+1+len(id))
	buf = append(buf, partitionKey...)
	buf = append(buf, keySep)
	buf = append(buf, encodeTimestamp(ts)...)
	buf = append(buf, keySep)
	buf = append(buf, id...)
	return buf
}

// indexPrefix is the range prefix covering every entry for partitionKey.
func indexPrefix(partitionKey string) []byte {
	return append([]byte(partitionKey), keySep)
}

// decodeIndexKey splits a composite key into its timestamp segment and entity
// id. The partition key itself is implied by the scan prefix and not returned.
func decodeIndexKey(key []byte) (ts time.Time, id string, err error) {
	// id never contains the separator; the partition key may, so parse from
	// the right.
	last := bytes.LastIndexByte(key, keySep)
	if last < 0 {
		return time.Time{}, "", fmt.Errorf("store: malformed index key %q", key)
	}
	id = string(key[last+1:])
	rest := key[:last]
	if len(rest) < tsDigits {
		return time.Time{}, "", fmt.Errorf("store: malformed index key %q", key)
	}
	ts, err = decodeTimestamp(string(rest[len(rest)-tsDigits:]))
	if err != nil {
		return time.Time{}, "", err
	}
	return ts, id, nil
}

// linkKey builds a task_agents key. The direction prefix keeps both orderings
// of the many-to-many link in one partition.
func linkKey(direction byte, left, right string) []byte {
	buf := make([]byte, 0, 2+len(left)+1+len(right))
	buf = append(buf, direction, keySep)
	buf = append(buf, left...)
	buf = append(buf, keySep)
	buf = append(buf, right...)
	return buf
}

// linkPrefix covers every link entry under the direction prefix for left.
func linkPrefix(direction byte, left string) []byte {
	buf := make([]byte, 0, 2+len(left)+1)
	buf = append(buf, direction, keySep)
	buf = append(buf, left...)
	buf = append(buf, keySep)
	return buf
}

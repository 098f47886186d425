// Package lock serializes work per batch id, either inside one process or
// across ledger instances sharing a Redis.
package lock

import (
	"context"
	"errors"
	"sort"
)

// ErrNotObtained is returned when a lock could not be acquired in time
var ErrNotObtained = errors.New("lock not obtained")

// Locker acquires exclusive locks on a set of batch ids. The returned
// release function must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, ids ...uint64) (release func(), err error)
}

// normalize sorts and deduplicates ids so that every caller acquires locks
// in the same global order
func normalize(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	uniq := out[:0]
	for i, id := range out {
		if i > 0 && id == out[i-1] {
			continue
		}
		uniq = append(uniq, id)
	}
	return uniq
}

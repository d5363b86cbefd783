package crdt

import "time"

// TombstoneRetention is how long a deletion is remembered: long enough for
// every member to have seen it through push/pull syncs.
const TombstoneRetention = 8 * time.Hour

// Horizon returns the deletion time before which tombstones can be
// forgotten: the start of the retention window now falls in.
func Horizon(now time.Time) int64 {
	return now.Truncate(TombstoneRetention).UnixNano()
}

// IsTombstoneExpired reports whether entry is removed, and was removed before
// horizon.
func IsTombstoneExpired(entry Entry, horizon int64) bool {
	return IsEntryRemoved(entry) && entry.GetLastDeleted() < horizon
}

// Expired returns the keys of the entries whose tombstone expired.
func Expired(horizon int64, entries []Entry) []string {
	keys := []string{}
	for _, entry := range entries {
		if IsTombstoneExpired(entry, horizon) {
			keys = append(keys, entry.GetKey())
		}
	}
	return keys
}

package crdt

// An Entry is a last-writer-wins register: it holds the time it was last
// written and the time it was last deleted, both as unix nanoseconds.
type Entry interface {
	GetKey() string
	GetLastAdded() int64
	GetLastDeleted() int64
}

// A ValuedEntry also exposes the value it carries, used to break ties between
// writes stamped with the same time.
type ValuedEntry interface {
	Entry
	GetValue() string
}

func IsEntryAdded(s Entry) bool {
	return s.GetLastAdded() > 0 && s.GetLastAdded() > s.GetLastDeleted()
}
func IsEntryRemoved(s Entry) bool {
	return s.GetLastDeleted() > 0 && s.GetLastAdded() < s.GetLastDeleted()
}

func GetLastEntryUpdate(s Entry) int64 {
	if s.GetLastAdded() > s.GetLastDeleted() {
		return s.GetLastAdded()
	}
	return s.GetLastDeleted()
}

func IsEntryOutdated(s Entry, remote Entry) (outdated bool) {
	return GetLastEntryUpdate(s) < GetLastEntryUpdate(remote)
}

// Supersedes reports whether remote must replace local. Writes stamped with
// the same time are ordered so that every replica picks the same winner: a
// deletion beats a write, and between two writes the greater value wins.
func Supersedes(local, remote ValuedEntry) bool {
	if local == nil {
		return true
	}
	localUpdate, remoteUpdate := GetLastEntryUpdate(local), GetLastEntryUpdate(remote)
	if localUpdate != remoteUpdate {
		return localUpdate < remoteUpdate
	}
	localAdded, remoteAdded := IsEntryAdded(local), IsEntryAdded(remote)
	if localAdded != remoteAdded {
		return !remoteAdded
	}
	if !remoteAdded {
		return false
	}
	return remote.GetValue() > local.GetValue()
}

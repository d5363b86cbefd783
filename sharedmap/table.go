package sharedmap

import "github.com/google/btree"

type item struct {
	key   string
	value string
}

func (i item) Less(than btree.Item) bool {
	return i.key < than.(item).key
}

// Table is an ordered string map. It is not safe for concurrent use.
type Table struct {
	tree *btree.BTree
}

func NewTable() *Table {
	return &Table{tree: btree.New(32)}
}

func (t *Table) Get(key string) (string, bool) {
	found := t.tree.Get(item{key: key})
	if found == nil {
		return "", false
	}
	return found.(item).value, true
}

// Set stores value and returns the previous one, if any.
func (t *Table) Set(key, value string) (string, bool) {
	old := t.tree.ReplaceOrInsert(item{key: key, value: value})
	if old == nil {
		return "", false
	}
	return old.(item).value, true
}

func (t *Table) Delete(key string) (string, bool) {
	old := t.tree.Delete(item{key: key})
	if old == nil {
		return "", false
	}
	return old.(item).value, true
}

// Range visits entries in ascending key order until f returns false.
func (t *Table) Range(f func(key, value string) bool) {
	t.tree.Ascend(func(i btree.Item) bool {
		entry := i.(item)
		return f(entry.key, entry.value)
	})
}

func (t *Table) Keys() []string {
	out := make([]string, 0, t.tree.Len())
	t.Range(func(key, _ string) bool {
		out = append(out, key)
		return true
	})
	return out
}

func (t *Table) Len() int {
	return t.tree.Len()
}

func (t *Table) Clear() {
	t.tree.Clear(false)
}

package sharedmap

import "strings"

type namespace struct {
	prefix string
	m      Map
}

// Namespace exposes the keys of m starting with prefix as a map of their
// own, with the prefix stripped. Clear only removes the namespace's keys, one
// at a time.
func Namespace(m Map, prefix string) Map {
	return &namespace{prefix: prefix, m: m}
}

func (n *namespace) Get(key string) (string, bool) {
	return n.m.Get(n.prefix + key)
}

func (n *namespace) Has(key string) bool {
	return n.m.Has(n.prefix + key)
}

func (n *namespace) Set(key, value string) error {
	return n.m.Set(n.prefix+key, value)
}

func (n *namespace) Delete(key string) (bool, error) {
	return n.m.Delete(n.prefix + key)
}

func (n *namespace) Range(f func(key, value string) bool) {
	n.m.Range(func(key, value string) bool {
		if !strings.HasPrefix(key, n.prefix) {
			return true
		}
		return f(strings.TrimPrefix(key, n.prefix), value)
	})
}

func (n *namespace) Len() int {
	count := 0
	n.Range(func(string, string) bool {
		count++
		return true
	})
	return count
}

func (n *namespace) Clear() error {
	keys := []string{}
	n.Range(func(key, _ string) bool {
		keys = append(keys, key)
		return true
	})
	for _, key := range keys {
		if _, err := n.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (n *namespace) Subscribe(f func(ValueChanged)) func() {
	return n.m.Subscribe(func(ev ValueChanged) {
		if !strings.HasPrefix(ev.Key, n.prefix) {
			return
		}
		ev.Key = strings.TrimPrefix(ev.Key, n.prefix)
		f(ev)
	})
}

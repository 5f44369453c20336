// Package kv is the persisted key-value medium the tracker stores its state
// in: string keys, string payloads, plus a "key changed" notification so
// other contexts sharing the same medium can converge.
package kv

// Change describes a mutation of one key. Value is nil on deletion.
type Change struct {
	Key   string
	Value *string
}

// Store is the minimal persisted key-value contract. Implementations notify
// subscribers on every Set and Remove; subscribers must not block.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	// Subscribe registers fn for change notifications and returns an
	// unsubscribe function.
	Subscribe(fn func(Change)) func()
}

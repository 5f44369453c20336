// Package storage wraps values stored in the key-value medium in a
// versioned envelope and owns the migration chain that upgrades older
// payloads on read. Nothing here throws at the caller: corrupt or
// forward-incompatible payloads are discarded to defaults, with the raw
// value archived under a side key for post-mortem inspection.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ozgurcan/studyr/internal/kv"
)

// corruptSuffix is appended to a key when its raw payload is archived.
const corruptSuffix = "!corrupt"

// Envelope is the persisted wrapper around every logical object.
type Envelope struct {
	Version   int             `json:"version"`
	UpdatedAt string          `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`
}

// Migration upgrades a payload from one schema version to the next.
type Migration func(json.RawMessage) (json.RawMessage, error)

// Codec reads and writes one key's envelope.
type Codec struct {
	store      kv.Store
	key        string
	version    int
	migrations map[int]Migration // fromVersion -> migrate
	validate   func(json.RawMessage) error
}

func NewCodec(store kv.Store, key string, version int, migrations map[int]Migration, validate func(json.RawMessage) error) *Codec {
	return &Codec{
		store:      store,
		key:        key,
		version:    version,
		migrations: migrations,
		validate:   validate,
	}
}

func (c *Codec) Key() string { return c.key }

// LoadRaw reads, migrates and validates the stored payload. ok is false when
// the key is absent or its contents had to be discarded.
func (c *Codec) LoadRaw() (data json.RawMessage, ok bool) {
	raw, found, err := c.store.Get(c.key)
	if err != nil || !found {
		return nil, false
	}
	return c.Open([]byte(raw))
}

// Open runs the envelope/migration/validation pipeline against a raw
// payload (either freshly read or delivered by a change notification).
func (c *Codec) Open(raw []byte) (data json.RawMessage, ok bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		c.archive(raw)
		return nil, false
	}

	// A payload written by a newer schema is forward-incompatible.
	if env.Version > c.version {
		return nil, false
	}

	data = env.Data
	for v := env.Version; v < c.version; v++ {
		migrate, found := c.migrations[v]
		if !found {
			return nil, false
		}
		migrated, err := migrate(data)
		if err != nil {
			c.archive(raw)
			return nil, false
		}
		data = migrated
	}

	if c.validate != nil {
		if err := c.validate(data); err != nil {
			c.archive(raw)
			return nil, false
		}
	}
	return data, true
}

// SaveRaw marshals v, wraps it in an envelope at the current version and
// persists the whole thing. Writes are always full envelopes, never patches.
func (c *Codec) SaveRaw(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.key, err)
	}
	env := Envelope{
		Version:   c.version,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", c.key, err)
	}
	if err := c.store.Set(c.key, string(raw)); err != nil {
		return fmt.Errorf("persist %s: %w", c.key, err)
	}
	return nil
}

func (c *Codec) Remove() error {
	return c.store.Remove(c.key)
}

// archive stashes an unreadable payload under a side key, best effort.
func (c *Codec) archive(raw []byte) {
	_ = c.store.Set(c.key+corruptSuffix, string(raw))
}

// Load decodes the codec's payload into T, falling back to defaults when the
// key is absent, discarded or undecodable.
func Load[T any](c *Codec, defaults func() T) T {
	raw, ok := c.LoadRaw()
	if !ok {
		return defaults()
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.archive(raw)
		return defaults()
	}
	return v
}

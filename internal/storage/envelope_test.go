package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ozgurcan/studyr/internal/kv"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func defaults() testDoc { return testDoc{Name: "default"} }

func newCodec(t *testing.T, version int, migrations map[int]Migration, validate func(json.RawMessage) error) (*Codec, *kv.Memory) {
	t.Helper()
	store := kv.NewMemoryMap()
	return NewCodec(store, "doc", version, migrations, validate), store
}

// ============================================================
// Round trip
// ============================================================

func TestSaveAndLoad(t *testing.T) {
	c, _ := newCodec(t, 1, nil, nil)

	if err := c.SaveRaw(testDoc{Name: "x", Count: 3}); err != nil {
		t.Fatal(err)
	}
	got := Load(c, defaults)
	if got.Name != "x" || got.Count != 3 {
		t.Fatalf("unexpected doc: %+v", got)
	}
}

func TestLoadMissingKeyReturnsDefaults(t *testing.T) {
	c, _ := newCodec(t, 1, nil, nil)
	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestEnvelopeShape(t *testing.T) {
	c, store := newCodec(t, 2, nil, nil)
	c.SaveRaw(testDoc{Name: "x"})

	raw, ok, _ := store.Get("doc")
	if !ok {
		t.Fatal("key missing")
	}
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatal(err)
	}
	if env.Version != 2 {
		t.Fatalf("version = %d, want 2", env.Version)
	}
	if env.UpdatedAt == "" {
		t.Fatal("updatedAt should be stamped")
	}
}

// ============================================================
// Corruption
// ============================================================

func TestLoadUnparsablePayload(t *testing.T) {
	c, store := newCodec(t, 1, nil, nil)
	store.Set("doc", "{not json")

	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("expected defaults, got %+v", got)
	}

	// Raw value archived under the side key.
	archived, ok, _ := store.Get("doc" + corruptSuffix)
	if !ok || archived != "{not json" {
		t.Fatalf("corrupt payload not archived: (%q, %v)", archived, ok)
	}
}

func TestLoadWrongEnvelopeShape(t *testing.T) {
	c, store := newCodec(t, 1, nil, nil)
	store.Set("doc", `{"version":1}`) // no data field

	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestValidatorFailureDiscards(t *testing.T) {
	validate := func(data json.RawMessage) error {
		var d testDoc
		if err := json.Unmarshal(data, &d); err != nil {
			return err
		}
		if d.Count < 0 {
			return errors.New("negative count")
		}
		return nil
	}
	c, _ := newCodec(t, 1, nil, validate)

	c.SaveRaw(testDoc{Name: "bad", Count: -1})
	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("validator should have discarded: %+v", got)
	}

	c.SaveRaw(testDoc{Name: "good", Count: 1})
	got = Load(c, defaults)
	if got.Name != "good" {
		t.Fatalf("valid doc should load: %+v", got)
	}
}

// ============================================================
// Versioning
// ============================================================

func TestForwardVersionDiscarded(t *testing.T) {
	c, store := newCodec(t, 1, nil, nil)
	store.Set("doc", `{"version":9,"updatedAt":"2026-01-01T00:00:00Z","data":{"name":"future"}}`)

	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("forward-incompatible payload should discard to defaults, got %+v", got)
	}
	// Not corruption — nothing archived.
	if _, ok, _ := store.Get("doc" + corruptSuffix); ok {
		t.Fatal("forward version should not be archived as corrupt")
	}
}

func TestMigrationChain(t *testing.T) {
	// v1 stored {"label": ...}; v2 renamed it to name; v3 added count.
	migrations := map[int]Migration{
		1: func(data json.RawMessage) (json.RawMessage, error) {
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, err
			}
			m["name"] = m["label"]
			delete(m, "label")
			return json.Marshal(m)
		},
		2: func(data json.RawMessage) (json.RawMessage, error) {
			var m map[string]any
			if err := json.Unmarshal(data, &m); err != nil {
				return nil, err
			}
			m["count"] = 1
			return json.Marshal(m)
		},
	}
	c, store := newCodec(t, 3, migrations, nil)
	store.Set("doc", `{"version":1,"updatedAt":"2025-01-01T00:00:00Z","data":{"label":"old"}}`)

	got := Load(c, defaults)
	if got.Name != "old" || got.Count != 1 {
		t.Fatalf("migration chain failed: %+v", got)
	}
}

func TestMissingMigrationDiscards(t *testing.T) {
	c, store := newCodec(t, 3, map[int]Migration{}, nil)
	store.Set("doc", `{"version":1,"updatedAt":"2025-01-01T00:00:00Z","data":{"name":"old"}}`)

	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("unmigratable version should discard, got %+v", got)
	}
}

func TestFailingMigrationArchives(t *testing.T) {
	migrations := map[int]Migration{
		1: func(json.RawMessage) (json.RawMessage, error) {
			return nil, fmt.Errorf("boom")
		},
	}
	c, store := newCodec(t, 2, migrations, nil)
	store.Set("doc", `{"version":1,"updatedAt":"2025-01-01T00:00:00Z","data":{"name":"old"}}`)

	got := Load(c, defaults)
	if got.Name != "default" {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if _, ok, _ := store.Get("doc" + corruptSuffix); !ok {
		t.Fatal("failed migration should archive the raw payload")
	}
}

func TestCurrentVersionSkipsMigrations(t *testing.T) {
	called := false
	migrations := map[int]Migration{
		1: func(data json.RawMessage) (json.RawMessage, error) {
			called = true
			return data, nil
		},
	}
	c, _ := newCodec(t, 2, migrations, nil)
	c.SaveRaw(testDoc{Name: "fresh"})

	got := Load(c, defaults)
	if got.Name != "fresh" {
		t.Fatalf("unexpected doc: %+v", got)
	}
	if called {
		t.Fatal("migration must not run for current-version payloads")
	}
}

func TestRemove(t *testing.T) {
	c, store := newCodec(t, 1, nil, nil)
	c.SaveRaw(testDoc{Name: "x"})
	c.Remove()
	if _, ok, _ := store.Get("doc"); ok {
		t.Fatal("key should be removed")
	}
}

// Package storage provides the string-keyed key/value store that backs the
// portal's collections. Each collection lives under a single key as a JSON
// array and is always rewritten as a whole.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// KV is a string-keyed byte store. Get reports found=false for absent keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Error describes a failed storage access. Callers receive it alongside any
// in-memory result so they can decide whether to surface the loss.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStorageError reports whether err wraps a *Error.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// Collection loads and saves a JSON array of T under a single key.
type Collection[T any] struct {
	kv     KV
	key    string
	logger zerolog.Logger
}

// NewCollection binds a typed collection to key.
func NewCollection[T any](kv KV, key string, logger zerolog.Logger) *Collection[T] {
	return &Collection[T]{kv: kv, key: key, logger: logger}
}

// Key returns the storage key of the collection.
func (c *Collection[T]) Key() string { return c.key }

// Load returns the stored items. found is false when the key is absent or
// its content cannot be parsed; a parse failure is logged and otherwise
// treated like an absent key.
func (c *Collection[T]) Load(ctx context.Context) (items []T, found bool, err error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, false, &Error{Op: "get", Key: c.key, Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Warn().Err(err).Str("key", c.key).Msg("discarding unparsable collection")
		return nil, false, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, true, nil
}

// Save serializes items and replaces the stored value.
func (c *Collection[T]) Save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return &Error{Op: "encode", Key: c.key, Err: err}
	}
	if err := c.kv.Set(ctx, c.key, raw); err != nil {
		return &Error{Op: "set", Key: c.key, Err: err}
	}
	return nil
}

// Document loads and saves a single JSON object under a key.
type Document[T any] struct {
	kv     KV
	logger zerolog.Logger
}

// NewDocument returns a helper for single-object keys.
func NewDocument[T any](kv KV, logger zerolog.Logger) *Document[T] {
	return &Document[T]{kv: kv, logger: logger}
}

// Load decodes the object at key. A missing or unparsable value yields found=false.
func (d *Document[T]) Load(ctx context.Context, key string) (*T, bool, error) {
	raw, ok, err := d.kv.Get(ctx, key)
	if err != nil {
		return nil, false, &Error{Op: "get", Key: key, Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("discarding unparsable document")
		return nil, false, nil
	}
	return &v, true, nil
}

// Save encodes v and stores it at key.
func (d *Document[T]) Save(ctx context.Context, key string, v *T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	if err := d.kv.Set(ctx, key, raw); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Memory is an in-process KV. It is the default driver and the one used in tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Prefixed namespaces every key of an underlying KV.
type Prefixed struct {
	KV
	prefix string
}

// WithPrefix wraps kv so that every key is stored as prefix+key. An empty
// prefix returns kv unchanged.
func WithPrefix(kv KV, prefix string) KV {
	if prefix == "" {
		return kv
	}
	return &Prefixed{KV: kv, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.KV.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.KV.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, key string) error {
	return p.KV.Delete(ctx, p.prefix+key)
}

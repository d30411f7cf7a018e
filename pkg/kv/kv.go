// Package kv provides a small key-value store interface with hierarchical
// keys. Keys are string slices (e.g. ["speaker", "alice"]) joined with a
// separator (default ':') when stored.
//
// Badger is the durable implementation; Memory is for tests and demos.
// Values are opaque bytes; GetValue and SetValue encode structs as msgpack.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path. Segments must not contain the separator.
type Key []string

// String joins the key with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores value under key, replacing any previous value. The write
	// is durable when Set returns.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key Key) error

	// List yields every entry below prefix in lexicographic key order.
	// An empty prefix lists everything.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases resources held by the store.
	Close() error
}

// DefaultSeparator joins key segments.
const DefaultSeparator = ":"

// Options configures key encoding.
type Options struct {
	// Separator joins key segments. Default ":".
	Separator string
}

func (o *Options) sep() string {
	if o != nil && o.Separator != "" {
		return o.Separator
	}
	return DefaultSeparator
}

func (o *Options) encode(k Key) []byte {
	return []byte(strings.Join(k, o.sep()))
}

// prefix returns the encoded prefix for List. A non-empty prefix ends in
// the separator so "speaker:al" never matches "speaker:alice".
func (o *Options) prefix(k Key) []byte {
	if len(k) == 0 {
		return nil
	}
	return []byte(strings.Join(k, o.sep()) + o.sep())
}

func (o *Options) decode(b []byte) Key {
	return Key(strings.Split(string(b), o.sep()))
}

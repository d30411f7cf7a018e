package speaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/haivivi/quotevoice/pkg/storage"
)

// DefaultTableFile is the object name used for the speaker table.
const DefaultTableFile = "speaker_embeddings.json"

// TableStore keeps every profile in one JSON object,
//
//	{"alice": [0.1, 0.2, ...], "bob": [...]}
//
// The table is loaded in full by OpenTable. Every Put or Delete serializes
// the whole table and replaces the object through the FileStore; the
// in-memory table changes only after that write succeeds.
type TableStore struct {
	fs   storage.FileStore
	path string

	mu    sync.RWMutex
	table map[string][]float32
}

var _ Store = (*TableStore)(nil)

// OpenTable loads the table at path. A missing object is an empty table.
func OpenTable(ctx context.Context, fs storage.FileStore, path string) (*TableStore, error) {
	if path == "" {
		path = DefaultTableFile
	}
	t := &TableStore{fs: fs, path: path, table: make(map[string][]float32)}
	data, err := fs.ReadFile(ctx, path)
	if errors.Is(err, storage.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: load table: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.table); err != nil {
			return nil, fmt.Errorf("speaker: parse table %s: %w", path, err)
		}
	}
	if t.table == nil {
		t.table = make(map[string][]float32)
	}
	return t, nil
}

func (t *TableStore) Get(_ context.Context, id string) ([]float32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.table[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotEnrolled, id)
	}
	return slices.Clone(v), nil
}

func (t *TableStore) Put(ctx context.Context, id string, vec []float32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := maps.Clone(t.table)
	next[id] = slices.Clone(vec)
	if err := t.write(ctx, next); err != nil {
		return err
	}
	t.table = next
	return nil
}

func (t *TableStore) Delete(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.table[id]; !ok {
		return false, nil
	}
	next := maps.Clone(t.table)
	delete(next, id)
	if err := t.write(ctx, next); err != nil {
		return false, err
	}
	t.table = next
	return true, nil
}

func (t *TableStore) All(_ context.Context) ([]Profile, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Profile, 0, len(t.table))
	for _, id := range slices.Sorted(maps.Keys(t.table)) {
		out = append(out, Profile{ID: id, Embedding: slices.Clone(t.table[id])})
	}
	return out, nil
}

// Reset deletes the table object and empties the table. It returns the
// number of profiles the table held.
func (t *TableStore) Reset(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok, err := t.fs.Exists(ctx, t.path)
	if err != nil {
		return 0, fmt.Errorf("speaker: reset table: %w", err)
	}
	if ok {
		if err := t.fs.Delete(ctx, t.path); err != nil {
			return 0, fmt.Errorf("speaker: reset table: %w", err)
		}
	}
	n := len(t.table)
	t.table = make(map[string][]float32)
	return n, nil
}

// write must be called with t.mu held.
func (t *TableStore) write(ctx context.Context, table map[string][]float32) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("speaker: encode table: %w", err)
	}
	if err := t.fs.WriteFile(ctx, t.path, data); err != nil {
		return fmt.Errorf("speaker: save table: %w", err)
	}
	return nil
}

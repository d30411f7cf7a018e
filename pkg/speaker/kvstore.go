package speaker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/quotevoice/pkg/kv"
)

// KVStore keeps one kv entry per profile under the "speaker" prefix.
type KVStore struct {
	store  kv.Store
	prefix kv.Key
	now    func() time.Time
}

var _ Store = (*KVStore)(nil)

type profileRecord struct {
	ID         string    `msgpack:"id"`
	Embedding  []float32 `msgpack:"embedding"`
	EnrolledAt time.Time `msgpack:"enrolled_at"`
}

// NewKVStore creates a KVStore over s.
func NewKVStore(s kv.Store) *KVStore {
	return &KVStore{store: s, prefix: kv.Key{"speaker"}, now: time.Now}
}

func (s *KVStore) key(id string) kv.Key {
	return append(slices.Clone(s.prefix), id)
}

func (s *KVStore) Get(ctx context.Context, id string) ([]float32, error) {
	rec, err := kv.GetValue[profileRecord](ctx, s.store, s.key(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotEnrolled, id)
	}
	if err != nil {
		return nil, fmt.Errorf("speaker: get %q: %w", id, err)
	}
	return rec.Embedding, nil
}

func (s *KVStore) Put(ctx context.Context, id string, vec []float32) error {
	rec := profileRecord{ID: id, Embedding: vec, EnrolledAt: s.now().UTC()}
	if err := kv.SetValue(ctx, s.store, s.key(id), rec); err != nil {
		return fmt.Errorf("speaker: put %q: %w", id, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.store.Get(ctx, s.key(id)); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("speaker: delete %q: %w", id, err)
	}
	if err := s.store.Delete(ctx, s.key(id)); err != nil {
		return false, fmt.Errorf("speaker: delete %q: %w", id, err)
	}
	return true, nil
}

func (s *KVStore) All(ctx context.Context) ([]Profile, error) {
	var out []Profile
	for e, err := range s.store.List(ctx, s.prefix) {
		if err != nil {
			return nil, fmt.Errorf("speaker: list: %w", err)
		}
		var rec profileRecord
		if err := msgpack.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("speaker: decode %s: %w", e.Key, err)
		}
		out = append(out, Profile{ID: rec.ID, Embedding: rec.Embedding})
	}
	slices.SortFunc(out, func(a, b Profile) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

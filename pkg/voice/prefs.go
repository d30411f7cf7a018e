package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/haivivi/quotevoice/pkg/kv"
)

// KVPreferences keeps preferences in a kv.Store under "prefs:<id>".
type KVPreferences struct {
	store kv.Store
}

var _ Preferences = (*KVPreferences)(nil)

// NewKVPreferences creates preferences over s.
func NewKVPreferences(s kv.Store) *KVPreferences {
	return &KVPreferences{store: s}
}

func (p *KVPreferences) Get(ctx context.Context, id string) (VoiceParams, error) {
	if id == "" {
		return DefaultVoiceParams(), nil
	}
	v, err := kv.GetValue[VoiceParams](ctx, p.store, kv.Key{"prefs", id})
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultVoiceParams(), nil
	}
	if err != nil {
		return VoiceParams{}, fmt.Errorf("voice: preferences %q: %w", id, err)
	}
	return v.withDefaults(), nil
}

func (p *KVPreferences) Set(ctx context.Context, id string, v VoiceParams) error {
	if id == "" {
		return errors.New("voice: preferences need a speaker id")
	}
	if err := kv.SetValue(ctx, p.store, kv.Key{"prefs", id}, v.withDefaults()); err != nil {
		return fmt.Errorf("voice: preferences %q: %w", id, err)
	}
	return nil
}

func (p *KVPreferences) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := p.store.Delete(ctx, kv.Key{"prefs", id}); err != nil {
		return fmt.Errorf("voice: preferences %q: %w", id, err)
	}
	return nil
}

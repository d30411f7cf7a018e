package speaker

import "context"

// Profile is one enrolled speaker.
type Profile struct {
	ID        string
	Embedding []float32
}

// Store persists speaker profiles. A speaker has at most one profile; Put
// overwrites it.
//
// Implementations must be safe for concurrent use. All returns profiles
// sorted by ID.
type Store interface {
	// Get returns the embedding for id, or ErrNotEnrolled.
	Get(ctx context.Context, id string) ([]float32, error)

	// Put stores vec under id. The write is durable when Put returns.
	Put(ctx context.Context, id string, vec []float32) error

	// Delete removes id and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// All returns every profile.
	All(ctx context.Context) ([]Profile, error)
}

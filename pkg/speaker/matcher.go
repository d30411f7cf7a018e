// Package speaker enrolls speakers from voice samples and identifies who
// is talking.
//
// Scores are confidences in [0, 1]: the cosine similarity c of two
// embeddings mapped to (c+1)/2. A match is accepted when its confidence is
// at least the caller's threshold.
package speaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/haivivi/quotevoice/pkg/vecmath"
	"github.com/haivivi/quotevoice/pkg/voiceprint"
)

// DefaultThreshold is the confidence Identify and Verify callers use when
// they have no better value.
const DefaultThreshold = 0.7

var (
	// ErrNotEnrolled is returned when a speaker id has no profile.
	ErrNotEnrolled = errors.New("speaker: not enrolled")

	// ErrEmptyID is returned by Enroll for a blank speaker id.
	ErrEmptyID = errors.New("speaker: empty speaker id")
)

// Reason explains an Identify result.
type Reason string

const (
	ReasonMatched        Reason = "matched"
	ReasonNoSpeakers     Reason = "no_speakers"
	ReasonBelowThreshold Reason = "below_threshold"
)

// Enrollment is the result of Enroll.
type Enrollment struct {
	SpeakerID string `json:"speaker_id"`
	Dimension int    `json:"dimension"`
}

// Identification is the result of Identify. SpeakerID and Confidence are
// both nil when no speaker was accepted.
type Identification struct {
	SpeakerID  *string  `json:"speaker_id"`
	Confidence *float64 `json:"confidence"`

	// Reason, Closest and ClosestConfidence are diagnostics. Closest is
	// the best candidate even when it was rejected.
	Reason            Reason  `json:"-"`
	Closest           string  `json:"-"`
	ClosestConfidence float64 `json:"-"`
}

// Matched reports whether a speaker was accepted.
func (i Identification) Matched() bool { return i.SpeakerID != nil }

// Verification is the result of Verify.
type Verification struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
}

// Stats summarizes the enrolled table.
type Stats struct {
	Speakers  int `json:"speakers"`
	Dimension int `json:"dimension"`
}

// Matcher enrolls and identifies speakers.
//
// Enroll and Delete hold the write lock across the store update; Identify
// and Verify hold the read lock while scoring. Embeddings are extracted
// before any lock is taken.
type Matcher struct {
	model  voiceprint.Model
	store  Store
	logger *slog.Logger

	mu sync.RWMutex
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) { m.logger = l }
}

// NewMatcher creates a Matcher.
func NewMatcher(model voiceprint.Model, store Store, opts ...Option) *Matcher {
	m := &Matcher{model: model, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Enroll extracts an embedding from audio and stores it as id's profile,
// replacing any previous one.
func (m *Matcher) Enroll(ctx context.Context, id string, audio []byte) (Enrollment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Enrollment{}, ErrEmptyID
	}
	vec, err := m.model.Extract(ctx, audio)
	if err != nil {
		return Enrollment{}, fmt.Errorf("speaker: enroll %q: %w", id, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Put(ctx, id, vec); err != nil {
		return Enrollment{}, err
	}
	m.logger.Info("speaker: enrolled", "speaker_id", id, "dimension", len(vec))
	return Enrollment{SpeakerID: id, Dimension: len(vec)}, nil
}

// Identify returns the enrolled speaker closest to audio if its confidence
// reaches threshold. An empty table is not an error. On ties the speaker
// that sorts first wins.
func (m *Matcher) Identify(ctx context.Context, audio []byte, threshold float64) (Identification, error) {
	vec, err := m.model.Extract(ctx, audio)
	if err != nil {
		return Identification{}, fmt.Errorf("speaker: identify: %w", err)
	}

	m.mu.RLock()
	profiles, err := m.store.All(ctx)
	m.mu.RUnlock()
	if err != nil {
		return Identification{}, err
	}
	if len(profiles) == 0 {
		m.logger.Info("speaker: no speakers enrolled")
		return Identification{Reason: ReasonNoSpeakers}, nil
	}

	best, bestConf := "", -1.0
	for _, p := range profiles {
		cos, ok := vecmath.Cosine(vec, p.Embedding)
		if !ok {
			m.logger.Warn("speaker: incomparable profile", "speaker_id", p.ID,
				"dimension", len(p.Embedding), "want", len(vec))
			continue
		}
		if conf := vecmath.Confidence(cos); conf > bestConf {
			best, bestConf = p.ID, conf
		}
	}

	res := Identification{Closest: best, ClosestConfidence: max(bestConf, 0)}
	if best == "" || bestConf < threshold {
		res.Reason = ReasonBelowThreshold
		m.logger.Info("speaker: no match above threshold",
			"closest", best, "confidence", res.ClosestConfidence, "threshold", threshold)
		return res, nil
	}
	res.Reason = ReasonMatched
	res.SpeakerID = &best
	res.Confidence = &bestConf
	m.logger.Info("speaker: identified", "speaker_id", best, "confidence", bestConf)
	return res, nil
}

// Verify scores audio against id's profile only.
func (m *Matcher) Verify(ctx context.Context, id string, audio []byte, threshold float64) (Verification, error) {
	id = strings.TrimSpace(id)
	m.mu.RLock()
	ref, err := m.store.Get(ctx, id)
	m.mu.RUnlock()
	if err != nil {
		return Verification{}, err
	}

	vec, err := m.model.Extract(ctx, audio)
	if err != nil {
		return Verification{}, fmt.Errorf("speaker: verify %q: %w", id, err)
	}
	cos, ok := vecmath.Cosine(vec, ref)
	if !ok {
		return Verification{}, fmt.Errorf("speaker: verify %q: %w: dimension %d, enrolled %d",
			id, voiceprint.ErrExtractionFailed, len(vec), len(ref))
	}
	conf := vecmath.Confidence(cos)
	return Verification{Verified: conf >= threshold, Confidence: conf}, nil
}

// Delete removes id's profile and reports whether it existed.
func (m *Matcher) Delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		m.logger.Info("speaker: deleted", "speaker_id", id)
	}
	return ok, nil
}

// Reset removes every profile and returns how many were removed.
func (m *Matcher) Reset(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	if r, ok := m.store.(interface {
		Reset(context.Context) (int, error)
	}); ok {
		var err error
		if n, err = r.Reset(ctx); err != nil {
			return 0, err
		}
	} else {
		profiles, err := m.store.All(ctx)
		if err != nil {
			return 0, err
		}
		for _, p := range profiles {
			ok, err := m.store.Delete(ctx, p.ID)
			if err != nil {
				return n, err
			}
			if ok {
				n++
			}
		}
	}
	m.logger.Info("speaker: reset", "removed", n)
	return n, nil
}

// Speakers returns the enrolled speaker ids in sorted order.
func (m *Matcher) Speakers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	profiles, err := m.store.All(ctx)
	m.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids, nil
}

// Stats reports the number of enrolled speakers and the embedding
// dimension (the model's, or the first profile's when the model does not
// know yet).
func (m *Matcher) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	profiles, err := m.store.All(ctx)
	m.mu.RUnlock()
	if err != nil {
		return Stats{}, err
	}
	dim := m.model.Dimension()
	if dim == 0 && len(profiles) > 0 {
		dim = len(profiles[0].Embedding)
	}
	return Stats{Speakers: len(profiles), Dimension: dim}, nil
}

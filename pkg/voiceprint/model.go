// Package voiceprint extracts speaker embeddings from recorded speech.
//
// An embedding is a dense float32 vector; two samples of the same voice
// produce vectors with high cosine similarity. Matching those vectors
// against enrolled speakers is the job of package speaker.
package voiceprint

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrExtractionFailed is matched by every extraction failure: bad
	// audio, transport errors and malformed model output.
	ErrExtractionFailed = errors.New("voiceprint: extraction failed")

	// ErrAudioTooShort is returned for samples below the model's minimum
	// duration. It also matches ErrExtractionFailed.
	ErrAudioTooShort = fmt.Errorf("%w: audio too short", ErrExtractionFailed)
)

// Model extracts speaker embedding vectors from audio.
//
// The input is a complete WAVE file (16-bit PCM, any sample rate, mono or
// stereo). Implementations normalize it to whatever their model needs.
//
// Implementations must be safe for concurrent use.
type Model interface {
	// Extract computes a speaker embedding. The result has length
	// Dimension() once the dimension is known.
	Extract(ctx context.Context, audio []byte) ([]float32, error)

	// Dimension returns the dimensionality of the embeddings, or 0 if it
	// is not known until the first extraction.
	Dimension() int

	// Close releases any resources held by the model.
	Close() error
}

func failed(format string, args ...any) error {
	return fmt.Errorf("voiceprint: %w: %s", ErrExtractionFailed, fmt.Sprintf(format, args...))
}

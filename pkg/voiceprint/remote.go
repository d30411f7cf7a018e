package voiceprint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/haivivi/quotevoice/pkg/audio/wav"
	"github.com/haivivi/quotevoice/pkg/vecmath"
)

const (
	// SampleRate is the rate audio is resampled to before upload.
	SampleRate = 16000

	// DefaultMinDuration is the shortest sample Remote accepts.
	DefaultMinDuration = 500 * time.Millisecond

	// DefaultTimeout bounds one extraction request.
	DefaultTimeout = 30 * time.Second
)

// Remote implements [Model] over an HTTP speaker-embedding service.
//
// Each Extract decodes the sample, downmixes it to mono, resamples it to
// 16 kHz and POSTs it as audio/wav. The service answers with
//
//	{"embedding": [0.12, -0.03, ...]}
type Remote struct {
	url         string
	client      *http.Client
	minDuration time.Duration
	logger      *slog.Logger

	// dim is fixed by WithDimension or learned from the first response.
	dim   atomic.Int64
	fixed bool
}

// RemoteOption configures a Remote.
type RemoteOption func(*Remote)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

// WithDimension requires every embedding to have dim elements.
func WithDimension(dim int) RemoteOption {
	return func(r *Remote) {
		if dim > 0 {
			r.dim.Store(int64(dim))
			r.fixed = true
		}
	}
}

// WithMinDuration overrides DefaultMinDuration.
func WithMinDuration(d time.Duration) RemoteOption {
	return func(r *Remote) { r.minDuration = d }
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = l }
}

// NewRemote creates a Remote posting to url.
func NewRemote(url string, opts ...RemoteOption) *Remote {
	r := &Remote{
		url:         url,
		client:      &http.Client{Timeout: DefaultTimeout},
		minDuration: DefaultMinDuration,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var _ Model = (*Remote)(nil)

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Extract implements [Model].
func (r *Remote) Extract(ctx context.Context, audio []byte) ([]float32, error) {
	pcm, err := wav.Decode(audio)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w: %w", ErrExtractionFailed, err)
	}
	if d := pcm.Duration(); d < r.minDuration {
		return nil, fmt.Errorf("voiceprint: %w: %v < %v", ErrAudioTooShort, d, r.minDuration)
	}

	mono, err := pcm.Mono().Resample(SampleRate)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w: %w", ErrExtractionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(mono.Encode()))
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w: %w", ErrExtractionFailed, err)
	}
	req.Header.Set("Content-Type", "audio/wav")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w: %w", ErrExtractionFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("voiceprint: %w: read response: %w", ErrExtractionFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, failed("status %d: %s", resp.StatusCode, snippet(body))
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("voiceprint: %w: decode response: %w", ErrExtractionFailed, err)
	}
	if err := r.check(out.Embedding); err != nil {
		return nil, err
	}

	r.logger.Debug("voiceprint: extracted",
		"duration_ms", pcm.Duration().Milliseconds(),
		"dimension", len(out.Embedding),
		"took_ms", time.Since(start).Milliseconds())
	return out.Embedding, nil
}

func (r *Remote) check(v []float32) error {
	if len(v) == 0 {
		return failed("empty embedding")
	}
	if n := vecmath.Norm(v); n == 0 || math.IsNaN(n) {
		return failed("degenerate embedding")
	}
	want := int(r.dim.Load())
	if want == 0 && !r.fixed {
		r.dim.CompareAndSwap(0, int64(len(v)))
		want = int(r.dim.Load())
	}
	if len(v) != want {
		return failed("embedding dimension %d, want %d", len(v), want)
	}
	return nil
}

// Dimension implements [Model].
func (r *Remote) Dimension() int { return int(r.dim.Load()) }

// Close implements [Model].
func (r *Remote) Close() error { return nil }

func snippet(b []byte) string {
	const max = 200
	b = bytes.TrimSpace(b)
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

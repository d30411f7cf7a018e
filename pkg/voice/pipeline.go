package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/quotevoice/pkg/rag"
	"github.com/haivivi/quotevoice/pkg/speaker"
	"github.com/haivivi/quotevoice/pkg/voiceprint"
)

// SpeakerMatcher is the part of speaker.Matcher the pipeline uses.
type SpeakerMatcher interface {
	Enroll(ctx context.Context, id string, audio []byte) (speaker.Enrollment, error)
	Identify(ctx context.Context, audio []byte, threshold float64) (speaker.Identification, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Answerer answers text queries.
type Answerer interface {
	Ask(ctx context.Context, req rag.Request) (rag.Response, error)
}

// Pipeline wires the voice round trip together.
type Pipeline struct {
	Transcriber Transcriber
	Speakers    SpeakerMatcher
	Preferences Preferences
	Answerer    Answerer
	Synthesizer Synthesizer
	// Greeter, when set, greets newly registered speakers.
	Greeter Greeter

	// Threshold defaults to speaker.DefaultThreshold when zero.
	Threshold float64
	Logger    *slog.Logger
}

// Result is the outcome of a spoken query.
type Result struct {
	RequestID  string       `json:"request_id"`
	Transcript Transcript   `json:"transcript"`
	SpeakerID  *string      `json:"speaker_id"`
	Confidence *float64     `json:"confidence"`
	Voice      VoiceParams  `json:"voice"`
	Answer     rag.Response `json:"answer"`
	Audio      []byte       `json:"-"`
}

// Registration is the outcome of Register.
type Registration struct {
	SpeakerID string      `json:"speaker_id"`
	Dimension int         `json:"dimension"`
	Voice     VoiceParams `json:"voice"`
	Greeting  string      `json:"greeting,omitempty"`
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// Query answers a spoken question. A sample too short to identify the
// speaker is answered anonymously; every other failure is returned.
func (p *Pipeline) Query(ctx context.Context, audio []byte) (*Result, error) {
	res := &Result{RequestID: uuid.NewString()}
	log := p.logger().With("request_id", res.RequestID)
	start := time.Now()

	tr, err := p.Transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Error("voice: transcription failed", "error", err)
		return nil, err
	}
	if tr.Text == "" {
		return nil, ErrNoSpeech
	}
	res.Transcript = tr
	log.Info("voice: transcribed", "text", tr.Text, "language", tr.Language)

	threshold := p.Threshold
	if threshold <= 0 {
		threshold = speaker.DefaultThreshold
	}
	id, err := p.Speakers.Identify(ctx, audio, threshold)
	switch {
	case errors.Is(err, voiceprint.ErrAudioTooShort):
		log.Warn("voice: sample too short to identify speaker, answering anonymously", "error", err)
	case err != nil:
		log.Error("voice: speaker identification failed", "error", err)
		return nil, err
	default:
		res.SpeakerID, res.Confidence = id.SpeakerID, id.Confidence
		log.Info("voice: speaker", "speaker_id", deref(id.SpeakerID), "reason", id.Reason)
	}

	name := deref(res.SpeakerID)
	prefs, err := p.Preferences.Get(ctx, name)
	if err != nil {
		log.Error("voice: loading preferences failed", "speaker_id", name, "error", err)
		return nil, err
	}
	res.Voice = prefs

	answer, err := p.Answerer.Ask(ctx, rag.Request{Query: tr.Text, Username: name, Style: prefs.Accent})
	if err != nil {
		return nil, err
	}
	res.Answer = answer

	res.Audio, err = p.Synthesizer.Synthesize(ctx, answer.Response, prefs)
	if err != nil {
		log.Error("voice: synthesis failed", "error", err)
		return nil, err
	}
	log.Info("voice: query done",
		"method", answer.Method,
		"audio_bytes", len(res.Audio),
		"took_ms", time.Since(start).Milliseconds())
	return res, nil
}

// Register enrolls id from audio and stores its voice preferences.
func (p *Pipeline) Register(ctx context.Context, id string, audio []byte, prefs VoiceParams) (Registration, error) {
	e, err := p.Speakers.Enroll(ctx, id, audio)
	if err != nil {
		return Registration{}, err
	}
	prefs = prefs.withDefaults()
	reg := Registration{SpeakerID: e.SpeakerID, Dimension: e.Dimension, Voice: prefs}
	if err := p.Preferences.Set(ctx, e.SpeakerID, prefs); err != nil {
		return reg, fmt.Errorf("voice: speaker %q enrolled but preferences not saved: %w", e.SpeakerID, err)
	}
	if p.Greeter != nil {
		reg.Greeting = p.Greeter.Greeting(e.SpeakerID, prefs.Accent)
	}
	p.logger().Info("voice: registered", "speaker_id", e.SpeakerID, "voice", prefs.Voice, "accent", prefs.Accent)
	return reg, nil
}

// Unregister removes id's profile and preferences. It reports whether a
// profile existed; stale preferences are removed either way.
func (p *Pipeline) Unregister(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	ok, err := p.Speakers.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if err := p.Preferences.Delete(ctx, id); err != nil {
		return ok, err
	}
	p.logger().Info("voice: unregistered", "speaker_id", id, "existed", ok)
	return ok, nil
}

// Greet greets id in the style stored in its preferences.
func (p *Pipeline) Greet(ctx context.Context, id string) (string, error) {
	if p.Greeter == nil {
		return "", errors.New("voice: no greeter configured")
	}
	id = strings.TrimSpace(id)
	prefs, err := p.Preferences.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Greeter.Greeting(id, prefs.Accent), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

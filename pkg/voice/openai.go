package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
)

const (
	DefaultTranscribeModel = "whisper-1"
	DefaultSpeechModel     = "tts-1"
	DefaultTimeout         = 60 * time.Second
)

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	c := openai.NewClient(opts...)
	return &c
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// OpenAITranscriber transcribes WAVE audio with the OpenAI transcription
// API.
type OpenAITranscriber struct {
	Client *openai.Client
	Model  string
	// Language is an optional ISO-639-1 hint, reported back in the
	// Transcript.
	Language string
	Timeout  time.Duration
}

var _ Transcriber = (*OpenAITranscriber)(nil)

// NewOpenAITranscriber creates a transcriber using whisper-1.
func NewOpenAITranscriber(apiKey, baseURL string) *OpenAITranscriber {
	return &OpenAITranscriber{Client: newOpenAIClient(apiKey, baseURL), Model: DefaultTranscribeModel}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte) (Transcript, error) {
	ctx, cancel := withTimeout(ctx, t.Timeout)
	defer cancel()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(audio), "audio.wav", "audio/wav"),
		Model: openai.AudioModel(t.Model),
	}
	if t.Language != "" {
		params.Language = param.NewOpt(t.Language)
	}
	tr, err := t.Client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return Transcript{}, fmt.Errorf("voice: transcribe: %w", err)
	}
	return Transcript{Text: strings.TrimSpace(tr.Text), Language: t.Language}, nil
}

// OpenAISynthesizer renders speech with the OpenAI speech API. Voice and
// Speed are honored; Pitch, Energy and Accent are not supported by the API
// and are ignored.
type OpenAISynthesizer struct {
	Client *openai.Client
	Model  string
	// Format is the audio container, "wav" by default.
	Format  string
	Timeout time.Duration
}

var _ Synthesizer = (*OpenAISynthesizer)(nil)

// NewOpenAISynthesizer creates a synthesizer using tts-1.
func NewOpenAISynthesizer(apiKey, baseURL string) *OpenAISynthesizer {
	return &OpenAISynthesizer{Client: newOpenAIClient(apiKey, baseURL), Model: DefaultSpeechModel, Format: "wav"}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, p VoiceParams) ([]byte, error) {
	p = p.withDefaults()
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	format := s.Format
	if format == "" {
		format = "wav"
	}
	resp, err := s.Client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.Model),
		Voice:          openai.AudioSpeechNewParamsVoice(p.Voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(format),
		Speed:          param.NewOpt(max(0.25, min(4.0, p.Speed))),
	})
	if err != nil {
		return nil, fmt.Errorf("voice: synthesize: %w", err)
	}
	defer resp.Body.Close()
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("voice: synthesize: read audio: %w", err)
	}
	return audio, nil
}

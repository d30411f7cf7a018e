// Package voice runs the spoken query round trip: speech in, speaker
// identified, quote answer generated, speech out.
//
// Speech recognition and synthesis are external services behind the
// Transcriber and Synthesizer interfaces.
package voice

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned when a sample transcribes to nothing.
var ErrNoSpeech = errors.New("voice: no speech recognized")

// Transcript is recognized speech.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language,omitempty"`
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (Transcript, error)
}

// VoiceParams are a speaker's synthesis preferences. Pitch, Speed and
// Energy are multipliers where 1.0 is neutral.
type VoiceParams struct {
	Voice  string  `json:"voice" yaml:"voice" msgpack:"voice"`
	Accent string  `json:"accent" yaml:"accent" msgpack:"accent"`
	Pitch  float64 `json:"pitch" yaml:"pitch" msgpack:"pitch"`
	Speed  float64 `json:"speed" yaml:"speed" msgpack:"speed"`
	Energy float64 `json:"energy" yaml:"energy" msgpack:"energy"`
}

// Default voice preferences for speakers who never set any.
const (
	DefaultVoice  = "alloy"
	DefaultAccent = "american"
)

// DefaultVoiceParams returns the preferences used for unknown speakers.
func DefaultVoiceParams() VoiceParams {
	return VoiceParams{Voice: DefaultVoice, Accent: DefaultAccent, Pitch: 1, Speed: 1, Energy: 1}
}

// withDefaults fills zero fields from DefaultVoiceParams.
func (p VoiceParams) withDefaults() VoiceParams {
	d := DefaultVoiceParams()
	if p.Voice == "" {
		p.Voice = d.Voice
	}
	if p.Accent == "" {
		p.Accent = d.Accent
	}
	if p.Pitch == 0 {
		p.Pitch = d.Pitch
	}
	if p.Speed == 0 {
		p.Speed = d.Speed
	}
	if p.Energy == 0 {
		p.Energy = d.Energy
	}
	return p
}

// Synthesizer renders text as speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, p VoiceParams) ([]byte, error)
}

// Preferences stores VoiceParams per speaker id.
type Preferences interface {
	// Get returns id's preferences, or DefaultVoiceParams when none are
	// stored.
	Get(ctx context.Context, id string) (VoiceParams, error)
	Set(ctx context.Context, id string, p VoiceParams) error
	// Delete drops id's preferences. Missing preferences are not an error.
	Delete(ctx context.Context, id string) error
}

// Greeter produces a personalized greeting in a reply style.
type Greeter interface {
	Greeting(name, style string) string
}

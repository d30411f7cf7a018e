package wav

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample returns p converted to rate Hz with the same channel count.
// Each channel is filtered on its own and the output holds exactly
// Frames()*rate/SampleRate frames, rounded to the nearest frame.
func (p *PCM) Resample(rate int) (*PCM, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("wav: invalid target rate %d", rate)
	}
	if p.Channels <= 0 {
		return nil, fmt.Errorf("wav: invalid channel count %d", p.Channels)
	}
	if rate == p.SampleRate {
		out := *p
		out.Samples = append([]int16(nil), p.Samples...)
		return &out, nil
	}

	frames := p.Frames()
	want := int((int64(frames)*int64(rate) + int64(p.SampleRate)/2) / int64(p.SampleRate))

	out := make([]int16, want*p.Channels)
	channel := make([]float64, frames)
	for c := 0; c < p.Channels; c++ {
		for i := range channel {
			channel[i] = float64(p.Samples[i*p.Channels+c]) / 32768.0
		}
		resampled, err := resampleChannel(channel, p.SampleRate, rate)
		if err != nil {
			return nil, err
		}
		// The filter delay leaves the output a few samples off the exact
		// length; trim the excess or pad with silence.
		for i := 0; i < want && i < len(resampled); i++ {
			out[i*p.Channels+c] = toInt16(resampled[i])
		}
	}
	return &PCM{SampleRate: rate, Channels: p.Channels, Samples: out}, nil
}

// resampleChannel converts one channel, flushing the filter tail.
func resampleChannel(in []float64, from, to int) ([]float64, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("wav: create resampler: %w", err)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("wav: resample: %w", err)
	}
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("wav: flush resampler: %w", err)
	}
	return append(out, tail...), nil
}

func toInt16(s float64) int16 {
	switch {
	case s >= 1.0:
		return 32767
	case s < -1.0:
		return -32768
	default:
		return int16(s * 32767.0)
	}
}

// Package wav reads and writes RIFF/WAVE files carrying 16-bit PCM.
//
// Samples are kept interleaved in memory. Mono and Resample return new
// values and never modify the receiver.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrFormat is returned for data that is not a well-formed WAVE file.
	ErrFormat = errors.New("wav: invalid format")
	// ErrUnsupported is returned for WAVE files that are not 16-bit PCM
	// with one or two channels.
	ErrUnsupported = errors.New("wav: unsupported encoding")
)

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
	headerSize       = 44
)

// PCM is decoded 16-bit audio.
type PCM struct {
	SampleRate int
	Channels   int
	// Samples are interleaved by channel.
	Samples []int16
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback length.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Decode parses a WAVE file. Chunks other than "fmt " and "data" are
// skipped. A data chunk whose declared size runs past the end of the input
// (as written by streaming encoders) is read to the end.
func Decode(data []byte) (*PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrFormat)
	}

	var (
		fmtChunk []byte
		payload  []byte
		hasData  bool
	)
	rest := data[12:]
	for len(rest) >= 8 {
		id := string(rest[0:4])
		size := int(binary.LittleEndian.Uint32(rest[4:8]))
		rest = rest[8:]
		if size > len(rest) || size < 0 {
			if id != "data" {
				return nil, fmt.Errorf("%w: chunk %q truncated", ErrFormat, id)
			}
			size = len(rest)
		}
		body := rest[:size]
		switch id {
		case "fmt ":
			fmtChunk = body
		case "data":
			payload, hasData = body, true
		}
		rest = rest[size:]
		if size%2 == 1 && len(rest) > 0 {
			rest = rest[1:]
		}
	}
	if fmtChunk == nil {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrFormat)
	}
	if !hasData {
		return nil, fmt.Errorf("%w: missing data chunk", ErrFormat)
	}

	rate, channels, err := parseFormat(fmtChunk)
	if err != nil {
		return nil, err
	}

	frame := 2 * channels
	payload = payload[:len(payload)/frame*frame]
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return &PCM{SampleRate: rate, Channels: channels, Samples: samples}, nil
}

func parseFormat(b []byte) (rate, channels int, err error) {
	if len(b) < 16 {
		return 0, 0, fmt.Errorf("%w: fmt chunk too short", ErrFormat)
	}
	tag := binary.LittleEndian.Uint16(b[0:2])
	channels = int(binary.LittleEndian.Uint16(b[2:4]))
	rate = int(binary.LittleEndian.Uint32(b[4:8]))
	bits := binary.LittleEndian.Uint16(b[14:16])

	if tag == formatExtensible {
		// cbSize(2) validBits(2) channelMask(4) then the sub-format GUID,
		// whose first two bytes are the real format tag.
		if len(b) < 26 {
			return 0, 0, fmt.Errorf("%w: extensible fmt chunk too short", ErrFormat)
		}
		tag = binary.LittleEndian.Uint16(b[24:26])
	}
	if tag != formatPCM {
		return 0, 0, fmt.Errorf("%w: format tag %#x", ErrUnsupported, tag)
	}
	if bits != 16 {
		return 0, 0, fmt.Errorf("%w: %d bits per sample", ErrUnsupported, bits)
	}
	if channels != 1 && channels != 2 {
		return 0, 0, fmt.Errorf("%w: %d channels", ErrUnsupported, channels)
	}
	if rate <= 0 {
		return 0, 0, fmt.Errorf("%w: sample rate %d", ErrFormat, rate)
	}
	return rate, channels, nil
}

// Encode returns p as a canonical 44-byte-header WAVE file.
func (p *PCM) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(headerSize + len(p.Samples)*2)
	p.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes p as a WAVE file to w.
func (p *PCM) WriteTo(w io.Writer) (int64, error) {
	dataLen := uint32(len(p.Samples) * 2)
	blockAlign := uint16(p.Channels * 2)

	hdr := make([]byte, headerSize)
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataLen)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], formatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(p.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(p.SampleRate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataLen)

	n, err := w.Write(hdr)
	if err != nil {
		return int64(n), err
	}
	body := make([]byte, dataLen)
	for i, s := range p.Samples {
		binary.LittleEndian.PutUint16(body[i*2:], uint16(s))
	}
	m, err := w.Write(body)
	return int64(n + m), err
}

// Mono returns p downmixed to one channel by averaging left and right.
// A mono p is returned as a copy.
func (p *PCM) Mono() *PCM {
	if p.Channels != 2 {
		out := *p
		out.Samples = append([]int16(nil), p.Samples...)
		return &out
	}
	frames := p.Frames()
	samples := make([]int16, frames)
	for i := range frames {
		l, r := int32(p.Samples[i*2]), int32(p.Samples[i*2+1])
		samples[i] = int16((l + r) / 2)
	}
	return &PCM{SampleRate: p.SampleRate, Channels: 1, Samples: samples}
}

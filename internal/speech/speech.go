// Package speech synthesizes narration audio for edited videos
// through a VOICEVOX-compatible engine.
package speech

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Audio is synthesized speech: PCM16 mono samples plus their rate.
type Audio struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the audio length in seconds.
func (a *Audio) Duration() float64 {
	if a.SampleRate == 0 {
		return 0
	}
	return float64(len(a.PCM)/2) / float64(a.SampleRate)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Audio, error)
}

// EncodeWAV renders the audio as a PCM RIFF/WAVE blob, the form the
// FFmpeg shell accepts as an extra audio track.
func (a *Audio) EncodeWAV() []byte {
	dataLen := len(a.PCM)
	out := make([]byte, 0, 44+dataLen)

	out = append(out, "RIFF"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(36+dataLen))
	out = append(out, "WAVE"...)

	out = append(out, "fmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, 1)
	out = binary.LittleEndian.AppendUint16(out, 1)
	out = binary.LittleEndian.AppendUint32(out, uint32(a.SampleRate))
	out = binary.LittleEndian.AppendUint32(out, uint32(a.SampleRate*2))
	out = binary.LittleEndian.AppendUint16(out, 2)
	out = binary.LittleEndian.AppendUint16(out, 16)

	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dataLen))
	out = append(out, a.PCM...)
	return out
}

// decodeWAV extracts PCM16 mono samples and the sample rate from a
// RIFF/WAVE container.
func decodeWAV(data []byte) (*Audio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		sampleRate    int
		bitsPerSample int
		channels      int
		pcm           []byte
	)

	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+chunkLen > len(data) {
			return nil, fmt.Errorf("truncated %s chunk", chunkID)
		}
		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, fmt.Errorf("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported WAV format %d, want PCM", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+chunkLen]
		}
		// Chunks are word-aligned.
		off = body + chunkLen + chunkLen%2
	}

	if sampleRate == 0 || pcm == nil {
		return nil, fmt.Errorf("missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", bitsPerSample)
	}
	if channels != 1 {
		pcm = downmixToMono(pcm, channels)
	}
	return &Audio{PCM: pcm, SampleRate: sampleRate}, nil
}

// downmixToMono averages interleaved 16-bit channels.
func downmixToMono(pcm []byte, channels int) []byte {
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			s := int(int16(binary.LittleEndian.Uint16(pcm[i*frameBytes+c*2:])))
			sum += s
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/channels)))
	}
	return out
}

package speech

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saw4405/splat-replay/internal/config"
)

// buildWAV assembles a minimal PCM RIFF/WAVE blob.
func buildWAV(t *testing.T, sampleRate, channels int, samples []int16) []byte {
	t.Helper()
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	var body []byte
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:], uint16(channels))
	binary.LittleEndian.PutUint32(fmtChunk[4:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(fmtChunk[8:], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(fmtChunk[12:], uint16(channels*2))
	binary.LittleEndian.PutUint16(fmtChunk[14:], 16)

	body = append(body, chunk("fmt ", fmtChunk)...)
	body = append(body, chunk("data", pcm)...)

	out := []byte("RIFF")
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(4+len(body)))
	out = append(out, size...)
	out = append(out, []byte("WAVE")...)
	out = append(out, body...)
	return out
}

func chunk(id string, body []byte) []byte {
	out := []byte(id)
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(body)))
	out = append(out, size...)
	out = append(out, body...)
	if len(body)%2 == 1 {
		out = append(out, 0)
	}
	return out
}

func TestDecodeWAVMono(t *testing.T) {
	wav := buildWAV(t, 24000, 1, []int16{100, -100, 200, -200})
	audio, err := decodeWAV(wav)
	require.NoError(t, err)
	assert.Equal(t, 24000, audio.SampleRate)
	assert.Len(t, audio.PCM, 8)
	assert.InDelta(t, 4.0/24000, audio.Duration(), 1e-9)
}

func TestDecodeWAVDownmixesStereo(t *testing.T) {
	// Interleaved L/R pairs.
	wav := buildWAV(t, 48000, 2, []int16{100, 300, -100, -300})
	audio, err := decodeWAV(wav)
	require.NoError(t, err)
	require.Len(t, audio.PCM, 4)
	first := int16(binary.LittleEndian.Uint16(audio.PCM[0:]))
	second := int16(binary.LittleEndian.Uint16(audio.PCM[2:]))
	assert.Equal(t, int16(200), first)
	assert.Equal(t, int16(-200), second)
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	audio := &Audio{SampleRate: 24000, PCM: []byte{1, 0, 2, 0, 3, 0, 4, 0}}
	decoded, err := decodeWAV(audio.EncodeWAV())
	require.NoError(t, err)
	assert.Equal(t, audio.SampleRate, decoded.SampleRate)
	assert.Equal(t, audio.PCM, decoded.PCM)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	_, err := decodeWAV([]byte("definitely not audio"))
	assert.Error(t, err)
}

func TestDecodeWAVMissingData(t *testing.T) {
	wav := buildWAV(t, 24000, 1, nil)
	// Strip the data chunk.
	_, err := decodeWAV(wav[:20])
	assert.Error(t, err)
}

func TestVoicevoxSynthesize(t *testing.T) {
	wav := buildWAV(t, 24000, 1, []int16{1, 2, 3, 4})
	var gotQueryText string
	var gotSynthesisBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio_query":
			gotQueryText = r.URL.Query().Get("text")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"accent_phrases":[],"speedScale":1.0}`))
		case "/synthesis":
			gotSynthesisBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "audio/wav")
			_, _ = w.Write(wav)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	engine, err := NewVoicevoxEngine(config.SpeechConfig{
		EngineURL: srv.URL,
		SpeakerID: 3,
	}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	audio, err := engine.Synthesize(context.Background(), "ナイスなバトルでした")
	require.NoError(t, err)
	assert.Equal(t, 24000, audio.SampleRate)
	assert.Len(t, audio.PCM, 8)
	assert.Equal(t, "ナイスなバトルでした", gotQueryText)
	assert.Contains(t, string(gotSynthesisBody), "accent_phrases")
}

func TestVoicevoxSynthesizeEngineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown speaker", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	engine, err := NewVoicevoxEngine(config.SpeechConfig{EngineURL: srv.URL}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	_, err = engine.Synthesize(context.Background(), "text")
	assert.ErrorContains(t, err, "422")
}

func TestNewVoicevoxEngineRequiresURL(t *testing.T) {
	_, err := NewVoicevoxEngine(config.SpeechConfig{}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

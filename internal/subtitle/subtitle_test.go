package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `1
00:00:01,000 --> 00:00:02,500
ナイス！

2
00:00:05,250 --> 00:00:07,000
やられた
まだまだ！
`

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"00:00:01,000", time.Second, false},
		{"01:02:03,456", time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond, false},
		{"00:00:01.500", 1500 * time.Millisecond, false},
		{" 00:00:02,000 ", 2 * time.Second, false},
		{"00:61:00,000", 0, true},
		{"garbage", 0, true},
		{"1:2:3,4", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00:01,000", FormatTimestamp(time.Second))
	assert.Equal(t, "01:02:03,456",
		FormatTimestamp(time.Hour+2*time.Minute+3*time.Second+456*time.Millisecond))
	assert.Equal(t, "00:00:00,000", FormatTimestamp(-time.Second))
}

func TestParseAndRenderRoundTrip(t *testing.T) {
	track, err := Parse(sample)
	require.NoError(t, err)
	require.Len(t, track.Cues, 2)

	assert.Equal(t, time.Second, track.Cues[0].Start)
	assert.Equal(t, "ナイス！", track.Cues[0].Text)
	assert.Equal(t, "やられた\nまだまだ！", track.Cues[1].Text)

	reparsed, err := Parse(track.Render())
	require.NoError(t, err)
	assert.Equal(t, track.Cues, reparsed.Cues)
}

func TestParseSkipsMalformedBlocks(t *testing.T) {
	text := "1\nnot a timestamp\nhello\n\n2\n00:00:01,000 --> 00:00:02,000\nkept\n"
	track, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, track.Cues, 1)
	assert.Equal(t, "kept", track.Cues[0].Text)
}

func TestParseCRLFAndMissingIndex(t *testing.T) {
	text := "00:00:01,000 --> 00:00:02,000\r\nfirst\r\n\r\n00:00:03,000 --> 00:00:04,000\r\nsecond\r\n"
	track, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, track.Cues, 2)
	assert.Equal(t, "second", track.Cues[1].Text)
}

func TestShiftClampsAtZero(t *testing.T) {
	track, err := Parse(sample)
	require.NoError(t, err)

	shifted := track.Shift(-2 * time.Second)
	assert.Equal(t, time.Duration(0), shifted.Cues[0].Start)
	assert.Equal(t, 500*time.Millisecond, shifted.Cues[0].End)
	assert.Equal(t, 3250*time.Millisecond, shifted.Cues[1].Start)

	// Original is untouched.
	assert.Equal(t, time.Second, track.Cues[0].Start)
}

func TestConcatAppliesRunningOffsets(t *testing.T) {
	first, err := Parse("1\n00:00:01,000 --> 00:00:02,000\nclip one\n")
	require.NoError(t, err)
	second, err := Parse("1\n00:00:00,500 --> 00:00:01,500\nclip two\n")
	require.NoError(t, err)

	merged, err := Concat(
		[]*Track{first, second},
		[]time.Duration{0, 3 * time.Minute},
	)
	require.NoError(t, err)
	require.Len(t, merged.Cues, 2)
	assert.Equal(t, time.Second, merged.Cues[0].Start)
	assert.Equal(t, 3*time.Minute+500*time.Millisecond, merged.Cues[1].Start)
	assert.Equal(t, "clip two", merged.Cues[1].Text)
}

func TestConcatToleratesNilTracks(t *testing.T) {
	first, err := Parse("1\n00:00:01,000 --> 00:00:02,000\nonly\n")
	require.NoError(t, err)

	merged, err := Concat([]*Track{nil, first}, []time.Duration{0, time.Minute})
	require.NoError(t, err)
	require.Len(t, merged.Cues, 1)
	assert.Equal(t, time.Minute+time.Second, merged.Cues[0].Start)
}

func TestConcatLengthMismatch(t *testing.T) {
	_, err := Concat([]*Track{{}}, nil)
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	track, err := Parse(sample)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, track.Duration())
	assert.Zero(t, (&Track{}).Duration())
}

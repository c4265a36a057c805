package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuilderArgumentOrder(t *testing.T) {
	cmd := NewCommandBuilder("/usr/bin/ffmpeg").
		HideBanner().
		Overwrite().
		Input("list.txt", "-f", "concat", "-safe", "0").
		CopyStreams().
		Output("out.mkv").
		Build()

	assert.Equal(t, []string{
		"-loglevel", "error",
		"-hide_banner",
		"-y",
		"-f", "concat", "-safe", "0", "-i", "list.txt",
		"-c", "copy",
		"out.mkv",
	}, cmd.Args)
	assert.Contains(t, cmd.String(), "/usr/bin/ffmpeg -loglevel error")
}

func TestCommandBuilderMultipleInputs(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("video.mkv").
		Input("subs.srt").
		Map("0").
		Map("1:0").
		CopyStreams().
		OutputArgs("-c:s", "srt").
		Output("out.mkv").
		Build()

	assert.Equal(t, []string{
		"-loglevel", "error",
		"-i", "video.mkv",
		"-i", "subs.srt",
		"-map", "0", "-map", "1:0",
		"-c", "copy",
		"-c:s", "srt",
		"out.mkv",
	}, cmd.Args)
}

func TestCommandBuilderFilters(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		Input("in.mkv").
		VideoFilter("scale=1280:720").
		VideoFilter("fps=30").
		AudioFilter("volume=1.5").
		Output("out.mkv").
		Build()

	assert.Contains(t, cmd.String(), "-vf scale=1280:720,fps=30")
	assert.Contains(t, cmd.String(), "-af volume=1.5")
}

func TestConcatEscape(t *testing.T) {
	assert.Equal(t, "'/tmp/plain.mkv'", concatEscape("/tmp/plain.mkv"))
	assert.Equal(t, `'/tmp/it'\''s.mkv'`, concatEscape("/tmp/it's.mkv"))
}

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{
		"format": {
			"filename": "battle.mkv",
			"format_name": "matroska,webm",
			"duration": "312.480000",
			"tags": {"COMMENT": "slot-1"}
		},
		"streams": [
			{"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
			{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2},
			{"index": 2, "codec_name": "subrip", "codec_type": "subtitle"}
		]
	}`)

	res, err := parseProbeOutput(data)
	require.NoError(t, err)

	secs, err := res.DurationSeconds()
	require.NoError(t, err)
	assert.InDelta(t, 312.48, secs, 0.001)

	assert.Len(t, res.StreamsOfType("video"), 1)
	assert.Len(t, res.StreamsOfType("subtitle"), 1)
	assert.Equal(t, 1920, res.StreamsOfType("video")[0].Width)
	assert.Equal(t, "slot-1", res.Format.Tags["COMMENT"])
}

func TestParseProbeOutputInvalid(t *testing.T) {
	_, err := parseProbeOutput([]byte("{not json"))
	assert.Error(t, err)
}

func TestProbeResultWithoutDuration(t *testing.T) {
	res := &ProbeResult{}
	_, err := res.DurationSeconds()
	assert.Error(t, err)
}

func TestParseDshowDevices(t *testing.T) {
	dump := `[dshow @ 000001] DirectShow video devices (some may be both video and audio devices)
[dshow @ 000001]  "Game Capture HD60 S" (video)
[dshow @ 000001]     Alternative name "@device_pnp_..."
[dshow @ 000001]  "OBS Virtual Camera" (video)
[dshow @ 000001] DirectShow audio devices
[dshow @ 000001]  "Microphone (USB Audio)" (audio)
dummy: Immediate exit requested`

	devices := parseDshowDevices(dump)
	assert.Equal(t, []string{"Game Capture HD60 S", "OBS Virtual Camera"}, devices)
}

func TestParseDshowDevicesEmpty(t *testing.T) {
	assert.Empty(t, parseDshowDevices("no devices here"))
}

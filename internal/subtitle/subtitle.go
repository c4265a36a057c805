// Package subtitle parses and renders SubRip (SRT) text, with the
// shift and concatenation operations the edit pipeline needs when
// merging per-battle clips.
package subtitle

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Cue is one subtitle entry.
type Cue struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Track is an ordered list of cues.
type Track struct {
	Cues []Cue
}

var timestampRe = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})[,.](\d{1,3})$`)

// ParseTimestamp parses an SRT timestamp (HH:MM:SS,mmm).
func ParseTimestamp(s string) (time.Duration, error) {
	m := timestampRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	hours, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	if mins > 59 || secs > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Duration(hours)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(secs)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// FormatTimestamp renders a duration as an SRT timestamp.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	secs := d / time.Second
	d -= secs * time.Second
	millis := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, mins, secs, millis)
}

// Parse reads SRT text into a track. Cue indices in the input are
// ignored; order is normalized by start time. Malformed blocks are
// skipped.
func Parse(text string) (*Track, error) {
	track := &Track{}
	blocks := splitBlocks(text)
	for _, block := range blocks {
		cue, ok := parseBlock(block)
		if ok {
			track.Cues = append(track.Cues, cue)
		}
	}
	sort.SliceStable(track.Cues, func(i, j int) bool {
		return track.Cues[i].Start < track.Cues[j].Start
	})
	return track, nil
}

func splitBlocks(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseBlock(lines []string) (Cue, bool) {
	// Optional numeric index on the first line.
	i := 0
	if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err == nil {
		i = 1
	}
	if i >= len(lines) {
		return Cue{}, false
	}
	parts := strings.SplitN(lines[i], "-->", 2)
	if len(parts) != 2 {
		return Cue{}, false
	}
	start, err := ParseTimestamp(parts[0])
	if err != nil {
		return Cue{}, false
	}
	end, err := ParseTimestamp(parts[1])
	if err != nil {
		return Cue{}, false
	}
	text := strings.Join(lines[i+1:], "\n")
	if text == "" {
		return Cue{}, false
	}
	return Cue{Start: start, End: end, Text: text}, true
}

// Render writes the track back as SRT text with sequential indices.
func (t *Track) Render() string {
	var b strings.Builder
	for i, cue := range t.Cues {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text)
	}
	return b.String()
}

// Shift returns a copy with every cue offset. Cues shifted before zero
// are clamped.
func (t *Track) Shift(offset time.Duration) *Track {
	out := &Track{Cues: make([]Cue, len(t.Cues))}
	for i, cue := range t.Cues {
		start := cue.Start + offset
		end := cue.End + offset
		if start < 0 {
			start = 0
		}
		if end < 0 {
			end = 0
		}
		out.Cues[i] = Cue{Start: start, End: end, Text: cue.Text}
	}
	return out
}

// Duration returns the end time of the last cue.
func (t *Track) Duration() time.Duration {
	var max time.Duration
	for _, cue := range t.Cues {
		if cue.End > max {
			max = cue.End
		}
	}
	return max
}

// Concat joins tracks, offsetting each by the running total of the
// supplied clip lengths. offsets[i] is the start position of clip i in
// the merged video; len(offsets) must equal len(tracks).
func Concat(tracks []*Track, offsets []time.Duration) (*Track, error) {
	if len(tracks) != len(offsets) {
		return nil, fmt.Errorf("got %d tracks but %d offsets", len(tracks), len(offsets))
	}
	out := &Track{}
	for i, track := range tracks {
		if track == nil {
			continue
		}
		shifted := track.Shift(offsets[i])
		out.Cues = append(out.Cues, shifted.Cues...)
	}
	sort.SliceStable(out.Cues, func(i, j int) bool {
		return out.Cues[i].Start < out.Cues[j].Start
	})
	return out, nil
}

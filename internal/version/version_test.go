package version

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	if info.Version == "" {
		t.Error("expected non-empty version")
	}
	if info.GoVersion == "" {
		t.Error("expected non-empty go version")
	}
	if !strings.Contains(info.Platform, runtime.GOOS) {
		t.Errorf("expected platform to contain %s, got %s", runtime.GOOS, info.Platform)
	}
	if !strings.Contains(info.Platform, runtime.GOARCH) {
		t.Errorf("expected platform to contain %s, got %s", runtime.GOARCH, info.Platform)
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, ApplicationName) {
		t.Errorf("expected version string to contain %q, got %q", ApplicationName, s)
	}
	if !strings.Contains(s, Version) {
		t.Errorf("expected version string to contain %q, got %q", Version, s)
	}
}

func TestShort(t *testing.T) {
	s := Short()
	if !strings.HasPrefix(s, ApplicationName) {
		t.Errorf("expected short string to start with %q, got %q", ApplicationName, s)
	}
}

func TestJSON(t *testing.T) {
	var info Info
	if err := json.Unmarshal([]byte(JSON()), &info); err != nil {
		t.Fatalf("JSON output did not parse: %v", err)
	}
	if info.Version != Version {
		t.Errorf("expected version %q, got %q", Version, info.Version)
	}
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()
	want := ApplicationName + "/" + Version
	if ua != want {
		t.Errorf("expected %q, got %q", want, ua)
	}
}

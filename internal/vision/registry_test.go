package vision

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMatcher returns a fixed result and records calls.
type stubMatcher struct {
	name   string
	result bool
	calls  int
}

func (s *stubMatcher) Name() string        { return s.name }
func (s *stubMatcher) Match(*Frame) bool   { s.calls++; return s.result }

func TestRegistryMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubMatcher{name: "yes", result: true}))
	require.NoError(t, reg.Register(&stubMatcher{name: "no", result: false}))
	require.NoError(t, reg.RegisterComposite("combo", "yes and not no"))
	require.NoError(t, reg.Seal())

	f := NewUniformFrame(4, 4, 0, 0, 0)
	assert.True(t, reg.Match("yes", f))
	assert.False(t, reg.Match("no", f))
	assert.True(t, reg.Match("combo", f))
	assert.False(t, reg.Match("unknown", f), "unknown keys are false, not errors")
}

func TestRegistryGroupOrdering(t *testing.T) {
	reg := NewRegistry()
	a := &stubMatcher{name: "alpha", result: true}
	b := &stubMatcher{name: "beta", result: true}
	require.NoError(t, reg.Register(a))
	require.NoError(t, reg.Register(b))
	require.NoError(t, reg.RegisterGroup("fwd", []string{"alpha", "beta"}))
	require.NoError(t, reg.RegisterGroup("rev", []string{"beta", "alpha"}))
	require.NoError(t, reg.Seal())

	f := NewUniformFrame(4, 4, 0, 0, 0)
	name, ok := reg.MatchedName("fwd", f)
	require.True(t, ok)
	assert.Equal(t, "alpha", name)

	name, ok = reg.MatchedName("rev", f)
	require.True(t, ok)
	assert.Equal(t, "beta", name, "changing group order changes the result")
}

func TestRegistryGroupNoMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubMatcher{name: "no", result: false}))
	require.NoError(t, reg.RegisterGroup("g", []string{"no"}))
	require.NoError(t, reg.Seal())

	_, ok := reg.MatchedName("g", NewUniformFrame(4, 4, 0, 0, 0))
	assert.False(t, ok)
}

func TestRegistrySealRejectsUnknownComposite(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterComposite("broken", "nonexistent"))
	assert.Error(t, reg.Seal())
}

func TestRegistryMutationAfterSealPanics(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Seal())
	assert.Panics(t, func() {
		_ = reg.Register(&stubMatcher{name: "late"})
	})
}

func TestLoadRegistry(t *testing.T) {
	configDir := t.TempDir()
	assetDir := t.TempDir()

	// A small white-square template asset.
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	tplPath := filepath.Join(assetDir, "tpl.png")
	fh, err := os.Create(tplPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(fh, img))
	require.NoError(t, fh.Close())

	config := `
matchers:
  - name: bright
    type: brightness
    min_value: 200
  - name: dark
    type: brightness
    max_value: 50
  - name: green_zone
    type: hsv_ratio
    roi: {x: 0, y: 0, w: 16, h: 16}
    hsv: {lower_h: 50, upper_h: 70, lower_s: 200, upper_s: 255, lower_v: 200, upper_v: 255}
    threshold: 0.8
  - name: square
    type: template
    template: tpl.png
    threshold: 0.8
composites:
  - name: bright_not_dark
    expression: bright and not dark
groups:
  - name: exposure
    members: [bright, dark]
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "screens.yaml"), []byte(config), 0o644))

	reg, err := LoadRegistry(configDir, assetDir)
	require.NoError(t, err)

	white := NewUniformFrame(32, 32, 255, 255, 255)
	black := NewUniformFrame(32, 32, 0, 0, 0)

	assert.True(t, reg.Match("bright", white))
	assert.True(t, reg.Match("bright_not_dark", white))
	assert.False(t, reg.Match("bright_not_dark", black))

	name, ok := reg.MatchedName("exposure", black)
	require.True(t, ok)
	assert.Equal(t, "dark", name)
}

func TestLoadRegistryMisconfig(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{"unknown type", "matchers:\n  - name: x\n    type: wavelet\n"},
		{"missing digest", "matchers:\n  - name: x\n    type: hash\n"},
		{"duplicate name", "matchers:\n  - name: x\n    type: brightness\n  - name: x\n    type: brightness\n"},
		{"group unknown member", "groups:\n  - name: g\n    members: [ghost]\n"},
		{"bad expression", "composites:\n  - name: c\n    expression: '(a or'\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "m.yaml"), []byte(tt.config), 0o644))
			_, err := LoadRegistry(dir, dir)
			assert.Error(t, err)
		})
	}
}

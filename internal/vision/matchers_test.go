package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientFrame builds a frame whose blue channel increases with x so
// crops are distinguishable.
func gradientFrame(w, h int) *Frame {
	pix := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			pix[i] = byte(x % 256)
			pix[i+1] = byte(y % 256)
			pix[i+2] = 128
		}
	}
	f, _ := NewFrame(pix, w, h)
	return f
}

func TestHashMatcher(t *testing.T) {
	f := gradientFrame(64, 64)
	roi := Rect{X: 8, Y: 8, W: 16, H: 16}

	m := NewHashMatcher("exact", roi, HashFrame(f, roi))
	assert.True(t, m.Match(f))

	// A single changed pixel inside the ROI must fail; outside must not.
	inside := f.Clone()
	inside.Pix[(10*64+10)*3] ^= 0xFF
	assert.False(t, m.Match(inside))

	outside := f.Clone()
	outside.Pix[0] ^= 0xFF
	assert.True(t, m.Match(outside))
}

func TestHSVMatcherRatio(t *testing.T) {
	// Pure green: OpenCV hue 60, full saturation and value.
	green := NewUniformFrame(32, 32, 0, 255, 0)
	rng := HSVRange{LowerH: 50, UpperH: 70, LowerS: 200, UpperS: 255, LowerV: 200, UpperV: 255}

	m := NewHSVMatcher("green", Rect{}, rng, 0.9, nil)
	assert.True(t, m.Match(green))

	red := NewUniformFrame(32, 32, 0, 0, 255)
	assert.False(t, m.Match(red))
}

func TestHSVMatcherHueWrap(t *testing.T) {
	// Red sits at hue 0; a wrap-around range must catch it.
	red := NewUniformFrame(16, 16, 0, 0, 255)
	rng := HSVRange{LowerH: 170, UpperH: 10, LowerS: 100, UpperS: 255, LowerV: 100, UpperV: 255}
	m := NewHSVRatioMatcher("red", Rect{}, rng, 0.9)
	assert.True(t, m.Match(red))
}

func TestHSVMatcherSubsamplePreservesRatio(t *testing.T) {
	// Half the 100x100 ROI is green: ratio stays ~0.5 after 2x decimation.
	f := NewUniformFrame(100, 100, 0, 0, 0)
	for y := 0; y < 100; y++ {
		for x := 0; x < 50; x++ {
			i := (y*100 + x) * 3
			f.Pix[i+1] = 255
		}
	}
	rng := HSVRange{LowerH: 50, UpperH: 70, LowerS: 200, UpperS: 255, LowerV: 200, UpperV: 255}
	assert.True(t, NewHSVRatioMatcher("half", Rect{}, rng, 0.45).Match(f))
	assert.False(t, NewHSVRatioMatcher("half", Rect{}, rng, 0.55).Match(f))
}

func TestHSVMatcherMaskBBoxClip(t *testing.T) {
	// Mask covers only the left column block; everything under the mask
	// is green, the rest black. Without the bbox clip the ratio would
	// still be computed over masked pixels only, so this asserts both
	// the clip and the restriction agree.
	f := NewUniformFrame(40, 40, 0, 0, 0)
	mask := NewGray(40, 40)
	for y := 10; y < 30; y++ {
		for x := 5; x < 15; x++ {
			i := (y*40 + x) * 3
			f.Pix[i+1] = 255
			mask.Set(x, y, 255)
		}
	}
	rng := HSVRange{LowerH: 50, UpperH: 70, LowerS: 200, UpperS: 255, LowerV: 200, UpperV: 255}
	m := NewHSVMatcher("masked", Rect{}, rng, 0.99, mask)
	assert.True(t, m.Match(f))
}

func TestRGBMatcher(t *testing.T) {
	f := gradientFrame(32, 32)
	roi := Rect{X: 0, Y: 0, W: 16, H: 16}
	ref := f.Crop(roi)

	m, err := NewRGBMatcher("ref", roi, ref, 1.0, nil)
	require.NoError(t, err)
	assert.True(t, m.Match(f))

	changed := f.Clone()
	changed.Pix[0] ^= 0xFF
	assert.False(t, m.Match(changed))

	// Lower threshold tolerates the single differing pixel.
	loose, err := NewRGBMatcher("loose", roi, ref, 0.9, nil)
	require.NoError(t, err)
	assert.True(t, loose.Match(changed))
}

func TestUniformColorMatcher(t *testing.T) {
	flat := NewUniformFrame(20, 20, 30, 200, 40)
	assert.True(t, NewUniformColorMatcher("flat", Rect{}, 1.0, nil).Match(flat))

	noisy := gradientFrame(20, 20)
	assert.False(t, NewUniformColorMatcher("noisy", Rect{}, 1.0, nil).Match(noisy))
}

func TestBrightnessMatcher(t *testing.T) {
	dark := NewUniformFrame(10, 10, 10, 10, 10)
	bright := NewUniformFrame(10, 10, 250, 250, 250)

	tests := []struct {
		name     string
		min, max int
		frame    *Frame
		want     bool
	}{
		{"dark passes low band", -1, 30, dark, true},
		{"bright fails low band", -1, 30, bright, false},
		{"bright passes high band", 200, -1, bright, true},
		{"dark fails high band", 200, -1, dark, false},
		{"band inclusive", 10, 10, dark, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewBrightnessMatcher("b", Rect{}, tt.min, tt.max, nil)
			assert.Equal(t, tt.want, m.Match(tt.frame))
		})
	}
}

func TestTemplateMatcher(t *testing.T) {
	// Embed a bright square in a dark frame. The template straddles
	// the square's corner so it carries variance; a uniform template
	// would hit the zero-variance sentinel.
	f := NewUniformFrame(64, 64, 20, 20, 20)
	for y := 24; y < 40; y++ {
		for x := 24; x < 40; x++ {
			i := (y*64 + x) * 3
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 230, 230, 230
		}
	}
	tpl := f.Crop(Rect{X: 20, Y: 20, W: 16, H: 16}).Gray()

	m := NewTemplateMatcher("square", Rect{}, tpl, 0.9, nil)
	assert.True(t, m.Match(f))
	assert.GreaterOrEqual(t, m.Score(f, nil), 0.99)

	blank := NewUniformFrame(64, 64, 20, 20, 20)
	assert.False(t, m.Match(blank))

	flat := f.Crop(Rect{X: 26, Y: 26, W: 8, H: 8}).Gray()
	zero := NewTemplateMatcher("flat", Rect{}, flat, 0.9, nil)
	assert.Equal(t, -1.0, zero.Score(f, nil))
}

func TestTemplateMatcherCancel(t *testing.T) {
	f := gradientFrame(128, 128)
	tpl := f.Crop(Rect{X: 0, Y: 0, W: 8, H: 8}).Gray()
	m := NewTemplateMatcher("c", Rect{}, tpl, 0.5, nil)

	cancelled := m.Score(f, func() bool { return true })
	assert.Equal(t, -1.0, cancelled)
}

func TestEdgeMatcher(t *testing.T) {
	// A high-contrast box produces stable edges for chamfer matching.
	f := NewUniformFrame(80, 80, 0, 0, 0)
	for y := 20; y < 60; y++ {
		for x := 20; x < 60; x++ {
			i := (y*80 + x) * 3
			f.Pix[i], f.Pix[i+1], f.Pix[i+2] = 255, 255, 255
		}
	}
	tpl := f.Crop(Rect{X: 10, Y: 10, W: 60, H: 60}).Gray()

	m := NewEdgeMatcher("box", Rect{}, tpl, 1.0)
	assert.True(t, m.Match(f))

	blank := NewUniformFrame(80, 80, 0, 0, 0)
	assert.False(t, m.Match(blank))
}

func TestFrameFingerprint(t *testing.T) {
	a := gradientFrame(1920, 64)
	b := a.Clone()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Pix[0] ^= 0xFF
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

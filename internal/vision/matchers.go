package vision

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Matcher decides whether one screen condition holds for a frame.
// Implementations are immutable after construction and safe for
// concurrent use.
type Matcher interface {
	// Name is the display name used by group matching.
	Name() string
	// Match reports whether the condition holds.
	Match(f *Frame) bool
}

// roiCrop applies the optional ROI. A zero rectangle means the whole frame.
func roiCrop(f *Frame, roi Rect) *Frame {
	if roi.Empty() {
		return f
	}
	return f.Crop(roi)
}

// HashMatcher passes iff the SHA-256 digest of the ROI bytes equals a
// pre-captured reference digest. No tolerance; used for exact-pixel
// screens such as menus.
type HashMatcher struct {
	name   string
	roi    Rect
	digest string
}

// NewHashMatcher builds a matcher from a reference digest (hex).
func NewHashMatcher(name string, roi Rect, digest string) *HashMatcher {
	return &HashMatcher{name: name, roi: roi, digest: digest}
}

// HashFrame computes the digest used by HashMatcher for a frame region.
func HashFrame(f *Frame, roi Rect) string {
	sum := sha256.Sum256(roiCrop(f, roi).Pix)
	return hex.EncodeToString(sum[:])
}

func (m *HashMatcher) Name() string { return m.name }

func (m *HashMatcher) Match(f *Frame) bool {
	return HashFrame(f, m.roi) == m.digest
}

// HSVRange is an inclusive HSV bound on the OpenCV 8-bit convention.
type HSVRange struct {
	LowerH byte `yaml:"lower_h"`
	LowerS byte `yaml:"lower_s"`
	LowerV byte `yaml:"lower_v"`
	UpperH byte `yaml:"upper_h"`
	UpperS byte `yaml:"upper_s"`
	UpperV byte `yaml:"upper_v"`
}

// contains tests one HSV pixel against the range. A lower hue above the
// upper hue selects the wrap-around interval (reds).
func (r HSVRange) contains(h, s, v byte) bool {
	if s < r.LowerS || s > r.UpperS || v < r.LowerV || v > r.UpperV {
		return false
	}
	if r.LowerH <= r.UpperH {
		return h >= r.LowerH && h <= r.UpperH
	}
	return h >= r.LowerH || h <= r.UpperH
}

// subsampleArea is the ROI area from which ratio matchers decimate by 2x.
const subsampleArea = 60 * 60

// HSVMatcher passes when the ratio of ROI pixels inside an HSV range
// (restricted to an optional mask) reaches the threshold.
type HSVMatcher struct {
	name      string
	roi       Rect
	rng       HSVRange
	threshold float64
	mask      *Gray
}

// NewHSVMatcher builds an HSV color-ratio matcher. When a mask with a
// tight bounding box is supplied and no ROI is given, the match is
// clipped to that box first.
func NewHSVMatcher(name string, roi Rect, rng HSVRange, threshold float64, mask *Gray) *HSVMatcher {
	m := &HSVMatcher{name: name, roi: roi, rng: rng, threshold: threshold, mask: mask}
	if roi.Empty() && mask != nil {
		if bbox, ok := mask.BoundingBox(); ok {
			m.roi = bbox
			m.mask = mask.Crop(bbox)
		}
	}
	return m
}

func (m *HSVMatcher) Name() string { return m.name }

func (m *HSVMatcher) Match(f *Frame) bool {
	crop := roiCrop(f, m.roi)
	mask := m.mask
	if crop.Width*crop.Height >= subsampleArea {
		crop = crop.SubsampleHalf()
		if mask != nil {
			mask = subsampleMaskHalf(mask)
		}
	}
	total, hit := 0, 0
	i := 0
	for p := 0; p < len(crop.Pix); p += 3 {
		if mask == nil || (i < len(mask.Pix) && mask.Pix[i] != 0) {
			total++
			h, s, v := bgrToHSV(crop.Pix[p], crop.Pix[p+1], crop.Pix[p+2])
			if m.rng.contains(h, s, v) {
				hit++
			}
		}
		i++
	}
	if total == 0 {
		return false
	}
	return float64(hit)/float64(total) >= m.threshold
}

func subsampleMaskHalf(g *Gray) *Gray {
	w, h := (g.Width+1)/2, (g.Height+1)/2
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Set(x, y, g.At(x*2, y*2))
		}
	}
	return out
}

// HSVRatioMatcher is HSVMatcher evaluated over the whole ROI, never
// masked. Kept separate because registries configure the two
// differently.
type HSVRatioMatcher struct {
	name      string
	roi       Rect
	rng       HSVRange
	threshold float64
}

// NewHSVRatioMatcher builds a mask-less HSV ratio matcher.
func NewHSVRatioMatcher(name string, roi Rect, rng HSVRange, threshold float64) *HSVRatioMatcher {
	return &HSVRatioMatcher{name: name, roi: roi, rng: rng, threshold: threshold}
}

func (m *HSVRatioMatcher) Name() string { return m.name }

func (m *HSVRatioMatcher) Match(f *Frame) bool {
	crop := roiCrop(f, m.roi)
	if crop.Width*crop.Height >= subsampleArea {
		crop = crop.SubsampleHalf()
	}
	total, hit := 0, 0
	for p := 0; p < len(crop.Pix); p += 3 {
		total++
		h, s, v := bgrToHSV(crop.Pix[p], crop.Pix[p+1], crop.Pix[p+2])
		if m.rng.contains(h, s, v) {
			hit++
		}
	}
	if total == 0 {
		return false
	}
	return float64(hit)/float64(total) >= m.threshold
}

// RGBMatcher passes when the ratio of ROI pixels exactly equal to a
// reference capture (restricted to an optional mask) reaches the
// threshold.
type RGBMatcher struct {
	name      string
	roi       Rect
	reference *Frame
	threshold float64
	mask      *Gray
}

// NewRGBMatcher builds an exact-color matcher against a reference image
// the size of the ROI.
func NewRGBMatcher(name string, roi Rect, reference *Frame, threshold float64, mask *Gray) (*RGBMatcher, error) {
	if reference == nil {
		return nil, fmt.Errorf("rgb matcher %q requires a reference image", name)
	}
	return &RGBMatcher{name: name, roi: roi, reference: reference, threshold: threshold, mask: mask}, nil
}

func (m *RGBMatcher) Name() string { return m.name }

func (m *RGBMatcher) Match(f *Frame) bool {
	crop := roiCrop(f, m.roi)
	if crop.Width != m.reference.Width || crop.Height != m.reference.Height {
		return false
	}
	total, hit := 0, 0
	i := 0
	for p := 0; p < len(crop.Pix); p += 3 {
		if m.mask == nil || (i < len(m.mask.Pix) && m.mask.Pix[i] != 0) {
			total++
			if crop.Pix[p] == m.reference.Pix[p] &&
				crop.Pix[p+1] == m.reference.Pix[p+1] &&
				crop.Pix[p+2] == m.reference.Pix[p+2] {
				hit++
			}
		}
		i++
	}
	if total == 0 {
		return false
	}
	return float64(hit)/float64(total) >= m.threshold
}

// UniformColorMatcher passes when the hue channel over the mask has a
// standard deviation at or below the threshold, i.e. the region is one
// flat color regardless of which color it is.
type UniformColorMatcher struct {
	name         string
	roi          Rect
	hueThreshold float64
	mask         *Gray
}

// NewUniformColorMatcher builds a hue-uniformity matcher.
func NewUniformColorMatcher(name string, roi Rect, hueThreshold float64, mask *Gray) *UniformColorMatcher {
	return &UniformColorMatcher{name: name, roi: roi, hueThreshold: hueThreshold, mask: mask}
}

func (m *UniformColorMatcher) Name() string { return m.name }

func (m *UniformColorMatcher) Match(f *Frame) bool {
	crop := roiCrop(f, m.roi)
	hue, _, _ := crop.HSV()
	_, stddev := hue.MeanStdDev(m.mask)
	return stddev <= m.hueThreshold
}

// BrightnessMatcher passes when the maximum grayscale value over the mask
// lies inside [MinValue, MaxValue]; either bound may be disabled.
type BrightnessMatcher struct {
	name     string
	roi      Rect
	minValue int // -1 disables
	maxValue int // -1 disables
	mask     *Gray
}

// NewBrightnessMatcher builds a peak-brightness matcher. Pass -1 to
// disable a bound.
func NewBrightnessMatcher(name string, roi Rect, minValue, maxValue int, mask *Gray) *BrightnessMatcher {
	return &BrightnessMatcher{name: name, roi: roi, minValue: minValue, maxValue: maxValue, mask: mask}
}

func (m *BrightnessMatcher) Name() string { return m.name }

func (m *BrightnessMatcher) Match(f *Frame) bool {
	gray := roiCrop(f, m.roi).Gray()
	peak := -1
	for i, v := range gray.Pix {
		if m.mask != nil && (i >= len(m.mask.Pix) || m.mask.Pix[i] == 0) {
			continue
		}
		if int(v) > peak {
			peak = int(v)
		}
	}
	if peak < 0 {
		return false
	}
	if m.minValue >= 0 && peak < m.minValue {
		return false
	}
	if m.maxValue >= 0 && peak > m.maxValue {
		return false
	}
	return true
}

// EdgeMatcher compares the edge structure of the ROI against a template
// using chamfer matching: Canny both, distance-transform the complement
// of the ROI edges, slide the template edge mask over it, and pass when
// the minimum mean edge distance is at or below the threshold.
type EdgeMatcher struct {
	name      string
	roi       Rect
	template  *Gray // template edges, precomputed at load
	threshold float64
}

// cannyLow and cannyHigh are the thresholds all screen templates were
// captured with.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// NewEdgeMatcher builds a chamfer edge matcher from a grayscale template.
// Edges of the template are extracted once here.
func NewEdgeMatcher(name string, roi Rect, template *Gray, threshold float64) *EdgeMatcher {
	return &EdgeMatcher{
		name:      name,
		roi:       roi,
		template:  template.Canny(cannyLow, cannyHigh),
		threshold: threshold,
	}
}

func (m *EdgeMatcher) Name() string { return m.name }

func (m *EdgeMatcher) Match(f *Frame) bool {
	roi := roiCrop(f, m.roi).Gray()
	if roi.Width < m.template.Width || roi.Height < m.template.Height {
		return false
	}
	edges := roi.Canny(cannyLow, cannyHigh)
	dist := edges.Invert().DistanceTransformL2()

	// template edge offsets
	var offsets [][2]int
	for y := 0; y < m.template.Height; y++ {
		for x := 0; x < m.template.Width; x++ {
			if m.template.At(x, y) != 0 {
				offsets = append(offsets, [2]int{x, y})
			}
		}
	}
	if len(offsets) == 0 {
		return false
	}

	best := float64(1<<62 - 1)
	for oy := 0; oy+m.template.Height <= roi.Height; oy++ {
		for ox := 0; ox+m.template.Width <= roi.Width; ox++ {
			var sum float64
			for _, off := range offsets {
				sum += float64(dist[(oy+off[1])*roi.Width+ox+off[0]])
			}
			mean := sum / float64(len(offsets))
			if mean < best {
				best = mean
			}
		}
	}
	return best <= m.threshold
}

// Package vision implements the frame model and the image matcher set used
// to classify game screens. All pixel work is pure Go over BGR byte
// buffers; color conversions follow the OpenCV conventions (hue in
// [0, 180), saturation and value in [0, 255]) so thresholds captured from
// the original screen recordings keep their meaning.
package vision

import (
	"fmt"
	"hash/fnv"
	"image"
	"math"
)

// Rect is a pixel-space region of interest.
type Rect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Intersect clamps the rectangle to a w×h image.
func (r Rect) Intersect(w, h int) Rect {
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.W, w), min(r.Y+r.H, h)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Frame is an immutable BGR 8-bit image. Pix is tightly packed with a
// stride of 3*Width. Callers must not mutate Pix after construction.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
}

// NewFrame wraps a BGR pixel buffer. The buffer length must be 3*w*h.
func NewFrame(pix []byte, w, h int) (*Frame, error) {
	if len(pix) != 3*w*h {
		return nil, fmt.Errorf("frame buffer length %d does not match %dx%d BGR", len(pix), w, h)
	}
	return &Frame{Pix: pix, Width: w, Height: h}, nil
}

// NewUniformFrame builds a w×h frame filled with a single BGR color.
// Used heavily by tests and by the registry's reference captures.
func NewUniformFrame(w, h int, b, g, r byte) *Frame {
	pix := make([]byte, 3*w*h)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = b, g, r
	}
	return &Frame{Pix: pix, Width: w, Height: h}
}

// FrameFromImage converts a decoded image.Image into a BGR frame.
func FrameFromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, 3*w*h)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pix[i] = byte(bl >> 8)
			pix[i+1] = byte(g >> 8)
			pix[i+2] = byte(r >> 8)
			i += 3
		}
	}
	return &Frame{Pix: pix, Width: w, Height: h}
}

// Image converts the frame to an RGBA image for encoding.
func (f *Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	i := 0
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			o := img.PixOffset(x, y)
			img.Pix[o] = f.Pix[i+2]
			img.Pix[o+1] = f.Pix[i+1]
			img.Pix[o+2] = f.Pix[i]
			img.Pix[o+3] = 0xff
			i += 3
		}
	}
	return img
}

// BGR returns the blue, green and red components at (x, y).
func (f *Frame) BGR(x, y int) (b, g, r byte) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{Pix: pix, Width: f.Width, Height: f.Height}
}

// Crop returns a copy of the region. The rectangle is clamped to the
// frame; an empty intersection yields a zero-size frame.
func (f *Frame) Crop(r Rect) *Frame {
	r = r.Intersect(f.Width, f.Height)
	if r.Empty() {
		return &Frame{Width: 0, Height: 0}
	}
	pix := make([]byte, 3*r.W*r.H)
	for y := 0; y < r.H; y++ {
		src := ((r.Y+y)*f.Width + r.X) * 3
		copy(pix[y*r.W*3:(y+1)*r.W*3], f.Pix[src:src+r.W*3])
	}
	return &Frame{Pix: pix, Width: r.W, Height: r.H}
}

// SubsampleHalf returns the frame decimated by 2 in both axes (nearest
// neighbour, even coordinates). Ratio-style matchers use this to bound
// cost on large regions without changing ratio semantics.
func (f *Frame) SubsampleHalf() *Frame {
	w, h := (f.Width+1)/2, (f.Height+1)/2
	pix := make([]byte, 3*w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			si := ((y*2)*f.Width + x*2) * 3
			di := (y*w + x) * 3
			copy(pix[di:di+3], f.Pix[si:si+3])
		}
	}
	return &Frame{Pix: pix, Width: w, Height: h}
}

// Gray converts the frame to grayscale using the BT.601 weights OpenCV
// uses for CV_BGR2GRAY.
func (f *Frame) Gray() *Gray {
	pix := make([]byte, f.Width*f.Height)
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+1 {
		b := float64(f.Pix[i])
		g := float64(f.Pix[i+1])
		r := float64(f.Pix[i+2])
		pix[j] = byte(math.Round(0.114*b + 0.587*g + 0.299*r))
	}
	return &Gray{Pix: pix, Width: f.Width, Height: f.Height}
}

// HSV converts the frame to three planes on the OpenCV 8-bit convention:
// H in [0, 180), S and V in [0, 255].
func (f *Frame) HSV() (hp, sp, vp *Gray) {
	n := f.Width * f.Height
	hph := make([]byte, n)
	sph := make([]byte, n)
	vph := make([]byte, n)
	for i, j := 0, 0; i < len(f.Pix); i, j = i+3, j+1 {
		h, s, v := bgrToHSV(f.Pix[i], f.Pix[i+1], f.Pix[i+2])
		hph[j], sph[j], vph[j] = h, s, v
	}
	return &Gray{Pix: hph, Width: f.Width, Height: f.Height},
		&Gray{Pix: sph, Width: f.Width, Height: f.Height},
		&Gray{Pix: vph, Width: f.Width, Height: f.Height}
}

// BGRToHSV converts one pixel to the OpenCV 8-bit HSV convention.
func BGRToHSV(b, g, r byte) (hh, ss, vv byte) {
	return bgrToHSV(b, g, r)
}

// bgrToHSV converts one pixel to the OpenCV 8-bit HSV convention.
func bgrToHSV(b, g, r byte) (hh, ss, vv byte) {
	bf, gf, rf := int(b), int(g), int(r)
	v := max(bf, max(gf, rf))
	mn := min(bf, min(gf, rf))
	diff := v - mn

	var s int
	if v != 0 {
		s = (diff * 255) / v
	}

	var h float64
	if diff != 0 {
		switch v {
		case rf:
			h = 60 * float64(gf-bf) / float64(diff)
		case gf:
			h = 120 + 60*float64(bf-rf)/float64(diff)
		default:
			h = 240 + 60*float64(rf-gf)/float64(diff)
		}
		if h < 0 {
			h += 360
		}
	}
	return byte(h / 2), byte(s), byte(v)
}

// Fingerprint hashes the blue channel subsampled every 64 pixels. It is a
// cheap identity for "physically the same frame" short-circuits and is
// never persisted.
func (f *Frame) Fingerprint() uint32 {
	h := fnv.New32a()
	var buf [1]byte
	for i := 0; i < len(f.Pix); i += 64 * 3 {
		buf[0] = f.Pix[i]
		h.Write(buf[:])
	}
	return h.Sum32()
}

// Gray is a single-channel 8-bit image with a stride equal to its width.
type Gray struct {
	Pix    []byte
	Width  int
	Height int
}

// NewGray allocates a zeroed w×h single-channel image.
func NewGray(w, h int) *Gray {
	return &Gray{Pix: make([]byte, w*h), Width: w, Height: h}
}

// At returns the value at (x, y).
func (g *Gray) At(x, y int) byte { return g.Pix[y*g.Width+x] }

// Set writes the value at (x, y).
func (g *Gray) Set(x, y int, v byte) { g.Pix[y*g.Width+x] = v }

// Clone returns a deep copy.
func (g *Gray) Clone() *Gray {
	pix := make([]byte, len(g.Pix))
	copy(pix, g.Pix)
	return &Gray{Pix: pix, Width: g.Width, Height: g.Height}
}

// Crop returns a copy of the region, clamped to the image.
func (g *Gray) Crop(r Rect) *Gray {
	r = r.Intersect(g.Width, g.Height)
	if r.Empty() {
		return &Gray{}
	}
	pix := make([]byte, r.W*r.H)
	for y := 0; y < r.H; y++ {
		src := (r.Y+y)*g.Width + r.X
		copy(pix[y*r.W:(y+1)*r.W], g.Pix[src:src+r.W])
	}
	return &Gray{Pix: pix, Width: r.W, Height: r.H}
}

// BoundingBox returns the tight bounding box of nonzero pixels and
// whether any nonzero pixel exists.
func (g *Gray) BoundingBox() (Rect, bool) {
	minX, minY := g.Width, g.Height
	maxX, maxY := -1, -1
	for y := 0; y < g.Height; y++ {
		row := g.Pix[y*g.Width : (y+1)*g.Width]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return Rect{}, false
	}
	return Rect{X: minX, Y: minY, W: maxX - minX + 1, H: maxY - minY + 1}, true
}

// CountNonzero returns the number of nonzero pixels.
func (g *Gray) CountNonzero() int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

package vision

import (
	"math"
)

// Threshold produces a binary image: 255 where v > thresh, else 0.
func (g *Gray) Threshold(thresh byte) *Gray {
	out := NewGray(g.Width, g.Height)
	for i, v := range g.Pix {
		if v > thresh {
			out.Pix[i] = 255
		}
	}
	return out
}

// OtsuThreshold picks the threshold minimizing intra-class variance and
// returns the binarized image along with the chosen threshold.
func (g *Gray) OtsuThreshold() (*Gray, byte) {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	bestVar := -1.0
	var best byte
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > bestVar {
			bestVar = between
			best = byte(t)
		}
	}
	return g.Threshold(best), best
}

// Invert returns 255-v for every pixel.
func (g *Gray) Invert() *Gray {
	out := NewGray(g.Width, g.Height)
	for i, v := range g.Pix {
		out.Pix[i] = 255 - v
	}
	return out
}

// Erode applies one pass of 3x3 binary erosion. Border pixels erode
// against an implicit zero border, matching OpenCV's default for a
// constant border value of 0.
func (g *Gray) Erode() *Gray {
	out := NewGray(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			keep := true
			for dy := -1; dy <= 1 && keep; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= g.Width || ny >= g.Height {
						keep = false
						break
					}
					if g.At(nx, ny) == 0 {
						keep = false
						break
					}
				}
			}
			if keep {
				out.Set(x, y, 255)
			}
		}
	}
	return out
}

// Dilate applies one pass of 3x3 binary dilation.
func (g *Gray) Dilate() *Gray {
	out := NewGray(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			hit := false
			for dy := -1; dy <= 1 && !hit; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= g.Width || ny >= g.Height {
						continue
					}
					if g.At(nx, ny) != 0 {
						hit = true
						break
					}
				}
			}
			if hit {
				out.Set(x, y, 255)
			}
		}
	}
	return out
}

// Pad surrounds the image with a constant border of the given value.
func (g *Gray) Pad(border int, value byte) *Gray {
	w, h := g.Width+2*border, g.Height+2*border
	out := NewGray(w, h)
	if value != 0 {
		for i := range out.Pix {
			out.Pix[i] = value
		}
	}
	for y := 0; y < g.Height; y++ {
		copy(out.Pix[(y+border)*w+border:(y+border)*w+border+g.Width], g.Pix[y*g.Width:(y+1)*g.Width])
	}
	return out
}

// PadReplicate surrounds the image with a border replicating edge pixels.
func (g *Gray) PadReplicate(border int) *Gray {
	w, h := g.Width+2*border, g.Height+2*border
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		sy := min(max(y-border, 0), g.Height-1)
		for x := 0; x < w; x++ {
			sx := min(max(x-border, 0), g.Width-1)
			out.Set(x, y, g.At(sx, sy))
		}
	}
	return out
}

// Scale resizes by an integer factor using nearest-neighbour sampling.
// Digit OCR preprocessing uses this for its 2x and 3x upscales.
func (g *Gray) Scale(factor int) *Gray {
	if factor <= 1 {
		return g.Clone()
	}
	w, h := g.Width*factor, g.Height*factor
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		sy := y / factor
		for x := 0; x < w; x++ {
			out.Set(x, y, g.At(x/factor, sy))
		}
	}
	return out
}

// Rotate rotates the image around its center by the given angle in
// degrees (positive = counter-clockwise) with nearest-neighbour sampling.
// Pixels mapped from outside the source are white, matching the light
// background of the rating readout this exists for.
func (g *Gray) Rotate(degrees float64) *Gray {
	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(g.Width)/2, float64(g.Height)/2
	out := NewGray(g.Width, g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			// inverse mapping
			dx, dy := float64(x)-cx, float64(y)-cy
			sx := int(math.Round(cos*dx + sin*dy + cx))
			sy := int(math.Round(-sin*dx + cos*dy + cy))
			if sx < 0 || sy < 0 || sx >= g.Width || sy >= g.Height {
				out.Set(x, y, 255)
				continue
			}
			out.Set(x, y, g.At(sx, sy))
		}
	}
	return out
}

// gaussian5 is the 5x5 kernel OpenCV uses for GaussianBlur(sigma=0),
// separable [1 4 6 4 1]/16.
var gaussian5 = [5]float64{1.0 / 16, 4.0 / 16, 6.0 / 16, 4.0 / 16, 1.0 / 16}

// GaussianBlur5 applies a 5x5 Gaussian blur with replicated borders.
func (g *Gray) GaussianBlur5() *Gray {
	tmp := make([]float64, len(g.Pix))
	// horizontal pass
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var acc float64
			for k := -2; k <= 2; k++ {
				sx := min(max(x+k, 0), g.Width-1)
				acc += gaussian5[k+2] * float64(g.At(sx, y))
			}
			tmp[y*g.Width+x] = acc
		}
	}
	out := NewGray(g.Width, g.Height)
	// vertical pass
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			var acc float64
			for k := -2; k <= 2; k++ {
				sy := min(max(y+k, 0), g.Height-1)
				acc += gaussian5[k+2] * tmp[sy*g.Width+x]
			}
			out.Set(x, y, byte(math.Round(acc)))
		}
	}
	return out
}

// Canny runs Canny edge detection with a 5x5 Gaussian pre-blur, Sobel
// gradients, non-maximum suppression, and double-threshold hysteresis.
// The (50, 150) thresholds are the ones every screen template in this
// project was captured with.
func (g *Gray) Canny(low, high float64) *Gray {
	blurred := g.GaussianBlur5()
	w, h := g.Width, g.Height

	gx := make([]float64, w*h)
	gy := make([]float64, w*h)
	mag := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			p := func(dx, dy int) float64 { return float64(blurred.At(x+dx, y+dy)) }
			gx[i] = -p(-1, -1) - 2*p(-1, 0) - p(-1, 1) + p(1, -1) + 2*p(1, 0) + p(1, 1)
			gy[i] = -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
			mag[i] = math.Hypot(gx[i], gy[i])
		}
	}

	// non-maximum suppression into strong/weak maps
	const (
		weak   = 1
		strong = 2
	)
	cls := make([]byte, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m < low {
				continue
			}
			angle := math.Atan2(gy[i], gx[i]) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			var m1, m2 float64
			switch {
			case angle < 22.5 || angle >= 157.5:
				m1, m2 = mag[i-1], mag[i+1]
			case angle < 67.5:
				m1, m2 = mag[i-w-1], mag[i+w+1]
			case angle < 112.5:
				m1, m2 = mag[i-w], mag[i+w]
			default:
				m1, m2 = mag[i-w+1], mag[i+w-1]
			}
			if m < m1 || m < m2 {
				continue
			}
			if m >= high {
				cls[i] = strong
			} else {
				cls[i] = weak
			}
		}
	}

	// hysteresis: keep weak edges connected to strong ones
	out := NewGray(w, h)
	stack := make([]int, 0, w)
	for i, c := range cls {
		if c == strong && out.Pix[i] == 0 {
			out.Pix[i] = 255
			stack = append(stack, i)
			for len(stack) > 0 {
				j := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				jx, jy := j%w, j/w
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						nx, ny := jx+dx, jy+dy
						if nx < 0 || ny < 0 || nx >= w || ny >= h {
							continue
						}
						n := ny*w + nx
						if cls[n] != 0 && out.Pix[n] == 0 {
							out.Pix[n] = 255
							stack = append(stack, n)
						}
					}
				}
			}
		}
	}
	return out
}

// DistanceTransformL2 computes the two-pass 3x3 chamfer approximation of
// the Euclidean distance to the nearest zero pixel (OpenCV DIST_L2 with a
// 3x3 mask, a=0.955, b=1.3693).
func (g *Gray) DistanceTransformL2() []float32 {
	const (
		a = 0.955
		b = 1.3693
	)
	w, h := g.Width, g.Height
	inf := float32(math.MaxFloat32)
	d := make([]float32, w*h)
	for i, v := range g.Pix {
		if v == 0 {
			d[i] = 0
		} else {
			d[i] = inf
		}
	}
	relax := func(i int, cand float32) {
		if cand < d[i] {
			d[i] = cand
		}
	}
	// forward pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			if x > 0 {
				relax(i, d[i-1]+a)
			}
			if y > 0 {
				relax(i, d[i-w]+a)
				if x > 0 {
					relax(i, d[i-w-1]+b)
				}
				if x < w-1 {
					relax(i, d[i-w+1]+b)
				}
			}
		}
	}
	// backward pass
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			if d[i] == 0 {
				continue
			}
			if x < w-1 {
				relax(i, d[i+1]+a)
			}
			if y < h-1 {
				relax(i, d[i+w]+a)
				if x < w-1 {
					relax(i, d[i+w+1]+b)
				}
				if x > 0 {
					relax(i, d[i+w-1]+b)
				}
			}
		}
	}
	return d
}

// MeanStdDev returns the mean and standard deviation of the pixels where
// mask is nonzero. A nil mask covers the whole image.
func (g *Gray) MeanStdDev(mask *Gray) (mean, stddev float64) {
	var sum, sumSq float64
	n := 0
	for i, v := range g.Pix {
		if mask != nil && mask.Pix[i] == 0 {
			continue
		}
		fv := float64(v)
		sum += fv
		sumSq += fv * fv
		n++
	}
	if n == 0 {
		return 0, 0
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

// VStack stacks images vertically, left-aligned, padding narrower rows
// with the given fill value.
func VStack(fill byte, images ...*Gray) *Gray {
	w, h := 0, 0
	for _, im := range images {
		if im.Width > w {
			w = im.Width
		}
		h += im.Height
	}
	out := NewGray(w, h)
	if fill != 0 {
		for i := range out.Pix {
			out.Pix[i] = fill
		}
	}
	y := 0
	for _, im := range images {
		for row := 0; row < im.Height; row++ {
			copy(out.Pix[(y+row)*w:(y+row)*w+im.Width], im.Pix[row*im.Width:(row+1)*im.Width])
		}
		y += im.Height
	}
	return out
}

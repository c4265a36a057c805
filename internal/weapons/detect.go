// Package weapons detects the weapon-display screen at match start and
// classifies the eight slot icons into weapon names.
package weapons

import (
	"log/slog"
	"math"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

// Slot geometry on the 1920x1080 weapon display. The eight icons sit
// in one row, allies left of center, enemies right.
var slotRects = map[models.SlotID]vision.Rect{
	models.SlotAlly1:  {X: 498, Y: 18, W: 84, H: 84},
	models.SlotAlly2:  {X: 594, Y: 18, W: 84, H: 84},
	models.SlotAlly3:  {X: 690, Y: 18, W: 84, H: 84},
	models.SlotAlly4:  {X: 786, Y: 18, W: 84, H: 84},
	models.SlotEnemy1: {X: 1050, Y: 18, W: 84, H: 84},
	models.SlotEnemy2: {X: 1146, Y: 18, W: 84, H: 84},
	models.SlotEnemy3: {X: 1242, Y: 18, W: 84, H: 84},
	models.SlotEnemy4: {X: 1338, Y: 18, W: 84, H: 84},
}

// samplePoint is the fixed per-slot probe offset: inside the player
// silhouette, clear of the weapon icon.
var samplePoint = struct{ DX, DY int }{DX: 42, DY: 64}

// Team-color distance gates for the sample-point test.
const (
	maxIntraTeamDistance = 90.0
	minCrossTeamDistance = 110.0
)

// HSV tolerances around the sampled team color, strict first, relaxed
// on retry.
var (
	strictHSVDelta  = hsvDelta{H: 6, S: 60, V: 60}
	relaxedHSVDelta = hsvDelta{H: 12, S: 90, V: 90}
)

type hsvDelta struct {
	H byte
	S byte
	V byte
}

// Species selects the silhouette model mask a slot is aligned against.
type Species string

const (
	SpeciesIka  Species = "ika"
	SpeciesTako Species = "tako"
)

// Detector decides whether a frame shows the weapon display.
type Detector interface {
	DetectWeaponDisplay(f *vision.Frame) bool
}

// OutlineDetector runs the team-color sampling test followed by the
// silhouette outline IoU test.
type OutlineDetector struct {
	ikaMask  *vision.Gray
	takoMask *vision.Gray

	iouThreshold     float64
	minMatchingSlots int
	logger           *slog.Logger
}

// NewOutlineDetector builds a detector from the two species silhouette
// masks and the configured outline gates.
func NewOutlineDetector(ikaMask, takoMask *vision.Gray, iouThreshold float64, minMatchingSlots int, logger *slog.Logger) *OutlineDetector {
	return &OutlineDetector{
		ikaMask:          ikaMask,
		takoMask:         takoMask,
		iouThreshold:     iouThreshold,
		minMatchingSlots: minMatchingSlots,
		logger:           logger.With("component", "weapons.detector"),
	}
}

// DetectWeaponDisplay implements Detector.
func (d *OutlineDetector) DetectWeaponDisplay(f *vision.Frame) bool {
	if !teamColorsPlausible(f) {
		return false
	}
	return d.outlineTest(f)
}

// sampleBGR reads the probe pixel of a slot.
func sampleBGR(f *vision.Frame, slot models.SlotID) (b, g, r byte) {
	rect := slotRects[slot]
	return f.BGR(rect.X+samplePoint.DX, rect.Y+samplePoint.DY)
}

func colorDistance(b1, g1, r1, b2, g2, r2 byte) float64 {
	db := float64(b1) - float64(b2)
	dg := float64(g1) - float64(g2)
	dr := float64(r1) - float64(r2)
	return math.Sqrt(db*db + dg*dg + dr*dr)
}

// teamColorsPlausible checks that each team's sample points cluster
// tightly while the two clusters stay far apart.
func teamColorsPlausible(f *vision.Frame) bool {
	type bgr struct{ b, g, r byte }
	sample := func(slots []models.SlotID) []bgr {
		out := make([]bgr, len(slots))
		for i, s := range slots {
			out[i].b, out[i].g, out[i].r = sampleBGR(f, s)
		}
		return out
	}
	allies := sample(models.AllySlots)
	enemies := sample(models.EnemySlots)

	maxIntra := func(points []bgr) float64 {
		maxD := 0.0
		for i := 0; i < len(points); i++ {
			for j := i + 1; j < len(points); j++ {
				d := colorDistance(points[i].b, points[i].g, points[i].r, points[j].b, points[j].g, points[j].r)
				if d > maxD {
					maxD = d
				}
			}
		}
		return maxD
	}
	if maxIntra(allies) > maxIntraTeamDistance || maxIntra(enemies) > maxIntraTeamDistance {
		return false
	}

	minCross := math.Inf(1)
	for _, a := range allies {
		for _, e := range enemies {
			d := colorDistance(a.b, a.g, a.r, e.b, e.g, e.r)
			if d < minCross {
				minCross = d
			}
		}
	}
	return minCross >= minCrossTeamDistance
}

// outlineTest extracts the team-color silhouette of each slot and
// aligns the species model against it; enough slots must clear the IoU
// gate.
func (d *OutlineDetector) outlineTest(f *vision.Frame) bool {
	matching := 0
	for _, slot := range models.AllSlots {
		if d.slotOutlineMatches(f, slot) {
			matching++
			if matching >= d.minMatchingSlots {
				return true
			}
		}
	}
	return false
}

func (d *OutlineDetector) slotOutlineMatches(f *vision.Frame, slot models.SlotID) bool {
	crop := f.Crop(slotRects[slot])
	h, s, v := crop.HSV()
	sb, sg, sr := sampleBGR(f, slot)
	refH, refS, refV := vision.BGRToHSV(sb, sg, sr)

	component := extractComponent(h, s, v, refH, refS, refV, strictHSVDelta)
	if component == nil {
		component = extractComponent(h, s, v, refH, refS, refV, relaxedHSVDelta)
	}
	if component == nil {
		return false
	}
	component = mergeAdjacentComponents(h, s, v, refH, refS, refV, component)

	iou := bestShiftIoU(component, d.ikaMask)
	if takoIoU := bestShiftIoU(component, d.takoMask); takoIoU > iou {
		iou = takoIoU
	}
	return iou >= d.iouThreshold
}

// extractComponent builds the in-range mask around the sampled color
// and keeps the connected component containing the probe point.
func extractComponent(h, s, v *vision.Gray, refH, refS, refV byte, delta hsvDelta) *vision.Gray {
	mask := inRangeMask(h, s, v, refH, refS, refV, delta)
	px, py := samplePoint.DX, samplePoint.DY
	if mask.At(px, py) == 0 {
		return nil
	}
	return floodComponent(mask, px, py)
}

// inRangeMask marks pixels whose HSV lies within delta of the
// reference. Hue distance wraps on the [0, 180) circle.
func inRangeMask(h, s, v *vision.Gray, refH, refS, refV byte, delta hsvDelta) *vision.Gray {
	mask := vision.NewGray(h.Width, h.Height)
	for i, hv := range h.Pix {
		if hueDistance(hv, refH) > int(delta.H) {
			continue
		}
		if absDiff(s.Pix[i], refS) > int(delta.S) || absDiff(v.Pix[i], refV) > int(delta.V) {
			continue
		}
		mask.Pix[i] = 255
	}
	return mask
}

func hueDistance(a, b byte) int {
	d := absDiff(a, b)
	if wrapped := 180 - d; wrapped < d {
		return wrapped
	}
	return d
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a) - int(b)
	}
	return int(b) - int(a)
}

// floodComponent returns the 4-connected component of mask containing
// (px, py).
func floodComponent(mask *vision.Gray, px, py int) *vision.Gray {
	out := vision.NewGray(mask.Width, mask.Height)
	stack := []int{py*mask.Width + px}
	out.Pix[stack[0]] = 255
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := idx%mask.Width, idx/mask.Width
		for _, n := range [][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
			nx, ny := n[0], n[1]
			if nx < 0 || ny < 0 || nx >= mask.Width || ny >= mask.Height {
				continue
			}
			ni := ny*mask.Width + nx
			if mask.Pix[ni] != 0 && out.Pix[ni] == 0 {
				out.Pix[ni] = 255
				stack = append(stack, ni)
			}
		}
	}
	return out
}

// mergeAdjacentComponents grows the probe component with neighboring
// team-color components split off by the weapon icon overlay. A
// component is merged when its bounding box touches the current one
// vertically or horizontally within a small gap.
func mergeAdjacentComponents(h, s, v *vision.Gray, refH, refS, refV byte, component *vision.Gray) *vision.Gray {
	const mergeGap = 4

	mask := inRangeMask(h, s, v, refH, refS, refV, relaxedHSVDelta)
	base, ok := component.BoundingBox()
	if !ok {
		return component
	}

	merged := component.Clone()
	visited := component.Clone()
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y) == 0 || visited.At(x, y) != 0 {
				continue
			}
			other := floodComponent(mask, x, y)
			for i, p := range other.Pix {
				if p != 0 {
					visited.Pix[i] = 255
				}
			}
			box, ok := other.BoundingBox()
			if !ok {
				continue
			}
			if boxesAdjacent(base, box, mergeGap) {
				for i, p := range other.Pix {
					if p != 0 {
						merged.Pix[i] = 255
					}
				}
			}
		}
	}
	return merged
}

// boxesAdjacent reports whether two boxes overlap or sit within gap
// pixels of each other along one axis while overlapping on the other.
func boxesAdjacent(a, b vision.Rect, gap int) bool {
	overlapX := a.X < b.X+b.W+gap && b.X < a.X+a.W+gap
	overlapY := a.Y < b.Y+b.H+gap && b.Y < a.Y+a.H+gap
	return overlapX && overlapY
}

// bestShiftIoU aligns the model mask against the component by integer
// shift and returns the best IoU found.
func bestShiftIoU(component, model *vision.Gray) float64 {
	if model == nil {
		return 0
	}
	const maxShift = 8

	best := 0.0
	for dy := -maxShift; dy <= maxShift; dy += 2 {
		for dx := -maxShift; dx <= maxShift; dx += 2 {
			if iou := shiftedIoU(component, model, dx, dy); iou > best {
				best = iou
			}
		}
	}
	return best
}

func shiftedIoU(component, model *vision.Gray, dx, dy int) float64 {
	inter, union := 0, 0
	for y := 0; y < component.Height; y++ {
		for x := 0; x < component.Width; x++ {
			c := component.At(x, y) != 0
			mx, my := x-dx, y-dy
			m := mx >= 0 && my >= 0 && mx < model.Width && my < model.Height && model.At(mx, my) != 0
			if c || m {
				union++
			}
			if c && m {
				inter++
			}
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

package analyzer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/saw4405/splat-replay/internal/vision"
)

// Column-cluster selection thresholds for the K/D/special digit ROIs.
// A cluster narrower than both bounds is treated as noise (ink specks,
// badge fragments bleeding into the ROI).
const (
	clusterMinWidthRatio = 0.4
	clusterMinWidthPx    = 12
)

// columnCluster is a run of columns containing foreground pixels,
// half-open [Start, End).
type columnCluster struct {
	Start int
	End   int
}

// Width returns the cluster width in columns.
func (c columnCluster) Width() int { return c.End - c.Start }

// columnClusters scans a binarized image for runs of columns with any
// foreground (nonzero) pixel.
func columnClusters(bin *vision.Gray) []columnCluster {
	occupied := make([]bool, bin.Width)
	for y := 0; y < bin.Height; y++ {
		row := bin.Pix[y*bin.Width : (y+1)*bin.Width]
		for x, v := range row {
			if v != 0 {
				occupied[x] = true
			}
		}
	}

	var clusters []columnCluster
	start := -1
	for x, on := range occupied {
		switch {
		case on && start < 0:
			start = x
		case !on && start >= 0:
			clusters = append(clusters, columnCluster{Start: start, End: x})
			start = -1
		}
	}
	if start >= 0 {
		clusters = append(clusters, columnCluster{Start: start, End: len(occupied)})
	}
	return clusters
}

// validClusters drops clusters narrower than both the relative and the
// absolute width bound.
func validClusters(clusters []columnCluster) []columnCluster {
	maxWidth := 0
	for _, c := range clusters {
		if c.Width() > maxWidth {
			maxWidth = c.Width()
		}
	}

	var valid []columnCluster
	for _, c := range clusters {
		w := c.Width()
		if float64(w) < clusterMinWidthRatio*float64(maxWidth) && w < clusterMinWidthPx {
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// selectDigitRange picks the column range to OCR for a single-value
// field (death, special). With two or more valid clusters the spanning
// range is taken; otherwise the last run wins.
func selectDigitRange(bin *vision.Gray) (columnCluster, bool) {
	clusters := columnClusters(bin)
	if len(clusters) == 0 {
		return columnCluster{}, false
	}
	if len(clusters) == 1 {
		return clusters[0], true
	}
	valid := validClusters(clusters)
	if len(valid) >= 2 {
		return columnCluster{Start: valid[0].Start, End: valid[len(valid)-1].End}, true
	}
	return clusters[len(clusters)-1], true
}

// cropColumns extracts a column range at full height.
func cropColumns(g *vision.Gray, c columnCluster) *vision.Gray {
	return g.Crop(vision.Rect{X: c.Start, Y: 0, W: c.Width(), H: g.Height})
}

var trailingDigits = regexp.MustCompile(`(\d+)\D*$`)

// parseCount extracts the numeric tail of an OCR string and normalizes
// it to the [0, 99] counter domain. Values of 100 or more lose their
// leading digit; the screens never show three-digit counters.
func parseCount(s string) (int, bool) {
	m := trailingDigits.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	digits := strings.TrimLeft(m[1], "0")
	if digits == "" {
		return 0, true
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	if v >= 100 {
		v, err = strconv.Atoi(digits[1:])
		if err != nil {
			return 0, false
		}
	}
	if v < 0 || v > 99 {
		return 0, false
	}
	return v, true
}

// kdConfusionValues are two-digit readings the per-cluster OCR path is
// known to produce from 1/7 stroke confusion. When cluster concat
// yields one of these, the extractor re-reads the full range instead.
var kdConfusionValues = map[int]bool{
	11: true,
	17: true,
	71: true,
	77: true,
}

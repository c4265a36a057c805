package vision

import (
	"math"
)

// CancelCheck is polled cooperatively during long template searches.
// Returning true abandons the search.
type CancelCheck func() bool

// TemplateMatcher performs normalized cross-correlation (the
// TM_CCOEFF_NORMED formulation) of the ROI grayscale against a grayscale
// template, with an optional mask restricting which template pixels
// participate.
type TemplateMatcher struct {
	name      string
	roi       Rect
	template  *Gray
	mask      *Gray
	threshold float64
}

// NewTemplateMatcher builds a correlation matcher. The mask may be nil.
func NewTemplateMatcher(name string, roi Rect, template *Gray, threshold float64, mask *Gray) *TemplateMatcher {
	return &TemplateMatcher{name: name, roi: roi, template: template, mask: mask, threshold: threshold}
}

func (m *TemplateMatcher) Name() string { return m.name }

// Match reports whether the peak correlation reaches the threshold.
func (m *TemplateMatcher) Match(f *Frame) bool {
	return m.Score(f, nil) >= m.threshold
}

// Threshold returns the configured pass threshold; weapon recognition
// reports it alongside candidate scores.
func (m *TemplateMatcher) Threshold() float64 { return m.threshold }

// Score returns the peak correlation of the template over the ROI, in
// [-1, 1]. The cancel check is honored between rows of the search; a
// cancelled search returns -1.
func (m *TemplateMatcher) Score(f *Frame, cancel CancelCheck) float64 {
	return m.ScoreGray(roiCrop(f, m.roi).Gray(), cancel)
}

// ScoreGray is Score against an already-prepared grayscale query.
func (m *TemplateMatcher) ScoreGray(query *Gray, cancel CancelCheck) float64 {
	t := m.template
	if query.Width < t.Width || query.Height < t.Height {
		return -1
	}

	// Precompute masked template statistics.
	var tSum, tSumSq float64
	n := 0
	for i, v := range t.Pix {
		if m.mask != nil && m.mask.Pix[i] == 0 {
			continue
		}
		fv := float64(v)
		tSum += fv
		tSumSq += fv * fv
		n++
	}
	if n == 0 {
		return -1
	}
	tMean := tSum / float64(n)
	tVar := tSumSq - tSum*tMean
	if tVar <= 0 {
		return -1
	}

	best := -1.0
	for oy := 0; oy+t.Height <= query.Height; oy++ {
		if cancel != nil && cancel() {
			return -1
		}
		for ox := 0; ox+t.Width <= query.Width; ox++ {
			var qSum, qSumSq, cross float64
			for y := 0; y < t.Height; y++ {
				trow := t.Pix[y*t.Width : (y+1)*t.Width]
				qrow := query.Pix[(oy+y)*query.Width+ox : (oy+y)*query.Width+ox+t.Width]
				var mrow []byte
				if m.mask != nil {
					mrow = m.mask.Pix[y*t.Width : (y+1)*t.Width]
				}
				for x := 0; x < t.Width; x++ {
					if mrow != nil && mrow[x] == 0 {
						continue
					}
					qv := float64(qrow[x])
					tv := float64(trow[x])
					qSum += qv
					qSumSq += qv * qv
					cross += qv * tv
				}
			}
			qMean := qSum / float64(n)
			qVar := qSumSq - qSum*qMean
			if qVar <= 0 {
				continue
			}
			num := cross - qSum*tMean
			score := num / math.Sqrt(tVar*qVar)
			if score > best {
				best = score
			}
		}
	}
	return best
}

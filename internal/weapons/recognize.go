package weapons

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/vision"
)

// queryPadding is the replicate border around each slot crop so the
// correlation search has room to slide.
const queryPadding = 8

// defaultTemplateThreshold applies to weapons without an explicit
// threshold in the template set.
const defaultTemplateThreshold = 0.8

const topCandidateCount = 3

// Recognizer classifies slot icons into weapon names.
type Recognizer interface {
	Recognize(ctx context.Context, f *vision.Frame, targetSlots []models.SlotID,
		previous map[models.SlotID]models.WeaponSlotResult, saveUnmatched bool) (models.WeaponRecognitionResult, error)
}

// weaponTemplates is one weapon's template set.
type weaponTemplates struct {
	name      string
	threshold float64
	templates []*vision.Gray
}

// TemplateRecognizer scores each slot against every configured weapon
// template and picks the best match per slot.
type TemplateRecognizer struct {
	weapons      []weaponTemplates
	unmatchedDir string
	logger       *slog.Logger
}

// LoadTemplateRecognizer reads per-weapon templates from templateDir.
// Each subdirectory is one weapon; its images are alternative templates
// for that weapon. An optional thresholds.json maps weapon names to
// score thresholds.
func LoadTemplateRecognizer(templateDir, unmatchedDir string, logger *slog.Logger) (*TemplateRecognizer, error) {
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return nil, fmt.Errorf("reading template dir: %w", err)
	}

	thresholds := map[string]float64{}
	if data, err := os.ReadFile(filepath.Join(templateDir, "thresholds.json")); err == nil {
		if err := json.Unmarshal(data, &thresholds); err != nil {
			return nil, fmt.Errorf("parsing thresholds.json: %w", err)
		}
	}

	r := &TemplateRecognizer{
		unmatchedDir: unmatchedDir,
		logger:       logger.With("component", "weapons.recognizer"),
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		weapon := entry.Name()
		dir := filepath.Join(templateDir, weapon)
		images, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("reading templates for %s: %w", weapon, err)
		}

		wt := weaponTemplates{name: weapon, threshold: defaultTemplateThreshold}
		if th, ok := thresholds[weapon]; ok {
			wt.threshold = th
		}
		for _, img := range images {
			ext := strings.ToLower(filepath.Ext(img.Name()))
			if ext != ".png" && ext != ".webp" {
				continue
			}
			tpl, err := vision.LoadGrayImage(filepath.Join(dir, img.Name()))
			if err != nil {
				return nil, fmt.Errorf("loading template %s/%s: %w", weapon, img.Name(), err)
			}
			wt.templates = append(wt.templates, tpl)
		}
		if len(wt.templates) > 0 {
			r.weapons = append(r.weapons, wt)
		}
	}
	if len(r.weapons) == 0 {
		return nil, fmt.Errorf("no weapon templates under %s", templateDir)
	}
	return r, nil
}

// Recognize implements Recognizer. Slots outside targetSlots keep their
// entry from previous. Cancellation is cooperative through ctx.
func (r *TemplateRecognizer) Recognize(ctx context.Context, f *vision.Frame, targetSlots []models.SlotID,
	previous map[models.SlotID]models.WeaponSlotResult, saveUnmatched bool) (models.WeaponRecognitionResult, error) {

	if len(targetSlots) == 0 {
		targetSlots = models.AllSlots
	}
	target := make(map[models.SlotID]bool, len(targetSlots))
	for _, s := range targetSlots {
		target[s] = true
	}

	result := models.WeaponRecognitionResult{
		SlotResults: make(map[models.SlotID]models.WeaponSlotResult, len(models.AllSlots)),
	}
	queries := make(map[models.SlotID]*vision.Gray)

	for _, slot := range models.AllSlots {
		var sr models.WeaponSlotResult
		if !target[slot] {
			prev, ok := previous[slot]
			if !ok {
				continue
			}
			sr = prev
		} else {
			if err := ctx.Err(); err != nil {
				return models.WeaponRecognitionResult{}, err
			}
			query := f.Crop(slotRects[slot]).Gray().PadReplicate(queryPadding)
			queries[slot] = query
			var err error
			sr, err = r.recognizeSlot(ctx, slot, query)
			if err != nil {
				return models.WeaponRecognitionResult{}, err
			}
		}

		result.SlotResults[slot] = sr
		idx := slot.TeamIndex()
		if slot.IsAlly() {
			result.Allies[idx] = sr.PredictedWeapon
		} else {
			result.Enemies[idx] = sr.PredictedWeapon
		}
	}

	if saveUnmatched {
		if dir, err := r.saveUnmatchedReport(result, queries); err != nil {
			r.logger.Warn("writing unmatched report failed", slog.String("error", err.Error()))
		} else if dir != "" {
			result.UnmatchedOutputDir = dir
		}
	}
	return result, nil
}

func (r *TemplateRecognizer) recognizeSlot(ctx context.Context, slot models.SlotID, query *vision.Gray) (models.WeaponSlotResult, error) {
	cancel := func() bool { return ctx.Err() != nil }

	candidates := make([]models.WeaponCandidate, 0, len(r.weapons))
	for _, w := range r.weapons {
		best := -1.0
		for _, tpl := range w.templates {
			matcher := vision.NewTemplateMatcher(w.name, vision.Rect{}, tpl, w.threshold, nil)
			score := matcher.ScoreGray(query, cancel)
			if score < 0 {
				return models.WeaponSlotResult{}, ctx.Err()
			}
			if score > best {
				best = score
			}
		}
		candidates = append(candidates, models.WeaponCandidate{
			Weapon:    w.name,
			Score:     best,
			Threshold: w.threshold,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	top := candidates
	if len(top) > topCandidateCount {
		top = top[:topCandidateCount]
	}

	sr := models.WeaponSlotResult{
		SlotID:        slot,
		TopCandidates: append([]models.WeaponCandidate(nil), top...),
	}
	if len(candidates) > 0 && candidates[0].Score >= candidates[0].Threshold {
		sr.PredictedWeapon = candidates[0].Weapon
	} else {
		sr.PredictedWeapon = models.UnknownWeapon
		sr.IsUnmatched = true
	}
	return sr, nil
}

// saveUnmatchedReport writes the unmatched slot crops and a JSON
// summary for later template curation. Returns the report directory,
// or empty when every slot matched.
func (r *TemplateRecognizer) saveUnmatchedReport(result models.WeaponRecognitionResult, queries map[models.SlotID]*vision.Gray) (string, error) {
	var unmatched []models.WeaponSlotResult
	for _, slot := range models.AllSlots {
		if sr, ok := result.SlotResults[slot]; ok && sr.IsUnmatched {
			unmatched = append(unmatched, sr)
		}
	}
	if len(unmatched) == 0 || r.unmatchedDir == "" {
		return "", nil
	}

	dir := filepath.Join(r.unmatchedDir, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	for _, sr := range unmatched {
		query, ok := queries[sr.SlotID]
		if !ok {
			continue
		}
		if err := writeGrayPNG(filepath.Join(dir, string(sr.SlotID)+".png"), query); err != nil {
			return "", err
		}
	}

	data, err := json.MarshalIndent(unmatched, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "report.json"), data, 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return dir, nil
}

func writeGrayPNG(path string, g *vision.Gray) error {
	img := &image.Gray{Pix: g.Pix, Stride: g.Width, Rect: image.Rect(0, 0, g.Width, g.Height)}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

package analyzer

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/saw4405/splat-replay/internal/models"
	"github.com/saw4405/splat-replay/internal/ocr"
	"github.com/saw4405/splat-replay/internal/vision"
)

// Battle screen keys and groups expected in the matcher configuration.
const (
	keyBattleStart     = "battle_start"
	keyBattleAbort     = "battle_abort"
	keyBattleFinish    = "battle_finish"
	keyBattleJudgement = "battle_judgement"
	keyBattleResult    = "battle_result"
	keyLoading         = "loading"
	keyLoadingEnd      = "loading_end"

	groupUdemae           = "udemae"
	groupBattleMatches    = "battle_matches"
	groupBattleRules      = "battle_rules"
	groupBattleStages     = "battle_stages"
	groupBattleJudgements = "battle_judgements"
)

// Fixed 1920x1080 pixel ROIs read by OCR.
var (
	// rateXPROI covers the X Power readout on the match select screen.
	// The readout is slightly slanted, hence the rotate before OCR.
	rateXPROI = vision.Rect{X: 1420, Y: 190, W: 220, H: 62}

	// Primary K/D/special counters on the battle result screen.
	kdPrimaryROIs = kdRegions{
		Kill:    vision.Rect{X: 1626, Y: 742, W: 72, H: 40},
		Death:   vision.Rect{X: 1626, Y: 800, W: 72, H: 40},
		Special: vision.Rect{X: 1626, Y: 858, W: 72, H: 40},
	}

	// Tricolor result screens shift the counter column left.
	kdTriColorROIs = kdRegions{
		Kill:    vision.Rect{X: 1562, Y: 742, W: 72, H: 40},
		Death:   vision.Rect{X: 1562, Y: 800, W: 72, H: 40},
		Special: vision.Rect{X: 1562, Y: 858, W: 72, H: 40},
	}
)

type kdRegions struct {
	Kill    vision.Rect
	Death   vision.Rect
	Special vision.Rect
}

const (
	kdUpscale  = 3
	kdPadding  = 50
	xpRotation = -4.0
	xpUpscale  = 2

	digitWhitelist = "0123456789"
	xpWhitelist    = "0123456789."
)

// BattleAnalyzer is the battle-mode plugin.
type BattleAnalyzer struct {
	registry *vision.Registry
	ocr      ocr.Engine
	logger   *slog.Logger
	fastKD   bool

	rateCache   fingerprintCache[models.Rate]
	resultCache fingerprintCache[models.BattleResult]
}

// NewBattleAnalyzer builds the battle plugin. fastKD selects the
// experimental stacked one-pass K/D/special OCR.
func NewBattleAnalyzer(registry *vision.Registry, engine ocr.Engine, logger *slog.Logger, fastKD bool) *BattleAnalyzer {
	return &BattleAnalyzer{
		registry: registry,
		ocr:      engine,
		logger:   logger.With("component", "analyzer.battle"),
		fastKD:   fastKD,
	}
}

// Mode implements ModeAnalyzer.
func (a *BattleAnalyzer) Mode() models.GameMode { return models.GameModeBattle }

// ExtractRate reads the player's rating off the match select screen.
// Anarchy ranks come from the udemae matcher group; X Power is OCRed
// from a fixed ROI. Other match categories carry no rate.
func (a *BattleAnalyzer) ExtractRate(ctx context.Context, f *vision.Frame, match models.Match) (models.Rate, bool) {
	switch {
	case match.IsAnarchy():
		name, ok := a.registry.MatchedName(groupUdemae, f)
		if !ok {
			return models.Rate{}, false
		}
		rate, err := models.NewUdemae(name)
		if err != nil {
			a.logger.Warn("udemae group produced unknown rank", slog.String("rank", name))
			return models.Rate{}, false
		}
		return rate, true

	case match.IsX():
		fp := f.Fingerprint()
		if rate, ok, hit := a.rateCache.get(fp); hit {
			return rate, ok
		}
		rate, ok := a.extractXP(ctx, f)
		a.rateCache.put(fp, rate, ok)
		return rate, ok
	}
	return models.Rate{}, false
}

func (a *BattleAnalyzer) extractXP(ctx context.Context, f *vision.Frame) (models.Rate, bool) {
	g := f.Crop(rateXPROI).Gray().Rotate(xpRotation).Scale(xpUpscale)
	bin, _ := g.OtsuThreshold()
	text, err := a.ocr.RecognizeText(ctx, bin.Invert(), ocr.PSMSingleLine, xpWhitelist)
	if err != nil || text == "" {
		return models.Rate{}, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return models.Rate{}, false
	}
	rate, err := models.NewXP(value)
	if err != nil {
		return models.Rate{}, false
	}
	return rate, true
}

// DetectSessionStart reports the battle intro screen.
func (a *BattleAnalyzer) DetectSessionStart(f *vision.Frame) bool {
	return a.registry.Match(keyBattleStart, f)
}

// DetectSessionAbort reports the connection-error abort screen.
func (a *BattleAnalyzer) DetectSessionAbort(f *vision.Frame) bool {
	return a.registry.Match(keyBattleAbort, f)
}

// DetectSessionFinish reports the battle finish splash.
func (a *BattleAnalyzer) DetectSessionFinish(f *vision.Frame) bool {
	return a.registry.Match(keyBattleFinish, f)
}

// DetectSessionJudgement reports the WIN/LOSE splash.
func (a *BattleAnalyzer) DetectSessionJudgement(f *vision.Frame) bool {
	return a.registry.Match(keyBattleJudgement, f)
}

// ExtractSessionJudgement reads WIN or LOSE off the judgement splash.
func (a *BattleAnalyzer) ExtractSessionJudgement(f *vision.Frame) (models.Judgement, bool) {
	name, ok := a.registry.MatchedName(groupBattleJudgements, f)
	if !ok {
		return "", false
	}
	return models.ParseJudgement(name)
}

// DetectSessionResult reports the scoreboard screen.
func (a *BattleAnalyzer) DetectSessionResult(f *vision.Frame) bool {
	return a.registry.Match(keyBattleResult, f)
}

// DetectLoading reports the inter-screen loading spinner.
func (a *BattleAnalyzer) DetectLoading(f *vision.Frame) bool {
	return a.registry.Match(keyLoading, f)
}

// DetectLoadingEnd reports that the loading spinner has gone.
func (a *BattleAnalyzer) DetectLoadingEnd(f *vision.Frame) bool {
	return a.registry.Match(keyLoadingEnd, f)
}

// ExtractSessionResult parses the scoreboard into a BattleResult. Rule,
// stage and the K/D/special counters are extracted concurrently; a miss
// on any of them fails the whole extraction. Results are cached per
// frame fingerprint.
func (a *BattleAnalyzer) ExtractSessionResult(ctx context.Context, f *vision.Frame) (models.Result, bool) {
	fp := f.Fingerprint()
	if br, ok, hit := a.resultCache.get(fp); hit {
		if !ok {
			return models.Result{}, false
		}
		result := br
		return models.Result{Battle: &result}, true
	}

	br, ok := a.extractResult(ctx, f)
	a.resultCache.put(fp, br, ok)
	if !ok {
		return models.Result{}, false
	}
	return models.Result{Battle: &br}, true
}

func (a *BattleAnalyzer) extractResult(ctx context.Context, f *vision.Frame) (models.BattleResult, bool) {
	matchName, ok := a.registry.MatchedName(groupBattleMatches, f)
	if !ok {
		return models.BattleResult{}, false
	}
	match, ok := models.ParseMatch(matchName)
	if !ok {
		return models.BattleResult{}, false
	}

	var (
		rule    models.Rule
		stage   models.Stage
		ruleOK  bool
		stageOK bool
		kill    int
		death   int
		special int
		kdOK    bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if name, ok := a.registry.MatchedName(groupBattleRules, f); ok {
			rule, ruleOK = models.ParseRule(name)
		}
		return nil
	})
	g.Go(func() error {
		if name, ok := a.registry.MatchedName(groupBattleStages, f); ok {
			stage, stageOK = models.ParseStage(name)
		}
		return nil
	})
	g.Go(func() error {
		kill, death, special, kdOK = a.extractKillRecord(gctx, f, match)
		return nil
	})
	_ = g.Wait()

	if !ruleOK || !stageOK || !kdOK {
		return models.BattleResult{}, false
	}
	return models.BattleResult{
		Match:   match,
		Rule:    rule,
		Stage:   stage,
		Kill:    kill,
		Death:   death,
		Special: special,
	}, true
}

// extractKillRecord reads the three counters. Tricolor screens get a
// second attempt against the shifted ROI set when the primary misses.
func (a *BattleAnalyzer) extractKillRecord(ctx context.Context, f *vision.Frame, match models.Match) (kill, death, special int, ok bool) {
	kill, death, special, ok = a.extractKillRecordRegions(ctx, f, kdPrimaryROIs)
	if !ok && match == models.MatchTriColor {
		kill, death, special, ok = a.extractKillRecordRegions(ctx, f, kdTriColorROIs)
	}
	return kill, death, special, ok
}

func (a *BattleAnalyzer) extractKillRecordRegions(ctx context.Context, f *vision.Frame, regions kdRegions) (int, int, int, bool) {
	killBin := prepareKDImage(f, regions.Kill)
	deathBin := prepareKDImage(f, regions.Death)
	specialBin := prepareKDImage(f, regions.Special)

	if a.fastKD {
		return a.stackedKillRecord(ctx, killBin, deathBin, specialBin)
	}

	kill, ok := a.readKill(ctx, killBin)
	if !ok {
		return 0, 0, 0, false
	}
	death, ok := a.readCount(ctx, deathBin)
	if !ok {
		return 0, 0, 0, false
	}
	special, ok := a.readCount(ctx, specialBin)
	if !ok {
		return 0, 0, 0, false
	}
	return kill, death, special, true
}

// prepareKDImage produces the binarized counter image: 3x upscale,
// black padding, Otsu, one erode. Digits are foreground (white); the
// OCR calls invert on the way out.
func prepareKDImage(f *vision.Frame, roi vision.Rect) *vision.Gray {
	g := f.Crop(roi).Gray().Scale(kdUpscale).Pad(kdPadding, 0)
	bin, _ := g.OtsuThreshold()
	return bin.Erode()
}

// readCount handles the single-cluster fields (death, special).
func (a *BattleAnalyzer) readCount(ctx context.Context, bin *vision.Gray) (int, bool) {
	rng, ok := selectDigitRange(bin)
	if !ok {
		return 0, false
	}
	text, err := a.ocr.RecognizeText(ctx, cropColumns(bin, rng).Invert(), ocr.PSMSingleLine, digitWhitelist)
	if err != nil {
		return 0, false
	}
	return parseCount(text)
}

// readKill handles the kill field, which shows one or two digits. With
// exactly two valid clusters each digit is OCRed on its own and the
// readings concatenated; confusion values and failures fall back to a
// whole-range read.
func (a *BattleAnalyzer) readKill(ctx context.Context, bin *vision.Gray) (int, bool) {
	valid := validClusters(columnClusters(bin))
	if len(valid) == 2 {
		first, err1 := a.ocr.RecognizeText(ctx, cropColumns(bin, valid[0]).Invert(), ocr.PSMSingleLine, digitWhitelist)
		second, err2 := a.ocr.RecognizeText(ctx, cropColumns(bin, valid[1]).Invert(), ocr.PSMSingleLine, digitWhitelist)
		if err1 == nil && err2 == nil && first != "" && second != "" {
			if v, ok := parseCount(first + second); ok && !kdConfusionValues[v] {
				return v, true
			}
		}
	}
	return a.readCount(ctx, bin)
}

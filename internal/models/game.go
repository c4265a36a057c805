// Package models defines the domain entities shared across the recording
// pipeline: game modes, match/rule/stage vocabularies, ratings, results,
// and per-session recording metadata.
package models

// GameMode selects the per-mode analyzer plugin.
type GameMode string

const (
	// GameModeBattle is a regular multiplayer battle.
	GameModeBattle GameMode = "battle"
	// GameModeSalmon is a Salmon Run shift.
	GameModeSalmon GameMode = "salmon"
)

// Valid reports whether the mode is a known value.
func (m GameMode) Valid() bool {
	return m == GameModeBattle || m == GameModeSalmon
}

// Match is the game-mode category of a battle. Values are the on-screen
// Japanese labels, which also appear in file names and sidecars.
type Match string

const (
	MatchRegular          Match = "レギュラーマッチ"
	MatchAnarchyOpen      Match = "バンカラマッチ(オープン)"
	MatchAnarchyChallenge Match = "バンカラマッチ(チャレンジ)"
	MatchXMatch           Match = "Xマッチ"
	MatchChallenge        Match = "イベントマッチ"
	MatchFestOpen         Match = "フェスマッチ(オープン)"
	MatchFestChallenge    Match = "フェスマッチ(チャレンジ)"
	MatchTriColor         Match = "トリカラマッチ"
)

// Matches enumerates every known match category, in display order.
var Matches = []Match{
	MatchRegular,
	MatchAnarchyOpen,
	MatchAnarchyChallenge,
	MatchXMatch,
	MatchChallenge,
	MatchFestOpen,
	MatchFestChallenge,
	MatchTriColor,
}

// ParseMatch resolves a display label to a Match.
func ParseMatch(s string) (Match, bool) {
	for _, m := range Matches {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// IsAnarchy reports whether the match is an anarchy variant.
func (m Match) IsAnarchy() bool {
	return m == MatchAnarchyOpen || m == MatchAnarchyChallenge
}

// IsFest reports whether the match is a splatfest variant (including
// tricolor).
func (m Match) IsFest() bool {
	return m == MatchFestOpen || m == MatchFestChallenge || m == MatchTriColor
}

// IsX reports whether the match is an X match.
func (m Match) IsX() bool { return m == MatchXMatch }

// EqualsRelaxed compares two matches treating open/challenge variants of
// the same family as equal.
func (m Match) EqualsRelaxed(other Match) bool {
	if m == other {
		return true
	}
	if m.IsAnarchy() && other.IsAnarchy() {
		return true
	}
	fest := func(x Match) bool { return x == MatchFestOpen || x == MatchFestChallenge }
	return fest(m) && fest(other)
}

// Rule is the objective mode of a battle.
type Rule string

const (
	RuleTurfWar         Rule = "ナワバリ"
	RuleSplatZones      Rule = "ガチエリア"
	RuleTowerControl    Rule = "ガチヤグラ"
	RuleRainmaker       Rule = "ガチホコ"
	RuleClamBlitz       Rule = "ガチアサリ"
	RuleTriColorTurfWar Rule = "トリカラバトル"
)

// Rules enumerates every known rule.
var Rules = []Rule{
	RuleTurfWar,
	RuleSplatZones,
	RuleTowerControl,
	RuleRainmaker,
	RuleClamBlitz,
	RuleTriColorTurfWar,
}

// ParseRule resolves a display label to a Rule.
func ParseRule(s string) (Rule, bool) {
	for _, r := range Rules {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Stage is the map a battle or shift is played on.
type Stage string

// Battle stages.
const (
	StageScorchGorge      Stage = "ユノハナ大渓谷"
	StageEeltailAlley     Stage = "ゴンズイ地区"
	StageHagglefishMarket Stage = "ヤガラ市場"
	StageUndertowSpillway Stage = "マテガイ放水路"
	StageMincemeatMetal   Stage = "ナメロウ金属"
	StageHammerheadBridge Stage = "マサバ海峡大橋"
	StageMuseumDAlfonsino Stage = "キンメダイ美術館"
	StageMahiMahiResort   Stage = "マヒマヒリゾート&スパ"
	StageInkblotArtAcad   Stage = "海女美術大学"
	StageSturgeonShipyard Stage = "チョウザメ造船"
	StageMakoMart         Stage = "ザトウマーケット"
	StageWahooWorld       Stage = "スメーシーワールド"
	StageBrinewaterSpring Stage = "クサヤ温泉"
	StageFlounderHeights  Stage = "ヒラメが丘団地"
	StageUmamiRuins       Stage = "ナンプラー遺跡"
	StageMantaMaria       Stage = "マンタマリア号"
	StageBarnacleAndDime  Stage = "タラポートショッピングパーク"
	StageHumpbackPumpTr   Stage = "コンブトラック"
	StageCrablegCapital   Stage = "タカアシ経済特区"
	StageShipshapeCargoCo Stage = "オヒョウ海運"
	StageRoboRomEn        Stage = "バイガイ亭"
	StageBluefinDepot     Stage = "ネギトロ炭鉱"
	StageMarlinAirport    Stage = "カジキ空港"
	StageLemuriaHub       Stage = "リュウグウターミナル"
)

// Salmon Run stages.
const (
	StageSpawningGrounds  Stage = "シェケナダム"
	StageSockeyeStation   Stage = "アラマキ砦"
	StageMaroonersBay     Stage = "難破船ドン・ブラコ"
	StageGoneFissionHydro Stage = "すじこジャンクション跡"
	StageJammedSalmonid   Stage = "どんぴこ闘技場"
	StageBonerattleArena  Stage = "ムニ・エール海洋発電所"
)

// BattleStages enumerates battle stages in display order.
var BattleStages = []Stage{
	StageScorchGorge, StageEeltailAlley, StageHagglefishMarket,
	StageUndertowSpillway, StageMincemeatMetal, StageHammerheadBridge,
	StageMuseumDAlfonsino, StageMahiMahiResort, StageInkblotArtAcad,
	StageSturgeonShipyard, StageMakoMart, StageWahooWorld,
	StageBrinewaterSpring, StageFlounderHeights, StageUmamiRuins,
	StageMantaMaria, StageBarnacleAndDime, StageHumpbackPumpTr,
	StageCrablegCapital, StageShipshapeCargoCo, StageRoboRomEn,
	StageBluefinDepot, StageMarlinAirport, StageLemuriaHub,
}

// SalmonStages enumerates Salmon Run stages in display order.
var SalmonStages = []Stage{
	StageSpawningGrounds, StageSockeyeStation, StageMaroonersBay,
	StageGoneFissionHydro, StageJammedSalmonid, StageBonerattleArena,
}

// ParseStage resolves a display label to a Stage across both modes.
func ParseStage(s string) (Stage, bool) {
	for _, st := range BattleStages {
		if string(st) == s {
			return st, true
		}
	}
	for _, st := range SalmonStages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Judgement is the outcome of a battle.
type Judgement string

const (
	JudgementWin  Judgement = "WIN"
	JudgementLose Judgement = "LOSE"
)

// ParseJudgement resolves a label to a Judgement.
func ParseJudgement(s string) (Judgement, bool) {
	switch Judgement(s) {
	case JudgementWin:
		return JudgementWin, true
	case JudgementLose:
		return JudgementLose, true
	}
	return "", false
}

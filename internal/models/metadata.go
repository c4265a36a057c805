package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RecordingMetadata accumulates everything learned about one session.
// It is owned and mutated only by the auto-recorder until handed to the
// asset repository, which freezes it into a sidecar.
type RecordingMetadata struct {
	GameMode  GameMode
	StartedAt time.Time
	Rate      Rate
	Judgement Judgement
	Result    Result
	Allies    [4]string
	Enemies   [4]string
}

// NewRecordingMetadata starts a session record. StartedAt is never
// cleared once set.
func NewRecordingMetadata(mode GameMode, startedAt time.Time) *RecordingMetadata {
	return &RecordingMetadata{GameMode: mode, StartedAt: startedAt}
}

// HasWeapons reports whether any weapon slot has been filled in.
func (m *RecordingMetadata) HasWeapons() bool {
	for _, w := range m.Allies {
		if w != "" {
			return true
		}
	}
	for _, w := range m.Enemies {
		if w != "" {
			return true
		}
	}
	return false
}

// BaseName derives the on-disk base name: started_at as
// YYYYMMDD_HHMMSS, extended with match, rule, judgement and stage for a
// battle recording once those are known.
func (m *RecordingMetadata) BaseName() string {
	base := m.StartedAt.Format("20060102_150405")
	if m.GameMode != GameModeBattle {
		return base
	}
	br := m.Result.Battle
	if br == nil || m.Judgement == "" {
		return base
	}
	return strings.Join([]string{
		base, string(br.Match), string(br.Rule), string(m.Judgement), string(br.Stage),
	}, "_")
}

// Sidecar is the flat JSON object written next to each video. All
// values are strings or null, per the sidecar contract.
type Sidecar struct {
	GameMode  string    `json:"game_mode"`
	StartedAt string    `json:"started_at"`
	Rate      *string   `json:"rate"`
	Judgement *string   `json:"judgement"`
	Match     *string   `json:"match"`
	Rule      *string   `json:"rule"`
	Stage     *string   `json:"stage"`
	Kill      *string   `json:"kill"`
	Death     *string   `json:"death"`
	Special   *string   `json:"special"`
	Hazard    *string   `json:"hazard"`
	GoldenEgg *string   `json:"golden_egg"`
	PowerEgg  *string   `json:"power_egg"`
	Rescue    *string   `json:"rescue"`
	Rescued   *string   `json:"rescued"`
	Allies    []string  `json:"allies,omitempty"`
	Enemies   []string  `json:"enemies,omitempty"`
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *string { return strPtr(strconv.Itoa(v)) }

// ToSidecar freezes the metadata into its sidecar form.
func (m *RecordingMetadata) ToSidecar() Sidecar {
	sc := Sidecar{
		GameMode:  string(m.GameMode),
		StartedAt: m.StartedAt.UTC().Format(time.RFC3339),
	}
	if !m.Rate.IsZero() {
		sc.Rate = strPtr(m.Rate.String())
	}
	if m.Judgement != "" {
		sc.Judgement = strPtr(string(m.Judgement))
	}
	if br := m.Result.Battle; br != nil {
		sc.Match = strPtr(string(br.Match))
		sc.Rule = strPtr(string(br.Rule))
		sc.Stage = strPtr(string(br.Stage))
		sc.Kill = intPtr(br.Kill)
		sc.Death = intPtr(br.Death)
		sc.Special = intPtr(br.Special)
	}
	if sr := m.Result.Salmon; sr != nil {
		sc.Stage = strPtr(string(sr.Stage))
		sc.Hazard = intPtr(sr.Hazard)
		sc.GoldenEgg = intPtr(sr.GoldenEgg)
		sc.PowerEgg = intPtr(sr.PowerEgg)
		sc.Rescue = intPtr(sr.Rescue)
		sc.Rescued = intPtr(sr.Rescued)
	}
	if m.HasWeapons() {
		sc.Allies = append([]string(nil), m.Allies[:]...)
		sc.Enemies = append([]string(nil), m.Enemies[:]...)
	}
	return sc
}

// FromSidecar reconstructs metadata from its sidecar form.
func FromSidecar(sc Sidecar) (*RecordingMetadata, error) {
	mode := GameMode(sc.GameMode)
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown game mode %q", sc.GameMode)
	}
	startedAt, err := time.Parse(time.RFC3339, sc.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}

	m := NewRecordingMetadata(mode, startedAt)
	if sc.Rate != nil {
		if rate, ok := ParseRate(*sc.Rate); ok {
			m.Rate = rate
		}
	}
	if sc.Judgement != nil {
		if j, ok := ParseJudgement(*sc.Judgement); ok {
			m.Judgement = j
		}
	}

	atoi := func(p *string) int {
		if p == nil {
			return 0
		}
		v, _ := strconv.Atoi(*p)
		return v
	}

	switch mode {
	case GameModeBattle:
		if sc.Match != nil && sc.Rule != nil && sc.Stage != nil {
			match, _ := ParseMatch(*sc.Match)
			rule, _ := ParseRule(*sc.Rule)
			stage, _ := ParseStage(*sc.Stage)
			m.Result.Battle = &BattleResult{
				Match:   match,
				Rule:    rule,
				Stage:   stage,
				Kill:    atoi(sc.Kill),
				Death:   atoi(sc.Death),
				Special: atoi(sc.Special),
			}
		}
	case GameModeSalmon:
		if sc.Stage != nil {
			stage, _ := ParseStage(*sc.Stage)
			m.Result.Salmon = &SalmonResult{
				Stage:     stage,
				Hazard:    atoi(sc.Hazard),
				GoldenEgg: atoi(sc.GoldenEgg),
				PowerEgg:  atoi(sc.PowerEgg),
				Rescue:    atoi(sc.Rescue),
				Rescued:   atoi(sc.Rescued),
			}
		}
	}

	copy(m.Allies[:], sc.Allies)
	copy(m.Enemies[:], sc.Enemies)
	return m, nil
}

// MarshalSidecar renders the metadata as sidecar JSON.
func (m *RecordingMetadata) MarshalSidecar() ([]byte, error) {
	return json.MarshalIndent(m.ToSidecar(), "", "  ")
}

// UnmarshalSidecar parses sidecar JSON back into metadata.
func UnmarshalSidecar(data []byte) (*RecordingMetadata, error) {
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing sidecar: %w", err)
	}
	return FromSidecar(sc)
}

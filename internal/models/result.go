package models

import "fmt"

// Result counter bounds; the screens never show values outside them.
const (
	MinCount = 0
	MaxCount = 99
)

// BattleResult is the parsed session-result screen of a battle.
type BattleResult struct {
	Match   Match `json:"match"`
	Rule    Rule  `json:"rule"`
	Stage   Stage `json:"stage"`
	Kill    int   `json:"kill"`
	Death   int   `json:"death"`
	Special int   `json:"special"`
}

// Validate checks counter ranges.
func (r BattleResult) Validate() error {
	for _, c := range []struct {
		name  string
		value int
	}{{"kill", r.Kill}, {"death", r.Death}, {"special", r.Special}} {
		if c.value < MinCount || c.value > MaxCount {
			return fmt.Errorf("%s %d out of range [%d, %d]", c.name, c.value, MinCount, MaxCount)
		}
	}
	return nil
}

// SalmonResult is the parsed result screen of a Salmon Run shift.
type SalmonResult struct {
	Stage     Stage `json:"stage"`
	Hazard    int   `json:"hazard"`
	GoldenEgg int   `json:"golden_egg"`
	PowerEgg  int   `json:"power_egg"`
	Rescue    int   `json:"rescue"`
	Rescued   int   `json:"rescued"`
}

// Result is the tagged union of the two result variants. Exactly one of
// Battle/Salmon is set.
type Result struct {
	Battle *BattleResult
	Salmon *SalmonResult
}

// IsZero reports whether no result has been extracted.
func (r Result) IsZero() bool { return r.Battle == nil && r.Salmon == nil }

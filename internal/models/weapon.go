package models

// UnknownWeapon is the sentinel prediction for slots no template
// matched. It propagates into metadata and the finalize report.
const UnknownWeapon = "不明"

// SlotID identifies one of the eight weapon icons at match start.
type SlotID string

// Slot identifiers: four allies, four enemies, in on-screen order.
const (
	SlotAlly1  SlotID = "ally_1"
	SlotAlly2  SlotID = "ally_2"
	SlotAlly3  SlotID = "ally_3"
	SlotAlly4  SlotID = "ally_4"
	SlotEnemy1 SlotID = "enemy_1"
	SlotEnemy2 SlotID = "enemy_2"
	SlotEnemy3 SlotID = "enemy_3"
	SlotEnemy4 SlotID = "enemy_4"
)

// AllSlots lists every slot in on-screen order.
var AllSlots = []SlotID{
	SlotAlly1, SlotAlly2, SlotAlly3, SlotAlly4,
	SlotEnemy1, SlotEnemy2, SlotEnemy3, SlotEnemy4,
}

// AllySlots and EnemySlots split AllSlots by team.
var (
	AllySlots  = AllSlots[:4]
	EnemySlots = AllSlots[4:]
)

// IsAlly reports whether the slot belongs to the ally team.
func (s SlotID) IsAlly() bool {
	return s == SlotAlly1 || s == SlotAlly2 || s == SlotAlly3 || s == SlotAlly4
}

// TeamIndex returns the slot's 0-based position within its team.
func (s SlotID) TeamIndex() int {
	for i, id := range AllySlots {
		if id == s {
			return i
		}
	}
	for i, id := range EnemySlots {
		if id == s {
			return i
		}
	}
	return -1
}

// WeaponCandidate is one ranked template-match candidate for a slot.
type WeaponCandidate struct {
	Weapon    string  `json:"weapon"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
}

// WeaponSlotResult is the recognition outcome for one slot.
type WeaponSlotResult struct {
	SlotID SlotID `json:"slot_id"`
	// PredictedWeapon is the winning weapon name, or UnknownWeapon when
	// no candidate cleared its threshold.
	PredictedWeapon string `json:"predicted_weapon"`
	IsUnmatched     bool   `json:"is_unmatched"`
	// TopCandidates keeps up to three ranked candidates for debugging.
	TopCandidates []WeaponCandidate `json:"top_candidates"`
}

// WeaponRecognitionResult is the outcome of one recognition pass over
// the weapon display.
type WeaponRecognitionResult struct {
	Allies      [4]string                    `json:"allies"`
	Enemies     [4]string                    `json:"enemies"`
	SlotResults map[SlotID]WeaponSlotResult  `json:"slot_results"`
	// UnmatchedOutputDir is set when the pass wrote an unmatched-slot
	// report (finalize only).
	UnmatchedOutputDir string `json:"unmatched_output_dir,omitempty"`
}

// AllMatched reports whether every slot has a real prediction.
func (r WeaponRecognitionResult) AllMatched() bool {
	for _, sr := range r.SlotResults {
		if sr.IsUnmatched {
			return false
		}
	}
	return len(r.SlotResults) == len(AllSlots)
}

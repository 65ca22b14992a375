package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// PlayerID uniquely identifies a player in the progression domain.
type PlayerID string

// ActivityID names an entry in the activity catalog.
type ActivityID string

// UpgradeID names an entry in the upgrade catalog.
type UpgradeID string

// AchievementID names an entry in the achievement catalog.
type AchievementID string

const (
	// XPPerLevel is the experience span of one level; level = floor(xp/XPPerLevel)+1.
	XPPerLevel = 1000
	// BaseFocusPerMinute is the Focus Point rate earned per listening minute,
	// independent of the active activity.
	BaseFocusPerMinute = 10
	// OfflineCapMinutes bounds how much offline listening a single resume can back-fill.
	OfflineCapMinutes = 1440
)

// Multipliers is the product-composed multiplier stack. Each factor starts at 1
// and only grows as upgrades are purchased.
type Multipliers struct {
	XP     float64 `json:"xp"`
	FP     float64 `json:"fp"`
	Global float64 `json:"global"`
}

// ProgressionState is the single persisted record for one player. It is the
// aggregate root of the idle layer: every counter, unlock and multiplier lives
// here and is replaced atomically on write.
// Implementations should hand out deep copies to maintain immutability guarantees.
type ProgressionState struct {
	PlayerID               PlayerID                   `json:"player_id"`
	Level                  int64                      `json:"level"`
	Experience             int64                      `json:"experience"`
	FocusPoints            int64                      `json:"focus_points"`
	TotalFocusPointsEarned int64                      `json:"total_focus_points_earned"`
	TotalMinutesListened   int64                      `json:"total_minutes_listened"`
	CurrentActivity        ActivityID                 `json:"current_activity"`
	UnlockedActivities     map[ActivityID]struct{}    `json:"unlocked_activities"`
	Achievements           map[AchievementID]struct{} `json:"achievements"`
	PurchasedUpgrades      map[UpgradeID]struct{}     `json:"purchased_upgrades"`
	Multipliers            Multipliers                `json:"multipliers"`
	ActivityBoosts         map[ActivityID]float64     `json:"activity_boosts"`
	ActivityMinutes        map[ActivityID]int64       `json:"activity_minutes"`
	ActivityXP             map[ActivityID]int64       `json:"activity_xp"`
	PassiveChecks          int64                      `json:"passive_checks"`
	LastActivityChange     time.Time                  `json:"last_activity_change"`
	LastSave               time.Time                  `json:"last_save"`
	Updated                time.Time                  `json:"updated"`
}

// NewState returns a fresh state seeded with the default activity unlocked and
// all multipliers at 1.
func NewState(player PlayerID, now time.Time) ProgressionState {
	return ProgressionState{
		PlayerID:           player,
		Level:              1,
		CurrentActivity:    DefaultActivity,
		UnlockedActivities: map[ActivityID]struct{}{DefaultActivity: {}},
		Achievements:       map[AchievementID]struct{}{},
		PurchasedUpgrades:  map[UpgradeID]struct{}{},
		Multipliers:        Multipliers{XP: 1, FP: 1, Global: 1},
		ActivityBoosts:     map[ActivityID]float64{},
		ActivityMinutes:    map[ActivityID]int64{},
		ActivityXP:         map[ActivityID]int64{},
		LastActivityChange: now,
		LastSave:           now,
		Updated:            now,
	}
}

// Clone returns a deep copy of the state to uphold immutability.
func (s ProgressionState) Clone() ProgressionState {
	cp := s
	cp.UnlockedActivities = make(map[ActivityID]struct{}, len(s.UnlockedActivities))
	for k := range s.UnlockedActivities {
		cp.UnlockedActivities[k] = struct{}{}
	}
	cp.Achievements = make(map[AchievementID]struct{}, len(s.Achievements))
	for k := range s.Achievements {
		cp.Achievements[k] = struct{}{}
	}
	cp.PurchasedUpgrades = make(map[UpgradeID]struct{}, len(s.PurchasedUpgrades))
	for k := range s.PurchasedUpgrades {
		cp.PurchasedUpgrades[k] = struct{}{}
	}
	cp.ActivityBoosts = make(map[ActivityID]float64, len(s.ActivityBoosts))
	for k, v := range s.ActivityBoosts {
		cp.ActivityBoosts[k] = v
	}
	cp.ActivityMinutes = make(map[ActivityID]int64, len(s.ActivityMinutes))
	for k, v := range s.ActivityMinutes {
		cp.ActivityMinutes[k] = v
	}
	cp.ActivityXP = make(map[ActivityID]int64, len(s.ActivityXP))
	for k, v := range s.ActivityXP {
		cp.ActivityXP[k] = v
	}
	return cp
}

// Normalize repairs a state loaded from storage: nil maps from older schemas
// are filled in, zero-valued multipliers become 1, a current activity that is
// not unlocked falls back to the default, and a last-save instant in the
// future is clamped to now so offline catch-up never sees a negative gap.
func (s *ProgressionState) Normalize(now time.Time) {
	if s.UnlockedActivities == nil {
		s.UnlockedActivities = map[ActivityID]struct{}{}
	}
	if s.Achievements == nil {
		s.Achievements = map[AchievementID]struct{}{}
	}
	if s.PurchasedUpgrades == nil {
		s.PurchasedUpgrades = map[UpgradeID]struct{}{}
	}
	if s.ActivityBoosts == nil {
		s.ActivityBoosts = map[ActivityID]float64{}
	}
	if s.ActivityMinutes == nil {
		s.ActivityMinutes = map[ActivityID]int64{}
	}
	if s.ActivityXP == nil {
		s.ActivityXP = map[ActivityID]int64{}
	}
	s.UnlockedActivities[DefaultActivity] = struct{}{}
	if s.Multipliers.XP < 1 {
		s.Multipliers.XP = 1
	}
	if s.Multipliers.FP < 1 {
		s.Multipliers.FP = 1
	}
	if s.Multipliers.Global < 1 {
		s.Multipliers.Global = 1
	}
	if _, ok := s.UnlockedActivities[s.CurrentActivity]; !ok {
		s.CurrentActivity = DefaultActivity
	}
	if _, ok := ActivityByID(s.CurrentActivity); !ok {
		s.CurrentActivity = DefaultActivity
	}
	if s.LastSave.After(now) {
		s.LastSave = now
	}
	if lvl := LevelForXP(s.Experience); s.Level != lvl {
		s.Level = lvl
	}
}

// LevelForXP computes the display level for a total experience value.
func LevelForXP(xp int64) int64 {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

// LevelFloorXP returns the experience total at which the given level begins.
func LevelFloorXP(level int64) int64 {
	if level <= 1 {
		return 0
	}
	return (level - 1) * XPPerLevel
}

// ProgressPercent reports how far through the current level an experience
// total is, in [0,100).
func ProgressPercent(xp int64) float64 {
	if xp < 0 {
		return 0
	}
	floor := LevelFloorXP(LevelForXP(xp))
	return float64(xp-floor) / float64(XPPerLevel) * 100
}

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizePlayerID trims and lowercases player identifiers.
func NormalizePlayerID(id PlayerID) (PlayerID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty player id")
	}
	return PlayerID(strings.ToLower(s)), nil
}

package core

// Static catalogs. Definitions are immutable lookup tables loaded at compile
// time and referenced by id from player state; they are never persisted
// per-player. Keep ids stable: clients store them.

// DefaultActivity is always unlocked and is the recovery target when a stored
// state references an activity the player has not unlocked.
const DefaultActivity ActivityID = "meditate"

// ActivityDefinition describes a selectable listening backdrop with its own
// XP rate and level gate.
type ActivityDefinition struct {
	ID          ActivityID `json:"id"`
	Name        string     `json:"name"`
	XPPerMinute int64      `json:"xp_per_minute"`
	UnlockLevel int64      `json:"unlock_level"`
}

// UpgradeEffect enumerates what a purchased upgrade does.
type UpgradeEffect string

const (
	EffectXPMultiplier     UpgradeEffect = "xp_multiplier"
	EffectFPMultiplier     UpgradeEffect = "fp_multiplier"
	EffectGlobalMultiplier UpgradeEffect = "global_multiplier"
	EffectUnlockActivity   UpgradeEffect = "unlock_activity"
	EffectActivityBoost    UpgradeEffect = "activity_boost"
)

// UpgradeDefinition describes a one-time Focus Point purchase. Requires is a
// single prerequisite upgrade, not a DAG. Value carries the multiplier for the
// multiplier effects; Activity carries the target for unlock_activity and
// activity_boost.
type UpgradeDefinition struct {
	ID       UpgradeID     `json:"id"`
	Name     string        `json:"name"`
	Cost     int64         `json:"cost"`
	Requires UpgradeID     `json:"requires,omitempty"`
	Effect   UpgradeEffect `json:"effect"`
	Value    float64       `json:"value,omitempty"`
	Activity ActivityID    `json:"activity,omitempty"`
}

// AchievementTrigger enumerates the counters an achievement watches.
type AchievementTrigger string

const (
	TriggerListeningTime AchievementTrigger = "listening_time"
	TriggerLevel         AchievementTrigger = "level"
	TriggerActivityTime  AchievementTrigger = "activity_time"
	TriggerCurrency      AchievementTrigger = "currency"
	TriggerUpgrade       AchievementTrigger = "upgrade"
	TriggerPassiveCheck  AchievementTrigger = "passive_check"
	TriggerActivityCount AchievementTrigger = "activity_count"
	TriggerTimeWindow    AchievementTrigger = "time_window"
)

// AchievementDefinition describes a one-time unlock with a Focus Point reward.
// Requirement is the threshold on the triggering counter. Activity is set only
// for activity_time. WindowStart/WindowEnd are local wall-clock hours for
// time_window, where the window may wrap past midnight.
type AchievementDefinition struct {
	ID          AchievementID      `json:"id"`
	Name        string             `json:"name"`
	Trigger     AchievementTrigger `json:"trigger"`
	Requirement int64              `json:"requirement,omitempty"`
	Activity    ActivityID         `json:"activity,omitempty"`
	WindowStart int                `json:"window_start,omitempty"`
	WindowEnd   int                `json:"window_end,omitempty"`
	Reward      int64              `json:"reward"`
}

var activityCatalog = []ActivityDefinition{
	{ID: "meditate", Name: "Meditative Listening", XPPerMinute: 2, UnlockLevel: 1},
	{ID: "commute", Name: "Commute Companion", XPPerMinute: 3, UnlockLevel: 2},
	{ID: "deep_focus", Name: "Deep Focus", XPPerMinute: 5, UnlockLevel: 5},
	{ID: "sleep_stories", Name: "Sleep Stories", XPPerMinute: 4, UnlockLevel: 8},
	{ID: "speed_run", Name: "Double-Speed Run", XPPerMinute: 8, UnlockLevel: 12},
}

var upgradeCatalog = []UpgradeDefinition{
	{ID: "basic_headphones", Name: "Basic Headphones", Cost: 500, Effect: EffectXPMultiplier, Value: 1.1},
	{ID: "premium_headphones", Name: "Premium Headphones", Cost: 2000, Requires: "basic_headphones", Effect: EffectXPMultiplier, Value: 1.25},
	{ID: "comfy_chair", Name: "Comfy Reading Chair", Cost: 1000, Effect: EffectFPMultiplier, Value: 1.2},
	{ID: "meditation_cushion", Name: "Meditation Cushion", Cost: 800, Effect: EffectActivityBoost, Value: 1.5, Activity: "meditate"},
	{ID: "library_card", Name: "Library Card", Cost: 1500, Effect: EffectUnlockActivity, Activity: "sleep_stories"},
	{ID: "focus_tea", Name: "Focus Tea Subscription", Cost: 3000, Effect: EffectGlobalMultiplier, Value: 1.1},
	{ID: "noise_cancelling", Name: "Noise Cancelling", Cost: 5000, Requires: "premium_headphones", Effect: EffectGlobalMultiplier, Value: 1.25},
}

var achievementCatalog = []AchievementDefinition{
	{ID: "started_listening", Name: "First Minute", Trigger: TriggerListeningTime, Requirement: 1, Reward: 50},
	{ID: "hour_one", Name: "One Hour In", Trigger: TriggerListeningTime, Requirement: 60, Reward: 100},
	{ID: "day_of_sound", Name: "A Day of Sound", Trigger: TriggerListeningTime, Requirement: 1440, Reward: 500},
	{ID: "level_5", Name: "Apprentice Listener", Trigger: TriggerLevel, Requirement: 5, Reward: 200},
	{ID: "level_10", Name: "Seasoned Listener", Trigger: TriggerLevel, Requirement: 10, Reward: 500},
	{ID: "zen_master", Name: "Zen Master", Trigger: TriggerActivityTime, Requirement: 300, Activity: "meditate", Reward: 250},
	{ID: "first_thousand", Name: "First Thousand", Trigger: TriggerCurrency, Requirement: 1000, Reward: 100},
	{ID: "point_hoarder", Name: "Point Hoarder", Trigger: TriggerCurrency, Requirement: 10000, Reward: 1000},
	{ID: "collector", Name: "Collector", Trigger: TriggerUpgrade, Requirement: 3, Reward: 300},
	{ID: "gear_head", Name: "Gear Head", Trigger: TriggerUpgrade, Requirement: 5, Reward: 750},
	{ID: "just_checking", Name: "Just Checking", Trigger: TriggerPassiveCheck, Requirement: 10, Reward: 50},
	{ID: "explorer", Name: "Explorer", Trigger: TriggerActivityCount, Requirement: 3, Reward: 150},
	{ID: "night_owl", Name: "Night Owl", Trigger: TriggerTimeWindow, WindowStart: 2, WindowEnd: 5, Reward: 200},
}

// Activities returns the activity catalog in display order.
func Activities() []ActivityDefinition {
	out := make([]ActivityDefinition, len(activityCatalog))
	copy(out, activityCatalog)
	return out
}

// ActivityByID resolves an activity definition.
func ActivityByID(id ActivityID) (ActivityDefinition, bool) {
	for _, a := range activityCatalog {
		if a.ID == id {
			return a, true
		}
	}
	return ActivityDefinition{}, false
}

// Upgrades returns the upgrade catalog in display order.
func Upgrades() []UpgradeDefinition {
	out := make([]UpgradeDefinition, len(upgradeCatalog))
	copy(out, upgradeCatalog)
	return out
}

// UpgradeByID resolves an upgrade definition.
func UpgradeByID(id UpgradeID) (UpgradeDefinition, bool) {
	for _, u := range upgradeCatalog {
		if u.ID == id {
			return u, true
		}
	}
	return UpgradeDefinition{}, false
}

// Achievements returns the achievement catalog in display order.
func Achievements() []AchievementDefinition {
	out := make([]AchievementDefinition, len(achievementCatalog))
	copy(out, achievementCatalog)
	return out
}

// AchievementByID resolves an achievement definition.
func AchievementByID(id AchievementID) (AchievementDefinition, bool) {
	for _, a := range achievementCatalog {
		if a.ID == id {
			return a, true
		}
	}
	return AchievementDefinition{}, false
}

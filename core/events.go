package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventSessionStarted      EventType = "session_started"
	EventSessionEnded        EventType = "session_ended"
	EventXPGained            EventType = "xp_gained"
	EventFPGained            EventType = "fp_gained"
	EventLevelUp             EventType = "level_up"
	EventActivityUnlocked    EventType = "activity_unlocked"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventUpgradePurchased    EventType = "upgrade_purchased"
	EventOfflineProgress     EventType = "offline_progress"
)

// AllEventTypes lists every event type the engine can publish, in a stable
// order, for bridges that want to forward everything.
var AllEventTypes = []EventType{
	EventSessionStarted,
	EventSessionEnded,
	EventXPGained,
	EventFPGained,
	EventLevelUp,
	EventActivityUnlocked,
	EventAchievementUnlocked,
	EventUpgradePurchased,
	EventOfflineProgress,
}

// Event represents an immutable domain event. Events are advisory UI
// notifications, never part of persisted state.
type Event struct {
	Type        EventType     `json:"type"`
	Time        time.Time     `json:"time"`
	PlayerID    PlayerID      `json:"player_id"`
	Minutes     int64         `json:"minutes,omitempty"`
	Delta       int64         `json:"delta,omitempty"`
	Total       int64         `json:"total,omitempty"`
	Level       int64         `json:"level,omitempty"`
	Activity    ActivityID    `json:"activity,omitempty"`
	Upgrade     UpgradeID     `json:"upgrade,omitempty"`
	Achievement AchievementID `json:"achievement,omitempty"`
	Reward      int64         `json:"reward,omitempty"`
}

func NewSessionStarted(player PlayerID, activity ActivityID) Event {
	return Event{Type: EventSessionStarted, Time: time.Now().UTC(), PlayerID: player, Activity: activity}
}

func NewSessionEnded(player PlayerID, minutes int64) Event {
	return Event{Type: EventSessionEnded, Time: time.Now().UTC(), PlayerID: player, Minutes: minutes}
}

func NewXPGained(player PlayerID, activity ActivityID, minutes, delta, total int64) Event {
	return Event{Type: EventXPGained, Time: time.Now().UTC(), PlayerID: player, Activity: activity, Minutes: minutes, Delta: delta, Total: total}
}

func NewFPGained(player PlayerID, delta, total int64) Event {
	return Event{Type: EventFPGained, Time: time.Now().UTC(), PlayerID: player, Delta: delta, Total: total}
}

func NewLevelUp(player PlayerID, level int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), PlayerID: player, Level: level}
}

func NewActivityUnlocked(player PlayerID, activity ActivityID) Event {
	return Event{Type: EventActivityUnlocked, Time: time.Now().UTC(), PlayerID: player, Activity: activity}
}

// NewAchievementUnlocked carries both the reward and the post-reward lifetime
// Focus Point total, so observers can track the running total without reading
// it back.
func NewAchievementUnlocked(player PlayerID, achievement AchievementID, reward, total int64) Event {
	return Event{Type: EventAchievementUnlocked, Time: time.Now().UTC(), PlayerID: player, Achievement: achievement, Reward: reward, Total: total}
}

func NewUpgradePurchased(player PlayerID, upgrade UpgradeID, cost int64) Event {
	return Event{Type: EventUpgradePurchased, Time: time.Now().UTC(), PlayerID: player, Upgrade: upgrade, Delta: -cost}
}

func NewOfflineProgress(player PlayerID, minutes, xp, fp int64) Event {
	return Event{Type: EventOfflineProgress, Time: time.Now().UTC(), PlayerID: player, Minutes: minutes, Delta: xp, Reward: fp}
}

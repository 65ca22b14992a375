package analytics

import (
	"sync"
	"time"

	"listenquest/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DailyActiveListeners tracks unique players touching the engine per day.
type DailyActiveListeners struct {
	mu   sync.Mutex
	days map[string]map[core.PlayerID]struct{}
}

func NewDailyActiveListeners() *DailyActiveListeners {
	return &DailyActiveListeners{days: map[string]map[core.PlayerID]struct{}{}}
}

func (d *DailyActiveListeners) OnEvent(e core.Event) {
	day := e.Time.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.PlayerID]struct{}{}
		d.days[day] = m
	}
	m[e.PlayerID] = struct{}{}
}

func (d *DailyActiveListeners) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// ListeningMetrics aggregates listening, currency and unlock KPIs in memory.
type ListeningMetrics struct {
	mu sync.RWMutex

	// Listening volume
	minutesByDay      map[string]int64
	minutesByActivity map[core.ActivityID]int64

	// Currency flow
	focusEarnedByDay map[string]int64
	focusSpentByDay  map[string]int64

	// Progression milestones
	levelUpsByDay     map[string]int64
	levelDistribution map[int64]int

	// Unlocks
	achievementsByDay map[string]int64
	achievementsByID  map[core.AchievementID]int64
	upgradesByID      map[core.UpgradeID]int64

	// Offline catch-up
	offlineMinutesByDay map[string]int64
}

func NewListeningMetrics() *ListeningMetrics {
	return &ListeningMetrics{
		minutesByDay:        make(map[string]int64),
		minutesByActivity:   make(map[core.ActivityID]int64),
		focusEarnedByDay:    make(map[string]int64),
		focusSpentByDay:     make(map[string]int64),
		levelUpsByDay:       make(map[string]int64),
		levelDistribution:   make(map[int64]int),
		achievementsByDay:   make(map[string]int64),
		achievementsByID:    make(map[core.AchievementID]int64),
		upgradesByID:        make(map[core.UpgradeID]int64),
		offlineMinutesByDay: make(map[string]int64),
	}
}

func (m *ListeningMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := e.Time.UTC().Format("2006-01-02")

	switch e.Type {
	case core.EventXPGained:
		m.minutesByDay[day] += e.Minutes
		m.minutesByActivity[e.Activity] += e.Minutes
	case core.EventFPGained:
		if e.Delta > 0 {
			m.focusEarnedByDay[day] += e.Delta
		}
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelDistribution[e.Level]++
	case core.EventAchievementUnlocked:
		m.achievementsByDay[day]++
		m.achievementsByID[e.Achievement]++
	case core.EventUpgradePurchased:
		m.upgradesByID[e.Upgrade]++
		if e.Delta < 0 {
			m.focusSpentByDay[day] += -e.Delta
		}
	case core.EventOfflineProgress:
		m.offlineMinutesByDay[day] += e.Minutes
	}
}

// MinutesByDay returns total listened minutes recorded for a day.
func (m *ListeningMetrics) MinutesByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minutesByDay[day]
}

// MinutesByActivity returns total listened minutes recorded for an activity.
func (m *ListeningMetrics) MinutesByActivity(activity core.ActivityID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.minutesByActivity[activity]
}

// FocusEarnedByDay returns Focus Points earned on a day.
func (m *ListeningMetrics) FocusEarnedByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focusEarnedByDay[day]
}

// FocusSpentByDay returns Focus Points spent on upgrades on a day.
func (m *ListeningMetrics) FocusSpentByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.focusSpentByDay[day]
}

// LevelUpsByDay returns the number of level-up events on a day.
func (m *ListeningMetrics) LevelUpsByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByDay[day]
}

// AchievementUnlocks returns how many times an achievement has been unlocked.
func (m *ListeningMetrics) AchievementUnlocks(id core.AchievementID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsByID[id]
}

// UpgradePurchases returns how many times an upgrade has been bought.
func (m *ListeningMetrics) UpgradePurchases(id core.UpgradeID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upgradesByID[id]
}

// OfflineMinutesByDay returns minutes granted through offline catch-up on a day.
func (m *ListeningMetrics) OfflineMinutesByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offlineMinutesByDay[day]
}

// Summary is a point-in-time aggregate suitable for JSON export.
type Summary struct {
	GeneratedAt       time.Time                    `json:"generated_at"`
	TotalMinutes      int64                        `json:"total_minutes"`
	MinutesByActivity map[core.ActivityID]int64    `json:"minutes_by_activity"`
	TotalFocusEarned  int64                        `json:"total_focus_earned"`
	TotalFocusSpent   int64                        `json:"total_focus_spent"`
	LevelDistribution map[int64]int                `json:"level_distribution"`
	AchievementCounts map[core.AchievementID]int64 `json:"achievement_counts"`
	UpgradeCounts     map[core.UpgradeID]int64     `json:"upgrade_counts"`
}

// Snapshot copies the current aggregates into a Summary.
func (m *ListeningMetrics) Snapshot() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		GeneratedAt:       time.Now().UTC(),
		MinutesByActivity: make(map[core.ActivityID]int64, len(m.minutesByActivity)),
		LevelDistribution: make(map[int64]int, len(m.levelDistribution)),
		AchievementCounts: make(map[core.AchievementID]int64, len(m.achievementsByID)),
		UpgradeCounts:     make(map[core.UpgradeID]int64, len(m.upgradesByID)),
	}
	for _, v := range m.minutesByDay {
		s.TotalMinutes += v
	}
	for k, v := range m.minutesByActivity {
		s.MinutesByActivity[k] = v
	}
	for _, v := range m.focusEarnedByDay {
		s.TotalFocusEarned += v
	}
	for _, v := range m.focusSpentByDay {
		s.TotalFocusSpent += v
	}
	for k, v := range m.levelDistribution {
		s.LevelDistribution[k] = v
	}
	for k, v := range m.achievementsByID {
		s.AchievementCounts[k] = v
	}
	for k, v := range m.upgradesByID {
		s.UpgradeCounts[k] = v
	}
	return s
}

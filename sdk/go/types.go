package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// PlayerState mirrors the public JSON surface of an engine snapshot.
type PlayerState struct {
	PlayerID               string              `json:"player_id"`
	Level                  int64               `json:"level"`
	Experience             int64               `json:"experience"`
	FocusPoints            int64               `json:"focus_points"`
	TotalFocusPointsEarned int64               `json:"total_focus_points_earned"`
	TotalMinutesListened   int64               `json:"total_minutes_listened"`
	CurrentActivity        string              `json:"current_activity"`
	UnlockedActivities     map[string]struct{} `json:"unlocked_activities"`
	Achievements           map[string]struct{} `json:"achievements"`
	PurchasedUpgrades      map[string]struct{} `json:"purchased_upgrades"`
	PassiveChecks          int64               `json:"passive_checks"`
	ProgressPercent        float64             `json:"progress_percent"`
	SessionActive          bool                `json:"session_active"`
	Updated                time.Time           `json:"updated"`
}

// PurchaseOutcome mirrors the typed purchase response.
type PurchaseOutcome struct {
	OK      bool            `json:"ok"`
	Code    string          `json:"code,omitempty"`
	Upgrade json.RawMessage `json:"upgrade,omitempty"`
}

// ActivityInfo describes a catalog activity.
type ActivityInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	XPPerMinute int64  `json:"xp_per_minute"`
	UnlockLevel int64  `json:"unlock_level"`
}

// LeaderboardEntry is one row of the Focus Point leaderboard.
type LeaderboardEntry struct {
	Player string `json:"Player"`
	Score  int64  `json:"Score"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyPlayerID is returned when player id is empty.
var ErrEmptyPlayerID = errors.New("player id is required")

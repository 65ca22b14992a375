package core

// CheckAchievements scans the catalog against a candidate state and returns
// every definition the state newly satisfies. Pure: the caller merges results
// into the state and applies each reward exactly once in the same transition.
//
// hour is the local wall-clock hour at evaluation time; it only matters for
// time_window achievements, which qualify while the hour falls inside the
// window. Already-held ids are skipped, which also makes time_window unlocks
// at-most-once.
func CheckAchievements(state ProgressionState, hour int) []AchievementDefinition {
	var out []AchievementDefinition
	for _, a := range achievementCatalog {
		if _, held := state.Achievements[a.ID]; held {
			continue
		}
		if satisfies(a, state, hour) {
			out = append(out, a)
		}
	}
	return out
}

func satisfies(a AchievementDefinition, state ProgressionState, hour int) bool {
	switch a.Trigger {
	case TriggerListeningTime:
		return state.TotalMinutesListened >= a.Requirement
	case TriggerLevel:
		return state.Level >= a.Requirement
	case TriggerActivityTime:
		return state.ActivityMinutes[a.Activity] >= a.Requirement
	case TriggerCurrency:
		return state.TotalFocusPointsEarned >= a.Requirement
	case TriggerUpgrade:
		return int64(len(state.PurchasedUpgrades)) >= a.Requirement
	case TriggerPassiveCheck:
		return state.PassiveChecks >= a.Requirement
	case TriggerActivityCount:
		return int64(len(state.UnlockedActivities)) >= a.Requirement
	case TriggerTimeWindow:
		return hourInWindow(hour, a.WindowStart, a.WindowEnd)
	}
	return false
}

// hourInWindow tests start <= hour < end, wrapping past midnight when
// start > end (e.g. 22..3).
func hourInWindow(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

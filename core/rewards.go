package core

import "math"

// Reward is the outcome of converting listening minutes into progression.
type Reward struct {
	XP int64 `json:"xp"`
	FP int64 `json:"fp"`
}

// CalculateRewards converts whole listening minutes into experience and Focus
// Points for the state's current activity. Pure and deterministic.
//
// The floor is applied once at the end of each product, not per factor, so
// fractional multipliers do not compound rounding error. Non-positive minutes
// or an activity id missing from the catalog yield a zero reward instead of
// an error; both indicate a caller bug but must not break the pipeline.
func CalculateRewards(minutes int64, state ProgressionState) Reward {
	if minutes <= 0 {
		return Reward{}
	}
	activity, ok := ActivityByID(state.CurrentActivity)
	if !ok {
		return Reward{}
	}
	mxp := atLeastOne(state.Multipliers.XP)
	mfp := atLeastOne(state.Multipliers.FP)
	mglobal := atLeastOne(state.Multipliers.Global)
	boost := atLeastOne(state.ActivityBoosts[state.CurrentActivity])

	xp := math.Floor(float64(minutes) * float64(activity.XPPerMinute) * mxp * boost * mglobal)
	fp := math.Floor(float64(minutes) * BaseFocusPerMinute * mfp * mglobal)
	return Reward{XP: int64(xp), FP: int64(fp)}
}

func atLeastOne(v float64) float64 {
	if v < 1 {
		return 1
	}
	return v
}

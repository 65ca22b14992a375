package core

import (
	"math"
	"testing"
	"time"
)

func TestLevelForXP(t *testing.T) {
	cases := []struct {
		xp   int64
		want int64
	}{
		{-5, 1},
		{0, 1},
		{999, 1},
		{1000, 2},
		{4999, 5},
		{5000, 6},
	}
	for _, c := range cases {
		if got := LevelForXP(c.xp); got != c.want {
			t.Fatalf("LevelForXP(%d) = %d, want %d", c.xp, got, c.want)
		}
	}
}

func TestLevelRoundTrip(t *testing.T) {
	// Exact level boundaries: xp = k*1000 gives level k+1 and zero progress.
	for k := int64(0); k < 20; k++ {
		xp := k * XPPerLevel
		if lvl := LevelForXP(xp); lvl != k+1 {
			t.Fatalf("xp=%d level=%d, want %d", xp, lvl, k+1)
		}
		if p := ProgressPercent(xp); p != 0 {
			t.Fatalf("xp=%d progress=%v, want 0", xp, p)
		}
	}
	if p := ProgressPercent(1500); p != 50 {
		t.Fatalf("progress at 1500 = %v, want 50", p)
	}
}

func TestNewStateDefaults(t *testing.T) {
	now := time.Now().UTC()
	st := NewState("alice", now)
	if st.Level != 1 || st.CurrentActivity != DefaultActivity {
		t.Fatalf("unexpected defaults: %+v", st)
	}
	if _, ok := st.UnlockedActivities[DefaultActivity]; !ok {
		t.Fatal("default activity should be unlocked")
	}
	if st.Multipliers.XP != 1 || st.Multipliers.FP != 1 || st.Multipliers.Global != 1 {
		t.Fatalf("multipliers should start at 1: %+v", st.Multipliers)
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := NewState("alice", time.Now())
	cp := st.Clone()
	cp.UnlockedActivities["deep_focus"] = struct{}{}
	cp.ActivityMinutes["meditate"] = 42
	if _, ok := st.UnlockedActivities["deep_focus"]; ok {
		t.Fatal("clone shares unlocked set")
	}
	if st.ActivityMinutes["meditate"] != 0 {
		t.Fatal("clone shares activity minutes")
	}
}

func TestNormalizeRepairsOldState(t *testing.T) {
	now := time.Now().UTC()
	st := ProgressionState{
		PlayerID:        "bob",
		Experience:      2500,
		CurrentActivity: "deep_focus", // not unlocked
		LastSave:        now.Add(time.Hour),
	}
	st.Normalize(now)
	if st.CurrentActivity != DefaultActivity {
		t.Fatalf("expected fallback to %s, got %s", DefaultActivity, st.CurrentActivity)
	}
	if st.UnlockedActivities == nil || st.Achievements == nil || st.PurchasedUpgrades == nil {
		t.Fatal("nil maps should be filled")
	}
	if st.Multipliers.XP != 1 || st.Multipliers.FP != 1 || st.Multipliers.Global != 1 {
		t.Fatalf("zero multipliers should become 1: %+v", st.Multipliers)
	}
	if st.LastSave.After(now) {
		t.Fatal("future last-save should be clamped")
	}
	if st.Level != 3 {
		t.Fatalf("level should be recomputed from xp, got %d", st.Level)
	}
}

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatal("expected overflow")
	}
}

func TestNormalizePlayerID(t *testing.T) {
	id, err := NormalizePlayerID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizePlayerID("   "); err == nil {
		t.Fatal("expected empty error")
	}
}

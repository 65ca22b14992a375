package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"listenquest/core"
)

type fakeStore struct {
	mu         sync.Mutex
	data       map[core.PlayerID]core.ProgressionState
	failWrites bool
	saves      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[core.PlayerID]core.ProgressionState{}}
}

func (f *fakeStore) Load(_ context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.data[player]
	if !ok {
		return core.ProgressionState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (f *fakeStore) Save(_ context.Context, player core.PlayerID, state core.ProgressionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("store unreachable")
	}
	f.saves++
	f.data[player] = state.Clone()
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	// Fixed noon start keeps the night_owl time window out of the way.
	return &fakeClock{cur: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func newTestEngine(t *testing.T) (*Engine, *fakeStore, *fakeClock) {
	t.Helper()
	store := newFakeStore()
	clock := newFakeClock()
	e := New("alice", store, NewEventBus(DispatchSync), WithClock(clock.Now))
	return e, store, clock
}

func TestHourOfListening(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	if err := e.StartListening(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(60 * time.Minute)
	if err := e.StopListening(ctx); err != nil {
		t.Fatal(err)
	}

	snap, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// meditate at 2 xp/min, no multipliers.
	if snap.Experience != 120 {
		t.Fatalf("experience = %d, want 120", snap.Experience)
	}
	if snap.Level != 1 {
		t.Fatalf("level = %d, want 1", snap.Level)
	}
	if snap.TotalMinutesListened != 60 {
		t.Fatalf("minutes = %d, want 60", snap.TotalMinutesListened)
	}
	// 600 FP from listening plus 50 + 100 from the two listening-time unlocks.
	if snap.TotalFocusPointsEarned != 750 {
		t.Fatalf("lifetime fp = %d, want 750", snap.TotalFocusPointsEarned)
	}
	if _, ok := snap.Achievements["started_listening"]; !ok {
		t.Fatal("started_listening should unlock")
	}
	if _, ok := snap.Achievements["hour_one"]; !ok {
		t.Fatal("hour_one should unlock")
	}
	if snap.ActivityMinutes["meditate"] != 60 || snap.ActivityXP["meditate"] != 120 {
		t.Fatalf("per-activity stats wrong: %v %v", snap.ActivityMinutes, snap.ActivityXP)
	}
}

func TestStopDiscardsPartialMinute(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.StartListening(ctx)
	clock.Advance(90 * time.Second)
	_ = e.StopListening(ctx)

	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 1 {
		t.Fatalf("minutes = %d, want 1 (remainder discarded)", snap.TotalMinutesListened)
	}
}

func TestTickReanchors(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.StartListening(ctx)
	clock.Advance(61 * time.Second)
	if err := e.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 1 {
		t.Fatalf("tick granted %d minutes, want 1", snap.TotalMinutesListened)
	}

	// The anchor moved to now: closing right away grants nothing more.
	_ = e.StopListening(ctx)
	snap, _ = e.Snapshot(ctx)
	if snap.TotalMinutesListened != 1 {
		t.Fatalf("minutes = %d after close, want 1", snap.TotalMinutesListened)
	}
}

func TestTickOutsideSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()
	clock.Advance(5 * time.Minute)
	if err := e.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 0 {
		t.Fatal("tick outside a session must not grant progress")
	}
}

func TestOfflineCatchUpCap(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	// Materialize the record, then disappear for ~7 days.
	if err := e.PassiveCheck(ctx); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10000 * time.Minute)

	if err := e.Resume(ctx, true); err != nil {
		t.Fatal(err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != core.OfflineCapMinutes {
		t.Fatalf("granted %d minutes, want cap %d", snap.TotalMinutesListened, core.OfflineCapMinutes)
	}
	if snap.Experience != 2*core.OfflineCapMinutes {
		t.Fatalf("experience = %d, want %d", snap.Experience, 2*core.OfflineCapMinutes)
	}
}

func TestOfflineCatchUpGatedOnPlaying(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.PassiveCheck(ctx)
	clock.Advance(120 * time.Minute)

	if err := e.Resume(ctx, false); err != nil {
		t.Fatal(err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 0 {
		t.Fatal("not-playing resume must grant nothing")
	}

	// The anchor still advanced: an immediate playing resume finds no gap.
	if err := e.Resume(ctx, true); err != nil {
		t.Fatal(err)
	}
	snap, _ = e.Snapshot(ctx)
	if snap.TotalMinutesListened != 0 {
		t.Fatal("second resume re-triggered on an already-consumed gap")
	}
}

func TestResumeDuringOpenSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	// Process suspended mid-session: no ticks ran for 30 minutes.
	_ = e.StartListening(ctx)
	clock.Advance(30 * time.Minute)
	if err := e.Resume(ctx, true); err != nil {
		t.Fatal(err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 30 {
		t.Fatalf("catch-up granted %d minutes, want 30", snap.TotalMinutesListened)
	}

	// The session anchor moved to now: closing grants nothing on top.
	if err := e.StopListening(ctx); err != nil {
		t.Fatal(err)
	}
	snap, _ = e.Snapshot(ctx)
	if snap.TotalMinutesListened != 30 {
		t.Fatalf("minutes = %d after close, want 30 (no double grant)", snap.TotalMinutesListened)
	}
}

func TestResumeNotPlayingStillReanchorsSession(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.StartListening(ctx)
	clock.Advance(30 * time.Minute)
	if err := e.Resume(ctx, false); err != nil {
		t.Fatal(err)
	}
	_ = e.StopListening(ctx)

	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 0 {
		t.Fatalf("minutes = %d, want 0 (gap consumed by not-playing resume)", snap.TotalMinutesListened)
	}
}

func TestResumeClockSkew(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.PassiveCheck(ctx)
	// Corrupt the stored record with a future save anchor.
	st := store.data["alice"]
	st.LastSave = clock.Now().Add(time.Hour)
	store.data["alice"] = st

	e2 := New("alice", store, nil, WithClock(clock.Now))
	if err := e2.Resume(ctx, true); err != nil {
		t.Fatal(err)
	}
	snap, _ := e2.Snapshot(ctx)
	if snap.TotalMinutesListened != 0 {
		t.Fatal("future anchor must be dropped, not back-filled")
	}
}

func TestPurchaseUpgrade(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 600
	seed.TotalFocusPointsEarned = 600
	store.data["alice"] = seed

	res, err := e.PurchaseUpgrade(ctx, "basic_headphones")
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK || res.Upgrade == nil || res.Upgrade.ID != "basic_headphones" {
		t.Fatalf("unexpected result: %+v", res)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.FocusPoints != 100 {
		t.Fatalf("balance = %d, want 100", snap.FocusPoints)
	}
	if snap.TotalFocusPointsEarned != 600 {
		t.Fatal("spending must not touch lifetime earnings")
	}
	if snap.Multipliers.XP != 1.1 {
		t.Fatalf("xp multiplier = %v, want 1.1", snap.Multipliers.XP)
	}
}

func TestPurchaseFailures(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 10000
	seed.TotalFocusPointsEarned = 10000
	store.data["alice"] = seed

	if res, _ := e.PurchaseUpgrade(ctx, "golden_ears"); res.OK || res.Code != FailNotFound {
		t.Fatalf("want not_found, got %+v", res)
	}
	// Prerequisite unmet even with ample funds.
	if res, _ := e.PurchaseUpgrade(ctx, "premium_headphones"); res.OK || res.Code != FailRequirementNotMet {
		t.Fatalf("want requirement_not_met, got %+v", res)
	}
	if res, _ := e.PurchaseUpgrade(ctx, "basic_headphones"); !res.OK {
		t.Fatalf("basic purchase failed: %+v", res)
	}
	if res, _ := e.PurchaseUpgrade(ctx, "basic_headphones"); res.OK || res.Code != FailAlreadyPurchased {
		t.Fatalf("want already_purchased, got %+v", res)
	}

	poor, _ := NewRegistry(store, nil, WithClock(clock.Now)).Engine("bob")
	if res, _ := poor.PurchaseUpgrade(ctx, "basic_headphones"); res.OK || res.Code != FailInsufficientFunds {
		t.Fatalf("want insufficient_funds, got %+v", res)
	}
}

func TestMultipliersComposeMultiplicatively(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 10000
	seed.TotalFocusPointsEarned = 10000
	store.data["alice"] = seed

	if res, _ := e.PurchaseUpgrade(ctx, "basic_headphones"); !res.OK {
		t.Fatalf("basic: %+v", res)
	}
	if res, _ := e.PurchaseUpgrade(ctx, "premium_headphones"); !res.OK {
		t.Fatalf("premium: %+v", res)
	}
	snap, _ := e.Snapshot(ctx)
	if math.Abs(snap.Multipliers.XP-1.375) > 1e-9 {
		t.Fatalf("xp multiplier = %v, want 1.375", snap.Multipliers.XP)
	}
}

func TestActivityBoostStacks(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 2000
	seed.TotalFocusPointsEarned = 2000
	store.data["alice"] = seed

	if res, _ := e.PurchaseUpgrade(ctx, "meditation_cushion"); !res.OK {
		t.Fatalf("cushion: %+v", res)
	}
	_ = e.StartListening(ctx)
	clock.Advance(10 * time.Minute)
	_ = e.StopListening(ctx)

	snap, _ := e.Snapshot(ctx)
	// 10 * 2 * 1.5 = 30
	if snap.ActivityXP["meditate"] != 30 {
		t.Fatalf("boosted xp = %d, want 30", snap.ActivityXP["meditate"])
	}
}

func TestUnlockActivityUpgrade(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 2000
	seed.TotalFocusPointsEarned = 2000
	store.data["alice"] = seed

	if ok, _ := e.ChangeActivity(ctx, "sleep_stories"); ok {
		t.Fatal("locked activity must be rejected")
	}
	if res, _ := e.PurchaseUpgrade(ctx, "library_card"); !res.OK {
		t.Fatalf("library_card: %+v", res)
	}
	ok, err := e.ChangeActivity(ctx, "sleep_stories")
	if err != nil || !ok {
		t.Fatalf("change failed: ok=%v err=%v", ok, err)
	}
	snap, _ := e.Snapshot(ctx)
	if snap.CurrentActivity != "sleep_stories" {
		t.Fatalf("current = %s", snap.CurrentActivity)
	}
}

func TestLevelUnlocksActivities(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.StartListening(ctx)
	clock.Advance(600 * time.Minute) // 1200 xp -> level 2
	_ = e.StopListening(ctx)

	snap, _ := e.Snapshot(ctx)
	if snap.Level != 2 {
		t.Fatalf("level = %d, want 2", snap.Level)
	}
	if _, ok := snap.UnlockedActivities["commute"]; !ok {
		t.Fatal("commute unlocks at level 2")
	}
	if _, ok := snap.UnlockedActivities["deep_focus"]; ok {
		t.Fatal("deep_focus needs level 5")
	}
}

func TestPassiveCheckDebounce(t *testing.T) {
	e, _, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.PassiveCheck(ctx)
	_ = e.PassiveCheck(ctx)
	snap, _ := e.Snapshot(ctx)
	if snap.PassiveChecks != 1 {
		t.Fatalf("passive checks = %d, want 1 within one idle period", snap.PassiveChecks)
	}

	// A session boundary starts a new idle period.
	_ = e.StartListening(ctx)
	_ = e.PassiveCheck(ctx) // during session: ignored
	clock.Advance(time.Minute)
	_ = e.StopListening(ctx)
	_ = e.PassiveCheck(ctx)
	snap, _ = e.Snapshot(ctx)
	if snap.PassiveChecks != 2 {
		t.Fatalf("passive checks = %d, want 2", snap.PassiveChecks)
	}
}

func TestPersistenceFailureKeepsDelta(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	_ = e.StartListening(ctx)
	clock.Advance(10 * time.Minute)
	store.failWrites = true
	err := e.StopListening(ctx)
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("want ErrPersistenceFailed, got %v", err)
	}
	if !e.PendingWrite() {
		t.Fatal("pending write should be flagged")
	}

	// Reward was computed once and retained; recovery flushes it without
	// replaying the pipeline.
	snap, _ := e.Snapshot(ctx)
	if snap.TotalMinutesListened != 10 {
		t.Fatalf("in-memory minutes = %d, want 10", snap.TotalMinutesListened)
	}
	store.failWrites = false
	if err := e.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if e.PendingWrite() {
		t.Fatal("flush should clear the pending flag")
	}
	stored := store.data["alice"]
	if stored.TotalMinutesListened != 10 {
		t.Fatalf("stored minutes = %d, want 10 (no double grant)", stored.TotalMinutesListened)
	}
}

func TestInvalidStoredActivityRecovers(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.CurrentActivity = "deep_focus" // not unlocked
	store.data["alice"] = seed

	snap, err := e.Snapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CurrentActivity != core.DefaultActivity {
		t.Fatalf("current = %s, want recovery to %s", snap.CurrentActivity, core.DefaultActivity)
	}
}

func TestMonotonicity(t *testing.T) {
	e, store, clock := newTestEngine(t)
	ctx := context.Background()

	seed := core.NewState("alice", clock.Now())
	seed.FocusPoints = 600
	seed.TotalFocusPointsEarned = 600
	store.data["alice"] = seed

	var prevXP, prevMinutes, prevEarned int64
	var prevUnlocks int
	check := func(step string) {
		snap, _ := e.Snapshot(ctx)
		if snap.Experience < prevXP || snap.TotalMinutesListened < prevMinutes || snap.TotalFocusPointsEarned < prevEarned {
			t.Fatalf("%s: counter decreased", step)
		}
		unlocks := len(snap.UnlockedActivities) + len(snap.Achievements) + len(snap.PurchasedUpgrades)
		if unlocks < prevUnlocks {
			t.Fatalf("%s: unlock set shrank", step)
		}
		prevXP, prevMinutes, prevEarned = snap.Experience, snap.TotalMinutesListened, snap.TotalFocusPointsEarned
		prevUnlocks = unlocks
	}

	_ = e.StartListening(ctx)
	clock.Advance(30 * time.Minute)
	_ = e.Tick(ctx)
	check("tick")
	clock.Advance(30 * time.Minute)
	_ = e.StopListening(ctx)
	check("stop")
	_, _ = e.PurchaseUpgrade(ctx, "basic_headphones")
	check("purchase")
	_ = e.PassiveCheck(ctx)
	check("passive")
	clock.Advance(2 * time.Hour)
	_ = e.Resume(ctx, true)
	check("resume")
}

func TestRegistrySharesEngines(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, NewEventBus(DispatchSync))
	defer reg.Close()

	a, err := reg.Engine("Alice")
	if err != nil {
		t.Fatal(err)
	}
	b, err := reg.Engine(" alice ")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("normalized ids must share one engine")
	}
	if _, err := reg.Engine("  "); err == nil {
		t.Fatal("empty id must be rejected")
	}
}

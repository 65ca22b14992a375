package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"listenquest/core"
)

// ErrPersistenceFailed marks a command whose progression was computed and kept
// in memory but could not be written to storage. The engine never replays the
// reward pipeline for a failed write; the next successful write (any command,
// or Flush) carries the pending delta because writes replace the full record.
var ErrPersistenceFailed = errors.New("persistence failed")

// FailureCode classifies purchase command rejections. Rejections are values,
// not errors, so UIs can render inline feedback.
type FailureCode string

const (
	FailNotFound          FailureCode = "not_found"
	FailAlreadyPurchased  FailureCode = "already_purchased"
	FailInsufficientFunds FailureCode = "insufficient_funds"
	FailRequirementNotMet FailureCode = "requirement_not_met"
)

// PurchaseResult is the typed outcome of PurchaseUpgrade.
type PurchaseResult struct {
	OK      bool                    `json:"ok"`
	Code    FailureCode             `json:"code,omitempty"`
	Upgrade *core.UpgradeDefinition `json:"upgrade,omitempty"`
}

// Snapshot is the read-only view handed to presentation adapters.
type Snapshot struct {
	core.ProgressionState
	ProgressPercent float64 `json:"progress_percent"`
	SessionActive   bool    `json:"session_active"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithHeartbeat enables a background tick at the given interval while a
// session is open. Zero disables the internal ticker; callers then drive
// Tick themselves.
func WithHeartbeat(interval time.Duration) Option {
	return func(e *Engine) { e.heartbeat = interval }
}

// Engine owns one player's progression: the session clock, the reward-apply
// pipeline, and every mutation of the persisted record. All commands are
// serialized under one mutex so no two pipelines ever run against the same
// state snapshot (last-write-wins storage makes concurrent pipelines a lost
// update, not a conflict error).
type Engine struct {
	player    core.PlayerID
	storage   Storage
	bus       *EventBus
	now       func() time.Time
	heartbeat time.Duration

	mu           sync.Mutex
	state        core.ProgressionState
	loaded       bool
	inSession    bool
	sessionStart time.Time
	idleCounted  bool
	pendingWrite bool
	stopTick     chan struct{}
}

// New creates an engine for a single player. The bus may be nil when no
// observer cares about events.
func New(player core.PlayerID, storage Storage, bus *EventBus, opts ...Option) *Engine {
	if storage == nil {
		panic("engine.New requires non-nil storage")
	}
	e := &Engine{
		player:  player,
		storage: storage,
		bus:     bus,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Snapshot returns a deep copy of the current state plus derived display
// fields. It never mutates.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ProgressionState: e.state.Clone(),
		ProgressPercent:  core.ProgressPercent(e.state.Experience),
		SessionActive:    e.inSession,
	}, nil
}

// PendingWrite reports whether the in-memory state is ahead of storage after
// a failed persist.
func (e *Engine) PendingWrite() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingWrite
}

// Flush retries persistence of the in-memory state without recomputing any
// reward.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded || !e.pendingWrite {
		return nil
	}
	return e.save(ctx)
}

// StartListening opens a session on the playing edge of the playback signal.
// Opening an already-open session is a no-op.
func (e *Engine) StartListening(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	if e.inSession {
		return nil
	}
	e.inSession = true
	e.sessionStart = e.now()
	e.idleCounted = false
	e.publish(ctx, core.NewSessionStarted(e.player, e.state.CurrentActivity))
	e.startHeartbeat()
	return nil
}

// StopListening closes the session, flushing whole elapsed minutes through
// the reward pipeline. Partial-minute remainders are discarded.
func (e *Engine) StopListening(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	if !e.inSession {
		return nil
	}
	minutes := e.elapsedMinutes()
	e.inSession = false
	e.idleCounted = false
	e.stopHeartbeat()
	err := e.applyMinutes(ctx, minutes)
	e.publish(ctx, core.NewSessionEnded(e.player, minutes))
	return err
}

// Tick grants whole minutes accrued since the session anchor and re-anchors
// it at now, bounding what an abnormal exit can lose to one tick interval.
// No-op outside a session.
func (e *Engine) Tick(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	if !e.inSession {
		return nil
	}
	minutes := e.elapsedMinutes()
	if minutes <= 0 {
		// A backwards clock leaves the anchor in the future; re-anchor so the
		// session recovers instead of stalling until the clock catches up.
		if e.now().Before(e.sessionStart) {
			e.sessionStart = e.now()
		}
		return nil
	}
	e.sessionStart = e.now()
	return e.applyMinutes(ctx, minutes)
}

// PassiveCheck records that the player inspected their progression while not
// listening. At most one check is counted per continuous idle period; extra
// calls in the same period and calls during a session are no-ops.
func (e *Engine) PassiveCheck(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	if e.inSession || e.idleCounted {
		return nil
	}
	e.state.PassiveChecks++
	e.idleCounted = true
	saveErr := e.save(ctx)
	if e.unlockAchievements(ctx) > 0 || saveErr != nil {
		saveErr = e.save(ctx)
	}
	return saveErr
}

// Resume runs offline catch-up after a suspend/visibility gap. Progress is
// granted only when the playback signal reports playing at the moment of
// resume, covering a listening session that straddled the suspension; the
// back-fill is capped at OfflineCapMinutes. The save anchor always advances
// so a repeated resume cannot re-trigger on the same gap.
func (e *Engine) Resume(ctx context.Context, playing bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return err
	}
	nowT := e.now()
	// An open session straddled the suspension: the catch-up below replaces
	// the ticks that could not run, so the session anchor moves to now or the
	// close/next tick would grant the same interval again.
	if e.inSession {
		e.sessionStart = nowT
	}
	gap := nowT.Sub(e.state.LastSave)
	minutes := int64(gap / time.Minute)
	if minutes > core.OfflineCapMinutes {
		minutes = core.OfflineCapMinutes
	}
	if gap <= 0 || minutes <= 0 || !playing {
		return e.save(ctx)
	}
	xpBefore := e.state.Experience
	fpBefore := e.state.TotalFocusPointsEarned
	err := e.applyMinutes(ctx, minutes)
	e.publish(ctx, core.NewOfflineProgress(e.player, minutes,
		e.state.Experience-xpBefore, e.state.TotalFocusPointsEarned-fpBefore))
	return err
}

// ChangeActivity switches the active activity. Returns false without error
// when the activity is unknown or not yet unlocked; the UI should only offer
// unlocked choices, but the engine re-validates.
func (e *Engine) ChangeActivity(ctx context.Context, activity core.ActivityID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return false, err
	}
	if _, ok := core.ActivityByID(activity); !ok {
		return false, nil
	}
	if _, ok := e.state.UnlockedActivities[activity]; !ok {
		return false, nil
	}
	e.state.CurrentActivity = activity
	e.state.LastActivityChange = e.now()
	return true, e.save(ctx)
}

// PurchaseUpgrade spends Focus Points on a one-time upgrade and applies its
// effect exactly once. Spending deducts from the balance only; the lifetime
// earned counter is untouched.
func (e *Engine) PurchaseUpgrade(ctx context.Context, id core.UpgradeID) (PurchaseResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(ctx); err != nil {
		return PurchaseResult{}, err
	}
	upgrade, ok := core.UpgradeByID(id)
	if !ok {
		return PurchaseResult{Code: FailNotFound}, nil
	}
	if _, held := e.state.PurchasedUpgrades[id]; held {
		return PurchaseResult{Code: FailAlreadyPurchased}, nil
	}
	if upgrade.Requires != "" {
		if _, held := e.state.PurchasedUpgrades[upgrade.Requires]; !held {
			return PurchaseResult{Code: FailRequirementNotMet}, nil
		}
	}
	if e.state.FocusPoints < upgrade.Cost {
		return PurchaseResult{Code: FailInsufficientFunds}, nil
	}

	e.state.FocusPoints -= upgrade.Cost
	e.state.PurchasedUpgrades[id] = struct{}{}
	e.applyUpgradeEffect(ctx, upgrade)
	e.publish(ctx, core.NewUpgradePurchased(e.player, id, upgrade.Cost))

	saveErr := e.save(ctx)
	if e.unlockAchievements(ctx) > 0 || saveErr != nil {
		saveErr = e.save(ctx)
	}
	return PurchaseResult{OK: true, Upgrade: &upgrade}, saveErr
}

func (e *Engine) applyUpgradeEffect(ctx context.Context, upgrade core.UpgradeDefinition) {
	switch upgrade.Effect {
	case core.EffectXPMultiplier:
		e.state.Multipliers.XP *= upgrade.Value
	case core.EffectFPMultiplier:
		e.state.Multipliers.FP *= upgrade.Value
	case core.EffectGlobalMultiplier:
		e.state.Multipliers.Global *= upgrade.Value
	case core.EffectUnlockActivity:
		if _, ok := e.state.UnlockedActivities[upgrade.Activity]; !ok {
			e.state.UnlockedActivities[upgrade.Activity] = struct{}{}
			e.publish(ctx, core.NewActivityUnlocked(e.player, upgrade.Activity))
		}
	case core.EffectActivityBoost:
		boost := e.state.ActivityBoosts[upgrade.Activity]
		if boost < 1 {
			boost = 1
		}
		e.state.ActivityBoosts[upgrade.Activity] = boost * upgrade.Value
	}
}

// applyMinutes is the reward-apply pipeline shared by tick, session close and
// offline catch-up. Caller holds e.mu.
func (e *Engine) applyMinutes(ctx context.Context, minutes int64) error {
	if minutes <= 0 {
		return nil
	}
	reward := core.CalculateRewards(minutes, e.state)
	activity := e.state.CurrentActivity
	prevLevel := e.state.Level

	e.state.Experience += reward.XP
	e.state.Level = core.LevelForXP(e.state.Experience)
	e.state.FocusPoints += reward.FP
	e.state.TotalFocusPointsEarned += reward.FP
	e.state.TotalMinutesListened += minutes
	e.state.ActivityMinutes[activity] += minutes
	e.state.ActivityXP[activity] += reward.XP

	for _, a := range core.Activities() {
		if a.UnlockLevel > e.state.Level {
			continue
		}
		if _, ok := e.state.UnlockedActivities[a.ID]; !ok {
			e.state.UnlockedActivities[a.ID] = struct{}{}
			e.publish(ctx, core.NewActivityUnlocked(e.player, a.ID))
		}
	}

	if reward.XP > 0 {
		e.publish(ctx, core.NewXPGained(e.player, activity, minutes, reward.XP, e.state.Experience))
	}
	if reward.FP > 0 {
		e.publish(ctx, core.NewFPGained(e.player, reward.FP, e.state.TotalFocusPointsEarned))
	}
	if e.state.Level > prevLevel {
		e.publish(ctx, core.NewLevelUp(e.player, e.state.Level))
	}

	saveErr := e.save(ctx)
	if e.unlockAchievements(ctx) > 0 || saveErr != nil {
		saveErr = e.save(ctx)
	}
	return saveErr
}

// unlockAchievements merges newly-qualifying achievements into state and
// applies each reward exactly once. Returns the number of new unlocks.
// Caller holds e.mu.
func (e *Engine) unlockAchievements(ctx context.Context) int {
	newly := core.CheckAchievements(e.state, e.now().Hour())
	for _, a := range newly {
		e.state.Achievements[a.ID] = struct{}{}
		e.state.FocusPoints += a.Reward
		e.state.TotalFocusPointsEarned += a.Reward
		e.publish(ctx, core.NewAchievementUnlocked(e.player, a.ID, a.Reward, e.state.TotalFocusPointsEarned))
	}
	return len(newly)
}

func (e *Engine) ensureLoaded(ctx context.Context) error {
	if e.loaded {
		return nil
	}
	state, found, err := e.storage.Load(ctx, e.player)
	if err != nil {
		return fmt.Errorf("load progression for %s: %w", e.player, err)
	}
	nowT := e.now()
	if !found {
		state = core.NewState(e.player, nowT)
	}
	state.PlayerID = e.player
	state.Normalize(nowT)
	e.state = state
	e.loaded = true
	return nil
}

func (e *Engine) save(ctx context.Context) error {
	nowT := e.now()
	e.state.LastSave = nowT
	e.state.Updated = nowT
	if err := e.storage.Save(ctx, e.player, e.state); err != nil {
		e.pendingWrite = true
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	e.pendingWrite = false
	return nil
}

func (e *Engine) elapsedMinutes() int64 {
	elapsed := e.now().Sub(e.sessionStart)
	if elapsed <= 0 {
		return 0
	}
	return int64(elapsed / time.Minute)
}

func (e *Engine) publish(ctx context.Context, ev core.Event) {
	if e.bus != nil {
		e.bus.Publish(ctx, ev)
	}
}

func (e *Engine) startHeartbeat() {
	if e.heartbeat <= 0 || e.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	e.stopTick = stop
	go func() {
		ticker := time.NewTicker(e.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = e.Tick(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

func (e *Engine) stopHeartbeat() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

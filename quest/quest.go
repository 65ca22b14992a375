package quest

import (
	"context"
	"sync"
	"time"

	"listenquest/analytics"
	"listenquest/core"
	"listenquest/engine"
	"listenquest/leaderboard"
	"listenquest/realtime"
)

// Option configures the progression service builder.
type Option func(*config)

type config struct {
	storage   engine.Storage
	mode      engine.DispatchMode
	hub       *realtime.Hub
	board     leaderboard.Board
	hooks     []analytics.Hook
	clock     func() time.Time
	heartbeat time.Duration
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard keeps a board updated from lifetime Focus Point events.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithHooks registers analytics hooks fed every engine event.
func WithHooks(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithClock overrides the engines' wall clock, mainly for tests.
func WithClock(now func() time.Time) Option { return func(c *config) { c.clock = now } }

// WithHeartbeat enables the engines' background tick at the given interval.
func WithHeartbeat(interval time.Duration) Option {
	return func(c *config) { c.heartbeat = interval }
}

// New builds a configured engine registry. If not provided, defaults are used:
//   - storage: in-memory
//   - dispatch: async
func New(opts ...Option) *engine.Registry {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		// tiny local storage so New() stays usable without external deps;
		// implementors should pass explicit storage in prod
		cfg.storage = &memStore{}
	}
	bus := engine.NewEventBus(cfg.mode)

	if cfg.hub != nil {
		bus.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	if cfg.board != nil {
		// Both fp_gained and achievement_unlocked carry the absolute lifetime
		// total at publish time. Lifetime totals only grow, so a serialized
		// high-water mark keeps board scores monotone even when async workers
		// deliver the events out of order.
		board := cfg.board
		var mu sync.Mutex
		high := map[core.PlayerID]int64{}
		apply := func(_ context.Context, e core.Event) {
			mu.Lock()
			defer mu.Unlock()
			if e.Total <= high[e.PlayerID] {
				return
			}
			high[e.PlayerID] = e.Total
			board.Update(e.PlayerID, e.Total)
		}
		bus.Subscribe(core.EventFPGained, apply)
		bus.Subscribe(core.EventAchievementUnlocked, apply)
	}
	for _, h := range cfg.hooks {
		hook := h
		bus.SubscribeAll(func(_ context.Context, e core.Event) { hook.OnEvent(e) })
	}

	var engineOpts []engine.Option
	if cfg.clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(cfg.clock))
	}
	if cfg.heartbeat > 0 {
		engineOpts = append(engineOpts, engine.WithHeartbeat(cfg.heartbeat))
	}
	return engine.NewRegistry(cfg.storage, bus, engineOpts...)
}

// memStore is a minimal memory impl mirroring adapters/memory to avoid an
// import cycle.
type memStore struct {
	mu   sync.RWMutex
	data map[core.PlayerID]core.ProgressionState
}

func (s *memStore) Load(_ context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[player]
	if !ok {
		return core.ProgressionState{}, false, nil
	}
	return st.Clone(), true, nil
}

func (s *memStore) Save(_ context.Context, player core.PlayerID, state core.ProgressionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = map[core.PlayerID]core.ProgressionState{}
	}
	s.data[player] = state.Clone()
	return nil
}

package engine

import (
	"sync"

	"listenquest/core"
)

// Registry hands out one serialized Engine per player id, all sharing the
// same storage, bus and options. It is the single logical owner required by
// the concurrency model: commands for the same player always reach the same
// engine instance.
type Registry struct {
	storage Storage
	bus     *EventBus
	opts    []Option

	mu      sync.Mutex
	engines map[core.PlayerID]*Engine
}

func NewRegistry(storage Storage, bus *EventBus, opts ...Option) *Registry {
	if storage == nil {
		panic("engine.NewRegistry requires non-nil storage")
	}
	return &Registry{
		storage: storage,
		bus:     bus,
		opts:    opts,
		engines: make(map[core.PlayerID]*Engine),
	}
}

// Engine returns the engine owning the given player, creating it on first
// access. The id is normalized so "Alice" and "alice" share one engine.
func (r *Registry) Engine(player core.PlayerID) (*Engine, error) {
	normalized, err := core.NormalizePlayerID(player)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[normalized]; ok {
		return e, nil
	}
	e := New(normalized, r.storage, r.bus, r.opts...)
	r.engines[normalized] = e
	return e, nil
}

// Bus exposes the shared event bus for subscribers.
func (r *Registry) Bus() *EventBus { return r.bus }

// Close shuts down the shared bus.
func (r *Registry) Close() {
	if r.bus != nil {
		r.bus.Close()
	}
}

package engine

import (
	"context"

	"listenquest/core"
)

// Storage abstracts persistence for progression state. Implementations must
// support atomic full-record replace; no partial-field update is required.
type Storage interface {
	// Load returns the stored state for a player, or found=false when the
	// player has no record yet.
	Load(ctx context.Context, player core.PlayerID) (state core.ProgressionState, found bool, err error)
	// Save replaces the player's record.
	Save(ctx context.Context, player core.PlayerID, state core.ProgressionState) error
}

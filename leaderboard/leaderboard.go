package leaderboard

import "listenquest/core"

// Entry represents a score entry.
type Entry struct {
	Player core.PlayerID
	Score  int64
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(player core.PlayerID, score int64)
	Remove(player core.PlayerID)
	TopN(n int) []Entry
	Get(player core.PlayerID) (Entry, bool)
}

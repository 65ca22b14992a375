package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listenquest/core"
	"listenquest/leaderboard"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine.Storage interface with Redis as the backend.
// Data structure:
// - player:{player_id}:progression -> JSON blob of ProgressionState
// - leaderboard:focus -> sorted set of player ids scored by lifetime Focus Points
type Store struct {
	client *redis.Client
}

const focusLeaderboardKey = "leaderboard:focus"

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func stateKey(player core.PlayerID) string {
	return fmt.Sprintf("player:%s:progression", player)
}

// Load fetches the full progression document for a player.
func (s *Store) Load(ctx context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	data, err := s.client.Get(ctx, stateKey(player)).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.ProgressionState{}, false, nil
	}
	if err != nil {
		return core.ProgressionState{}, false, fmt.Errorf("failed to load progression: %w", err)
	}
	var state core.ProgressionState
	if err := json.Unmarshal(data, &state); err != nil {
		return core.ProgressionState{}, false, fmt.Errorf("failed to decode progression: %w", err)
	}
	return state, true, nil
}

// Save replaces the progression document and keeps the lifetime Focus Point
// leaderboard in step, both in one pipeline round trip.
func (s *Store) Save(ctx context.Context, player core.PlayerID, state core.ProgressionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode progression: %w", err)
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, stateKey(player), data, 0)
	pipe.ZAdd(ctx, focusLeaderboardKey, redis.Z{
		Score:  float64(state.TotalFocusPointsEarned),
		Member: string(player),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save progression: %w", err)
	}
	return nil
}

// Top returns the highest lifetime Focus Point earners, best first.
func (s *Store) Top(ctx context.Context, n int) ([]leaderboard.Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, focusLeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	out := make([]leaderboard.Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, leaderboard.Entry{Player: core.PlayerID(member), Score: int64(z.Score)})
	}
	return out, nil
}

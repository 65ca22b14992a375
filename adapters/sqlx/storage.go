package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"listenquest/core"
)

// Driver identifies the SQL dialect in use.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults for the given driver.
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine.Storage interface on a relational database.
// Each player's progression is a single JSON document:
//
//	CREATE TABLE player_progression (
//	    player_id  TEXT PRIMARY KEY,
//	    state      TEXT NOT NULL,
//	    updated_at TIMESTAMP NOT NULL
//	);
type Store struct {
	db     *libsqlx.DB
	driver Driver
}

// New opens a database connection with the provided configuration.
func New(config Config) (*Store, error) {
	db, err := libsqlx.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewWithDB(db, config.Driver), nil
}

// NewWithDB wraps an existing sqlx database handle (useful for testing).
func NewWithDB(db *libsqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load fetches a player's progression document.
func (s *Store) Load(ctx context.Context, player core.PlayerID) (core.ProgressionState, bool, error) {
	var raw string
	query := s.db.Rebind(`SELECT state FROM player_progression WHERE player_id = ?`)
	err := s.db.GetContext(ctx, &raw, query, player)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ProgressionState{}, false, nil
	}
	if err != nil {
		return core.ProgressionState{}, false, fmt.Errorf("failed to load progression: %w", err)
	}
	var state core.ProgressionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return core.ProgressionState{}, false, fmt.Errorf("failed to decode progression: %w", err)
	}
	return state, true, nil
}

// Save writes a player's progression document, inserting or updating as needed.
func (s *Store) Save(ctx context.Context, player core.PlayerID, state core.ProgressionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode progression: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	existsQuery := tx.Rebind(`SELECT EXISTS(SELECT 1 FROM player_progression WHERE player_id = ?)`)
	if err := tx.GetContext(ctx, &exists, existsQuery, player); err != nil {
		return fmt.Errorf("failed to check progression row: %w", err)
	}

	now := time.Now().UTC()
	if exists {
		updateQuery := tx.Rebind(`UPDATE player_progression SET state = ?, updated_at = ? WHERE player_id = ?`)
		if _, err := tx.ExecContext(ctx, updateQuery, string(data), now, player); err != nil {
			return fmt.Errorf("failed to update progression: %w", err)
		}
	} else {
		insertQuery := tx.Rebind(`INSERT INTO player_progression (player_id, state, updated_at) VALUES (?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, insertQuery, player, string(data), now); err != nil {
			return fmt.Errorf("failed to insert progression: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progression: %w", err)
	}
	return nil
}

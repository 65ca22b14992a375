package sqlx_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "listenquest/adapters/sqlx"
	"listenquest/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_LoadAbsent(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT state FROM player_progression`).
		WithArgs(core.PlayerID("alice")).
		WillReturnError(sql.ErrNoRows)

	_, found, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Load(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	st := core.NewState("alice", time.Now().UTC())
	st.Experience = 2400
	st.FocusPoints = 130
	raw, err := json.Marshal(st)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT state FROM player_progression`).
		WithArgs(core.PlayerID("alice")).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(string(raw)))

	got, found, err := store.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2400), got.Experience)
	require.Equal(t, int64(130), got.FocusPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Save_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("alice")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO player_progression`).
		WithArgs(core.PlayerID("alice"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	st := core.NewState("alice", time.Now().UTC())
	require.NoError(t, store.Save(context.Background(), "alice", st))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Save_Update(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(core.PlayerID("alice")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`UPDATE player_progression`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), core.PlayerID("alice")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	st := core.NewState("alice", time.Now().UTC())
	st.Experience = 100
	require.NoError(t, store.Save(context.Background(), "alice", st))
	require.NoError(t, mock.ExpectationsWereMet())
}

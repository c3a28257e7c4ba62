package postgres

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-hub/admin-client/pkg/database"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/logger"
)

func setupStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestStore_Get(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(getSQL)).
		WithArgs("churchadmin:auth_token").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("t1"))

	got, err := s.Get(context.Background(), "churchadmin:auth_token")
	require.NoError(t, err)
	assert.Equal(t, "t1", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_NotFound(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(getSQL)).
		WithArgs("churchadmin:user").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Get(context.Background(), "churchadmin:user")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_DBError(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(getSQL)).
		WithArgs("churchadmin:user").
		WillReturnError(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "churchadmin:user")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "select credential")
}

func TestStore_Set(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("churchadmin:last_activity", "1700000000000").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Set(context.Background(), "churchadmin:last_activity", "1700000000000"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetMulti_CommitsInKeyOrder(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("churchadmin:auth_token", "t1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("churchadmin:user", `{"id":1}`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SetMulti(context.Background(), map[string]string{
		"churchadmin:user":       `{"id":1}`,
		"churchadmin:auth_token": "t1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetMulti_RollsBackOnFailure(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("churchadmin:auth_token", "t1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(upsertSQL)).
		WithArgs("churchadmin:user", `{"id":1}`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SetMulti(context.Background(), map[string]string{
		"churchadmin:user":       `{"id":1}`,
		"churchadmin:auth_token": "t1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "churchadmin:user")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Delete(t *testing.T) {
	s, mock := setupStore(t)

	keys := []string{"churchadmin:auth_token", "churchadmin:user"}
	mock.ExpectExec(regexp.QuoteMeta(deleteSQL)).
		WithArgs(keys).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	require.NoError(t, s.Delete(context.Background(), keys...))
	require.NoError(t, s.Delete(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Keys(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(keysSQL)).
		WithArgs("churchadmin:").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("churchadmin:auth_token").
			AddRow("churchadmin:user"))

	keys, err := s.Keys(context.Background(), "churchadmin:")
	require.NoError(t, err)
	assert.Equal(t, []string{"churchadmin:auth_token", "churchadmin:user"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	s, _ := setupStore(t)

	assert.NoError(t, s.Ping(context.Background()))
}

func TestStore_Migrate(t *testing.T) {
	s, mock := setupStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("001_create_credential_kv.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS credential_kv").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("001_create_credential_kv.up.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.Migrate(context.Background(), logger.Discard()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "001_create_credential_kv.up.sql")
	assert.Contains(t, names, "001_create_credential_kv.down.sql")
}

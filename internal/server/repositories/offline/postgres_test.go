package offline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ    = `(?s)^INSERT\s+INTO\s+offline_messages\s*\(user_id,\s*message\)\s*VALUES\s*\(\$1,\s*\$2\)\s*$`
	listQ      = `(?s)^SELECT\s+id,\s*user_id,\s*message,\s*created_at\s+FROM\s+offline_messages\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+id\s*$`
	deleteUpQ  = `(?s)^DELETE\s+FROM\s+offline_messages\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+id\s*<=\s*\$2\s*$`
	deleteAllQ = `(?s)^DELETE\s+FROM\s+offline_messages\s+WHERE\s+user_id\s*=\s*\$1\s*$`
)

func newRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestInsert_PassesPayloadVerbatim(t *testing.T) {
	repo, mock := newRepo(t)
	payload := []byte("{\"msgid\":6,\"msg\":\"a\\u0000b\"}")

	mock.ExpectExec(insertQ).WithArgs(7, payload).WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Insert(context.Background(), 7, payload))

	mock.ExpectExec(insertQ).WithArgs(7, payload).WillReturnError(errors.New("db down"))
	err := repo.Insert(context.Background(), 7, payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestList(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery(listQ).WithArgs(7).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "message", "created_at"}).
			AddRow(int64(10), 7, []byte("m1"), now).
			AddRow(int64(11), 7, []byte("m2"), now))

	got, err := repo.List(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", string(got[0].Payload))
	assert.Equal(t, int64(11), got[1].ID)

	mock.ExpectQuery(listQ).WithArgs(7).WillReturnError(errors.New("db down"))
	_, err = repo.List(context.Background(), 7)
	require.Error(t, err)
}

func TestDeleteUpTo(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(deleteUpQ).WithArgs(7, int64(11)).WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := repo.DeleteUpTo(context.Background(), 7, 11)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	mock.ExpectExec(deleteUpQ).WithArgs(7, int64(11)).WillReturnError(errors.New("db down"))
	_, err = repo.DeleteUpTo(context.Background(), 7, 11)
	require.Error(t, err)
}

func TestDeleteAll(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec(deleteAllQ).WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.DeleteAll(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

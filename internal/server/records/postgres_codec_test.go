package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qSelectBody     = `(?s)^SELECT\s+body\s+FROM\s+record_collections\s+WHERE\s+name\s*=\s*\$1\s*$`
	qSelectRevision = `(?s)^SELECT\s+revision\s+FROM\s+record_collections\s+WHERE\s+name\s*=\s*\$1\s+FOR\s+UPDATE\s*$`
	qInsert         = `(?s)^INSERT\s+INTO\s+record_collections\s*\(name,\s*body,\s*revision\)\s*VALUES\s*\(\$1,\s*\$2,\s*1\)\s*$`
	qUpdate         = `(?s)^UPDATE\s+record_collections\s+SET\s+body\s*=\s*\$2,\s*revision\s*=\s*\$3,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+name\s*=\s*\$1\s*$`
)

// collectionArg matches a driver value holding the JSON encoding of want.
type collectionArg struct {
	want []Record
}

func (a collectionArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	var got []Record
	if err := json.Unmarshal([]byte(s), &got); err != nil {
		return false
	}
	wantJSON, _ := json.Marshal(a.want)
	gotJSON, _ := json.Marshal(got)
	return string(wantJSON) == string(gotJSON)
}

func newPostgresCodecWithMock(t *testing.T) (*PostgresCodec, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresCodec(db, "users", logging.Nop{}), mock, db
}

func TestPostgresCodec_LoadNoRow(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectBody).WithArgs("users").WillReturnRows(sqlmock.NewRows([]string{"body"}))

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCodec_LoadRow(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	body := `[{"username":"alice","riskBucket":"low","profile":{"Age Group":"2"}}]`
	mock.ExpectQuery(qSelectBody).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(body)))

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, "low", got[0].RiskBucket)
	assert.Equal(t, map[string]string{"Age Group": "2"}, got[0].Profile)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCodec_LoadCorruptRowIsEmpty(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectBody).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"body"}).AddRow([]byte(`{"not":"an array"}`)))

	got, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgresCodec_LoadQueryError(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qSelectBody).WithArgs("users").WillReturnError(errors.New("db down"))

	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error performing sql request")
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgresCodec_SaveInsertsFirstRow(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	records := []Record{{Username: "alice", SubmittedAt: t0}}

	mock.ExpectBegin()
	mock.ExpectQuery(qSelectRevision).WithArgs("users").WillReturnRows(sqlmock.NewRows([]string{"revision"}))
	mock.ExpectExec(qInsert).WithArgs("users", collectionArg{want: records}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, c.Save(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCodec_SaveUpdatesExistingRow(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	records := []Record{{Username: "alice"}, {Username: "bob", RiskBucket: "high"}}

	mock.ExpectBegin()
	mock.ExpectQuery(qSelectRevision).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(int64(3)))
	mock.ExpectExec(qUpdate).WithArgs("users", collectionArg{want: records}, int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, c.Save(context.Background(), records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCodec_SaveRollsBackOnError(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(qSelectRevision).WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(int64(1)))
	mock.ExpectExec(qUpdate).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := c.Save(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCodec_SaveLockQueryError(t *testing.T) {
	c, mock, db := newPostgresCodecWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(qSelectRevision).WithArgs("users").WillReturnError(errors.New("lock timeout"))
	mock.ExpectRollback()

	err := c.Save(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("bad migration")
	}
	err = RunMigrations(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad migration")
}

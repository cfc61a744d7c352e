package sink

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newMockDatabaseSink creates a DatabaseSink over a mocked postgres connection
func newMockDatabaseSink(t *testing.T) (*DatabaseSink, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewDatabaseSink(gormDB), mock, mockDB
}

func setupSQLiteSink(t *testing.T) (*DatabaseSink, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "outcomes.db")), &gorm.Config{})
	require.NoError(t, err)

	s := NewDatabaseSink(db)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, db
}

func TestDatabaseSink_Postgres(t *testing.T) {
	t.Run("inserts failure outcome", func(t *testing.T) {
		s, mock, mockDB := newMockDatabaseSink(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "run_outcomes"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := s.RecordFailure(context.Background(), sampleFailure())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts result outcome", func(t *testing.T) {
		s, mock, mockDB := newMockDatabaseSink(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "run_outcomes"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := s.RecordResult(context.Background(), sampleResult())

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps insert errors", func(t *testing.T) {
		s, mock, mockDB := newMockDatabaseSink(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "run_outcomes"`).
			WillReturnError(errors.New("connection reset"))

		err := s.RecordFailure(context.Background(), sampleFailure())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save outcome of run")
		assert.Contains(t, err.Error(), "connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabaseSink_SQLite(t *testing.T) {
	s, db := setupSQLiteSink(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFailure(ctx, sampleFailure()))
	require.NoError(t, s.RecordResult(ctx, sampleResult()))

	var rows []OutcomeRecord
	require.NoError(t, db.Order("run_id").Find(&rows).Error)
	require.Len(t, rows, 2)

	assert.Equal(t, "failed", rows[0].Status)
	assert.Equal(t, "vehicles", rows[0].Stage)
	assert.Equal(t, "abc123", rows[0].DatasetID)
	assert.Contains(t, rows[0].Detail, "status 500")

	assert.Equal(t, "done", rows[1].Status)
	assert.Equal(t, `{"success":true}`, rows[1].Detail)
	assert.Equal(t, 2, rows[1].Dealers)

	t.Run("rejects a duplicate run id", func(t *testing.T) {
		assert.Error(t, s.RecordFailure(ctx, sampleFailure()))
	})
}

func TestOpenDatabase(t *testing.T) {
	t.Run("opens sqlite file", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "outcomes.db")})
		require.NoError(t, err)

		s := NewDatabaseSink(db)
		require.NoError(t, s.Migrate(context.Background()))
		assert.True(t, db.Migrator().HasTable(&OutcomeRecord{}))
		assert.NoError(t, s.Close())
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		_, err := OpenDatabase(DatabaseConfig{Driver: "oracle", DSN: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported database driver")
	})
}

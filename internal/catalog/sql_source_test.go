package catalog

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restore-chain/internal/chain"
	apperrors "restore-chain/internal/errors"
)

var historyColumns = []string{
	"database_name", "physical_device_name", "backup_start_date", "first_lsn", "last_lsn",
	"database_backup_lsn", "checkpoint_lsn", "backup_type", "server_name",
}

func historyRows() *sqlmock.Rows {
	start := time.Date(2018, 10, 29, 2, 0, 7, 0, time.UTC)
	return sqlmock.NewRows(historyColumns).
		AddRow("TestDb", `\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_020007_343.trn`, start,
			"126000000955200001", "126000000955500001", "126000000943800037", "126000000953600034", "L", "ServerA").
		AddRow("TestDb", `\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_000339_780.diff`, start.Add(-2*time.Hour),
			[]byte("126000000945600000"), []byte("126000000955200001"), []byte("126000000943800037"), []byte("126000000953600034"), "I", "ServerA").
		AddRow("TestDb", `\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_28_000227_200.full`, start.Add(-26*time.Hour),
			"126000000936100001", "126000000945500001", "126000000882000037", "126000000943800037", "D", nil)
}

func TestSQLSource_RecentBackups(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM msdb.dbo.backupset s")).
		WithArgs(sql.Named("dbName", "TestDb")).
		WillReturnRows(historyRows())

	source := NewSQLSource("node1", db, nil)
	records, err := source.RecentBackups(context.Background(), "TestDb")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, chain.BackupTypeLog, records[0].Type)
	assert.Equal(t, "126000000955200001", records[0].FirstLSN.String())
	assert.Equal(t, "ServerA", records[0].ServerName)

	assert.Equal(t, chain.BackupTypeDiff, records[1].Type)
	assert.Equal(t, "126000000955200001", records[1].LastLSN.String())

	assert.Equal(t, chain.BackupTypeFull, records[2].Type)
	assert.Equal(t, "126000000943800037", records[2].CheckpointLSN.String())
	// NULL server names fall back to the replica name
	assert.Equal(t, "node1", records[2].ServerName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_RecentBackupsResolves(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(historyRows())

	records, err := NewSQLSource("node1", db, nil).RecentBackups(context.Background(), "TestDb")
	require.NoError(t, err)

	c, _, err := chain.Build(records)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Len())
}

func TestSQLSource_UnknownBackupType(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(historyColumns).
		AddRow("TestDb", `C:\b\file.bak`, time.Now(), "1", "2", "0", "1", "F", "node1"))

	_, err = NewSQLSource("node1", db, nil).RecentBackups(context.Background(), "TestDb")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeCatalog, apperrors.GetErrorType(err))
}

func TestSQLSource_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	_, err = NewSQLSource("node1", db, nil).RecentBackups(context.Background(), "TestDb")
	require.Error(t, err)
	assert.True(t, apperrors.IsRecoverableError(err))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "node1", appErr.Context["replica"])
}

func TestSQLSource_BackupsFromLSN(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	lsn := chain.MustParseLSN("126000000943800037")
	mock.ExpectQuery(regexp.QuoteMeta("(s.database_backup_lsn = @lsn OR s.checkpoint_lsn = @lsn)")).
		WithArgs(sql.Named("dbName", "TestDb"), sql.Named("lsn", "126000000943800037")).
		WillReturnRows(historyRows())

	records, err := NewSQLSource("node1", db, nil).BackupsFromLSN(context.Background(), "TestDb", lsn)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSource_MostRecentFullBackupLSN(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(checkpoint_lsn)")).
			WithArgs(sql.Named("dbName", "TestDb")).
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow("126000000943800037"))

		lsn, ok, err := NewSQLSource("node1", db, nil).MostRecentFullBackupLSN(context.Background(), "TestDb")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "126000000943800037", lsn.String())
	})

	t.Run("no full backup", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(checkpoint_lsn)")).
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(nil))

		_, ok, err := NewSQLSource("node1", db, nil).MostRecentFullBackupLSN(context.Background(), "TestDb")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCheckpointSource_RecentBackups(t *testing.T) {
	t.Run("anchored at newest full", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(checkpoint_lsn)")).
			WithArgs(sql.Named("dbName", "TestDb")).
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow("126000000943800037"))
		mock.ExpectQuery(regexp.QuoteMeta("(s.database_backup_lsn = @lsn OR s.checkpoint_lsn = @lsn)")).
			WithArgs(sql.Named("dbName", "TestDb"), sql.Named("lsn", "126000000943800037")).
			WillReturnRows(historyRows())

		var source Source = NewCheckpointSource(NewSQLSource("node1", db, nil))
		assert.Equal(t, "node1", source.Name())

		records, err := source.RecentBackups(context.Background(), "TestDb")
		require.NoError(t, err)

		c, _, err := chain.Build(records)
		require.NoError(t, err)
		assert.Equal(t, 3, c.Len())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no full backup", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(checkpoint_lsn)")).
			WillReturnRows(sqlmock.NewRows([]string{""}).AddRow(nil))

		records, err := NewCheckpointSource(NewSQLSource("node1", db, nil)).RecentBackups(context.Background(), "TestDb")
		require.NoError(t, err)
		assert.Empty(t, records)

		_, _, err = chain.Build(records)
		assert.True(t, chain.IsNoFullBackupFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(checkpoint_lsn)")).
			WillReturnError(context.DeadlineExceeded)

		_, err = NewCheckpointSource(NewSQLSource("node1", db, nil)).RecentBackups(context.Background(), "TestDb")
		assert.Error(t, err)
	})
}

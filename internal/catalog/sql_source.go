package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"restore-chain/internal/chain"
	"restore-chain/internal/errors"
	"restore-chain/internal/logging"
)

const backupColumns = `
    s.database_name,
    m.physical_device_name,
    s.backup_start_date,
    s.first_lsn,
    s.last_lsn,
    s.database_backup_lsn,
    s.checkpoint_lsn,
    s.[type] AS backup_type,
    s.server_name
FROM msdb.dbo.backupset s
INNER JOIN msdb.dbo.backupmediafamily m ON s.media_set_id = m.media_set_id`

// Copy-only backups never take part in a chain.
const recentBackupsQuery = `SELECT` + backupColumns + `
WHERE s.last_lsn >= (
        SELECT MAX(last_lsn) FROM msdb.dbo.backupset
        WHERE [type] = 'D' AND database_name = @dbName AND is_copy_only = 0)
    AND s.database_name = @dbName
    AND s.is_copy_only = 0
ORDER BY s.backup_start_date DESC, s.backup_finish_date`

const backupsFromLSNQuery = `SELECT` + backupColumns + `
WHERE s.database_name = @dbName
    AND s.is_copy_only = 0
    AND (s.database_backup_lsn = @lsn OR s.checkpoint_lsn = @lsn)
ORDER BY s.backup_start_date DESC, s.backup_finish_date`

const mostRecentFullLSNQuery = `SELECT MAX(checkpoint_lsn)
FROM msdb.dbo.backupset
WHERE database_name = @dbName AND [type] = 'D' AND is_copy_only = 0`

// SQLSource reads backup history from the msdb database of one replica
type SQLSource struct {
	name   string
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLSource creates a source reading from db
func NewSQLSource(name string, db *sql.DB, logger *logging.Logger) *SQLSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SQLSource{name: name, db: db, logger: logger}
}

// Name returns the replica name
func (s *SQLSource) Name() string {
	return s.name
}

// RecentBackups returns every non copy-only backup of database whose last LSN
// is at or after the most recent full backup's last LSN.
func (s *SQLSource) RecentBackups(ctx context.Context, database string) ([]chain.Record, error) {
	return s.query(ctx, database, recentBackupsQuery, sql.Named("dbName", database))
}

// BackupsFromLSN returns the backups based on, or checkpointed at, lsn. With
// the checkpoint LSN of a full backup this is the full backup itself plus
// every differential and log backup taken since.
func (s *SQLSource) BackupsFromLSN(ctx context.Context, database string, lsn chain.LSN) ([]chain.Record, error) {
	return s.query(ctx, database, backupsFromLSNQuery, sql.Named("dbName", database), sql.Named("lsn", lsn))
}

// MostRecentFullBackupLSN returns the checkpoint LSN of the newest full
// backup, or false when the database has none.
func (s *SQLSource) MostRecentFullBackupLSN(ctx context.Context, database string) (chain.LSN, bool, error) {
	var checkpoint decimal.NullDecimal
	err := s.db.QueryRowContext(ctx, mostRecentFullLSNQuery, sql.Named("dbName", database)).Scan(&checkpoint)
	if err != nil {
		return chain.LSN{}, false, errors.WrapError(err, "failed to query most recent full backup").(*errors.AppError).
			WithContext("replica", s.name).
			WithContext("database", database)
	}
	if !checkpoint.Valid {
		return chain.LSN{}, false, nil
	}
	lsn, err := chain.ParseLSN(checkpoint.Decimal.String())
	if err != nil {
		return chain.LSN{}, false, errors.NewAppError(errors.ErrorTypeCatalog, "invalid checkpoint LSN", err)
	}
	return lsn, true, nil
}

// CheckpointSource reads the history anchored at the checkpoint LSN of the
// newest full backup: the full backup itself and every backup based on it.
// Backups of an older base that end after the full are never returned.
type CheckpointSource struct {
	*SQLSource
}

// NewCheckpointSource wraps s
func NewCheckpointSource(s *SQLSource) CheckpointSource {
	return CheckpointSource{SQLSource: s}
}

// RecentBackups returns the backups based on the newest full backup, or none
// when the database has no full backup.
func (s CheckpointSource) RecentBackups(ctx context.Context, database string) ([]chain.Record, error) {
	lsn, ok, err := s.MostRecentFullBackupLSN(ctx, database)
	if err != nil || !ok {
		return nil, err
	}
	return s.BackupsFromLSN(ctx, database, lsn)
}

func (s *SQLSource) query(ctx context.Context, database, query string, args ...interface{}) (records []chain.Record, err error) {
	startTime := time.Now()
	defer func() {
		s.logger.LogCatalogFetch(s.name, database, len(records), time.Since(startTime), err)
	}()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(err, "failed to query backup history", database)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			row        Row
			device     sql.NullString
			serverName sql.NullString
		)
		if err := rows.Scan(
			&row.DatabaseName,
			&device,
			&row.BackupStartDate,
			&row.FirstLSN,
			&row.LastLSN,
			&row.DatabaseBackupLSN,
			&row.CheckpointLSN,
			&row.BackupType,
			&serverName,
		); err != nil {
			return nil, s.wrap(err, "failed to scan backup history row", database)
		}
		row.PhysicalDeviceName = device.String
		row.ServerName = serverName.String

		rec, err := row.ToRecord()
		if err != nil {
			return nil, errors.NewAppError(errors.ErrorTypeCatalog, "malformed backup history", err).
				WithContext("replica", s.name).
				WithContext("database", database)
		}
		if rec.ServerName == "" {
			rec.ServerName = s.name
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err, "failed to read backup history", database)
	}
	return records, nil
}

func (s *SQLSource) wrap(err error, message, database string) error {
	return errors.WrapError(err, message).(*errors.AppError).
		WithContext("replica", s.name).
		WithContext("database", database)
}

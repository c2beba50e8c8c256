package catalog

import (
	"fmt"
	"strings"
	"time"

	"restore-chain/internal/chain"
)

// Row mirrors one row of the msdb backup history query. Exported catalog
// files use the same field names.
type Row struct {
	DatabaseName       string    `json:"database_name" yaml:"database_name"`
	PhysicalDeviceName string    `json:"physical_device_name" yaml:"physical_device_name"`
	BackupStartDate    time.Time `json:"backup_start_date" yaml:"backup_start_date"`
	FirstLSN           chain.LSN `json:"first_lsn" yaml:"first_lsn"`
	LastLSN            chain.LSN `json:"last_lsn" yaml:"last_lsn"`
	DatabaseBackupLSN  chain.LSN `json:"database_backup_lsn" yaml:"database_backup_lsn"`
	CheckpointLSN      chain.LSN `json:"checkpoint_lsn" yaml:"checkpoint_lsn"`
	BackupType         string    `json:"backup_type" yaml:"backup_type"`
	ServerName         string    `json:"server_name,omitempty" yaml:"server_name,omitempty"`
}

// ToRecord converts the row into a chain record. An unknown backup type is
// an error: it means the catalog is not what we think it is.
func (r Row) ToRecord() (chain.Record, error) {
	bt, err := chain.ParseBackupType(strings.TrimSpace(r.BackupType))
	if err != nil {
		return chain.Record{}, fmt.Errorf("backup of %s on %s: %w", r.DatabaseName, r.PhysicalDeviceName, err)
	}
	return chain.Record{
		DatabaseName:       r.DatabaseName,
		ServerName:         r.ServerName,
		Type:               bt,
		FirstLSN:           r.FirstLSN,
		LastLSN:            r.LastLSN,
		CheckpointLSN:      r.CheckpointLSN,
		DatabaseBackupLSN:  r.DatabaseBackupLSN,
		PhysicalDeviceName: r.PhysicalDeviceName,
		StartTime:          r.BackupStartDate,
	}, nil
}

// RowFromRecord converts a chain record back into its catalog row form
func RowFromRecord(rec chain.Record) Row {
	return Row{
		DatabaseName:       rec.DatabaseName,
		PhysicalDeviceName: rec.PhysicalDeviceName,
		BackupStartDate:    rec.StartTime,
		FirstLSN:           rec.FirstLSN,
		LastLSN:            rec.LastLSN,
		DatabaseBackupLSN:  rec.DatabaseBackupLSN,
		CheckpointLSN:      rec.CheckpointLSN,
		BackupType:         rec.Type.Abbrev(),
		ServerName:         rec.ServerName,
	}
}

// ToRecords converts rows, failing on the first malformed one
func ToRecords(rows []Row) ([]chain.Record, error) {
	records := make([]chain.Record, 0, len(rows))
	for i, row := range rows {
		rec, err := row.ToRecord()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

package display

import (
	"time"

	"restore-chain/internal/chain"
)

// ChainView is the rendered form of a resolved restore chain
type ChainView struct {
	Database   string           `json:"database" yaml:"database"`
	LastLSN    string           `json:"last_lsn" yaml:"last_lsn"`
	AppliedLSN string           `json:"applied_lsn,omitempty" yaml:"applied_lsn,omitempty"`
	ManifestID string           `json:"manifest_id,omitempty" yaml:"manifest_id,omitempty"`
	Location   string           `json:"manifest_location,omitempty" yaml:"manifest_location,omitempty"`
	Stats      chain.BuildStats `json:"stats" yaml:"stats"`
	Steps      []StepView       `json:"steps" yaml:"steps"`
}

// StepView is one striped backup set of a chain
type StepView struct {
	Position          int       `json:"position" yaml:"position"`
	Type              string    `json:"type" yaml:"type"`
	FirstLSN          string    `json:"first_lsn" yaml:"first_lsn"`
	LastLSN           string    `json:"last_lsn" yaml:"last_lsn"`
	CheckpointLSN     string    `json:"checkpoint_lsn" yaml:"checkpoint_lsn"`
	DatabaseBackupLSN string    `json:"database_backup_lsn" yaml:"database_backup_lsn"`
	StartTime         time.Time `json:"start_time" yaml:"start_time"`
	Devices           []string  `json:"devices" yaml:"devices"`
	Servers           []string  `json:"servers,omitempty" yaml:"servers,omitempty"`
}

// NewChainView converts a chain and the statistics of its build
func NewChainView(c chain.Chain, stats chain.BuildStats) ChainView {
	view := ChainView{
		Database: c.DatabaseName(),
		Stats:    stats,
		Steps:    make([]StepView, 0, c.Len()),
	}
	if !c.Empty() {
		view.LastLSN = c.LastLSN().String()
	}

	for i, set := range c.Sets() {
		view.Steps = append(view.Steps, StepView{
			Position:          i + 1,
			Type:              string(set.Type),
			FirstLSN:          set.FirstLSN.String(),
			LastLSN:           set.LastLSN.String(),
			CheckpointLSN:     set.CheckpointLSN.String(),
			DatabaseBackupLSN: set.DatabaseBackupLSN.String(),
			StartTime:         set.StartTime(),
			Devices:           set.DeviceNames(),
			Servers:           set.Servers(),
		})
	}
	return view
}

// RecordStatus annotates a raw catalog record
type RecordStatus string

const (
	RecordOK          RecordStatus = "ok"
	RecordInvalidPath RecordStatus = "invalid_path"
	RecordDuplicate   RecordStatus = "duplicate"
)

// RecordView is one raw catalog row with its filtering status
type RecordView struct {
	Server            string       `json:"server" yaml:"server"`
	Type              string       `json:"type" yaml:"type"`
	FirstLSN          string       `json:"first_lsn" yaml:"first_lsn"`
	LastLSN           string       `json:"last_lsn" yaml:"last_lsn"`
	CheckpointLSN     string       `json:"checkpoint_lsn" yaml:"checkpoint_lsn"`
	DatabaseBackupLSN string       `json:"database_backup_lsn" yaml:"database_backup_lsn"`
	Device            string       `json:"device" yaml:"device"`
	StartTime         time.Time    `json:"start_time" yaml:"start_time"`
	Status            RecordStatus `json:"status" yaml:"status"`
}

// CatalogView lists the merged catalog of a database
type CatalogView struct {
	Database string       `json:"database" yaml:"database"`
	Servers  []string     `json:"servers" yaml:"servers"`
	Stats    CatalogStats `json:"stats" yaml:"stats"`
	Records  []RecordView `json:"records" yaml:"records"`
}

// CatalogStats counts records by status
type CatalogStats struct {
	Total      int `json:"total" yaml:"total"`
	Invalid    int `json:"invalid" yaml:"invalid"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Sets       int `json:"sets" yaml:"sets"`
}

// NewCatalogView annotates records the same way the chain builder filters
// them: an invalid device path first, then repeats of an earlier record.
func NewCatalogView(database string, servers []string, records []chain.Record) CatalogView {
	view := CatalogView{
		Database: database,
		Servers:  servers,
		Records:  make([]RecordView, 0, len(records)),
	}

	seen := make(map[chain.FullIdentity]bool)
	var unique []chain.Record
	for _, r := range records {
		status := RecordOK
		switch {
		case !chain.IsValidDevicePath(r.PhysicalDeviceName):
			status = RecordInvalidPath
			view.Stats.Invalid++
		case seen[r.Identity()]:
			status = RecordDuplicate
			view.Stats.Duplicates++
		default:
			seen[r.Identity()] = true
			unique = append(unique, r)
		}

		view.Records = append(view.Records, RecordView{
			Server:            r.ServerName,
			Type:              string(r.Type),
			FirstLSN:          r.FirstLSN.String(),
			LastLSN:           r.LastLSN.String(),
			CheckpointLSN:     r.CheckpointLSN.String(),
			DatabaseBackupLSN: r.DatabaseBackupLSN.String(),
			Device:            r.PhysicalDeviceName,
			StartTime:         r.StartTime,
			Status:            status,
		})
	}

	view.Stats.Total = len(records)
	view.Stats.Sets = len(chain.GroupStripes(unique))
	return view
}

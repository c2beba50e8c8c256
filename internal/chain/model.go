package chain

import (
	"fmt"
	"sort"
	"time"
)

// BackupType represents the kind of backup a catalog row describes
type BackupType string

const (
	// BackupTypeFull is a complete database backup
	BackupTypeFull BackupType = "FULL"
	// BackupTypeDiff is a differential backup based on a full backup
	BackupTypeDiff BackupType = "DIFF"
	// BackupTypeLog is a transaction log backup
	BackupTypeLog BackupType = "LOG"
)

// ParseBackupType maps the msdb backupset.type abbreviation to a BackupType
func ParseBackupType(abbrev string) (BackupType, error) {
	switch abbrev {
	case "D":
		return BackupTypeFull, nil
	case "I":
		return BackupTypeDiff, nil
	case "L":
		return BackupTypeLog, nil
	default:
		return "", fmt.Errorf("invalid backup type abbreviation %q", abbrev)
	}
}

// Abbrev returns the msdb abbreviation for the type
func (t BackupType) Abbrev() string {
	switch t {
	case BackupTypeFull:
		return "D"
	case BackupTypeDiff:
		return "I"
	case BackupTypeLog:
		return "L"
	default:
		return ""
	}
}

// Extension returns the conventional file extension for the type
func (t BackupType) Extension() string {
	switch t {
	case BackupTypeFull:
		return "bak"
	case BackupTypeDiff:
		return "diff"
	case BackupTypeLog:
		return "trn"
	default:
		return ""
	}
}

// IsValid reports whether t is one of the known backup types
func (t BackupType) IsValid() bool {
	switch t {
	case BackupTypeFull, BackupTypeDiff, BackupTypeLog:
		return true
	default:
		return false
	}
}

func (t BackupType) rank() int {
	switch t {
	case BackupTypeFull:
		return 0
	case BackupTypeDiff:
		return 1
	case BackupTypeLog:
		return 2
	default:
		return 3
	}
}

// Record is one row of backup history: one physical device of one backup
type Record struct {
	DatabaseName       string     `json:"database_name" yaml:"database_name"`
	ServerName         string     `json:"server_name,omitempty" yaml:"server_name,omitempty"`
	Type               BackupType `json:"backup_type" yaml:"backup_type"`
	FirstLSN           LSN        `json:"first_lsn" yaml:"first_lsn"`
	LastLSN            LSN        `json:"last_lsn" yaml:"last_lsn"`
	CheckpointLSN      LSN        `json:"checkpoint_lsn" yaml:"checkpoint_lsn"`
	DatabaseBackupLSN  LSN        `json:"database_backup_lsn" yaml:"database_backup_lsn"`
	PhysicalDeviceName string     `json:"physical_device_name" yaml:"physical_device_name"`
	StartTime          time.Time  `json:"backup_start_date,omitempty" yaml:"backup_start_date,omitempty"`
}

// IdentityKey identifies a logical backup. Records sharing it are stripes of
// the same backup.
type IdentityKey struct {
	DatabaseName      string
	Type              BackupType
	FirstLSN          string
	LastLSN           string
	CheckpointLSN     string
	DatabaseBackupLSN string
}

// FullIdentity identifies a single record; equal records are duplicates.
type FullIdentity struct {
	IdentityKey
	PhysicalDeviceName string
}

// Key returns the identity key of the logical backup the record belongs to
func (r Record) Key() IdentityKey {
	return IdentityKey{
		DatabaseName:      r.DatabaseName,
		Type:              r.Type,
		FirstLSN:          r.FirstLSN.String(),
		LastLSN:           r.LastLSN.String(),
		CheckpointLSN:     r.CheckpointLSN.String(),
		DatabaseBackupLSN: r.DatabaseBackupLSN.String(),
	}
}

// Identity returns the full identity used for de-duplication
func (r Record) Identity() FullIdentity {
	return FullIdentity{IdentityKey: r.Key(), PhysicalDeviceName: r.PhysicalDeviceName}
}

// String returns a compact description of the record
func (r Record) String() string {
	return fmt.Sprintf("%s %s [%s, %s] %s", r.DatabaseName, r.Type, r.FirstLSN, r.LastLSN, r.PhysicalDeviceName)
}

// StripedSet is a logical backup: the identity fields shared by its stripes
// plus every stripe member.
type StripedSet struct {
	DatabaseName      string
	Type              BackupType
	FirstLSN          LSN
	LastLSN           LSN
	CheckpointLSN     LSN
	DatabaseBackupLSN LSN

	members []Record
}

// NewStripedSet builds a set from its stripe members. All members must share
// the same identity key.
func NewStripedSet(members []Record) (StripedSet, error) {
	if len(members) == 0 {
		return StripedSet{}, fmt.Errorf("striped set requires at least one member")
	}
	key := members[0].Key()
	for _, m := range members[1:] {
		if m.Key() != key {
			return StripedSet{}, fmt.Errorf("record %s does not belong to striped set of %s", m, members[0])
		}
	}
	return newStripedSet(members), nil
}

func newStripedSet(members []Record) StripedSet {
	sorted := make([]Record, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PhysicalDeviceName != sorted[j].PhysicalDeviceName {
			return sorted[i].PhysicalDeviceName < sorted[j].PhysicalDeviceName
		}
		return sorted[i].ServerName < sorted[j].ServerName
	})

	head := sorted[0]
	return StripedSet{
		DatabaseName:      head.DatabaseName,
		Type:              head.Type,
		FirstLSN:          head.FirstLSN,
		LastLSN:           head.LastLSN,
		CheckpointLSN:     head.CheckpointLSN,
		DatabaseBackupLSN: head.DatabaseBackupLSN,
		members:           sorted,
	}
}

// Key returns the identity key shared by all members
func (s StripedSet) Key() IdentityKey {
	return s.members[0].Key()
}

// Members returns a copy of the stripe members, ordered by device name
func (s StripedSet) Members() []Record {
	out := make([]Record, len(s.members))
	copy(out, s.members)
	return out
}

// StripeCount returns the number of members
func (s StripedSet) StripeCount() int {
	return len(s.members)
}

// DeviceNames returns the physical device names of all members
func (s StripedSet) DeviceNames() []string {
	names := make([]string, 0, len(s.members))
	for _, m := range s.members {
		names = append(names, m.PhysicalDeviceName)
	}
	return names
}

// Servers returns the distinct server names that reported the set
func (s StripedSet) Servers() []string {
	seen := make(map[string]bool)
	var servers []string
	for _, m := range s.members {
		if m.ServerName == "" || seen[m.ServerName] {
			continue
		}
		seen[m.ServerName] = true
		servers = append(servers, m.ServerName)
	}
	sort.Strings(servers)
	return servers
}

// StartTime returns the earliest start time among the members
func (s StripedSet) StartTime() time.Time {
	var earliest time.Time
	for _, m := range s.members {
		if m.StartTime.IsZero() {
			continue
		}
		if earliest.IsZero() || m.StartTime.Before(earliest) {
			earliest = m.StartTime
		}
	}
	return earliest
}

// String returns a compact description of the set
func (s StripedSet) String() string {
	return fmt.Sprintf("%s %s [%s, %s] stripes=%d", s.DatabaseName, s.Type, s.FirstLSN, s.LastLSN, len(s.members))
}

// Chain is an ordered restore sequence: one full backup, at most one
// differential, then contiguous log backups.
type Chain struct {
	sets []StripedSet
}

// Sets returns a copy of the ordered sets
func (c Chain) Sets() []StripedSet {
	out := make([]StripedSet, len(c.sets))
	copy(out, c.sets)
	return out
}

// Len returns the number of sets in the chain
func (c Chain) Len() int {
	return len(c.sets)
}

// Empty reports whether the chain has no sets
func (c Chain) Empty() bool {
	return len(c.sets) == 0
}

// Full returns the full backup anchoring the chain, if the chain still has one
func (c Chain) Full() (StripedSet, bool) {
	if len(c.sets) > 0 && c.sets[0].Type == BackupTypeFull {
		return c.sets[0], true
	}
	return StripedSet{}, false
}

// Diff returns the differential backup, if any
func (c Chain) Diff() (StripedSet, bool) {
	for _, s := range c.sets {
		if s.Type == BackupTypeDiff {
			return s, true
		}
	}
	return StripedSet{}, false
}

// Logs returns the log backups in restore order
func (c Chain) Logs() []StripedSet {
	var logs []StripedSet
	for _, s := range c.sets {
		if s.Type == BackupTypeLog {
			logs = append(logs, s)
		}
	}
	return logs
}

// LastLSN returns the last LSN covered by the chain
func (c Chain) LastLSN() LSN {
	if len(c.sets) == 0 {
		return ZeroLSN
	}
	return c.sets[len(c.sets)-1].LastLSN
}

// DatabaseName returns the database the chain restores
func (c Chain) DatabaseName() string {
	if len(c.sets) == 0 {
		return ""
	}
	return c.sets[0].DatabaseName
}

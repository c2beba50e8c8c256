// Package manifest turns a resolved restore chain into a document an external
// restore executor can consume, and persists it to local disk or object
// storage.
package manifest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"restore-chain/internal/chain"
	"restore-chain/internal/errors"
)

// Device is one stripe file of a backup set
type Device struct {
	Path   string           `json:"path" yaml:"path"`
	Kind   chain.DeviceKind `json:"kind" yaml:"kind"`
	Server string           `json:"server,omitempty" yaml:"server,omitempty"`
}

// Step is one RESTORE statement of the plan
type Step struct {
	Position          int              `json:"position" yaml:"position"`
	Type              chain.BackupType `json:"type" yaml:"type"`
	Extension         string           `json:"extension" yaml:"extension"`
	FirstLSN          chain.LSN        `json:"first_lsn" yaml:"first_lsn"`
	LastLSN           chain.LSN        `json:"last_lsn" yaml:"last_lsn"`
	CheckpointLSN     chain.LSN        `json:"checkpoint_lsn" yaml:"checkpoint_lsn"`
	DatabaseBackupLSN chain.LSN        `json:"database_backup_lsn" yaml:"database_backup_lsn"`
	StartTime         time.Time        `json:"start_time" yaml:"start_time"`
	Devices           []Device         `json:"devices" yaml:"devices"`
}

// Manifest is an ordered restore plan for one database
type Manifest struct {
	ID         string     `json:"id" yaml:"id"`
	Database   string     `json:"database" yaml:"database"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	CreatedBy  string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	AppliedLSN *chain.LSN `json:"applied_lsn,omitempty" yaml:"applied_lsn,omitempty"`
	LastLSN    chain.LSN  `json:"last_lsn" yaml:"last_lsn"`
	Steps      []Step     `json:"steps" yaml:"steps"`
}

// Summary describes a stored manifest without its steps
type Summary struct {
	ID        string    `json:"id" yaml:"id"`
	Database  string    `json:"database" yaml:"database"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Steps     int       `json:"steps" yaml:"steps"`
	LastLSN   chain.LSN `json:"last_lsn" yaml:"last_lsn"`
	Location  string    `json:"location,omitempty" yaml:"location,omitempty"`
	Size      int64     `json:"size,omitempty" yaml:"size,omitempty"`
	// Checksum covers the stored envelope bytes
	Checksum  string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`
}

// Option customizes FromChain
type Option func(*Manifest)

// WithID overrides the generated manifest ID
func WithID(id string) Option {
	return func(m *Manifest) {
		m.ID = id
	}
}

// WithAppliedLSN records the LSN the target database was already restored to
func WithAppliedLSN(lsn chain.LSN) Option {
	return func(m *Manifest) {
		m.AppliedLSN = &lsn
	}
}

// WithCreatedBy records who produced the manifest
func WithCreatedBy(user string) Option {
	return func(m *Manifest) {
		m.CreatedBy = user
	}
}

// WithCreatedAt overrides the creation time
func WithCreatedAt(t time.Time) Option {
	return func(m *Manifest) {
		m.CreatedAt = t
	}
}

// FromChain builds a manifest listing every set of c in restore order
func FromChain(c chain.Chain, opts ...Option) (*Manifest, error) {
	if c.Empty() {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "cannot build a manifest from an empty chain", nil)
	}

	m := &Manifest{
		ID:        uuid.New().String(),
		Database:  c.DatabaseName(),
		CreatedAt: time.Now().UTC(),
		LastLSN:   c.LastLSN(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for i, set := range c.Sets() {
		step := Step{
			Position:          i + 1,
			Type:              set.Type,
			Extension:         set.Type.Extension(),
			FirstLSN:          set.FirstLSN,
			LastLSN:           set.LastLSN,
			CheckpointLSN:     set.CheckpointLSN,
			DatabaseBackupLSN: set.DatabaseBackupLSN,
			StartTime:         set.StartTime(),
		}
		for _, member := range set.Members() {
			step.Devices = append(step.Devices, Device{
				Path:   member.PhysicalDeviceName,
				Kind:   chain.KindOf(member.PhysicalDeviceName),
				Server: member.ServerName,
			})
		}
		m.Steps = append(m.Steps, step)
	}

	return m, nil
}

// Validate checks the manifest describes a well-formed plan
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest ID is required")
	}
	if m.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if len(m.Steps) == 0 {
		return fmt.Errorf("manifest %s has no steps", m.ID)
	}
	if m.Steps[0].Type != chain.BackupTypeFull && m.AppliedLSN == nil {
		return fmt.Errorf("manifest %s does not start with a full backup", m.ID)
	}
	for i, step := range m.Steps {
		if step.Position != i+1 {
			return fmt.Errorf("step %d has position %d", i+1, step.Position)
		}
		if len(step.Devices) == 0 {
			return fmt.Errorf("step %d has no devices", step.Position)
		}
	}
	return nil
}

// Summary returns the listing entry for m
func (m *Manifest) Summary() Summary {
	return Summary{
		ID:        m.ID,
		Database:  m.Database,
		CreatedAt: m.CreatedAt,
		Steps:     len(m.Steps),
		LastLSN:   m.LastLSN,
	}
}

// Paths returns every device path of the plan in restore order
func (m *Manifest) Paths() []string {
	var paths []string
	for _, step := range m.Steps {
		for _, d := range step.Devices {
			paths = append(paths, d.Path)
		}
	}
	return paths
}

package chain

import (
	"errors"
	"fmt"
)

// ChainErrorKind represents the reasons a restore chain cannot be produced
type ChainErrorKind string

const (
	ChainErrorNoFullBackupFound   ChainErrorKind = "NO_FULL_BACKUP_FOUND"
	ChainErrorAmbiguousChainMatch ChainErrorKind = "AMBIGUOUS_CHAIN_MATCH"
	ChainErrorNoBackupsToRestore  ChainErrorKind = "NO_BACKUPS_TO_RESTORE"
)

// Sentinels for errors.Is comparisons
var (
	ErrNoFullBackupFound   = &ChainError{Kind: ChainErrorNoFullBackupFound, Message: "could not find any full backups"}
	ErrAmbiguousChainMatch = &ChainError{Kind: ChainErrorAmbiguousChainMatch, Message: "more than one backup continues the chain"}
	ErrNoBackupsToRestore  = &ChainError{Kind: ChainErrorNoBackupsToRestore, Message: "no backups found to restore"}
)

// ChainError is returned when the catalog cannot be resolved into a chain
type ChainError struct {
	Kind    ChainErrorKind         `json:"kind"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *ChainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any ChainError of the same kind
func (e *ChainError) Is(target error) bool {
	var other *ChainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// WithContext adds context information to the error
func (e *ChainError) WithContext(key string, value interface{}) *ChainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func newChainError(kind ChainErrorKind, message string) *ChainError {
	return &ChainError{
		Kind:    kind,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

func newNoFullBackupError(database string) *ChainError {
	msg := "could not find any full backups"
	if database != "" {
		msg = fmt.Sprintf("could not find any full backups for database %s", database)
	}
	return newChainError(ChainErrorNoFullBackupFound, msg).WithContext("database", database)
}

func newAmbiguousError(step string, tail LSN, candidates []StripedSet) *ChainError {
	err := newChainError(ChainErrorAmbiguousChainMatch,
		fmt.Sprintf("%d %s candidates tie after %s", len(candidates), step, tail))
	devices := make([]string, 0, len(candidates))
	for _, c := range candidates {
		devices = append(devices, c.DeviceNames()...)
	}
	return err.WithContext("step", step).
		WithContext("lsn", tail.String()).
		WithContext("candidates", len(candidates)).
		WithContext("devices", devices)
}

// IsNoFullBackupFound reports whether err is a NoFullBackupFound chain error
func IsNoFullBackupFound(err error) bool {
	return errors.Is(err, ErrNoFullBackupFound)
}

// IsAmbiguousChainMatch reports whether err is an AmbiguousChainMatch chain error
func IsAmbiguousChainMatch(err error) bool {
	return errors.Is(err, ErrAmbiguousChainMatch)
}

// IsNoBackupsToRestore reports whether err is a NoBackupsToRestore chain error
func IsNoBackupsToRestore(err error) bool {
	return errors.Is(err, ErrNoBackupsToRestore)
}

// KindOfError returns the chain error kind of err, or "" if err is not a chain error
func KindOfError(err error) ChainErrorKind {
	var chainErr *ChainError
	if errors.As(err, &chainErr) {
		return chainErr.Kind
	}
	return ""
}

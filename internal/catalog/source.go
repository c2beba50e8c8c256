// Package catalog reads SQL Server backup history from msdb on one or more
// replicas, or from an exported catalog file.
package catalog

import (
	"context"

	"restore-chain/internal/chain"
)

// Source provides the recent backup history of a database
type Source interface {
	// Name identifies the source in logs and errors
	Name() string
	// RecentBackups returns every backup row of database starting with its
	// most recent full backup
	RecentBackups(ctx context.Context, database string) ([]chain.Record, error)
}

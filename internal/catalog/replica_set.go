package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"restore-chain/internal/chain"
	"restore-chain/internal/errors"
	"restore-chain/internal/logging"
)

// ReplicaSet merges the backup history of every replica of an availability
// group. Backups may be taken on any replica, so no single msdb knows the
// whole chain. Rows reported by several replicas are left for the chain
// deduplicator.
type ReplicaSet struct {
	sources        []Source
	retry          errors.RetryConfig
	logger         *logging.Logger
	maxConcurrency int
	allowPartial   bool
}

// ReplicaSetOption configures a ReplicaSet
type ReplicaSetOption func(*ReplicaSet)

// WithRetryConfig sets the retry policy applied to each replica query
func WithRetryConfig(config errors.RetryConfig) ReplicaSetOption {
	return func(rs *ReplicaSet) {
		rs.retry = config
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) ReplicaSetOption {
	return func(rs *ReplicaSet) {
		rs.logger = logger
	}
}

// WithMaxConcurrency bounds the number of replicas queried at once; 0 means no limit
func WithMaxConcurrency(n int) ReplicaSetOption {
	return func(rs *ReplicaSet) {
		rs.maxConcurrency = n
	}
}

// WithAllowPartial tolerates failing replicas as long as one answers
func WithAllowPartial(allow bool) ReplicaSetOption {
	return func(rs *ReplicaSet) {
		rs.allowPartial = allow
	}
}

// NewReplicaSet creates a replica set over sources
func NewReplicaSet(sources []Source, opts ...ReplicaSetOption) *ReplicaSet {
	rs := &ReplicaSet{
		sources: sources,
		retry:   errors.DefaultRetryConfig(),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs
}

// Name lists the member sources
func (rs *ReplicaSet) Name() string {
	names := make([]string, 0, len(rs.sources))
	for _, s := range rs.sources {
		names = append(names, s.Name())
	}
	return fmt.Sprintf("replicas%v", names)
}

// RecentBackups queries every replica concurrently and returns the
// concatenation of their rows, ordered by source then by original order.
func (rs *ReplicaSet) RecentBackups(ctx context.Context, database string) ([]chain.Record, error) {
	if len(rs.sources) == 0 {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, "no catalog sources configured", nil)
	}

	results := make([][]chain.Record, len(rs.sources))
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	if rs.maxConcurrency > 0 {
		g.SetLimit(rs.maxConcurrency)
	}

	for i, source := range rs.sources {
		i, source := i, source
		g.Go(func() error {
			handler := errors.NewRetryHandler(rs.retry).
				OnRetry(func(attempt int, delay time.Duration, err *errors.AppError) {
					rs.logger.LogRetry("catalog_fetch:"+source.Name(), attempt, delay, err)
				})

			var records []chain.Record
			err := handler.Retry(gctx, func() error {
				var fetchErr error
				records, fetchErr = source.RecentBackups(gctx, database)
				return fetchErr
			})
			if err != nil {
				if rs.allowPartial {
					rs.logger.WithFields(map[string]interface{}{
						"replica": source.Name(),
						"error":   err.Error(),
					}).Warn("Skipping replica whose backup history could not be read")
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
					return nil
				}
				return fmt.Errorf("replica %s: %w", source.Name(), err)
			}

			results[i] = records
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(failures) == len(rs.sources) {
		return nil, errors.NewAppError(errors.ErrorTypeConnection, "no replica returned backup history", failures[0]).
			WithContext("failures", len(failures))
	}

	var merged []chain.Record
	for _, records := range results {
		merged = append(merged, records...)
	}
	return merged, nil
}

// Servers returns the distinct server names present in records
func Servers(records []chain.Record) []string {
	seen := make(map[string]bool)
	var servers []string
	for _, r := range records {
		if r.ServerName != "" && !seen[r.ServerName] {
			seen[r.ServerName] = true
			servers = append(servers, r.ServerName)
		}
	}
	sort.Strings(servers)
	return servers
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Replica is an open connection to one replica
type Replica struct {
	Name string
	DB   *sql.DB
}

// ConnectionManager owns the connections to every configured replica
type ConnectionManager struct {
	service  DatabaseService
	mu       sync.Mutex
	replicas []Replica
}

// NewConnectionManager creates a connection manager backed by service
func NewConnectionManager(service DatabaseService) *ConnectionManager {
	return &ConnectionManager{service: service}
}

// ConnectAll connects to every replica in order. With allowPartial set,
// unreachable replicas are skipped as long as one connection succeeds;
// otherwise the first failure closes everything opened so far.
func (cm *ConnectionManager) ConnectAll(ctx context.Context, configs []ReplicaConfig, allowPartial bool) error {
	if len(configs) == 0 {
		return fmt.Errorf("no replicas configured")
	}

	var failures []error
	for _, cfg := range configs {
		cfg.SetDefaults()
		db, err := cm.service.Connect(ctx, cfg)
		if err != nil {
			if !allowPartial {
				cm.Close()
				return fmt.Errorf("failed to connect to replica %s: %w", cfg.Name, err)
			}
			failures = append(failures, fmt.Errorf("replica %s: %w", cfg.Name, err))
			continue
		}

		cm.mu.Lock()
		cm.replicas = append(cm.replicas, Replica{Name: cfg.Name, DB: db})
		cm.mu.Unlock()
	}

	if len(cm.Replicas()) == 0 {
		return fmt.Errorf("could not connect to any replica: %w", errors.Join(failures...))
	}
	return nil
}

// Replicas returns the open replica connections
func (cm *ConnectionManager) Replicas() []Replica {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	out := make([]Replica, len(cm.replicas))
	copy(out, cm.replicas)
	return out
}

// TestConnections pings every open replica
func (cm *ConnectionManager) TestConnections(ctx context.Context) error {
	for _, r := range cm.Replicas() {
		if err := cm.service.TestConnection(ctx, r.DB); err != nil {
			return fmt.Errorf("replica %s connection test failed: %w", r.Name, err)
		}
	}
	return nil
}

// Close closes all replica connections
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.mu.Unlock()

	var errs []error
	for _, r := range replicas {
		if err := cm.service.Close(r.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close replica %s: %w", r.Name, err))
		}
	}
	return errors.Join(errs...)
}

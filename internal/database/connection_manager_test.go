package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	dbs     map[string]*sql.DB
	fail    map[string]bool
	closed  []*sql.DB
	pingErr error
}

func (f *fakeService) Connect(ctx context.Context, config ReplicaConfig) (*sql.DB, error) {
	if f.fail[config.Name] {
		return nil, errors.New("connection refused")
	}
	return f.dbs[config.Name], nil
}

func (f *fakeService) TestConnection(ctx context.Context, db *sql.DB) error {
	return f.pingErr
}

func (f *fakeService) ServerName(ctx context.Context, db *sql.DB) (string, error) {
	return "", nil
}

func (f *fakeService) Close(db *sql.DB) error {
	f.closed = append(f.closed, db)
	return nil
}

func newFakeService(t *testing.T, names ...string) *fakeService {
	t.Helper()
	f := &fakeService{dbs: make(map[string]*sql.DB), fail: make(map[string]bool)}
	for _, name := range names {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		f.dbs[name] = db
	}
	return f
}

func replicaConfigs(names ...string) []ReplicaConfig {
	var configs []ReplicaConfig
	for _, name := range names {
		configs = append(configs, ReplicaConfig{Name: name, Host: name + ".corp"})
	}
	return configs
}

func TestConnectionManager_ConnectAll(t *testing.T) {
	service := newFakeService(t, "node1", "node2")
	cm := NewConnectionManager(service)

	require.NoError(t, cm.ConnectAll(context.Background(), replicaConfigs("node1", "node2"), false))

	replicas := cm.Replicas()
	require.Len(t, replicas, 2)
	assert.Equal(t, "node1", replicas[0].Name)
	assert.Equal(t, "node2", replicas[1].Name)
	assert.NoError(t, cm.TestConnections(context.Background()))

	require.NoError(t, cm.Close())
	assert.Len(t, service.closed, 2)
	assert.Empty(t, cm.Replicas())
}

func TestConnectionManager_StrictFailureClosesOpened(t *testing.T) {
	service := newFakeService(t, "node1", "node2")
	service.fail["node2"] = true
	cm := NewConnectionManager(service)

	err := cm.ConnectAll(context.Background(), replicaConfigs("node1", "node2"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node2")
	assert.Len(t, service.closed, 1)
	assert.Empty(t, cm.Replicas())
}

func TestConnectionManager_PartialFailure(t *testing.T) {
	service := newFakeService(t, "node1", "node2")
	service.fail["node1"] = true
	cm := NewConnectionManager(service)

	require.NoError(t, cm.ConnectAll(context.Background(), replicaConfigs("node1", "node2"), true))
	require.Len(t, cm.Replicas(), 1)
	assert.Equal(t, "node2", cm.Replicas()[0].Name)
}

func TestConnectionManager_AllFail(t *testing.T) {
	service := newFakeService(t)
	service.fail["node1"] = true
	cm := NewConnectionManager(service)

	err := cm.ConnectAll(context.Background(), replicaConfigs("node1"), true)
	assert.Error(t, err)

	assert.Error(t, cm.ConnectAll(context.Background(), nil, true))
}

func TestConnectionManager_PingFailure(t *testing.T) {
	service := newFakeService(t, "node1")
	service.pingErr = errors.New("gone")
	cm := NewConnectionManager(service)

	require.NoError(t, cm.ConnectAll(context.Background(), replicaConfigs("node1"), false))
	assert.Error(t, cm.TestConnections(context.Background()))
}

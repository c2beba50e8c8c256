package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restore-chain/internal/config"
	"restore-chain/internal/display"
	"restore-chain/internal/manifest"
)

// A striped full backup seen on two replicas, a differential, two logs and
// a log written to a virtual device.
const salesCatalog = `backups:
  - {database_name: Sales, server_name: node1, backup_type: D, first_lsn: "90", last_lsn: "110", checkpoint_lsn: "100", database_backup_lsn: "0", backup_start_date: 2024-05-01T02:00:00Z, physical_device_name: '\\nas\sql\Sales\full_1.bak'}
  - {database_name: Sales, server_name: node1, backup_type: D, first_lsn: "90", last_lsn: "110", checkpoint_lsn: "100", database_backup_lsn: "0", backup_start_date: 2024-05-01T02:00:00Z, physical_device_name: '\\nas\sql\Sales\full_2.bak'}
  - {database_name: Sales, server_name: node2, backup_type: D, first_lsn: "90", last_lsn: "110", checkpoint_lsn: "100", database_backup_lsn: "0", backup_start_date: 2024-05-01T02:00:00Z, physical_device_name: '\\nas\sql\Sales\full_1.bak'}
  - {database_name: Sales, server_name: node1, backup_type: I, first_lsn: "120", last_lsn: "140", checkpoint_lsn: "130", database_backup_lsn: "100", backup_start_date: 2024-05-02T02:00:00Z, physical_device_name: '\\nas\sql\Sales\diff.bak'}
  - {database_name: Sales, server_name: node1, backup_type: L, first_lsn: "140", last_lsn: "160", checkpoint_lsn: "130", database_backup_lsn: "100", backup_start_date: 2024-05-02T03:00:00Z, physical_device_name: 'D:\logs\sales_1.trn'}
  - {database_name: Sales, server_name: node2, backup_type: L, first_lsn: "160", last_lsn: "180", checkpoint_lsn: "130", database_backup_lsn: "100", backup_start_date: 2024-05-02T04:00:00Z, physical_device_name: 'https://acct.blob.core.windows.net/backups/sales_2.trn'}
  - {database_name: Sales, server_name: node2, backup_type: L, first_lsn: "180", last_lsn: "200", checkpoint_lsn: "130", database_backup_lsn: "100", backup_start_date: 2024-05-02T05:00:00Z, physical_device_name: '{A4B1-7F}'}
`

type fixture struct {
	dir         string
	configFile  string
	catalogFile string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	catalogFile := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogFile, []byte(salesCatalog), 0600))

	configFile := filepath.Join(dir, "restore-chain.yaml")
	content := fmt.Sprintf(`logging:
  level: quiet
manifest:
  storage:
    provider: local
    local:
      base_path: %q
`, filepath.Join(dir, "store"))
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))

	return fixture{dir: dir, configFile: configFile, catalogFile: catalogFile}
}

// run executes the command line with the fixture's config and catalog file
func (f fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return execute(t, append([]string{"--config", f.configFile}, args...)...)
}

func (f fixture) resolve(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return f.run(t, append([]string{"resolve", "-d", "Sales", "--catalog-file", f.catalogFile}, args...)...)
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestResolve_Table(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.resolve(t)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Restore chain for Sales")
	assert.Contains(t, stdout, "Last LSN: 180")
	assert.Contains(t, stdout, `\\nas\sql\Sales\diff.bak`)
	assert.NotContains(t, stdout, "{A4B1-7F}")
	assert.Contains(t, stdout, "7 records read, 1 invalid paths dropped, 1 duplicates dropped, 4 backup sets")
}

func TestResolve_JSON(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.resolve(t, "-o", "json")
	require.NoError(t, err)

	var view display.ChainView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, "180", view.LastLSN)

	var types []string
	for _, step := range view.Steps {
		types = append(types, step.Type)
	}
	assert.Equal(t, []string{"FULL", "DIFF", "LOG", "LOG"}, types)
	assert.Equal(t, []string{`\\nas\sql\Sales\full_1.bak`, `\\nas\sql\Sales\full_2.bak`}, view.Steps[0].Devices)
	assert.Equal(t, 4, view.Stats.ChainSize)
}

func TestResolve_AppliedLSN(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.resolve(t, "--applied-lsn", "150", "-o", "compact")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1\tLOG\t140\t160\t"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "2\tLOG\t160\t180\t"), lines[2])
}

func TestResolve_LowerBound(t *testing.T) {
	f := newFixture(t)

	// every full backup ends at or below the bound
	stdout, _, err := f.resolve(t, "--lower-bound-lsn", "110", "-o", "json")
	assert.ErrorIs(t, err, errReported)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &payload))
	assert.Equal(t, "NO_FULL_BACKUP_FOUND", payload["kind"])
}

func TestResolve_ChainErrors(t *testing.T) {
	f := newFixture(t)

	t.Run("nothing left to restore", func(t *testing.T) {
		stdout, _, err := f.resolve(t, "--applied-lsn", "180", "-o", "compact")
		assert.ErrorIs(t, err, errReported)
		assert.True(t, strings.HasPrefix(stdout, "ERROR:NO_BACKUPS_TO_RESTORE:"), stdout)
	})

	t.Run("no full backup", func(t *testing.T) {
		_, stderr, err := f.run(t, "resolve", "-d", "Billing", "--catalog-file", f.catalogFile)
		assert.ErrorIs(t, err, errReported)
		assert.Contains(t, stderr, "[NO_FULL_BACKUP_FOUND]")
	})

	t.Run("invalid applied lsn", func(t *testing.T) {
		_, _, err := f.resolve(t, "--applied-lsn", "latest")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "applied_lsn")
	})
}

func TestResolve_SourceErrors(t *testing.T) {
	f := newFixture(t)

	_, stderr, err := f.run(t, "resolve", "--catalog-file", f.catalogFile)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "database is required")

	_, stderr, err = f.run(t, "resolve", "-d", "Sales", "--catalog-file", filepath.Join(f.dir, "missing.yaml"))
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "missing.yaml")

	_, _, err = f.resolve(t, "-v", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestResolve_DeviceRoot(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.resolve(t, "--device-root", `\\dr-nas\restore`, "-o", "json")
	require.NoError(t, err)

	var view display.ChainView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.Len(t, view.Steps, 4)
	assert.Equal(t, []string{`\\dr-nas\restore\full_1.bak`, `\\dr-nas\restore\full_2.bak`}, view.Steps[0].Devices)
	assert.Equal(t, []string{`\\dr-nas\restore\sales_2.trn`}, view.Steps[3].Devices)

	_, _, err = f.resolve(t, "--device-root", "restore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device_root")
}

func TestResolve_EnvironmentDatabase(t *testing.T) {
	f := newFixture(t)
	t.Setenv("RESTORE_CHAIN_DATABASE", "Sales")
	t.Setenv("RESTORE_CHAIN_CATALOG_FILE", f.catalogFile)

	stdout, _, err := f.run(t, "resolve", "-o", "compact")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(stdout), "\n"), 6)
}

func TestManifestLifecycle(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.resolve(t, "--save-manifest", "--applied-lsn", "150", "-o", "json")
	require.NoError(t, err)

	var view display.ChainView
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	require.NotEmpty(t, view.ManifestID)
	assert.DirExists(t, view.Location)

	stdout, _, err = f.run(t, "manifest", "show", view.ManifestID, "-o", "json")
	require.NoError(t, err)
	var m manifest.Manifest
	require.NoError(t, json.Unmarshal([]byte(stdout), &m))
	assert.Equal(t, "Sales", m.Database)
	require.NotNil(t, m.AppliedLSN)
	assert.Equal(t, "150", m.AppliedLSN.String())
	assert.Equal(t, []string{`D:\logs\sales_1.trn`, "https://acct.blob.core.windows.net/backups/sales_2.trn"}, m.Paths())

	stdout, _, err = f.run(t, "manifest", "list", "-d", "sales", "-o", "compact")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], view.ManifestID+"\tSales\t"), lines[1])

	stdout, _, err = f.run(t, "manifest", "list", "-d", "Billing", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)

	stdout, _, err = f.run(t, "manifest", "delete", view.ManifestID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Manifest "+view.ManifestID+" deleted")

	_, _, err = f.run(t, "manifest", "show", view.ManifestID)
	assert.ErrorIs(t, err, errReported)

	_, _, err = f.run(t, "manifest", "show")
	assert.Error(t, err)
}

func TestCatalog(t *testing.T) {
	f := newFixture(t)

	stdout, _, err := f.run(t, "catalog", "-d", "Sales", "--catalog-file", f.catalogFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backup history of Sales (node1, node2)")
	assert.Contains(t, stdout, "invalid_path")
	assert.Contains(t, stdout, "duplicate")
	assert.Contains(t, stdout, "7 records, 1 with invalid paths, 1 duplicates, 4 backup sets")
}

func TestCatalog_ExportRoundTrip(t *testing.T) {
	f := newFixture(t)
	exported := filepath.Join(f.dir, "exported.json")

	stdout, _, err := f.run(t, "catalog", "-d", "Sales", "--catalog-file", f.catalogFile, "--export", exported)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Exported 7 rows to "+exported)
	require.FileExists(t, exported)

	want, _, err := f.resolve(t, "-o", "compact")
	require.NoError(t, err)
	got, _, err := f.run(t, "resolve", "-d", "Sales", "--catalog-file", exported, "-o", "compact")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "2024-05-01", "abc123", "go1.25")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown", "unknown") })

	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "restore-chain version 1.2.3\nBuilt: 2024-05-01\nCommit: abc123\nGo version: go1.25\n", stdout)
}

func TestConfigCommand(t *testing.T) {
	stdout, _, err := execute(t, "config")
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig, stdout)
}

package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restore-chain/internal/chain"
	apperrors "restore-chain/internal/errors"
)

const yamlCatalog = `backups:
  - database_name: TestDb
    physical_device_name: '\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_28_000227_200.full'
    backup_start_date: 2018-10-28T00:02:28Z
    first_lsn: 126000000936100001
    last_lsn: 126000000945500001
    database_backup_lsn: 126000000882000037
    checkpoint_lsn: 126000000943800037
    backup_type: D
    server_name: ServerA
  - database_name: TestDb
    physical_device_name: '\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_000339_780.diff'
    backup_start_date: 2018-10-29T00:03:39Z
    first_lsn: "126000000945600000"
    last_lsn: "126000000955200001"
    database_backup_lsn: "126000000943800037"
    checkpoint_lsn: "126000000953600034"
    backup_type: I
    server_name: ServerA
  - database_name: OtherDb
    physical_device_name: 'C:\backup\other.bak'
    backup_start_date: 2018-10-29T00:03:39Z
    first_lsn: 1
    last_lsn: 2
    database_backup_lsn: 0
    checkpoint_lsn: 1
    backup_type: D
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileSource_YAML(t *testing.T) {
	source := NewFileSource(writeFile(t, "catalog.yaml", yamlCatalog))

	records, err := source.RecentBackups(context.Background(), "testdb")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, chain.BackupTypeFull, records[0].Type)
	assert.Equal(t, "126000000943800037", records[0].CheckpointLSN.String())
	assert.Equal(t, time.Date(2018, 10, 28, 0, 2, 28, 0, time.UTC), records[0].StartTime)
	assert.Equal(t, chain.BackupTypeDiff, records[1].Type)

	c, _, err := chain.Build(records)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestFileSource_JSONList(t *testing.T) {
	content := `[
  {"database_name": "Sales", "physical_device_name": "C:\\b\\full.bak", "backup_start_date": "2024-01-01T00:00:00Z",
   "first_lsn": 90, "last_lsn": "110", "database_backup_lsn": 0, "checkpoint_lsn": 100, "backup_type": "D"}
]`
	records, err := NewFileSource(writeFile(t, "catalog.json", content)).RecentBackups(context.Background(), "Sales")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "110", records[0].LastLSN.String())
}

func TestFileSource_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileSource(filepath.Join(t.TempDir(), "none.yaml")).RecentBackups(context.Background(), "Sales")
		assert.Error(t, err)
	})

	t.Run("bad backup type", func(t *testing.T) {
		content := "- database_name: Sales\n  physical_device_name: 'C:\\b\\x.bak'\n  first_lsn: 1\n  last_lsn: 2\n  database_backup_lsn: 0\n  checkpoint_lsn: 1\n  backup_type: Z\n"
		_, err := NewFileSource(writeFile(t, "bad.yml", content)).RecentBackups(context.Background(), "Sales")
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrorTypeCatalog, apperrors.GetErrorType(err))
	})

	t.Run("bad LSN", func(t *testing.T) {
		content := `{"backups": [{"database_name": "Sales", "first_lsn": "abc"}]}`
		_, err := NewFileSource(writeFile(t, "bad.json", content)).RecentBackups(context.Background(), "Sales")
		assert.Error(t, err)
	})
}

func TestExportRoundTrip(t *testing.T) {
	records := []chain.Record{
		rec("node1", chain.BackupTypeFull, 90, 110, 100, 0, `C:\b\full.bak`),
		rec("node2", chain.BackupTypeLog, 110, 120, 100, 100, "https://acct.blob.core.windows.net/c/log.trn"),
	}
	records[0].StartTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records[1].StartTime = time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, format, records))

			rows, err := DecodeRows(buf.Bytes(), format)
			require.NoError(t, err)
			decoded, err := ToRecords(rows)
			require.NoError(t, err)

			require.Len(t, decoded, 2)
			for i := range records {
				assert.Equal(t, records[i].Identity(), decoded[i].Identity())
				assert.Equal(t, records[i].ServerName, decoded[i].ServerName)
				assert.True(t, records[i].StartTime.Equal(decoded[i].StartTime))
			}
		})
	}

	assert.Error(t, Export(&bytes.Buffer{}, "xml", records))
}

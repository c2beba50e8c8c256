package chain

import (
	"math/rand"
	"strings"
	"time"
)

func lsn(s string) LSN {
	return MustParseLSN(s)
}

func record(t BackupType, first, last, checkpoint, dbBackup, device string) Record {
	return Record{
		DatabaseName:       "TestDb",
		ServerName:         "ServerA",
		Type:               t,
		FirstLSN:           lsn(first),
		LastLSN:            lsn(last),
		CheckpointLSN:      lsn(checkpoint),
		DatabaseBackupLSN:  lsn(dbBackup),
		PhysicalDeviceName: device,
	}
}

func mustTime(s string) time.Time {
	ts, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return ts
}

// backupHistory is a full, a differential and three log backups spread
// over two replicas.
func backupHistory() []Record {
	logA := record(BackupTypeLog, "126000000955200001", "126000000955500001", "126000000953600034", "126000000943800037",
		`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_020007_343.trn`)
	logA.StartTime = mustTime("2018-10-29 02:00:07")

	logC := record(BackupTypeLog, "126000000955800001", "126000000965800001", "126000000953600034", "126000000943800037",
		`\\DFS\BACKUP\ServerB\testDb\Testdb_backup_2018_10_29_040005_900.trn`)
	logC.ServerName = "ServerB"
	logC.StartTime = mustTime("2018-10-29 03:00:06")

	full := record(BackupTypeFull, "126000000936100001", "126000000945500001", "126000000943800037", "126000000882000037",
		`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_28_000227_200.full`)
	full.StartTime = mustTime("2018-10-28 00:02:28")

	logB := record(BackupTypeLog, "126000000955500001", "126000000955800001", "126000000953600034", "126000000943800037",
		`\\DFS\BACKUP\ServerB\testDb\Testdb_backup_2018_10_29_030006_660.trn`)
	logB.ServerName = "ServerB"
	logB.StartTime = mustTime("2018-10-29 03:00:06")

	diff := record(BackupTypeDiff, "126000000945600000", "126000000955200001", "126000000953600034", "126000000943800037",
		`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_000339_780.diff`)
	diff.StartTime = mustTime("2018-10-29 00:03:39")

	return []Record{logA, logC, full, logB, diff}
}

// diffBetweenLogsHistory has a log whose LastLSN equals the differential's
// LastLSN, followed by a log starting exactly there.
func diffBetweenLogsHistory() []Record {
	return []Record{
		record(BackupTypeLog, "95000000037500001", "95000000038000001", "95000000037700002", "95000000019800037",
			`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_020007_819.trn`),
		record(BackupTypeLog, "95000000037000001", "95000000037500001", "95000000037200002", "95000000019800037",
			`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_040005_727.trn`),
		record(BackupTypeLog, "95000000036200001", "95000000037000001", "95000000036700001", "95000000019800037",
			`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_030006_620.trn`),
		record(BackupTypeDiff, "95000000036700001", "95000000037000001", "95000000036700001", "95000000019800037",
			`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_29_000339_887.diff`),
		record(BackupTypeFull, "95000000019800037", "95000000021500001", "95000000019800037", "93000000021200037",
			`\\DFS\BACKUP\ServerA\testDb\Testdb_backup_2018_10_28_000227_815.full`),
	}
}

func withoutType(records []Record, t BackupType) []Record {
	var out []Record
	for _, r := range records {
		if r.Type != t {
			out = append(out, r)
		}
	}
	return out
}

// withStripes adds two more stripes for every record, in reverse order
func withStripes(records []Record) []Record {
	out := append([]Record(nil), records...)
	for _, suffix := range []string{"_striped", "_striped2"} {
		for i := len(records) - 1; i >= 0; i-- {
			r := records[i]
			dot := strings.LastIndex(r.PhysicalDeviceName, ".")
			r.PhysicalDeviceName = r.PhysicalDeviceName[:dot] + suffix + r.PhysicalDeviceName[dot:]
			out = append(out, r)
		}
	}
	return out
}

func withDuplicates(records []Record) []Record {
	out := append([]Record(nil), records...)
	for i := len(records) - 1; i >= 0; i-- {
		out = append(out, records[i])
	}
	return out
}

func shuffled(records []Record, seed int64) []Record {
	out := append([]Record(nil), records...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func lastLSNs(c Chain) []string {
	var out []string
	for _, s := range c.Sets() {
		out = append(out, s.LastLSN.String())
	}
	return out
}

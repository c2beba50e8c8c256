// Package chain resolves SQL Server backup history into a restore chain.
//
// The input is backup history as reported by msdb on one or more replicas:
// one Record per physical device, possibly duplicated across replicas,
// possibly split into several stripes, possibly carrying unusable device
// names. Build turns it into the unique ordered Chain that restores the
// database to its most recent consistent point:
//
//	records := ... // from a catalog.Source
//	c, stats, err := chain.Build(records)
//	if chain.IsNoFullBackupFound(err) {
//		// nothing to restore from
//	}
//	for _, set := range c.Sets() {
//		// RESTORE ... FROM <set.DeviceNames()> WITH NORECOVERY
//	}
//
// The package does no I/O and is safe for concurrent use.
package chain

package chain

import "sort"

// GroupStripes partitions records by identity key. Each partition becomes one
// StripedSet carrying all its members. The result is sorted canonically so
// that later steps do not depend on input order.
func GroupStripes(records []Record) []StripedSet {
	groups := make(map[IdentityKey][]Record)
	var order []IdentityKey
	for _, r := range records {
		key := r.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	sets := make([]StripedSet, 0, len(order))
	for _, key := range order {
		sets = append(sets, newStripedSet(groups[key]))
	}
	sortSets(sets)
	return sets
}

func sortSets(sets []StripedSet) {
	sort.SliceStable(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		if a.Type != b.Type {
			return a.Type.rank() < b.Type.rank()
		}
		if c := a.FirstLSN.Cmp(b.FirstLSN); c != 0 {
			return c < 0
		}
		if c := a.LastLSN.Cmp(b.LastLSN); c != 0 {
			return c < 0
		}
		if c := a.CheckpointLSN.Cmp(b.CheckpointLSN); c != 0 {
			return c < 0
		}
		if c := a.DatabaseBackupLSN.Cmp(b.DatabaseBackupLSN); c != 0 {
			return c < 0
		}
		return a.DatabaseName < b.DatabaseName
	})
}

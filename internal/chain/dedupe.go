package chain

// Dedupe removes records whose full identity (including the device name) has
// already been seen. Replicas of an availability group all report the same
// backup history, so duplicates are expected. Each identity keeps the slot of
// its first occurrence; when duplicates disagree on server or start time the
// preferred record fills that slot, so the result does not depend on which
// replica answered first.
func Dedupe(records []Record) []Record {
	index := make(map[FullIdentity]int, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		id := r.Identity()
		if i, ok := index[id]; ok {
			if preferred(r, out[i]) {
				out[i] = r
			}
			continue
		}
		index[id] = len(out)
		out = append(out, r)
	}
	return out
}

// preferred orders duplicates: smallest known server name, then earliest
// known start time.
func preferred(a, b Record) bool {
	if a.ServerName != b.ServerName {
		switch {
		case a.ServerName == "":
			return false
		case b.ServerName == "":
			return true
		default:
			return a.ServerName < b.ServerName
		}
	}
	switch {
	case a.StartTime.IsZero():
		return false
	case b.StartTime.IsZero():
		return true
	default:
		return a.StartTime.Before(b.StartTime)
	}
}

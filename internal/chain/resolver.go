package chain

import "fmt"

// AdjacencyRule decides which log backup may follow the full or differential
// backup at the head of the chain.
type AdjacencyRule string

const (
	// AdjacencyExact requires log.FirstLSN == previous.LastLSN for every log.
	AdjacencyExact AdjacencyRule = "exact"
	// AdjacencyBracketing accepts, for the first log only, any log whose
	// [FirstLSN, LastLSN] range contains previous.LastLSN. Later logs still
	// require exact adjacency. This tolerates a log backup that was running
	// while the full or differential backup was taken.
	AdjacencyBracketing AdjacencyRule = "bracketing"
)

// ParseAdjacencyRule parses a rule name, defaulting to exact for ""
func ParseAdjacencyRule(s string) (AdjacencyRule, error) {
	switch AdjacencyRule(s) {
	case "", AdjacencyExact:
		return AdjacencyExact, nil
	case AdjacencyBracketing:
		return AdjacencyBracketing, nil
	default:
		return "", fmt.Errorf("unknown adjacency rule %q (expected %q or %q)", s, AdjacencyExact, AdjacencyBracketing)
	}
}

type resolveOptions struct {
	lowerBound *LSN
	adjacency  AdjacencyRule
}

// ResolveOption configures Resolve and Build
type ResolveOption func(*resolveOptions)

// WithLowerBound discards every set whose LastLSN is <= lsn before the anchor
// is chosen.
func WithLowerBound(lsn LSN) ResolveOption {
	return func(o *resolveOptions) {
		o.lowerBound = &lsn
	}
}

// WithAdjacency selects the adjacency rule for the first log backup
func WithAdjacency(rule AdjacencyRule) ResolveOption {
	return func(o *resolveOptions) {
		o.adjacency = rule
	}
}

func buildOptions(opts []ResolveOption) resolveOptions {
	o := resolveOptions{adjacency: AdjacencyExact}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolve orders striped sets into a restore chain: the most recent full
// backup, the newest differential based on it (if any), then every log backup
// that continues the chain without a gap. A gap ends the chain. Resolve is
// pure and deterministic for any permutation of sets.
func Resolve(sets []StripedSet, opts ...ResolveOption) (Chain, error) {
	o := buildOptions(opts)

	candidates := make([]StripedSet, 0, len(sets))
	for _, s := range sets {
		if o.lowerBound != nil && s.LastLSN.LessThanOrEqual(*o.lowerBound) {
			continue
		}
		candidates = append(candidates, s)
	}
	sortSets(candidates)

	full, err := selectFull(candidates)
	if err != nil {
		return Chain{}, err
	}
	ordered := []StripedSet{full}
	used := map[IdentityKey]bool{full.Key(): true}

	diff, found, err := selectDiff(candidates, full)
	if err != nil {
		return Chain{}, err
	}
	if found {
		ordered = append(ordered, diff)
		used[diff.Key()] = true
	}

	tail := ordered[len(ordered)-1]
	first := true
	for {
		var next StripedSet
		var ok bool
		if first && o.adjacency == AdjacencyBracketing {
			next, ok, err = selectBracketingLog(candidates, tail, used)
		} else {
			next, ok, err = selectNextLog(candidates, tail, used)
		}
		if err != nil {
			return Chain{}, err
		}
		if !ok {
			break
		}
		ordered = append(ordered, next)
		used[next.Key()] = true
		tail = next
		first = false
	}

	return Chain{sets: ordered}, nil
}

func selectFull(sets []StripedSet) (StripedSet, error) {
	var fulls []StripedSet
	for _, s := range sets {
		if s.Type == BackupTypeFull {
			fulls = append(fulls, s)
		}
	}
	if len(fulls) == 0 {
		database := ""
		if len(sets) > 0 {
			database = sets[0].DatabaseName
		}
		return StripedSet{}, newNoFullBackupError(database)
	}

	best := fulls[0].CheckpointLSN
	for _, f := range fulls[1:] {
		best = MaxLSN(best, f.CheckpointLSN)
	}
	var newest []StripedSet
	for _, f := range fulls {
		if f.CheckpointLSN.Equal(best) {
			newest = append(newest, f)
		}
	}

	full, _, err := pickLatest(newest, "full", best)
	return full, err
}

func selectDiff(sets []StripedSet, full StripedSet) (StripedSet, bool, error) {
	var diffs []StripedSet
	for _, s := range sets {
		if s.Type == BackupTypeDiff && s.DatabaseBackupLSN.Equal(full.CheckpointLSN) {
			diffs = append(diffs, s)
		}
	}
	return pickLatest(diffs, "differential", full.CheckpointLSN)
}

func selectNextLog(sets []StripedSet, tail StripedSet, used map[IdentityKey]bool) (StripedSet, bool, error) {
	var logs []StripedSet
	for _, s := range sets {
		if s.Type == BackupTypeLog && !used[s.Key()] && s.FirstLSN.Equal(tail.LastLSN) {
			logs = append(logs, s)
		}
	}
	return pickLatest(logs, "log", tail.LastLSN)
}

func selectBracketingLog(sets []StripedSet, tail StripedSet, used map[IdentityKey]bool) (StripedSet, bool, error) {
	var logs []StripedSet
	for _, s := range sets {
		if s.Type == BackupTypeLog && !used[s.Key()] && tail.LastLSN.Between(s.FirstLSN, s.LastLSN) {
			logs = append(logs, s)
		}
	}
	return pickLatest(logs, "log", tail.LastLSN)
}

// pickLatest returns the candidate with the greatest LastLSN. A tie on the
// greatest LastLSN is ambiguous and is reported rather than guessed.
func pickLatest(candidates []StripedSet, step string, tail LSN) (StripedSet, bool, error) {
	if len(candidates) == 0 {
		return StripedSet{}, false, nil
	}

	best := candidates[0]
	var tied []StripedSet
	for _, c := range candidates {
		switch cmp := c.LastLSN.Cmp(best.LastLSN); {
		case cmp > 0:
			best = c
			tied = tied[:0]
		case cmp == 0 && c.Key() != best.Key():
			tied = append(tied, c)
		}
	}
	if len(tied) > 0 {
		return StripedSet{}, false, newAmbiguousError(step, tail, append([]StripedSet{best}, tied...))
	}
	return best, true, nil
}

// TrimApplied removes from a resolved chain every set already applied to a
// database left in the restoring state, i.e. every set whose LastLSN is <=
// applied. Nothing left to restore is an error.
func TrimApplied(c Chain, applied LSN) (Chain, error) {
	var remaining []StripedSet
	for _, s := range c.sets {
		if s.LastLSN.GreaterThan(applied) {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) == 0 {
		return Chain{}, newChainError(ChainErrorNoBackupsToRestore,
			fmt.Sprintf("no backups found to restore after LSN %s", applied)).
			WithContext("database", c.DatabaseName()).
			WithContext("applied_lsn", applied.String())
	}
	return Chain{sets: remaining}, nil
}

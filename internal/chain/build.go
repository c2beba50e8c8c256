package chain

// BuildStats reports how many records each filtering step removed
type BuildStats struct {
	Input      int `json:"input" yaml:"input"`
	Invalid    int `json:"invalid" yaml:"invalid"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
	Sets       int `json:"sets" yaml:"sets"`
	ChainSize  int `json:"chain_size" yaml:"chain_size"`
}

// Build runs the whole pipeline on raw catalog records: drop invalid device
// paths, de-duplicate, group stripes and resolve the chain.
func Build(records []Record, opts ...ResolveOption) (Chain, BuildStats, error) {
	stats := BuildStats{Input: len(records)}

	valid, dropped := FilterValid(records)
	stats.Invalid = len(dropped)

	unique := Dedupe(valid)
	stats.Duplicates = len(valid) - len(unique)

	sets := GroupStripes(unique)
	stats.Sets = len(sets)

	c, err := Resolve(sets, opts...)
	if err != nil {
		return Chain{}, stats, err
	}
	stats.ChainSize = c.Len()
	return c, stats, nil
}

package chain

import (
	"fmt"
	"strings"
)

// Relocate returns a copy of c whose devices are read from dir instead of
// the location they were written to. Each device keeps its file name.
func Relocate(c Chain, dir string) (Chain, error) {
	sets := make([]StripedSet, 0, len(c.sets))
	for _, s := range c.sets {
		members := s.Members()
		for i := range members {
			path := CombinePaths(dir, deviceFileName(members[i].PhysicalDeviceName))
			if !IsValidDevicePath(path) {
				return Chain{}, fmt.Errorf("relocated device %q is not a valid path or URL", path)
			}
			members[i].PhysicalDeviceName = path
		}
		set, err := NewStripedSet(members)
		if err != nil {
			return Chain{}, err
		}
		sets = append(sets, set)
	}
	return Chain{sets: sets}, nil
}

func deviceFileName(device string) string {
	if i := strings.LastIndexAny(device, `\/`); i >= 0 {
		return device[i+1:]
	}
	return device
}

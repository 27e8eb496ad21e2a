package memory

import "sort"

// Working-memory gate constants.
const (
	// GateThreshold is the strict lower bound on gate scores admitted to
	// working memory: exactly 0.5 is excluded.
	GateThreshold = 0.5
	// WorkingMemoryCap bounds the promoted set across all sectors.
	WorkingMemoryCap = 8
)

// gateWorkingMemory flattens per-sector result lists, drops entries at or
// below the threshold, and keeps the top WorkingMemoryCap by gate score.
// Pure post-processing; touching the promoted rows is the caller's job.
func gateWorkingMemory(sectors ...[]ScoredEntry) []ScoredEntry {
	var flat []ScoredEntry
	for _, entries := range sectors {
		flat = append(flat, entries...)
	}

	admitted := flat[:0]
	for _, e := range flat {
		if e.GateScore > GateThreshold {
			admitted = append(admitted, e)
		}
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].GateScore > admitted[j].GateScore
	})
	if len(admitted) > WorkingMemoryCap {
		admitted = admitted[:WorkingMemoryCap]
	}
	return admitted
}

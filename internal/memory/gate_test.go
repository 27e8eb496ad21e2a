package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func entriesWithScores(scores ...float64) []ScoredEntry {
	out := make([]ScoredEntry, len(scores))
	for i, s := range scores {
		out[i] = ScoredEntry{ID: fmt.Sprintf("e%d", i), Sector: SectorEpisodic, GateScore: s, Score: s}
	}
	return out
}

func TestGateThresholdIsStrict(t *testing.T) {
	got := gateWorkingMemory(entriesWithScores(0.5, 0.51, 0.49))
	assert.Len(t, got, 1)
	assert.Equal(t, "e1", got[0].ID)
}

func TestGateCapsAtEight(t *testing.T) {
	scores := make([]float64, 12)
	for i := range scores {
		scores[i] = 0.6 + float64(i)*0.01
	}
	got := gateWorkingMemory(entriesWithScores(scores...))
	assert.Len(t, got, WorkingMemoryCap)

	// Highest scores survive, in descending order.
	assert.Equal(t, "e11", got[0].ID)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].GateScore, got[i].GateScore)
	}
}

func TestGateFlattensAcrossSectors(t *testing.T) {
	episodic := []ScoredEntry{{ID: "ep", Sector: SectorEpisodic, GateScore: 0.7}}
	semantic := []ScoredEntry{{ID: "fact", Sector: SectorSemantic, GateScore: 0.9}}
	got := gateWorkingMemory(episodic, semantic)
	assert.Len(t, got, 2)
	assert.Equal(t, "fact", got[0].ID)
	assert.Equal(t, "ep", got[1].ID)
}

func TestGateEmptyInput(t *testing.T) {
	assert.Empty(t, gateWorkingMemory())
	assert.Empty(t, gateWorkingMemory(entriesWithScores(0.1, 0.2)))
}

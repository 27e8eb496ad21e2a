package memory

import (
	"math"

	"github.com/ekailabs/ekai-memory/internal/vectormath"
)

// PBWM gate constants. These are tuning knobs, not derived quantities.
const (
	// RelevanceWeight scales cosine similarity to the query.
	RelevanceWeight = 1.0
	// ExpectedValueWeight scales accumulated evidence (retrievals, strength).
	ExpectedValueWeight = 0.4
	// ControlWeight scales the fixed control signal.
	ControlWeight = 0.05
	// ControlSignal is a constant bias input to the gate.
	ControlSignal = 0.3
	// NoiseWeight scales the Gaussian exploration noise.
	NoiseWeight = 0.02
	// NoiseStddev is the standard deviation of the exploration noise.
	NoiseStddev = 0.05

	// SoftcapReference is the retrieval/strength count treated as "full
	// expected-value credit": ln(1+10)/ln(11) == 1.
	SoftcapReference = 10

	// SimilarityFloor drops candidates whose cosine similarity to the
	// query falls below it before scoring.
	SimilarityFloor = 0.2
	// TopPerSector caps the scored survivors kept per sector.
	TopPerSector = 4
)

// softcapLn is ln(11), the divisor that maps SoftcapReference to 1.0.
var softcapLn = math.Log(SoftcapReference + 1)

// sectorWeights scale the gate score per sector. All neutral today.
var sectorWeights = map[Sector]float64{
	SectorEpisodic:   1.0,
	SectorSemantic:   1.0,
	SectorProcedural: 1.0,
}

// GateScore computes the PBWM gate value for one candidate. relevance is
// the cosine similarity between query and row embeddings; retrievalCount
// and strength feed the expected-value term (pass 0 and 1 for sectors
// that lack them); noise is a draw from N(0, NoiseStddev).
func GateScore(relevance float64, retrievalCount int, strength float64, noise float64) float64 {
	var retrievalScore float64
	if retrievalCount > 0 {
		retrievalScore = math.Log(1+float64(retrievalCount)) / softcapLn
	}
	strengthScore := math.Log(math.Max(strength, 1)) / softcapLn
	expectedValue := math.Min(1, retrievalScore+strengthScore)

	x := RelevanceWeight*relevance +
		ExpectedValueWeight*expectedValue +
		ControlWeight*ControlSignal -
		NoiseWeight*noise
	return vectormath.Sigmoid(x)
}

// ScoredEntry is one candidate that survived the similarity floor,
// tagged with its sector and gate score.
type ScoredEntry struct {
	ID        string  `json:"id"`
	Sector    Sector  `json:"sector"`
	Content   string  `json:"content"`
	Relevance float64 `json:"relevance"`
	GateScore float64 `json:"gate_score"`
	Score     float64 `json:"score"` // gate score times sector weight
}

// scoreCandidate builds a ScoredEntry from raw row attributes, drawing
// fresh exploration noise per candidate.
func scoreCandidate(id string, sector Sector, content string, relevance float64, retrievalCount int, strength float64) ScoredEntry {
	noise := vectormath.GaussianNoise(0, NoiseStddev)
	gate := GateScore(relevance, retrievalCount, strength, noise)
	return ScoredEntry{
		ID:        id,
		Sector:    sector,
		Content:   content,
		Relevance: relevance,
		GateScore: gate,
		Score:     gate * sectorWeights[sector],
	}
}

package memory

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testDim = 8

// fakeEmbedder returns pinned vectors for known texts and a deterministic
// pseudo-random unit vector for everything else.
type fakeEmbedder struct {
	mu   sync.Mutex
	vecs map[string][]float32
	err  error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vecs: make(map[string][]float32)}
}

func (f *fakeEmbedder) set(text string, vec []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vecs[text] = vec
}

func (f *fakeEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return hashVector(text), nil
}

func (f *fakeEmbedder) Dimension() int { return testDim }

// hashVector derives a stable unit vector from the text so unpinned
// inputs still embed consistently across calls.
func hashVector(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	v := make([]float32, testDim)
	var norm float64
	for i := range v {
		seed = seed*6364136223846793005 + 1442695040888963407
		x := float64(int64(seed>>11))/float64(1<<52) - 1 // roughly [-1, 1)
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// unitVec returns the i-th standard basis vector.
func unitVec(i int) []float32 {
	v := make([]float32, testDim)
	v[i] = 1
	return v
}

// nearVec returns a unit vector whose cosine similarity to unitVec(i)
// is cos, tilted along axis j.
func nearVec(i, j int, cos float64) []float32 {
	v := make([]float32, testDim)
	v[i] = float32(cos)
	v[j] = float32(math.Sqrt(1 - cos*cos))
	return v
}

func newTestStore(t *testing.T, emb *fakeEmbedder) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := NewStore(path, emb, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

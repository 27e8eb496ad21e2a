package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestTriple(t *testing.T, s *Store, agentID string, triple SemanticTriple, opts IngestOptions) RecordHandle {
	t.Helper()
	handles, err := s.Ingest(context.Background(), Components{Semantic: []SemanticTriple{triple}}, agentID, opts)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	return handles[0]
}

func TestConsolidateInsertMergeSupersede(t *testing.T) {
	emb := newFakeEmbedder()
	emb.set("works at", unitVec(0))
	emb.set("is employed by", nearVec(0, 1, 0.95))
	s := newTestStore(t, emb)
	ctx := context.Background()

	// First sighting inserts a fresh fact.
	h := ingestTriple(t, s, "default", SemanticTriple{Subject: "alice", Predicate: "works at", Object: "Acme"}, IngestOptions{})
	assert.Equal(t, ActionInserted, h.Action)

	active, err := s.ActiveFacts(ctx, "default", "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1.0, active[0].Strength)
	firstValidFrom := active[0].ValidFrom

	// A near-synonymous predicate with a case-variant of the same object
	// corroborates the existing fact instead of adding a second one.
	h = ingestTriple(t, s, "default", SemanticTriple{Subject: "alice", Predicate: "is employed by", Object: "acme"}, IngestOptions{})
	assert.Equal(t, ActionMerged, h.Action)

	active, err = s.ActiveFacts(ctx, "default", "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 2.0, active[0].Strength)
	assert.Equal(t, "works at", active[0].Predicate)
	assert.Equal(t, "Acme", active[0].Object)
	assert.Equal(t, firstValidFrom, active[0].ValidFrom)

	// A conflicting object closes the old fact and opens a new one.
	h = ingestTriple(t, s, "default", SemanticTriple{Subject: "alice", Predicate: "works at", Object: "Globex"}, IngestOptions{})
	assert.Equal(t, ActionSuperseded, h.Action)

	active, err = s.ActiveFacts(ctx, "default", "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Globex", active[0].Object)
	assert.Equal(t, 1.0, active[0].Strength)

	history, err := s.FactHistory(ctx, "default", "alice")
	require.NoError(t, err)
	require.Len(t, history, 2)
	var closed int
	for i := range history {
		if history[i].ValidTo != nil {
			closed++
			assert.Equal(t, "Acme", history[i].Object)
		}
	}
	assert.Equal(t, 1, closed)
}

func TestConsolidateDistinctPredicateInserts(t *testing.T) {
	emb := newFakeEmbedder()
	emb.set("works at", unitVec(0))
	emb.set("lives in", unitVec(2))
	s := newTestStore(t, emb)

	ingestTriple(t, s, "default", SemanticTriple{Subject: "alice", Predicate: "works at", Object: "Acme"}, IngestOptions{})
	h := ingestTriple(t, s, "default", SemanticTriple{Subject: "alice", Predicate: "lives in", Object: "Berlin"}, IngestOptions{})
	assert.Equal(t, ActionInserted, h.Action)

	active, err := s.ActiveFacts(context.Background(), "default", "alice")
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestConsolidateDedupSkipsStrengthBump(t *testing.T) {
	emb := newFakeEmbedder()
	emb.set("works at", unitVec(0))
	s := newTestStore(t, emb)
	ctx := context.Background()

	triple := SemanticTriple{Subject: "alice", Predicate: "works at", Object: "Acme"}
	ingestTriple(t, s, "default", triple, IngestOptions{})

	// Re-ingesting the same document must not inflate evidence, but a
	// missing source gets backfilled.
	h := ingestTriple(t, s, "default", triple, IngestOptions{Deduplicate: true, Source: "notes/acme.md"})
	assert.Equal(t, ActionMerged, h.Action)

	active, err := s.ActiveFacts(ctx, "default", "alice")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1.0, active[0].Strength)
	assert.Equal(t, "notes/acme.md", active[0].Source)
}

func TestConsolidateUserDomain(t *testing.T) {
	emb := newFakeEmbedder()
	s := newTestStore(t, emb)
	ctx := context.Background()

	triple := SemanticTriple{Subject: "bob", Predicate: "prefers", Object: "dark mode", Domain: DomainUser}

	_, err := s.Ingest(ctx, Components{Semantic: []SemanticTriple{triple}}, "default", IngestOptions{})
	assert.ErrorIs(t, err, ErrValidation)

	h := ingestTriple(t, s, "default", triple, IngestOptions{UserID: "u1"})
	assert.Equal(t, ActionInserted, h.Action)

	active, err := s.ActiveFacts(ctx, "default", "bob")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, DomainUser, active[0].Domain)
	assert.Equal(t, "u1", active[0].UserScope)
}

func TestConsolidateRejectsIncompleteTriple(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())
	_, err := s.Ingest(context.Background(),
		Components{Semantic: []SemanticTriple{{Subject: "alice", Predicate: "works at"}}},
		"default", IngestOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConsolidateUnknownDomain(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())
	_, err := s.Ingest(context.Background(),
		Components{Semantic: []SemanticTriple{{Subject: "a", Predicate: "b", Object: "c", Domain: "galactic"}}},
		"default", IngestOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIngestRequiresComponent(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())
	_, err := s.Ingest(context.Background(), Components{}, "default", IngestOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestIngestProviderFailure(t *testing.T) {
	emb := newFakeEmbedder()
	emb.err = errors.New("connection refused")
	s := newTestStore(t, emb)
	_, err := s.Ingest(context.Background(),
		Components{Episodic: &EpisodicText{Content: "something happened"}},
		"default", IngestOptions{})
	assert.ErrorIs(t, err, ErrProvider)
}

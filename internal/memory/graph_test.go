package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// graphStore seeds a small fact graph:
//
//	alice --knows--> bob --works_at--> acme --located_in--> berlin
//	bob --knows--> alice (cycle edge)
func graphStore(t *testing.T) *Store {
	t.Helper()
	emb := newFakeEmbedder()
	emb.set("knows", unitVec(1))
	emb.set("works_at", unitVec(2))
	emb.set("located_in", unitVec(3))
	s := newTestStore(t, emb)

	for _, triple := range []SemanticTriple{
		{Subject: "alice", Predicate: "knows", Object: "bob"},
		{Subject: "bob", Predicate: "works_at", Object: "acme"},
		{Subject: "acme", Predicate: "located_in", Object: "berlin"},
		{Subject: "bob", Predicate: "knows", Object: "alice"},
	} {
		ingestTriple(t, s, "default", triple, IngestOptions{})
	}
	return s
}

func TestNeighbors(t *testing.T) {
	s := graphStore(t)
	ctx := context.Background()

	got, err := s.Neighbors(ctx, "default", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "alice"}, got)

	got, err = s.Neighbors(ctx, "default", "berlin")
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, got)

	got, err = s.Neighbors(ctx, "default", "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindTriplesBySubject(t *testing.T) {
	s := graphStore(t)
	ctx := context.Background()

	got, err := s.FindTriplesBySubject(ctx, "default", "bob", TripleQuery{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.FindTriplesBySubject(ctx, "default", "bob", TripleQuery{PredicateFilter: "KNOW"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].Object)

	got, err = s.FindTriplesBySubject(ctx, "default", "bob", TripleQuery{MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindTriplesByObject(t *testing.T) {
	s := graphStore(t)
	got, err := s.FindTriplesByObject(context.Background(), "default", "acme", TripleQuery{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Subject)
}

func TestFindPaths(t *testing.T) {
	s := graphStore(t)
	ctx := context.Background()

	paths, err := s.FindPaths(ctx, "default", "alice", "berlin", 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 3, paths[0].Depth)
	require.Len(t, paths[0].Triples, 3)
	assert.Equal(t, "located_in", paths[0].Triples[2].Predicate)
}

func TestFindPathsDepthBound(t *testing.T) {
	s := graphStore(t)
	paths, err := s.FindPaths(context.Background(), "default", "alice", "berlin", 2)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindPathsCycleTerminates(t *testing.T) {
	// The alice<->bob cycle must not trap the traversal or produce
	// repeated paths.
	s := graphStore(t)
	paths, err := s.FindPaths(context.Background(), "default", "alice", "acme", 3)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, 2, paths[0].Depth)
}

func TestFindPathsSameEntity(t *testing.T) {
	s := graphStore(t)
	paths, err := s.FindPaths(context.Background(), "default", "alice", "alice", 3)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFindReachableEntities(t *testing.T) {
	s := graphStore(t)
	ctx := context.Background()

	got, err := s.FindReachableEntities(ctx, "default", "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got)

	got, err = s.FindReachableEntities(ctx, "default", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "bob"}, got)

	got, err = s.FindReachableEntities(ctx, "default", "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "berlin", "bob"}, got)
}

func TestTraversalIgnoresSupersededFacts(t *testing.T) {
	s := graphStore(t)
	ctx := context.Background()

	// Relocation supersedes the berlin edge.
	ingestTriple(t, s, "default", SemanticTriple{Subject: "acme", Predicate: "located_in", Object: "munich"}, IngestOptions{})

	paths, err := s.FindPaths(ctx, "default", "alice", "berlin", 3)
	require.NoError(t, err)
	assert.Empty(t, paths)

	got, err := s.FindReachableEntities(ctx, "default", "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "bob", "munich"}, got)

	// History stays queryable on demand.
	hist, err := s.FindTriplesBySubject(ctx, "default", "acme", TripleQuery{IncludeHistory: true})
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

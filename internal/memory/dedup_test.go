package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ingestEpisodic(t *testing.T, s *Store, content string, opts IngestOptions) RecordHandle {
	t.Helper()
	handles, err := s.Ingest(context.Background(),
		Components{Episodic: &EpisodicText{Content: content}}, "default", opts)
	require.NoError(t, err)
	require.Len(t, handles, 1)
	return handles[0]
}

func TestDedupReturnsExistingRecord(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())

	first := ingestEpisodic(t, s, "met carol at the standup", IngestOptions{})
	second := ingestEpisodic(t, s, "met carol at the standup", IngestOptions{Deduplicate: true})

	assert.Equal(t, ActionDuplicate, second.Action)
	assert.Equal(t, first.ID, second.ID)

	sum, err := s.GetSectorSummary(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Episodic)
}

func TestDedupWithoutFlagInsertsAgain(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())

	first := ingestEpisodic(t, s, "met carol at the standup", IngestOptions{})
	second := ingestEpisodic(t, s, "met carol at the standup", IngestOptions{})

	assert.Equal(t, ActionInserted, second.Action)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestDedupSimilarityThreshold(t *testing.T) {
	emb := newFakeEmbedder()
	emb.set("original note", unitVec(0))
	emb.set("close paraphrase", nearVec(0, 1, 0.95))
	emb.set("loosely related", nearVec(0, 1, 0.85))
	s := newTestStore(t, emb)

	first := ingestEpisodic(t, s, "original note", IngestOptions{})

	dup := ingestEpisodic(t, s, "close paraphrase", IngestOptions{Deduplicate: true})
	assert.Equal(t, ActionDuplicate, dup.Action)
	assert.Equal(t, first.ID, dup.ID)

	miss := ingestEpisodic(t, s, "loosely related", IngestOptions{Deduplicate: true})
	assert.Equal(t, ActionInserted, miss.Action)
}

func TestDedupBackfillsSource(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())
	ctx := context.Background()

	first := ingestEpisodic(t, s, "quarterly numbers reviewed", IngestOptions{})
	ingestEpisodic(t, s, "quarterly numbers reviewed", IngestOptions{Deduplicate: true, Source: "minutes/q3.md"})

	rec, err := s.GetEpisodic(ctx, "default", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "minutes/q3.md", rec.Source)

	// An existing source is never overwritten.
	ingestEpisodic(t, s, "quarterly numbers reviewed", IngestOptions{Deduplicate: true, Source: "minutes/q4.md"})
	rec, err = s.GetEpisodic(ctx, "default", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "minutes/q3.md", rec.Source)
}

func TestDedupRespectsUserScope(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())

	// A user-private row is invisible to another user's dedup scan.
	ingestEpisodic(t, s, "shared a draft", IngestOptions{UserID: "u1"})
	h := ingestEpisodic(t, s, "shared a draft", IngestOptions{UserID: "u2", Deduplicate: true})
	assert.Equal(t, ActionInserted, h.Action)

	// The same user's scan does see it.
	h = ingestEpisodic(t, s, "shared a draft", IngestOptions{UserID: "u1", Deduplicate: true})
	assert.Equal(t, ActionDuplicate, h.Action)
}

func TestDedupProcedural(t *testing.T) {
	s := newTestStore(t, newFakeEmbedder())
	ctx := context.Background()

	wf := ProceduralWorkflow{Trigger: "deploy requested", Steps: []string{"run tests", "tag release"}}
	handles, err := s.Ingest(ctx, Components{Procedural: &wf}, "default", IngestOptions{})
	require.NoError(t, err)
	first := handles[0]

	handles, err = s.Ingest(ctx, Components{Procedural: &wf}, "default", IngestOptions{Deduplicate: true})
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, handles[0].Action)
	assert.Equal(t, first.ID, handles[0].ID)
}

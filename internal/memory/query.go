package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/vectormath"
)

// QueryResult holds the thresholded, capped working-memory set plus the
// full top-per-sector candidate lists it was gated from.
type QueryResult struct {
	WorkingMemory []ScoredEntry            `json:"working_memory"`
	Sectors       map[Sector][]ScoredEntry `json:"sectors"`
}

// Query embeds the text once per sector, pulls bounded candidate sets,
// scores the survivors of the similarity floor, gates the union into
// working memory, and touches exactly the promoted rows.
func (s *Store) Query(ctx context.Context, text, agentID, userID string) (*QueryResult, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	uid, err := normalizeUserID(userID)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, goerr.Wrap(ErrValidation, "query text is required")
	}

	episodic, err := s.queryEpisodic(ctx, text, aid, uid)
	if err != nil {
		return nil, err
	}
	semantic, err := s.querySemanticSector(ctx, text, aid, uid)
	if err != nil {
		return nil, err
	}
	procedural, err := s.queryProcedural(ctx, text, aid, uid)
	if err != nil {
		return nil, err
	}

	working := gateWorkingMemory(episodic, semantic, procedural)
	s.touchPromoted(ctx, aid, working)

	s.logger.Debug("query complete",
		zap.String("agent", aid),
		zap.Int("episodic", len(episodic)),
		zap.Int("semantic", len(semantic)),
		zap.Int("procedural", len(procedural)),
		zap.Int("working_memory", len(working)))

	return &QueryResult{
		WorkingMemory: working,
		Sectors: map[Sector][]ScoredEntry{
			SectorEpisodic:   episodic,
			SectorSemantic:   semantic,
			SectorProcedural: procedural,
		},
	}, nil
}

func (s *Store) queryEpisodic(ctx context.Context, text, agentID, userID string) ([]ScoredEntry, error) {
	vec, err := s.embed(ctx, text, SectorEpisodic)
	if err != nil {
		return nil, err
	}
	rows, err := s.episodicCandidates(ctx, agentID, userID, CandidateLimit)
	if err != nil {
		return nil, err
	}

	var scored []ScoredEntry
	for i := range rows {
		rel := vectormath.Cosine(vec, rows[i].Embedding)
		if rel < SimilarityFloor {
			continue
		}
		scored = append(scored, scoreCandidate(
			rows[i].ID, SectorEpisodic, rows[i].Content, rel, rows[i].RetrievalCount, 1))
	}
	return topEntries(scored, TopPerSector), nil
}

func (s *Store) querySemanticSector(ctx context.Context, text, agentID, userID string) ([]ScoredEntry, error) {
	vec, err := s.embed(ctx, text, SectorSemantic)
	if err != nil {
		return nil, err
	}
	rows, err := s.semanticCandidates(ctx, agentID, userID, CandidateLimit)
	if err != nil {
		return nil, err
	}

	var scored []ScoredEntry
	for i := range rows {
		rel := vectormath.Cosine(vec, rows[i].Embedding)
		if rel < SimilarityFloor {
			continue
		}
		content := rows[i].Subject + " " + rows[i].Predicate + " " + rows[i].Object
		scored = append(scored, scoreCandidate(
			rows[i].ID, SectorSemantic, content, rel, 0, rows[i].Strength))
	}
	return topEntries(scored, TopPerSector), nil
}

func (s *Store) queryProcedural(ctx context.Context, text, agentID, userID string) ([]ScoredEntry, error) {
	vec, err := s.embed(ctx, text, SectorProcedural)
	if err != nil {
		return nil, err
	}
	rows, err := s.proceduralCandidates(ctx, agentID, userID, CandidateLimit)
	if err != nil {
		return nil, err
	}

	var scored []ScoredEntry
	for i := range rows {
		rel := vectormath.Cosine(vec, rows[i].Embedding)
		if rel < SimilarityFloor {
			continue
		}
		scored = append(scored, scoreCandidate(
			rows[i].ID, SectorProcedural, rows[i].Trigger, rel, 0, 1))
	}
	return topEntries(scored, TopPerSector), nil
}

// topEntries sorts by score descending and keeps the first n.
func topEntries(entries []ScoredEntry, n int) []ScoredEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// touchPromoted bumps retrieval counters and access timestamps for the
// rows promoted to working memory — not for every scanned candidate.
// Best-effort: a failed touch never fails the query.
func (s *Store) touchPromoted(ctx context.Context, agentID string, promoted []ScoredEntry) {
	bySector := make(map[Sector][]string)
	for _, e := range promoted {
		bySector[e.Sector] = append(bySector[e.Sector], e.ID)
	}
	if ids := bySector[SectorEpisodic]; len(ids) > 0 {
		s.touchEpisodic(ctx, agentID, ids)
	}
	if ids := bySector[SectorSemantic]; len(ids) > 0 {
		s.touchSemantic(ctx, agentID, ids)
	}
	if ids := bySector[SectorProcedural]; len(ids) > 0 {
		s.touchProcedural(ctx, agentID, ids)
	}
}

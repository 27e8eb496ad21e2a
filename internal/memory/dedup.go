package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/vectormath"
)

// DedupThreshold is the inclusive cosine similarity at or above which an
// incoming record is treated as a duplicate of an existing row.
const DedupThreshold = 0.9

// dupMatch identifies an existing row that absorbed a duplicate ingest.
type dupMatch struct {
	ID     string
	Source string
}

// findDuplicate scans up to CandidateLimit most-recently-touched rows of
// the sector and returns the first row whose similarity reaches
// DedupThreshold. First match wins, not closest match; changing that
// would change which row absorbs re-ingested documents.
//
// Best-effort: scan failures are logged and reported as "no duplicate" so
// they never abort the ingest.
func (s *Store) findDuplicate(ctx context.Context, sector Sector, agentID, userID string, vec []float32) *dupMatch {
	switch sector {
	case SectorEpisodic:
		rows, err := s.episodicCandidates(ctx, agentID, userID, CandidateLimit)
		if err != nil {
			s.logger.Warn("dedup scan failed", zap.String("sector", string(sector)), zap.Error(err))
			return nil
		}
		for i := range rows {
			if vectormath.Cosine(vec, rows[i].Embedding) >= DedupThreshold {
				return &dupMatch{ID: rows[i].ID, Source: rows[i].Source}
			}
		}
	case SectorProcedural:
		rows, err := s.proceduralCandidates(ctx, agentID, userID, CandidateLimit)
		if err != nil {
			s.logger.Warn("dedup scan failed", zap.String("sector", string(sector)), zap.Error(err))
			return nil
		}
		for i := range rows {
			if vectormath.Cosine(vec, rows[i].Embedding) >= DedupThreshold {
				return &dupMatch{ID: rows[i].ID, Source: rows[i].Source}
			}
		}
	case SectorReflective:
		rows, err := s.reflectiveCandidates(ctx, agentID, userID, CandidateLimit)
		if err != nil {
			s.logger.Warn("dedup scan failed", zap.String("sector", string(sector)), zap.Error(err))
			return nil
		}
		for i := range rows {
			if vectormath.Cosine(vec, rows[i].Embedding) >= DedupThreshold {
				return &dupMatch{ID: rows[i].ID, Source: rows[i].Source}
			}
		}
	}
	return nil
}

// sectorTable maps a sector to its backing table.
var sectorTable = map[Sector]string{
	SectorEpisodic:   "episodic_memories",
	SectorSemantic:   "semantic_memories",
	SectorProcedural: "procedural_memories",
	SectorReflective: "reflective_memories",
}

// backfillSource attaches a provenance path to a row that has none.
// Best-effort: failure is logged and swallowed.
func (s *Store) backfillSource(ctx context.Context, sector Sector, agentID, id, source string) {
	if source == "" {
		return
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+sectorTable[sector]+` SET source = ? WHERE id = ? AND agent_id = ? AND source = ''`,
		source, id, agentID)
	if err != nil {
		s.logger.Warn("source backfill failed",
			zap.String("sector", string(sector)), zap.String("id", id), zap.Error(err))
	}
}

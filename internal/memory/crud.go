package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
)

// UpdateByID re-embeds content against the given sector and overwrites
// content, embedding, and last_accessed on the episodic table. It reports
// false when no row matches id+agent; that is not an error.
func (s *Store) UpdateByID(ctx context.Context, id, content string, sector Sector, agentID string) (bool, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return false, err
	}
	if content == "" {
		return false, goerr.Wrap(ErrValidation, "content is required", goerr.V("id", id))
	}
	if sector == "" {
		sector = SectorEpisodic
	}

	vec, err := s.embedder.Embed(ctx, content, string(sector))
	if err != nil {
		return false, goerr.Wrap(ErrProvider, "embed updated content", goerr.V("cause", err.Error()))
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE episodic_memories SET content = ?, embedding = ?, last_accessed = ?
		 WHERE id = ? AND agent_id = ?`,
		content, marshalVector(vec), s.now(), id, aid)
	if err != nil {
		return false, goerr.Wrap(err, "update episodic record", goerr.V("id", id))
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

var recordTables = []string{
	"episodic_memories",
	"semantic_memories",
	"procedural_memories",
	"reflective_memories",
}

// DeleteByID removes a record by id from every sector table, returning
// the number of rows removed (0 when the id is unknown).
func (s *Store) DeleteByID(ctx context.Context, id, agentID string) (int64, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, table := range recordTables {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id = ? AND agent_id = ?`, id, aid)
		if err != nil {
			return total, goerr.Wrap(err, "delete record", goerr.V("table", table), goerr.V("id", id))
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// DeleteAll removes every record an agent owns. The agent row itself is kept.
func (s *Store) DeleteAll(ctx context.Context, agentID string) (int64, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return 0, err
	}
	return s.deleteAllRecords(ctx, aid)
}

func (s *Store) deleteAllRecords(ctx context.Context, agentID string) (int64, error) {
	var total int64
	for _, table := range recordTables {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE agent_id = ?`, agentID)
		if err != nil {
			return total, goerr.Wrap(err, "delete records", goerr.V("table", table), goerr.V("agent", agentID))
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// SectorSummary counts an agent's records per sector. Semantic counts
// split active facts from superseded history.
type SectorSummary struct {
	Episodic           int `json:"episodic"`
	SemanticActive     int `json:"semantic_active"`
	SemanticSuperseded int `json:"semantic_superseded"`
	Procedural         int `json:"procedural"`
	Reflective         int `json:"reflective"`
}

// GetSectorSummary returns per-sector record counts for dashboards.
func (s *Store) GetSectorSummary(ctx context.Context, agentID string) (*SectorSummary, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	var sum SectorSummary
	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM episodic_memories WHERE agent_id = ?`, &sum.Episodic},
		{`SELECT COUNT(*) FROM semantic_memories WHERE agent_id = ? AND valid_to IS NULL`, &sum.SemanticActive},
		{`SELECT COUNT(*) FROM semantic_memories WHERE agent_id = ? AND valid_to IS NOT NULL`, &sum.SemanticSuperseded},
		{`SELECT COUNT(*) FROM procedural_memories WHERE agent_id = ?`, &sum.Procedural},
		{`SELECT COUNT(*) FROM reflective_memories WHERE agent_id = ?`, &sum.Reflective},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, aid).Scan(c.dst); err != nil {
			return nil, goerr.Wrap(err, "sector summary", goerr.V("agent", aid))
		}
	}
	return &sum, nil
}

// RecentRecord is one row of the cross-sector recency view.
type RecentRecord struct {
	ID        string    `json:"id"`
	Sector    Sector    `json:"sector"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// GetRecent returns the newest records across all sectors, newest first.
// Semantic rows render as "subject predicate object"; procedural rows as
// their trigger.
func (s *Store) GetRecent(ctx context.Context, agentID string, limit int) ([]RecentRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, 'episodic' AS sector, content AS summary, created_at FROM episodic_memories WHERE agent_id = ?
		 UNION ALL
		 SELECT id, 'semantic', subject || ' ' || predicate || ' ' || object, created_at FROM semantic_memories WHERE agent_id = ?
		 UNION ALL
		 SELECT id, 'procedural', trigger_text, created_at FROM procedural_memories WHERE agent_id = ?
		 UNION ALL
		 SELECT id, 'reflective', content, created_at FROM reflective_memories WHERE agent_id = ?
		 ORDER BY created_at DESC LIMIT ?`,
		aid, aid, aid, aid, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "recent records", goerr.V("agent", aid))
	}
	defer rows.Close()

	var out []RecentRecord
	for rows.Next() {
		var r RecentRecord
		if err := rows.Scan(&r.ID, &r.Sector, &r.Summary, &r.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "scan recent row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// touchEpisodic bumps retrieval counters for promoted episodic rows.
// Best-effort: failures are logged, never propagated.
func (s *Store) touchEpisodic(ctx context.Context, agentID string, ids []string) {
	now := s.now()
	for _, id := range ids {
		_, err := s.db.ExecContext(ctx,
			`UPDATE episodic_memories SET retrieval_count = retrieval_count + 1, last_accessed = ?
			 WHERE id = ? AND agent_id = ?`, now, id, agentID)
		if err != nil {
			s.logger.Warn("touch episodic failed", zap.String("id", id), zap.Error(err))
		}
	}
}

// touchSemantic refreshes updated_at on promoted facts. Semantic rows
// carry no retrieval counter; their expected value comes from strength.
func (s *Store) touchSemantic(ctx context.Context, agentID string, ids []string) {
	now := s.now()
	for _, id := range ids {
		_, err := s.db.ExecContext(ctx,
			`UPDATE semantic_memories SET updated_at = ? WHERE id = ? AND agent_id = ?`, now, id, agentID)
		if err != nil {
			s.logger.Warn("touch semantic failed", zap.String("id", id), zap.Error(err))
		}
	}
}

// touchProcedural refreshes last_accessed on promoted workflows.
func (s *Store) touchProcedural(ctx context.Context, agentID string, ids []string) {
	now := s.now()
	for _, id := range ids {
		_, err := s.db.ExecContext(ctx,
			`UPDATE procedural_memories SET last_accessed = ? WHERE id = ? AND agent_id = ?`, now, id, agentID)
		if err != nil {
			s.logger.Warn("touch procedural failed", zap.String("id", id), zap.Error(err))
		}
	}
}

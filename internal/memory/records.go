package memory

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
)

// CandidateLimit bounds every per-sector candidate scan. The design
// intentionally brute-forces similarity over this window instead of
// maintaining an approximate-nearest-neighbor index.
const CandidateLimit = 200

// scopeClause restricts a scan to agent-global rows, widened to include
// one user's private rows when userID is set. Queries without a user see
// agent-global rows only.
func scopeClause(userID string) (string, []any) {
	if userID == "" {
		return ` AND user_scope = ''`, nil
	}
	return ` AND (user_scope = '' OR user_scope = ?)`, []any{userID}
}

const episodicColumns = `id, agent_id, content, embedding, created_at, last_accessed,
	event_start, event_end, retrieval_count, source, origin_type, origin_actor, origin_ref, user_scope`

func (s *Store) insertEpisodic(ctx context.Context, r *EpisodicRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodic_memories (`+episodicColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Content, marshalVector(r.Embedding), r.CreatedAt, r.LastAccessed,
		nullTime(r.EventStart), nullTime(r.EventEnd), r.RetrievalCount,
		r.Source, r.Origin.Type, r.Origin.Actor, r.Origin.Ref, r.UserScope)
	if err != nil {
		return goerr.Wrap(err, "insert episodic record", goerr.V("id", r.ID))
	}
	return nil
}

func scanEpisodic(rows *sql.Rows) (*EpisodicRecord, error) {
	var r EpisodicRecord
	var emb string
	var start, end sql.NullTime
	if err := rows.Scan(&r.ID, &r.AgentID, &r.Content, &emb, &r.CreatedAt, &r.LastAccessed,
		&start, &end, &r.RetrievalCount, &r.Source,
		&r.Origin.Type, &r.Origin.Actor, &r.Origin.Ref, &r.UserScope); err != nil {
		return nil, err
	}
	r.Embedding = unmarshalVector(emb)
	r.EventStart = timePtr(start)
	r.EventEnd = timePtr(end)
	return &r, nil
}

// episodicCandidates returns up to limit rows for the agent ordered by
// recency of access.
func (s *Store) episodicCandidates(ctx context.Context, agentID, userID string, limit int) ([]EpisodicRecord, error) {
	clause, extra := scopeClause(userID)
	args := append([]any{agentID}, extra...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodicColumns+` FROM episodic_memories WHERE agent_id = ?`+clause+
			` ORDER BY last_accessed DESC LIMIT ?`, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "scan episodic candidates", goerr.V("agent", agentID))
	}
	defer rows.Close()

	var out []EpisodicRecord
	for rows.Next() {
		r, err := scanEpisodic(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "scan episodic row")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// GetEpisodic returns one episodic record by id within an agent's namespace.
func (s *Store) GetEpisodic(ctx context.Context, agentID, id string) (*EpisodicRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodicColumns+` FROM episodic_memories WHERE id = ? AND agent_id = ?`, id, aid)
	if err != nil {
		return nil, goerr.Wrap(err, "get episodic record", goerr.V("id", id))
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, goerr.Wrap(err, "get episodic record", goerr.V("id", id))
		}
		return nil, goerr.Wrap(ErrNotFound, "episodic record not found", goerr.V("id", id))
	}
	return scanEpisodic(rows)
}

const semanticColumns = `id, agent_id, subject, predicate, object, embedding, valid_from, valid_to,
	created_at, updated_at, strength, domain, user_scope, source, origin_type, origin_actor, origin_ref`

func (s *Store) insertSemantic(ctx context.Context, r *SemanticRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO semantic_memories (`+semanticColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Subject, r.Predicate, r.Object, marshalVector(r.Embedding),
		r.ValidFrom, nullTime(r.ValidTo), r.CreatedAt, r.UpdatedAt, r.Strength,
		r.Domain, r.UserScope, r.Source, r.Origin.Type, r.Origin.Actor, r.Origin.Ref)
	if err != nil {
		return goerr.Wrap(err, "insert semantic record", goerr.V("id", r.ID))
	}
	return nil
}

func scanSemantic(rows *sql.Rows) (*SemanticRecord, error) {
	var r SemanticRecord
	var emb string
	var validTo sql.NullTime
	if err := rows.Scan(&r.ID, &r.AgentID, &r.Subject, &r.Predicate, &r.Object, &emb,
		&r.ValidFrom, &validTo, &r.CreatedAt, &r.UpdatedAt, &r.Strength,
		&r.Domain, &r.UserScope, &r.Source,
		&r.Origin.Type, &r.Origin.Actor, &r.Origin.Ref); err != nil {
		return nil, err
	}
	r.Embedding = unmarshalVector(emb)
	r.ValidTo = timePtr(validTo)
	return &r, nil
}

func (s *Store) querySemantic(ctx context.Context, query string, args ...any) ([]SemanticRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "query semantic records")
	}
	defer rows.Close()

	var out []SemanticRecord
	for rows.Next() {
		r, err := scanSemantic(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "scan semantic row")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// semanticCandidates returns up to limit active facts for the agent,
// strongest (then most recently updated) first.
func (s *Store) semanticCandidates(ctx context.Context, agentID, userID string, limit int) ([]SemanticRecord, error) {
	clause, extra := scopeClause(userID)
	args := append([]any{agentID}, extra...)
	args = append(args, limit)
	return s.querySemantic(ctx,
		`SELECT `+semanticColumns+` FROM semantic_memories
		 WHERE agent_id = ? AND valid_to IS NULL`+clause+
			` ORDER BY strength DESC, updated_at DESC LIMIT ?`, args...)
}

// ActiveFacts returns the currently-active facts for (subject, agent),
// most recently updated first. This is the consolidation working set.
func (s *Store) ActiveFacts(ctx context.Context, agentID, subject string) ([]SemanticRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	return s.querySemantic(ctx,
		`SELECT `+semanticColumns+` FROM semantic_memories
		 WHERE agent_id = ? AND subject = ? AND valid_to IS NULL
		 ORDER BY updated_at DESC`, aid, subject)
}

// FactHistory returns every fact ever recorded for (subject, agent),
// superseded rows included, newest validity window first.
func (s *Store) FactHistory(ctx context.Context, agentID, subject string) ([]SemanticRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	return s.querySemantic(ctx,
		`SELECT `+semanticColumns+` FROM semantic_memories
		 WHERE agent_id = ? AND subject = ?
		 ORDER BY valid_from DESC, created_at DESC`, aid, subject)
}

const proceduralColumns = `id, agent_id, trigger_text, goal, context, result, steps, embedding,
	created_at, last_accessed, source, origin_type, origin_actor, origin_ref, user_scope`

func (s *Store) insertProcedural(ctx context.Context, r *ProceduralRecord) error {
	steps, _ := json.Marshal(r.Steps)
	if r.Steps == nil {
		steps = []byte("[]")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO procedural_memories (`+proceduralColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Trigger, r.Goal, r.Context, r.Result, string(steps),
		marshalVector(r.Embedding), r.CreatedAt, r.LastAccessed,
		r.Source, r.Origin.Type, r.Origin.Actor, r.Origin.Ref, r.UserScope)
	if err != nil {
		return goerr.Wrap(err, "insert procedural record", goerr.V("id", r.ID))
	}
	return nil
}

func scanProcedural(rows *sql.Rows) (*ProceduralRecord, error) {
	var r ProceduralRecord
	var emb, steps string
	if err := rows.Scan(&r.ID, &r.AgentID, &r.Trigger, &r.Goal, &r.Context, &r.Result,
		&steps, &emb, &r.CreatedAt, &r.LastAccessed, &r.Source,
		&r.Origin.Type, &r.Origin.Actor, &r.Origin.Ref, &r.UserScope); err != nil {
		return nil, err
	}
	r.Embedding = unmarshalVector(emb)
	_ = json.Unmarshal([]byte(steps), &r.Steps)
	if r.Steps == nil {
		r.Steps = []string{}
	}
	return &r, nil
}

func (s *Store) proceduralCandidates(ctx context.Context, agentID, userID string, limit int) ([]ProceduralRecord, error) {
	clause, extra := scopeClause(userID)
	args := append([]any{agentID}, extra...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+proceduralColumns+` FROM procedural_memories WHERE agent_id = ?`+clause+
			` ORDER BY last_accessed DESC LIMIT ?`, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "scan procedural candidates", goerr.V("agent", agentID))
	}
	defer rows.Close()

	var out []ProceduralRecord
	for rows.Next() {
		r, err := scanProcedural(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "scan procedural row")
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const reflectiveColumns = `id, agent_id, content, embedding, created_at, last_accessed,
	source, origin_type, origin_actor, origin_ref, user_scope`

func (s *Store) insertReflective(ctx context.Context, r *ReflectiveRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reflective_memories (`+reflectiveColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AgentID, r.Content, marshalVector(r.Embedding), r.CreatedAt, r.LastAccessed,
		r.Source, r.Origin.Type, r.Origin.Actor, r.Origin.Ref, r.UserScope)
	if err != nil {
		return goerr.Wrap(err, "insert reflective record", goerr.V("id", r.ID))
	}
	return nil
}

func (s *Store) reflectiveCandidates(ctx context.Context, agentID, userID string, limit int) ([]ReflectiveRecord, error) {
	clause, extra := scopeClause(userID)
	args := append([]any{agentID}, extra...)
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reflectiveColumns+` FROM reflective_memories WHERE agent_id = ?`+clause+
			` ORDER BY last_accessed DESC LIMIT ?`, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "scan reflective candidates", goerr.V("agent", agentID))
	}
	defer rows.Close()

	var out []ReflectiveRecord
	for rows.Next() {
		var r ReflectiveRecord
		var emb string
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Content, &emb, &r.CreatedAt, &r.LastAccessed,
			&r.Source, &r.Origin.Type, &r.Origin.Actor, &r.Origin.Ref, &r.UserScope); err != nil {
			return nil, goerr.Wrap(err, "scan reflective row")
		}
		r.Embedding = unmarshalVector(emb)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListReflective returns an agent's observations, newest first.
func (s *Store) ListReflective(ctx context.Context, agentID string, limit int) ([]ReflectiveRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = CandidateLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reflectiveColumns+` FROM reflective_memories WHERE agent_id = ?
		 ORDER BY created_at DESC LIMIT ?`, aid, limit)
	if err != nil {
		return nil, goerr.Wrap(err, "list reflective records", goerr.V("agent", aid))
	}
	defer rows.Close()

	var out []ReflectiveRecord
	for rows.Next() {
		var r ReflectiveRecord
		var emb string
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Content, &emb, &r.CreatedAt, &r.LastAccessed,
			&r.Source, &r.Origin.Type, &r.Origin.Actor, &r.Origin.Ref, &r.UserScope); err != nil {
			return nil, goerr.Wrap(err, "scan reflective row")
		}
		r.Embedding = unmarshalVector(emb)
		out = append(out, r)
	}
	return out, rows.Err()
}

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/embedding"
	"github.com/ekailabs/ekai-memory/internal/vectormath"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    soul TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS agent_users (
    agent_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    first_seen TIMESTAMP NOT NULL,
    last_seen TIMESTAMP NOT NULL,
    interaction_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (agent_id, user_id)
);

CREATE TABLE IF NOT EXISTS episodic_memories (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    content TEXT NOT NULL,
    embedding TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_accessed TIMESTAMP NOT NULL,
    event_start TIMESTAMP,
    event_end TIMESTAMP,
    retrieval_count INTEGER NOT NULL DEFAULT 0,
    source TEXT NOT NULL DEFAULT '',
    origin_type TEXT NOT NULL DEFAULT '',
    origin_actor TEXT NOT NULL DEFAULT '',
    origin_ref TEXT NOT NULL DEFAULT '',
    user_scope TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS semantic_memories (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    subject TEXT NOT NULL,
    predicate TEXT NOT NULL,
    object TEXT NOT NULL,
    embedding TEXT NOT NULL,
    valid_from TIMESTAMP NOT NULL,
    valid_to TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    strength REAL NOT NULL DEFAULT 1.0,
    domain TEXT NOT NULL DEFAULT 'world',
    user_scope TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    origin_type TEXT NOT NULL DEFAULT '',
    origin_actor TEXT NOT NULL DEFAULT '',
    origin_ref TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS procedural_memories (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    trigger_text TEXT NOT NULL,
    goal TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    result TEXT NOT NULL DEFAULT '',
    steps TEXT NOT NULL DEFAULT '[]',
    embedding TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_accessed TIMESTAMP NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    origin_type TEXT NOT NULL DEFAULT '',
    origin_actor TEXT NOT NULL DEFAULT '',
    origin_ref TEXT NOT NULL DEFAULT '',
    user_scope TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reflective_memories (
    id TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    content TEXT NOT NULL,
    embedding TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    last_accessed TIMESTAMP NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    origin_type TEXT NOT NULL DEFAULT '',
    origin_actor TEXT NOT NULL DEFAULT '',
    origin_ref TEXT NOT NULL DEFAULT '',
    user_scope TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_episodic_agent_accessed ON episodic_memories(agent_id, last_accessed);
CREATE INDEX IF NOT EXISTS idx_semantic_agent_subject ON semantic_memories(agent_id, subject);
CREATE INDEX IF NOT EXISTS idx_semantic_agent_active ON semantic_memories(agent_id, valid_to);
CREATE INDEX IF NOT EXISTS idx_semantic_agent_strength ON semantic_memories(agent_id, strength, updated_at);
CREATE INDEX IF NOT EXISTS idx_procedural_agent_accessed ON procedural_memories(agent_id, last_accessed);
CREATE INDEX IF NOT EXISTS idx_reflective_agent_accessed ON reflective_memories(agent_id, last_accessed);
CREATE INDEX IF NOT EXISTS idx_agent_users_agent ON agent_users(agent_id);
`

// Store is the storage engine: it owns the SQLite schema, per-sector CRUD,
// bounded candidate scans, and multi-tenant scoping. All row access goes
// through the single embedded database file; the embedder is the only
// external call it makes.
type Store struct {
	db       *sql.DB
	embedder embedding.Embedder
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore opens (or creates) the database file, applies the schema, and
// bootstraps the default agent.
func NewStore(dbPath string, embedder embedding.Embedder, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, goerr.Wrap(err, "open memory database", goerr.V("path", dbPath))
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "create memory schema")
	}

	s := &Store{
		db:       db,
		embedder: embedder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}

	// The default agent exists from construction on; per-call ensure-exists
	// is kept only for arbitrary agent ids supplied by callers.
	if err := s.ensureAgent(context.Background(), DefaultAgentID); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// embed calls the external embedding provider. Provider failures become
// ErrProvider and fail the triggering ingest or query call.
func (s *Store) embed(ctx context.Context, text string, sector Sector) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text, string(sector))
	if err != nil {
		return nil, goerr.Wrap(ErrProvider, "embed text",
			goerr.V("sector", sector), goerr.V("cause", err.Error()))
	}
	return vec, nil
}

// normalizeAgentID validates and canonicalizes an agent identifier.
func normalizeAgentID(raw string) (string, error) {
	id := vectormath.NormalizeID(raw)
	if id == "" {
		return "", goerr.Wrap(ErrValidation, "invalid agent id", goerr.V("raw", raw))
	}
	return id, nil
}

// normalizeUserID validates and canonicalizes a user identifier. Empty
// input is allowed and means "no user scope".
func normalizeUserID(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	id := vectormath.NormalizeID(raw)
	if id == "" {
		return "", goerr.Wrap(ErrValidation, "invalid user id", goerr.V("raw", raw))
	}
	return id, nil
}

// marshalVector encodes an embedding as JSON for storage.
func marshalVector(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// unmarshalVector decodes a stored embedding. A corrupt blob yields nil,
// which downstream similarity math treats as zero similarity.
func unmarshalVector(s string) []float32 {
	var v []float32
	_ = json.Unmarshal([]byte(s), &v)
	return v
}

// nullTime converts an optional time for storage.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// timePtr converts a scanned nullable column back to an optional time.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

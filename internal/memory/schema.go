package memory

import (
	"time"
)

// Sector identifies a memory kind with its own embedding strategy.
type Sector string

const (
	SectorEpisodic   Sector = "episodic"
	SectorSemantic   Sector = "semantic"
	SectorProcedural Sector = "procedural"
	SectorReflective Sector = "reflective"
)

// DefaultAgentID is the distinguished agent that always exists and can
// never be deleted.
const DefaultAgentID = "default"

// Agent is a top-level memory namespace.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Soul      string    `json:"soul,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentUser tracks a human identity interacting within an agent's namespace.
// InteractionCount only ever goes up.
type AgentUser struct {
	AgentID          string    `json:"agent_id"`
	UserID           string    `json:"user_id"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	InteractionCount int       `json:"interaction_count"`
}

// Origin carries optional provenance metadata for a record.
type Origin struct {
	Type  string `json:"type,omitempty"`
	Actor string `json:"actor,omitempty"`
	Ref   string `json:"ref,omitempty"`
}

// EpisodicRecord is a dated experience. LastAccessed and RetrievalCount
// are mutated only by the retrieval path.
type EpisodicRecord struct {
	ID             string     `json:"id"`
	AgentID        string     `json:"agent_id"`
	Content        string     `json:"content"`
	Embedding      []float32  `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessed   time.Time  `json:"last_accessed"`
	EventStart     *time.Time `json:"event_start,omitempty"`
	EventEnd       *time.Time `json:"event_end,omitempty"`
	RetrievalCount int        `json:"retrieval_count"`
	Source         string     `json:"source,omitempty"`
	Origin         Origin     `json:"origin,omitempty"`
	UserScope      string     `json:"user_scope,omitempty"` // "" = agent-global
}

// SemanticRecord is a subject-predicate-object fact with temporal validity.
// A nil ValidTo means the fact is currently active. Facts are never
// mutated in place except to close ValidTo or bump Strength/UpdatedAt.
type SemanticRecord struct {
	ID        string     `json:"id"`
	AgentID   string     `json:"agent_id"`
	Subject   string     `json:"subject"`
	Predicate string     `json:"predicate"`
	Object    string     `json:"object"`
	Embedding []float32  `json:"-"`
	ValidFrom time.Time  `json:"valid_from"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Strength  float64    `json:"strength"` // evidence accumulator, >= 1.0
	Domain    string     `json:"domain"`   // "world" or "user"
	UserScope string     `json:"user_scope,omitempty"`
	Source    string     `json:"source,omitempty"`
	Origin    Origin     `json:"origin,omitempty"`
}

// Active reports whether the fact's validity window is still open.
func (r *SemanticRecord) Active() bool {
	return r.ValidTo == nil
}

// Fact domains.
const (
	DomainWorld = "world" // agent-global fact
	DomainUser  = "user"  // scoped to a specific user
)

// ProceduralRecord is a reusable workflow. Only the trigger is embedded;
// goal, context, result, and steps are descriptive payload.
type ProceduralRecord struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Trigger      string    `json:"trigger"`
	Goal         string    `json:"goal,omitempty"`
	Context      string    `json:"context,omitempty"`
	Result       string    `json:"result,omitempty"`
	Steps        []string  `json:"steps"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Source       string    `json:"source,omitempty"`
	Origin       Origin    `json:"origin,omitempty"`
	UserScope    string    `json:"user_scope,omitempty"`
}

// ReflectiveRecord is a free-text observation. It is stored and listed
// directly and never participates in gate scoring.
type ReflectiveRecord struct {
	ID           string    `json:"id"`
	AgentID      string    `json:"agent_id"`
	Content      string    `json:"content"`
	Embedding    []float32 `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	Source       string    `json:"source,omitempty"`
	Origin       Origin    `json:"origin,omitempty"`
	UserScope    string    `json:"user_scope,omitempty"`
}

// SemanticTriple is an incoming fact before consolidation.
type SemanticTriple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
	Domain    string `json:"domain,omitempty"` // defaults to "world"; "user" requires a userId
}

// EpisodicText is an incoming episodic component.
type EpisodicText struct {
	Content    string     `json:"content"`
	EventStart *time.Time `json:"event_start,omitempty"`
	EventEnd   *time.Time `json:"event_end,omitempty"`
}

// ProceduralWorkflow is an incoming procedural component.
type ProceduralWorkflow struct {
	Trigger string   `json:"trigger"`
	Goal    string   `json:"goal,omitempty"`
	Context string   `json:"context,omitempty"`
	Result  string   `json:"result,omitempty"`
	Steps   []string `json:"steps"`
}

// ReflectiveText is an incoming reflective observation.
type ReflectiveText struct {
	Content string `json:"content"`
}

// Components is the tagged union of everything one ingest call may carry.
// Each field is independent; any subset may be present.
type Components struct {
	Episodic   *EpisodicText       `json:"episodic,omitempty"`
	Semantic   []SemanticTriple    `json:"semantic,omitempty"`
	Procedural *ProceduralWorkflow `json:"procedural,omitempty"`
	Reflective *ReflectiveText     `json:"reflective,omitempty"`
}

func (c Components) empty() bool {
	return c.Episodic == nil && len(c.Semantic) == 0 && c.Procedural == nil && c.Reflective == nil
}

// IngestOptions controls provenance, dedup, and user scoping for an ingest call.
type IngestOptions struct {
	Source      string `json:"source,omitempty"`
	Deduplicate bool   `json:"deduplicate,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	Origin      Origin `json:"origin,omitempty"`
}

// RecordHandle identifies a record stored or matched by an ingest call.
type RecordHandle struct {
	ID     string `json:"id"`
	Sector Sector `json:"sector"`
	// Action reports what happened: "inserted", "merged", "superseded"
	// (semantic consolidation outcomes) or "duplicate" (dedup hit).
	Action string `json:"action"`
}

// Record handle actions.
const (
	ActionInserted   = "inserted"
	ActionMerged     = "merged"
	ActionSuperseded = "superseded"
	ActionDuplicate  = "duplicate"
)

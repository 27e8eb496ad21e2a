package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/vectormath"
)

const (
	// PredicateMatchThreshold is the inclusive cosine similarity at or
	// above which two predicates occupy the same slot for a subject.
	PredicateMatchThreshold = 0.9

	// MergeDelta is the strength increment applied when an incoming fact
	// corroborates an existing one.
	MergeDelta = 1.0
)

// predicateMatch pairs an active fact with its predicate similarity to
// the incoming triple.
type predicateMatch struct {
	fact SemanticRecord
	sim  float64
}

// embedCached embeds text through a per-ingest cache keyed by the exact
// string. Consolidation embeds the incoming predicate once and each
// unique existing predicate once; re-ingesting many triples for the same
// subject would otherwise re-embed the same predicates per triple.
func (s *Store) embedCached(ctx context.Context, cache map[string][]float32, text string, sector Sector) ([]float32, error) {
	if vec, ok := cache[text]; ok {
		return vec, nil
	}
	vec, err := s.embed(ctx, text, sector)
	if err != nil {
		return nil, err
	}
	cache[text] = vec
	return vec, nil
}

// consolidateTriple decides merge, supersede, or insert for one incoming
// fact against the active facts of its subject.
//
// The invariant this protects: for a given (subject, agent), at most one
// active fact exists per semantically-equivalent predicate slot. A
// contradicted fact gets its validity window closed, never deleted.
func (s *Store) consolidateTriple(ctx context.Context, agentID string, t SemanticTriple, opts IngestOptions, userID string, cache map[string][]float32) (*RecordHandle, error) {
	subject := strings.TrimSpace(t.Subject)
	predicate := strings.TrimSpace(t.Predicate)
	object := strings.TrimSpace(t.Object)
	if subject == "" || predicate == "" || object == "" {
		return nil, goerr.Wrap(ErrValidation, "semantic triple requires subject, predicate, and object")
	}

	domain := t.Domain
	if domain == "" {
		domain = DomainWorld
	}
	switch domain {
	case DomainWorld:
		// agent-global; no user scope
	case DomainUser:
		if userID == "" {
			return nil, goerr.Wrap(ErrValidation, "user-domain fact requires a user id",
				goerr.V("subject", subject))
		}
	default:
		return nil, goerr.Wrap(ErrValidation, "unknown fact domain", goerr.V("domain", domain))
	}

	active, err := s.ActiveFacts(ctx, agentID, subject)
	if err != nil {
		return nil, err
	}

	matches, err := s.matchPredicates(ctx, predicate, active, cache)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return s.insertFact(ctx, agentID, subject, predicate, object, domain, userID, opts, cache)
	}

	top := matches[0]
	if strings.EqualFold(top.fact.Object, object) {
		return s.mergeFact(ctx, &top.fact, opts)
	}
	return s.supersedeFact(ctx, &top.fact, agentID, subject, predicate, object, domain, userID, opts, cache)
}

// matchPredicates embeds the incoming predicate and each unique active
// predicate, keeping facts whose predicate similarity reaches the
// threshold, ordered by similarity then recency of update.
func (s *Store) matchPredicates(ctx context.Context, predicate string, active []SemanticRecord, cache map[string][]float32) ([]predicateMatch, error) {
	if len(active) == 0 {
		return nil, nil
	}
	newVec, err := s.embedCached(ctx, cache, predicate, SectorSemantic)
	if err != nil {
		return nil, err
	}

	sims := make(map[string]float64)
	var matches []predicateMatch
	for i := range active {
		p := active[i].Predicate
		sim, ok := sims[p]
		if !ok {
			vec, err := s.embedCached(ctx, cache, p, SectorSemantic)
			if err != nil {
				return nil, err
			}
			sim = vectormath.Cosine(newVec, vec)
			sims[p] = sim
		}
		if sim >= PredicateMatchThreshold {
			matches = append(matches, predicateMatch{fact: active[i], sim: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].sim != matches[j].sim {
			return matches[i].sim > matches[j].sim
		}
		return matches[i].fact.UpdatedAt.After(matches[j].fact.UpdatedAt)
	})
	return matches, nil
}

func (s *Store) insertFact(ctx context.Context, agentID, subject, predicate, object, domain, userID string, opts IngestOptions, cache map[string][]float32) (*RecordHandle, error) {
	vec, err := s.embedCached(ctx, cache, subject+" "+predicate+" "+object, SectorSemantic)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &SemanticRecord{
		ID:        "fact_" + uuid.New().String()[:12],
		AgentID:   agentID,
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Embedding: vec,
		ValidFrom: now,
		CreatedAt: now,
		UpdatedAt: now,
		Strength:  1.0,
		Domain:    domain,
		Source:    opts.Source,
		Origin:    opts.Origin,
	}
	if domain == DomainUser {
		rec.UserScope = userID
	}
	if err := s.insertSemantic(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Debug("fact inserted",
		zap.String("agent", agentID), zap.String("subject", subject), zap.String("id", rec.ID))
	return &RecordHandle{ID: rec.ID, Sector: SectorSemantic, Action: ActionInserted}, nil
}

// mergeFact corroborates an existing fact. On the deduplicating document
// path the strength bump is skipped so re-ingesting the same document
// cannot inflate rank; only missing provenance gets backfilled.
func (s *Store) mergeFact(ctx context.Context, fact *SemanticRecord, opts IngestOptions) (*RecordHandle, error) {
	if opts.Deduplicate {
		s.backfillSource(ctx, SectorSemantic, fact.AgentID, fact.ID, opts.Source)
		return &RecordHandle{ID: fact.ID, Sector: SectorSemantic, Action: ActionMerged}, nil
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE semantic_memories SET strength = strength + ?, updated_at = ?
		 WHERE id = ? AND agent_id = ?`,
		MergeDelta, s.now(), fact.ID, fact.AgentID)
	if err != nil {
		return nil, goerr.Wrap(err, "merge fact", goerr.V("id", fact.ID))
	}
	s.logger.Debug("fact merged",
		zap.String("agent", fact.AgentID), zap.String("id", fact.ID),
		zap.Float64("strength", fact.Strength+MergeDelta))
	return &RecordHandle{ID: fact.ID, Sector: SectorSemantic, Action: ActionMerged}, nil
}

// supersedeFact closes the contradicted fact's validity window and
// inserts the incoming triple as the new active fact.
func (s *Store) supersedeFact(ctx context.Context, old *SemanticRecord, agentID, subject, predicate, object, domain, userID string, opts IngestOptions, cache map[string][]float32) (*RecordHandle, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE semantic_memories SET valid_to = ?, updated_at = ?
		 WHERE id = ? AND agent_id = ? AND valid_to IS NULL`,
		now, now, old.ID, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "supersede fact", goerr.V("id", old.ID))
	}

	handle, err := s.insertFact(ctx, agentID, subject, predicate, object, domain, userID, opts, cache)
	if err != nil {
		return nil, err
	}
	handle.Action = ActionSuperseded
	s.logger.Debug("fact superseded",
		zap.String("agent", agentID), zap.String("old", old.ID), zap.String("new", handle.ID))
	return handle, nil
}

package memory

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"
)

// Ingest embeds and persists every component present, routing semantic
// triples through consolidation. It returns one handle per stored or
// matched record, duplicates included, so the caller can reference them.
//
// Each table write commits independently; there is no transaction
// spanning the components of one call. A crash mid-ingest can leave an
// episodic row written with its semantic siblings absent — accepted
// at-least-partial-ingest semantics, the storage driver serializes each
// individual write.
func (s *Store) Ingest(ctx context.Context, components Components, agentID string, opts IngestOptions) ([]RecordHandle, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	userID, err := normalizeUserID(opts.UserID)
	if err != nil {
		return nil, err
	}
	if components.empty() {
		return nil, goerr.Wrap(ErrValidation, "ingest requires at least one component")
	}

	if err := s.ensureAgent(ctx, aid); err != nil {
		return nil, err
	}
	if userID != "" {
		if err := s.upsertAgentUser(ctx, aid, userID); err != nil {
			return nil, err
		}
	}

	var handles []RecordHandle

	if components.Episodic != nil {
		h, err := s.ingestEpisodic(ctx, aid, userID, *components.Episodic, opts)
		if err != nil {
			return handles, err
		}
		handles = append(handles, *h)
	}

	if len(components.Semantic) > 0 {
		// One embedding cache per ingest call: predicates repeat across
		// triples and across consolidation rounds.
		cache := make(map[string][]float32)
		for _, triple := range components.Semantic {
			h, err := s.consolidateTriple(ctx, aid, triple, opts, userID, cache)
			if err != nil {
				return handles, err
			}
			handles = append(handles, *h)
		}
	}

	if components.Procedural != nil {
		h, err := s.ingestProcedural(ctx, aid, userID, *components.Procedural, opts)
		if err != nil {
			return handles, err
		}
		handles = append(handles, *h)
	}

	if components.Reflective != nil {
		h, err := s.ingestReflective(ctx, aid, userID, *components.Reflective, opts)
		if err != nil {
			return handles, err
		}
		handles = append(handles, *h)
	}

	s.logger.Debug("ingest complete",
		zap.String("agent", aid), zap.Int("records", len(handles)))
	return handles, nil
}

func (s *Store) ingestEpisodic(ctx context.Context, agentID, userID string, comp EpisodicText, opts IngestOptions) (*RecordHandle, error) {
	content := strings.TrimSpace(comp.Content)
	if content == "" {
		return nil, goerr.Wrap(ErrValidation, "episodic content is required")
	}

	vec, err := s.embed(ctx, content, SectorEpisodic)
	if err != nil {
		return nil, err
	}

	if opts.Deduplicate {
		if dup := s.findDuplicate(ctx, SectorEpisodic, agentID, userID, vec); dup != nil {
			if dup.Source == "" {
				s.backfillSource(ctx, SectorEpisodic, agentID, dup.ID, opts.Source)
			}
			return &RecordHandle{ID: dup.ID, Sector: SectorEpisodic, Action: ActionDuplicate}, nil
		}
	}

	now := s.now()
	rec := &EpisodicRecord{
		ID:           "mem_" + uuid.New().String()[:12],
		AgentID:      agentID,
		Content:      content,
		Embedding:    vec,
		CreatedAt:    now,
		LastAccessed: now,
		EventStart:   comp.EventStart,
		EventEnd:     comp.EventEnd,
		Source:       opts.Source,
		Origin:       opts.Origin,
		UserScope:    userID,
	}
	if err := s.insertEpisodic(ctx, rec); err != nil {
		return nil, err
	}
	return &RecordHandle{ID: rec.ID, Sector: SectorEpisodic, Action: ActionInserted}, nil
}

func (s *Store) ingestProcedural(ctx context.Context, agentID, userID string, comp ProceduralWorkflow, opts IngestOptions) (*RecordHandle, error) {
	trigger := strings.TrimSpace(comp.Trigger)
	if trigger == "" {
		return nil, goerr.Wrap(ErrValidation, "procedural trigger is required")
	}

	// Only the trigger is embedded; steps, goal, and result are payload.
	vec, err := s.embed(ctx, trigger, SectorProcedural)
	if err != nil {
		return nil, err
	}

	if opts.Deduplicate {
		if dup := s.findDuplicate(ctx, SectorProcedural, agentID, userID, vec); dup != nil {
			if dup.Source == "" {
				s.backfillSource(ctx, SectorProcedural, agentID, dup.ID, opts.Source)
			}
			return &RecordHandle{ID: dup.ID, Sector: SectorProcedural, Action: ActionDuplicate}, nil
		}
	}

	now := s.now()
	rec := &ProceduralRecord{
		ID:           "proc_" + uuid.New().String()[:12],
		AgentID:      agentID,
		Trigger:      trigger,
		Goal:         comp.Goal,
		Context:      comp.Context,
		Result:       comp.Result,
		Steps:        comp.Steps,
		Embedding:    vec,
		CreatedAt:    now,
		LastAccessed: now,
		Source:       opts.Source,
		Origin:       opts.Origin,
		UserScope:    userID,
	}
	if err := s.insertProcedural(ctx, rec); err != nil {
		return nil, err
	}
	return &RecordHandle{ID: rec.ID, Sector: SectorProcedural, Action: ActionInserted}, nil
}

func (s *Store) ingestReflective(ctx context.Context, agentID, userID string, comp ReflectiveText, opts IngestOptions) (*RecordHandle, error) {
	content := strings.TrimSpace(comp.Content)
	if content == "" {
		return nil, goerr.Wrap(ErrValidation, "reflective content is required")
	}

	vec, err := s.embed(ctx, content, SectorReflective)
	if err != nil {
		return nil, err
	}

	if opts.Deduplicate {
		if dup := s.findDuplicate(ctx, SectorReflective, agentID, userID, vec); dup != nil {
			if dup.Source == "" {
				s.backfillSource(ctx, SectorReflective, agentID, dup.ID, opts.Source)
			}
			return &RecordHandle{ID: dup.ID, Sector: SectorReflective, Action: ActionDuplicate}, nil
		}
	}

	now := s.now()
	rec := &ReflectiveRecord{
		ID:           "refl_" + uuid.New().String()[:12],
		AgentID:      agentID,
		Content:      content,
		Embedding:    vec,
		CreatedAt:    now,
		LastAccessed: now,
		Source:       opts.Source,
		Origin:       opts.Origin,
		UserScope:    userID,
	}
	if err := s.insertReflective(ctx, rec); err != nil {
		return nil, err
	}
	return &RecordHandle{ID: rec.ID, Sector: SectorReflective, Action: ActionInserted}, nil
}

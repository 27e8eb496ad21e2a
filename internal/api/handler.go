package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ekailabs/ekai-memory/internal/memory"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store  *memory.Store
	logger *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(store *memory.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Post("/memories", h.ingest)
		r.Post("/memories/query", h.query)
		r.Get("/memories/recent", h.recent)
		r.Get("/memories/summary", h.sectorSummary)
		r.Get("/memories/reflective", h.listReflective)
		r.Delete("/memories", h.deleteAll)
		r.Put("/memories/{id}", h.updateMemory)
		r.Delete("/memories/{id}", h.deleteMemory)

		r.Post("/agents", h.createAgent)
		r.Get("/agents", h.listAgents)
		r.Get("/agents/{id}", h.getAgent)
		r.Delete("/agents/{id}", h.deleteAgent)
		r.Get("/agents/{id}/users", h.listAgentUsers)

		r.Get("/graph/neighbors", h.graphNeighbors)
		r.Get("/graph/triples", h.graphTriples)
		r.Get("/graph/paths", h.graphPaths)
		r.Get("/graph/reachable", h.graphReachable)
		r.Get("/graph/history", h.factHistory)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	AgentID    string               `json:"agent_id"`
	Components memory.Components    `json:"components"`
	Options    memory.IngestOptions `json:"options"`
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = memory.DefaultAgentID
	}
	handles, err := h.store.Ingest(r.Context(), req.Components, req.AgentID, req.Options)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, map[string]any{"records": handles})
}

type queryRequest struct {
	AgentID string `json:"agent_id"`
	UserID  string `json:"user_id,omitempty"`
	Text    string `json:"text"`
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = memory.DefaultAgentID
	}
	result, err := h.store.Query(r.Context(), req.Text, req.AgentID, req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, result)
}

type updateRequest struct {
	AgentID string        `json:"agent_id"`
	Content string        `json:"content"`
	Sector  memory.Sector `json:"sector,omitempty"`
}

func (h *Handler) updateMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AgentID == "" {
		req.AgentID = memory.DefaultAgentID
	}
	updated, err := h.store.UpdateByID(r.Context(), id, req.Content, req.Sector, req.AgentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"updated": updated})
}

func (h *Handler) deleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	count, err := h.store.DeleteByID(r.Context(), id, h.agentParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"deleted": count})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.DeleteAll(r.Context(), h.agentParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"deleted": count})
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.GetRecent(r.Context(), h.agentParam(r), h.intParam(r, "limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"records": records})
}

func (h *Handler) sectorSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.GetSectorSummary(r.Context(), h.agentParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, summary)
}

func (h *Handler) listReflective(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.ListReflective(r.Context(), h.agentParam(r), h.intParam(r, "limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"records": records})
}

type createAgentRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Soul string `json:"soul,omitempty"`
}

func (h *Handler) createAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	agent, err := h.store.CreateAgent(r.Context(), req.ID, req.Name, req.Soul)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, agent)
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"agents": agents})
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := h.store.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, agent)
}

func (h *Handler) deleteAgent(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.DeleteAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"deleted": count})
}

func (h *Handler) listAgentUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListAgentUsers(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) graphNeighbors(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	neighbors, err := h.store.Neighbors(r.Context(), h.agentParam(r), entity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"entity": entity, "neighbors": neighbors})
}

func (h *Handler) graphTriples(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entity := q.Get("entity")
	opts := memory.TripleQuery{
		PredicateFilter: q.Get("predicate"),
		MaxResults:      h.intParam(r, "limit"),
		IncludeHistory:  q.Get("history") == "true",
	}

	var (
		triples []memory.SemanticRecord
		err     error
	)
	if q.Get("direction") == "in" {
		triples, err = h.store.FindTriplesByObject(r.Context(), h.agentParam(r), entity, opts)
	} else {
		triples, err = h.store.FindTriplesBySubject(r.Context(), h.agentParam(r), entity, opts)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"triples": triples})
}

func (h *Handler) graphPaths(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	paths, err := h.store.FindPaths(r.Context(), h.agentParam(r), q.Get("from"), q.Get("to"), h.intParam(r, "max_depth"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"paths": paths})
}

func (h *Handler) graphReachable(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	entities, err := h.store.FindReachableEntities(r.Context(), h.agentParam(r), entity, h.intParam(r, "max_depth"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"entity": entity, "reachable": entities})
}

func (h *Handler) factHistory(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	facts, err := h.store.FactHistory(r.Context(), h.agentParam(r), subject)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{"subject": subject, "facts": facts})
}

// agentParam resolves the agent query parameter, defaulting to the
// default agent.
func (h *Handler) agentParam(r *http.Request) string {
	if a := r.URL.Query().Get("agent"); a != "" {
		return a
	}
	return memory.DefaultAgentID
}

func (h *Handler) intParam(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// writeError maps core error kinds to HTTP status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memory.ErrValidation):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, memory.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, memory.ErrProtectedAgent):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, memory.ErrProvider):
		h.respondError(w, http.StatusBadGateway, err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, map[string]string{"error": msg})
}

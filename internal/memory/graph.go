package memory

import (
	"context"
	"sort"
	"strings"
)

// Default traversal bounds.
const (
	DefaultPathDepth  = 3
	DefaultReachDepth = 2
)

// TripleQuery filters direct edge lookups.
type TripleQuery struct {
	PredicateFilter string // substring match on the predicate, case-insensitive
	MaxResults      int
	IncludeHistory  bool // also return superseded facts
}

// GraphPath is one route between two entities: the ordered triples
// traversed and the hop count.
type GraphPath struct {
	Triples []SemanticRecord `json:"triples"`
	Depth   int              `json:"depth"`
}

// activeTriples loads the agent's fact edges, optionally including
// superseded history.
func (s *Store) activeTriples(ctx context.Context, agentID string, includeHistory bool) ([]SemanticRecord, error) {
	query := `SELECT ` + semanticColumns + ` FROM semantic_memories WHERE agent_id = ?`
	if !includeHistory {
		query += ` AND valid_to IS NULL`
	}
	query += ` ORDER BY updated_at DESC`
	return s.querySemantic(ctx, query, agentID)
}

// Neighbors returns the entities directly connected to entity: objects
// reachable over outgoing edges plus subjects over incoming ones.
func (s *Store) Neighbors(ctx context.Context, agentID, entity string) ([]string, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	triples, err := s.activeTriples(ctx, aid, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	add := func(e string) {
		if e != entity && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for i := range triples {
		if triples[i].Subject == entity {
			add(triples[i].Object)
		}
		if triples[i].Object == entity {
			add(triples[i].Subject)
		}
	}
	sort.Strings(out)
	return out, nil
}

// FindTriplesBySubject returns facts whose subject is entity.
func (s *Store) FindTriplesBySubject(ctx context.Context, agentID, entity string, q TripleQuery) ([]SemanticRecord, error) {
	return s.findTriples(ctx, agentID, entity, q, true)
}

// FindTriplesByObject returns facts whose object is entity.
func (s *Store) FindTriplesByObject(ctx context.Context, agentID, entity string, q TripleQuery) ([]SemanticRecord, error) {
	return s.findTriples(ctx, agentID, entity, q, false)
}

func (s *Store) findTriples(ctx context.Context, agentID, entity string, q TripleQuery, bySubject bool) ([]SemanticRecord, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	triples, err := s.activeTriples(ctx, aid, q.IncludeHistory)
	if err != nil {
		return nil, err
	}

	filter := strings.ToLower(q.PredicateFilter)
	var out []SemanticRecord
	for i := range triples {
		anchor := triples[i].Object
		if bySubject {
			anchor = triples[i].Subject
		}
		if anchor != entity {
			continue
		}
		if filter != "" && !strings.Contains(strings.ToLower(triples[i].Predicate), filter) {
			continue
		}
		out = append(out, triples[i])
		if q.MaxResults > 0 && len(out) >= q.MaxResults {
			break
		}
	}
	return out, nil
}

// edge is one traversal hop; the triple connects subject and object both
// ways for path purposes.
type edge struct {
	to     string
	triple *SemanticRecord
}

// adjacency builds the undirected edge map over the given triples.
func adjacency(triples []SemanticRecord) map[string][]edge {
	adj := make(map[string][]edge)
	for i := range triples {
		t := &triples[i]
		adj[t.Subject] = append(adj[t.Subject], edge{to: t.Object, triple: t})
		adj[t.Object] = append(adj[t.Object], edge{to: t.Subject, triple: t})
	}
	return adj
}

// FindPaths runs BFS over the fact graph and returns the bounded paths
// from one entity to another, each as its ordered triples plus depth.
// Cyclic graphs terminate: an entity already seen at a smaller or equal
// depth is never re-expanded.
func (s *Store) FindPaths(ctx context.Context, agentID, from, to string, maxDepth int) ([]GraphPath, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultPathDepth
	}
	triples, err := s.activeTriples(ctx, aid, false)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, nil
	}
	adj := adjacency(triples)

	type state struct {
		entity string
		path   []SemanticRecord
	}
	queue := []state{{entity: from}}
	bestDepth := map[string]int{from: 0}
	var paths []GraphPath

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := len(cur.path)
		if depth >= maxDepth {
			continue
		}
		for _, e := range adj[cur.entity] {
			next := append(append([]SemanticRecord{}, cur.path...), *e.triple)
			if e.to == to {
				paths = append(paths, GraphPath{Triples: next, Depth: len(next)})
				continue
			}
			nextDepth := depth + 1
			if seen, ok := bestDepth[e.to]; ok && nextDepth >= seen {
				continue
			}
			bestDepth[e.to] = nextDepth
			queue = append(queue, state{entity: e.to, path: next})
		}
	}

	sort.SliceStable(paths, func(i, j int) bool { return paths[i].Depth < paths[j].Depth })
	return paths, nil
}

// FindReachableEntities expands the BFS frontier from entity and returns
// every entity within maxDepth hops, excluding the start itself.
func (s *Store) FindReachableEntities(ctx context.Context, agentID, entity string, maxDepth int) ([]string, error) {
	aid, err := normalizeAgentID(agentID)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultReachDepth
	}
	triples, err := s.activeTriples(ctx, aid, false)
	if err != nil {
		return nil, err
	}
	adj := adjacency(triples)

	type frontier struct {
		entity string
		depth  int
	}
	queue := []frontier{{entity: entity}}
	visited := map[string]bool{entity: true}
	var out []string

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, e := range adj[cur.entity] {
			if visited[e.to] {
				continue
			}
			visited[e.to] = true
			out = append(out, e.to)
			queue = append(queue, frontier{entity: e.to, depth: cur.depth + 1})
		}
	}

	sort.Strings(out)
	return out, nil
}

package memory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/m-mizutani/goerr/v2"
)

// ensureAgent inserts the agent row if absent. Idempotent.
func (s *Store) ensureAgent(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		agentID, agentID, s.now())
	if err != nil {
		return goerr.Wrap(err, "ensure agent", goerr.V("agent", agentID))
	}
	return nil
}

// CreateAgent registers an agent namespace. Creating an agent that already
// exists updates its name and soul.
func (s *Store) CreateAgent(ctx context.Context, id, name, soul string) (*Agent, error) {
	agentID, err := normalizeAgentID(id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = agentID
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO agents (id, name, soul, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, soul = excluded.soul`,
		agentID, name, soul, s.now())
	if err != nil {
		return nil, goerr.Wrap(err, "create agent", goerr.V("agent", agentID))
	}
	return s.GetAgent(ctx, agentID)
}

// GetAgent returns a single agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*Agent, error) {
	agentID, err := normalizeAgentID(id)
	if err != nil {
		return nil, err
	}
	var a Agent
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, soul, created_at FROM agents WHERE id = ?`, agentID).
		Scan(&a.ID, &a.Name, &a.Soul, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "agent not found", goerr.V("agent", agentID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "get agent", goerr.V("agent", agentID))
	}
	return &a, nil
}

// ListAgents returns all agents ordered by creation time.
func (s *Store) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, soul, created_at FROM agents ORDER BY created_at`)
	if err != nil {
		return nil, goerr.Wrap(err, "list agents")
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.Soul, &a.CreatedAt); err != nil {
			return nil, goerr.Wrap(err, "scan agent")
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent, its users, and every record it owns,
// returning the number of deleted memory records. Deleting the default
// agent fails with ErrProtectedAgent.
func (s *Store) DeleteAgent(ctx context.Context, id string) (int64, error) {
	agentID, err := normalizeAgentID(id)
	if err != nil {
		return 0, err
	}
	if agentID == DefaultAgentID {
		return 0, goerr.Wrap(ErrProtectedAgent, "cannot delete default agent")
	}
	if _, err := s.GetAgent(ctx, agentID); err != nil {
		return 0, err
	}

	deleted, err := s.deleteAllRecords(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agent_users WHERE agent_id = ?`, agentID); err != nil {
		return deleted, goerr.Wrap(err, "delete agent users", goerr.V("agent", agentID))
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, agentID); err != nil {
		return deleted, goerr.Wrap(err, "delete agent", goerr.V("agent", agentID))
	}
	return deleted, nil
}

// upsertAgentUser records a user interaction within an agent's namespace.
// First sight inserts; every sight bumps last_seen and interaction_count.
func (s *Store) upsertAgentUser(ctx context.Context, agentID, userID string) error {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_users (agent_id, user_id, first_seen, last_seen, interaction_count)
		 VALUES (?, ?, ?, ?, 1)
		 ON CONFLICT (agent_id, user_id) DO UPDATE SET
		     last_seen = excluded.last_seen,
		     interaction_count = agent_users.interaction_count + 1`,
		agentID, userID, now, now)
	if err != nil {
		return goerr.Wrap(err, "upsert agent user",
			goerr.V("agent", agentID), goerr.V("user", userID))
	}
	return nil
}

// ListAgentUsers returns the users seen within an agent's namespace,
// most recently seen first.
func (s *Store) ListAgentUsers(ctx context.Context, id string) ([]AgentUser, error) {
	agentID, err := normalizeAgentID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent_id, user_id, first_seen, last_seen, interaction_count
		 FROM agent_users WHERE agent_id = ? ORDER BY last_seen DESC`, agentID)
	if err != nil {
		return nil, goerr.Wrap(err, "list agent users", goerr.V("agent", agentID))
	}
	defer rows.Close()

	var users []AgentUser
	for rows.Next() {
		var u AgentUser
		if err := rows.Scan(&u.AgentID, &u.UserID, &u.FirstSeen, &u.LastSeen, &u.InteractionCount); err != nil {
			return nil, goerr.Wrap(err, "scan agent user")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

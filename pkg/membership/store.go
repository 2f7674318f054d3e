// Package membership provides a SQL-backed reference implementation of
// the team membership and custom-role collaborator interfaces. The
// authorization core only sees the interfaces; deployments may replace
// this with any other backend.
package membership

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lnkday/authcore/pkg/principal"
)

// Store handles membership and custom-role persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a membership store on an existing database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// IsTeamMember reports whether a principal belongs to a team.
func (s *Store) IsTeamMember(ctx context.Context, principalID, teamID string) (bool, error) {
	query := `SELECT 1 FROM team_members WHERE principal_id = ? AND team_id = ? LIMIT 1`

	var one int
	err := s.db.QueryRowContext(ctx, query, principalID, teamID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

// GetPermissions returns a custom role's permission list. An unknown
// role resolves to an empty list, which is valid but maximally
// restrictive.
func (s *Store) GetPermissions(ctx context.Context, roleID string) ([]principal.Permission, error) {
	query := `SELECT permissions FROM custom_roles WHERE id = ?`

	var permissionsJSON string
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(&permissionsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load custom role: %w", err)
	}

	var perms []principal.Permission
	if permissionsJSON != "" {
		if err := json.Unmarshal([]byte(permissionsJSON), &perms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal custom role permissions: %w", err)
		}
	}
	return perms, nil
}

// MembersOfCustomRole lists the principals currently holding a custom
// role. Feeds the invalidator's batch version bump when the role's
// permission list changes.
func (s *Store) MembersOfCustomRole(ctx context.Context, roleID string) ([]string, error) {
	query := `SELECT principal_id FROM team_members WHERE custom_role_id = ?`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list custom role members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddMember records a principal's membership in a team.
func (s *Store) AddMember(ctx context.Context, principalID, teamID string, role principal.Role, customRoleID string) error {
	query := `
		INSERT INTO team_members (principal_id, team_id, role, custom_role_id)
		VALUES (?, ?, ?, ?)
	`
	var customRole interface{}
	if customRoleID != "" {
		customRole = customRoleID
	}
	if _, err := s.db.ExecContext(ctx, query, principalID, teamID, string(role), customRole); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a principal's membership in a team.
func (s *Store) RemoveMember(ctx context.Context, principalID, teamID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE principal_id = ? AND team_id = ?`,
		principalID, teamID,
	); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

// UpsertCustomRole stores a custom role's permission list.
func (s *Store) UpsertCustomRole(ctx context.Context, roleID, teamID string, perms []principal.Permission) error {
	permissionsJSON, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO custom_roles (id, team_id, permissions)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET permissions = excluded.permissions
	`
	if _, err := s.db.ExecContext(ctx, query, roleID, teamID, string(permissionsJSON)); err != nil {
		return fmt.Errorf("failed to upsert custom role: %w", err)
	}
	return nil
}

// Migrate creates the membership tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS team_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			principal_id TEXT NOT NULL,
			team_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'MEMBER',
			custom_role_id TEXT,
			added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(principal_id, team_id)
		);
		CREATE INDEX IF NOT EXISTS idx_team_members_principal ON team_members(principal_id);
		CREATE INDEX IF NOT EXISTS idx_team_members_custom_role ON team_members(custom_role_id);

		CREATE TABLE IF NOT EXISTS custom_roles (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL,
			permissions TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run membership migrations: %w", err)
	}
	return nil
}

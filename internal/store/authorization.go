package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// UserRoles returns the roles granted to a user, sorted.
func (s *SQLStore) UserRoles(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.query(ctx, "SELECT role FROM user_role WHERE user_id = ? ORDER BY role", userID)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UserAssignments returns every assignment of a user, oldest first,
// regardless of its active flags.
func (s *SQLStore) UserAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.query(ctx, `SELECT id, user_id, project, administrative_region, department, role, active, activated, created_at
FROM project_assignment WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var (
			a                        Assignment
			region, department, role sql.NullString
			createdAt                int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Project, &region, &department, &role,
			&a.Active, &a.Activated, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.Region = region.String
		a.Department = department.String
		a.Role = role.String
		a.CreatedAt = fromMicros(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActiveProjects returns ids of live project rows whose active field is true.
func (s *SQLStore) ActiveProjects(ctx context.Context) ([]string, error) {
	projects, err := s.Query(ctx, "project", nil)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		if active, _ := p["active"].(bool); !active {
			continue
		}
		if id, ok := p.ID(); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AddAssignment stores a new assignment. ID and CreatedAt are generated.
func (s *SQLStore) AddAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	if strings.TrimSpace(a.UserID) == "" || strings.TrimSpace(a.Project) == "" {
		return Assignment{}, fmt.Errorf("assignment needs a user and a project")
	}
	a.ID = ulid.Make().String()
	a.CreatedAt = s.clock.Now()

	_, err := s.exec(ctx, `INSERT INTO project_assignment
(id, user_id, project, administrative_region, department, role, active, activated, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Project, nullable(a.Region), nullable(a.Department), nullable(a.Role),
		a.Active, a.Activated, toMicros(a.CreatedAt))
	if err != nil {
		return Assignment{}, fmt.Errorf("insert assignment: %w", err)
	}
	a.CreatedAt = fromMicros(toMicros(a.CreatedAt))
	return a, nil
}

// DeactivateAssignment clears the active flag of an assignment.
func (s *SQLStore) DeactivateAssignment(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "UPDATE project_assignment SET active = ? WHERE id = ?", false, id)
	if err != nil {
		return fmt.Errorf("deactivate assignment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantRole gives a user a role. Granting an existing role is a no-op.
func (s *SQLStore) GrantRole(ctx context.Context, userID, role string) error {
	_, err := s.exec(ctx,
		"INSERT INTO user_role (user_id, role) VALUES (?, ?) ON CONFLICT (user_id, role) DO NOTHING",
		userID, role)
	if err != nil {
		return fmt.Errorf("grant role: %w", err)
	}
	return nil
}

// LinkCategory associates an issue category with a project.
func (s *SQLStore) LinkCategory(ctx context.Context, categoryID, projectID string) error {
	_, err := s.exec(ctx,
		`INSERT INTO issue_category_project (issue_category_id, project_id) VALUES (?, ?)
ON CONFLICT (issue_category_id, project_id) DO NOTHING`,
		categoryID, projectID)
	if err != nil {
		return fmt.Errorf("link category: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package postgres

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/taskhub/pkg/storage"
)

const projectColumns = "id, name, description, created_by, created_at, updated_at"

func scanProject(row rowScanner) (*storage.Project, error) {
	var p storage.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.Members = []string{}
	return &p, nil
}

// CreateProject inserts a project and its members atomically
func (s *Store) CreateProject(ctx context.Context, project *storage.Project) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			project.ID, project.Name, project.Description, project.CreatedBy, project.CreatedAt.UTC(), project.UpdatedAt.UTC())
		if err != nil {
			return mapError("create project", err)
		}
		return s.insertMembers(ctx, tx, project.ID, project.Members)
	})
}

// GetProject returns a project with its members
func (s *Store) GetProject(ctx context.Context, id string) (*storage.Project, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+projectColumns+` FROM projects WHERE id = ?`), id)
	p, err := scanProject(row)
	if err != nil {
		return nil, mapError("get project", err)
	}
	if err := s.attachMembers(ctx, s.db, []*storage.Project{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject replaces a project's fields and member set
func (s *Store) UpdateProject(ctx context.Context, project *storage.Project) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE projects SET name = ?, description = ?, updated_at = ? WHERE id = ?`),
			project.Name, project.Description, project.UpdatedAt.UTC(), project.ID)
		if err != nil {
			return mapError("update project", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM project_members WHERE project_id = ?`), project.ID); err != nil {
			return mapError("clear project members", err)
		}
		return s.insertMembers(ctx, tx, project.ID, project.Members)
	})
}

// ListVisibleProjects returns projects userID created or is a member of
func (s *Store) ListVisibleProjects(ctx context.Context, userID string) ([]*storage.Project, error) {
	return s.listProjects(ctx, s.db, s.q(`SELECT `+projectColumns+` FROM projects p
		WHERE p.created_by = ?
		   OR EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)
		ORDER BY p.created_at, p.id`), userID, userID)
}

// ListProjects returns every project
func (s *Store) ListProjects(ctx context.Context) ([]*storage.Project, error) {
	return s.listProjects(ctx, s.replica(), `SELECT `+projectColumns+` FROM projects ORDER BY created_at, id`)
}

// CountProjects returns the number of projects
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	return s.count(ctx, "projects")
}

func (s *Store) listProjects(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]*storage.Project, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list projects", err)
	}
	defer rows.Close()

	projects := make([]*storage.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, mapError("scan project", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list projects", err)
	}
	rows.Close()

	if err := s.attachMembers(ctx, db, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *Store) insertMembers(ctx context.Context, ex execer, projectID string, members []string) error {
	for i, userID := range storage.Dedupe(members) {
		_, err := ex.ExecContext(ctx, s.q(`INSERT INTO project_members (project_id, user_id, position) VALUES (?, ?, ?)`),
			projectID, userID, i)
		if err != nil {
			return mapError("add project member", err)
		}
	}
	return nil
}

// attachMembers loads members for every project in one query
func (s *Store) attachMembers(ctx context.Context, q queryer, projects []*storage.Project) error {
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[string]*storage.Project, len(projects))
	args := make([]interface{}, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		args = append(args, p.ID)
	}

	rows, err := q.QueryContext(ctx, s.q(`SELECT project_id, user_id FROM project_members
		WHERE project_id IN (`+placeholders(len(args))+`)
		ORDER BY project_id, position`), args...)
	if err != nil {
		return mapError("load project members", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID, userID string
		if err := rows.Scan(&projectID, &userID); err != nil {
			return mapError("scan project member", err)
		}
		if p, ok := byID[projectID]; ok {
			p.Members = append(p.Members, userID)
		}
	}
	return rows.Err()
}

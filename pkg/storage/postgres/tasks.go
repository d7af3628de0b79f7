package postgres

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/taskhub/pkg/storage"
)

const taskColumns = "id, title, description, status, priority, due_date, created_by, assigned_to, project_id, created_at, updated_at"

func scanTask(row rowScanner) (*storage.Task, error) {
	var (
		t          storage.Task
		status     string
		priority   string
		due        sql.NullTime
		assignedTo sql.NullString
		projectID  sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &due,
		&t.CreatedBy, &assignedTo, &projectID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	t.Status = storage.TaskStatus(status)
	t.Priority = storage.Priority(priority)
	if due.Valid {
		d := due.Time.UTC()
		t.DueDate = &d
	}
	t.AssignedTo = assignedTo.String
	t.ProjectID = projectID.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	t.Dependencies = []string{}
	return &t, nil
}

// CreateTask inserts a task and its dependency list atomically
func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.q(`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			task.ID, task.Title, task.Description, string(task.Status), string(task.Priority), nullTime(task.DueDate),
			task.CreatedBy, nullString(task.AssignedTo), nullString(task.ProjectID), task.CreatedAt.UTC(), task.UpdatedAt.UTC())
		if err != nil {
			return mapError("create task", err)
		}
		return s.insertDependencies(ctx, tx, task.ID, task.Dependencies)
	})
}

// GetTask returns a task with its dependencies
func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if err != nil {
		return nil, mapError("get task", err)
	}
	if err := s.attachDependencies(ctx, s.db, []*storage.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask replaces a task's fields and dependency list. CreatedBy and
// CreatedAt never change.
func (s *Store) UpdateTask(ctx context.Context, task *storage.Task) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?,
			due_date = ?, assigned_to = ?, project_id = ?, updated_at = ? WHERE id = ?`),
			task.Title, task.Description, string(task.Status), string(task.Priority), nullTime(task.DueDate),
			nullString(task.AssignedTo), nullString(task.ProjectID), task.UpdatedAt.UTC(), task.ID)
		if err != nil {
			return mapError("update task", err)
		}
		if err := expectOne(res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM task_dependencies WHERE task_id = ?`), task.ID); err != nil {
			return mapError("clear task dependencies", err)
		}
		return s.insertDependencies(ctx, tx, task.ID, task.Dependencies)
	})
}

// ListVisibleTasks returns tasks created by or assigned to userID
func (s *Store) ListVisibleTasks(ctx context.Context, userID, projectID string) ([]*storage.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE (created_by = ? OR assigned_to = ?)`
	args := []interface{}{userID, userID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, mapError("list tasks", err)
	}
	defer rows.Close()

	tasks := make([]*storage.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, mapError("scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("list tasks", err)
	}
	rows.Close()

	if err := s.attachDependencies(ctx, s.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountTasks returns the number of tasks
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	return s.count(ctx, "tasks")
}

func (s *Store) insertDependencies(ctx context.Context, ex execer, taskID string, deps []string) error {
	for i, dep := range storage.Dedupe(deps) {
		_, err := ex.ExecContext(ctx, s.q(`INSERT INTO task_dependencies (task_id, depends_on, position) VALUES (?, ?, ?)`),
			taskID, dep, i)
		if err != nil {
			return mapError("add task dependency", err)
		}
	}
	return nil
}

func (s *Store) attachDependencies(ctx context.Context, q queryer, tasks []*storage.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[string]*storage.Task, len(tasks))
	args := make([]interface{}, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		args = append(args, t.ID)
	}

	rows, err := q.QueryContext(ctx, s.q(`SELECT task_id, depends_on FROM task_dependencies
		WHERE task_id IN (`+placeholders(len(args))+`)
		ORDER BY task_id, position`), args...)
	if err != nil {
		return mapError("load task dependencies", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, dep string
		if err := rows.Scan(&taskID, &dep); err != nil {
			return mapError("scan task dependency", err)
		}
		if t, ok := byID[taskID]; ok {
			t.Dependencies = append(t.Dependencies, dep)
		}
	}
	return rows.Err()
}

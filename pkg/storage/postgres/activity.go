package postgres

import (
	"context"
	"database/sql"

	"github.com/platinummonkey/taskhub/pkg/storage"
)

// AppendActivity inserts one activity entry
func (s *Store) AppendActivity(ctx context.Context, entry *storage.ActivityEntry) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO activities (id, user_id, action, task_id, project_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		entry.ID, entry.UserID, entry.Action, nullString(entry.TaskID), nullString(entry.ProjectID), entry.Timestamp.UTC())
	return mapError("append activity", err)
}

// ListActivity returns the newest entries for userID first. A limit of zero
// or less returns everything.
func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]*storage.ActivityEntry, error) {
	query := `SELECT id, user_id, action, task_id, project_id, created_at FROM activities
		WHERE user_id = ? ORDER BY created_at DESC, seq DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.replica().QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, mapError("list activity", err)
	}
	defer rows.Close()

	entries := make([]*storage.ActivityEntry, 0)
	for rows.Next() {
		var (
			e         storage.ActivityEntry
			taskID    sql.NullString
			projectID sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &taskID, &projectID, &e.Timestamp); err != nil {
			return nil, mapError("scan activity", err)
		}
		e.TaskID = taskID.String
		e.ProjectID = projectID.String
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

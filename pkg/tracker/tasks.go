package tracker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/broadcast"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// TaskInput creates or partially updates a task. Nil fields are left alone
// on update; an empty DueDate, AssignedTo or ProjectID clears the field.
type TaskInput struct {
	Title        *string  `json:"title,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Status       *string  `json:"status,omitempty"`
	Priority     *string  `json:"priority,omitempty"`
	DueDate      *string  `json:"dueDate,omitempty"`
	AssignedTo   *string  `json:"assignedTo,omitempty"`
	ProjectID    *string  `json:"projectId,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// TaskService handles tasks
type TaskService struct {
	*core
}

// List returns tasks the caller created or is assigned, optionally within
// one project
func (s *TaskService) List(ctx context.Context, identity auth.Identity, projectID string) (_ []*TaskView, err error) {
	ctx, span := startSpan(ctx, "TaskService.List", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	tasks, err := s.Store.ListVisibleTasks(ctx, identity.ID, projectID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return s.populate(ctx, tasks...)
}

// Get returns one task the caller may read
func (s *TaskService) Get(ctx context.Context, identity auth.Identity, id string) (_ *TaskView, err error) {
	ctx, span := startSpan(ctx, "TaskService.Get", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	task, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, storeError(err, "task")
	}
	if err := s.authorize(ctx, "task.read", identity, s.Policy.CanReadTask(identity, task)); err != nil {
		return nil, err
	}
	return s.populateOne(ctx, task)
}

// Create stores a new task. Admins only.
func (s *TaskService) Create(ctx context.Context, identity auth.Identity, in TaskInput) (_ *TaskView, err error) {
	ctx, span := startSpan(ctx, "TaskService.Create")
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, "task.create", identity, s.Policy.CanCreateTask(identity)); err != nil {
		return nil, err
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, apperrors.InvalidInput("title", "title is required")
	}

	now := s.timestamp()
	task := &storage.Task{
		ID:           uuid.NewString(),
		Status:       storage.StatusToDo,
		Priority:     storage.PriorityLow,
		CreatedBy:    identity.ID,
		Dependencies: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.apply(ctx, task, in); err != nil {
		return nil, err
	}

	if err := s.Store.CreateTask(ctx, task); err != nil {
		return nil, storeError(err, "task")
	}

	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.TaskCreated(task.Title), TaskID: task.ID, ProjectID: task.ProjectID})
	view, err := s.populateOne(ctx, task)
	if err != nil {
		return nil, err
	}
	s.Broadcaster.Emit(ctx, broadcast.EventTaskCreated, view)
	return view, nil
}

// Update applies a partial update. Requires admin role and authorship.
func (s *TaskService) Update(ctx context.Context, identity auth.Identity, id string, in TaskInput) (_ *TaskView, err error) {
	ctx, span := startSpan(ctx, "TaskService.Update", attribute.String("task.id", id))
	defer func() { endSpan(span, err) }()

	task, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, storeError(err, "task")
	}
	if err := s.authorize(ctx, "task.update", identity, s.Policy.CanUpdateTask(identity, task)); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, task, in); err != nil {
		return nil, err
	}
	task.UpdatedAt = s.timestamp()

	if err := s.Store.UpdateTask(ctx, task); err != nil {
		return nil, storeError(err, "task")
	}

	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.TaskUpdated(task.Title), TaskID: task.ID, ProjectID: task.ProjectID})
	view, err := s.populateOne(ctx, task)
	if err != nil {
		return nil, err
	}
	s.Broadcaster.Emit(ctx, broadcast.EventTaskUpdated, view)
	return view, nil
}

// UpdateStatus moves a task to status. The creator, the assignee and the
// owner of the task's project may do this.
func (s *TaskService) UpdateStatus(ctx context.Context, identity auth.Identity, id, status string) (_ *TaskView, err error) {
	ctx, span := startSpan(ctx, "TaskService.UpdateStatus", attribute.String("task.id", id), attribute.String("task.status", status))
	defer func() { endSpan(span, err) }()

	task, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, storeError(err, "task")
	}

	var parent *storage.Project
	if task.ProjectID != "" {
		parent, err = s.Store.GetProject(ctx, task.ProjectID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.Internal(err)
		}
	}
	if err := s.authorize(ctx, "task.status", identity, s.Policy.CanUpdateTaskStatus(identity, task, parent)); err != nil {
		return nil, err
	}

	next := storage.TaskStatus(strings.TrimSpace(status))
	if !next.Valid() {
		return nil, apperrors.InvalidInput("status", "status must be one of To Do, In Progress, In Review, Done")
	}
	task.Status = next
	task.UpdatedAt = s.timestamp()

	if err := s.Store.UpdateTask(ctx, task); err != nil {
		return nil, storeError(err, "task")
	}
	s.Recorder.Record(ctx, audit.Entry{
		UserID:    identity.ID,
		Action:    audit.TaskStatusUpdated(task.Title, string(next)),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
	})

	fresh, err := s.Store.GetTask(ctx, id)
	if err != nil {
		return nil, storeError(err, "task")
	}
	view, err := s.populateOne(ctx, fresh)
	if err != nil {
		return nil, err
	}
	s.Broadcaster.Emit(ctx, broadcast.EventTaskUpdated, view)
	return view, nil
}

// Stats counts the caller's visible tasks per status and how many are overdue
func (s *TaskService) Stats(ctx context.Context, identity auth.Identity) (_ *TaskStats, err error) {
	ctx, span := startSpan(ctx, "TaskService.Stats")
	defer func() { endSpan(span, err) }()

	tasks, err := s.Store.ListVisibleTasks(ctx, identity.ID, "")
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.timestamp()
	stats := &TaskStats{ByStatus: make(map[storage.TaskStatus]int, len(storage.Statuses))}
	for _, status := range storage.Statuses {
		stats.ByStatus[status] = 0
	}
	for _, t := range tasks {
		stats.Total++
		stats.ByStatus[t.Status]++
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != storage.StatusDone {
			stats.Overdue++
		}
	}
	return stats, nil
}

// apply validates in and copies it onto task
func (s *TaskService) apply(ctx context.Context, task *storage.Task, in TaskInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return apperrors.InvalidInput("title", "title cannot be empty")
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		status := storage.TaskStatus(strings.TrimSpace(*in.Status))
		if !status.Valid() {
			return apperrors.InvalidInput("status", "status must be one of To Do, In Progress, In Review, Done")
		}
		task.Status = status
	}
	if in.Priority != nil {
		priority := storage.Priority(strings.TrimSpace(*in.Priority))
		if !priority.Valid() {
			return apperrors.InvalidInput("priority", "priority must be one of High, Medium, Low")
		}
		task.Priority = priority
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return err
		}
		task.DueDate = due
	}
	if in.AssignedTo != nil {
		assignee := strings.TrimSpace(*in.AssignedTo)
		if assignee != "" {
			if err := s.exists("assignedTo", "assigned user", func() error {
				_, err := s.Store.GetUser(ctx, assignee)
				return err
			}); err != nil {
				return err
			}
		}
		task.AssignedTo = assignee
	}
	if in.ProjectID != nil {
		projectID := strings.TrimSpace(*in.ProjectID)
		if projectID != "" {
			if err := s.exists("projectId", "project", func() error {
				_, err := s.Store.GetProject(ctx, projectID)
				return err
			}); err != nil {
				return err
			}
		}
		task.ProjectID = projectID
	}
	if in.Dependencies != nil {
		deps := storage.Dedupe(in.Dependencies)
		for _, dep := range deps {
			if dep == task.ID {
				return apperrors.InvalidInput("dependencies", "a task cannot depend on itself")
			}
			dep := dep
			if err := s.exists("dependencies", "dependency "+dep, func() error {
				_, err := s.Store.GetTask(ctx, dep)
				return err
			}); err != nil {
				return err
			}
		}
		task.Dependencies = deps
	}
	return nil
}

// exists runs lookup and reports a missing reference as InvalidInput on field
func (s *TaskService) exists(field, what string, lookup func() error) error {
	err := lookup()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.InvalidInput(field, what+" does not exist")
	default:
		return apperrors.Internal(err)
	}
}

// parseDueDate accepts RFC 3339 or a plain date. Empty clears the date.
func parseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperrors.InvalidInput("dueDate", "dueDate must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
}

package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/broadcast"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

type taskWorld struct {
	*fixture
	admin   auth.Identity
	ann     auth.Identity
	bob     auth.Identity
	project *storage.Project
}

func newTaskWorld(t *testing.T, opts ...fixtureOption) *taskWorld {
	t.Helper()
	f := newFixture(t, opts...)
	w := &taskWorld{
		fixture: f,
		admin:   f.register(t, "root", auth.RoleAdmin),
		ann:     f.register(t, "ann", auth.RoleMember),
		bob:     f.register(t, "bob", auth.RoleMember),
	}
	project, err := f.svc.Projects.Create(context.Background(), w.admin, ProjectInput{Name: strPtr("P1")})
	require.NoError(t, err)
	w.project = project
	return w
}

func TestTaskLifecycleScenario(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)

	created, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{
		Title:      strPtr("Roadmap"),
		AssignedTo: strPtr(w.ann.ID),
		ProjectID:  strPtr(w.project.ID),
	})
	require.NoError(t, err)
	assert.Equal(t, storage.StatusToDo, created.Status)
	assert.Equal(t, storage.PriorityLow, created.Priority)
	require.NotNil(t, created.Project)
	assert.Equal(t, "P1", created.Project.Name)
	require.NotNil(t, created.Assignee)
	assert.Equal(t, "ann", created.Assignee.Name)

	got, err := w.svc.Tasks.Get(ctx, w.ann, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", got.Title)

	_, err = w.svc.Tasks.Get(ctx, w.bob, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	before := len(w.activity(t, w.ann.ID))
	updated, err := w.svc.Tasks.UpdateStatus(ctx, w.ann, created.ID, "Done")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusDone, updated.Status)

	entries := w.activity(t, w.ann.ID)
	require.Len(t, entries, before+1)
	assert.Equal(t, "Updated task Roadmap status to Done", entries[0].Action)
	assert.Equal(t, created.ID, entries[0].TaskID)
	assert.Equal(t, w.project.ID, entries[0].ProjectID)

	assert.Equal(t, []string{
		broadcast.EventProjectCreated,
		broadcast.EventTaskCreated,
		broadcast.EventTaskUpdated,
	}, w.broadcaster.names())
}

func TestCreateTask(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)

	t.Run("admins only", func(t *testing.T) {
		_, err := w.svc.Tasks.Create(ctx, w.ann, TaskInput{Title: strPtr("Mine")})
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		n, err := w.store.CountTasks(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("all fields", func(t *testing.T) {
		task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{
			Title:       strPtr("Launch"),
			Description: strPtr("countdown"),
			Status:      strPtr("In Progress"),
			Priority:    strPtr("High"),
			DueDate:     strPtr("2026-12-01"),
		})
		require.NoError(t, err)
		assert.Equal(t, storage.StatusInProgress, task.Status)
		assert.Equal(t, storage.PriorityHigh, task.Priority)
		require.NotNil(t, task.DueDate)
		assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), *task.DueDate)
		assert.Nil(t, task.Project)
		assert.Nil(t, task.Assignee)
		assert.Equal(t, "Created task Launch", w.activity(t, w.admin.ID)[0].Action)
	})

	invalid := []struct {
		name  string
		input TaskInput
		field string
	}{
		{"missing title", TaskInput{}, "title"},
		{"blank title", TaskInput{Title: strPtr("  ")}, "title"},
		{"bad status", TaskInput{Title: strPtr("x"), Status: strPtr("Blocked")}, "status"},
		{"bad priority", TaskInput{Title: strPtr("x"), Priority: strPtr("Urgent")}, "priority"},
		{"bad due date", TaskInput{Title: strPtr("x"), DueDate: strPtr("next week")}, "dueDate"},
		{"unknown assignee", TaskInput{Title: strPtr("x"), AssignedTo: strPtr("ghost")}, "assignedTo"},
		{"unknown project", TaskInput{Title: strPtr("x"), ProjectID: strPtr("ghost")}, "projectId"},
		{"unknown dependency", TaskInput{Title: strPtr("x"), Dependencies: []string{"ghost"}}, "dependencies"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.svc.Tasks.Create(ctx, w.admin, tt.input)
			require.Error(t, err)
			var appErr *apperrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperrors.KindInvalidInput, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)
	other := w.register(t, "other", auth.RoleAdmin)

	task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("Draft"), AssignedTo: strPtr(w.ann.ID)})
	require.NoError(t, err)

	t.Run("non-creator is forbidden and nothing changes", func(t *testing.T) {
		// ann is the assignee but not an admin; other is an admin but not the creator
		for _, caller := range []auth.Identity{w.ann, other} {
			_, err := w.svc.Tasks.Update(ctx, caller, task.ID, TaskInput{Title: strPtr("Hijacked")})
			assert.ErrorIs(t, err, apperrors.ErrForbidden)
		}
		stored, err := w.store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "Draft", stored.Title)
		assert.Len(t, w.activity(t, other.ID), 1)
	})

	t.Run("creator updates", func(t *testing.T) {
		dep, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("Prereq")})
		require.NoError(t, err)

		updated, err := w.svc.Tasks.Update(ctx, w.admin, task.ID, TaskInput{
			Title:        strPtr("Final"),
			AssignedTo:   strPtr(""),
			Dependencies: []string{dep.ID, dep.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "Final", updated.Title)
		assert.Empty(t, updated.AssignedTo)
		assert.Nil(t, updated.Assignee)
		assert.Equal(t, []string{dep.ID}, updated.Dependencies)
		assert.Equal(t, "Updated task Final", w.activity(t, w.admin.ID)[0].Action)
	})

	t.Run("self dependency", func(t *testing.T) {
		_, err := w.svc.Tasks.Update(ctx, w.admin, task.ID, TaskInput{Dependencies: []string{task.ID}})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("missing task", func(t *testing.T) {
		_, err := w.svc.Tasks.Update(ctx, w.admin, "missing", TaskInput{Title: strPtr("x")})
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestUpdateTaskStatusPermissions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  func(t *testing.T, w *taskWorld) auth.Identity
		allowed bool
	}{
		{"creator", func(t *testing.T, w *taskWorld) auth.Identity { return w.admin }, true},
		{"assignee", func(t *testing.T, w *taskWorld) auth.Identity { return w.ann }, true},
		{"project owner", func(t *testing.T, w *taskWorld) auth.Identity { return w.bob }, true},
		{"unrelated admin", func(t *testing.T, w *taskWorld) auth.Identity { return w.register(t, "outsider", auth.RoleAdmin) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTaskWorld(t, withMembersCreatingProjects)
			owned, err := w.svc.Projects.Create(ctx, w.bob, ProjectInput{Name: strPtr("Bob's")})
			require.NoError(t, err)
			task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{
				Title:      strPtr("Ship"),
				AssignedTo: strPtr(w.ann.ID),
				ProjectID:  strPtr(owned.ID),
			})
			require.NoError(t, err)

			caller := tt.caller(t, w)
			before := len(w.activity(t, caller.ID))

			_, err = w.svc.Tasks.UpdateStatus(ctx, caller, task.ID, "In Review")
			stored, getErr := w.store.GetTask(ctx, task.ID)
			require.NoError(t, getErr)

			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, storage.StatusInReview, stored.Status)
				assert.Len(t, w.activity(t, caller.ID), before+1)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrForbidden)
				assert.Equal(t, storage.StatusToDo, stored.Status)
				assert.Len(t, w.activity(t, caller.ID), before)
			}
		})
	}
}

func TestUpdateTaskStatusValidation(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)

	task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("Ship"), AssignedTo: strPtr(w.ann.ID)})
	require.NoError(t, err)

	_, err = w.svc.Tasks.UpdateStatus(ctx, w.ann, task.ID, "Blocked")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// policy runs before validation
	_, err = w.svc.Tasks.UpdateStatus(ctx, w.bob, task.ID, "Blocked")
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = w.svc.Tasks.UpdateStatus(ctx, w.ann, "missing", "Done")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestActivityFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t, withFailingActivity)

	task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("Resilient")})
	require.NoError(t, err)

	_, err = w.store.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Empty(t, w.activity(t, w.admin.ID))
	assert.Greater(t, testutil.ToFloat64(w.metrics.ActivityWriteFailuresTotal), float64(0))
}

func TestListTasks(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)

	inProject, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("A"), AssignedTo: strPtr(w.ann.ID), ProjectID: strPtr(w.project.ID)})
	require.NoError(t, err)
	loose, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("B"), AssignedTo: strPtr(w.ann.ID)})
	require.NoError(t, err)
	_, err = w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("C"), AssignedTo: strPtr(w.bob.ID)})
	require.NoError(t, err)

	ids := func(views []*TaskView) []string {
		out := make([]string, 0, len(views))
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	mine, err := w.svc.Tasks.List(ctx, w.ann, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{inProject.ID, loose.ID}, ids(mine))

	scoped, err := w.svc.Tasks.List(ctx, w.ann, w.project.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{inProject.ID}, ids(scoped))
	require.NotNil(t, scoped[0].Project)
	assert.Equal(t, "P1", scoped[0].Project.Name)

	created, err := w.svc.Tasks.List(ctx, w.admin, "")
	require.NoError(t, err)
	assert.Len(t, created, 3)
}

func TestPopulateNames(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)

	task, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("A"), AssignedTo: strPtr(w.ann.ID), ProjectID: strPtr(w.project.ID)})
	require.NoError(t, err)
	assert.Equal(t, 2, w.svc.Tasks.Names.Len())

	t.Run("rename is visible", func(t *testing.T) {
		_, err := w.svc.Projects.Update(ctx, w.admin, w.project.ID, ProjectInput{Name: strPtr("P1 renamed")})
		require.NoError(t, err)
		_, err = w.svc.Users.Update(ctx, w.ann, w.ann.ID, UpdateUserInput{Name: strPtr("Ann B")})
		require.NoError(t, err)

		view, err := w.svc.Tasks.Get(ctx, w.admin, task.ID)
		require.NoError(t, err)
		assert.Equal(t, "P1 renamed", view.Project.Name)
		assert.Equal(t, "Ann B", view.Assignee.Name)
	})

	t.Run("dangling reference is nil", func(t *testing.T) {
		stored, err := w.store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		stored.ProjectID = "deleted-project"
		require.NoError(t, w.store.UpdateTask(ctx, stored))

		view, err := w.svc.Tasks.Get(ctx, w.admin, task.ID)
		require.NoError(t, err)
		assert.Nil(t, view.Project)
		assert.Equal(t, "deleted-project", view.ProjectID)
		assert.NotNil(t, view.Assignee)
	})
}

func TestTaskStats(t *testing.T) {
	ctx := context.Background()
	w := newTaskWorld(t)
	w.svc.Tasks.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	_, err := w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("late"), DueDate: strPtr("2026-05-01")})
	require.NoError(t, err)
	_, err = w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("late but done"), Status: strPtr("Done"), DueDate: strPtr("2026-05-01")})
	require.NoError(t, err)
	_, err = w.svc.Tasks.Create(ctx, w.admin, TaskInput{Title: strPtr("future"), Status: strPtr("In Progress"), DueDate: strPtr("2026-07-01")})
	require.NoError(t, err)

	stats, err := w.svc.Tasks.Stats(ctx, w.admin)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.ByStatus[storage.StatusToDo])
	assert.Equal(t, 1, stats.ByStatus[storage.StatusDone])
	assert.Equal(t, 1, stats.ByStatus[storage.StatusInProgress])
	assert.Equal(t, 0, stats.ByStatus[storage.StatusInReview])

	empty, err := w.svc.Tasks.Stats(ctx, w.bob)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Len(t, empty.ByStatus, len(storage.Statuses))
}

func TestParseDueDate(t *testing.T) {
	due, err := parseDueDate("2026-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), *due)

	due, err = parseDueDate(" ")
	require.NoError(t, err)
	assert.Nil(t, due)

	_, err = parseDueDate("03/01/2026")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// Package storagetest holds a behavior suite every storage.Store backend must
// pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// Factory returns an empty store for one subtest
type Factory func(t *testing.T) storage.Store

// Run exercises users, projects, tasks and activity against newStore
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Projects", func(t *testing.T) { testProjects(t, newStore(t)) })
	t.Run("Tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("Activity", func(t *testing.T) { testActivity(t, newStore(t)) })
}

// base is truncated to the second so every backend round-trips it exactly
var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	u := &storage.User{
		ID: "u1", Email: "Alice@Example.com", Name: "Alice", PasswordHash: "hash",
		Role: auth.RoleMember, CreatedAt: base, UpdatedAt: base,
	}
	require.NoError(t, s.CreateUser(ctx, u))

	err := s.CreateUser(ctx, &storage.User{ID: "u2", Email: "alice@example.com", Name: "Dup", PasswordHash: "x", Role: auth.RoleMember, CreatedAt: base, UpdatedAt: base})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, auth.RoleMember, got.Role)
	assert.True(t, got.CreatedAt.Equal(base))

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got.Name = "Alicia"
	got.Role = auth.RoleAdmin
	got.UpdatedAt = base.Add(time.Minute)
	require.NoError(t, s.UpdateUser(ctx, got))

	updated, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)
	assert.Equal(t, auth.RoleAdmin, updated.Role)

	assert.ErrorIs(t, s.UpdateUser(ctx, &storage.User{ID: "nope", Email: "nope@example.com", UpdatedAt: base}), storage.ErrNotFound)

	require.NoError(t, s.CreateUser(ctx, &storage.User{ID: "u0", Email: "bob@example.com", Name: "Bob", PasswordHash: "h", Role: auth.RoleMember, CreatedAt: base.Add(-time.Hour), UpdatedAt: base}))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u0", users[0].ID, "users are ordered by creation time")

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func testProjects(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p1", Name: "Owned", CreatedBy: "u1", Members: []string{}, CreatedAt: base, UpdatedAt: base}))
	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p2", Name: "Member", CreatedBy: "u2", Members: []string{"u3", "u1"}, CreatedAt: base.Add(time.Second), UpdatedAt: base}))
	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p3", Name: "Other", CreatedBy: "u2", Members: []string{"u3"}, CreatedAt: base.Add(2 * time.Second), UpdatedAt: base}))

	visible, err := s.ListVisibleProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "p1", visible[0].ID)
	assert.Equal(t, "p2", visible[1].ID)
	assert.Equal(t, []string{"u3", "u1"}, visible[1].Members, "member order is preserved")

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	p, err := s.GetProject(ctx, "p3")
	require.NoError(t, err)
	assert.NotNil(t, p.Members)
	p.Name = "Renamed"
	p.Members = []string{"u1"}
	p.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateProject(ctx, p))

	p, err = s.GetProject(ctx, "p3")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Name)
	assert.Equal(t, []string{"u1"}, p.Members)
	assert.Equal(t, "u2", p.CreatedBy)

	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateProject(ctx, &storage.Project{ID: "missing", UpdatedAt: base}), storage.ErrNotFound)

	count, err := s.CountProjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func testTasks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	due := base.Add(48 * time.Hour)

	tasks := []*storage.Task{
		{ID: "t1", Title: "Mine", Status: storage.StatusToDo, Priority: storage.PriorityHigh, CreatedBy: "u1", ProjectID: "p1", DueDate: &due, Dependencies: []string{}, CreatedAt: base, UpdatedAt: base},
		{ID: "t2", Title: "Assigned", Status: storage.StatusInProgress, Priority: storage.PriorityLow, CreatedBy: "u2", AssignedTo: "u1", Dependencies: []string{"t1"}, CreatedAt: base.Add(time.Second), UpdatedAt: base},
		{ID: "t3", Title: "Foreign", Status: storage.StatusDone, Priority: storage.PriorityMedium, CreatedBy: "u2", ProjectID: "p1", Dependencies: []string{}, CreatedAt: base.Add(2 * time.Second), UpdatedAt: base},
	}
	for _, task := range tasks {
		require.NoError(t, s.CreateTask(ctx, task))
	}

	visible, err := s.ListVisibleTasks(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "t1", visible[0].ID)
	assert.Equal(t, "t2", visible[1].ID)
	assert.Equal(t, []string{"t1"}, visible[1].Dependencies)
	assert.Empty(t, visible[1].ProjectID)

	inProject, err := s.ListVisibleTasks(ctx, "u1", "p1")
	require.NoError(t, err)
	require.Len(t, inProject, 1)
	assert.Equal(t, "t1", inProject[0].ID)

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))
	assert.Equal(t, storage.PriorityHigh, got.Priority)

	got.Status = storage.StatusInReview
	got.AssignedTo = "u3"
	got.DueDate = nil
	got.Dependencies = []string{"t3", "t2"}
	got.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateTask(ctx, got))

	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, storage.StatusInReview, got.Status)
	assert.Equal(t, "u3", got.AssignedTo)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, []string{"t3", "t2"}, got.Dependencies)
	assert.Equal(t, "u1", got.CreatedBy)

	_, err = s.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.UpdateTask(ctx, &storage.Task{ID: "missing", UpdatedAt: base}), storage.ErrNotFound)

	count, err := s.CountTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func testActivity(t *testing.T, s storage.Store) {
	ctx := context.Background()

	for i, action := range []string{"first", "second", "third"} {
		require.NoError(t, s.AppendActivity(ctx, &storage.ActivityEntry{
			ID: action, UserID: "u1", Action: action, TaskID: "t1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.AppendActivity(ctx, &storage.ActivityEntry{ID: "other", UserID: "u2", Action: "other", Timestamp: base}))

	entries, err := s.ListActivity(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Action)
	assert.Equal(t, "second", entries[1].Action)
	assert.Equal(t, "t1", entries[0].TaskID)
	assert.Empty(t, entries[0].ProjectID)

	all, err := s.ListActivity(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListActivity(ctx, "u9", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

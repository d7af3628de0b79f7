package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
	"github.com/platinummonkey/taskhub/pkg/storage/storagetest"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := &storage.User{ID: "u1", Email: "Alice@Example.com", Name: "Alice", Role: auth.RoleMember, CreatedAt: time.Now()}
	require.NoError(t, s.CreateUser(ctx, u))

	err := s.CreateUser(ctx, &storage.User{ID: "u2", Email: "alice@example.com"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got.Name = "mutated"
	again, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name, "store must not share state with callers")

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	again.Name = "Alicia"
	require.NoError(t, s.UpdateUser(ctx, again))
	updated, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Name)

	assert.ErrorIs(t, s.UpdateUser(ctx, &storage.User{ID: "nope"}), storage.ErrNotFound)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestListVisibleProjects(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p1", Name: "Owned", CreatedBy: "u1", CreatedAt: now}))
	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p2", Name: "Member", CreatedBy: "u2", Members: []string{"u1"}, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, s.CreateProject(ctx, &storage.Project{ID: "p3", Name: "Other", CreatedBy: "u2", Members: []string{"u3"}, CreatedAt: now.Add(2 * time.Second)}))

	visible, err := s.ListVisibleProjects(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "p1", visible[0].ID)
	assert.Equal(t, "p2", visible[1].ID)

	all, err := s.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListVisibleTasks(t *testing.T) {
	ctx := context.Background()
	s := New()

	now := time.Now()
	tasks := []*storage.Task{
		{ID: "t1", Title: "created", CreatedBy: "u1", ProjectID: "p1", CreatedAt: now},
		{ID: "t2", Title: "assigned", CreatedBy: "u2", AssignedTo: "u1", ProjectID: "p2", CreatedAt: now.Add(time.Second)},
		{ID: "t3", Title: "foreign", CreatedBy: "u2", AssignedTo: "u3", ProjectID: "p1", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, task := range tasks {
		require.NoError(t, s.CreateTask(ctx, task))
	}

	visible, err := s.ListVisibleTasks(ctx, "u1", "")
	require.NoError(t, err)
	require.Len(t, visible, 2)
	assert.Equal(t, "t1", visible[0].ID)
	assert.Equal(t, "t2", visible[1].ID)

	filtered, err := s.ListVisibleTasks(ctx, "u1", "p2")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "t2", filtered[0].ID)
}

func TestListActivity(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendActivity(ctx, &storage.ActivityEntry{
			ID:        string(rune('a' + i)),
			UserID:    "u1",
			Action:    "action",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, s.AppendActivity(ctx, &storage.ActivityEntry{ID: "z", UserID: "u2", Timestamp: base}))

	entries, err := s.ListActivity(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "e", entries[0].ID)
	assert.Equal(t, "d", entries[1].ID)
	assert.Equal(t, "c", entries[2].ID)
}

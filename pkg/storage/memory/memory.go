// Package memory provides an in-process storage.Store backed by maps.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/platinummonkey/taskhub/pkg/storage"
)

// Store keeps every collection in memory. Values are copied on the way in
// and out so callers never share state with the store.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*storage.User
	emails     map[string]string
	projects   map[string]*storage.Project
	tasks      map[string]*storage.Task
	activities []*storage.ActivityEntry
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[string]*storage.User),
		emails:   make(map[string]string),
		projects: make(map[string]*storage.Project),
		tasks:    make(map[string]*storage.Task),
	}
}

var _ storage.Store = (*Store)(nil)

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser stores a new user
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := emailKey(user.Email)
	if _, ok := s.emails[key]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := s.users[user.ID]; ok {
		return storage.ErrDuplicate
	}

	s.users[user.ID] = copyUser(user)
	s.emails[key] = user.ID
	return nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(user), nil
}

// GetUserByEmail returns a user by case-insensitive email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[emailKey(email)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

// UpdateUser replaces a stored user
func (s *Store) UpdateUser(ctx context.Context, user *storage.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return storage.ErrNotFound
	}

	oldKey, newKey := emailKey(existing.Email), emailKey(user.Email)
	if oldKey != newKey {
		if _, taken := s.emails[newKey]; taken {
			return storage.ErrDuplicate
		}
		delete(s.emails, oldKey)
		s.emails[newKey] = user.ID
	}

	s.users[user.ID] = copyUser(user)
	return nil
}

// ListUsers returns every user ordered by creation time
func (s *Store) ListUsers(ctx context.Context) ([]*storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*storage.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// CountUsers returns the number of users
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// CreateProject stores a new project
func (s *Store) CreateProject(ctx context.Context, project *storage.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.ID]; ok {
		return storage.ErrDuplicate
	}
	s.projects[project.ID] = copyProject(project)
	return nil
}

// GetProject returns a project by id
func (s *Store) GetProject(ctx context.Context, id string) (*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyProject(project), nil
}

// UpdateProject replaces a stored project
func (s *Store) UpdateProject(ctx context.Context, project *storage.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.ID]; !ok {
		return storage.ErrNotFound
	}
	s.projects[project.ID] = copyProject(project)
	return nil
}

// ListVisibleProjects returns projects userID created or is a member of
func (s *Store) ListVisibleProjects(ctx context.Context, userID string) ([]*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*storage.Project, 0)
	for _, p := range s.projects {
		if p.CreatedBy == userID || p.HasMember(userID) {
			projects = append(projects, copyProject(p))
		}
	}
	sortProjects(projects)
	return projects, nil
}

// ListProjects returns every project
func (s *Store) ListProjects(ctx context.Context) ([]*storage.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*storage.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, copyProject(p))
	}
	sortProjects(projects)
	return projects, nil
}

// CountProjects returns the number of projects
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects), nil
}

// CreateTask stores a new task
func (s *Store) CreateTask(ctx context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return storage.ErrDuplicate
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

// GetTask returns a task by id
func (s *Store) GetTask(ctx context.Context, id string) (*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyTask(task), nil
}

// UpdateTask replaces a stored task
func (s *Store) UpdateTask(ctx context.Context, task *storage.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; !ok {
		return storage.ErrNotFound
	}
	s.tasks[task.ID] = copyTask(task)
	return nil
}

// ListVisibleTasks returns tasks created by or assigned to userID
func (s *Store) ListVisibleTasks(ctx context.Context, userID, projectID string) ([]*storage.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]*storage.Task, 0)
	for _, t := range s.tasks {
		if t.CreatedBy != userID && t.AssignedTo != userID {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		tasks = append(tasks, copyTask(t))
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID < tasks[j].ID
		}
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// CountTasks returns the number of tasks
func (s *Store) CountTasks(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks), nil
}

// AppendActivity appends an entry to the log
func (s *Store) AppendActivity(ctx context.Context, entry *storage.ActivityEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := *entry
	s.activities = append(s.activities, &e)
	return nil
}

// ListActivity returns the newest entries for userID, at most limit
func (s *Store) ListActivity(ctx context.Context, userID string, limit int) ([]*storage.ActivityEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*storage.ActivityEntry, 0)
	// Walk backwards so equal timestamps still come out newest-first.
	for i := len(s.activities) - 1; i >= 0; i-- {
		if s.activities[i].UserID != userID {
			continue
		}
		e := *s.activities[i]
		entries = append(entries, &e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func sortProjects(projects []*storage.Project) {
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
}

func copyUser(u *storage.User) *storage.User {
	c := *u
	return &c
}

func copyProject(p *storage.Project) *storage.Project {
	c := *p
	c.Members = append([]string{}, p.Members...)
	return &c
}

func copyTask(t *storage.Task) *storage.Task {
	c := *t
	c.Dependencies = append([]string{}, t.Dependencies...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// maxLookups bounds concurrent name lookups for one populate call
const maxLookups = 8

func (s *TaskService) populateOne(ctx context.Context, task *storage.Task) (*TaskView, error) {
	views, err := s.populate(ctx, task)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// populate resolves project and assignee names for tasks. Each distinct id is
// looked up once, concurrently, through the name cache.
func (s *TaskService) populate(ctx context.Context, tasks ...*storage.Task) ([]*TaskView, error) {
	keys := make(map[string]struct{})
	for _, t := range tasks {
		if t.ProjectID != "" {
			keys[projectKey(t.ProjectID)] = struct{}{}
		}
		if t.AssignedTo != "" {
			keys[userKey(t.AssignedTo)] = struct{}{}
		}
	}

	var mu sync.Mutex
	names := make(map[string]string, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)
	for key := range keys {
		key := key
		g.Go(func() error {
			name, ok, err := s.lookupName(gctx, key)
			if err != nil || !ok {
				return err
			}
			mu.Lock()
			names[key] = name
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.Internal(err)
	}

	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		view := &TaskView{Task: *t}
		if name, ok := names[projectKey(t.ProjectID)]; ok {
			view.Project = &Ref{ID: t.ProjectID, Name: name}
		}
		if name, ok := names[userKey(t.AssignedTo)]; ok {
			view.Assignee = &Ref{ID: t.AssignedTo, Name: name}
		}
		views = append(views, view)
	}
	return views, nil
}

// lookupName returns the display name for a cache key. A dangling reference
// reports ok=false without error.
func (s *TaskService) lookupName(ctx context.Context, key string) (string, bool, error) {
	if name, ok := s.Names.get(key); ok {
		s.Metrics.CacheHitsTotal.WithLabelValues("name").Inc()
		return name, true, nil
	}
	s.Metrics.CacheMissesTotal.WithLabelValues("name").Inc()

	var (
		name string
		err  error
	)
	if id, ok := strings.CutPrefix(key, "user:"); ok {
		var u *storage.User
		if u, err = s.Store.GetUser(ctx, id); err == nil {
			name = u.Name
		}
	} else {
		var p *storage.Project
		if p, err = s.Store.GetProject(ctx, strings.TrimPrefix(key, "project:")); err == nil {
			name = p.Name
		}
	}

	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	s.Names.add(key, name)
	return name, true, nil
}

package tracker

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/taskhub/pkg/apperrors"
	"github.com/platinummonkey/taskhub/pkg/audit"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/broadcast"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// ProjectInput creates or partially updates a project. Nil fields are left
// alone on update.
type ProjectInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Members     []string `json:"members,omitempty"`
}

// ProjectService handles projects
type ProjectService struct {
	*core
}

// List returns every project for admins and the caller's own or joined
// projects for everyone else
func (s *ProjectService) List(ctx context.Context, identity auth.Identity) (_ []*storage.Project, err error) {
	ctx, span := startSpan(ctx, "ProjectService.List")
	defer func() { endSpan(span, err) }()

	var projects []*storage.Project
	if identity.IsAdmin() {
		projects, err = s.Store.ListProjects(ctx)
	} else {
		projects, err = s.Store.ListVisibleProjects(ctx, identity.ID)
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return projects, nil
}

// Get returns one project the caller may read
func (s *ProjectService) Get(ctx context.Context, identity auth.Identity, id string) (_ *storage.Project, err error) {
	ctx, span := startSpan(ctx, "ProjectService.Get", attribute.String("project.id", id))
	defer func() { endSpan(span, err) }()

	project, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return nil, storeError(err, "project")
	}
	if err := s.authorize(ctx, "project.read", identity, s.Policy.CanReadProject(identity, project)); err != nil {
		return nil, err
	}
	return project, nil
}

// Create stores a new project owned by the caller
func (s *ProjectService) Create(ctx context.Context, identity auth.Identity, in ProjectInput) (_ *storage.Project, err error) {
	ctx, span := startSpan(ctx, "ProjectService.Create")
	defer func() { endSpan(span, err) }()

	if err := s.authorize(ctx, "project.create", identity, s.Policy.CanCreateProject(identity)); err != nil {
		return nil, err
	}

	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, apperrors.InvalidInput("name", "name is required")
	}
	members, err := s.validateMembers(ctx, in.Members)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	project := &storage.Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(*in.Name),
		CreatedBy: identity.ID,
		Members:   members,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}

	if err := s.Store.CreateProject(ctx, project); err != nil {
		return nil, storeError(err, "project")
	}

	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.ProjectCreated(project.Name), ProjectID: project.ID})
	s.Broadcaster.Emit(ctx, broadcast.EventProjectCreated, project)
	return project, nil
}

// Update changes name, description and/or members. Creator only.
func (s *ProjectService) Update(ctx context.Context, identity auth.Identity, id string, in ProjectInput) (_ *storage.Project, err error) {
	ctx, span := startSpan(ctx, "ProjectService.Update", attribute.String("project.id", id))
	defer func() { endSpan(span, err) }()

	project, err := s.Store.GetProject(ctx, id)
	if err != nil {
		return nil, storeError(err, "project")
	}
	if err := s.authorize(ctx, "project.update", identity, s.Policy.CanUpdateProject(identity, project)); err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name", "name cannot be empty")
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.Members != nil {
		members, err := s.validateMembers(ctx, in.Members)
		if err != nil {
			return nil, err
		}
		project.Members = members
	}
	project.UpdatedAt = s.timestamp()

	if err := s.Store.UpdateProject(ctx, project); err != nil {
		return nil, storeError(err, "project")
	}
	s.Names.Forget(projectKey(project.ID))

	s.Recorder.Record(ctx, audit.Entry{UserID: identity.ID, Action: audit.ProjectUpdated(project.Name), ProjectID: project.ID})
	s.Broadcaster.Emit(ctx, broadcast.EventProjectUpdated, project)
	return project, nil
}

// validateMembers dedupes ids and checks every one names an existing user
func (s *ProjectService) validateMembers(ctx context.Context, ids []string) ([]string, error) {
	members := storage.Dedupe(ids)
	for _, id := range members {
		if _, err := s.Store.GetUser(ctx, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, apperrors.InvalidInput("members", "member "+id+" does not exist")
			}
			return nil, apperrors.Internal(err)
		}
	}
	return members, nil
}

// Package rbac decides who may read or write which project, task and user
// profile.
//
// # Overview
//
// Every check is a pure function of the caller's auth.Identity and the
// target document. Nothing here reads storage or writes logs; services
// resolve the document first and then ask the Policy:
//
//	policy := rbac.NewPolicy(cfg.Auth.MembersCanCreateProjects)
//	if d := policy.CanUpdateTask(identity, task); !d.Allowed {
//		return apperrors.Forbidden("not allowed to update this task")
//	}
//
// # Rules
//
//	AdminOnly            admin
//	CanReadProject       admin, creator, member
//	CanCreateProject     admin (any user when MembersCanCreateProjects)
//	CanUpdateProject     creator
//	CanReadTask          creator, assignee
//	CanCreateTask        admin
//	CanUpdateTask        admin AND creator
//	CanUpdateTaskStatus  creator, assignee, parent project creator
//	CanAccessUser        self
//	CanListUsers         admin
//
// The admin role does not grant read access to tasks the admin neither
// created nor was assigned.
//
// # Decisions
//
// Each check returns a Decision carrying the rule that matched, which the
// services attach to debug logs.
package rbac

package rbac

import (
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// Decision records the outcome of a policy check and the rule that produced it
type Decision struct {
	Allowed bool
	Rule    string
}

func allow(rule string) Decision { return Decision{Allowed: true, Rule: rule} }
func deny(rule string) Decision  { return Decision{Allowed: false, Rule: rule} }

// Rules reported in decisions
const (
	RuleAdmin          = "admin"
	RuleCreator        = "creator"
	RuleMember         = "member"
	RuleAssignee       = "assignee"
	RuleProjectOwner   = "project_owner"
	RuleSelf           = "self"
	RuleAnyMember      = "any_member"
	RuleNotAdmin       = "not_admin"
	RuleNotCreator     = "not_creator"
	RuleNotParticipant = "not_participant"
	RuleNotSelf        = "not_self"
)

// Policy evaluates the resource access rules. It holds no state beyond its
// options and never touches storage.
type Policy struct {
	// MembersCanCreateProjects lets any authenticated user create projects
	MembersCanCreateProjects bool
}

// NewPolicy creates a policy with the given options
func NewPolicy(membersCanCreateProjects bool) *Policy {
	return &Policy{MembersCanCreateProjects: membersCanCreateProjects}
}

// AdminOnly allows admins only
func (p *Policy) AdminOnly(id auth.Identity) Decision {
	if id.IsAdmin() {
		return allow(RuleAdmin)
	}
	return deny(RuleNotAdmin)
}

// CanReadProject allows admins, the creator and listed members
func (p *Policy) CanReadProject(id auth.Identity, project *storage.Project) Decision {
	switch {
	case id.IsAdmin():
		return allow(RuleAdmin)
	case id.ID == project.CreatedBy:
		return allow(RuleCreator)
	case project.HasMember(id.ID):
		return allow(RuleMember)
	}
	return deny(RuleNotParticipant)
}

// CanCreateProject allows admins, or everyone when configured
func (p *Policy) CanCreateProject(id auth.Identity) Decision {
	if id.IsAdmin() {
		return allow(RuleAdmin)
	}
	if p.MembersCanCreateProjects && id.ID != "" {
		return allow(RuleAnyMember)
	}
	return deny(RuleNotAdmin)
}

// CanUpdateProject allows the project creator only
func (p *Policy) CanUpdateProject(id auth.Identity, project *storage.Project) Decision {
	if id.ID != "" && id.ID == project.CreatedBy {
		return allow(RuleCreator)
	}
	return deny(RuleNotCreator)
}

// CanReadTask allows the creator and the assignee. The admin role grants
// nothing here.
func (p *Policy) CanReadTask(id auth.Identity, task *storage.Task) Decision {
	switch {
	case id.ID == "":
		return deny(RuleNotParticipant)
	case id.ID == task.CreatedBy:
		return allow(RuleCreator)
	case id.ID == task.AssignedTo:
		return allow(RuleAssignee)
	}
	return deny(RuleNotParticipant)
}

// CanCreateTask allows admins only
func (p *Policy) CanCreateTask(id auth.Identity) Decision {
	return p.AdminOnly(id)
}

// CanUpdateTask requires both the admin role and authorship of the task
func (p *Policy) CanUpdateTask(id auth.Identity, task *storage.Task) Decision {
	if !id.IsAdmin() {
		return deny(RuleNotAdmin)
	}
	if id.ID != task.CreatedBy {
		return deny(RuleNotCreator)
	}
	return allow(RuleCreator)
}

// CanUpdateTaskStatus allows the creator, the assignee or the creator of the
// task's parent project. parent may be nil when the task has no project.
func (p *Policy) CanUpdateTaskStatus(id auth.Identity, task *storage.Task, parent *storage.Project) Decision {
	if d := p.CanReadTask(id, task); d.Allowed {
		return d
	}
	if parent != nil && id.ID != "" && parent.ID == task.ProjectID && id.ID == parent.CreatedBy {
		return allow(RuleProjectOwner)
	}
	return deny(RuleNotParticipant)
}

// CanAccessUser allows a user to read and update their own profile
func (p *Policy) CanAccessUser(id auth.Identity, targetID string) Decision {
	if id.ID != "" && id.ID == targetID {
		return allow(RuleSelf)
	}
	return deny(RuleNotSelf)
}

// CanListUsers allows admins only
func (p *Policy) CanListUsers(id auth.Identity) Decision {
	return p.AdminOnly(id)
}

package tracker

import (
	"time"

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// UserView is the public shape of a user. It never carries the password hash.
type UserView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      auth.Role `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserView(u *storage.User) *UserView {
	return &UserView{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Ref is a denormalized reference to another document
type Ref struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskView is a task with its project and assignee names resolved. A nil
// reference means the field is unset or points at a missing document.
type TaskView struct {
	storage.Task
	Project  *Ref `json:"project,omitempty"`
	Assignee *Ref `json:"assignee,omitempty"`
}

// TaskStats summarizes the tasks visible to a caller
type TaskStats struct {
	Total    int                        `json:"total"`
	ByStatus map[storage.TaskStatus]int `json:"byStatus"`
	Overdue  int                        `json:"overdue"`
}

// LoginResult carries freshly issued credentials
type LoginResult struct {
	AccessToken      string    `json:"accessToken"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
	Role             auth.Role `json:"role"`
	UserID           string    `json:"-"`
}

package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field is already taken
	ErrDuplicate = errors.New("duplicate")
)

// UserStore persists user accounts. Emails are unique case-insensitively.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
}

// ProjectStore persists projects and their member sets
type ProjectStore interface {
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error
	// ListVisibleProjects returns projects created by userID or listing it as a member
	ListVisibleProjects(ctx context.Context, userID string) ([]*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	CountProjects(ctx context.Context) (int, error)
}

// TaskStore persists tasks and their dependency sets
type TaskStore interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, task *Task) error
	// ListVisibleTasks returns tasks created by or assigned to userID,
	// optionally restricted to one project.
	ListVisibleTasks(ctx context.Context, userID, projectID string) ([]*Task, error)
	CountTasks(ctx context.Context) (int, error)
}

// ActivityStore is the append-only activity log
type ActivityStore interface {
	AppendActivity(ctx context.Context, entry *ActivityEntry) error
	// ListActivity returns the newest entries for userID first
	ListActivity(ctx context.Context, userID string, limit int) ([]*ActivityEntry, error)
}

// Store bundles every collection behind one backend
type Store interface {
	UserStore
	ProjectStore
	TaskStore
	ActivityStore

	Ping(ctx context.Context) error
	Close() error
}

// Config for storage backend
type Config struct {
	Type string `yaml:"type"` // "memory", "postgres", "sqlite"

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// SQLite config
	SQLitePath string `yaml:"sqlite_path"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Cache config
	CacheEnabled  bool          `yaml:"cache_enabled"`
	UserCacheTTL  time.Duration `yaml:"user_cache_ttl"`
	NameCacheSize int           `yaml:"name_cache_size"`
	NameCacheTTL  time.Duration `yaml:"name_cache_ttl"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             "memory",
		SQLitePath:       "taskhub.db",
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisDB:          0,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		CacheEnabled:     true,
		UserCacheTTL:     5 * time.Minute,
		NameCacheSize:    1024,
		NameCacheTTL:     time.Minute,
	}
}

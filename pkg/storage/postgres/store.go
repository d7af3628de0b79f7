// Package postgres implements storage.Store on database/sql. PostgreSQL is the
// production backend; SQLite shares the same queries for single-node setups.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/storage"
)

// Store is a SQL-backed storage.Store. Writes and single-document reads go to
// the primary; list and count queries may be served by a replica.
type Store struct {
	db      *sql.DB
	replica func() *sql.DB
	dialect Dialect
	closeFn func() error
	pingFn  func(context.Context) error
}

var _ storage.Store = (*Store)(nil)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// New wraps an open database. The caller keeps ownership of db unless Close
// is called on the returned store.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		replica: func() *sql.DB { return db },
		dialect: dialect,
		closeFn: db.Close,
		pingFn:  db.PingContext,
	}
}

// NewClustered builds a PostgreSQL store that reads lists from replicas
func NewClustered(c *Cluster) *Store {
	return &Store{
		db:      c.Writer(),
		replica: c.Reader,
		dialect: DialectPostgres,
		closeFn: c.Close,
		pingFn:  c.Check,
	}
}

// Open connects to the backend named by cfg.Type ("postgres" or "sqlite")
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	switch cfg.Type {
	case "postgres":
		c, err := DialCluster(ctx, ClusterConfig{
			WriterURL:     cfg.PostgresURL,
			ReaderURLs:    cfg.PostgresReplicaURLs,
			MaxConns:      cfg.PostgresMaxConns,
			IdleConns:     cfg.PostgresMinConns,
			DialTimeout:   cfg.PostgresTimeout,
			MaxLifetime:   time.Hour,
			MaxIdleTime:   10 * time.Minute,
			PruneInterval: defaultPruneInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return NewClustered(c), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported SQL storage type %q", cfg.Type)
	}
}

// OpenSQLite opens a SQLite database file. ":memory:" gives a private
// in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open(string(DialectSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// one connection: SQLite has a single writer and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return New(db, DialectSQLite), nil
}

// Migrate applies pending schema migrations
func (s *Store) Migrate(ctx context.Context) error {
	return Migrate(ctx, s.db, s.dialect)
}

// Ping checks the writer and, when clustered, the readers
func (s *Store) Ping(ctx context.Context) error {
	return s.pingFn(ctx)
}

// Close releases every connection
func (s *Store) Close() error {
	return s.closeFn()
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.replica().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// inTx runs fn in a transaction, rolling back on error
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapError converts driver errors into storage sentinels
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case isUniqueViolation(err):
		return storage.ErrDuplicate
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

const userColumns = "id, email, name, password_hash, role, created_at, updated_at"

func scanUser(row rowScanner) (*storage.User, error) {
	var u storage.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// CreateUser inserts a user; a taken email yields storage.ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, user *storage.User) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.Name, user.PasswordHash, string(user.Role), user.CreatedAt.UTC(), user.UpdatedAt.UTC())
	return mapError("create user", err)
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*storage.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError("get user", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by case-insensitive email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*storage.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`), strings.TrimSpace(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, mapError("get user by email", err)
	}
	return u, nil
}

// UpdateUser replaces the mutable fields of a user
func (s *Store) UpdateUser(ctx context.Context, user *storage.User) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET email = ?, name = ?, password_hash = ?, role = ?, updated_at = ? WHERE id = ?`),
		user.Email, user.Name, user.PasswordHash, string(user.Role), user.UpdatedAt.UTC(), user.ID)
	if err != nil {
		return mapError("update user", err)
	}
	return expectOne(res)
}

// ListUsers returns every user ordered by creation time
func (s *Store) ListUsers(ctx context.Context) ([]*storage.User, error) {
	rows, err := s.replica().QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, mapError("list users", err)
	}
	defer rows.Close()

	users := make([]*storage.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapError("scan user", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "users")
}

// Package storage defines the document store used by taskhub.
//
// # Overview
//
// Each collection (users, projects, tasks, activity) has its own interface.
// A backend implements all four and is exposed as a Store:
//
//	type Store interface {
//		UserStore
//		ProjectStore
//		TaskStore
//		ActivityStore
//		Ping(ctx context.Context) error
//		Close() error
//	}
//
// Every call is atomic for a single document. There are no multi-document
// transactions and no version checks: concurrent updates to the same
// document are last-write-wins.
//
// # Backends
//
//   - storage/memory: maps guarded by a RWMutex, used by tests and dev mode
//   - storage/postgres: lib/pq (and mattn/go-sqlite3 through the same SQL
//     code) with a Redis read-through cache for users
//
// # Errors
//
// Backends return ErrNotFound for missing documents and ErrDuplicate when a
// unique field (user email) is already taken. Other failures are wrapped
// with fmt.Errorf and surface to callers as internal errors.
package storage

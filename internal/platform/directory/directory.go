// Package directory looks up user ids by role for broadcast targeting. Role
// values in the users table were written inconsistently over time, so every
// lookup takes the full set of spellings produced by role.ExpandForQuery.
package directory

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Directory resolves role spellings to the ids of users holding them.
type Directory interface {
	UsersWithRole(ctx context.Context, roleOptions []string) ([]string, error)
}

type pgDirectory struct{ pool *pgxpool.Pool }

// NewPGDirectory returns a Directory over the users table.
func NewPGDirectory(pool *pgxpool.Pool) Directory {
	return &pgDirectory{pool: pool}
}

func (d *pgDirectory) UsersWithRole(ctx context.Context, roleOptions []string) ([]string, error) {
	if len(roleOptions) == 0 {
		return nil, nil
	}
	rows, err := d.pool.Query(ctx,
		`SELECT id FROM users WHERE role = ANY($1) ORDER BY created_at`, roleOptions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MemoryDirectory is an in-memory Directory for tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]string // user id -> stored role spelling
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]string)}
}

// Add registers a user with the role spelling as persisted.
func (d *MemoryDirectory) Add(userID, storedRole string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[userID] = storedRole
}

func (d *MemoryDirectory) UsersWithRole(_ context.Context, roleOptions []string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	want := make(map[string]bool, len(roleOptions))
	for _, r := range roleOptions {
		want[r] = true
	}
	var ids []string
	for id, r := range d.users {
		if want[r] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

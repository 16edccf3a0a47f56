// Package lease grants exclusive, expiring ownership of a job fingerprint to
// one worker at a time.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrHeld is returned by Acquire while another owner holds an unexpired lease.
var ErrHeld = errors.New("lease held")

// ErrLost is returned by Renew once the lease expired or was taken over.
var ErrLost = errors.New("lease lost")

type Lease interface {
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

type entry struct {
	token   string
	expires time.Time
}

// Table is the in-process Manager.
type Table struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewTable() *Table {
	return &Table{entries: map[string]entry{}, now: time.Now}
}

func (t *Table) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if e, ok := t.entries[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	l := &tableLease{table: t, key: key, token: uuid.NewString(), ttl: ttl}
	t.entries[key] = entry{token: l.token, expires: now.Add(ttl)}
	return l, nil
}

// Held reports whether key has an unexpired owner.
func (t *Table) Held(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return ok && t.now().Before(e.expires)
}

type tableLease struct {
	table *Table
	key   string
	token string
	ttl   time.Duration
}

func (l *tableLease) Renew(context.Context) error {
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[l.key]
	now := t.now()
	if !ok || e.token != l.token || !now.Before(e.expires) {
		return ErrLost
	}
	t.entries[l.key] = entry{token: l.token, expires: now.Add(l.ttl)}
	return nil
}

func (l *tableLease) Release(context.Context) error {
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[l.key]; ok && e.token == l.token {
		delete(t.entries, l.key)
	}
	return nil
}

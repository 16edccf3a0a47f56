package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/observability"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

const DefaultQueueDepth = 256

// lane is a FIFO of job ids with a depth ceiling for new work.
type lane struct {
	name  jobs.Lane
	depth int

	mu    sync.Mutex
	items []string
	ready chan struct{}
}

func newLane(name jobs.Lane, depth int) *lane {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &lane{name: name, depth: depth, ready: make(chan struct{}, 1)}
}

func (l *lane) push(id string, enforce bool) error {
	l.mu.Lock()
	if enforce && len(l.items) >= l.depth {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s lane at depth %d", apperrors.ErrOverloaded, l.name, l.depth)
	}
	l.items = append(l.items, id)
	n := len(l.items)
	l.mu.Unlock()
	observability.Current().SetQueueDepth(string(l.name), n)
	l.signal()
	return nil
}

func (l *lane) pop(ctx context.Context) (string, bool) {
	for {
		l.mu.Lock()
		if len(l.items) > 0 {
			id := l.items[0]
			l.items[0] = ""
			l.items = l.items[1:]
			n := len(l.items)
			l.mu.Unlock()
			observability.Current().SetQueueDepth(string(l.name), n)
			if n > 0 {
				l.signal()
			}
			return id, true
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", false
		case <-l.ready:
		}
	}
}

func (l *lane) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *lane) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Lanes holds the fast and heavy queues.
type Lanes struct {
	lanes map[jobs.Lane]*lane

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewLanes(fastDepth, heavyDepth int) *Lanes {
	return &Lanes{
		lanes: map[jobs.Lane]*lane{
			jobs.LaneFast:  newLane(jobs.LaneFast, fastDepth),
			jobs.LaneHeavy: newLane(jobs.LaneHeavy, heavyDepth),
		},
		timers: map[*time.Timer]struct{}{},
	}
}

func (ls *Lanes) get(name jobs.Lane) *lane {
	if l, ok := ls.lanes[name]; ok {
		return l
	}
	return ls.lanes[jobs.LaneFast]
}

// Enqueue adds new work; it fails with ErrOverloaded at the depth ceiling.
func (ls *Lanes) Enqueue(name jobs.Lane, jobID string) error {
	return ls.get(name).push(jobID, true)
}

// EnqueueAfter redelivers jobID after delay regardless of depth.
func (ls *Lanes) EnqueueAfter(name jobs.Lane, jobID string, delay time.Duration) {
	l := ls.get(name)
	if delay <= 0 {
		_ = l.push(jobID, false)
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		ls.mu.Lock()
		delete(ls.timers, t)
		ls.mu.Unlock()
		_ = l.push(jobID, false)
	})
	ls.timers[t] = struct{}{}
}

// Next blocks until the lane has an id or ctx ends.
func (ls *Lanes) Next(ctx context.Context, name jobs.Lane) (string, bool) {
	return ls.get(name).pop(ctx)
}

// Len is the number of ids waiting on the lane, scheduled retries excluded.
func (ls *Lanes) Len(name jobs.Lane) int {
	return ls.get(name).len()
}

// Pending counts scheduled redeliveries.
func (ls *Lanes) Pending() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.timers)
}

// Close stops scheduled redeliveries. Jobs they carried stay retrying in the
// store and are picked up again by Recover.
func (ls *Lanes) Close() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.closed = true
	for t := range ls.timers {
		t.Stop()
	}
	ls.timers = map[*time.Timer]struct{}{}
}

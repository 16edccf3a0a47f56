// Package status fans job-state events out to per-job subscribers. Each
// subscriber owns an unbounded inbox drained by its own goroutine, so a slow
// reader never blocks Publish and never loses the terminal event.
package status

import (
	"context"
	"sync"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type Broker struct {
	log    *logger.Logger
	relay  Relay
	mu     sync.Mutex
	topics map[string]map[*Subscription]struct{}
}

func NewBroker(log *logger.Logger, opts ...Option) *Broker {
	b := &Broker{
		log:    log.With("component", "StatusBroker"),
		topics: map[string]map[*Subscription]struct{}{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a subscriber that first receives current, then every
// later event for the job. Callers must hold whatever lock orders current
// against concurrent Publish calls for the same job.
func (b *Broker) Subscribe(ctx context.Context, current jobs.StateEvent) *Subscription {
	out := make(chan jobs.StateEvent)
	s := &Subscription{
		C:      out,
		out:    out,
		jobID:  current.JobID,
		broker: b,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.push(current)
	if !current.State.Terminal() {
		b.mu.Lock()
		subs, ok := b.topics[current.JobID]
		if !ok {
			subs = map[*Subscription]struct{}{}
			b.topics[current.JobID] = subs
		}
		subs[s] = struct{}{}
		b.mu.Unlock()
	}
	go s.pump(ctx)
	return s
}

// Publish queues ev on every subscriber of its job, then relays it when a
// relay is set. A terminal event retires the job's subscriber list.
func (b *Broker) Publish(ev jobs.StateEvent) {
	b.publishLocal(ev)
	b.forward(ev)
}

func (b *Broker) publishLocal(ev jobs.StateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[ev.JobID]
	for s := range subs {
		s.push(ev)
	}
	if ev.State.Terminal() {
		delete(b.topics, ev.JobID)
	}
}

// Subscribers is the number of open subscriptions for jobID.
func (b *Broker) Subscribers(jobID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[jobID])
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[s.jobID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.topics, s.jobID)
		}
	}
}

type Subscription struct {
	// C yields events in version order and is closed after a terminal event,
	// when the subscribe context ends, or after Close.
	C <-chan jobs.StateEvent

	out    chan jobs.StateEvent
	jobID  string
	broker *Broker

	mu    sync.Mutex
	queue []jobs.StateEvent
	wake  chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func (s *Subscription) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscription) push(ev jobs.StateEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.out)
	defer s.broker.remove(s)

	last := int64(-1)
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			if ev.Version <= last {
				continue
			}
			last = ev.Version
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
			if ev.State.Terminal() {
				return
			}
		}

		select {
		case <-s.wake:
		case <-ctx.Done():
			return
		case <-s.done:
			return
		}
	}
}

package orchestrator

import (
	"sync"

	"github.com/gasopt/optimizer/internal/model"
)

const subscriberBuffer = 64

// subscriber is one listener's private queue, modeled on the teacher's
// per-client isolation in internal/pkg/ws/hub.go (one connection's write
// failure must never affect another's).
type subscriber struct {
	ch chan model.ProgressEvent
}

// ProgressBus is a per-job pub/sub fanout (spec.md §4.5). Publish never
// blocks on a slow subscriber: each subscriber owns a bounded buffer, and
// on overflow the oldest buffered event is dropped to make room for the
// new one — the spec leaves the overflow policy to the implementer and
// only requires that other subscribers keep receiving events.
type ProgressBus struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewProgressBus() *ProgressBus {
	return &ProgressBus{subs: make(map[string]map[*subscriber]struct{})}
}

// subscribeLocked registers a new subscriber for jobID, pre-loaded with
// backlog. The caller must hold the job's own lock across the backlog
// snapshot and this call so no event is published in between — that's
// what makes backlog-then-live delivery exact rather than best-effort.
func (b *ProgressBus) subscribeLocked(jobID string, backlog []model.ProgressEvent) *subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := subscriberBuffer
	if len(backlog) > capacity {
		capacity = len(backlog) + subscriberBuffer
	}

	sub := &subscriber{ch: make(chan model.ProgressEvent, capacity)}
	for _, e := range backlog {
		sub.ch <- e
	}

	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[*subscriber]struct{})
	}
	b.subs[jobID][sub] = struct{}{}
	return sub
}

func (b *ProgressBus) unsubscribe(jobID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[jobID], sub)
	if len(b.subs[jobID]) == 0 {
		delete(b.subs, jobID)
	}
}

// publishLocked fans event out to jobID's subscribers. Named "Locked" to
// pair with subscribeLocked — the caller holds the job's lock while
// calling this, which is what makes event ordering observable to all
// subscribers identical to emission order.
func (b *ProgressBus) publishLocked(jobID string, event model.ProgressEvent) {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs[jobID]))
	for sub := range b.subs[jobID] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- event:
		default:
			// Buffer full: drop the oldest event to make room, rather than
			// block this publish or affect any other subscriber.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

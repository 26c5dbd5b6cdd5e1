// Package events implements the in-process publish/subscribe hub that links
// background workers to push-channel handlers. One topic per repository, no
// buffering, no replay.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/doeshing/gitscope/internal/domain"
	"github.com/doeshing/gitscope/internal/ports"
)

// Hub implements ports.Broadcaster. Delivery is synchronous on the
// publisher's goroutine; subscriber callbacks must not block.
type Hub struct {
	log ports.Logger

	mu      sync.Mutex
	nextID  int
	topics  map[domain.RepoKey]map[int]func(domain.Event)
	waiters map[domain.RepoKey][]chan struct{}
}

// NewHub builds an empty hub.
func NewHub(log ports.Logger) *Hub {
	return &Hub{
		log:     log,
		topics:  make(map[domain.RepoKey]map[int]func(domain.Event)),
		waiters: make(map[domain.RepoKey][]chan struct{}),
	}
}

// Subscribe implements ports.Broadcaster. Registering the first subscriber
// releases any producer parked in AwaitFirstSubscriber.
func (h *Hub) Subscribe(key domain.RepoKey, fn func(domain.Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	subs, ok := h.topics[key]
	if !ok {
		subs = make(map[int]func(domain.Event))
		h.topics[key] = subs
	}
	subs[id] = fn

	for _, ch := range h.waiters[key] {
		close(ch)
	}
	delete(h.waiters, key)

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.topics[key]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(h.topics, key)
			}
		}
	}
}

// Publish implements ports.Broadcaster. Events on topics with no subscribers
// are dropped.
func (h *Hub) Publish(ev domain.Event) {
	key := ev.Key()
	h.mu.Lock()
	fns := make([]func(domain.Event), 0, len(h.topics[key]))
	for _, fn := range h.topics[key] {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	if len(fns) == 0 {
		h.log.Debug("event dropped, no subscribers", map[string]interface{}{
			"topic": key.String(), "type": string(ev.Type),
		})
		return
	}
	for _, fn := range fns {
		fn(ev)
	}
}

// AwaitFirstSubscriber implements ports.Broadcaster.
func (h *Hub) AwaitFirstSubscriber(ctx context.Context, key domain.RepoKey, timeout time.Duration) error {
	h.mu.Lock()
	if len(h.topics[key]) > 0 {
		h.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	h.waiters[key] = append(h.waiters[key], ch)
	h.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		h.dropWaiter(key, ch)
		return fmt.Errorf("no subscriber on %s after %s", key.String(), timeout)
	case <-ctx.Done():
		h.dropWaiter(key, ch)
		return ctx.Err()
	}
}

func (h *Hub) dropWaiter(key domain.RepoKey, ch chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws := h.waiters[key]
	for i, w := range ws {
		if w == ch {
			h.waiters[key] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(h.waiters[key]) == 0 {
		delete(h.waiters, key)
	}
}

// SubscriberCount implements ports.Broadcaster.
func (h *Hub) SubscriberCount(key domain.RepoKey) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics[key])
}

// ClearTopic implements ports.Broadcaster.
func (h *Hub) ClearTopic(key domain.RepoKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.topics, key)
}

var _ ports.Broadcaster = (*Hub)(nil)

package store

import (
	"sync"

	"linkreach/pkg/models"
)

type subscription struct {
	filter ResultFilter
	fn     func(*models.ActionResult)
}

// hub fans inserted results out to subscribers
type hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

func newHub() *hub {
	return &hub{subs: make(map[int]subscription)}
}

func (h *hub) subscribe(filter ResultFilter, fn func(*models.ActionResult)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{filter: filter, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *hub) publish(r *models.ActionResult) {
	h.mu.RLock()
	targets := make([]func(*models.ActionResult), 0, len(h.subs))
	for _, s := range h.subs {
		if s.filter.match(r) {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		cp := *r
		fn(&cp)
	}
}

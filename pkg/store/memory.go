package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/models"
)

// MemoryStore is an in-process Store. Every value crossing its boundary is
// copied, so callers never share state with it.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
	results   []*models.ActionResult
	sequences map[string]int
	accounts  map[string]*models.Account
	hub       *hub
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns: make(map[string]*models.Campaign),
		sequences: make(map[string]int),
		accounts:  make(map[string]*models.Account),
		hub:       newHub(),
		now:       time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.campaigns[c.ID]; exists {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *MemoryStore) UpdateCampaign(ctx context.Context, c *models.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.campaigns[c.ID]; !exists {
		return fmt.Errorf("%w: %s", errs.ErrCampaignNotFound, c.ID)
	}
	m.campaigns[c.ID] = c.Clone()
	return nil
}

func (m *MemoryStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.campaigns[id]
	if !ok || c.DeletedAt != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrCampaignNotFound, id)
	}
	return c.Clone(), nil
}

func (m *MemoryStore) ListCampaigns(ctx context.Context, filter CampaignFilter) ([]*models.Campaign, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Campaign
	for _, c := range m.campaigns {
		if filter.match(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) AppendResult(ctx context.Context, r *models.ActionResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now()
	}

	m.mu.Lock()
	m.sequences[r.CampaignID]++
	r.Sequence = m.sequences[r.CampaignID]
	cp := *r
	m.results = append(m.results, &cp)
	m.mu.Unlock()

	m.hub.publish(r)
	return nil
}

func (m *MemoryStore) ListResults(ctx context.Context, filter ResultFilter) ([]*models.ActionResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.ActionResult
	for _, r := range m.results {
		if filter.match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if filter.NewestFirst {
			a, b = b, a
		}
		// within one campaign the sequence is the processing order
		if filter.CampaignID != "" {
			return a.Sequence < b.Sequence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Sequence < b.Sequence
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryStore) CountActions(ctx context.Context, campaignID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.results {
		if r.CampaignID == campaignID && r.Status != models.ResultSkipped && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) RegisterAccount(ctx context.Context, name string) (*models.Account, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.accounts[name]; ok {
		if !a.IsActive {
			a.IsActive = true
			a.UpdatedAt = m.now().UTC()
		}
		cp := *a
		return &cp, false, nil
	}

	now := m.now().UTC()
	a := &models.Account{ID: uuid.NewString(), Name: name, IsActive: true, ConnectedAt: now, UpdatedAt: now}
	m.accounts[name] = a
	cp := *a
	return &cp, true, nil
}

func (m *MemoryStore) GetAccount(ctx context.Context, name string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) SetAccountActive(ctx context.Context, name string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
	}
	a.IsActive = active
	a.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) DeleteAccount(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, name)
	return nil
}

func (m *MemoryStore) Subscribe(filter ResultFilter, onInsert func(*models.ActionResult)) func() {
	return m.hub.subscribe(filter, onInsert)
}

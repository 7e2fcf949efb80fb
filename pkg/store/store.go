package store

import (
	"context"
	"errors"
	"time"

	"linkreach/pkg/models"
)

// ErrAccountNotFound is returned for unknown account names
var ErrAccountNotFound = errors.New("account not found")

// CampaignFilter selects campaigns for ListCampaigns
type CampaignFilter struct {
	// Statuses restricts the result; empty means any status
	Statuses       []models.CampaignStatus
	IncludeDeleted bool
}

func (f CampaignFilter) match(c *models.Campaign) bool {
	if c.DeletedAt != nil && !f.IncludeDeleted {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if c.Status == s {
			return true
		}
	}
	return false
}

// ResultFilter selects action results for ListResults and Subscribe
type ResultFilter struct {
	// CampaignID restricts results to one campaign; empty means all
	CampaignID string
	// Since keeps results created at or after the instant
	Since time.Time
	// NewestFirst reverses the default processing order
	NewestFirst bool
	// Limit caps the number of results; 0 means no cap
	Limit int
}

func (f ResultFilter) match(r *models.ActionResult) bool {
	if f.CampaignID != "" && r.CampaignID != f.CampaignID {
		return false
	}
	return f.Since.IsZero() || !r.CreatedAt.Before(f.Since)
}

// Store is the persistence boundary used by the campaign engine, the
// credential validator and the CLI
type Store interface {
	CreateCampaign(ctx context.Context, c *models.Campaign) error
	UpdateCampaign(ctx context.Context, c *models.Campaign) error
	// GetCampaign returns errors.ErrCampaignNotFound for unknown or deleted IDs
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, filter CampaignFilter) ([]*models.Campaign, error)

	// AppendResult stores r, assigning its ID (when empty) and its
	// per-campaign Sequence. Results are never updated.
	AppendResult(ctx context.Context, r *models.ActionResult) error
	ListResults(ctx context.Context, filter ResultFilter) ([]*models.ActionResult, error)
	// CountActions counts non-skipped results of a campaign created at or
	// after since
	CountActions(ctx context.Context, campaignID string, since time.Time) (int, error)

	// RegisterAccount marks name as connected. created is false when the
	// account was already registered, in which case nothing changes except
	// reactivation.
	RegisterAccount(ctx context.Context, name string) (acct *models.Account, created bool, err error)
	GetAccount(ctx context.Context, name string) (*models.Account, error)
	SetAccountActive(ctx context.Context, name string, active bool) error
	DeleteAccount(ctx context.Context, name string) error

	// Subscribe calls onInsert for every result appended after the call that
	// matches filter. Callbacks run on the appending goroutine and must not
	// block. The returned function removes the subscription.
	Subscribe(filter ResultFilter, onInsert func(*models.ActionResult)) (unsubscribe func())

	Close() error
}

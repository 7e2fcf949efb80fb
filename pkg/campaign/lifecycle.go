package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"linkreach/pkg/auth"
	errs "linkreach/pkg/errors"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/models"
	"linkreach/pkg/scraper"
	"linkreach/pkg/store"
)

// CreateRequest holds the user input for a new campaign
type CreateRequest struct {
	Name            string
	Type            models.CampaignType
	Targets         []string
	MessageTemplate string
	DailyLimit      int
}

// Create validates req and stores a new active campaign. Target URLs are
// normalized and deduplicated, keeping their first position.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*models.Campaign, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", errs.ErrInvalidCampaign)
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", errs.ErrInvalidCampaign, req.Type)
	}
	if req.DailyLimit < 0 {
		return nil, fmt.Errorf("%w: daily limit must not be negative", errs.ErrInvalidCampaign)
	}
	tmpl := strings.TrimSpace(req.MessageTemplate)
	if req.Type == models.CampaignTypeMessage && tmpl == "" {
		return nil, fmt.Errorf("%w: message campaigns need a message template", errs.ErrInvalidCampaign)
	}
	if req.Type == models.CampaignTypeConnection && len([]rune(tmpl)) > linkedin.MaxNoteLength {
		e.logger.WarnWithFields("Connection note template exceeds LinkedIn's limit and will be truncated", map[string]interface{}{
			"length": len([]rune(tmpl)),
			"limit":  linkedin.MaxNoteLength,
		})
	}

	seen := make(map[string]bool)
	var targets []models.ProfileRef
	for _, raw := range req.Targets {
		u, err := linkedin.NormalizeProfileURL(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrInvalidCampaign, err)
		}
		if seen[u] {
			continue
		}
		seen[u] = true
		targets = append(targets, models.ProfileRef{ProfileURL: u})
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: at least one target is required", errs.ErrInvalidCampaign)
	}

	limit := req.DailyLimit
	if limit == 0 {
		limit = e.opts.DefaultDailyLimit
	}

	now := e.now().UTC()
	c := &models.Campaign{
		ID:              uuid.NewString(),
		Name:            name,
		Type:            req.Type,
		Status:          models.StatusActive,
		Targets:         targets,
		MessageTemplate: tmpl,
		DailyLimit:      limit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateCampaign(ctx, c); err != nil {
		return nil, err
	}

	e.logger.InfoWithFields("Campaign created", map[string]interface{}{
		"campaign_id": c.ID,
		"type":        string(c.Type),
		"targets":     len(c.Targets),
		"daily_limit": c.DailyLimit,
	})
	return c, nil
}

// Get returns one campaign
func (e *Engine) Get(ctx context.Context, id string) (*models.Campaign, error) {
	return e.store.GetCampaign(ctx, id)
}

// List returns campaigns, newest first
func (e *Engine) List(ctx context.Context, filter store.CampaignFilter) ([]*models.Campaign, error) {
	return e.store.ListCampaigns(ctx, filter)
}

// Pause stops an active campaign from advancing. Pausing a paused campaign
// is a no-op.
func (e *Engine) Pause(ctx context.Context, id string) (*models.Campaign, error) {
	return e.update(ctx, id, func(c *models.Campaign) (models.CampaignStatus, string, bool) {
		return models.StatusPaused, "", c.Status != models.StatusPaused
	})
}

// Resume reactivates a paused campaign. Resuming an active campaign is a
// no-op.
func (e *Engine) Resume(ctx context.Context, id string) (*models.Campaign, error) {
	return e.update(ctx, id, func(c *models.Campaign) (models.CampaignStatus, string, bool) {
		return models.StatusActive, "", c.Status != models.StatusActive
	})
}

// Toggle flips a campaign between active and paused
func (e *Engine) Toggle(ctx context.Context, id string) (*models.Campaign, error) {
	return e.update(ctx, id, func(c *models.Campaign) (models.CampaignStatus, string, bool) {
		if c.Status == models.StatusActive {
			return models.StatusPaused, "", true
		}
		return models.StatusActive, "", true
	})
}

// Fail moves an active or paused campaign to the terminal failed state
func (e *Engine) Fail(ctx context.Context, id, reason string) (*models.Campaign, error) {
	return e.update(ctx, id, func(c *models.Campaign) (models.CampaignStatus, string, bool) {
		return models.StatusFailed, reason, !c.Status.Terminal()
	})
}

// update applies a status change under the campaign lock. decide returns the
// target status, the failure reason and whether anything should change.
func (e *Engine) update(ctx context.Context, id string, decide func(*models.Campaign) (models.CampaignStatus, string, bool)) (*models.Campaign, error) {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	to, reason, change := decide(c)
	if !change {
		return c, nil
	}
	if err := e.transition(ctx, c, to, reason); err != nil {
		return nil, err
	}
	return c, nil
}

// Delete soft-deletes a campaign. Its results are kept.
func (e *Engine) Delete(ctx context.Context, id string) error {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return err
	}
	now := e.now().UTC()
	c.DeletedAt = &now
	c.UpdatedAt = now
	if err := e.store.UpdateCampaign(ctx, c); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	e.logger.InfoWithFields("Campaign deleted", map[string]interface{}{"campaign_id": id})
	return nil
}

// FailAll fails every active and paused campaign. It is the engine's answer
// to a rejected session credential.
func (e *Engine) FailAll(ctx context.Context, reason string) (int, error) {
	campaigns, err := e.store.ListCampaigns(ctx, store.CampaignFilter{
		Statuses: []models.CampaignStatus{models.StatusActive, models.StatusPaused},
	})
	if err != nil {
		return 0, err
	}

	failed := 0
	for _, c := range campaigns {
		updated, err := e.Fail(ctx, c.ID, reason)
		if err != nil {
			return failed, err
		}
		if updated.Status == models.StatusFailed && updated.FailureReason == reason {
			failed++
		}
	}
	return failed, nil
}

// WatchCredentials fails all running campaigns whenever v invalidates the
// session. The returned function stops watching.
func (e *Engine) WatchCredentials(v *auth.Validator) func() {
	return v.OnInvalidate(func(ev auth.InvalidationEvent) {
		// the event may fire inside an Advance that holds a campaign lock
		e.background.Add(1)
		go func() {
			defer e.background.Done()
			reason := "credential invalidated: " + ev.Reason
			n, err := e.FailAll(context.Background(), reason)
			if err != nil {
				e.logger.WithError(err).Error("Failed to fail campaigns after credential invalidation")
				return
			}
			e.logger.WarnWithFields("Campaigns failed after credential invalidation", map[string]interface{}{
				"account": ev.Account,
				"count":   n,
			})
		}()
	})
}

// Wait blocks until background work started by the engine has finished
func (e *Engine) Wait() {
	e.background.Wait()
}

// Results returns the newest results of a campaign first. limit 0 returns
// all of them.
func (e *Engine) Results(ctx context.Context, id string, limit int) ([]*models.ActionResult, error) {
	if _, err := e.store.GetCampaign(ctx, id); err != nil {
		return nil, err
	}
	return e.store.ListResults(ctx, store.ResultFilter{CampaignID: id, NewestFirst: true, Limit: limit})
}

// Subscribe calls fn for every new result of campaign id
func (e *Engine) Subscribe(id string, fn func(*models.ActionResult)) func() {
	return e.store.Subscribe(store.ResultFilter{CampaignID: id}, fn)
}

type scrapeSummary struct {
	Collected  int    `json:"collected"`
	TotalCount int    `json:"total_count"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// summarize renders a scrape result as the response of its seed target
func summarize(res *scraper.Result) string {
	data, _ := json.Marshal(scrapeSummary{
		Collected:  len(res.Profiles),
		TotalCount: res.TotalCount,
		HasMore:    res.HasMore,
		NextCursor: res.NextCursor,
		Cancelled:  res.Cancelled,
	})
	return string(data)
}

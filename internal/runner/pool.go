// Package runner advances campaigns concurrently, either once or on a schedule.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"linkreach/pkg/campaign"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
	"linkreach/pkg/store"
)

// Advancer is the part of the campaign engine the pool drives
type Advancer interface {
	List(ctx context.Context, filter store.CampaignFilter) ([]*models.Campaign, error)
	Advance(ctx context.Context, id string) (*campaign.AdvanceReport, error)
}

// Result is the outcome of advancing one campaign
type Result struct {
	CampaignID string
	Name       string
	Report     *campaign.AdvanceReport
	Err        error
	Duration   time.Duration
}

// Pool advances active campaigns with a bounded number of workers
type Pool struct {
	numWorkers int
	engine     Advancer
	logger     logger.Logger
}

// NewPool creates a worker pool. numWorkers below 1 means one worker.
func NewPool(numWorkers int, engine Advancer, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		numWorkers: numWorkers,
		engine:     engine,
		logger:     log.WithField("component", "runner"),
	}
}

// RunOnce advances every active campaign once. A failing campaign does not
// stop the others; its error is reported in its Result. Results keep the
// order campaigns were listed in.
func (p *Pool) RunOnce(ctx context.Context) ([]Result, error) {
	campaigns, err := p.engine.List(ctx, store.CampaignFilter{
		Statuses: []models.CampaignStatus{models.StatusActive},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}

	p.logger.InfoWithFields("Advancing campaigns", map[string]interface{}{
		"campaigns":   len(campaigns),
		"num_workers": p.numWorkers,
	})

	results := make([]Result, len(campaigns))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.numWorkers)

	for i, c := range campaigns {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res := p.advance(gctx, c)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	// campaigns never started because ctx ended leave zero entries behind
	done := results[:0]
	for _, r := range results {
		if r.CampaignID != "" {
			done = append(done, r)
		}
	}
	if err := ctx.Err(); err != nil {
		return done, err
	}
	return done, nil
}

func (p *Pool) advance(ctx context.Context, c *models.Campaign) Result {
	start := time.Now()
	res := Result{CampaignID: c.ID, Name: c.Name}

	p.logger.DebugWithFields("Worker advancing campaign", map[string]interface{}{
		"campaign_id": c.ID,
		"type":        string(c.Type),
	})

	res.Report, res.Err = p.engine.Advance(ctx, c.ID)
	res.Duration = time.Since(start)

	if res.Err != nil {
		p.logger.ErrorWithFields("Failed to advance campaign", map[string]interface{}{
			"campaign_id": c.ID,
			"error":       res.Err.Error(),
			"duration":    res.Duration,
		})
		return res
	}

	p.logger.DebugWithFields("Campaign advanced", map[string]interface{}{
		"campaign_id": c.ID,
		"status":      string(res.Report.Status),
		"attempted":   res.Report.Attempted,
		"succeeded":   res.Report.Succeeded,
		"duration":    res.Duration,
	})
	return res
}

// NumWorkers returns the worker limit
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Package campaign runs outreach campaigns. The Engine owns campaign state
// transitions and advances one campaign at a time through its targets,
// dispatching each target to the action executor or the follower scraper by
// campaign type and recording exactly one ActionResult per attempt.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
	"linkreach/pkg/scraper"
	"linkreach/pkg/store"
)

// DefaultDailyLimit applies when a campaign is created without a limit
const DefaultDailyLimit = 50

// Executor performs LinkedIn actions. *linkedin.Client implements it.
type Executor interface {
	FetchProfile(ctx context.Context, profileURL string) (*models.Profile, error)
	Connect(ctx context.Context, profileURL, note string) error
	Message(ctx context.Context, profileURL, body string) error
}

// Scraper collects followers. *scraper.Scraper implements it.
type Scraper interface {
	Scrape(ctx context.Context, rootURL string, opts scraper.Options) (*scraper.Result, error)
}

// Options configures an Engine
type Options struct {
	// AdvanceTimeout bounds one Advance call; 0 means no bound
	AdvanceTimeout time.Duration
	// ActionDelay is waited between two actions of one Advance
	ActionDelay time.Duration
	// RandomDelay adds up to half of ActionDelay on top of it
	RandomDelay bool
	// DefaultDailyLimit replaces a zero DailyLimit on Create
	DefaultDailyLimit int
	// MyName fills the {myName} template variable
	MyName string
	// Scrape holds the MaxProfiles and Delay used for scrape campaigns
	Scrape scraper.Options
	Logger logger.Logger
}

// AdvanceReport describes what one Advance call did
type AdvanceReport struct {
	CampaignID string
	Status     models.CampaignStatus
	Attempted  int
	Succeeded  int
	Failed     int
	// Discovered counts profiles appended by scrape targets
	Discovered int
	// QuotaExhausted is set when the daily limit stopped the call.
	// ResumeAt is the next UTC midnight.
	QuotaExhausted bool
	ResumeAt       time.Time
	// SkippedTargets counts targets passed over without an action, such as
	// a message that rendered empty
	SkippedTargets int
	// StopKind is the failure kind that ended the call early, if any
	StopKind errs.Kind
	Skipped  bool
}

// outcome is the result of dispatching one target. A non-empty skip marks
// the target processed without an action being taken.
type outcome struct {
	response   string
	err        error
	skip       string
	discovered []models.Profile
}

type dispatchFunc func(ctx context.Context, c *models.Campaign, target models.ProfileRef) outcome

// Engine runs campaigns against a Store
type Engine struct {
	store    store.Store
	exec     Executor
	scraper  Scraper
	opts     Options
	dispatch map[models.CampaignType]dispatchFunc
	logger   logger.Logger
	now      func() time.Time

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	background sync.WaitGroup
}

// NewEngine creates an Engine. scr may be nil when no scrape campaign will
// be advanced.
func NewEngine(st store.Store, exec Executor, scr Scraper, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.DefaultDailyLimit <= 0 {
		opts.DefaultDailyLimit = DefaultDailyLimit
	}

	e := &Engine{
		store:   st,
		exec:    exec,
		scraper: scr,
		opts:    opts,
		logger:  opts.Logger.WithField("component", "engine"),
		now:     time.Now,
		locks:   make(map[string]chan struct{}),
	}
	e.dispatch = map[models.CampaignType]dispatchFunc{
		models.CampaignTypeConnection: e.connect,
		models.CampaignTypeMessage:    e.message,
		models.CampaignTypeScrape:     e.scrape,
	}
	return e
}

// lock acquires the per-campaign lock, giving up when ctx is done
func (e *Engine) lock(ctx context.Context, id string) (func(), error) {
	e.locksMu.Lock()
	ch, ok := e.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		e.locks[id] = ch
	}
	e.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Advance processes the next unprocessed targets of an active campaign until
// the daily quota is used up, the targets run out, or a failure stops it.
func (e *Engine) Advance(ctx context.Context, id string) (*AdvanceReport, error) {
	unlock, err := e.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	c, err := e.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &AdvanceReport{CampaignID: id, Status: c.Status}
	if c.Status != models.StatusActive {
		report.Skipped = true
		return report, nil
	}

	if e.opts.AdvanceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.AdvanceTimeout)
		defer cancel()
	}
	// writes must land even after the deadline cut the outbound call short
	persistCtx := context.WithoutCancel(ctx)

	now := e.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	used, err := e.store.CountActions(ctx, id, midnight)
	if err != nil {
		return nil, fmt.Errorf("failed to count today's actions: %w", err)
	}
	remaining := c.DailyLimit - used

	processed, err := e.processedTargets(ctx, id)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithFields(map[string]interface{}{
		"campaign_id": id,
		"type":        string(c.Type),
	})
	log.DebugWithFields("Advancing campaign", map[string]interface{}{
		"remaining_today": remaining,
		"processed":       len(processed),
		"targets":         len(c.Targets),
	})

	dispatch, ok := e.dispatch[c.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown campaign type %q", errs.ErrInvalidCampaign, c.Type)
	}

	for {
		next := nextTarget(c, processed)
		if next < 0 {
			if err := e.transition(persistCtx, c, models.StatusCompleted, ""); err != nil {
				return nil, err
			}
			break
		}
		if remaining <= 0 {
			report.QuotaExhausted = true
			report.ResumeAt = midnight.Add(24 * time.Hour)
			break
		}
		if ctx.Err() != nil {
			break
		}
		if report.Attempted > 0 {
			if err := e.pause(ctx); err != nil {
				break
			}
		}

		target := c.Targets[next]
		out := dispatch(ctx, c, target)
		report.Attempted++

		result := &models.ActionResult{
			ID:         uuid.NewString(),
			CampaignID: c.ID,
			ProfileURL: target.ProfileURL,
			ActionType: c.Type,
			Status:     models.ResultSuccess,
			Response:   out.response,
			CreatedAt:  e.now().UTC(),
		}
		kind, failed := errs.Kind(""), out.err != nil
		switch {
		case failed:
			kind = classify(out.err)
			result.Status = models.ResultFailure
			result.ErrorKind = string(kind)
			result.Response = out.err.Error()
		case out.skip != "":
			result.Status = models.ResultSkipped
			result.Response = out.skip
		}
		if err := e.store.AppendResult(persistCtx, result); err != nil {
			return nil, fmt.Errorf("failed to record result: %w", err)
		}
		if result.Status != models.ResultSkipped {
			remaining--
		}
		logger.LogAction(c.ID, target.ProfileURL, string(c.Type), string(result.Status), out.err)

		if len(out.discovered) > 0 && kind != errs.KindUnauthorized {
			added, err := e.appendDiscovered(persistCtx, c, target.ProfileURL, out.discovered, processed)
			if err != nil {
				return nil, err
			}
			report.Discovered += added
		}

		switch {
		case out.skip != "":
			c.TotalProcessed++
			processed[target.ProfileURL] = true
			report.SkippedTargets++
		case !failed:
			c.TotalProcessed++
			c.TotalSuccessful++
			processed[target.ProfileURL] = true
			report.Succeeded++
		case kind == errs.KindNotFound:
			c.TotalProcessed++
			processed[target.ProfileURL] = true
			report.Failed++
		default:
			report.Failed++
			report.StopKind = kind
		}
		c.UpdatedAt = e.now().UTC()

		if kind == errs.KindUnauthorized {
			if err := e.transition(persistCtx, c, models.StatusFailed, "session rejected by LinkedIn"); err != nil {
				return nil, err
			}
			break
		}
		if err := e.store.UpdateCampaign(persistCtx, c); err != nil {
			return nil, fmt.Errorf("failed to save campaign: %w", err)
		}
		if report.StopKind != "" {
			log.WithError(out.err).Warn("Advance stopped by failure, campaign stays active")
			break
		}
	}

	report.Status = c.Status
	log.InfoWithFields("Advance finished", map[string]interface{}{
		"attempted":       report.Attempted,
		"succeeded":       report.Succeeded,
		"failed":          report.Failed,
		"discovered":      report.Discovered,
		"quota_exhausted": report.QuotaExhausted,
		"status":          string(report.Status),
	})
	return report, nil
}

// classify maps a dispatch error to a FetchError kind. Errors without a kind
// (for example a bare context deadline) are transport failures.
func classify(err error) errs.Kind {
	if kind, ok := errs.KindOf(err); ok {
		return kind
	}
	return errs.KindTransport
}

// processedTargets returns the targets that will not be attempted again
func (e *Engine) processedTargets(ctx context.Context, id string) (map[string]bool, error) {
	results, err := e.store.ListResults(ctx, store.ResultFilter{CampaignID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}
	processed := make(map[string]bool, len(results))
	for _, r := range results {
		switch {
		case r.Status == models.ResultSuccess, r.Status == models.ResultSkipped:
			processed[r.ProfileURL] = true
		case r.Status == models.ResultFailure && r.ErrorKind == string(errs.KindNotFound):
			processed[r.ProfileURL] = true
		}
	}
	return processed, nil
}

func nextTarget(c *models.Campaign, processed map[string]bool) int {
	for i, t := range c.Targets {
		if !processed[t.ProfileURL] {
			return i
		}
	}
	return -1
}

// appendDiscovered adds scraped profiles as targets of c, each with a
// skipped result so they count as processed without consuming quota
func (e *Engine) appendDiscovered(ctx context.Context, c *models.Campaign, from string, profiles []models.Profile, processed map[string]bool) (int, error) {
	existing := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		existing[t.ProfileURL] = true
	}

	added := 0
	for _, p := range profiles {
		if existing[p.ProfileURL] {
			continue
		}
		existing[p.ProfileURL] = true
		cached := p
		c.Targets = append(c.Targets, models.ProfileRef{ProfileURL: p.ProfileURL, Cached: &cached, DiscoveredFrom: from})

		if err := e.store.AppendResult(ctx, &models.ActionResult{
			CampaignID: c.ID,
			ProfileURL: p.ProfileURL,
			ActionType: c.Type,
			Status:     models.ResultSkipped,
			Response:   "discovered from " + from,
			CreatedAt:  e.now().UTC(),
		}); err != nil {
			return added, fmt.Errorf("failed to record discovered profile: %w", err)
		}
		processed[p.ProfileURL] = true
		c.TotalProcessed++
		added++
	}
	return added, nil
}

// pause waits the configured delay between two actions
func (e *Engine) pause(ctx context.Context) error {
	d := e.opts.ActionDelay
	if d <= 0 {
		return ctx.Err()
	}
	if e.opts.RandomDelay {
		d += time.Duration(rand.Int64N(int64(d)/2 + 1))
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// profileFor returns the cached profile of target, fetching it when the
// template needs fields that are not cached
func (e *Engine) profileFor(ctx context.Context, target models.ProfileRef, tmpl string) (*models.Profile, error) {
	if target.Cached != nil && target.Cached.Name != "" {
		return target.Cached, nil
	}
	if !needsProfile(tmpl) {
		return target.Cached, nil
	}
	return e.exec.FetchProfile(ctx, target.ProfileURL)
}

func (e *Engine) connect(ctx context.Context, c *models.Campaign, target models.ProfileRef) outcome {
	profile, err := e.profileFor(ctx, target, c.MessageTemplate)
	if err != nil {
		return outcome{err: err}
	}
	note := Render(c.MessageTemplate, profile, e.opts.MyName)
	if err := e.exec.Connect(ctx, target.ProfileURL, note); err != nil {
		return outcome{err: err}
	}
	if note == "" {
		return outcome{response: "invitation sent"}
	}
	return outcome{response: note}
}

func (e *Engine) message(ctx context.Context, c *models.Campaign, target models.ProfileRef) outcome {
	profile, err := e.profileFor(ctx, target, c.MessageTemplate)
	if err != nil {
		return outcome{err: err}
	}
	body := Render(c.MessageTemplate, profile, e.opts.MyName)
	if strings.TrimSpace(body) == "" {
		return outcome{skip: "template rendered an empty message for this profile"}
	}
	if err := e.exec.Message(ctx, target.ProfileURL, body); err != nil {
		return outcome{err: err}
	}
	return outcome{response: body}
}

func (e *Engine) scrape(ctx context.Context, c *models.Campaign, target models.ProfileRef) outcome {
	if e.scraper == nil {
		return outcome{err: errs.New(errs.KindTransport, 0, "no scraper configured")}
	}

	opts := e.opts.Scrape
	opts.OnPage = nil
	res, err := e.scraper.Scrape(ctx, target.ProfileURL, opts)
	if err != nil {
		var scrapeErr *scraper.ScrapeError
		if errors.As(err, &scrapeErr) && scrapeErr.Partial != nil {
			return outcome{err: err, discovered: scrapeErr.Partial.Profiles}
		}
		return outcome{err: err}
	}
	return outcome{response: summarize(res), discovered: res.Profiles}
}

// transition moves c to status and persists it
func (e *Engine) transition(ctx context.Context, c *models.Campaign, to models.CampaignStatus, reason string) error {
	from := c.Status
	if !allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, from, to)
	}
	c.Status = to
	if to == models.StatusFailed {
		c.FailureReason = reason
	}
	c.UpdatedAt = e.now().UTC()
	if err := e.store.UpdateCampaign(ctx, c); err != nil {
		return fmt.Errorf("failed to save campaign: %w", err)
	}
	logger.LogCampaignTransition(c.ID, string(from), string(to), reason)
	return nil
}

// allowed encodes active <-> paused, active -> completed and
// active|paused -> failed
func allowed(from, to models.CampaignStatus) bool {
	switch from {
	case models.StatusActive:
		return to == models.StatusPaused || to == models.StatusCompleted || to == models.StatusFailed
	case models.StatusPaused:
		return to == models.StatusActive || to == models.StatusFailed
	}
	return false
}

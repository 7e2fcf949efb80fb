package scraper

import (
	"context"
	"fmt"
	"time"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
)

// PageFetcher loads one page of a follower listing. *linkedin.Client
// implements it.
type PageFetcher interface {
	FetchFollowersPage(ctx context.Context, rootURL, cursor string) (*linkedin.FollowersPage, error)
}

// Options controls a single Scrape call
type Options struct {
	// MaxProfiles caps the collected profiles; 0 means no cap
	MaxProfiles int
	// Delay is waited before every page fetch
	Delay time.Duration
	// Cancel, when set, stops the scrape cooperatively
	Cancel *CancelToken
	// OnPage is called after every fetched page, on the scraping goroutine
	OnPage  func(Page)
	Filters *Filters

	// StartCursor and Collected resume an earlier scrape from its NextCursor
	StartCursor string
	Collected   []models.Profile
}

// Page reports the progress made by one fetched page
type Page struct {
	Number int
	Cursor string
	// Profiles are the entries this page added to the result
	Profiles   []models.Profile
	Collected  int
	TotalCount int
}

// Result is the outcome of a Scrape call
type Result struct {
	Profiles   []models.Profile
	TotalCount int
	HasMore    bool
	// NextCursor resumes the listing when HasMore is set
	NextCursor string
	Cancelled  bool
	Pages      int
}

// ScrapeError is returned when a page fetch fails. Partial holds what was
// collected before the failure.
type ScrapeError struct {
	RootURL string
	Cursor  string
	Partial *Result
	Err     error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape of %s failed at cursor %q after %d profiles: %v",
		e.RootURL, e.Cursor, len(e.Partial.Profiles), e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Scraper collects followers of a profile
type Scraper struct {
	fetcher PageFetcher
	logger  logger.Logger
}

// New creates a Scraper over fetcher
func New(fetcher PageFetcher, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		fetcher: fetcher,
		logger:  log.WithField("component", "scraper"),
	}
}

// Scrape walks the follower listing of rootURL
func (s *Scraper) Scrape(ctx context.Context, rootURL string, opts Options) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Cancel != nil {
		go func() {
			select {
			case <-opts.Cancel.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	res := &Result{HasMore: true}
	seen := make(map[string]struct{})
	for _, p := range opts.Collected {
		if _, dup := seen[p.ProfileURL]; dup {
			continue
		}
		seen[p.ProfileURL] = struct{}{}
		res.Profiles = append(res.Profiles, p)
	}
	cursor := opts.StartCursor

	s.logger.InfoWithFields("Starting scrape", map[string]interface{}{
		"root_url":     rootURL,
		"max_profiles": opts.MaxProfiles,
		"delay":        opts.Delay,
		"resume_from":  cursor,
	})

	for {
		if opts.MaxProfiles > 0 && len(res.Profiles) >= opts.MaxProfiles {
			break
		}
		if opts.Cancel.Cancelled() {
			res.Cancelled = true
			break
		}
		if !res.HasMore {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, s.abort(rootURL, cursor, res, errs.Wrap(errs.KindTransport, err, "scrape interrupted"))
		}

		if err := sleep(ctx, opts.Delay); err != nil {
			if opts.Cancel.Cancelled() {
				res.Cancelled = true
				break
			}
			return nil, s.abort(rootURL, cursor, res, errs.Wrap(errs.KindTransport, err, "scrape interrupted during delay"))
		}

		page, err := s.fetcher.FetchFollowersPage(ctx, rootURL, cursor)
		if err != nil {
			if opts.Cancel.Cancelled() {
				res.Cancelled = true
				break
			}
			return nil, s.abort(rootURL, cursor, res, err)
		}
		res.Pages++

		added := s.collect(res, seen, page.Profiles, opts)
		if page.TotalCount > 0 {
			res.TotalCount = page.TotalCount
		}

		cursor = page.NextCursor
		res.NextCursor = cursor
		res.HasMore = cursor != "" && len(page.Profiles) > 0 &&
			(res.TotalCount == 0 || len(seen) < res.TotalCount) &&
			(opts.MaxProfiles == 0 || len(res.Profiles) < opts.MaxProfiles)

		logger.LogScrapeProgress(rootURL, len(res.Profiles), res.TotalCount)
		if opts.OnPage != nil {
			opts.OnPage(Page{
				Number:     res.Pages,
				Cursor:     cursor,
				Profiles:   added,
				Collected:  len(res.Profiles),
				TotalCount: res.TotalCount,
			})
		}
	}

	// a cancelled walk always leaves something to resume
	if res.Cancelled {
		res.HasMore = true
		res.NextCursor = cursor
	}

	s.logger.InfoWithFields("Scrape finished", map[string]interface{}{
		"root_url":  rootURL,
		"collected": len(res.Profiles),
		"pages":     res.Pages,
		"has_more":  res.HasMore,
		"cancelled": res.Cancelled,
	})
	return res, nil
}

// collect appends the unseen, matching entries of one page up to the cap
func (s *Scraper) collect(res *Result, seen map[string]struct{}, entries []models.Profile, opts Options) []models.Profile {
	var added []models.Profile
	for _, p := range entries {
		if opts.MaxProfiles > 0 && len(res.Profiles) >= opts.MaxProfiles {
			break
		}
		if _, dup := seen[p.ProfileURL]; dup {
			continue
		}
		seen[p.ProfileURL] = struct{}{}
		if !opts.Filters.Match(p) {
			continue
		}
		res.Profiles = append(res.Profiles, p)
		added = append(added, p)
	}
	return added
}

// abort builds the ScrapeError for a walk that ended on err. Only a
// CancelToken ends a walk early without an error.
func (s *Scraper) abort(rootURL, cursor string, res *Result, err error) *ScrapeError {
	res.NextCursor = cursor
	res.HasMore = true
	s.logger.WithError(err).WithFields(map[string]interface{}{
		"root_url":  rootURL,
		"cursor":    cursor,
		"collected": len(res.Profiles),
	}).Warn("Scrape aborted")
	return &ScrapeError{RootURL: rootURL, Cursor: cursor, Partial: res, Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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

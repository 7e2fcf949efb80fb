// Package scraper walks a profile's follower listing page by page.
//
// A Scraper is serial: it fetches one page, waits the configured delay and
// fetches the next, until one of these holds (checked in this order):
//
//   - the MaxProfiles cap is reached
//   - the scrape was cancelled through its CancelToken or context
//   - the listing is exhausted
//
// Cancellation is not an error. The collected profiles are returned with
// HasMore set so the caller can resume from NextCursor. A failed page fetch
// aborts the walk and returns a *ScrapeError that still carries everything
// collected before the failure.
//
// Usage:
//
//	s := scraper.New(client, logger.GetLogger())
//	res, err := s.Scrape(ctx, "https://www.linkedin.com/in/someone", scraper.Options{
//	    MaxProfiles: 100,
//	    Delay:       time.Second,
//	    OnPage: func(p scraper.Page) {
//	        fmt.Printf("page %d: %d collected\n", p.Number, p.Collected)
//	    },
//	})
package scraper

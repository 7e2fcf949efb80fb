package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
)

// fakeFetcher serves a listing of pages*perPage followers. Pages overlap by
// one entry so duplicates are exercised.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   int
	perPage int
	failAt  int
	calls   []string
}

func (f *fakeFetcher) FetchFollowersPage(ctx context.Context, rootURL, cursor string) (*linkedin.FollowersPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cursor)

	n := 1
	if cursor != "" {
		n, _ = strconv.Atoi(cursor)
	}
	if f.failAt == n {
		return nil, errs.New(errs.KindTransport, 502, "bad gateway")
	}

	page := &linkedin.FollowersPage{TotalCount: f.pages * f.perPage}
	start := (n - 1) * f.perPage
	if n > 1 {
		// repeat the last entry of the previous page
		page.Profiles = append(page.Profiles, follower(start-1))
	}
	for i := start; i < start+f.perPage; i++ {
		page.Profiles = append(page.Profiles, follower(i))
	}
	if n < f.pages {
		page.NextCursor = strconv.Itoa(n + 1)
	}
	return page, nil
}

func follower(i int) models.Profile {
	return models.Profile{
		ProfileURL:       fmt.Sprintf("https://www.linkedin.com/in/follower-%d", i),
		Name:             fmt.Sprintf("Follower %d", i),
		ConnectionDegree: i%3 + 1,
	}
}

func newTestScraper(f PageFetcher) *Scraper {
	return New(f, logger.NewNopLogger())
}

func assertUnique(t *testing.T, profiles []models.Profile) {
	t.Helper()
	seen := make(map[string]bool)
	for _, p := range profiles {
		assert.False(t, seen[p.ProfileURL], "duplicate %s", p.ProfileURL)
		seen[p.ProfileURL] = true
	}
}

func TestScrapeWholeListing(t *testing.T) {
	f := &fakeFetcher{pages: 3, perPage: 10}
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{})
	require.NoError(t, err)

	assert.Len(t, res.Profiles, 30)
	assertUnique(t, res.Profiles)
	assert.Equal(t, 30, res.TotalCount)
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.HasMore)
	assert.False(t, res.Cancelled)
	assert.Equal(t, []string{"", "2", "3"}, f.calls)
}

func TestScrapeCapIsExact(t *testing.T) {
	f := &fakeFetcher{pages: 10, perPage: 10}
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{MaxProfiles: 25})
	require.NoError(t, err)

	assert.Len(t, res.Profiles, 25)
	assertUnique(t, res.Profiles)
	assert.Equal(t, 3, res.Pages)
	assert.False(t, res.HasMore)
}

func TestScrapeCancelAfterSecondPage(t *testing.T) {
	f := &fakeFetcher{pages: 5, perPage: 10}
	token := NewCancelToken()

	var pages []Page
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{
		Cancel: token,
		OnPage: func(p Page) {
			pages = append(pages, p)
			if p.Number == 2 {
				token.Cancel()
			}
		},
	})
	require.NoError(t, err)

	assert.Len(t, pages, 2)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.Profiles, 20)
	assert.True(t, res.HasMore)
	assert.True(t, res.Cancelled)
	assert.Equal(t, "3", res.NextCursor)
	assert.Len(t, f.calls, 2)
}

func TestScrapeCancelDuringDelay(t *testing.T) {
	f := &fakeFetcher{pages: 5, perPage: 10}
	token := NewCancelToken()

	done := make(chan struct{})
	var res *Result
	var err error
	go func() {
		defer close(done)
		res, err = newTestScraper(f).Scrape(context.Background(), "acme", Options{
			Delay:  time.Hour,
			Cancel: token,
		})
	}()

	token.Cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scrape did not observe cancellation during delay")
	}

	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.True(t, res.HasMore)
	assert.Empty(t, res.Profiles)
}

func TestScrapeContextCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{pages: 2, perPage: 5}
	res, err := newTestScraper(f).Scrape(ctx, "acme", Options{})
	assert.Nil(t, res)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
	assert.ErrorIs(t, err, context.Canceled)

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Zero(t, scrapeErr.Partial.Pages)
	assert.False(t, scrapeErr.Partial.Cancelled)
	assert.Empty(t, f.calls)
}

func TestScrapeDeadlineDuringDelayIsTransportFailure(t *testing.T) {
	f := &fakeFetcher{pages: 50, perPage: 10}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := newTestScraper(f).Scrape(ctx, "acme", Options{Delay: 30 * time.Millisecond})
	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindTransport))

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.False(t, scrapeErr.Partial.Cancelled)
	assert.True(t, scrapeErr.Partial.HasMore)
	assert.NotEmpty(t, scrapeErr.Partial.Profiles)
	assert.Equal(t, scrapeErr.Cursor, scrapeErr.Partial.NextCursor)
}

func TestScrapeErrorKeepsPartialResult(t *testing.T) {
	f := &fakeFetcher{pages: 5, perPage: 10, failAt: 3}
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{})
	require.Error(t, err)
	assert.Nil(t, res)

	var scrapeErr *ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Len(t, scrapeErr.Partial.Profiles, 20)
	assert.Equal(t, "3", scrapeErr.Cursor)
	assert.True(t, errs.IsKind(err, errs.KindTransport))
}

func TestScrapeFilters(t *testing.T) {
	f := &fakeFetcher{pages: 2, perPage: 9}
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{
		MaxProfiles: 4,
		Filters:     &Filters{ConnectionDegrees: []int{2}},
	})
	require.NoError(t, err)

	require.Len(t, res.Profiles, 4)
	for _, p := range res.Profiles {
		assert.Equal(t, 2, p.ConnectionDegree)
	}
}

func TestFiltersMatch(t *testing.T) {
	p := models.Profile{
		Location:          "Berlin, Germany",
		Headline:          "Engineer at Initech",
		ConnectionDegree:  2,
		MutualConnections: 5,
	}

	assert.True(t, (*Filters)(nil).Match(p))
	assert.True(t, (&Filters{}).Match(p))
	assert.True(t, (&Filters{Locations: []string{"berlin"}}).Match(p))
	assert.False(t, (&Filters{Locations: []string{"Paris"}}).Match(p))
	assert.True(t, (&Filters{Companies: []string{"initech"}}).Match(p))
	assert.False(t, (&Filters{ConnectionDegrees: []int{1}}).Match(p))
	assert.False(t, (&Filters{MinMutualConnections: 6}).Match(p))
}

func TestCancelTokenIdempotent(t *testing.T) {
	token := NewCancelToken()
	assert.False(t, token.Cancelled())
	token.Cancel()
	token.Cancel()
	assert.True(t, token.Cancelled())
}

func TestScrapeAgainstLinkedInClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "" {
			page = "1"
		}
		n, _ := strconv.Atoi(page)
		var b strings.Builder
		b.WriteString(`<div class="followers-count">4 followers</div>`)
		for i := 0; i < 2; i++ {
			fmt.Fprintf(&b, `<li class="follower"><a href="/in/p%d-%d">x</a><span class="name">P %d</span></li>`, n, i, i)
		}
		if n < 2 {
			b.WriteString(`<a rel="next" href="?page=2">next</a>`)
		}
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	client := linkedin.NewClient(linkedin.StaticToken("AQEDARcWxyz0123456789abcdefGHIJ"), linkedin.Options{
		BaseURL: srv.URL,
		Logger:  logger.NewNopLogger(),
	})

	res, err := New(client, logger.NewNopLogger()).Scrape(context.Background(), "https://www.linkedin.com/in/acme", Options{})
	require.NoError(t, err)
	assert.Len(t, res.Profiles, 4)
	assert.False(t, res.HasMore)
}

func TestScrapeResumesFromCursor(t *testing.T) {
	f := &fakeFetcher{pages: 3, perPage: 10}
	first, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{MaxProfiles: 12})
	require.NoError(t, err)
	require.Len(t, first.Profiles, 12)

	// the cap stopped the first walk on page 2, so resume from page 2
	res, err := newTestScraper(f).Scrape(context.Background(), "acme", Options{
		StartCursor: "2",
		Collected:   first.Profiles,
	})
	require.NoError(t, err)
	assert.Len(t, res.Profiles, 30)
	assertUnique(t, res.Profiles)
}

package campaign

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkreach/pkg/auth"
	errs "linkreach/pkg/errors"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
	"linkreach/pkg/scraper"
	"linkreach/pkg/store"
)

// fakeExecutor records calls and fails the URLs listed in errors
type fakeExecutor struct {
	mu       sync.Mutex
	calls    []string
	notes    []string
	fetches  []string
	errors   map[string]error
	profiles map[string]*models.Profile
	// onCall runs before every action, outside the lock
	onCall func(url string)
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{errors: map[string]error{}, profiles: map[string]*models.Profile{}}
}

func (f *fakeExecutor) act(url, text string) error {
	if f.onCall != nil {
		f.onCall(url)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	f.notes = append(f.notes, text)
	return f.errors[url]
}

func (f *fakeExecutor) Connect(ctx context.Context, url, note string) error { return f.act(url, note) }
func (f *fakeExecutor) Message(ctx context.Context, url, body string) error { return f.act(url, body) }

func (f *fakeExecutor) FetchProfile(ctx context.Context, url string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, url)
	if p, ok := f.profiles[url]; ok {
		return p, nil
	}
	return &models.Profile{ProfileURL: url}, nil
}

func (f *fakeExecutor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeScraper returns n followers per seed
type fakeScraper struct {
	perSeed int
	err     error
}

func (f *fakeScraper) Scrape(ctx context.Context, rootURL string, opts scraper.Options) (*scraper.Result, error) {
	res := &scraper.Result{TotalCount: f.perSeed}
	for i := 0; i < f.perSeed; i++ {
		res.Profiles = append(res.Profiles, models.Profile{
			ProfileURL: fmt.Sprintf("%s-follower-%d", rootURL, i),
			Name:       fmt.Sprintf("Follower %d", i),
		})
	}
	if f.err != nil {
		return nil, &scraper.ScrapeError{RootURL: rootURL, Partial: res, Err: f.err}
	}
	return res, nil
}

// endlessFetcher serves a follower listing that never runs out
type endlessFetcher struct{}

func (endlessFetcher) FetchFollowersPage(ctx context.Context, rootURL, cursor string) (*linkedin.FollowersPage, error) {
	n := 1
	if cursor != "" {
		n, _ = strconv.Atoi(cursor)
	}
	return &linkedin.FollowersPage{
		Profiles:   []models.Profile{{ProfileURL: fmt.Sprintf("%s-follower-%d", rootURL, n)}},
		TotalCount: 1000,
		NextCursor: strconv.Itoa(n + 1),
	}, nil
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	engine *Engine
	store  *store.MemoryStore
	exec   *fakeExecutor
	clock  *clock
}

func newFixture(t *testing.T, scr Scraper) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	exec := newFakeExecutor()
	clk := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	e := NewEngine(st, exec, scr, Options{Logger: logger.NewNopLogger(), MyName: "Sam"})
	e.now = clk.Now
	return &fixture{engine: e, store: st, exec: exec, clock: clk}
}

func profileURLs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://www.linkedin.com/in/target-%d", i)
	}
	return out
}

func (f *fixture) create(t *testing.T, typ models.CampaignType, limit int, targets []string) *models.Campaign {
	t.Helper()
	c, err := f.engine.Create(context.Background(), CreateRequest{
		Name:            "Test campaign",
		Type:            typ,
		Targets:         targets,
		MessageTemplate: "Hi {firstName}, this is {myName}",
		DailyLimit:      limit,
	})
	require.NoError(t, err)
	return c
}

// assertCounters checks the counters against the recorded results
func assertCounters(t *testing.T, st store.Store, id string) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	c, err := st.GetCampaign(ctx, id)
	require.NoError(t, err)
	results, err := st.ListResults(ctx, store.ResultFilter{CampaignID: id})
	require.NoError(t, err)

	processed := map[string]bool{}
	successes := 0
	for _, r := range results {
		switch {
		case r.Status == models.ResultSuccess:
			successes++
			processed[r.ProfileURL] = true
		case r.Status == models.ResultSkipped, r.ErrorKind == string(errs.KindNotFound):
			processed[r.ProfileURL] = true
		}
	}
	assert.Equal(t, successes, c.TotalSuccessful)
	assert.Equal(t, len(processed), c.TotalProcessed)
	assert.LessOrEqual(t, c.TotalSuccessful, c.TotalProcessed)
	assert.LessOrEqual(t, c.TotalProcessed, len(c.Targets))
	for i, r := range results {
		assert.Equal(t, i+1, r.Sequence)
	}
	return c
}

func TestAdvanceRespectsDailyLimit(t *testing.T) {
	f := newFixture(t, nil)
	c := f.create(t, models.CampaignTypeConnection, 3, profileURLs(10))
	ctx := context.Background()

	report, err := f.engine.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.True(t, report.QuotaExhausted)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), report.ResumeAt)
	assert.Equal(t, profileURLs(3), f.exec.Calls())

	report, err = f.engine.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Attempted)
	assert.True(t, report.QuotaExhausted)
	assert.Len(t, f.exec.Calls(), 3)

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, 3, got.TotalProcessed)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestAdvanceAcrossDaysCompletes(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(3)
	c := f.create(t, models.CampaignTypeConnection, 2, targets)
	ctx := context.Background()

	report, err := f.engine.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.True(t, report.QuotaExhausted)

	f.clock.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
	report, err = f.engine.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.False(t, report.QuotaExhausted)
	assert.Equal(t, models.StatusCompleted, report.Status)

	assert.Equal(t, targets, f.exec.Calls())
	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, 3, got.TotalSuccessful)
	assert.Equal(t, 100.0, got.Progress())
	assert.Equal(t, 100.0, got.SuccessRate())

	results, err := f.engine.Results(ctx, c.ID, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, targets[2], results[0].ProfileURL, "newest first")
}

func TestAdvanceUnauthorizedFailsCampaign(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(4)
	c := f.create(t, models.CampaignTypeConnection, 10, targets)
	f.exec.errors[targets[1]] = errs.New(errs.KindUnauthorized, 401, "session expired")

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Equal(t, errs.KindUnauthorized, report.StopKind)
	assert.Equal(t, 2, report.Attempted)

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, 1, got.TotalProcessed, "unauthorized target is not processed")
	assert.NotEmpty(t, got.FailureReason)

	results, err := f.store.ListResults(context.Background(), store.ResultFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, string(errs.KindUnauthorized), results[1].ErrorKind)

	// failed is terminal
	report, err = f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	_, err = f.engine.Resume(context.Background(), c.ID)
	assert.True(t, errors.Is(err, errs.ErrInvalidTransition))
}

func TestAdvanceTransientFailureKeepsCampaignActive(t *testing.T) {
	for _, kind := range []errs.Kind{errs.KindRateLimited, errs.KindTransport} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t, nil)
			targets := profileURLs(3)
			c := f.create(t, models.CampaignTypeMessage, 10, targets)
			f.exec.errors[targets[1]] = errs.New(kind, 0, "try later")

			report, err := f.engine.Advance(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, kind, report.StopKind)
			assert.Equal(t, models.StatusActive, report.Status)
			assert.Equal(t, 2, report.Attempted)

			// the failed target is retried on the next Advance
			delete(f.exec.errors, targets[1])
			report, err = f.engine.Advance(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, report.Succeeded)
			assert.Equal(t, models.StatusCompleted, report.Status)

			got := assertCounters(t, f.store, c.ID)
			assert.Equal(t, 3, got.TotalSuccessful)
		})
	}
}

func TestAdvanceNotFoundContinues(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(3)
	c := f.create(t, models.CampaignTypeConnection, 10, targets)
	f.exec.errors[targets[0]] = errs.New(errs.KindNotFound, 404, "gone")

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, models.StatusCompleted, report.Status)

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, 3, got.TotalProcessed)
	assert.InDelta(t, 66.67, got.SuccessRate(), 0.01)
}

func TestAdvanceRendersTemplate(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(1)
	f.exec.profiles[targets[0]] = &models.Profile{Name: "Ada Lovelace"}
	c := f.create(t, models.CampaignTypeMessage, 10, targets)

	_, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hi Ada, this is Sam"}, f.exec.notes)
	assert.Equal(t, targets, f.exec.fetches)
}

func TestAdvanceSkipsEmptyMessage(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(2)
	c, err := f.engine.Create(context.Background(), CreateRequest{
		Name:            "Company only",
		Type:            models.CampaignTypeMessage,
		Targets:         targets,
		MessageTemplate: "{company}",
		DailyLimit:      1,
	})
	require.NoError(t, err)
	f.exec.profiles[targets[1]] = &models.Profile{ProfileURL: targets[1], CurrentCompany: "Acme"}

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedTargets)
	assert.Equal(t, 1, report.Succeeded)
	assert.Empty(t, report.StopKind)
	assert.Equal(t, models.StatusCompleted, report.Status, "a skipped target does not use the daily quota")
	assert.Equal(t, []string{targets[1]}, f.exec.Calls())

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, 2, got.TotalProcessed)
	assert.Equal(t, 1, got.TotalSuccessful)

	results, err := f.store.ListResults(context.Background(), store.ResultFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.ResultSkipped, results[0].Status)
	assert.Equal(t, targets[0], results[0].ProfileURL)
}

func TestAdvanceScrapeCampaign(t *testing.T) {
	f := newFixture(t, &fakeScraper{perSeed: 3})
	seeds := profileURLs(2)
	c := f.create(t, models.CampaignTypeScrape, 1, seeds)

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, report.Discovered)
	assert.True(t, report.QuotaExhausted, "discovered profiles do not use quota, the second seed does")

	got := assertCounters(t, f.store, c.ID)
	assert.Len(t, got.Targets, 5)
	assert.Equal(t, seeds[0], got.Targets[2].DiscoveredFrom)
	assert.Equal(t, 4, got.TotalProcessed)

	f.clock.Set(time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
	report, err = f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)
	got = assertCounters(t, f.store, c.ID)
	assert.Len(t, got.Targets, 8)
}

func TestAdvanceScrapeFailureKeepsPartial(t *testing.T) {
	f := newFixture(t, &fakeScraper{perSeed: 2, err: errs.New(errs.KindTransport, 502, "bad gateway")})
	c := f.create(t, models.CampaignTypeScrape, 5, profileURLs(1))

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, errs.KindTransport, report.StopKind)
	assert.Equal(t, 2, report.Discovered)

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Zero(t, got.TotalSuccessful)
}

func TestAdvanceScrapeDeadlineIsTransportFailure(t *testing.T) {
	f := newFixture(t, scraper.New(endlessFetcher{}, logger.NewNopLogger()))
	f.engine.opts.AdvanceTimeout = 100 * time.Millisecond
	f.engine.opts.Scrape.Delay = 30 * time.Millisecond
	seeds := profileURLs(1)
	c := f.create(t, models.CampaignTypeScrape, 5, seeds)

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, errs.KindTransport, report.StopKind)
	assert.Zero(t, report.Succeeded)
	assert.Equal(t, models.StatusActive, report.Status)

	got := assertCounters(t, f.store, c.ID)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Zero(t, got.TotalSuccessful)

	results, err := f.store.ListResults(context.Background(), store.ResultFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, seeds[0], results[0].ProfileURL)
	assert.Equal(t, models.ResultFailure, results[0].Status)
	assert.Equal(t, string(errs.KindTransport), results[0].ErrorKind)
}

func TestAdvanceDeadlineRecordsTransportFailure(t *testing.T) {
	f := newFixture(t, nil)
	targets := profileURLs(2)
	c := f.create(t, models.CampaignTypeConnection, 10, targets)

	ctx, cancel := context.WithCancel(context.Background())
	f.exec.onCall = func(string) { cancel() }
	f.exec.errors[targets[0]] = errs.Wrap(errs.KindTransport, context.Canceled, "request aborted")

	report, err := f.engine.Advance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, errs.KindTransport, report.StopKind)

	results, err := f.store.ListResults(context.Background(), store.ResultFilter{CampaignID: c.ID})
	require.NoError(t, err)
	require.Len(t, results, 1, "the failure is recorded despite the cancelled context")
	assert.Equal(t, models.ResultFailure, results[0].Status)
}

func TestAdvanceIsSerializedPerCampaign(t *testing.T) {
	f := newFixture(t, nil)
	c := f.create(t, models.CampaignTypeConnection, 5, profileURLs(5))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Advance(context.Background(), c.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, profileURLs(5), f.exec.Calls(), "every target is contacted exactly once")
	assertCounters(t, f.store, c.ID)
}

func TestLockHonorsContext(t *testing.T) {
	f := newFixture(t, nil)
	unlock, err := f.engine.lock(context.Background(), "c1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = f.engine.Advance(ctx, "c1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestPausedCampaignIsNotAdvanced(t *testing.T) {
	f := newFixture(t, nil)
	c := f.create(t, models.CampaignTypeConnection, 5, profileURLs(2))

	paused, err := f.engine.Toggle(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, paused.Status)

	report, err := f.engine.Advance(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Empty(t, f.exec.Calls())

	active, err := f.engine.Toggle(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, active.Status)
}

func TestCredentialInvalidationFailsCampaigns(t *testing.T) {
	f := newFixture(t, nil)
	a := f.create(t, models.CampaignTypeConnection, 5, profileURLs(2))
	b := f.create(t, models.CampaignTypeMessage, 5, profileURLs(2))
	_, err := f.engine.Pause(context.Background(), b.ID)
	require.NoError(t, err)

	v := auth.NewValidator(nil, nil, f.store)
	require.NoError(t, v.Store(context.Background(), &models.Credential{Account: "default", SessionToken: "AQEDARcWxyz0123456789abcdefGHIJ"}))
	stop := f.engine.WatchCredentials(v)
	defer stop()

	v.Invalidate("AQEDARcWxyz0123456789abcdefGHIJ", "401 from LinkedIn")
	f.engine.Wait()

	for _, id := range []string{a.ID, b.ID} {
		c, err := f.engine.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, c.Status)
		assert.Contains(t, c.FailureReason, "401 from LinkedIn")
	}

	acct, err := f.store.GetAccount(context.Background(), "default")
	require.NoError(t, err)
	assert.False(t, acct.IsActive)
}

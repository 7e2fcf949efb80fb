package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/models"
)

// forEachStore runs fn against every Store implementation
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "linkreach.db"))
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func newCampaign(id string, created time.Time) *models.Campaign {
	return &models.Campaign{
		ID:         id,
		Name:       "Campaign " + id,
		Type:       models.CampaignTypeConnection,
		Status:     models.StatusActive,
		DailyLimit: 10,
		Targets: []models.ProfileRef{
			{ProfileURL: "https://www.linkedin.com/in/a", Cached: &models.Profile{Name: "Ada Lovelace"}},
			{ProfileURL: "https://www.linkedin.com/in/b"},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestCampaignRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		c := newCampaign("c1", created)
		require.NoError(t, s.CreateCampaign(ctx, c))

		got, err := s.GetCampaign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, c.Name, got.Name)
		assert.Equal(t, c.Targets, got.Targets)
		assert.True(t, created.Equal(got.CreatedAt))
		assert.Nil(t, got.DeletedAt)

		got.Status = models.StatusPaused
		got.TotalProcessed = 1
		require.NoError(t, s.UpdateCampaign(ctx, got))

		again, err := s.GetCampaign(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPaused, again.Status)
		assert.Equal(t, 1, again.TotalProcessed)
	})
}

func TestCampaignNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.GetCampaign(ctx, "missing")
		assert.True(t, errors.Is(err, errs.ErrCampaignNotFound))

		err = s.UpdateCampaign(ctx, newCampaign("missing", time.Now()))
		assert.True(t, errors.Is(err, errs.ErrCampaignNotFound))
	})
}

func TestListCampaignsFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		a := newCampaign("a", base)
		b := newCampaign("b", base.Add(time.Hour))
		b.Status = models.StatusPaused
		d := newCampaign("d", base.Add(2*time.Hour))
		deleted := base.Add(3 * time.Hour)
		d.DeletedAt = &deleted
		for _, c := range []*models.Campaign{a, b, d} {
			require.NoError(t, s.CreateCampaign(ctx, c))
		}

		all, err := s.ListCampaigns(ctx, CampaignFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "b", all[0].ID, "newest first")

		paused, err := s.ListCampaigns(ctx, CampaignFilter{Statuses: []models.CampaignStatus{models.StatusPaused}})
		require.NoError(t, err)
		require.Len(t, paused, 1)
		assert.Equal(t, "b", paused[0].ID)

		withDeleted, err := s.ListCampaigns(ctx, CampaignFilter{IncludeDeleted: true})
		require.NoError(t, err)
		assert.Len(t, withDeleted, 3)

		_, err = s.GetCampaign(ctx, "d")
		assert.True(t, errors.Is(err, errs.ErrCampaignNotFound))
	})
}

func TestAppendResultAssignsSequence(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c1", time.Now())))
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c2", time.Now())))

		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		for i, id := range []string{"c1", "c1", "c2", "c1"} {
			r := &models.ActionResult{
				CampaignID: id,
				ProfileURL: "https://www.linkedin.com/in/a",
				ActionType: models.CampaignTypeConnection,
				Status:     models.ResultSuccess,
				CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			}
			require.NoError(t, s.AppendResult(ctx, r))
			assert.NotEmpty(t, r.ID)
		}

		results, err := s.ListResults(ctx, ResultFilter{CampaignID: "c1"})
		require.NoError(t, err)
		require.Len(t, results, 3)
		for i, r := range results {
			assert.Equal(t, i+1, r.Sequence)
		}

		newest, err := s.ListResults(ctx, ResultFilter{CampaignID: "c1", NewestFirst: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, 3, newest[0].Sequence)
		assert.Equal(t, 2, newest[1].Sequence)

		since, err := s.ListResults(ctx, ResultFilter{Since: base.Add(2 * time.Minute)})
		require.NoError(t, err)
		assert.Len(t, since, 2)
	})
}

func TestCampaignResultsFollowSequenceWhenClockStepsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c1", time.Now())))

		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		urls := []string{"https://www.linkedin.com/in/a", "https://www.linkedin.com/in/b", "https://www.linkedin.com/in/c"}
		for i, u := range urls {
			require.NoError(t, s.AppendResult(ctx, &models.ActionResult{
				CampaignID: "c1",
				ProfileURL: u,
				ActionType: models.CampaignTypeConnection,
				Status:     models.ResultSuccess,
				// each result is stamped earlier than the one before
				CreatedAt: base.Add(-time.Duration(i) * time.Minute),
			}))
		}

		results, err := s.ListResults(ctx, ResultFilter{CampaignID: "c1"})
		require.NoError(t, err)
		require.Len(t, results, 3)
		for i, r := range results {
			assert.Equal(t, i+1, r.Sequence)
			assert.Equal(t, urls[i], r.ProfileURL)
		}

		newest, err := s.ListResults(ctx, ResultFilter{CampaignID: "c1", NewestFirst: true})
		require.NoError(t, err)
		require.Len(t, newest, 3)
		assert.Equal(t, urls[2], newest[0].ProfileURL)
		assert.Equal(t, urls[0], newest[2].ProfileURL)
	})
}

func TestCountActionsIgnoresSkipped(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c1", time.Now())))

		midnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		entries := []struct {
			at     time.Time
			status models.ResultStatus
		}{
			{midnight.Add(-time.Minute), models.ResultSuccess},
			{midnight.Add(time.Minute), models.ResultSuccess},
			{midnight.Add(2 * time.Minute), models.ResultFailure},
			{midnight.Add(3 * time.Minute), models.ResultSkipped},
		}
		for _, e := range entries {
			require.NoError(t, s.AppendResult(ctx, &models.ActionResult{
				CampaignID: "c1", ProfileURL: "x", ActionType: models.CampaignTypeScrape, Status: e.status, CreatedAt: e.at,
			}))
		}

		n, err := s.CountActions(ctx, "c1", midnight)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestRegisterAccountIsIdempotent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, created, err := s.RegisterAccount(ctx, "default")
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, first.IsActive)

		second, created, err := s.RegisterAccount(ctx, "default")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.True(t, first.ConnectedAt.Equal(second.ConnectedAt))

		require.NoError(t, s.SetAccountActive(ctx, "default", false))
		acct, err := s.GetAccount(ctx, "default")
		require.NoError(t, err)
		assert.False(t, acct.IsActive)

		third, created, err := s.RegisterAccount(ctx, "default")
		require.NoError(t, err)
		assert.False(t, created)
		assert.True(t, third.IsActive)
		assert.Equal(t, first.ID, third.ID)

		require.NoError(t, s.DeleteAccount(ctx, "default"))
		_, err = s.GetAccount(ctx, "default")
		assert.True(t, errors.Is(err, ErrAccountNotFound))
		assert.True(t, errors.Is(s.SetAccountActive(ctx, "default", true), ErrAccountNotFound))
	})
}

func TestSubscribe(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c1", time.Now())))
		require.NoError(t, s.CreateCampaign(ctx, newCampaign("c2", time.Now())))

		var mu sync.Mutex
		var got []string
		unsubscribe := s.Subscribe(ResultFilter{CampaignID: "c1"}, func(r *models.ActionResult) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, r.CampaignID)
		})

		appendOne := func(id string) {
			require.NoError(t, s.AppendResult(ctx, &models.ActionResult{
				CampaignID: id, ProfileURL: "x", ActionType: models.CampaignTypeMessage, Status: models.ResultSuccess,
			}))
		}
		appendOne("c1")
		appendOne("c2")
		unsubscribe()
		unsubscribe()
		appendOne("c1")

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"c1"}, got)
	})
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	c := newCampaign("c1", time.Now())
	require.NoError(t, s.CreateCampaign(ctx, c))

	c.Targets[0].Cached.Name = "changed"
	got, err := s.GetCampaign(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Targets[0].Cached.Name)
}

func TestOpenSQLiteInMemory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, created, err := s.RegisterAccount(context.Background(), "default")
	require.NoError(t, err)
	assert.True(t, created)
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"linkreach/pkg/logger"
)

// Scheduler runs the pool on a cron schedule such as "@every 15m" or
// "0 9 * * 1-5". A run still in progress when the next one is due is skipped.
type Scheduler struct {
	spec   string
	pool   *Pool
	cron   *cron.Cron
	logger logger.Logger

	// OnRun, when set, receives the results of every scheduled run
	OnRun func([]Result, error)

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule reports whether spec is a schedule the Scheduler accepts
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// NewScheduler creates a scheduler that advances campaigns through pool
func NewScheduler(spec string, pool *Pool, log logger.Logger) (*Scheduler, error) {
	if err := ValidateSchedule(spec); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Scheduler{
		spec:   spec,
		pool:   pool,
		logger: log.WithField("component", "scheduler"),
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("failed to schedule campaign runs: %w", err)
	}
	return s, nil
}

// Start begins running on schedule. Runs use a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()

	logger.LogComponentStart("scheduler", map[string]interface{}{
		"schedule":    s.spec,
		"num_workers": s.pool.NumWorkers(),
	})
	return nil
}

// Stop cancels any run in progress and waits for it to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	logger.LogComponentStop("scheduler", "stopped")
}

// Run starts the scheduler, optionally runs once immediately, and blocks
// until ctx is done.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Stop()

	if runNow {
		s.tick()
	}
	<-ctx.Done()
	return nil
}

// Next returns when the next scheduled run is due
func (s *Scheduler) Next() string {
	entries := s.cron.Entries()
	if len(entries) == 0 || entries[0].Next.IsZero() {
		return ""
	}
	return entries[0].Next.Format("2006-01-02 15:04:05")
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	results, err := s.pool.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WithError(err).Error("Scheduled run failed")
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.InfoWithFields("Scheduled run finished", map[string]interface{}{
		"campaigns": len(results),
		"failed":    failed,
		"next_run":  s.Next(),
	})

	if s.OnRun != nil {
		s.OnRun(results, err)
	}
}

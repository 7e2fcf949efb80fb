package main

import (
	"context"
	"errors"
	"fmt"

	"linkreach/pkg/auth"
	"linkreach/pkg/campaign"
	"linkreach/pkg/config"
	errs "linkreach/pkg/errors"
	"linkreach/pkg/linkedin"
	"linkreach/pkg/logger"
	"linkreach/pkg/scraper"
	"linkreach/pkg/store"
)

// app is the wired set of components one command works with
type app struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	creds     *auth.Manager
	validator *auth.Validator
	client    *linkedin.Client
	scraper   *scraper.Scraper
	engine    *campaign.Engine
	log       logger.Logger

	unwatch func()
}

// sessionCheck lets the validator verify tokens through a client that is
// built after it
type sessionCheck struct {
	client *linkedin.Client
}

func (s *sessionCheck) VerifySession(ctx context.Context, token string) error {
	return s.client.VerifySession(ctx, token)
}

// loadConfig loads configuration with the global flags applied and
// initializes logging
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if storePath != "" {
		flags["store"] = storePath
	}
	if sessionToken != "" {
		flags["session-token"] = sessionToken
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newApp opens the store and wires the LinkedIn client, credential
// validator, scraper and campaign engine
func newApp(extra map[string]interface{}) (*app, error) {
	cfg, err := loadConfig(extra)
	if err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	st, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	manager, err := auth.NewManager("")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	check := &sessionCheck{}
	validator := auth.NewValidator(check, manager, st)
	client := linkedin.NewClientFromConfig(cfg, validator)
	check.client = client

	scr := scraper.New(client, log)
	engine := campaign.NewEngine(st, client, scr, campaign.Options{
		AdvanceTimeout:    cfg.Engine.AdvanceTimeout,
		ActionDelay:       cfg.Engine.ActionDelay,
		RandomDelay:       cfg.Engine.RandomDelay,
		DefaultDailyLimit: cfg.Engine.DefaultDailyLimit,
		MyName:            cfg.LinkedIn.MyName,
		Scrape: scraper.Options{
			MaxProfiles: cfg.Scraper.MaxProfiles,
			Delay:       cfg.Scraper.Delay,
		},
		Logger: log,
	})

	return &app{
		cfg:       cfg,
		store:     st,
		creds:     manager,
		validator: validator,
		client:    client,
		scraper:   scr,
		engine:    engine,
		log:       log,
		unwatch:   engine.WatchCredentials(validator),
	}, nil
}

// login activates the stored session for account, falling back to a token
// from flags, environment or config file when nothing is stored
func (a *app) login(ctx context.Context, account string) error {
	_, err := a.validator.Load(ctx, account)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.ErrNoCredential) || a.cfg.LinkedIn.SessionToken == "" {
		return err
	}

	if account == "" {
		account = auth.DefaultAccount
	}
	_, err = a.validator.Connect(ctx, account, a.cfg.LinkedIn.SessionToken)
	return err
}

// close waits for background campaign failures to land and closes the store
func (a *app) close() {
	a.unwatch()
	a.engine.Wait()
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close store")
	}
}

// mustApp builds the app or exits
func mustApp(extra map[string]interface{}) *app {
	a, err := newApp(extra)
	if err != nil {
		exitWithError("Failed to start", err)
	}
	return a
}

// mustLogin activates a session or exits with guidance
func (a *app) mustLogin(ctx context.Context, account string) {
	if err := a.login(ctx, account); err != nil {
		a.close()
		switch {
		case errors.Is(err, errs.ErrNoCredential):
			exitWithError("No LinkedIn session", errors.New("run 'linkreach auth connect' first"))
		case errors.Is(err, errs.ErrCredentialRejected):
			exitWithError("LinkedIn rejected the stored session", errors.New("run 'linkreach auth connect' with a fresh li_at cookie"))
		default:
			exitWithError("Failed to activate LinkedIn session", err)
		}
	}
}

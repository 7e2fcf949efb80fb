package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	errs "linkreach/pkg/errors"
	"linkreach/pkg/logger"
	"linkreach/pkg/models"
)

// minTokenLength is the shortest li_at value accepted without asking LinkedIn
const minTokenLength = 21

// SessionVerifier confirms a session token against LinkedIn. It returns nil
// for an accepted token and an *errors.Error otherwise.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) error
}

// AccountRegistry records connected accounts in the result store
type AccountRegistry interface {
	RegisterAccount(ctx context.Context, name string) (*models.Account, bool, error)
	SetAccountActive(ctx context.Context, name string, active bool) error
	DeleteAccount(ctx context.Context, name string) error
}

// InvalidationEvent is emitted when an outbound call reports the credential
// as unauthorized
type InvalidationEvent struct {
	Account string
	Reason  string
	At      time.Time
}

// Validator owns the active session credential. It is the only writer of the
// credential; every other component reads it through Current.
type Validator struct {
	verifier SessionVerifier
	registry AccountRegistry
	manager  *Manager
	log      logger.Logger

	current atomic.Pointer[models.Credential]

	mu        sync.Mutex
	listeners map[int]func(InvalidationEvent)
	nextID    int
}

// NewValidator creates a Validator. manager and registry may be nil.
func NewValidator(verifier SessionVerifier, manager *Manager, registry AccountRegistry) *Validator {
	return &Validator{
		verifier:  verifier,
		manager:   manager,
		registry:  registry,
		log:       logger.GetLogger().WithField("component", "validator"),
		listeners: make(map[int]func(InvalidationEvent)),
	}
}

// CheckShape performs the local checks that need no network access
func CheckShape(token string) error {
	token = strings.TrimSpace(token)
	if token == "" || len(token) < minTokenLength {
		return errs.ErrCredentialMalformed
	}
	if strings.ContainsAny(token, " ;\t\r\n") {
		return errs.ErrCredentialMalformed
	}
	return nil
}

// Validate checks token locally and then against LinkedIn. It returns
// ErrCredentialMalformed, ErrCredentialRejected or ErrValidatorUnavailable.
func (v *Validator) Validate(ctx context.Context, token string) error {
	if err := CheckShape(token); err != nil {
		return err
	}

	err := v.verifier.VerifySession(ctx, strings.TrimSpace(token))
	switch {
	case err == nil:
		return nil
	case errs.IsKind(err, errs.KindUnauthorized):
		return fmt.Errorf("%w: %v", errs.ErrCredentialRejected, err)
	default:
		return fmt.Errorf("%w: %v", errs.ErrValidatorUnavailable, err)
	}
}

// Connect validates token and, when accepted, stores it as the active
// credential for account
func (v *Validator) Connect(ctx context.Context, account, token string) (*models.Credential, error) {
	if err := v.Validate(ctx, token); err != nil {
		v.log.WithFields(map[string]interface{}{
			"account": account,
			"token":   MaskToken(token),
		}).WithError(err).Warn("Session validation failed")
		return nil, err
	}

	cred := &models.Credential{
		Account:      account,
		SessionToken: strings.TrimSpace(token),
		IssuedAt:     time.Now().UTC(),
	}
	if err := v.Store(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Store persists cred, makes it the active credential and registers the
// account. Registering an account that already exists is a no-op.
func (v *Validator) Store(ctx context.Context, cred *models.Credential) error {
	if cred.Account == "" {
		cred.Account = DefaultAccount
	}

	if v.manager != nil {
		if err := v.manager.Store(cred); err != nil {
			return err
		}
	}

	if v.registry != nil {
		_, created, err := v.registry.RegisterAccount(ctx, cred.Account)
		if err != nil {
			return fmt.Errorf("failed to register account: %w", err)
		}
		if !created {
			if err := v.registry.SetAccountActive(ctx, cred.Account, true); err != nil {
				return fmt.Errorf("failed to activate account: %w", err)
			}
		}
	}

	stored := *cred
	v.current.Store(&stored)

	v.log.InfoWithFields("Session credential stored", map[string]interface{}{
		"account": cred.Account,
		"token":   MaskToken(cred.SessionToken),
	})
	return nil
}

// Load restores the stored credential for account and confirms it is still
// accepted. A rejected stored credential is not activated.
func (v *Validator) Load(ctx context.Context, account string) (*models.Credential, error) {
	if v.manager == nil {
		return nil, errs.ErrNoCredential
	}

	var (
		cred *models.Credential
		err  error
	)
	if account == "" {
		cred, err = v.manager.RetrieveDefault()
	} else {
		cred, err = v.manager.Retrieve(account)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrNoCredential, err)
	}

	if err := v.Validate(ctx, cred.SessionToken); err != nil {
		return nil, err
	}

	if err := v.Store(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Get returns a copy of the active credential
func (v *Validator) Get() (*models.Credential, bool) {
	cred := v.current.Load()
	if cred == nil {
		return nil, false
	}
	out := *cred
	return &out, true
}

// Current returns the active session token for outbound requests
func (v *Validator) Current() (string, bool) {
	cred := v.current.Load()
	if cred == nil {
		return "", false
	}
	return cred.SessionToken, true
}

// Invalidate drops the active credential when it still carries token and
// notifies subscribers once. Later reports for the same token are ignored.
func (v *Validator) Invalidate(token, reason string) {
	cred := v.current.Load()
	if cred == nil || cred.SessionToken != token {
		return
	}
	if !v.current.CompareAndSwap(cred, nil) {
		return
	}

	v.log.WarnWithFields("Session credential invalidated", map[string]interface{}{
		"account": cred.Account,
		"reason":  reason,
	})

	if v.registry != nil {
		if err := v.registry.SetAccountActive(context.Background(), cred.Account, false); err != nil {
			v.log.WithError(err).Warn("Failed to mark account inactive")
		}
	}

	event := InvalidationEvent{Account: cred.Account, Reason: reason, At: time.Now().UTC()}
	for _, fn := range v.snapshotListeners() {
		fn(event)
	}
}

// Clear disconnects: the credential is removed from memory, from the
// credential stores and from the account registry
func (v *Validator) Clear(ctx context.Context, account string) error {
	if account == "" {
		account = DefaultAccount
	}
	if cred := v.current.Load(); cred != nil && cred.Account == account {
		v.current.CompareAndSwap(cred, nil)
	}

	if v.manager != nil {
		if err := v.manager.Delete(account); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			return err
		}
	}
	if v.registry != nil {
		if err := v.registry.DeleteAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to remove account: %w", err)
		}
	}

	v.log.InfoWithFields("Session credential cleared", map[string]interface{}{"account": account})
	return nil
}

// OnInvalidate registers fn for invalidation events and returns a function
// that removes it
func (v *Validator) OnInvalidate(fn func(InvalidationEvent)) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

func (v *Validator) snapshotListeners() []func(InvalidationEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]func(InvalidationEvent), 0, len(v.listeners))
	for _, fn := range v.listeners {
		out = append(out, fn)
	}
	return out
}

package auth

import (
	"os"
	"time"

	"linkreach/pkg/models"
)

// SessionTokenEnv holds an li_at cookie supplied through the environment
const SessionTokenEnv = "LINKREACH_SESSION_TOKEN"

// EnvironmentStore is a read-only CredentialStore backed by LINKREACH_SESSION_TOKEN
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *models.Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(account string) (*models.Credential, error) {
	token := os.Getenv(SessionTokenEnv)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if account == "" {
		account = DefaultAccount
	}

	return &models.Credential{
		Account:      account,
		SessionToken: token,
		IssuedAt:     time.Now().UTC(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*models.Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*models.Credential{}, nil
	}
	return []*models.Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(account string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(account string) bool {
	return os.Getenv(SessionTokenEnv) != ""
}

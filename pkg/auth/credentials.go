package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"linkreach/pkg/models"
)

// DefaultAccount is the account label used when the user does not name one
const DefaultAccount = "default"

// CredentialStore keeps one opaque session credential per account.
// Implementations own encryption at rest.
type CredentialStore interface {
	Store(cred *models.Credential) error
	Retrieve(account string) (*models.Credential, error)
	List() ([]*models.Credential, error)
	Delete(account string) error
	Exists(account string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager that prefers the system keychain,
// falls back to an encrypted file under configDir, and finally reads the
// environment. An empty configDir uses the platform default.
func NewManager(configDir string) (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	if configDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		configDir = dir
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// UsesKeyring reports whether the system keychain is one of the stores
func (m *Manager) UsesKeyring() bool {
	for _, s := range m.stores {
		if _, ok := s.(*KeyringStore); ok {
			return true
		}
	}
	return false
}

// NewManagerWithStores builds a Manager over explicit stores, in priority order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the credential in the first store that accepts it
func (m *Manager) Store(cred *models.Credential) error {
	if cred == nil || cred.SessionToken == "" {
		return ErrInvalidCredentials
	}
	if cred.Account == "" {
		cred.Account = DefaultAccount
	}
	if cred.IssuedAt.IsZero() {
		cred.IssuedAt = time.Now().UTC()
	}

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets the credential from the first store that has it
func (m *Manager) Retrieve(account string) (*models.Credential, error) {
	if account == "" {
		account = DefaultAccount
	}
	for _, store := range m.stores {
		if cred, err := store.Retrieve(account); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, account)
}

// RetrieveDefault returns the default account, or else the most recently
// issued credential across all stores
func (m *Manager) RetrieveDefault() (*models.Credential, error) {
	if cred, err := m.Retrieve(DefaultAccount); err == nil {
		return cred, nil
	}

	creds, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return creds[0], nil
}

// List returns every stored credential, newest first, deduplicated by account
func (m *Manager) List() ([]*models.Credential, error) {
	byAccount := make(map[string]*models.Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byAccount[cred.Account]; !ok || cred.IssuedAt.After(existing.IssuedAt) {
				byAccount[cred.Account] = cred
			}
		}
	}

	result := make([]*models.Credential, 0, len(byAccount))
	for _, cred := range byAccount {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].IssuedAt.After(result[j].IssuedAt)
	})
	return result, nil
}

// Delete removes the credential from every store that holds it
func (m *Manager) Delete(account string) error {
	if account == "" {
		account = DefaultAccount
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(account); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrCredentialsNotFound, account)
}

// ConfigDir returns the per-user linkreach configuration directory, creating it
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "linkreach")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "linkreach")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "linkreach")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "linkreach")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// MaskToken hides all but the first and last four characters of a session token
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// Sanitize returns a copy of cred that is safe to print or log
func Sanitize(cred *models.Credential) *models.Credential {
	if cred == nil {
		return nil
	}
	out := *cred
	out.SessionToken = MaskToken(cred.SessionToken)
	return &out
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

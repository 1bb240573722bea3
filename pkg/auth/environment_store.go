package auth

import (
	"os"
	"time"
)

const (
	EnvLogin  = "E621DL_LOGIN"
	EnvAPIKey = "E621DL_API_KEY"
)

// EnvironmentStore is a read-only CredentialStore over E621DL_LOGIN and E621DL_API_KEY
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account. A non-empty username must
// match E621DL_LOGIN.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	login := os.Getenv(EnvLogin)
	apiKey := os.Getenv(EnvAPIKey)

	if login == "" || apiKey == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != login {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     login,
		APIKey:       apiKey,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if both variables are set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist for username
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

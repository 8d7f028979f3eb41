package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore reads a proxy account from the environment. It is
// read-only and exists so that .env files written for PROXY_USER and
// PROXY_PASS keep working.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *ProxyAccount) error {
	return ErrStoreUnavailable
}

func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Retrieve gets the environment account. A non-empty username must match.
func (e *EnvironmentStore) Retrieve(username string) (*ProxyAccount, error) {
	user := envFirst("TTSCRAPER_PROXY_USER", "PROXY_USER")
	pass := envFirst("TTSCRAPER_PROXY_PASS", "PROXY_PASS")

	if user == "" || pass == "" {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && username != user {
		return nil, ErrCredentialsNotFound
	}

	port, _ := strconv.Atoi(envFirst("TTSCRAPER_PROXY_PORT", "PROXY_PORT"))
	return &ProxyAccount{
		Username:     user,
		Password:     pass,
		Scheme:       envFirst("TTSCRAPER_PROXY_SCHEME"),
		Host:         envFirst("TTSCRAPER_PROXY_HOST", "PROXY_HOST"),
		Port:         port,
		RotateURL:    envFirst("TTSCRAPER_PROXY_ROTATE_URL"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*ProxyAccount, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*ProxyAccount{}, nil
	}
	return []*ProxyAccount{account}, nil
}

func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

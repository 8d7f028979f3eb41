package auth

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"ttscraper/pkg/config"
)

// ProxyAccount is one egress proxy: where it listens, how to authenticate,
// and the provider endpoint that hands out a new exit IP. A nil or
// host-less account means requests go out directly.
type ProxyAccount struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	Scheme       string    `json:"scheme,omitempty"`
	Host         string    `json:"host,omitempty"`
	Port         int       `json:"port,omitempty"`
	RotateURL    string    `json:"rotate_url,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// AccountFromConfig takes the proxy endpoint and inline credentials of cfg
func AccountFromConfig(cfg config.ProxyConfig) *ProxyAccount {
	return &ProxyAccount{
		Username:  cfg.Username,
		Password:  cfg.Password,
		Scheme:    cfg.Scheme,
		Host:      cfg.Host,
		Port:      cfg.Port,
		RotateURL: cfg.RotateURL,
	}
}

// Enabled reports whether the account names a proxy host
func (a *ProxyAccount) Enabled() bool {
	return a != nil && a.Host != ""
}

// SchemeOrDefault returns the lower-case scheme, http when unset
func (a *ProxyAccount) SchemeOrDefault() string {
	if a == nil || a.Scheme == "" {
		return "http"
	}
	return strings.ToLower(a.Scheme)
}

// Address returns host:port, or the bare host without a port
func (a *ProxyAccount) Address() string {
	if a.Port == 0 {
		return a.Host
	}
	return a.Host + ":" + strconv.Itoa(a.Port)
}

// URL is the proxy URL with credentials, as http.ProxyURL expects it
func (a *ProxyAccount) URL() *url.URL {
	u := &url.URL{Scheme: a.SchemeOrDefault(), Host: a.Address()}
	if a.Username != "" {
		u.User = url.UserPassword(a.Username, a.Password)
	}
	return u
}

// String describes the endpoint without its password
func (a *ProxyAccount) String() string {
	if !a.Enabled() {
		return "direct"
	}
	if a.Username == "" {
		return a.SchemeOrDefault() + "://" + a.Address()
	}
	return fmt.Sprintf("%s://%s@%s", a.SchemeOrDefault(), a.Username, a.Address())
}

// fillFrom completes a with stored's fields. The endpoint (scheme, host,
// port) is taken as a unit so a configured host never gets a stored port.
func (a *ProxyAccount) fillFrom(stored *ProxyAccount) *ProxyAccount {
	out := *a
	if out.Username == "" {
		out.Username = stored.Username
	}
	if out.Password == "" && out.Username == stored.Username {
		out.Password = stored.Password
	}
	if out.Host == "" {
		out.Scheme, out.Host, out.Port = stored.Scheme, stored.Host, stored.Port
	}
	if out.RotateURL == "" {
		out.RotateURL = stored.RotateURL
	}
	out.LastModified = stored.LastModified
	return &out
}

// CredentialStore persists proxy accounts keyed by username
type CredentialStore interface {
	Store(account *ProxyAccount) error
	Retrieve(username string) (*ProxyAccount, error)
	List() ([]*ProxyAccount, error)
	Delete(username string) error
}

// Manager reads from and writes to an ordered chain of stores
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager trying, in order, the system
// keyring, an encrypted file in the config directory, and the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	fileStore, err := NewEncryptedFileStore(filepath.Join(configDir, "proxy-accounts.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the account in the first store that accepts it
func (m *Manager) Store(account *ProxyAccount) error {
	if account == nil || account.Username == "" {
		return errors.New("username is required")
	}
	if account.Password == "" {
		return errors.New("password is required")
	}
	account.LastModified = time.Now()

	var errs []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store proxy account: %w", errors.Join(errs...))
}

// Retrieve returns the account from the first store holding it
func (m *Manager) Retrieve(username string) (*ProxyAccount, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, username)
}

// Resolve returns the complete proxy account a run should use. Fields set
// in cfg win; a stored account (the named one, or else the most recent)
// fills in the rest. Without any stored account cfg alone describes the
// proxy, which may mean no proxy at all.
func (m *Manager) Resolve(cfg config.ProxyConfig) (*ProxyAccount, error) {
	account := AccountFromConfig(cfg)
	if account.Username != "" && account.Password != "" {
		return account, nil
	}

	if account.Username != "" {
		stored, err := m.Retrieve(account.Username)
		if err != nil {
			return nil, err
		}
		return account.fillFrom(stored), nil
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return account, nil
	}
	return account.fillFrom(accounts[0]), nil
}

// List merges every store's accounts, newest first
func (m *Manager) List() ([]*ProxyAccount, error) {
	byUser := make(map[string]*ProxyAccount)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byUser[account.Username]; !ok || account.LastModified.After(existing.LastModified) {
				byUser[account.Username] = account
			}
		}
	}

	result := make([]*ProxyAccount, 0, len(byUser))
	for _, account := range byUser {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].Username < result[j].Username
		}
		return result[i].LastModified.After(result[j].LastModified)
	})
	return result, nil
}

// Delete removes the account from every store holding it
func (m *Manager) Delete(username string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// getConfigDir returns the per-user configuration directory
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "ttscraper")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "ttscraper")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "ttscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "ttscraper")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// SanitizeAccount returns a copy with the password masked
func SanitizeAccount(account *ProxyAccount) *ProxyAccount {
	if account == nil {
		return nil
	}
	masked := *account
	masked.Password = maskString(account.Password)
	return &masked
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

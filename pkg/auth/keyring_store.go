package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "ttscraper-proxy"
	// keyringIndex lists the stored usernames; the keychain itself cannot be enumerated
	keyringIndex = "_accounts"
)

// KeyringStore keeps each proxy account as one JSON secret in the system
// keychain, plus an index secret naming every stored account.
type KeyringStore struct {
	service string
}

// NewKeyringStore returns a keyring store, or an error when no keychain
// backend answers
func NewKeyringStore() (*KeyringStore, error) {
	k := &KeyringStore{service: keyringService}
	if _, err := k.index(); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	return k, nil
}

func (k *KeyringStore) Store(account *ProxyAccount) error {
	if account == nil || account.Username == "" || account.Username == keyringIndex {
		return ErrInvalidCredentials
	}
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, account.Username, string(data)); err != nil {
		return fmt.Errorf("keyring write failed: %w", err)
	}

	names, err := k.index()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == account.Username {
			return nil
		}
	}
	return k.writeIndex(append(names, account.Username))
}

func (k *KeyringStore) Retrieve(username string) (*ProxyAccount, error) {
	if username == "" || username == keyringIndex {
		return nil, ErrInvalidCredentials
	}
	data, err := keyring.Get(k.service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("keyring read failed: %w", err)
	}

	var account ProxyAccount
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry for %s: %w", username, err)
	}
	return &account, nil
}

// List returns the indexed accounts; index entries whose secret is gone
// are skipped.
func (k *KeyringStore) List() ([]*ProxyAccount, error) {
	names, err := k.index()
	if err != nil {
		return nil, err
	}
	accounts := make([]*ProxyAccount, 0, len(names))
	for _, n := range names {
		if account, err := k.Retrieve(n); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(username string) error {
	if username == "" || username == keyringIndex {
		return ErrInvalidCredentials
	}
	err := keyring.Delete(k.service, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("keyring delete failed: %w", err)
	}

	names, err := k.index()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != username {
			kept = append(kept, n)
		}
	}
	return k.writeIndex(kept)
}

func (k *KeyringStore) index() ([]string, error) {
	data, err := keyring.Get(k.service, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("corrupt keyring index: %w", err)
	}
	return names, nil
}

func (k *KeyringStore) writeIndex(names []string) error {
	if len(names) == 0 {
		err := keyring.Delete(k.service, keyringIndex)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	sort.Strings(names)
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, keyringIndex, string(data))
}

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultVersion    = 1
	vaultSaltSize   = 16
	vaultKeySize    = 32
	vaultIterations = 100_000

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "TTSCRAPER_PASSPHRASE"
)

// vaultFile is the on-disk layout. Sealed is the AES-GCM nonce followed by
// the ciphertext of the JSON account map.
type vaultFile struct {
	Version int       `json:"version"`
	Salt    []byte    `json:"salt"`
	Sealed  []byte    `json:"sealed"`
	SavedAt time.Time `json:"saved_at"`
}

// EncryptedFileStore keeps every proxy account in one AES-GCM sealed file.
// The key is derived with PBKDF2 from PassphraseEnv or from a random
// passphrase kept beside the file.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.Mutex
}

// NewEncryptedFileStore opens (without reading) the vault at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create vault directory: %w", err)
	}
	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(account *ProxyAccount) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]ProxyAccount) error {
		accounts[account.Username] = *account
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(username string) (*ProxyAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, _, err := e.read()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (e *EncryptedFileStore) List() ([]*ProxyAccount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, _, err := e.read()
	if err != nil {
		return nil, err
	}
	out := make([]*ProxyAccount, 0, len(accounts))
	for _, account := range accounts {
		account := account
		out = append(out, &account)
	}
	return out, nil
}

// Delete removes an account; the vault file goes away with its last account
func (e *EncryptedFileStore) Delete(username string) error {
	return e.update(func(accounts map[string]ProxyAccount) error {
		if _, ok := accounts[username]; !ok {
			return ErrCredentialsNotFound
		}
		delete(accounts, username)
		return nil
	})
}

// update applies fn to the decrypted accounts and reseals the vault
func (e *EncryptedFileStore) update(fn func(map[string]ProxyAccount) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, salt, err := e.read()
	if err != nil {
		return err
	}
	if err := fn(accounts); err != nil {
		return err
	}
	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return e.write(accounts, salt)
}

// read returns the accounts and salt; a missing vault is empty
func (e *EncryptedFileStore) read() (map[string]ProxyAccount, []byte, error) {
	accounts := make(map[string]ProxyAccount)

	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return accounts, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var vault vaultFile
	if err := json.Unmarshal(content, &vault); err != nil {
		return nil, nil, fmt.Errorf("unreadable vault %s: %w", e.path, err)
	}
	if vault.Version != vaultVersion {
		return nil, nil, fmt.Errorf("unsupported vault version %d", vault.Version)
	}

	plain, err := openSealed(e.key(vault.Salt), vault.Sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot decrypt vault (wrong passphrase?): %w", err)
	}
	if err := json.Unmarshal(plain, &accounts); err != nil {
		return nil, nil, fmt.Errorf("corrupt vault contents: %w", err)
	}
	return accounts, vault.Salt, nil
}

func (e *EncryptedFileStore) write(accounts map[string]ProxyAccount, salt []byte) error {
	if salt == nil {
		salt = make([]byte, vaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
	}
	plain, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	sealed, err := seal(e.key(salt), plain)
	if err != nil {
		return err
	}
	content, err := json.MarshalIndent(vaultFile{
		Version: vaultVersion,
		Salt:    salt,
		Sealed:  sealed,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write vault: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace vault: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, vaultIterations, vaultKeySize, sha256.New)
}

// loadPassphrase prefers PassphraseEnv, then the passphrase file, and
// creates the file with a random passphrase on first use
func loadPassphrase(path string) ([]byte, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return []byte(p), nil
	}
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := []byte(base64.RawURLEncoding.EncodeToString(raw))
	if err := os.WriteFile(path, passphrase, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func openSealed(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed data too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

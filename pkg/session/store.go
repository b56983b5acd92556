package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"linkscraper/pkg/browser"
	"linkscraper/pkg/logger"
)

const (
	keyringService = "linkscraper"
	keyringKey     = "linkedin_cookies"

	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// ErrNoCookies is returned by a store that holds no cookie set.
var ErrNoCookies = errors.New("no stored cookies")

// errReadOnly is returned by stores that cannot persist.
var errReadOnly = errors.New("store is read-only")

// Store persists one cookie set. Stores are tried in order by the Chain;
// a store with nothing to offer returns ErrNoCookies.
type Store interface {
	Name() string
	Load() ([]browser.Cookie, error)
	Save(cookies []browser.Cookie) error
	Clear() error
}

// EnvStore serves the cookie blob from configuration. It never persists:
// the operator owns the environment.
type EnvStore struct {
	blob string
}

func NewEnvStore(blob string) *EnvStore { return &EnvStore{blob: blob} }

func (s *EnvStore) Name() string { return "environment" }

func (s *EnvStore) Load() ([]browser.Cookie, error) {
	if s.blob == "" {
		return nil, ErrNoCookies
	}
	return ParseCookies([]byte(s.blob))
}

func (s *EnvStore) Save(cookies []browser.Cookie) error { return errReadOnly }
func (s *EnvStore) Clear() error                        { return errReadOnly }

// FileStore persists cookies as plain JSON, compatible with browser
// exports so the operator can seed or inspect the file directly.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Load() ([]browser.Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookies
		}
		return nil, err
	}
	return ParseCookies(data)
}

func (s *FileStore) Save(cookies []browser.Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// KeyringStore keeps the cookie set in the system keychain.
type KeyringStore struct{}

// NewKeyringStore probes keychain availability before handing out a store.
func NewKeyringStore() (*KeyringStore, error) {
	probe := "availability_probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (s *KeyringStore) Name() string { return "keyring" }

func (s *KeyringStore) Load() ([]browser.Cookie, error) {
	data, err := keyring.Get(keyringService, keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoCookies
		}
		return nil, err
	}
	return ParseCookies([]byte(data))
}

func (s *KeyringStore) Save(cookies []browser.Cookie) error {
	data, err := json.Marshal(cookies)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringKey, string(data))
}

func (s *KeyringStore) Clear() error {
	err := keyring.Delete(keyringService, keyringKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// EncryptedFileStore persists cookies in an AES-GCM encrypted file for
// hosts without a keychain. The key is derived from a passphrase with
// PBKDF2; the passphrase comes from the environment or a generated
// per-install secret.
type EncryptedFileStore struct {
	path       string
	passphrase string
}

func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	s := &EncryptedFileStore{path: path}
	pass, err := s.getPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	s.passphrase = pass
	return s, nil
}

func (s *EncryptedFileStore) Name() string { return "encrypted_file" }

func (s *EncryptedFileStore) Load() ([]browser.Cookie, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCookies
		}
		return nil, err
	}

	var fileData struct {
		Salt      string `json:"salt"`
		Encrypted string `json:"encrypted"`
	}
	if err := json.Unmarshal(content, &fileData); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(fileData.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(fileData.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	key := pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)
	plaintext, err := decrypt(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var cookies []browser.Cookie
	if err := json.Unmarshal(plaintext, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}
	return cookies, nil
}

func (s *EncryptedFileStore) Save(cookies []browser.Cookie) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	plaintext, err := json.Marshal(cookies)
	if err != nil {
		return err
	}

	key := pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)
	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	fileData := struct {
		Salt      string    `json:"salt"`
		Encrypted string    `json:"encrypted"`
		Version   int       `json:"version"`
		Modified  time.Time `json:"modified"`
	}{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		Version:   1,
		Modified:  time.Now(),
	}

	content, err := json.MarshalIndent(fileData, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *EncryptedFileStore) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *EncryptedFileStore) getPassphrase() (string, error) {
	if pass := os.Getenv("LINKSCRAPER_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}
	passphraseFile := filepath.Join(dir, ".passphrase")

	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	pass := generatePassphrase()
	if err := os.WriteFile(passphraseFile, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func generatePassphrase() string {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

func configDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "linkscraper")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "linkscraper")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "linkscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "linkscraper")
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Chain tries stores in order on load and writes through every writable
// store on save, so a session obtained once survives restarts even when
// the preferred backend is unavailable.
type Chain struct {
	stores []Store
	log    logger.Logger
}

// NewChain assembles the default store order: explicit configuration
// first, then the plain cookie file, then the keychain, then the
// encrypted fallback file.
func NewChain(envBlob, cookieFile string, log logger.Logger) *Chain {
	if log == nil {
		log = logger.GetLogger()
	}
	stores := []Store{}
	if envBlob != "" {
		stores = append(stores, NewEnvStore(envBlob))
	}
	if cookieFile != "" {
		stores = append(stores, NewFileStore(cookieFile))
	}
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	} else {
		log.WithError(err).Debug("Keyring unavailable, skipping")
	}
	if dir, err := configDir(); err == nil {
		if es, err := NewEncryptedFileStore(filepath.Join(dir, "cookies.enc")); err == nil {
			stores = append(stores, es)
		} else {
			log.WithError(err).Debug("Encrypted cookie store unavailable, skipping")
		}
	}
	return &Chain{stores: stores, log: log}
}

// NewChainOf builds a chain over explicit stores, mainly for tests.
func NewChainOf(log logger.Logger, stores ...Store) *Chain {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Chain{stores: stores, log: log}
}

// Load returns the first cookie set any store can produce, together with
// the name of the store that produced it.
func (c *Chain) Load() ([]browser.Cookie, string, error) {
	for _, store := range c.stores {
		cookies, err := store.Load()
		if err == nil && len(cookies) > 0 {
			return cookies, store.Name(), nil
		}
		if err != nil && !errors.Is(err, ErrNoCookies) {
			c.log.WithError(err).WithField("store", store.Name()).Warn("Cookie store load failed")
		}
	}
	return nil, "", ErrNoCookies
}

// Save writes the cookie set through every writable store. It succeeds
// when at least one store accepted the set.
func (c *Chain) Save(cookies []browser.Cookie) error {
	var saved bool
	var lastErr error
	for _, store := range c.stores {
		err := store.Save(cookies)
		switch {
		case err == nil:
			saved = true
		case errors.Is(err, errReadOnly):
		default:
			lastErr = err
			c.log.WithError(err).WithField("store", store.Name()).Warn("Cookie store save failed")
		}
	}
	if saved {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to save cookies: %w", lastErr)
	}
	return errors.New("no writable cookie stores")
}

// Clear removes the cookie set from every store.
func (c *Chain) Clear() error {
	var lastErr error
	for _, store := range c.stores {
		if err := store.Clear(); err != nil && !errors.Is(err, errReadOnly) {
			lastErr = err
		}
	}
	return lastErr
}

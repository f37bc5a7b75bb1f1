// Package keyring provides secure secret storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Common errors returned by keyring operations.
var (
	ErrNotFound = errors.New("secret not found")
	ErrEmpty    = errors.New("account and secret must not be empty")
)

// Vault stores secrets under a service name in the system keyring, or in
// an encrypted file next to the application data when no keyring
// service is reachable.
type Vault struct {
	service      string
	fallbackFile string

	mu       sync.Mutex
	probed   bool
	useLocal bool
	local    map[string]string
	key      []byte
}

// New creates a vault. fallbackFile is only touched when the system
// keyring is unavailable.
func New(service, fallbackFile string) *Vault {
	return &Vault{
		service:      service,
		fallbackFile: fallbackFile,
	}
}

// probe picks the backend on first use. Callers hold v.mu.
func (v *Vault) probe() {
	if v.probed {
		return
	}
	v.probed = true

	testKey := v.service + "-probe"
	err := keyring.Set(v.service, testKey, "probe")
	if err == nil {
		_ = keyring.Delete(v.service, testKey)
		return
	}
	log.Debug().Err(err).Msg("system keyring unavailable, using encrypted file")
	v.switchToLocal()
}

// switchToLocal enables the encrypted file backend. Callers hold v.mu.
func (v *Vault) switchToLocal() {
	v.useLocal = true
	v.key = deriveKey(v.service)
	v.local = make(map[string]string)
	v.loadLocal()
}

// deriveKey binds the fallback file to this machine and user.
func deriveKey(service string) []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", service, hostname, machineID(), os.Getuid())
	reader := hkdf.New(sha256.New, []byte(secret), nil, []byte(service+" credential store"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		sum := sha256.Sum256([]byte(secret))
		return sum[:]
	}
	return key
}

func machineID() string {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			return strings.TrimSpace(string(data))
		}
	}
	return "default-machine-id"
}

func (v *Vault) loadLocal() {
	data, err := os.ReadFile(v.fallbackFile)
	if err != nil {
		return
	}

	plaintext, err := v.decrypt(data)
	if err != nil {
		log.Warn().Err(err).Str("file", v.fallbackFile).Msg("ignoring unreadable credential file")
		return
	}

	_ = json.Unmarshal(plaintext, &v.local)
}

func (v *Vault) saveLocal() error {
	if len(v.local) == 0 {
		if err := os.Remove(v.fallbackFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}

	data, err := json.Marshal(v.local)
	if err != nil {
		return err
	}

	encrypted, err := v.encrypt(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(v.fallbackFile), 0700); err != nil {
		return err
	}
	return os.WriteFile(v.fallbackFile, encrypted, 0600)
}

func (v *Vault) encrypt(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := aead.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (v *Vault) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

// Store saves a secret for account, replacing any previous one.
func (v *Vault) Store(account, secret string) error {
	if account == "" || secret == "" {
		return ErrEmpty
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.probe()

	if !v.useLocal {
		err := keyring.Set(v.service, account, secret)
		if err == nil {
			return nil
		}
		log.Warn().Err(err).Msg("keyring write failed, falling back to encrypted file")
		v.switchToLocal()
	}

	v.local[account] = secret
	return v.saveLocal()
}

// Get retrieves the secret for account.
func (v *Vault) Get(account string) (string, error) {
	if account == "" {
		return "", ErrEmpty
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.probe()

	if v.useLocal {
		secret, ok := v.local[account]
		if !ok {
			return "", ErrNotFound
		}
		return secret, nil
	}

	secret, err := keyring.Get(v.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("keyring read: %w", err)
	}
	return secret, nil
}

// Delete removes the secret for account. Missing secrets are not an error.
func (v *Vault) Delete(account string) error {
	if account == "" {
		return ErrEmpty
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.probe()

	if v.useLocal {
		delete(v.local, account)
		return v.saveLocal()
	}

	if err := keyring.Delete(v.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// Exists checks if a secret exists for account.
func (v *Vault) Exists(account string) bool {
	_, err := v.Get(account)
	return err == nil
}

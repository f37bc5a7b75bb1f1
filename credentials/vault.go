package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
	"github.com/yllada/teleport-manager/keyring"
)

// TokenVault persists the device token.
type TokenVault interface {
	// Load returns the token or an error wrapping common.ErrNotFound.
	Load() (string, error)
	// Save replaces the token. A failed save keeps the previous token.
	Save(token string) error
	// Delete removes the token; a missing token is not an error.
	Delete() error
	// Location describes where the token lives, for reset reports.
	Location() string
}

// FileVault keeps the token as a plain text file.
type FileVault struct {
	path string
}

// NewFileVault returns a vault backed by path.
func NewFileVault(path string) *FileVault {
	return &FileVault{path: path}
}

func (v *FileVault) Load() (string, error) {
	data, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("device token: %w", common.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read device token: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("device token file is empty: %w", common.ErrNotFound)
	}
	return token, nil
}

func (v *FileVault) Save(token string) error {
	return common.WriteFileAtomic(v.path, []byte(token), 0600)
}

func (v *FileVault) Delete() error {
	return removeIfExists(v.path)
}

func (v *FileVault) Location() string {
	return v.path
}

// keyringAccount names the token entry in the system keyring.
const keyringAccount = "device-token"

// KeyringVault keeps the token in the system keyring.
type KeyringVault struct {
	vault *keyring.Vault
	name  string
}

// NewKeyringVault stores the token under a per-tunnel keyring service.
// The encrypted fallback file lives in dir.
func NewKeyringVault(dir, tunnel string) *KeyringVault {
	service := common.CommandName + "-" + tunnel
	return &KeyringVault{
		vault: keyring.New(service, filepath.Join(dir, ".credentials")),
		name:  "keyring:" + service,
	}
}

func (v *KeyringVault) Load() (string, error) {
	token, err := v.vault.Get(keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("device token: %w", common.ErrNotFound)
	}
	return token, err
}

func (v *KeyringVault) Save(token string) error {
	return v.vault.Store(keyringAccount, token)
}

func (v *KeyringVault) Delete() error {
	return v.vault.Delete(keyringAccount)
}

func (v *KeyringVault) Location() string {
	return v.name
}

// NewVault returns the token vault selected by backend.
func NewVault(backend string, paths config.Paths) TokenVault {
	if backend == common.CredentialBackendKeyring {
		return NewKeyringVault(paths.Dir, paths.TunnelName)
	}
	return NewFileVault(paths.TokenFile)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Package credentials owns the device identity and device token: it
// creates the identity once, trades (identity, PIN) for a token through
// the Teleport backend, and removes both on reset.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
)

// Authenticator exchanges a device identity and PIN for a device token.
type Authenticator interface {
	DeviceToken(ctx context.Context, clientHint, pin string) (string, error)
}

// Store manages the device identity and token artifacts.
type Store struct {
	paths  config.Paths
	auth   Authenticator
	tokens TokenVault
	newID  func() string
}

// NewStore creates a credential store. A nil vault keeps the token in
// paths.TokenFile.
func NewStore(paths config.Paths, auth Authenticator, tokens TokenVault) *Store {
	if tokens == nil {
		tokens = NewFileVault(paths.TokenFile)
	}
	return &Store{
		paths:  paths,
		auth:   auth,
		tokens: tokens,
		newID:  NewIdentity,
	}
}

// NewIdentity generates a random client hint.
func NewIdentity() string {
	return uuid.NewString()
}

// NormalizePIN trims a user-entered PIN; an empty result means no PIN.
func NormalizePIN(pin string) string {
	return strings.TrimSpace(pin)
}

// LoadOrCreateIdentity returns the persisted identity, generating and
// persisting one on first use. An existing identity is never replaced.
func (s *Store) LoadOrCreateIdentity() (string, error) {
	id, err := s.readIdentity()
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if err := common.EnsureDir(s.paths.Dir); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}

	id = s.newID()
	// O_EXCL so a concurrently created identity wins instead of being clobbered.
	f, err := os.OpenFile(s.paths.IdentityFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		return s.readIdentity()
	}
	if err != nil {
		return "", fmt.Errorf("create device identity: %w", err)
	}
	if _, err := f.WriteString(id); err != nil {
		f.Close()
		os.Remove(s.paths.IdentityFile)
		return "", fmt.Errorf("write device identity: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(s.paths.IdentityFile)
		return "", fmt.Errorf("write device identity: %w", err)
	}

	log.Info().Str("identity", common.ShortID(id)).Msg("created device identity")
	return id, nil
}

func (s *Store) readIdentity() (string, error) {
	data, err := os.ReadFile(s.paths.IdentityFile)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("device identity file %s is empty; reset the configuration", s.paths.IdentityFile)
	}
	return id, nil
}

// HasIdentity reports whether an identity has been persisted.
func (s *Store) HasIdentity() bool {
	return common.FileExists(s.paths.IdentityFile)
}

// ExchangePIN trades identity and pin for a device token and persists
// it, replacing any previous token. On failure the previous token is kept.
func (s *Store) ExchangePIN(ctx context.Context, identity, pin string) (string, error) {
	if identity == "" {
		return "", fmt.Errorf("%w: device identity missing", common.ErrAuth)
	}
	pin = NormalizePIN(pin)
	if pin == "" {
		return "", common.ErrPinRequired
	}

	token, err := s.auth.DeviceToken(ctx, identity, pin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrAuth, err)
	}

	if err := s.tokens.Save(token); err != nil {
		return "", fmt.Errorf("%w: store device token: %v", common.ErrAuth, err)
	}

	log.Info().Str("identity", common.ShortID(identity)).Msg("device token stored")
	return token, nil
}

// LoadToken returns the persisted device token, or an error wrapping
// common.ErrNotFound.
func (s *Store) LoadToken() (string, error) {
	return s.tokens.Load()
}

// HasToken reports whether a device token is persisted.
func (s *Store) HasToken() bool {
	_, err := s.tokens.Load()
	return err == nil
}

// Clear deletes the identity, token and tunnel config. Absent artifacts
// are not an error; every artifact is attempted even if one fails, and a
// *common.DeletionError lists what remains.
func (s *Store) Clear() error {
	var failed common.DeletionError

	for _, path := range []string{s.paths.IdentityFile, s.paths.ConfigFile} {
		if err := removeIfExists(path); err != nil {
			failed.Remaining = append(failed.Remaining, path)
			failed.Errs = append(failed.Errs, err)
		}
	}

	if err := s.tokens.Delete(); err != nil {
		failed.Remaining = append(failed.Remaining, s.tokens.Location())
		failed.Errs = append(failed.Errs, err)
	}
	// A token file can outlive a switch to the keyring backend.
	if s.tokens.Location() != s.paths.TokenFile {
		if err := removeIfExists(s.paths.TokenFile); err != nil {
			failed.Remaining = append(failed.Remaining, s.paths.TokenFile)
			failed.Errs = append(failed.Errs, err)
		}
	}

	if len(failed.Remaining) > 0 {
		return &failed
	}
	return nil
}

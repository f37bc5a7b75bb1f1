package vpn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
)

// Provisioner trades a device token for a tunnel configuration document.
type Provisioner interface {
	ConnectDevice(ctx context.Context, token string) (string, error)
}

// rejecter is implemented by backend errors that can tell a refused
// credential from a failed request.
type rejecter interface {
	Rejected() bool
}

// IsTokenRejected reports whether a provider failure means the device
// token itself is no longer accepted, so a new PIN is needed.
func IsTokenRejected(err error) bool {
	var r rejecter
	return errors.As(err, &r) && r.Rejected()
}

// ConfigProvider fetches the tunnel configuration and persists it.
type ConfigProvider struct {
	prov Provisioner
	path string
}

// NewConfigProvider creates a provider that writes to path.
func NewConfigProvider(prov Provisioner, path string) *ConfigProvider {
	return &ConfigProvider{prov: prov, path: path}
}

// Path returns where the configuration is written.
func (p *ConfigProvider) Path() string {
	return p.path
}

// FetchConfig requests a fresh configuration for token and overwrites the
// config file with it verbatim. Every failure wraps common.ErrProvider; a
// document that is not a valid WireGuard configuration is never written.
func (p *ConfigProvider) FetchConfig(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: no device token", common.ErrProvider)
	}

	doc, err := p.prov.ConnectDevice(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrProvider, err)
	}

	summary, err := ParseTunnelConfig(doc)
	if err != nil {
		return "", fmt.Errorf("%w: invalid tunnel configuration: %v", common.ErrProvider, err)
	}

	if err := common.WriteFileAtomic(p.path, []byte(doc), 0600); err != nil {
		return "", fmt.Errorf("%w: write %s: %v", common.ErrProvider, p.path, err)
	}

	log.Info().
		Str("config", p.path).
		Str("public_key", summary.PublicKey).
		Int("peers", len(summary.Peers)).
		Msg("tunnel configuration updated")
	return doc, nil
}

// Summary parses the persisted configuration.
func (p *ConfigProvider) Summary() (*TunnelSummary, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.ErrConfigMissing
		}
		return nil, err
	}
	return ParseTunnelConfig(string(data))
}

// Package config provides configuration management for the Teleport
// tunnel manager. It handles loading, saving, and validating application
// settings, and derives the fixed artifact paths every component shares.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"time"

	"github.com/yllada/teleport-manager/common"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the Teleport device pairing endpoint.
const DefaultAPIURL = "https://amplifi.com/api/teleport/v1"

// tunnelNamePattern mirrors the WireGuard tunnel naming rules; the name
// doubles as the config file stem.
var tunnelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_=+.-]{1,32}$`)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the data directory.
type Config struct {
	// DataDir overrides where identity, token and tunnel config live.
	DataDir string `yaml:"data_dir,omitempty"`
	// TunnelName is the fixed WireGuard tunnel name.
	TunnelName string `yaml:"tunnel_name"`
	// ServiceName is the OS service that backs the tunnel.
	ServiceName string `yaml:"service_name"`
	// WireGuardPath is the VPN service-control tool.
	WireGuardPath string `yaml:"wireguard_path"`
	// InstallArgs and UninstallArgs are argument templates; {config} and
	// {tunnel} are substituted at invocation time.
	InstallArgs   []string `yaml:"install_args"`
	UninstallArgs []string `yaml:"uninstall_args"`
	// StatusBackend selects how service state is queried: "command" runs
	// StatusCommand, "service" asks the OS service manager directly.
	StatusBackend string `yaml:"status_backend"`
	// StatusCommand is the status query template; {service} and {tunnel}
	// are substituted.
	StatusCommand []string `yaml:"status_command"`
	// APIURL is the base URL of the Teleport pairing backend.
	APIURL string `yaml:"api_url"`
	// CredentialBackend is where the device token lives: "file" or "keyring".
	CredentialBackend string `yaml:"credential_backend"`
	// LogLevel is the minimum zerolog level.
	LogLevel string `yaml:"log_level"`
	// Timeouts bound every blocking call of the lifecycle.
	Timeouts Timeouts `yaml:"timeouts"`
}

// Timeouts holds the lifecycle's timing parameters.
type Timeouts struct {
	StatusQuery      time.Duration `yaml:"status_query"`
	StatusRetries    int           `yaml:"status_retries"`
	StatusRetryDelay time.Duration `yaml:"status_retry_delay"`
	PollInterval     time.Duration `yaml:"deactivate_poll_interval"`
	MaxWait          time.Duration `yaml:"deactivate_max_wait"`
	Tool             time.Duration `yaml:"tool"`
	HTTP             time.Duration `yaml:"http"`
}

// DefaultTimeouts returns the canonical lifecycle timing.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		StatusQuery:      common.StatusQueryTimeout,
		StatusRetries:    common.StatusQueryRetries,
		StatusRetryDelay: common.StatusRetryDelay,
		PollInterval:     common.DeactivatePollInterval,
		MaxWait:          common.DeactivateMaxWait,
		Tool:             common.ToolTimeout,
		HTTP:             common.HTTPTimeout,
	}
}

// DefaultConfig returns the default configuration for the current platform.
func DefaultConfig() *Config {
	cfg := &Config{
		TunnelName:        common.TunnelName,
		StatusBackend:     common.StatusBackendCommand,
		APIURL:            DefaultAPIURL,
		CredentialBackend: common.CredentialBackendFile,
		LogLevel:          "info",
		Timeouts:          DefaultTimeouts(),
	}
	cfg.ServiceName = DefaultServiceName(cfg.TunnelName)

	switch runtime.GOOS {
	case "windows":
		cfg.WireGuardPath = `C:\Program Files\WireGuard\wireguard.exe`
		cfg.InstallArgs = []string{"/installtunnelservice", "{config}"}
		cfg.UninstallArgs = []string{"/uninstalltunnelservice", "{tunnel}"}
		cfg.StatusCommand = []string{"sc", "query", "{service}"}
	default:
		cfg.WireGuardPath = "wg-quick"
		cfg.InstallArgs = []string{"up", "{config}"}
		cfg.UninstallArgs = []string{"down", "{config}"}
		cfg.StatusCommand = []string{"wg", "show", "{tunnel}"}
	}
	return cfg
}

// DefaultServiceName returns the OS service name WireGuard registers for
// a tunnel.
func DefaultServiceName(tunnel string) string {
	if runtime.GOOS == "windows" {
		return "WireGuardTunnel$" + tunnel
	}
	return "wg-quick@" + tunnel
}

// DefaultPath returns the location of the configuration file.
func DefaultPath() (string, error) {
	dir, err := common.DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}

// Load loads the configuration from path.
// If the file doesn't exist, it creates one with default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	cfg := DefaultConfig()
	// Derived from the tunnel name unless set explicitly.
	cfg.ServiceName = ""
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: error parsing %s: %v", common.ErrConfigLoad, path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	return cfg, nil
}

// validate rejects values that cannot work and falls back to defaults for
// values that are merely out of range.
func (c *Config) validate() error {
	def := DefaultConfig()

	if c.TunnelName == "" {
		c.TunnelName = def.TunnelName
	}
	if !tunnelNamePattern.MatchString(c.TunnelName) {
		return fmt.Errorf("invalid tunnel name %q", c.TunnelName)
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName(c.TunnelName)
	}
	if c.WireGuardPath == "" {
		c.WireGuardPath = def.WireGuardPath
	}
	if len(c.InstallArgs) == 0 {
		c.InstallArgs = def.InstallArgs
	}
	if len(c.UninstallArgs) == 0 {
		c.UninstallArgs = def.UninstallArgs
	}
	if len(c.StatusCommand) == 0 {
		c.StatusCommand = def.StatusCommand
	}
	if c.APIURL == "" {
		c.APIURL = def.APIURL
	}

	switch c.StatusBackend {
	case common.StatusBackendCommand, common.StatusBackendService:
	default:
		c.StatusBackend = def.StatusBackend
	}
	switch c.CredentialBackend {
	case common.CredentialBackendFile, common.CredentialBackendKeyring:
	default:
		c.CredentialBackend = def.CredentialBackend
	}

	c.Timeouts.applyDefaults(def.Timeouts)
	return nil
}

func (t *Timeouts) applyDefaults(def Timeouts) {
	if t.StatusQuery <= 0 {
		t.StatusQuery = def.StatusQuery
	}
	if t.StatusRetries < 1 {
		t.StatusRetries = def.StatusRetries
	}
	if t.StatusRetryDelay < 0 {
		t.StatusRetryDelay = def.StatusRetryDelay
	}
	if t.PollInterval <= 0 {
		t.PollInterval = def.PollInterval
	}
	if t.MaxWait <= 0 {
		t.MaxWait = def.MaxWait
	}
	if t.Tool <= 0 {
		t.Tool = def.Tool
	}
	if t.HTTP <= 0 {
		t.HTTP = def.HTTP
	}
}

// Save saves the configuration to path.
func (c *Config) Save(path string) error {
	if err := common.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Paths resolves the artifact locations for this configuration.
func (c *Config) Paths() (Paths, error) {
	dir := c.DataDir
	if dir == "" {
		var err error
		dir, err = common.DefaultDataDir()
		if err != nil {
			return Paths{}, err
		}
	}
	return NewPaths(dir, c.TunnelName), nil
}

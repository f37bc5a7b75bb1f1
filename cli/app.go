// Package cli implements the teleport-manager commands: it wires the
// lifecycle components from the configuration and renders their results
// for a terminal.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
	"github.com/yllada/teleport-manager/credentials"
	"github.com/yllada/teleport-manager/history"
	"github.com/yllada/teleport-manager/teleport"
	"github.com/yllada/teleport-manager/vpn"
)

// CLI holds the wired lifecycle components for one invocation.
type CLI struct {
	cfg     *config.Config
	paths   config.Paths
	manager *vpn.Manager
	journal *history.Store

	in     *os.File
	out    io.Writer
	errOut io.Writer
}

// New wires the lifecycle from cfg. The operation journal is optional:
// if it cannot be opened the CLI works without it.
func New(cfg *config.Config) (*CLI, error) {
	paths, err := cfg.Paths()
	if err != nil {
		return nil, err
	}

	runner := vpn.NewExecRunner(cfg.Timeouts.Tool)
	status, err := newStatusQuerier(cfg, runner)
	if err != nil {
		return nil, err
	}

	client := teleport.NewClient(cfg.APIURL, cfg.Timeouts.HTTP)
	creds := credentials.NewStore(paths, client, credentials.NewVault(cfg.CredentialBackend, paths))
	provider := vpn.NewConfigProvider(client, paths.ConfigFile)
	ctrl := vpn.NewController(runner, status, vpn.ToolConfig{
		Path:          cfg.WireGuardPath,
		InstallArgs:   cfg.InstallArgs,
		UninstallArgs: cfg.UninstallArgs,
	}, paths, cfg.Timeouts)

	c := &CLI{
		cfg:    cfg,
		paths:  paths,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	var journal vpn.Journal
	store, err := history.Open(filepath.Join(paths.Dir, common.HistoryFileName))
	if err != nil {
		log.Warn().Err(err).Msg("operation history unavailable")
	} else {
		c.journal = store
		journal = store
	}

	c.manager = vpn.NewManager(creds, provider, ctrl, journal)
	return c, nil
}

func newStatusQuerier(cfg *config.Config, runner vpn.CommandRunner) (vpn.StatusQuerier, error) {
	if cfg.StatusBackend == common.StatusBackendService {
		return vpn.NewRegistryQuerier(cfg.ServiceName)
	}
	q, err := vpn.NewCommandQuerier(runner, cfg.StatusCommand, cfg.ServiceName, cfg.TunnelName)
	if err != nil {
		return nil, fmt.Errorf("status command: %w", err)
	}
	return q, nil
}

// Manager returns the lifecycle manager.
func (c *CLI) Manager() *vpn.Manager {
	return c.manager
}

// Close releases the operation journal.
func (c *CLI) Close() error {
	if c.journal == nil {
		return nil
	}
	return c.journal.Close()
}

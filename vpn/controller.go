package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
)

// Uninstall output that means there was nothing to remove.
var notInstalledMarkers = []string{
	"not found",
	"does not exist",
	"not installed",
	"is not a wireguard interface",
}

// IsNotInstalled reports whether tool output says the tunnel service
// does not exist.
func IsNotInstalled(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range notInstalledMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ToolConfig describes the VPN service-control tool.
type ToolConfig struct {
	Path          string
	InstallArgs   []string
	UninstallArgs []string
}

// Controller installs, uninstalls and queries the tunnel service.
type Controller struct {
	runner   CommandRunner
	status   StatusQuerier
	tool     ToolConfig
	tunnel   string
	config   string
	timeouts config.Timeouts

	mu    sync.RWMutex
	state common.TunnelState
}

// NewController creates a controller for the tunnel in paths. The
// observed state starts as Unknown.
func NewController(runner CommandRunner, status StatusQuerier, tool ToolConfig, paths config.Paths, timeouts config.Timeouts) *Controller {
	return &Controller{
		runner:   runner,
		status:   status,
		tool:     tool,
		tunnel:   paths.TunnelName,
		config:   paths.ConfigFile,
		timeouts: timeouts,
		state:    common.StateUnknown,
	}
}

// State returns the last observed tunnel state. It is never a substitute
// for QueryState before acting on the tunnel.
func (c *Controller) State() common.TunnelState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(state common.TunnelState) {
	c.mu.Lock()
	old := c.state
	c.state = state
	c.mu.Unlock()

	if old != state {
		log.Debug().Str("tunnel", c.tunnel).Stringer("from", old).Stringer("to", state).Msg("tunnel state changed")
	}
}

// Activate replaces any installed tunnel service with one built from
// configPath. The uninstall step is cleanup and its failure does not stop
// the install.
func (c *Controller) Activate(ctx context.Context, configPath string) error {
	if !common.FileExists(configPath) {
		return fmt.Errorf("%w: %s", common.ErrConfigMissing, configPath)
	}

	c.setState(common.StateActivating)
	log.Info().Str("tunnel", c.tunnel).Str("config", configPath).Msg("activating tunnel")

	if err := c.uninstall(ctx, configPath); err != nil {
		var toolErr *common.ToolError
		if errors.As(err, &toolErr) && IsNotInstalled(toolErr.Output) {
			log.Debug().Str("tunnel", c.tunnel).Msg("no previous tunnel service")
		} else {
			log.Warn().Err(err).Str("tunnel", c.tunnel).Msg("pre-install cleanup failed")
		}
	}

	if err := c.install(ctx, configPath); err != nil {
		c.setState(common.StateUnknown)
		log.Error().Err(err).Str("tunnel", c.tunnel).Msg("tunnel activation failed")
		return fmt.Errorf("%w: %w", common.ErrActivationFailed, err)
	}

	c.setState(common.StateActive)
	log.Info().Str("tunnel", c.tunnel).Msg("tunnel activated")
	return nil
}

// Deactivate uninstalls the tunnel service and waits for the service
// layer to confirm it is gone. It returns common.ErrNotActive if nothing
// was installed and common.ErrDeactivationUnconfirmed if the service was
// still reported running when the wait ran out; both are soft outcomes.
func (c *Controller) Deactivate(ctx context.Context) error {
	c.setState(common.StateDeactivating)
	log.Info().Str("tunnel", c.tunnel).Msg("deactivating tunnel")

	if err := c.uninstall(ctx, c.config); err != nil {
		var toolErr *common.ToolError
		if errors.As(err, &toolErr) && IsNotInstalled(toolErr.Output) {
			c.setState(common.StateInactive)
			return common.ErrNotActive
		}
		c.setState(common.StateUnknown)
		return fmt.Errorf("%w: %w", common.ErrDeactivationFailed, err)
	}

	if c.waitInactive(ctx) {
		c.setState(common.StateInactive)
		log.Info().Str("tunnel", c.tunnel).Msg("tunnel deactivated")
		return nil
	}

	c.setState(common.StateUnknown)
	log.Warn().Str("tunnel", c.tunnel).Dur("waited", c.timeouts.MaxWait).Msg("tunnel deactivation not yet confirmed")
	return common.ErrDeactivationUnconfirmed
}

// waitInactive polls at a fixed interval until the service stops running
// or MaxWait elapses.
func (c *Controller) waitInactive(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.MaxWait)
	defer cancel()

	ticker := time.NewTicker(c.timeouts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := c.queryOnce(ctx)
		if ctx.Err() != nil {
			return false
		}
		if err != nil || (status != common.ServiceRunning && status != common.ServicePending) {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// QueryState asks the service layer for the tunnel state. A stopped
// service is Inactive at once. A missing, pending or unreadable service is
// re-checked up to retries times, delay apart, before the tunnel is
// reported Inactive; query errors count as absence.
func (c *Controller) QueryState(ctx context.Context, retries int, delay time.Duration) common.TunnelState {
	if retries < 1 {
		retries = 1
	}

	for attempt := 1; ; attempt++ {
		status, err := c.queryOnce(ctx)
		if err == nil && status == common.ServiceRunning {
			c.setState(common.StateActive)
			return common.StateActive
		}
		log.Debug().Err(err).Stringer("status", status).Int("attempt", attempt).Msg("tunnel service not running")

		// An installed service that reports stopped is a definite answer.
		if err == nil && status == common.ServiceStopped {
			break
		}
		if attempt >= retries || !sleepCtx(ctx, delay) {
			break
		}
	}

	c.setState(common.StateInactive)
	return common.StateInactive
}

// Refresh queries the tunnel state with the configured retry budget.
func (c *Controller) Refresh(ctx context.Context) common.TunnelState {
	return c.QueryState(ctx, c.timeouts.StatusRetries, c.timeouts.StatusRetryDelay)
}

func (c *Controller) queryOnce(ctx context.Context) (common.ServiceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.StatusQuery)
	defer cancel()
	return c.status.Status(ctx)
}

func (c *Controller) install(ctx context.Context, configPath string) error {
	return c.runTool(ctx, "install tunnel service", c.tool.InstallArgs, configPath)
}

func (c *Controller) uninstall(ctx context.Context, configPath string) error {
	return c.runTool(ctx, "uninstall tunnel service", c.tool.UninstallArgs, configPath)
}

func (c *Controller) runTool(ctx context.Context, op string, template []string, configPath string) error {
	args := expandArgs(template, map[string]string{
		"config": configPath,
		"tunnel": c.tunnel,
	})

	out, err := c.runner.Run(ctx, c.tool.Path, args...)
	if err != nil {
		return &common.ToolError{
			Op:       op,
			ExitCode: out.ExitCode,
			Output:   out.Diagnostic(),
			Err:      err,
		}
	}
	return nil
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

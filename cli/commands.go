package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
	"github.com/yllada/teleport-manager/tui"
	"github.com/yllada/teleport-manager/vpn"
	"gopkg.in/yaml.v3"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("cancelled")

// ResultError reports a failed lifecycle operation. Its message is the
// one already shown to the user.
type ResultError struct {
	Result vpn.Result
}

func (e *ResultError) Error() string {
	return e.Result.Message
}

func (e *ResultError) Unwrap() error {
	return e.Result.Err
}

// Connect pairs with pin, or refreshes the tunnel with the saved device
// token when pin is empty. If no usable token exists and prompt is set,
// the user is asked for a PIN and the connect is retried once.
func (c *CLI) Connect(ctx context.Context, pin string, prompt bool) error {
	pin, err := ValidatePIN(pin)
	if err != nil {
		return err
	}
	c.warnIfUnprivileged()

	res := c.manager.Connect(ctx, pin)
	if pin == "" && prompt && needsPIN(res) {
		fmt.Fprintln(c.errOut, res.Message)
		pin, err = ReadPIN(c.in, c.errOut)
		if err != nil {
			return err
		}
		res = c.manager.Connect(ctx, pin)
	}
	return c.report(res)
}

// Disconnect deactivates the tunnel.
func (c *CLI) Disconnect(ctx context.Context) error {
	c.warnIfUnprivileged()
	return c.report(c.manager.Disconnect(ctx))
}

// Reset deletes the tunnel configuration and device credentials after
// confirmation, unless assumeYes is set.
func (c *CLI) Reset(ctx context.Context, assumeYes bool) error {
	if !assumeYes {
		ok, err := Confirm(c.in, c.errOut, "Delete the tunnel configuration and device credentials?")
		if err != nil {
			return err
		}
		if !ok {
			return ErrCancelled
		}
	}
	c.warnIfUnprivileged()
	return c.report(c.manager.Reset(ctx))
}

// Status prints a freshly queried tunnel state and the local artifacts.
func (c *CLI) Status(ctx context.Context) error {
	renderStatus(c.out, c.manager.Report(ctx))
	return nil
}

// Watch prints tunnel state changes until ctx is cancelled.
func (c *CLI) Watch(ctx context.Context) error {
	w := vpn.NewWatcher(c.manager.Controller(), vpn.DefaultWatchInterval)
	w.SetOnChange(func(_, to common.TunnelState) {
		fmt.Fprintf(c.out, "%s  %s\n", timestamp(), stateLabel(to))
	})
	fmt.Fprintln(c.errOut, "Watching tunnel state (Ctrl+C to stop)")
	w.Start(ctx)
	defer w.Stop()

	<-ctx.Done()
	return nil
}

// History prints the most recent journaled operations.
func (c *CLI) History(ctx context.Context, limit int) error {
	if c.journal == nil {
		return errors.New("operation history is unavailable")
	}
	entries, err := c.journal.Recent(ctx, limit)
	if err != nil {
		return err
	}
	renderHistory(c.out, entries)
	return nil
}

// UI runs the interactive control panel.
func (c *CLI) UI(ctx context.Context) error {
	c.warnIfUnprivileged()
	return tui.Run(ctx, c.manager)
}

func (c *CLI) report(res vpn.Result) error {
	renderResult(c.out, res)
	if !res.Success {
		return &ResultError{Result: res}
	}
	return nil
}

func (c *CLI) warnIfUnprivileged() {
	if err := CheckPrivileges(); err != nil {
		log.Warn().Err(err).Msg("tunnel service changes will likely be refused")
	}
}

func needsPIN(res vpn.Result) bool {
	return !res.Success && (errors.Is(res.Err, common.ErrPinRequired) || vpn.IsTokenRejected(res.Err))
}

// ShowConfig prints the effective configuration.
func ShowConfig(out io.Writer, cfg *config.Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# %s\n%s", path, data)
	return nil
}

// InitConfig writes a default configuration to path. An existing file is
// kept unless force is set.
func InitConfig(path string, force bool) error {
	if common.FileExists(path) && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return config.DefaultConfig().Save(path)
}

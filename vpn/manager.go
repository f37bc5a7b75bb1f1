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
	"github.com/yllada/teleport-manager/credentials"
)

// User-facing messages.
const (
	MsgActivated            = "Tunnel activated!"
	MsgDeactivated          = "Tunnel deactivated!"
	MsgDeactivationPending  = "Tunnel deactivation requested (status may take a moment to update)"
	MsgNotActive            = "Tunnel not active."
	MsgNoToken              = "No previous token found. Please enter a new PIN."
	MsgTokenRejected        = "The saved device token was rejected. Please enter a new PIN."
	MsgConfigDeleted        = "Configuration deleted."
	MsgConfigMissing        = "No config found. Generate one first."
	msgActivationFailed     = "Activation failed: "
	msgDeactivationFailed   = "Deactivation failed: "
	msgPinExchangeFailed    = "PIN exchange failed: "
	msgConfigFetchFailed    = "Could not fetch tunnel configuration: "
	msgIdentityFailed       = "Could not create device identity: "
	msgPartialArtifactsLeft = "Some files could not be deleted: "
)

// Journal records lifecycle outcomes.
type Journal interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Manager composes credentials, configuration provider and controller
// into the Connect, Disconnect and Reset operations. Operations are
// serialized; a second one waits for the first to finish.
type Manager struct {
	creds    *credentials.Store
	provider *ConfigProvider
	ctrl     *Controller
	journal  Journal

	mu sync.Mutex
}

// NewManager creates a lifecycle manager. journal may be nil.
func NewManager(creds *credentials.Store, provider *ConfigProvider, ctrl *Controller, journal Journal) *Manager {
	return &Manager{
		creds:    creds,
		provider: provider,
		ctrl:     ctrl,
		journal:  journal,
	}
}

// Controller returns the tunnel controller.
func (m *Manager) Controller() *Controller {
	return m.ctrl
}

// QueryState re-derives the tunnel state from the service layer using
// the configured retry budget.
func (m *Manager) QueryState(ctx context.Context) common.TunnelState {
	return m.ctrl.Refresh(ctx)
}

// StatusReport is a freshly queried view of the tunnel and its local
// artifacts.
type StatusReport struct {
	State      common.TunnelState
	Paired     bool
	HasToken   bool
	ConfigPath string
	// Summary is nil when no valid configuration is on disk.
	Summary *TunnelSummary
}

// Report queries the tunnel state and inspects the local artifacts.
func (m *Manager) Report(ctx context.Context) StatusReport {
	report := StatusReport{
		State:      m.QueryState(ctx),
		Paired:     m.creds.HasIdentity(),
		HasToken:   m.creds.HasToken(),
		ConfigPath: m.provider.Path(),
	}
	if summary, err := m.provider.Summary(); err == nil {
		report.Summary = summary
	}
	return report
}

// Connect pairs with pin, or refreshes with the saved token when pin is
// empty, then fetches a fresh configuration and activates it.
func (m *Manager) Connect(ctx context.Context, pin string) Result {
	return m.run(ctx, OpConnect, func() Result {
		return m.connect(ctx, pin)
	})
}

func (m *Manager) connect(ctx context.Context, pin string) Result {
	pin = credentials.NormalizePIN(pin)

	var token string
	if pin == "" {
		if !m.creds.HasIdentity() {
			return failed(MsgNoToken, common.ErrPinRequired)
		}
		saved, err := m.creds.LoadToken()
		if err != nil {
			return failed(MsgNoToken, fmt.Errorf("%w: %w", common.ErrPinRequired, err))
		}
		token = saved
		log.Info().Msg("refreshing tunnel configuration with saved device token")
	} else {
		identity, err := m.creds.LoadOrCreateIdentity()
		if err != nil {
			return failed(msgIdentityFailed+err.Error(), err)
		}
		token, err = m.creds.ExchangePIN(ctx, identity, pin)
		if err != nil {
			return failed(msgPinExchangeFailed+diagnostic(err), err)
		}
	}

	if _, err := m.provider.FetchConfig(ctx, token); err != nil {
		if pin == "" && IsTokenRejected(err) {
			return failed(MsgTokenRejected, err)
		}
		return failed(msgConfigFetchFailed+diagnostic(err), err)
	}

	if err := m.ctrl.Activate(ctx, m.provider.Path()); err != nil {
		if errors.Is(err, common.ErrConfigMissing) {
			return failed(MsgConfigMissing, err)
		}
		return failed(msgActivationFailed+diagnostic(err), err)
	}
	return ok(MsgActivated)
}

// Disconnect deactivates the tunnel. A tunnel that is already inactive
// is reported as a soft outcome wrapping common.ErrAlreadyInactive.
func (m *Manager) Disconnect(ctx context.Context) Result {
	return m.run(ctx, OpDisconnect, func() Result {
		if m.ctrl.Refresh(ctx) == common.StateInactive {
			return soft(MsgNotActive, common.ErrAlreadyInactive)
		}
		return deactivateResult(m.ctrl.Deactivate(ctx))
	})
}

func deactivateResult(err error) Result {
	switch {
	case err == nil:
		return ok(MsgDeactivated)
	case errors.Is(err, common.ErrDeactivationUnconfirmed):
		return soft(MsgDeactivationPending, err)
	case errors.Is(err, common.ErrNotActive):
		return soft(MsgNotActive, err)
	default:
		return failed(msgDeactivationFailed+diagnostic(err), err)
	}
}

// Reset tears the tunnel down and deletes the identity, token and
// configuration. Deactivation failures are ignored; deletion failures
// are reported with the artifacts that remain.
func (m *Manager) Reset(ctx context.Context) Result {
	return m.run(ctx, OpReset, func() Result {
		if err := m.ctrl.Deactivate(ctx); err != nil {
			log.Debug().Err(err).Msg("deactivation before reset")
		}

		if err := m.creds.Clear(); err != nil {
			var delErr *common.DeletionError
			if errors.As(err, &delErr) {
				return failed(msgPartialArtifactsLeft+strings.Join(delErr.Remaining, ", "), err)
			}
			return failed(msgPartialArtifactsLeft+err.Error(), err)
		}

		log.Info().Msg("local tunnel configuration deleted")
		return ok(MsgConfigDeleted)
	})
}

func (m *Manager) run(ctx context.Context, op string, fn func() Result) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	res := fn()

	event := log.Info()
	if !res.Success {
		event = log.Warn().Err(res.Err)
	}
	event.Str("op", op).Bool("success", res.Success).Dur("took", time.Since(started)).Msg(res.Message)

	if m.journal != nil {
		if err := m.journal.Record(context.WithoutCancel(ctx), newOutcome(op, res, started)); err != nil {
			log.Warn().Err(err).Str("op", op).Msg("failed to journal operation")
		}
	}
	return res
}

// diagnostic returns the external tool's own text when err carries it.
func diagnostic(err error) string {
	var toolErr *common.ToolError
	if errors.As(err, &toolErr) && toolErr.Output != "" {
		return toolErr.Output
	}
	return err.Error()
}

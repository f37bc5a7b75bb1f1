// Package tui is the interactive terminal control panel for the
// Teleport tunnel: it shows the tunnel state and drives connect,
// disconnect and reset through the lifecycle manager.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/vpn"
)

// Lifecycle is the subset of vpn.Manager the panel drives.
type Lifecycle interface {
	Connect(ctx context.Context, pin string) vpn.Result
	Disconnect(ctx context.Context) vpn.Result
	Reset(ctx context.Context) vpn.Result
	QueryState(ctx context.Context) common.TunnelState
}

// RefreshInterval is how often the panel re-queries the tunnel state
// while idle.
const RefreshInterval = 10 * time.Second

// Mode is what the keyboard currently drives.
type Mode int

const (
	// ModeNormal accepts the operation keys.
	ModeNormal Mode = iota
	// ModePIN routes keystrokes to the PIN input.
	ModePIN
	// ModeConfirmReset waits for a yes or no before deleting the
	// configuration.
	ModeConfirmReset
)

// stateMsg carries a freshly queried tunnel state.
type stateMsg struct {
	state common.TunnelState
}

// resultMsg carries the outcome of a lifecycle operation.
type resultMsg struct {
	op  string
	res vpn.Result
}

// refreshTickMsg triggers a periodic state query.
type refreshTickMsg struct{}

// Model is the bubbletea model of the control panel.
type Model struct {
	ctx  context.Context
	life Lifecycle
	keys KeyMap

	mode     Mode
	state    common.TunnelState
	busy     string
	querying bool
	message  string
	level    messageLevel

	spinner spinner.Model
	pin     textinput.Model
}

type messageLevel int

const (
	levelInfo messageLevel = iota
	levelWarn
	levelError
)

// New creates the control panel model.
func New(ctx context.Context, life Lifecycle) Model {
	pin := textinput.New()
	pin.Placeholder = "PIN"
	pin.CharLimit = common.MaxPINLength
	pin.Width = common.MaxPINLength + 1
	pin.EchoMode = textinput.EchoPassword
	pin.EchoCharacter = '•'

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = pendingStyle

	return Model{
		ctx:     ctx,
		life:    life,
		keys:    DefaultKeyMap,
		state:   common.StateUnknown,
		spinner: s,
		pin:     pin,
	}
}

// Run starts the panel and blocks until the user quits.
func Run(ctx context.Context, life Lifecycle) error {
	_, err := tea.NewProgram(New(ctx, life), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts the spinner and the first state query.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.queryState(), scheduleRefresh())
}

// State returns the last queried tunnel state.
func (m Model) State() common.TunnelState {
	return m.state
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Busy returns the name of the running operation, or "".
func (m Model) Busy() string {
	return m.busy
}

// Message returns the last operation message.
func (m Model) Message() string {
	return m.message
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case stateMsg:
		// A query that raced an operation is stale; the result re-queries.
		if m.busy != "" {
			return m, nil
		}
		m.querying = false
		m.state = msg.state
		return m, nil

	case resultMsg:
		m.busy = ""
		m.setResult(msg.res)
		query := m.queryState()
		if msg.op == vpn.OpConnect && needsPIN(msg.res) {
			focus := m.openPIN()
			return m, tea.Batch(focus, query)
		}
		return m, query

	case refreshTickMsg:
		if m.busy != "" || m.querying {
			return m, scheduleRefresh()
		}
		query := m.queryState()
		return m, tea.Batch(query, scheduleRefresh())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch m.mode {
	case ModePIN:
		return m.handlePINKey(msg)
	case ModeConfirmReset:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.mode = ModeNormal
			return m.start(vpn.OpReset, m.reset())
		case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
			m.mode = ModeNormal
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	// One lifecycle operation at a time.
	if m.busy != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Connect):
		return m.start(vpn.OpConnect, m.connect(""))
	case key.Matches(msg, m.keys.Pair):
		focus := m.openPIN()
		return m, focus
	case key.Matches(msg, m.keys.Disconnect):
		return m.start(vpn.OpDisconnect, m.disconnect())
	case key.Matches(msg, m.keys.Reset):
		m.mode = ModeConfirmReset
	case key.Matches(msg, m.keys.Refresh):
		if !m.querying {
			query := m.queryState()
			return m, query
		}
	}
	return m, nil
}

func (m Model) handlePINKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = ModeNormal
		m.pin.Blur()
		return m, nil
	case tea.KeyEnter:
		pin := strings.TrimSpace(m.pin.Value())
		m.mode = ModeNormal
		m.pin.Blur()
		m.pin.Reset()
		if pin == "" {
			return m, nil
		}
		return m.start(vpn.OpConnect, m.connect(pin))
	}

	var cmd tea.Cmd
	m.pin, cmd = m.pin.Update(msg)
	return m, cmd
}

func (m Model) start(op string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = op
	m.message = ""
	switch op {
	case vpn.OpConnect:
		m.state = common.StateActivating
	case vpn.OpDisconnect, vpn.OpReset:
		m.state = common.StateDeactivating
	}
	return m, tea.Batch(cmd, m.spinner.Tick)
}

func (m *Model) openPIN() tea.Cmd {
	m.mode = ModePIN
	m.pin.Reset()
	return m.pin.Focus()
}

func (m *Model) setResult(res vpn.Result) {
	m.message = res.Message
	switch {
	case !res.Success:
		m.level = levelError
	case res.Soft():
		m.level = levelWarn
	default:
		m.level = levelInfo
	}
}

// needsPIN reports whether a connect failed for want of a usable token.
func needsPIN(res vpn.Result) bool {
	return !res.Success && (errors.Is(res.Err, common.ErrPinRequired) || vpn.IsTokenRejected(res.Err))
}

func (m *Model) queryState() tea.Cmd {
	m.querying = true
	ctx, life := m.ctx, m.life
	return func() tea.Msg {
		return stateMsg{state: life.QueryState(ctx)}
	}
}

func (m Model) connect(pin string) tea.Cmd {
	ctx, life := m.ctx, m.life
	return func() tea.Msg {
		return resultMsg{op: vpn.OpConnect, res: life.Connect(ctx, pin)}
	}
}

func (m Model) disconnect() tea.Cmd {
	ctx, life := m.ctx, m.life
	return func() tea.Msg {
		return resultMsg{op: vpn.OpDisconnect, res: life.Disconnect(ctx)}
	}
}

func (m Model) reset() tea.Cmd {
	ctx, life := m.ctx, m.life
	return func() tea.Msg {
		return resultMsg{op: vpn.OpReset, res: life.Reset(ctx)}
	}
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return refreshTickMsg{}
	})
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("\n\n")

	status := StateStyle(m.state).Render(m.state.String())
	if m.busy != "" || m.querying {
		status = m.spinner.View() + " " + status
	}
	fmt.Fprintf(&b, "Tunnel: %s\n", status)

	if m.message != "" {
		style := infoStyle
		switch m.level {
		case levelWarn:
			style = warnStyle
		case levelError:
			style = errorStyle
		}
		b.WriteString("\n" + style.Render(m.message) + "\n")
	}

	switch m.mode {
	case ModePIN:
		fmt.Fprintf(&b, "\nEnter PIN: %s\n", m.pin.View())
		b.WriteString(helpStyle.Render("enter submit • esc cancel"))
	case ModeConfirmReset:
		b.WriteString("\n" + warnStyle.Render("Delete the tunnel configuration and device credentials?") + "\n")
		b.WriteString(helpStyle.Render("y yes • n no"))
	default:
		b.WriteString("\n" + helpStyle.Render(helpLine(m.keys.mainHelp())))
	}

	return panelStyle.Render(b.String()) + "\n"
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}

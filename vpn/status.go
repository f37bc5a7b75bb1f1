package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/kardianos/service"
	"github.com/yllada/teleport-manager/common"
)

// StatusQuerier asks the OS service layer about the tunnel service.
// A missing service is reported as common.ServiceNotFound, not an error.
type StatusQuerier interface {
	Status(ctx context.Context) (common.ServiceStatus, error)
}

// Words recognized in status query output.
var statusWords = map[string]common.ServiceStatus{
	"running":       common.ServiceRunning,
	"active":        common.ServiceRunning,
	"stopped":       common.ServiceStopped,
	"inactive":      common.ServiceStopped,
	"dead":          common.ServiceStopped,
	"start_pending": common.ServicePending,
	"stop_pending":  common.ServicePending,
	"activating":    common.ServicePending,
	"deactivating":  common.ServicePending,
}

// CommandQuerier runs a status command such as "sc query <service>" and
// interprets its text.
type CommandQuerier struct {
	runner CommandRunner
	name   string
	args   []string
}

// NewCommandQuerier creates a querier from a command template. The first
// element is the tool; {service} and {tunnel} are substituted.
func NewCommandQuerier(runner CommandRunner, command []string, serviceName, tunnel string) (*CommandQuerier, error) {
	if len(command) == 0 {
		return nil, errors.New("empty status command")
	}
	args := expandArgs(command[1:], map[string]string{
		"service": serviceName,
		"tunnel":  tunnel,
	})
	return &CommandQuerier{runner: runner, name: command[0], args: args}, nil
}

// Status runs the status command once.
func (q *CommandQuerier) Status(ctx context.Context) (common.ServiceStatus, error) {
	out, err := q.runner.Run(ctx, q.name, q.args...)
	if ctx.Err() != nil {
		return common.ServiceUnknown, ctx.Err()
	}
	if err != nil && out.ExitCode < 0 {
		return common.ServiceUnknown, fmt.Errorf("query %s: %w", q.name, err)
	}
	return ParseStatus(out.Stdout+"\n"+out.Stderr, out.ExitCode), nil
}

// ParseStatus interprets status command output. A non-zero exit without a
// stopped keyword means the service does not exist. A zero exit that names
// no state means the service exists and is up, as with "wg show".
func ParseStatus(output string, exitCode int) common.ServiceStatus {
	found := common.ServiceUnknown
	for _, word := range strings.FieldsFunc(strings.ToLower(output), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	}) {
		status, ok := statusWords[word]
		if !ok {
			continue
		}
		// Stopped wins when several state words appear.
		if found == common.ServiceUnknown || status == common.ServiceStopped {
			found = status
		}
	}

	if exitCode != 0 {
		if found == common.ServiceStopped {
			return common.ServiceStopped
		}
		return common.ServiceNotFound
	}
	if found == common.ServiceUnknown {
		return common.ServiceRunning
	}
	return found
}

// RegistryQuerier asks the OS service manager directly.
type RegistryQuerier struct {
	svc service.Service
}

type noopProgram struct{}

func (noopProgram) Start(service.Service) error { return nil }
func (noopProgram) Stop(service.Service) error  { return nil }

// NewRegistryQuerier creates a querier for the named OS service.
func NewRegistryQuerier(serviceName string) (*RegistryQuerier, error) {
	svc, err := service.New(noopProgram{}, &service.Config{Name: serviceName})
	if err != nil {
		return nil, fmt.Errorf("create service handle: %w", err)
	}
	return &RegistryQuerier{svc: svc}, nil
}

// Status queries the service manager, honoring ctx.
func (q *RegistryQuerier) Status(ctx context.Context) (common.ServiceStatus, error) {
	type answer struct {
		status service.Status
		err    error
	}
	ch := make(chan answer, 1)
	go func() {
		status, err := q.svc.Status()
		ch <- answer{status, err}
	}()

	select {
	case <-ctx.Done():
		return common.ServiceUnknown, ctx.Err()
	case a := <-ch:
		if errors.Is(a.err, service.ErrNotInstalled) {
			return common.ServiceNotFound, nil
		}
		if a.err != nil {
			return common.ServiceUnknown, a.err
		}
		switch a.status {
		case service.StatusRunning:
			return common.ServiceRunning, nil
		case service.StatusStopped:
			return common.ServiceStopped, nil
		default:
			return common.ServiceUnknown, nil
		}
	}
}

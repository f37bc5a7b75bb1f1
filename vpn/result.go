package vpn

import (
	"errors"
	"time"

	"github.com/yllada/teleport-manager/common"
)

// Result is the outcome of a lifecycle operation, ready to show a user.
// Success with a non-nil Err is a soft outcome: the operation did what it
// could and Err says what is worth knowing.
type Result struct {
	Success bool
	Message string
	Err     error
}

// Soft reports whether the operation succeeded with a caveat.
func (r Result) Soft() bool {
	return r.Success && r.Err != nil
}

func ok(message string) Result {
	return Result{Success: true, Message: message}
}

func soft(message string, err error) Result {
	return Result{Success: true, Message: message, Err: err}
}

func failed(message string, err error) Result {
	return Result{Success: false, Message: message, Err: err}
}

// Operation names recorded in the journal.
const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpReset      = "reset"
)

// Outcome is a journaled lifecycle result.
type Outcome struct {
	Operation string
	Success   bool
	Message   string
	ErrorKind string
	Error     string
	Started   time.Time
	Duration  time.Duration
}

// errorKinds names each sentinel for the journal.
var errorKinds = []struct {
	err  error
	kind string
}{
	{common.ErrPinRequired, "pin_required"},
	{common.ErrAuth, "auth"},
	{common.ErrProvider, "provider"},
	{common.ErrConfigMissing, "config_missing"},
	{common.ErrActivationFailed, "activation_failed"},
	{common.ErrNotActive, "not_active"},
	{common.ErrAlreadyInactive, "already_inactive"},
	{common.ErrDeactivationUnconfirmed, "deactivation_unconfirmed"},
	{common.ErrDeactivationFailed, "deactivation_failed"},
	{common.ErrPartialArtifactDeletion, "partial_artifact_deletion"},
}

// ErrorKind classifies err by the lifecycle error it wraps.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "other"
}

func newOutcome(op string, res Result, started time.Time) Outcome {
	o := Outcome{
		Operation: op,
		Success:   res.Success,
		Message:   res.Message,
		ErrorKind: ErrorKind(res.Err),
		Started:   started,
		Duration:  time.Since(started),
	}
	if res.Err != nil {
		o.Error = res.Err.Error()
	}
	return o
}

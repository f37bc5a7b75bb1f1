// Package common provides shared constants, types, and utilities
// used across the Teleport tunnel manager.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for tunnel lifecycle operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Credential errors.
	ErrPinRequired = errors.New("PIN required")
	ErrAuth        = errors.New("device authorization failed")
	ErrNotFound    = errors.New("not found")

	// Provisioning errors.
	ErrProvider = errors.New("tunnel configuration fetch failed")

	// Tunnel errors.
	ErrConfigMissing           = errors.New("tunnel configuration missing")
	ErrActivationFailed        = errors.New("tunnel activation failed")
	ErrDeactivationFailed      = errors.New("tunnel deactivation failed")
	ErrNotActive               = errors.New("tunnel not active")
	ErrAlreadyInactive         = errors.New("tunnel already inactive")
	ErrDeactivationUnconfirmed = errors.New("tunnel deactivation unconfirmed")

	// Artifact errors.
	ErrPartialArtifactDeletion = errors.New("some local artifacts could not be deleted")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}

// ToolError describes a failed invocation of the external VPN
// service-control tool. Output holds the tool's diagnostic text.
type ToolError struct {
	Op       string
	ExitCode int
	Output   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed (exit %d)", e.Op, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// DeletionError reports which local artifacts survived a reset.
type DeletionError struct {
	Remaining []string
	Errs      []error
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPartialArtifactDeletion, strings.Join(e.Remaining, ", "))
}

// Unwrap exposes the partial-deletion sentinel and every underlying
// removal error.
func (e *DeletionError) Unwrap() []error {
	return append([]error{ErrPartialArtifactDeletion}, e.Errs...)
}

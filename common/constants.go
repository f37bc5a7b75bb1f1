// Package common provides shared constants, types, and utilities
// used across the Teleport tunnel manager.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "AmpliFi Teleport"
	// CommandName is the name of the executable.
	CommandName = "teleport-manager"
	// ConfigDirName is the name of the per-installation data directory.
	ConfigDirName = "AmpliFiTeleport"
)

// TunnelName is the fixed tunnel identity shared by config generation and
// service install, uninstall and query.
const TunnelName = "teleport"

// File names used by the application.
const (
	IdentityFileName = "teleport_uuid"
	TokenFileName    = "teleport_token_0"
	ConfigFileName   = "config.yaml"
	LogFileName      = "teleport-manager.log"
	HistoryFileName  = "history.db"
)

// Default timeouts and intervals of the tunnel lifecycle.
const (
	// StatusQueryTimeout bounds a single service status query.
	StatusQueryTimeout = 5 * time.Second
	// StatusQueryRetries is how many times a non-running answer is
	// re-checked before the tunnel is reported inactive.
	StatusQueryRetries = 3
	// StatusRetryDelay separates status query retries.
	StatusRetryDelay = 1 * time.Second
	// DeactivatePollInterval is how often service state is polled after uninstall.
	DeactivatePollInterval = 800 * time.Millisecond
	// DeactivateMaxWait bounds deactivation convergence.
	DeactivateMaxWait = 8 * time.Second
	// ToolTimeout bounds a single install or uninstall invocation.
	ToolTimeout = 60 * time.Second
	// HTTPTimeout bounds a single request to the Teleport backend.
	HTTPTimeout = 15 * time.Second
)

// MaxPINLength is the length of a Teleport pairing PIN.
const MaxPINLength = 5

// Credential backends.
const (
	CredentialBackendFile    = "file"
	CredentialBackendKeyring = "keyring"
)

// Service status backends.
const (
	StatusBackendCommand = "command"
	StatusBackendService = "service"
)

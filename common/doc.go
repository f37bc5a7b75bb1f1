// Package common provides shared constants, types, utilities, and errors
// used throughout the Teleport tunnel manager.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: artifact file names, the fixed tunnel name, and the
//     timeouts and poll intervals of the tunnel lifecycle
//   - Errors: sentinel errors for the lifecycle error taxonomy, plus typed
//     errors carrying external tool diagnostics and leftover artifacts
//   - Interfaces: the observed tunnel state shared by the controller, CLI
//     and terminal UI
//   - Logger: zerolog setup with a size-rotated log file
//   - Utils: data directory and file helpers
//
// # Usage
//
//	timeout := common.StatusQueryTimeout
//
//	log.Info().Str("tunnel", common.TunnelName).Msg("activating")
//
//	if errors.Is(err, common.ErrPinRequired) {
//	    // prompt for a PIN
//	}
package common

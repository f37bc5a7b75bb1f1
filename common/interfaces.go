// Package common provides shared constants, types, and utilities
// used across the Teleport tunnel manager.
package common

// TunnelState is the externally observed state of the tunnel service.
// It is derived from the OS service layer and never cached beyond a
// single query.
type TunnelState int

const (
	StateUnknown TunnelState = iota
	StateInactive
	StateActivating
	StateActive
	StateDeactivating
)

// String returns a human-readable state string.
func (s TunnelState) String() string {
	switch s {
	case StateInactive:
		return "Inactive"
	case StateActivating:
		return "Activating..."
	case StateActive:
		return "Active"
	case StateDeactivating:
		return "Deactivating..."
	default:
		return "Unknown"
	}
}

// ServiceStatus is the raw answer of the OS service registry for the
// tunnel service.
type ServiceStatus int

const (
	ServiceUnknown ServiceStatus = iota
	ServiceRunning
	ServiceStopped
	ServicePending
	ServiceNotFound
)

// String returns the lowercase status keyword.
func (s ServiceStatus) String() string {
	switch s {
	case ServiceRunning:
		return "running"
	case ServiceStopped:
		return "stopped"
	case ServicePending:
		return "pending"
	case ServiceNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

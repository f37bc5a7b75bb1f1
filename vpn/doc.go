// Package vpn manages the lifecycle of the Teleport WireGuard tunnel.
//
// The package is organized around three types:
//
//   - Controller: installs and uninstalls the tunnel as an OS service
//     through the VPN service-control tool, and queries its state
//   - ConfigProvider: trades a device token for a fresh tunnel
//     configuration and writes it to disk
//   - Manager: composes credentials, provider and controller into the
//     user-facing Connect, Disconnect and Reset operations
//
// # Connection Flow
//
// A typical connect:
//
//  1. The user supplies a pairing PIN, or nothing to refresh
//  2. Manager.Connect ensures a device identity and token exist
//  3. ConfigProvider fetches and persists the tunnel configuration
//  4. Controller uninstalls any previous tunnel service and installs the new one
//  5. The caller re-queries the tunnel state and renders it
//
// # Thread Safety
//
// Manager serializes its operations; at most one lifecycle operation
// runs at a time. Controller and ConfigProvider are not meant to be
// driven concurrently outside a Manager.
package vpn

package vpn

import (
	"bufio"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// TunnelSummary is the non-secret part of a tunnel configuration.
type TunnelSummary struct {
	// PublicKey is derived from the interface private key.
	PublicKey string
	Addresses []string
	Peers     []PeerSummary
}

// PeerSummary describes one [Peer] section.
type PeerSummary struct {
	PublicKey  string
	Endpoint   string
	AllowedIPs []string
}

// ParseTunnelConfig checks that doc is a usable WireGuard configuration
// and summarizes it. Keys must be valid base64 Curve25519 keys, addresses
// must parse, and at least one peer is required.
func ParseTunnelConfig(doc string) (*TunnelSummary, error) {
	var (
		summary    TunnelSummary
		section    string
		sawIface   bool
		privateKey string
		peer       *PeerSummary
	)

	scanner := bufio.NewScanner(strings.NewReader(doc))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.Trim(line, "[]"))
			switch section {
			case "interface":
				if sawIface {
					return nil, fmt.Errorf("line %d: duplicate [Interface] section", lineNo)
				}
				sawIface = true
			case "peer":
				summary.Peers = append(summary.Peers, PeerSummary{})
				peer = &summary.Peers[len(summary.Peers)-1]
			default:
				return nil, fmt.Errorf("line %d: unknown section %q", lineNo, line)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key = value", lineNo)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch section {
		case "interface":
			switch key {
			case "privatekey":
				privateKey = value
			case "address":
				for _, addr := range splitList(value) {
					if _, err := netip.ParsePrefix(addr); err != nil {
						if _, err := netip.ParseAddr(addr); err != nil {
							return nil, fmt.Errorf("line %d: invalid address %q", lineNo, addr)
						}
					}
					summary.Addresses = append(summary.Addresses, addr)
				}
			}
		case "peer":
			switch key {
			case "publickey":
				k, err := wgtypes.ParseKey(value)
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid peer public key: %w", lineNo, err)
				}
				peer.PublicKey = k.String()
			case "presharedkey":
				if _, err := wgtypes.ParseKey(value); err != nil {
					return nil, fmt.Errorf("line %d: invalid preshared key: %w", lineNo, err)
				}
			case "endpoint":
				peer.Endpoint = value
			case "allowedips":
				for _, prefix := range splitList(value) {
					// A bare address is a single-host prefix.
					if _, err := netip.ParsePrefix(prefix); err != nil {
						if _, err := netip.ParseAddr(prefix); err != nil {
							return nil, fmt.Errorf("line %d: invalid allowed IP %q", lineNo, prefix)
						}
					}
					peer.AllowedIPs = append(peer.AllowedIPs, prefix)
				}
			}
		default:
			return nil, fmt.Errorf("line %d: setting outside of a section", lineNo)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if !sawIface {
		return nil, errors.New("missing [Interface] section")
	}
	if privateKey == "" {
		return nil, errors.New("missing interface PrivateKey")
	}
	priv, err := wgtypes.ParseKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid interface private key: %w", err)
	}
	summary.PublicKey = priv.PublicKey().String()

	if len(summary.Peers) == 0 {
		return nil, errors.New("missing [Peer] section")
	}
	for i, p := range summary.Peers {
		if p.PublicKey == "" {
			return nil, fmt.Errorf("peer %d has no PublicKey", i+1)
		}
	}
	return &summary, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package vpn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

func TestParseTunnelConfig(t *testing.T) {
	doc := sampleTunnelConfig(t)

	summary, err := ParseTunnelConfig(doc)
	require.NoError(t, err)

	var priv string
	for _, line := range strings.Split(doc, "\n") {
		if v, ok := strings.CutPrefix(line, "PrivateKey = "); ok {
			priv = v
		}
	}
	key, err := wgtypes.ParseKey(priv)
	require.NoError(t, err)

	assert.Equal(t, key.PublicKey().String(), summary.PublicKey)
	assert.Equal(t, []string{"10.255.0.2/32"}, summary.Addresses)
	require.Len(t, summary.Peers, 1)
	assert.Equal(t, "teleport.example.test:51820", summary.Peers[0].Endpoint)
	assert.Equal(t, []string{"0.0.0.0/0", "::/0"}, summary.Peers[0].AllowedIPs)
}

func TestParseTunnelConfig_Rejects(t *testing.T) {
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PublicKey().String()

	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"html error page", "<html><body>502 Bad Gateway</body></html>"},
		{"no interface", "[Peer]\nPublicKey = " + pub + "\n"},
		{"no private key", "[Interface]\nAddress = 10.0.0.2/32\n[Peer]\nPublicKey = " + pub + "\n"},
		{"bad private key", "[Interface]\nPrivateKey = nope\n[Peer]\nPublicKey = " + pub + "\n"},
		{"no peer", "[Interface]\nPrivateKey = " + priv.String() + "\n"},
		{"peer without key", "[Interface]\nPrivateKey = " + priv.String() + "\n[Peer]\nEndpoint = a:1\n"},
		{"bad allowed host", "[Interface]\nPrivateKey = " + priv.String() + "\n[Peer]\nPublicKey = " + pub + "\nAllowedIPs = 192.168.1\n"},
		{"bad allowed ip", "[Interface]\nPrivateKey = " + priv.String() + "\n[Peer]\nPublicKey = " + pub + "\nAllowedIPs = 10.0.0.0/99\n"},
		{"bad address", "[Interface]\nPrivateKey = " + priv.String() + "\nAddress = nowhere\n[Peer]\nPublicKey = " + pub + "\n"},
		{"unknown section", "[Interface]\nPrivateKey = " + priv.String() + "\n[Tunnel]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTunnelConfig(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestParseTunnelConfig_AllowedIPs(t *testing.T) {
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	pub := priv.PublicKey().String()

	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"prefixes", "10.0.0.0/24, ::/0", []string{"10.0.0.0/24", "::/0"}},
		{"bare ipv4 host", "192.168.1.1", []string{"192.168.1.1"}},
		{"bare ipv6 host", "fd00::1", []string{"fd00::1"}},
		{"mixed", "192.168.1.1, 10.0.0.0/8", []string{"192.168.1.1", "10.0.0.0/8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := "[Interface]\nPrivateKey = " + priv.String() +
				"\n[Peer]\nPublicKey = " + pub + "\nAllowedIPs = " + tt.value + "\n"
			summary, err := ParseTunnelConfig(doc)
			require.NoError(t, err)
			require.Len(t, summary.Peers, 1)
			assert.Equal(t, tt.want, summary.Peers[0].AllowedIPs)
		})
	}
}

func TestParseTunnelConfig_IgnoresComments(t *testing.T) {
	priv, err := wgtypes.GeneratePrivateKey()
	require.NoError(t, err)
	doc := "# generated\n[Interface] # local side\nPrivateKey = " + priv.String() +
		"\n\n[Peer]\nPublicKey = " + priv.PublicKey().String() + " # router\n"

	summary, err := ParseTunnelConfig(doc)
	require.NoError(t, err)
	assert.Equal(t, priv.PublicKey().String(), summary.Peers[0].PublicKey)
}

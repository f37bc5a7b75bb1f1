package vpn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yllada/teleport-manager/common"
	"github.com/yllada/teleport-manager/config"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// fakeService simulates the VPN service-control tool and the OS service
// registry for one tunnel.
type fakeService struct {
	mu        sync.Mutex
	installed bool
	config    string
	calls     []string
	// lingerPolls keeps the service reported running for this many status
	// queries after an uninstall.
	lingerPolls int
	lingering   int
	installErr  string
	statusErr   error
}

func (f *fakeService) Run(_ context.Context, name string, args ...string) (CommandOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	switch args[0] {
	case "/installtunnelservice":
		if f.installErr != "" {
			return CommandOutput{Stderr: f.installErr, ExitCode: 1}, errors.New("exit status 1")
		}
		f.installed = true
		f.config = args[1]
		f.lingering = 0
		return CommandOutput{}, nil
	case "/uninstalltunnelservice":
		if !f.installed {
			return CommandOutput{Stderr: "Error: Tunnel service not found", ExitCode: 1}, errors.New("exit status 1")
		}
		f.installed = false
		f.lingering = f.lingerPolls
		return CommandOutput{}, nil
	}
	return CommandOutput{ExitCode: 1}, fmt.Errorf("unexpected command %v", args)
}

func (f *fakeService) Status(context.Context) (common.ServiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statusErr != nil {
		return common.ServiceUnknown, f.statusErr
	}
	if f.installed {
		return common.ServiceRunning, nil
	}
	if f.lingering > 0 {
		f.lingering--
		return common.ServiceRunning, nil
	}
	return common.ServiceNotFound, nil
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) Installed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed
}

func testTimeouts() config.Timeouts {
	return config.Timeouts{
		StatusQuery:      time.Second,
		StatusRetries:    3,
		StatusRetryDelay: time.Millisecond,
		PollInterval:     5 * time.Millisecond,
		MaxWait:          200 * time.Millisecond,
		Tool:             time.Second,
		HTTP:             time.Second,
	}
}

func testTool() ToolConfig {
	return ToolConfig{
		Path:          "wireguard.exe",
		InstallArgs:   []string{"/installtunnelservice", "{config}"},
		UninstallArgs: []string{"/uninstalltunnelservice", "{tunnel}"},
	}
}

func newTestController(t *testing.T, svc *fakeService) (*Controller, config.Paths) {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), "teleport")
	return NewController(svc, svc, testTool(), paths, testTimeouts()), paths
}

// sampleTunnelConfig returns a valid WireGuard configuration.
func sampleTunnelConfig(t *testing.T) string {
	t.Helper()
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	peer, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = 10.255.0.2/32
DNS = 10.255.0.1

[Peer]
PublicKey = %s
AllowedIPs = 0.0.0.0/0, ::/0
Endpoint = teleport.example.test:51820
PersistentKeepalive = 25
`, priv, peer.PublicKey())
}

func newTestPaths(t *testing.T) config.Paths {
	t.Helper()
	return config.NewPaths(t.TempDir(), "teleport")
}

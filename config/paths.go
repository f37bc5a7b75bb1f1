package config

import (
	"path/filepath"

	"github.com/yllada/teleport-manager/common"
)

// Paths holds the on-disk artifact locations and the fixed tunnel name.
// It is built once and handed to every lifecycle component.
type Paths struct {
	Dir          string
	IdentityFile string
	TokenFile    string
	// ConfigFile is named after the tunnel so the service-control tool
	// derives the same tunnel name from it.
	ConfigFile string
	TunnelName string
}

// NewPaths lays out the artifacts for tunnel inside dir.
func NewPaths(dir, tunnel string) Paths {
	return Paths{
		Dir:          dir,
		IdentityFile: filepath.Join(dir, common.IdentityFileName),
		TokenFile:    filepath.Join(dir, common.TokenFileName),
		ConfigFile:   filepath.Join(dir, tunnel+".conf"),
		TunnelName:   tunnel,
	}
}

// Artifacts lists every file a reset must remove.
func (p Paths) Artifacts() []string {
	return []string{p.IdentityFile, p.TokenFile, p.ConfigFile}
}

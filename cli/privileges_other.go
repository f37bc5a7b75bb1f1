//go:build !windows

package cli

import (
	"errors"
	"os"
)

// CheckPrivileges reports whether the process may install and remove
// tunnel services.
func CheckPrivileges() error {
	if os.Geteuid() != 0 {
		return errors.New("root privileges required (use sudo)")
	}
	return nil
}

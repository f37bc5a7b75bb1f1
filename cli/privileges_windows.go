package cli

import (
	"errors"

	"golang.org/x/sys/windows"
)

// CheckPrivileges reports whether the process may install and remove
// tunnel services.
func CheckPrivileges() error {
	if !windows.GetCurrentProcessToken().IsElevated() {
		return errors.New("administrator privileges required (run from an elevated prompt)")
	}
	return nil
}

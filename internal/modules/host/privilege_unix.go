//go:build unix

package host

import "golang.org/x/sys/unix"

func checkPrivileges() (Privilege, error) {
	if unix.Geteuid() == 0 {
		return PrivilegeGranted, nil
	}
	return PrivilegeDenied, nil
}

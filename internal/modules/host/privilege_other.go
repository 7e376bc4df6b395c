//go:build !unix && !windows

package host

import "errors"

func checkPrivileges() (Privilege, error) {
	return PrivilegeUnknown, errors.New("privilege check is not supported on this platform")
}

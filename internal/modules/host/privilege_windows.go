//go:build windows

package host

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// checkPrivileges проверяет членство токена процесса в BUILTIN\Administrators.
func checkPrivileges() (Privilege, error) {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid)
	if err != nil {
		return PrivilegeUnknown, fmt.Errorf("allocate admin sid: %w", err)
	}
	defer windows.FreeSid(sid) //nolint:errcheck

	token := windows.Token(0)
	member, err := token.IsMember(sid)
	if err != nil {
		return PrivilegeUnknown, fmt.Errorf("token membership: %w", err)
	}
	if member {
		return PrivilegeGranted, nil
	}
	return PrivilegeDenied, nil
}

package host

// Privilege результат проверки административных прав.
type Privilege int

const (
	// PrivilegeUnknown проверка не удалась; трактуется как отсутствие прав.
	PrivilegeUnknown Privilege = iota
	PrivilegeDenied
	PrivilegeGranted
)

// Granted возвращает true только для PrivilegeGranted.
func (p Privilege) Granted() bool { return p == PrivilegeGranted }

func (p Privilege) String() string {
	switch p {
	case PrivilegeGranted:
		return "granted"
	case PrivilegeDenied:
		return "denied"
	default:
		return "unknown"
	}
}

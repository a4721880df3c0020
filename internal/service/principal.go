package service

// Principal is the authenticated caller as resolved by the outer auth
// layer. It is passed explicitly into every service call; no component
// reads an implicit current user.
type Principal struct {
	ID          string
	Username    string
	FullName    string
	Avatar      string
	RoleLabel   string
	RoleColor   string
	Permissions []string
}

// CapabilityCreateRoom guards room creation.
const CapabilityCreateRoom = "content.create"

// Can reports whether the principal holds the named capability.
func (p Principal) Can(capability string) bool {
	for _, permission := range p.Permissions {
		if permission == capability {
			return true
		}
	}
	return false
}

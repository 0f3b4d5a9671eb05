package auth

// Principal is the authenticated identity attached to a request after
// it passes the gate. Exactly two implementations exist: AdminPrincipal
// and ClientPrincipal.
type Principal interface {
	// ID returns the stable identity: user ID for admins, client ID
	// for devices.
	ID() string

	// Role reports which tier this principal belongs to.
	Role() Role

	// CanAccessArea reports whether the principal may receive events
	// and data scoped to the given area. Admins always can; clients
	// only for areas they are assigned.
	CanAccessArea(areaID string) bool
}

// AdminPrincipal is an authenticated human operator.
type AdminPrincipal struct {
	UserID   string
	Username string
}

// ID returns the admin's user ID.
func (p AdminPrincipal) ID() string { return p.UserID }

// Role returns RoleAdmin.
func (p AdminPrincipal) Role() Role { return RoleAdmin }

// CanAccessArea always returns true — admins bypass area scoping.
func (p AdminPrincipal) CanAccessArea(string) bool { return true }

// ClientPrincipal is an authenticated paired device. AssignedAreas is
// the credential row's live scope, resolved at verification time, so a
// scope change applies to the very next request.
type ClientPrincipal struct {
	ClientID      string
	TokenID       string
	Name          string
	AssignedAreas []string
}

// ID returns the client ID.
func (p ClientPrincipal) ID() string { return p.ClientID }

// Role returns RoleClient.
func (p ClientPrincipal) Role() Role { return RoleClient }

// CanAccessArea reports whether the area is in the client's assigned set.
func (p ClientPrincipal) CanAccessArea(areaID string) bool {
	for _, id := range p.AssignedAreas {
		if id == areaID {
			return true
		}
	}
	return false
}

package domain

// DefaultPermissions derives the permission set for a business role.
// Every code path that assigns or changes a role goes through here.
func DefaultPermissions(role BusinessRole) Permissions {
	switch role {
	case BusinessRoleAdmin:
		return Permissions{
			CanManageClients:     true,
			CanManageInstructors: true,
			CanManageClasses:     true,
			CanManageSessions:    true,
			CanViewReports:       true,
		}
	case BusinessRoleInstructor, BusinessRoleEmployee:
		return Permissions{
			CanManageClasses:  true,
			CanManageSessions: true,
		}
	default:
		return Permissions{}
	}
}

// DefaultActivation is true for every role except client, whose joins wait for approval.
func DefaultActivation(role BusinessRole) bool {
	return role != BusinessRoleClient
}

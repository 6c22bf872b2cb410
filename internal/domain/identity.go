package domain

// Identity is the resolved caller for one request.
type Identity struct {
	UserID       int64
	Email        string
	Role         UserRole
	ClientStatus ClientStatus

	// BusinessID is the effective tenant for the request; nil for super-admins
	// and for users without any active association.
	BusinessID *int64

	CurrentBusinessID *int64
	Associations      []UserBusiness
	CurrentBusiness   *UserBusiness
}

func (i Identity) IsSuperAdmin() bool { return i.Role == RoleSuperAdmin }

func (i Identity) IsStaff() bool { return i.Role == RoleAdmin || i.Role == RoleEmployee }

// InBusiness reports whether the caller may act inside businessID.
func (i Identity) InBusiness(businessID int64) bool {
	if i.IsSuperAdmin() {
		return true
	}
	return i.BusinessID != nil && *i.BusinessID == businessID
}

// HasRole reports whether the caller holds any of roles.
func (i Identity) HasRole(roles ...UserRole) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

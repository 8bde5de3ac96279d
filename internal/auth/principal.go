package auth

// Principal is the authenticated caller as seen by the domain services.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) Internal() bool {
	return IsInternal(p.Role)
}

// CanSee reports whether the caller may read a record owned by ownerID.
func (p Principal) CanSee(ownerID string) bool {
	return p.Internal() || (p.UserID != "" && p.UserID == ownerID)
}

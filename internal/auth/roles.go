package auth

import "strings"

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCreditor = "creditor"
	RoleDebtor   = "debtor"
)

var Roles = []string{RoleAdmin, RoleStaff, RoleCreditor, RoleDebtor}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

// IsInternal reports whether the role belongs to back-office staff.
func IsInternal(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

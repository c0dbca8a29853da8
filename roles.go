package auth

import "strings"

// UserRole is the user's role
type UserRole string

const (
	// RoleReader is a read-only role (i.e. view)
	RoleReader UserRole = "reader"
	// RoleUser is a regular account (i.e. view, edit, create own resources)
	RoleUser UserRole = "user"
	// RoleAdmin has every permission including delete and ownership bypass
	RoleAdmin UserRole = "admin"
)

// RoleValidator defines the interface for role-based access control validation
type RoleValidator interface {
	// CanRead checks if the role can read a specific resource
	CanRead(resource string) bool

	// CanEdit checks if the role can edit a specific resource
	CanEdit(resource string) bool

	// CanCreate checks if the role can create a specific resource
	CanCreate(resource string) bool

	// CanDelete checks if the role can delete a specific resource
	CanDelete(resource string) bool

	// HasRole checks if the user has a specific role
	HasRole(role string) bool

	// IsAtLeast checks if the user's role is at least the minimum required role
	IsAtLeast(minRole UserRole) bool
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleReader, RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanRead checks if this role can read resources
func (r UserRole) CanRead() bool {
	switch r {
	case RoleReader, RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanEdit checks if this role can edit resources
func (r UserRole) CanEdit() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanCreate checks if this role can create resources
func (r UserRole) CanCreate() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanDelete checks if this role can delete resources
func (r UserRole) CanDelete() bool {
	switch r {
	case RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleReader: 0,
		RoleUser:   1,
		RoleAdmin:  2,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleReader,
		RoleUser,
		RoleAdmin,
	}
}

// GetAllRolesAny returns the roles as strings boxed for validation rules.
func GetAllRolesAny() []any {
	roles := GetAllRoles()
	out := make([]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, string(role))
	}
	return out
}

// NormalizeRole lowercases and trims a role string without validating it.
// The canonical stored form is lowercase.
func NormalizeRole(roleStr string) UserRole {
	return UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
}

// ParseRole parses a string into a UserRole, accepting any casing. Unknown
// strings are rejected with ErrInvalidRole rather than downgraded to reader.
func ParseRole(roleStr string) (UserRole, error) {
	role := NormalizeRole(roleStr)
	if !role.IsValid() {
		clone := ErrInvalidRole.Clone()
		if clone == nil {
			return "", ErrInvalidRole
		}
		clone.Source = ErrInvalidRole
		return "", clone.WithMetadata(map[string]any{"role": roleStr})
	}
	return role, nil
}

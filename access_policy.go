package auth

// Authorize checks that the identity's role is one of the allowed roles.
// With no allowed roles any authenticated identity passes. The role string
// is parsed strictly, so an identity carrying an unknown role is rejected
// rather than treated as a reader.
func Authorize(identity Identity, allowed ...UserRole) error {
	if identity == nil {
		return ErrUnableToFindSession
	}

	role, err := ParseRole(identity.Role())
	if err != nil {
		return err
	}

	if len(allowed) == 0 {
		return nil
	}

	for _, want := range allowed {
		if role == NormalizeRole(string(want)) {
			return nil
		}
	}

	return forbidden(identity, map[string]any{
		"allowed": allowed,
		"role":    role,
	})
}

// AuthorizeMinimum checks that the identity's role sits at or above the
// given role in the reader < user < admin hierarchy.
func AuthorizeMinimum(identity Identity, minimum UserRole) error {
	if identity == nil {
		return ErrUnableToFindSession
	}

	role, err := ParseRole(identity.Role())
	if err != nil {
		return err
	}

	if role.IsAtLeast(minimum) {
		return nil
	}

	return forbidden(identity, map[string]any{
		"minimum": minimum,
		"role":    role,
	})
}

// AuthorizeOwnerOrAdmin permits the mutation when the identity owns the
// resource or holds the admin role. Admins bypass the ownership check.
func AuthorizeOwnerOrAdmin(identity Identity, ownerID string) error {
	if identity == nil {
		return ErrUnableToFindSession
	}

	role, err := ParseRole(identity.Role())
	if err != nil {
		return err
	}

	if role == RoleAdmin {
		return nil
	}

	if identity.ID() == ownerID {
		return nil
	}

	return forbidden(identity, map[string]any{
		"owner_id": ownerID,
		"role":     role,
	})
}

// AuthorizeSelfOrRoles permits access when the identity targets its own
// record or holds one of the allowed roles. Used for user detail lookups
// where readers and admins may inspect anyone but users only themselves.
func AuthorizeSelfOrRoles(identity Identity, targetID string, allowed ...UserRole) error {
	if identity == nil {
		return ErrUnableToFindSession
	}

	if identity.ID() == targetID {
		if _, err := ParseRole(identity.Role()); err != nil {
			return err
		}
		return nil
	}

	return Authorize(identity, allowed...)
}

func forbidden(identity Identity, metadata map[string]any) error {
	clone := ErrForbidden.Clone()
	if clone == nil {
		return ErrForbidden
	}
	clone.Source = ErrForbidden
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["user_id"] = identity.ID()
	return clone.WithMetadata(metadata)
}

// CanAccess is a convenience wrapper for templates and handlers that only
// need a boolean answer.
func CanAccess(identity Identity, allowed ...UserRole) bool {
	return Authorize(identity, allowed...) == nil
}

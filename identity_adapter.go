package auth

// UserIdentity adapts a User into the Identity interface for token generation.
type UserIdentity struct {
	user *User
}

// NewIdentityFromUser returns an Identity adapter for the provided user.
func NewIdentityFromUser(user *User) Identity {
	if user == nil {
		return nil
	}
	return UserIdentity{user: user}
}

// ID returns the user's ID as a string.
func (u UserIdentity) ID() string {
	if u.user == nil {
		return ""
	}
	return u.user.ID.String()
}

// Username returns the user's username.
func (u UserIdentity) Username() string {
	if u.user == nil {
		return ""
	}
	return u.user.Username
}

// Email returns the user's email address.
func (u UserIdentity) Email() string {
	if u.user == nil {
		return ""
	}
	return u.user.Email
}

// Role returns the user's role as a string.
func (u UserIdentity) Role() string {
	if u.user == nil {
		return ""
	}
	return string(u.user.Role)
}

// Verified reports whether the account completed OTP verification.
func (u UserIdentity) Verified() bool {
	if u.user == nil {
		return false
	}
	return u.user.Verified
}

// ClaimsIdentity adapts validated token claims into the Identity interface
// so route handlers can run access policy checks without a user lookup.
type ClaimsIdentity struct {
	claims AuthClaims
}

// NewIdentityFromClaims returns an Identity backed by token claims.
func NewIdentityFromClaims(claims AuthClaims) Identity {
	if claims == nil {
		return nil
	}
	return ClaimsIdentity{claims: claims}
}

// ID returns the user id claim.
func (c ClaimsIdentity) ID() string {
	return c.claims.UserID()
}

// Username returns the token subject.
func (c ClaimsIdentity) Username() string {
	return c.claims.Subject()
}

// Email is not carried in claims; it resolves empty.
func (c ClaimsIdentity) Email() string {
	return ""
}

// Role returns the role claim.
func (c ClaimsIdentity) Role() string {
	return c.claims.Role()
}

// Verified returns the verified claim.
func (c ClaimsIdentity) Verified() bool {
	return c.claims.Verified()
}

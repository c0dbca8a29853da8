package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// RoleCapableSession extends Session with role-based permission checks.
type RoleCapableSession interface {
	Session
	RoleValidator
}

var _ RoleCapableSession = &SessionObject{}

type SessionObject struct {
	UserID         string         `json:"user_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetUserID() string {
	return s.UserID
}

func (s *SessionObject) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.UserID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// CanRead checks if the session role can read a specific resource
func (s *SessionObject) CanRead(resource string) bool {
	return s.getGlobalRole().CanRead()
}

// CanEdit checks if the session role can edit a specific resource
func (s *SessionObject) CanEdit(resource string) bool {
	return s.getGlobalRole().CanEdit()
}

// CanCreate checks if the session role can create a specific resource
func (s *SessionObject) CanCreate(resource string) bool {
	return s.getGlobalRole().CanCreate()
}

// CanDelete checks if the session role can delete a specific resource
func (s *SessionObject) CanDelete(resource string) bool {
	return s.getGlobalRole().CanDelete()
}

// HasRole checks if the user has a specific role
func (s *SessionObject) HasRole(role string) bool {
	return string(s.getGlobalRole()) == string(NormalizeRole(role))
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (s *SessionObject) IsAtLeast(minRole UserRole) bool {
	return s.getGlobalRole().IsAtLeast(minRole)
}

// IsVerified reports whether the session was minted for a verified account.
func (s *SessionObject) IsVerified() bool {
	if s.Data == nil {
		return false
	}
	verified, ok := s.Data["verified"].(bool)
	return ok && verified
}

// getGlobalRole retrieves the role from session data, falling back to reader.
// A missing or unparseable role claim never grants more than read access.
func (s *SessionObject) getGlobalRole() UserRole {
	if s.Data != nil {
		if roleData, exists := s.Data["role"]; exists {
			if roleStr, ok := roleData.(string); ok {
				if role, err := ParseRole(roleStr); err == nil {
					return role
				}
			}
		}
	}
	return RoleReader
}

func (s SessionObject) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s aud=%v iss=%s iat=%s data=%v",
		s.UserID,
		s.Audience,
		s.Issuer,
		issuedAt,
		s.Data,
	)
}

// sessionFromAuthClaims creates a SessionObject from AuthClaims
func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToMapClaims
	}

	data := make(map[string]any)
	data["role"] = claims.Role()
	data["verified"] = claims.Verified()
	data["subject"] = claims.Subject()

	var audience []string
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		audience = append(audience, jwtClaims.RegisteredClaims.Audience...)
		if len(jwtClaims.Metadata) > 0 {
			data["metadata"] = jwtClaims.Metadata
		}
	}

	issuedAt := claims.IssuedAt()
	expiresAt := claims.Expires()

	session := &SessionObject{
		UserID:   claims.UserID(),
		Audience: audience,
		Issuer:   getIssuerFromClaims(claims),
		Data:     data,
	}

	if !issuedAt.IsZero() {
		session.IssuedAt = &issuedAt
	}
	if !expiresAt.IsZero() {
		session.ExpirationDate = &expiresAt
	}

	return session, nil
}

func getIssuerFromClaims(claims AuthClaims) string {
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		return jwtClaims.RegisteredClaims.Issuer
	}
	return ""
}

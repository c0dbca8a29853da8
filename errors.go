package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeTokenNoSubject     = "TOKEN_MISSING_SUBJECT"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeInvalidRole        = "INVALID_ROLE"
	TextCodeOTPInvalid         = "OTP_INVALID_OR_EXPIRED"
	TextCodeOTPDelivery        = "OTP_DELIVERY_FAILED"
	TextCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeAdminSignup        = "ADMIN_SIGNUP_REJECTED"
	TextCodeAlreadyVerified    = "ACCOUNT_ALREADY_VERIFIED"
	TextCodeTooManyAttempts    = "TOO_MANY_LOGIN_ATTEMPTS"
)

// ErrIdentityNotFound is the error we return for non found identities.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode("IDENTITY_NOT_FOUND").
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is returned when credentials do not verify.
// Lookup misses and password mismatches collapse into this error so callers
// cannot probe which usernames exist.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token's exp claim is in the past.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens with a bad signature or structure.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMissingSubject is returned for otherwise valid tokens without a sub claim.
var ErrTokenMissingSubject = errors.New("token is missing a subject", errors.CategoryAuth).
	WithTextCode(TextCodeTokenNoSubject).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is the error when our request has no cookie or header token.
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession unable to decode JWT from session cookie.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims unable to get claims from token.
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when a resolved identity fails a role or ownership check.
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrInvalidRole is returned for role strings outside the closed set. Unknown
// roles fail loudly instead of silently downgrading to reader.
var ErrInvalidRole = errors.New("unknown or invalid role", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(errors.CodeBadRequest)

// ErrOTPInvalidOrExpired is returned when a code does not match, was already
// consumed, or aged past its window.
var ErrOTPInvalidOrExpired = errors.New("invalid or expired OTP", errors.CategoryAuth).
	WithTextCode(TextCodeOTPInvalid).
	WithCode(errors.CodeBadRequest)

// ErrOTPDeliveryFailed is returned when the mail collaborator errors. The stored
// code stays valid, so the caller may retry with a resend.
var ErrOTPDeliveryFailed = errors.New("failed to send OTP email", errors.CategoryOperation).
	WithTextCode(TextCodeOTPDelivery).
	WithCode(errors.CodeInternal)

// ErrTooManyLoginAttempts is returned when the account hit the attempt cap
// and the cooldown window has not elapsed.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrDuplicateIdentity is returned when a username, email, or phone collides at creation.
var ErrDuplicateIdentity = errors.New("username, email, or phone already registered", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(errors.CodeConflict)

// ErrNoEmptyString rejects empty plaintext passwords before hashing.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// ErrAdminSignupRejected blocks self-registration with the admin role.
var ErrAdminSignupRejected = errors.New("you cannot sign up as an admin", errors.CategoryValidation).
	WithTextCode(TextCodeAdminSignup).
	WithCode(errors.CodeBadRequest)

// ErrAlreadyVerified is returned when a resend is requested for a verified account.
var ErrAlreadyVerified = errors.New("account already verified", errors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(errors.CodeConflict)

// ErrPasswordResetDisabled is returned when the password reset feature gate is off.
var ErrPasswordResetDisabled = errors.New("password reset is disabled", errors.CategoryAuthz).
	WithTextCode("PASSWORD_RESET_DISABLED").
	WithCode(errors.CodeForbidden)

// ErrImmutableClaimMutation is returned when a context enricher tampers with
// claims that must survive enrichment untouched.
var ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryAuth).
	WithTextCode("IMMUTABLE_CLAIM_MUTATION").
	WithCode(errors.CodeUnauthorized)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

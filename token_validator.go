package auth

import (
	"github.com/taskdeck/auth/middleware/jwtware"
)

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// NewMiddlewareTokenValidator bridges a TokenValidator into the middleware's
// validator interface. The middleware declares its own claims surface to
// avoid importing this package, so the two validator types never unify even
// though any claims produced here already satisfy both.
func NewMiddlewareTokenValidator(validator TokenValidator) jwtware.TokenValidator {
	return middlewareTokenValidator{validator: validator}
}

type middlewareTokenValidator struct {
	validator TokenValidator
}

func (v middlewareTokenValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if v.validator == nil {
		return nil, ErrUnableToDecodeSession
	}

	claims, err := v.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	return claims, nil
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator tries validators in order until one succeeds, letting a
// deployment accept tokens minted under a previous signing key during
// rotation. A malformed result moves on to the next validator; any other
// error is terminal.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	if m == nil || len(m.validators) == 0 {
		return nil, ErrTokenMalformed
	}

	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}

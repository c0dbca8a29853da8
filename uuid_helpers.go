package auth

import (
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// HasUserUUID reports whether Session.GetUserUUID will succeed.
func HasUserUUID(session Session) bool {
	if session == nil {
		return false
	}
	_, err := session.GetUserUUID()
	return err == nil
}

// IdentityUUID parses the identity's ID as a UUID. Identities minted from
// token claims carry the uid claim here, which should always parse.
func IdentityUUID(identity Identity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, ErrUnableToFindSession
	}

	id, err := uuid.Parse(identity.ID())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryAuth, "identity has no valid user id").
			WithCode(errors.CodeUnauthorized)
	}

	return id, nil
}

//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// Race-enabled test runs use the default cost to stay inside timeouts.
	return bcrypt.DefaultCost
}

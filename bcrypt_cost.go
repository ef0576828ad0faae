//go:build !race

package auth

import "golang.org/x/crypto/bcrypt"

func passwordHashCost() int {
	// bcrypt.DefaultCost is 10
	return bcrypt.DefaultCost
}

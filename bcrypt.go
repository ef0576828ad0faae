package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements PasswordHasher using bcrypt
type BcryptHasher struct{}

// HashPassword implements PasswordHasher
func (BcryptHasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

// ComparePasswordAndHash implements PasswordHasher
func (BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword will generate a salted password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	start := time.Now()
	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	observeHashDuration(time.Since(start))

	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}

	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

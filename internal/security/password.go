package security

import (
	"errors"
	"fmt"

	"github.com/deepref-sh/deepref/internal/apierrors"
	"github.com/deepref-sh/deepref/internal/env"
	"github.com/deepref-sh/deepref/internal/types"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a bcrypt hash with the configured cost factor. The
// cost is the knob trading brute-force resistance against login latency.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), env.BcryptCost())
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword compares the candidate against the stored hash in constant
// time. Accounts without a password hash (login-link only) fail with
// ErrNoPasswordSet.
func VerifyPassword(userAccount types.UserAccount, password string) error {
	if len(userAccount.PasswordHash) == 0 {
		return apierrors.ErrNoPasswordSet
	}
	if err := bcrypt.CompareHashAndPassword(userAccount.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apierrors.ErrInvalidCredentials
		}
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}

// dummyPasswordHash is a bcrypt hash of a throwaway value. Login burns a
// comparison against it when the email is unknown, so the response time does
// not reveal whether the account exists.
var dummyPasswordHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

func CompareDummyPassword(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
}

// PasswordMatchesHash reports whether password hashes to hash. Used to reject
// a new password equal to the current one.
func PasswordMatchesHash(password string, hash []byte) bool {
	if len(hash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

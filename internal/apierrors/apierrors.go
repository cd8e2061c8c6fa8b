// Package apierrors contains the sentinel errors shared between the storage
// layer, the credential and session managers and the HTTP handlers. All of
// them describe caller-recoverable conditions and map to 4xx responses.
package apierrors

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidCredentials covers both unknown email and wrong password on
	// login. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrNoPasswordSet      = errors.New("no password set")
	ErrSamePassword       = errors.New("new password equals current password")

	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")

	ErrSessionNotFound = errors.New("session not found")

	ErrMFARequired = errors.New("mfa verification required")
)
